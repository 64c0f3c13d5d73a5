// Package cache provides the concurrent key/value stores that hold encoded
// speech audio, and the policy deciding which texts are worth keeping.
// Map is the unbounded store used by default; LRU bounds the store by size
// for deployments where the cacheable set grows.
package cache
