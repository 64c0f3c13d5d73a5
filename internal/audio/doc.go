// Package audio holds the speech audio model and the repository that serves
// synthesized audio to concurrent callers. Requests are identified by a
// Fingerprint; audio for template fingerprints is kept compressed in a shared
// cache and decoded into a fresh playback buffer on every hit.
package audio
