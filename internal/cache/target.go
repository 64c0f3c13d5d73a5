package cache

import (
	"errors"
	"fmt"
)

// ErrUnknownTarget is returned by ParseTarget for text that is not a
// template token.
var ErrUnknownTarget = errors.New("not a cache target")

// Target is a template category whose audio recurs often enough to keep.
// Spoken sentences are unbounded and never cached; only these tokens are.
type Target int

const (
	// TargetCode stands in for a code block in a message.
	TargetCode Target = iota + 1

	// TargetURL stands in for a link in a message.
	TargetURL
)

var targetTokens = map[Target]string{
	TargetCode: "CODE",
	TargetURL:  "URL",
}

var tokenTargets = map[string]Target{
	"CODE": TargetCode,
	"URL":  TargetURL,
}

// String returns the token spoken for the target.
func (t Target) String() string {
	if s, ok := targetTokens[t]; ok {
		return s
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// Targets returns every cache target.
func Targets() []Target {
	return []Target{TargetCode, TargetURL}
}

// ParseTarget matches text exactly (case-sensitive, untrimmed) against the
// target tokens.
func ParseTarget(text string) (Target, error) {
	if t, ok := tokenTargets[text]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, text)
}

// IsCacheable reports whether audio for text should be kept in the cache.
func IsCacheable(text string) bool {
	_, ok := tokenTargets[text]
	return ok
}
