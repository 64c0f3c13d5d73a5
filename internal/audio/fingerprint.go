package audio

import (
	"math"
	"strconv"
	"strings"
)

// Fingerprint identifies a synthesis request. It is comparable and is used
// directly as the cache key, so two fingerprints are cache-equal exactly when
// their text, speaker and speed are equal.
type Fingerprint struct {
	text    string
	speaker string
	speed   float32
}

// NewFingerprint builds a fingerprint. Text and speaker are kept verbatim;
// callers normalize text before this point. A NaN speed is rejected.
func NewFingerprint(text, speaker string, speed float32) (Fingerprint, error) {
	if speed != speed {
		return Fingerprint{}, ErrInvalidSpeed
	}
	return Fingerprint{text: text, speaker: speaker, speed: speed}, nil
}

// Text returns the text to synthesize.
func (f Fingerprint) Text() string { return f.text }

// Speaker returns the speaker identifier.
func (f Fingerprint) Speaker() string { return f.speaker }

// Speed returns the speed multiplier.
func (f Fingerprint) Speed() float32 { return f.speed }

// Key returns a string that is equal for cache-equal fingerprints.
func (f Fingerprint) Key() string {
	bits := math.Float32bits(f.speed)
	if f.speed == 0 {
		// -0 and +0 compare equal, so they must share a key.
		bits = 0
	}

	// Speaker is length-prefixed so no speaker/text split can collide.
	var b strings.Builder
	b.Grow(len(f.speaker) + len(f.text) + 20)
	b.WriteString(strconv.FormatUint(uint64(bits), 16))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(len(f.speaker)))
	b.WriteByte(':')
	b.WriteString(f.speaker)
	b.WriteString(f.text)
	return b.String()
}

// String returns a short human readable form for logs.
func (f Fingerprint) String() string {
	text := f.text
	if r := []rune(text); len(r) > 32 {
		text = string(r[:32]) + "…"
	}
	return strconv.Quote(text) + "/" + f.speaker + "@" + strconv.FormatFloat(float64(f.speed), 'g', -1, 32)
}
