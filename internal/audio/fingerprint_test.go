package audio

import (
	"errors"
	"math"
	"testing"
)

func TestNewFingerprintRejectsNaN(t *testing.T) {
	_, err := NewFingerprint("CODE", "1", float32(math.NaN()))
	if err == nil {
		t.Fatal("expected error for NaN speed")
	}
	if !errors.Is(err, ErrInvalidSpeed) {
		t.Errorf("expected ErrInvalidSpeed, got %v", err)
	}
	if KindOf(err) != KindInvalidSpeed {
		t.Errorf("expected kind %s, got %s", KindInvalidSpeed, KindOf(err))
	}
}

func TestNewFingerprintAcceptsFiniteAndInfinite(t *testing.T) {
	speeds := []float32{0, 1, 1.5, -2, float32(math.Inf(1)), math.SmallestNonzeroFloat32}
	for _, speed := range speeds {
		if _, err := NewFingerprint("text", "1", speed); err != nil {
			t.Errorf("speed %v: unexpected error %v", speed, err)
		}
	}
}

func TestFingerprintVerbatim(t *testing.T) {
	fp, err := NewFingerprint("  Hello ", "Speaker-1", 1.25)
	if err != nil {
		t.Fatalf("NewFingerprint failed: %v", err)
	}
	if fp.Text() != "  Hello " {
		t.Errorf("text was altered: %q", fp.Text())
	}
	if fp.Speaker() != "Speaker-1" {
		t.Errorf("speaker was altered: %q", fp.Speaker())
	}
	if fp.Speed() != 1.25 {
		t.Errorf("speed was altered: %v", fp.Speed())
	}
}

func TestFingerprintIdentity(t *testing.T) {
	base := mustFingerprint(t, "CODE", "speaker-1", 1.0)

	tests := []struct {
		name  string
		other Fingerprint
		equal bool
	}{
		{"identical", mustFingerprint(t, "CODE", "speaker-1", 1.0), true},
		{"different text", mustFingerprint(t, "URL", "speaker-1", 1.0), false},
		{"text case", mustFingerprint(t, "code", "speaker-1", 1.0), false},
		{"trailing space", mustFingerprint(t, "CODE ", "speaker-1", 1.0), false},
		{"different speaker", mustFingerprint(t, "CODE", "speaker-2", 1.0), false},
		{"different speed", mustFingerprint(t, "CODE", "speaker-1", 1.1), false},
		{"next float", mustFingerprint(t, "CODE", "speaker-1", math.Nextafter32(1, 2)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base == tt.other; got != tt.equal {
				t.Errorf("base == other: got %v, want %v", got, tt.equal)
			}
			if got := base.Key() == tt.other.Key(); got != tt.equal {
				t.Errorf("key equality: got %v, want %v", got, tt.equal)
			}

			m := map[Fingerprint]int{base: 1}
			_, found := m[tt.other]
			if found != tt.equal {
				t.Errorf("map lookup: got %v, want %v", found, tt.equal)
			}
		})
	}
}

func TestFingerprintSignedZero(t *testing.T) {
	pos := mustFingerprint(t, "CODE", "1", 0)
	neg := mustFingerprint(t, "CODE", "1", float32(math.Copysign(0, -1)))

	if pos != neg {
		t.Error("+0 and -0 fingerprints should be equal")
	}
	if pos.Key() != neg.Key() {
		t.Errorf("+0 and -0 keys differ: %q vs %q", pos.Key(), neg.Key())
	}
}

func TestFingerprintKeyNoSplitCollision(t *testing.T) {
	a := mustFingerprint(t, "bc", "a", 1)
	b := mustFingerprint(t, "c", "ab", 1)

	if a == b {
		t.Fatal("fingerprints should differ")
	}
	if a.Key() == b.Key() {
		t.Errorf("keys collide: %q", a.Key())
	}
}

func TestFingerprintString(t *testing.T) {
	fp := mustFingerprint(t, "CODE", "3", 1.5)
	if got, want := fp.String(), `"CODE"/3@1.5`; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func mustFingerprint(t *testing.T, text, speaker string, speed float32) Fingerprint {
	t.Helper()
	fp, err := NewFingerprint(text, speaker, speed)
	if err != nil {
		t.Fatalf("NewFingerprint(%q, %q, %v): %v", text, speaker, speed, err)
	}
	return fp
}
