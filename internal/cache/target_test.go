package cache

import (
	"errors"
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		text string
		want Target
		ok   bool
	}{
		{"CODE", TargetCode, true},
		{"URL", TargetURL, true},
		{"code", 0, false},
		{"Url", 0, false},
		{" CODE", 0, false},
		{"URL\n", 0, false},
		{"", 0, false},
		{"Hello there", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseTarget(tt.text)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("ParseTarget = %v, want %v", got, tt.want)
				}
			} else if !errors.Is(err, ErrUnknownTarget) {
				t.Errorf("err = %v, want ErrUnknownTarget", err)
			}

			if IsCacheable(tt.text) != tt.ok {
				t.Errorf("IsCacheable(%q) = %v, want %v", tt.text, !tt.ok, tt.ok)
			}
		})
	}
}

func TestTargetsRoundTrip(t *testing.T) {
	for _, target := range Targets() {
		parsed, err := ParseTarget(target.String())
		if err != nil {
			t.Fatalf("ParseTarget(%s): %v", target, err)
		}
		if parsed != target {
			t.Errorf("ParseTarget(%s) = %v", target, parsed)
		}
	}

	if got := Target(99).String(); got != "Target(99)" {
		t.Errorf("unknown target String = %q", got)
	}
}
