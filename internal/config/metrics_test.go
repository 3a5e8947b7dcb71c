package config

import (
	"errors"
	"testing"
)

func TestClassifyLoadError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "none", err: nil, want: "none"},
		{name: "validation", err: errors.New("validate config: token horizons must be positive"), want: "validation"},
		{name: "parse", err: errors.New("parse PASSWORD_PATTERN: invalid regexp"), want: "parse"},
		{name: "other", err: errors.New("some other load error"), want: "load"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyLoadError(tc.err); got != tc.want {
				t.Fatalf("classifyLoadError()=%q want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizeProfile(t *testing.T) {
	if got := normalizeProfile("  ProD  "); got != "prod" {
		t.Fatalf("expected prod, got %q", got)
	}
	if got := normalizeProfile("   "); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}
