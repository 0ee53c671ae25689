package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestColoredKeepsComponents(t *testing.T) {
	orig, origNoColor := Version, color.NoColor
	defer func() { Version, color.NoColor = orig, origNoColor }()
	color.NoColor = true

	cases := []struct {
		version string
		want    string
	}{
		{"0.3.0-dev", "0.3.0-dev"},
		{"1.2.3", "1.2.3"},
		{"1.0.0-beta.1", "1.0.0-beta.1"},
		{"1.2.3-rc.1+build.123", "1.2.3-rc.1+build.123"},
		{"nightly", "nightly"},
	}
	for _, tc := range cases {
		Version = tc.version
		if got := Colored(); got != tc.want {
			t.Fatalf("Colored(%q) = %q, want %q", tc.version, got, tc.want)
		}
	}
}

func TestDefaultVersionIsSet(t *testing.T) {
	if Version == "" {
		t.Fatal("Version should have a default value")
	}
}
