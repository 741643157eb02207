package phone

import (
	"strings"
	"testing"
)

func TestRegionTable_NoOverlaps(t *testing.T) {
	seen := make(map[string]string)
	for _, entry := range regionTable {
		if len(entry.region) != 2 {
			t.Errorf("region %q is not a 2-letter code", entry.region)
		}
		for _, code := range strings.Fields(entry.codes) {
			if len(code) != 3 {
				t.Errorf("%s: area code %q is not 3 digits", entry.region, code)
			}
			if code[0] == '0' || code[0] == '1' {
				t.Errorf("%s: area code %q has an invalid prefix", entry.region, code)
			}
			if prev, ok := seen[code]; ok {
				t.Errorf("area code %s listed for both %s and %s", code, prev, entry.region)
			}
			seen[code] = entry.region
		}
	}
}

func TestRegionForAreaCode(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"212", "NY"},
		{"907", "AK"},
		{"787", "PR"},
		{"416", "ON"},
		{"555", ""},
		{"999", ""},
	}
	for _, tt := range tests {
		if got := RegionForAreaCode(tt.code); got != tt.want {
			t.Errorf("RegionForAreaCode(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestNormalizeRegion(t *testing.T) {
	if got := NormalizeRegion(" ny "); got != "NY" {
		t.Errorf("NormalizeRegion() = %q, want NY", got)
	}
}
