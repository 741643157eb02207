package phone

import (
	"fmt"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantFormatted string
		wantRegion    string
		wantKind      ErrorKind
	}{
		{name: "plain 10 digits", raw: "5551234567", wantFormatted: "+15551234567"},
		{name: "punctuated", raw: "(212) 555-0100", wantFormatted: "+12125550100", wantRegion: "NY"},
		{name: "leading country code", raw: "1-415-555-0199", wantFormatted: "+14155550199", wantRegion: "CA"},
		{name: "e164 input", raw: "+1 (312) 555 0142", wantFormatted: "+13125550142", wantRegion: "IL"},
		{name: "dots and spaces", raw: " 206.555.0123 ", wantFormatted: "+12065550123", wantRegion: "WA"},
		{name: "unknown area code keeps number", raw: "9995551234", wantFormatted: "+19995551234"},
		{name: "empty", raw: "", wantKind: InvalidLength},
		{name: "letters only", raw: "notaphone", wantKind: InvalidLength},
		{name: "too short", raw: "555-1234", wantKind: InvalidLength},
		{name: "too long", raw: "555123456789", wantKind: InvalidLength},
		{name: "11 digits without trunk 1", raw: "25551234567", wantKind: InvalidLength},
		{name: "area code starts with 0", raw: "0551234567", wantKind: InvalidPrefix},
		{name: "area code starts with 1", raw: "1551234567", wantKind: InvalidPrefix},
		{name: "trunk then bad area code", raw: "11551234567", wantKind: InvalidPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.raw)
			if tt.wantKind != "" {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %+v", tt.raw, n)
				}
				if got := KindOf(err); got != tt.wantKind {
					t.Errorf("Parse(%q) kind = %q, want %q", tt.raw, got, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.raw, err)
			}
			if n.Formatted != tt.wantFormatted {
				t.Errorf("Formatted = %q, want %q", n.Formatted, tt.wantFormatted)
			}
			if n.Region != tt.wantRegion {
				t.Errorf("Region = %q, want %q", n.Region, tt.wantRegion)
			}
			if n.Display == "" {
				t.Error("Display should not be empty")
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"5551234567",
		"(212) 555-0100",
		"1 800 555 0000",
		"+1-907-555-1212",
		"9995551234",
	}
	for _, in := range inputs {
		first := Normalize(in)
		if !first.OK {
			t.Fatalf("Normalize(%q) failed: %s", in, first.Reason)
		}
		second := Normalize(first.Formatted)
		if second != first {
			t.Errorf("Normalize(Normalize(%q).Formatted) = %+v, want %+v", in, second, first)
		}
	}
}

func TestNormalize_AllValidAreaCodesSucceed(t *testing.T) {
	for first := '2'; first <= '9'; first++ {
		for _, rest := range []string{"00", "55", "99"} {
			ten := fmt.Sprintf("%c%s5550100", first, rest)
			for _, in := range []string{ten, "1" + ten} {
				res := Normalize(in)
				if !res.OK {
					t.Errorf("Normalize(%q) failed: %s", in, res.Reason)
					continue
				}
				if res.Formatted != "+1"+ten {
					t.Errorf("Normalize(%q).Formatted = %q, want %q", in, res.Formatted, "+1"+ten)
				}
			}
		}
	}
}

func TestNormalize_StructuralFailures(t *testing.T) {
	for _, in := range []string{"1", "123456789", "123456789012", "abc", "++--"} {
		res := Normalize(in)
		if res.OK {
			t.Errorf("Normalize(%q) should fail", in)
			continue
		}
		if res.Kind != string(InvalidLength) {
			t.Errorf("Normalize(%q).Kind = %q, want %q", in, res.Kind, InvalidLength)
		}
		if res.Reason == "" {
			t.Errorf("Normalize(%q) missing reason", in)
		}
	}
}

func TestIsFormatError(t *testing.T) {
	_, err := Parse("12")
	if !IsFormatError(fmt.Errorf("row 3: %w", err)) {
		t.Error("IsFormatError should see through wrapping")
	}
	if IsFormatError(fmt.Errorf("other")) {
		t.Error("IsFormatError(other) = true")
	}
}
