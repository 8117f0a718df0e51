package pattern_test

import (
	"testing"

	"github.com/valpere/pantolingo/internal/pattern"
)

func TestApply_NoPatterns(t *testing.T) {
	res := pattern.Apply("Hello world")
	if res.Normalised != "Hello world" {
		t.Errorf("expected unchanged text, got %q", res.Normalised)
	}
	if len(res.Replacements) != 0 {
		t.Errorf("expected 0 replacements, got %d", len(res.Replacements))
	}
}

func TestApply_Numeric(t *testing.T) {
	res := pattern.Apply("Price 123.45 USD")
	if res.Normalised != "Price [N1] USD" {
		t.Fatalf("expected %q, got %q", "Price [N1] USD", res.Normalised)
	}
	if len(res.Replacements) != 1 || res.Replacements[0].OriginalValues[0] != "123.45" {
		t.Fatalf("unexpected replacements: %+v", res.Replacements)
	}
}

func TestApply_EmailBeforeNumeric(t *testing.T) {
	res := pattern.Apply("Contact user42@x.com for help")
	if res.Normalised != "Contact [P1] for help" {
		t.Fatalf("expected email to be replaced whole, got %q", res.Normalised)
	}
}

func TestApply_MultipleNumericsAreOrdered(t *testing.T) {
	res := pattern.Apply("Room 12 has 34 seats")
	if res.Normalised != "Room [N1] has [N2] seats" {
		t.Fatalf("got %q", res.Normalised)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"Price 123.45 USD",
		"Contact user42@x.com for help",
		"Room 12 has 34 seats",
		"No patterns here",
	}
	for _, original := range cases {
		res := pattern.Apply(original)
		restored := pattern.Restore(res.Normalised, res.Replacements, res.IsUpperCase)
		if restored != original {
			t.Errorf("round trip failed: %q -> %q -> %q", original, res.Normalised, restored)
		}
	}
}

func TestApply_UpperCaseFlag(t *testing.T) {
	res := pattern.Apply("SALE 50 PERCENT OFF")
	if !res.IsUpperCase {
		t.Fatalf("expected isUpperCase true")
	}
	restored := pattern.Restore(res.Normalised, res.Replacements, res.IsUpperCase)
	if restored != "SALE 50 PERCENT OFF" {
		t.Fatalf("got %q", restored)
	}
}

func TestApply_MixedCaseIsNotUpper(t *testing.T) {
	res := pattern.Apply("Sale 50 Percent Off")
	if res.IsUpperCase {
		t.Fatalf("expected isUpperCase false for mixed case")
	}
}
