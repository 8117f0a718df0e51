package inlinehtml_test

import (
	"testing"

	"github.com/valpere/pantolingo/internal/inlinehtml"
)

func TestHTMLToPlaceholders_Simple(t *testing.T) {
	res := inlinehtml.HTMLToPlaceholders("Hello <strong>world</strong>", false)
	if res.Text != "Hello [HB1]world[/HB1]" {
		t.Fatalf("got %q", res.Text)
	}
	if len(res.Replacements) != 1 {
		t.Fatalf("expected 1 replacement, got %d: %+v", len(res.Replacements), res.Replacements)
	}
	r := res.Replacements[0]
	if r.OriginalOpenTag != "<strong>" || r.OriginalCloseTag != "</strong>" {
		t.Errorf("unexpected original tags: %+v", r)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"Hello <strong>world</strong>",
		"Plain text with no markup",
		"<a href=\"/x\">link</a> and <em>emphasis</em>",
		"Line break<br>after",
		"<span>outer <b>inner</b> text</span>",
	}
	for _, original := range cases {
		res := inlinehtml.HTMLToPlaceholders(original, false)
		restored := inlinehtml.PlaceholdersToHTML(res.Text, res.Replacements)
		want := inlinehtml.NormaliseWhitespace(original, false)
		if restored != want {
			t.Errorf("round trip failed for %q: got %q, want %q", original, restored, want)
		}
	}
}

func TestHTMLToPlaceholders_VoidBr(t *testing.T) {
	res := inlinehtml.HTMLToPlaceholders("Line one<br>Line two", false)
	if res.Text != "Line one[HV1]Line two" {
		t.Fatalf("got %q", res.Text)
	}
	if !res.Replacements[0].Void() {
		t.Fatalf("expected br replacement to be void")
	}
}

func TestHTMLToPlaceholders_PromotesEmptyPair(t *testing.T) {
	res := inlinehtml.HTMLToPlaceholders("Before<span></span>After", false)
	if res.Text != "Before[HV1]After" {
		t.Fatalf("expected promoted void placeholder, got %q", res.Text)
	}
	if len(res.Replacements) != 1 || !res.Replacements[0].Void() {
		t.Fatalf("unexpected replacements: %+v", res.Replacements)
	}
}

func TestHTMLToPlaceholders_PromotionKeepsIndicesGapFree(t *testing.T) {
	res := inlinehtml.HTMLToPlaceholders("<span></span><span>content</span>", false)
	// First span promotes to HV1; the second (non-empty) span must
	// renumber down to HS1, not stay at HS2.
	if res.Text != "[HV1][HS1]content[/HS1]" {
		t.Fatalf("got %q", res.Text)
	}
}

func TestHTMLToPlaceholders_MismatchedClosingDiscarded(t *testing.T) {
	res := inlinehtml.HTMLToPlaceholders("Text</b>more", false)
	if res.Text != "Textmore" {
		t.Fatalf("expected mismatched closer discarded, got %q", res.Text)
	}
}

func TestHTMLToPlaceholders_WhitespaceCollapsed(t *testing.T) {
	res := inlinehtml.HTMLToPlaceholders("Hello   \n\n  world", false)
	if res.Text != "Hello world" {
		t.Fatalf("got %q", res.Text)
	}
}

func TestHTMLToPlaceholders_PreservesPreWhitespace(t *testing.T) {
	res := inlinehtml.HTMLToPlaceholders("Hello   \n  world", true)
	if res.Text != "Hello   \n  world" {
		t.Fatalf("expected pre whitespace preserved, got %q", res.Text)
	}
}

func TestHTMLToPlaceholders_FamiliesByTag(t *testing.T) {
	res := inlinehtml.HTMLToPlaceholders("<b>b</b><i>i</i><a href=\"/x\">a</a><span>s</span><sub>g</sub>", false)
	want := "[HB1]b[/HB1][HE1]i[/HE1][HA1]a[/HA1][HS1]s[/HS1][HG1]g[/HG1]"
	if res.Text != want {
		t.Fatalf("got %q, want %q", res.Text, want)
	}
}
