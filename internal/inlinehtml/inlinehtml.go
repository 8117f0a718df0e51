// Package inlinehtml implements the Inline HTML Codec (§4.5): it turns
// an element's innerHTML into a placeholder string plus a replacement
// table, so the translation model never sees markup, and restores the
// original tags afterward: regex scan, a stack that pairs open/close
// tags, numbered per-family markers, a symmetrical Restore — families
// are fixed tag groups instead of one flat counter.
package inlinehtml

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/valpere/pantolingo/internal/segment"
)

// family is the placeholder letter group a tag name maps to.
type family string

const (
	familyBold    family = "HB" // b, strong
	familyEmph    family = "HE" // i, em
	familyAnchor  family = "HA" // a
	familySpan    family = "HS" // span
	familyVoid    family = "HV" // br and promoted empty-content pairs
	familyGeneric family = "HG" // sub, sup, u, small, mark, and anything else inline
)

var tagFamily = map[string]family{
	"b": familyBold, "strong": familyBold,
	"i": familyEmph, "em": familyEmph,
	"a":    familyAnchor,
	"span": familySpan,
	"br":   familyVoid,
	"sub":  familyGeneric, "sup": familyGeneric, "u": familyGeneric,
	"small": familyGeneric, "mark": familyGeneric,
}

// InlineTags is the closed set of tags the Segment Extractor treats as
// "inline" when deciding whether an element is a groupable block (§4.4
// step 3). It matches the keys of tagFamily, kept as its own exported
// set so extractor doesn't need to know about families.
var InlineTags = func() map[string]bool {
	m := make(map[string]bool, len(tagFamily))
	for tag := range tagFamily {
		m[tag] = true
	}
	return m
}()

var voidTags = map[string]bool{"br": true}

var (
	reTag         = regexp.MustCompile(`(?i)<(/?)([a-zA-Z][a-zA-Z0-9]*)([^>]*)>`)
	reWhitespace  = regexp.MustCompile(`[ \t\r\n]+`)
	rePlaceholder = regexp.MustCompile(`\[(/?)([A-Z]+)(\d+)\]`)
	// reNumericEntity matches decimal (&#NN;) and hex (&#xNN;) numeric
	// character references, decoded before the pattern codec runs so
	// digit-only entities aren't mistaken for numeric text.
	reNumericEntity = regexp.MustCompile(`&#x?[0-9A-Fa-f]+;`)
)

// Result is the output of HTMLToPlaceholders.
type Result struct {
	Text         string
	Replacements []segment.HtmlTagReplacement
}

// openFrame tracks one unmatched opening tag on the pairing stack.
type openFrame struct {
	fam     family
	num     int
	idx     int // index into the replacements slice
	tagName string
}

// HTMLToPlaceholders converts an element's innerHTML into placeholder
// text plus a replacement table. Whitespace is collapsed to single
// spaces unless isPre is true (the element is <pre>, or sits under a
// <pre> ancestor). Numeric character entities are decoded first so they
// are shielded from the Pattern Codec's numeric pass.
func HTMLToPlaceholders(innerHTML string, isPre bool) Result {
	text := decodeNumericEntities(innerHTML)
	if !isPre {
		text = strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
	}

	counters := map[family]int{}
	var stack []openFrame
	var replacements []segment.HtmlTagReplacement

	out := reTag.ReplaceAllStringFunc(text, func(match string) string {
		sub := reTag.FindStringSubmatch(match)
		closing := sub[1] == "/"
		tagName := strings.ToLower(sub[2])

		fam, known := tagFamily[tagName]
		if !known {
			fam = familyGeneric
		}

		if closing {
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].tagName != tagName {
					continue
				}
				open := stack[i]
				stack = append(stack[:i], stack[i+1:]...)
				closeTok := fmt.Sprintf("[/%s%d]", open.fam, open.num)
				replacements[open.idx].ClosePlaceholder = closeTok
				replacements[open.idx].OriginalCloseTag = match
				return closeTok
			}
			// Mismatched closing tag with nothing open to pair: discard.
			return ""
		}

		if voidTags[tagName] {
			counters[familyVoid]++
			n := counters[familyVoid]
			replacements = append(replacements, segment.HtmlTagReplacement{
				OpenPlaceholder: fmt.Sprintf("[%s%d]", familyVoid, n),
				OriginalOpenTag: match,
				TagName:         tagName,
			})
			return fmt.Sprintf("[%s%d]", familyVoid, n)
		}

		counters[fam]++
		n := counters[fam]
		idx := len(replacements)
		openTok := fmt.Sprintf("[%s%d]", fam, n)
		replacements = append(replacements, segment.HtmlTagReplacement{
			OpenPlaceholder: openTok,
			OriginalOpenTag: match,
			TagName:         tagName,
		})
		stack = append(stack, openFrame{fam: fam, num: n, idx: idx, tagName: tagName})
		return openTok
	})

	// Promote open+close pairs with no content between them to void
	// placeholders, renumbering the original family's later placeholders
	// so indices stay gap-free (I5, §4.5).
	out, replacements = promoteEmptyPairs(out, replacements, counters)

	return Result{Text: out, Replacements: replacements}
}

// promoteEmptyPairs rewrites adjacent "[FAM i][/FAM i]" sequences into a
// single void placeholder, renumbering the family's remaining
// placeholders so indices stay 1-based and contiguous.
func promoteEmptyPairs(text string, replacements []segment.HtmlTagReplacement, counters map[family]int) (string, []segment.HtmlTagReplacement) {
	for {
		promoted := false
		for i, r := range replacements {
			if r.Void() || r.ClosePlaceholder == "" {
				continue
			}
			pairLiteral := r.OpenPlaceholder + r.ClosePlaceholder
			if !strings.Contains(text, pairLiteral) {
				continue
			}
			fam := familyOfPlaceholder(r.OpenPlaceholder)
			removedIdx := familyIndex(r.OpenPlaceholder)

			counters[familyVoid]++
			voidToken := fmt.Sprintf("[%s%d]", familyVoid, counters[familyVoid])
			text = strings.Replace(text, pairLiteral, voidToken, 1)

			replacements[i] = segment.HtmlTagReplacement{
				OpenPlaceholder: voidToken,
				OriginalOpenTag: r.OriginalOpenTag,
				TagName:         r.TagName,
			}
			text, replacements = renumberFamily(text, replacements, fam, removedIdx)
			promoted = true
			break
		}
		if !promoted {
			break
		}
	}
	return text, replacements
}

// renumberFamily decrements the index of every placeholder in fam whose
// index is greater than removedIdx, both in the text and in the
// replacement table, closing the gap left by a promoted void element.
func renumberFamily(text string, replacements []segment.HtmlTagReplacement, fam family, removedIdx int) (string, []segment.HtmlTagReplacement) {
	for i, r := range replacements {
		if r.OpenPlaceholder == "" || familyOfPlaceholder(r.OpenPlaceholder) != fam {
			continue
		}
		idx := familyIndex(r.OpenPlaceholder)
		if idx <= removedIdx {
			continue
		}
		newOpen := fmt.Sprintf("[%s%d]", fam, idx-1)
		text = strings.ReplaceAll(text, r.OpenPlaceholder, newOpen)
		if r.ClosePlaceholder != "" {
			newClose := fmt.Sprintf("[/%s%d]", fam, idx-1)
			text = strings.ReplaceAll(text, r.ClosePlaceholder, newClose)
			replacements[i].ClosePlaceholder = newClose
		}
		replacements[i].OpenPlaceholder = newOpen
	}
	return text, replacements
}

func familyOfPlaceholder(token string) family {
	sub := rePlaceholder.FindStringSubmatch(token)
	if sub == nil {
		return ""
	}
	return family(sub[2])
}

func familyIndex(token string) int {
	sub := rePlaceholder.FindStringSubmatch(token)
	if sub == nil {
		return 0
	}
	n, _ := strconv.Atoi(sub[3])
	return n
}

// PlaceholdersToHTML walks the replacement table and substitutes
// "[FAM i]"/"[/FAM i]" tokens in text back to their original open/close
// literals.
func PlaceholdersToHTML(text string, replacements []segment.HtmlTagReplacement) string {
	for _, r := range replacements {
		text = strings.ReplaceAll(text, r.OpenPlaceholder, r.OriginalOpenTag)
		if !r.Void() {
			text = strings.ReplaceAll(text, r.ClosePlaceholder, r.OriginalCloseTag)
		}
	}
	return text
}

func decodeNumericEntities(text string) string {
	return reNumericEntity.ReplaceAllStringFunc(text, func(ent string) string {
		return html.UnescapeString(ent)
	})
}

// NormaliseWhitespace applies the same collapsing rule HTMLToPlaceholders
// uses, exported so callers (and tests asserting P3) can compute the
// expected round-trip value independently.
func NormaliseWhitespace(text string, isPre bool) string {
	if isPre {
		return text
	}
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}
