// Package pattern implements the Pattern Codec (§4.6): it strips numbers
// and email addresses out of a segment's text before translation, so the
// cache key generalises across "Price 123.45 USD" and "Price 99.00 USD",
// and restores the captured originals afterwards. It is modelled on the
// teacher's placeholder package (numbered markers, ordered capture slice,
// symmetrical Apply/Restore) but targets two fixed pattern families
// instead of arbitrary markup.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/valpere/pantolingo/internal/segment"
)

var (
	// reEmail is a conservative email matcher: local part, '@', domain
	// with at least one dot. Intentionally not RFC-5322-exact — it only
	// needs to keep addresses out of the numeric pass and survive a
	// round trip.
	reEmail = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// reNumeric matches runs of digits with optional internal
	// separators (. , space) but requires at least one digit; a bare
	// separator never matches alone.
	reNumeric = regexp.MustCompile(`[0-9][0-9.,\s]*[0-9]|[0-9]`)

	// rePlaceholder recognises any codec-emitted placeholder token, used
	// to detect "isUpperCase" without being fooled by the placeholder's
	// own uppercase letters.
	rePlaceholder = regexp.MustCompile(`\[/?[A-Z]+[0-9]+\]`)
)

// Result is the output of Apply: the normalised value with placeholders
// substituted in, the ordered replacement tables (PII applied before
// numeric, matching the order they were matched), and whether the
// original's alphabetic content was fully uppercase.
type Result struct {
	Normalised   string
	Replacements []segment.PatternReplacement
	IsUpperCase  bool
}

// Apply runs the PII pass first (so "user42@x.com" isn't mangled by the
// numeric pass), then the numeric pass, over text. Each family's counter
// is independent and 1-based, per §4.6 and I5.
func Apply(text string) Result {
	res := Result{IsUpperCase: isUpperAlpha(text)}

	piiValues := []string{}
	withPII := replaceAllCounted(text, reEmail, "P", &piiValues)
	if len(piiValues) > 0 {
		res.Replacements = append(res.Replacements, segment.PatternReplacement{
			Kind:           segment.PatternPII,
			OriginalValues: piiValues,
		})
	}

	numValues := []string{}
	withNumeric := replaceAllCounted(withPII, reNumeric, "N", &numValues)
	if len(numValues) > 0 {
		res.Replacements = append(res.Replacements, segment.PatternReplacement{
			Kind:           segment.PatternNumeric,
			OriginalValues: numValues,
		})
	}

	res.Normalised = withNumeric
	return res
}

// replaceAllCounted replaces every match of re in text with a 1-based
// placeholder of the given kind letter, appending each match's original
// text (in source order) to captured. Placeholder tokens already present
// in text (from the HTML codec or an earlier pass) are left untouched.
func replaceAllCounted(text string, re *regexp.Regexp, kind string, captured *[]string) string {
	counter := 0
	replace := func(s string) string {
		return re.ReplaceAllStringFunc(s, func(match string) string {
			counter++
			*captured = append(*captured, match)
			return fmt.Sprintf("[%s%d]", kind, counter)
		})
	}
	var sb strings.Builder
	last := 0
	for _, loc := range rePlaceholder.FindAllStringIndex(text, -1) {
		sb.WriteString(replace(text[last:loc[0]]))
		sb.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	sb.WriteString(replace(text[last:]))
	return sb.String()
}

// Restore substitutes placeholders in text back with the originals
// captured by Apply, walking families in reverse insertion order (last
// applied, first restored — numeric before PII, mirroring Apply's
// PII-then-numeric application order). When isUpperCase is set the
// final string is uppercased.
func Restore(text string, replacements []segment.PatternReplacement, isUpperCase bool) string {
	for i := len(replacements) - 1; i >= 0; i-- {
		rep := replacements[i]
		kind := "N"
		if rep.Kind == segment.PatternPII {
			kind = "P"
		}
		for idx, original := range rep.OriginalValues {
			token := fmt.Sprintf("[%s%d]", kind, idx+1)
			text = strings.Replace(text, token, original, 1)
		}
	}
	if isUpperCase {
		text = strings.ToUpper(text)
	}
	return text
}

// isUpperAlpha reports whether every letter in text is uppercase
// (ignoring digits, punctuation, and whitespace), and text contains at
// least one letter. Placeholder tokens emitted by a prior codec pass
// (which are themselves uppercase-letter-bearing) are excluded so they
// don't force a false positive on mixed-case source text.
func isUpperAlpha(text string) bool {
	text = rePlaceholder.ReplaceAllString(text, "")
	sawLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			sawLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return sawLetter
}
