package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/valpere/pantolingo/internal/inlinehtml"
	"github.com/valpere/pantolingo/internal/pattern"
	"github.com/valpere/pantolingo/internal/segment"
)

// Extract walks doc in canonical order (via Walk) and builds the ordered
// segment list the Translator Gateway and Segment Applicator both consume.
// Text and attribute positions run through the Pattern Codec only; the
// grouped-html position additionally runs through the Inline HTML Codec
// first, so its text never reaches the Pattern Codec with markup still in
// it (§4.4, §4.5, §4.6).
func Extract(doc *goquery.Document, rules SkipRules) []segment.Segment {
	var segments []segment.Segment

	Walk(doc, rules, func(v Visit) {
		switch v.Kind {
		case VisitTitle:
			if s, ok := textSegment(v.Node.FirstChild, segment.KindText, "", false); ok {
				segments = append(segments, s)
			}
		case VisitMetaDescription:
			if s, ok := attrSegment(v.Node, v.AttrName); ok {
				segments = append(segments, s)
			}
		case VisitText:
			if s, ok := textSegment(v.Node, segment.KindText, "", v.IsPre); ok {
				segments = append(segments, s)
			}
		case VisitAttr:
			if s, ok := attrSegment(v.Node, v.AttrName); ok {
				segments = append(segments, s)
			}
		case VisitGroup:
			segments = append(segments, groupSegment(v.Node, v.IsPre))
		}
	})

	return segments
}

// textSegment builds a text-kind segment from a text node, trimming
// surrounding whitespace into LeadingSpace/TrailingSpace so it can be
// reattached verbatim on application (§4.4 step 2, P3).
func textSegment(n *html.Node, kind segment.Kind, attrName string, isPre bool) (segment.Segment, bool) {
	if n == nil {
		return segment.Segment{}, false
	}
	raw := n.Data
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return segment.Segment{}, false
	}

	leading, trailing := "", ""
	if !isPre {
		leading = raw[:strings.Index(raw, trimmed)]
		trailing = raw[strings.Index(raw, trimmed)+len(trimmed):]
	}

	res := pattern.Apply(trimmed)
	return segment.Segment{
		Kind:                kind,
		Value:               res.Normalised,
		LeadingSpace:        leading,
		TrailingSpace:       trailing,
		ElementRef:          n,
		PatternReplacements: res.Replacements,
		IsUpperCase:         res.IsUpperCase,
	}, true
}

// attrSegment builds an attr-kind segment from one translatable attribute
// of an element (§4.4 step 4).
func attrSegment(n *html.Node, attrName string) (segment.Segment, bool) {
	val := attrValue(n, attrName)
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return segment.Segment{}, false
	}
	res := pattern.Apply(trimmed)
	return segment.Segment{
		Kind:                segment.KindAttr,
		Value:               res.Normalised,
		AttrName:            attrName,
		ElementRef:          n,
		PatternReplacements: res.Replacements,
		IsUpperCase:         res.IsUpperCase,
	}, true
}

// groupSegment builds an html-kind segment from a groupable inline block:
// innerHTML is rendered, converted to placeholder text by the Inline HTML
// Codec, then passed through the Pattern Codec so its remaining literal
// text is also protected (§4.5, §4.6).
func groupSegment(n *html.Node, isPre bool) segment.Segment {
	inner := renderInnerHTML(n)
	htmlRes := inlinehtml.HTMLToPlaceholders(inner, isPre)
	patRes := pattern.Apply(htmlRes.Text)

	return segment.Segment{
		Kind:                segment.KindHTML,
		Value:               patRes.Normalised,
		ElementRef:          n,
		HTMLReplacements:    htmlRes.Replacements,
		OriginalInnerHTML:   inner,
		PatternReplacements: patRes.Replacements,
		IsUpperCase:         patRes.IsUpperCase,
	}
}

// renderInnerHTML concatenates the rendered HTML of n's children, the
// moral equivalent of a browser's Element.innerHTML.
func renderInnerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// attrValue returns the value of attrName on n, or "" if absent.
func attrValue(n *html.Node, attrName string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, attrName) {
			return a.Val
		}
	}
	return ""
}
