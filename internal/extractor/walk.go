// Package extractor implements the Segment Extractor (C4, §4.4): a
// deterministic, fixed-order walk over a parsed document that emits
// translatable segments, and the skip-rule matching (site CSS selectors
// plus the fixed skip-tag set) that governs what it must never touch.
//
// Extract and the Segment Applicator's re-walk (internal/applicator)
// share the exact traversal in Walk so that invariant I1 — extraction
// order equals application order — holds by construction rather than by
// careful duplication.
package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/valpere/pantolingo/internal/inlinehtml"
)

// SkipTags is the fixed tag set whose contents are never translated,
// regardless of site configuration (§4.4, I4).
var SkipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"textarea": true, "code": true, "pre": true,
}

// TranslatableAttrs is the closed set of attributes the document-order
// attribute scan (§4.4 step 4) emits segments for.
var TranslatableAttrs = []string{"title", "alt", "placeholder", "aria-label"}

// SkipRules is the compiled form of a site's skip configuration.
// Selectors that fail to parse are dropped silently — an invalid
// site-supplied selector must never be fatal (§4.4).
type SkipRules struct {
	selectors []cascadia.Selector
}

// CompileSkipRules compiles a site's skip-selector list. Invalid entries
// are ignored.
func CompileSkipRules(cssSelectors []string) SkipRules {
	rules := SkipRules{}
	for _, raw := range cssSelectors {
		sel, err := cascadia.Compile(raw)
		if err != nil {
			continue
		}
		rules.selectors = append(rules.selectors, sel)
	}
	return rules
}

// Matches reports whether n, or any ancestor of n (including n itself),
// is excluded from translation: a fixed skip tag, or a match for one of
// the site's compiled skip selectors (I4).
func (r SkipRules) Matches(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if SkipTags[cur.Data] {
			return true
		}
		for _, sel := range r.selectors {
			if sel.Match(cur) {
				return true
			}
		}
	}
	return false
}

// isUnderPre reports whether n sits under a <pre> ancestor, which
// suppresses whitespace collapsing for text and html segments.
func isUnderPre(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == "pre" {
			return true
		}
	}
	return false
}

// VisitKind identifies what a Visit call represents.
type VisitKind int

const (
	VisitTitle VisitKind = iota
	VisitMetaDescription
	VisitText
	VisitGroup
	VisitAttr
)

// Visit describes one position the walk has reached, in canonical
// order. Node is always the element the translated value is ultimately
// written back onto: the <title> element, the <meta> element, the text
// node itself, the groupable block element, or the element carrying a
// translatable attribute.
type Visit struct {
	Kind     VisitKind
	Node     *html.Node
	AttrName string
	IsPre    bool
}

// Walk traverses doc in the canonical order defined by §4.4 — title,
// meta description, a grouped depth-first body walk, then a document-order
// attribute scan — calling visit once per translatable position. Both
// Extract and the Segment Applicator build on this so their orders can
// never drift apart (I1).
func Walk(doc *goquery.Document, rules SkipRules, visit func(Visit)) {
	if title := doc.Find("title").First(); title.Length() > 0 {
		n := title.Get(0)
		if !rules.Matches(n) && strings.TrimSpace(title.Text()) != "" {
			visit(Visit{Kind: VisitTitle, Node: n})
		}
	}

	doc.Find(`meta[name="description"]`).EachWithBreak(func(_ int, m *goquery.Selection) bool {
		n := m.Get(0)
		if rules.Matches(n) {
			return true
		}
		if content, ok := m.Attr("content"); ok && strings.TrimSpace(content) != "" {
			visit(Visit{Kind: VisitMetaDescription, Node: n, AttrName: "content"})
		}
		return false // only the first description meta tag
	})

	if body := doc.Find("body").First(); body.Length() > 0 {
		walkChildren(body.Get(0), rules, visit)
	}

	for _, attrName := range TranslatableAttrs {
		doc.Find("[" + attrName + "]").Each(func(_ int, el *goquery.Selection) {
			n := el.Get(0)
			if rules.Matches(n) {
				return
			}
			if val, ok := el.Attr(attrName); ok && strings.TrimSpace(val) != "" {
				visit(Visit{Kind: VisitAttr, Node: n, AttrName: attrName})
			}
		})
	}
}

func walkChildren(n *html.Node, rules SkipRules, visit func(Visit)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNode(c, rules, visit)
	}
}

func walkNode(n *html.Node, rules SkipRules, visit func(Visit)) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) != "" {
			visit(Visit{Kind: VisitText, Node: n, IsPre: isUnderPre(n)})
		}
	case html.ElementNode:
		if rules.Matches(n) {
			return
		}
		if isGroupable(n) {
			visit(Visit{Kind: VisitGroup, Node: n, IsPre: isUnderPre(n)})
			return
		}
		walkChildren(n, rules, visit)
	}
}

// isGroupable reports whether n's immediate children consist only of
// inline tags (inlinehtml.InlineTags) and text nodes, with at least one
// inline element among them and at least one child carrying real
// content — the condition under which the whole element is extracted as
// one html segment instead of being descended into (§4.4 step 3). An
// element holding only text is descended into, so its text becomes a
// text segment.
func isGroupable(n *html.Node) bool {
	hasContent := false
	hasElement := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				hasContent = true
			}
		case html.ElementNode:
			if !inlinehtml.InlineTags[c.Data] {
				return false
			}
			hasContent = true
			hasElement = true
		case html.CommentNode, html.DoctypeNode:
			// ignored for groupability purposes
		default:
			return false
		}
	}
	return hasContent && hasElement
}
