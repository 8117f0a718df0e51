// Package applicator implements the Segment Applicator (C9, §4.9): it
// re-walks a parsed document in the same canonical order the Segment
// Extractor used and writes translations back into the exact positions
// they came from. Full, deferred, and mixed modes share one pass because
// segment.Translation is a tagged variant (Ready or Pending) rather than
// a nullable string — each position is handled the same way regardless
// of which other positions in the same document happened to miss.
package applicator

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/valpere/pantolingo/internal/extractor"
	"github.com/valpere/pantolingo/internal/inlinehtml"
	"github.com/valpere/pantolingo/internal/pattern"
	"github.com/valpere/pantolingo/internal/segment"
)

// SkeletonClass is the CSS class applied to elements carrying a pending
// translation, so site-wide style rules can dim or placeholder them.
const SkeletonClass = "pantolingo-skeleton"

const (
	attrPending = "data-pantolingo-pending"
	attrAttr    = "data-pantolingo-attr"
)

// Apply re-walks doc with extractor.Walk and writes segments[i]'s
// translation at the i-th visited position. segments and translations
// must have the same length; Apply returns an error otherwise. segments must have been
// produced by extractor.Extract against the same doc and rules — Apply
// trusts the shared Walk to reach the identical nodes in the identical
// order (I1) rather than carrying its own node references.
func Apply(doc *goquery.Document, rules extractor.SkipRules, segments []segment.Segment, translations []segment.Translation) (segment.ApplyResult, error) {
	if len(segments) != len(translations) {
		return segment.ApplyResult{}, fmt.Errorf("applicator: %d segments but %d translations", len(segments), len(translations))
	}

	result := segment.ApplyResult{}
	i := 0

	extractor.Walk(doc, rules, func(v extractor.Visit) {
		if i >= len(segments) {
			return
		}
		seg := segments[i]
		tr := translations[i]
		i++

		switch v.Kind {
		case extractor.VisitTitle:
			if textNode := v.Node.FirstChild; textNode != nil {
				applyText(textNode, seg, tr, &result)
			}
		case extractor.VisitMetaDescription, extractor.VisitAttr:
			applyAttr(v.Node, v.AttrName, seg, tr, &result)
		case extractor.VisitText:
			applyText(v.Node, seg, tr, &result)
		case extractor.VisitGroup:
			applyGroup(v.Node, seg, tr, &result)
		}
	})

	return result, nil
}

func applyText(n *html.Node, seg segment.Segment, tr segment.Translation, result *segment.ApplyResult) {
	if tr.Ready {
		restored := pattern.Restore(tr.Text, seg.PatternReplacements, seg.IsUpperCase)
		n.Data = seg.LeadingSpace + restored + seg.TrailingSpace
		result.AppliedCount++
		return
	}

	comment := &html.Node{Type: html.CommentNode, Data: "pantolingo:" + tr.Hash}
	if n.Parent != nil {
		n.Parent.InsertBefore(comment, n)
	}
	if isSoleContentChild(n) && n.Parent != nil {
		addSkeleton(n.Parent, tr.Hash, "")
	}
	result.Pending = append(result.Pending, segment.PendingSegment{
		Hash:       tr.Hash,
		Kind:       segment.KindText,
		RawContent: strings.TrimSpace(n.Data),
	})
}

func applyAttr(n *html.Node, attrName string, seg segment.Segment, tr segment.Translation, result *segment.ApplyResult) {
	if tr.Ready {
		restored := pattern.Restore(tr.Text, seg.PatternReplacements, seg.IsUpperCase)
		setAttr(n, attrName, restored)
		result.AppliedCount++
		return
	}

	setAttr(n, attrPending, tr.Hash)
	setAttr(n, attrAttr, attrName)
	result.Pending = append(result.Pending, segment.PendingSegment{
		Hash:       tr.Hash,
		Kind:       segment.KindAttr,
		RawContent: attrValue(n, attrName),
		AttrName:   attrName,
	})
}

func applyGroup(n *html.Node, seg segment.Segment, tr segment.Translation, result *segment.ApplyResult) {
	if tr.Ready {
		withPatterns := pattern.Restore(tr.Text, seg.PatternReplacements, seg.IsUpperCase)
		restoredHTML := inlinehtml.PlaceholdersToHTML(withPatterns, seg.HTMLReplacements)
		if err := setInnerHTML(n, restoredHTML); err == nil {
			result.AppliedCount++
			return
		}
		// Fall through: a malformed fragment leaves the original markup
		// in place rather than corrupting the DOM.
		return
	}

	addSkeleton(n, tr.Hash, "")
	result.Pending = append(result.Pending, segment.PendingSegment{
		Hash:       tr.Hash,
		Kind:       segment.KindHTML,
		RawContent: seg.OriginalInnerHTML,
	})
}

// isSoleContentChild reports whether n is the only content-bearing child
// of its parent: itself plus any element children or non-whitespace text
// siblings must total exactly one (§4.9).
func isSoleContentChild(n *html.Node) bool {
	if n.Parent == nil {
		return false
	}
	count := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c == n {
			count++
			continue
		}
		switch c.Type {
		case html.ElementNode:
			count++
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				count++
			}
		}
	}
	return count == 1
}

func addSkeleton(n *html.Node, hash, attrName string) {
	addClass(n, SkeletonClass)
	setAttr(n, attrPending, hash)
	if attrName != "" {
		setAttr(n, attrAttr, attrName)
	}
}

func addClass(n *html.Node, class string) {
	existing := attrValue(n, "class")
	for _, c := range strings.Fields(existing) {
		if c == class {
			return
		}
	}
	if existing == "" {
		setAttr(n, "class", class)
		return
	}
	setAttr(n, "class", existing+" "+class)
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// setInnerHTML parses htmlStr as a fragment in the context of n's tag and
// replaces n's children with the result.
func setInnerHTML(n *html.Node, htmlStr string) error {
	context := &html.Node{Type: html.ElementNode, Data: n.Data, Namespace: n.Namespace}
	nodes, err := html.ParseFragment(strings.NewReader(htmlStr), context)
	if err != nil {
		return err
	}
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	for _, child := range nodes {
		n.AppendChild(child)
	}
	return nil
}
