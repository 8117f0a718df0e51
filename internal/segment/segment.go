// Package segment defines the data model shared by the extraction,
// codec, cache, and application stages of the translation pipeline:
// the translatable unit (Segment), the replacement tables that let a
// unit's pattern/HTML content be restored after translation, and the
// records the deferred-translation handshake exchanges with clients.
package segment

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeHash returns the content-addressable digest of a segment's
// post-codec value, the key the Translation Cache stores translations
// under (§3: "textHash is a content-addressable digest of the
// placeholdered normalised value").
func ComputeHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Kind identifies what a Segment represents and, in turn, how it is
// written back into the document by the applicator.
type Kind string

const (
	KindText Kind = "text"
	KindAttr Kind = "attr"
	KindPath Kind = "path"
	KindHTML Kind = "html"
)

// PatternKind identifies which pattern family a PatternReplacement
// captured: PII (email addresses) or plain numeric runs.
type PatternKind string

const (
	PatternNumeric PatternKind = "numeric"
	PatternPII     PatternKind = "pii"
)

// HtmlTagReplacement records one inline tag (or promoted void element)
// that the Inline HTML Codec pulled out of a segment's innerHTML.
// ClosePlaceholder and OriginalCloseTag are empty for void elements.
type HtmlTagReplacement struct {
	OpenPlaceholder  string
	ClosePlaceholder string
	OriginalOpenTag  string
	OriginalCloseTag string
	TagName          string
}

// Void reports whether this replacement represents a self-closing or
// promoted-void element (no matching close placeholder).
func (h HtmlTagReplacement) Void() bool {
	return h.ClosePlaceholder == ""
}

// PatternReplacement records one pattern family's captured originals,
// in the order they were replaced by placeholders, for a single
// segment value.
type PatternReplacement struct {
	Kind            PatternKind
	OriginalValues  []string
}

// Segment is one translatable unit extracted from a document.
type Segment struct {
	Kind Kind

	// Value is the normalised string sent for translation: HTML-tag
	// placeholders applied, then pattern placeholders applied, in that
	// fixed order (see inlinehtml and pattern packages).
	Value string

	// AttrName is set only when Kind == KindAttr.
	AttrName string

	// LeadingSpace / TrailingSpace hold whitespace trimmed from the
	// original text node so Apply can restore it exactly.
	LeadingSpace  string
	TrailingSpace string

	// HTML-segment-only fields: a back-reference to the element whose
	// innerHTML this segment represents, its tag-replacement table, and
	// the pristine original innerHTML (kept for deferred-mode pending
	// records).
	ElementRef     any
	HTMLReplacements []HtmlTagReplacement
	OriginalInnerHTML string

	// PatternReplacements holds the PII/numeric replacement tables
	// applied to Value, in application order (PII first, then numeric),
	// so restoration can walk them in reverse.
	PatternReplacements []PatternReplacement

	// IsUpperCase is set when the alphabetic portion of the pre-pattern
	// source was fully uppercase; restoration re-uppercases the result.
	IsUpperCase bool

	// Hash is the content-addressable digest of Value, computed once
	// pattern/HTML placeholders have been substituted in. It is the key
	// used against the Translation Cache.
	Hash string
}

// Translation is a tagged variant standing in for a nullable entry in
// what would otherwise be a homogeneous []string: either a translation
// is Ready, or it is still Pending (a cache miss not yet resolved).
type Translation struct {
	Ready bool
	Text  string
	Hash  string
}

// ReadyTranslation builds a resolved Translation.
func ReadyTranslation(text string) Translation {
	return Translation{Ready: true, Text: text}
}

// PendingTranslation builds an unresolved Translation carrying the hash
// a client should later poll for.
func PendingTranslation(hash string) Translation {
	return Translation{Ready: false, Hash: hash}
}

// PendingSegment is emitted in deferred mode to tell the client what to
// poll the control endpoint for, and how to patch the DOM once the
// translation lands.
type PendingSegment struct {
	Hash         string `json:"hash"`
	Kind         Kind   `json:"kind"`
	RawContent   string `json:"content"`
	AttrName     string `json:"attr,omitempty"`
	ShowSkeleton bool   `json:"-"`
}

// ApplyResult is what the Segment Applicator returns after re-walking
// the document: how many segments were written in full, plus the
// pending records for any cache misses (empty in full mode).
type ApplyResult struct {
	AppliedCount int
	Pending      []PendingSegment
}
