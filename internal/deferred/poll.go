package deferred

import (
	"context"

	"github.com/valpere/pantolingo/internal/inlinehtml"
	"github.com/valpere/pantolingo/internal/pattern"
	"github.com/valpere/pantolingo/internal/segment"
)

// SegmentCache is the subset of the Translation Cache the poll endpoint
// needs (§4.7's lookupByHashes variant).
type SegmentCache interface {
	LookupByHashes(ctx context.Context, siteID, lang string, hashes []string) map[string]string
}

// PollItem mirrors the client's POST body shape: the hash to resolve,
// what kind of segment it was, and the raw (untranslated) content the
// applicator recorded so the codecs can be re-run to recover the
// replacement tables (§4.10).
type PollItem struct {
	Hash    string `json:"hash"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Attr    string `json:"attr,omitempty"`
}

// Resolve re-runs the Pattern Codec (and, for html items, the Inline
// HTML Codec) over each item's raw content to recover its replacement
// tables, looks up translations by hash, and restores pattern/HTML
// placeholders. The returned map contains only hashes whose translation
// is already cached (P8) — callers must never synthesize an empty string
// for a still-pending hash.
func Resolve(ctx context.Context, cache SegmentCache, siteID, lang string, items []PollItem) map[string]string {
	out := map[string]string{}
	if len(items) == 0 {
		return out
	}

	hashes := make([]string, len(items))
	for i, it := range items {
		hashes[i] = it.Hash
	}
	translated := cache.LookupByHashes(ctx, siteID, lang, hashes)

	for _, it := range items {
		raw, ok := translated[it.Hash]
		if !ok {
			continue
		}
		out[it.Hash] = restore(it, raw)
	}
	return out
}

func restore(it PollItem, translatedNormalised string) string {
	if segment.Kind(it.Kind) == segment.KindHTML {
		htmlRes := inlinehtml.HTMLToPlaceholders(it.Content, false)
		patRes := pattern.Apply(htmlRes.Text)
		withPatterns := pattern.Restore(translatedNormalised, patRes.Replacements, patRes.IsUpperCase)
		return inlinehtml.PlaceholdersToHTML(withPatterns, htmlRes.Replacements)
	}

	patRes := pattern.Apply(it.Content)
	return pattern.Restore(translatedNormalised, patRes.Replacements, patRes.IsUpperCase)
}

// Normalise re-derives the placeholdered value a PollItem's raw content
// would have produced at extraction time, by re-running the same codecs
// forward. Used both by Resolve (to recover replacement tables before
// restoring a cached translation) and by the orchestrator's deferred
// background jobs (to rebuild the exact value the Translator Gateway
// must see for a still-pending segment).
func Normalise(it PollItem) string {
	if segment.Kind(it.Kind) == segment.KindHTML {
		htmlRes := inlinehtml.HTMLToPlaceholders(it.Content, false)
		return pattern.Apply(htmlRes.Text).Normalised
	}
	return pattern.Apply(it.Content).Normalised
}
