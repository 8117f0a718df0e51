// Package pathresolver implements the Path Resolver (C2, §4.2): given an
// inbound request path, decide which path to fetch from the origin.
// Pathnames are normalised and denormalised with the same Pattern Codec
// (§4.6) used for text segments, so a numbered path segment like
// "/room/12" round-trips through the cache exactly like "Room 12 seats".
package pathresolver

import (
	"context"
	"fmt"

	"github.com/valpere/pantolingo/internal/pattern"
)

// ReverseLookup is the Translation Cache's pathname reverse index
// (§4.7): given a site, language, and normalised *translated* path,
// return the normalised *original* path it denormalises to.
type ReverseLookup interface {
	LookupReversePathname(ctx context.Context, siteID, lang, normalisedTranslatedPath string) (normalisedOriginalPath string, found bool, err error)
}

// Result is the outcome of resolving one inbound path.
type Result struct {
	// OriginPath is the path to use when fetching from the origin.
	OriginPath string
	// WasReverseTranslated is true when the inbound path matched a known
	// translated form and OriginPath was recovered from the reverse map.
	WasReverseTranslated bool
}

// Resolve normalises inboundPath, consults lookup's reverse index, and
// returns the path to fetch from the origin. The root path is always
// left untouched (§4.2). Reverse resolution runs unconditionally,
// independent of the site's translatePaths setting, so a bookmarked
// translated URL always resolves.
func Resolve(ctx context.Context, lookup ReverseLookup, siteID, lang, inboundPath string) (Result, error) {
	if inboundPath == "" || inboundPath == "/" {
		return Result{OriginPath: "/"}, nil
	}

	norm := pattern.Apply(inboundPath)

	originalNormalised, found, err := lookup.LookupReversePathname(ctx, siteID, lang, norm.Normalised)
	if err != nil {
		return Result{}, fmt.Errorf("pathresolver: reverse lookup: %w", err)
	}
	if !found {
		return Result{OriginPath: inboundPath}, nil
	}

	originPath := pattern.Restore(originalNormalised, norm.Replacements, norm.IsUpperCase)
	return Result{OriginPath: originPath, WasReverseTranslated: true}, nil
}

// Normalise exposes the same pattern-codec normalisation Resolve uses,
// for callers (e.g. the orchestrator's forward link rewriting and the
// Translation Cache's upsert path) that need to compute a pathname's
// cache key independently.
func Normalise(path string) pattern.Result {
	return pattern.Apply(path)
}
