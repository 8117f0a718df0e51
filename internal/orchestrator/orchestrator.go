// Package orchestrator implements the Request Orchestrator (C11, §4.11):
// the single per-request pipeline that ties every other component
// together — resolve site, resolve path, fetch the origin, extract and
// hash segments, consult the cache, fan out whatever is missing to the
// Translator Gateway (synchronous mode) or to the background worker pool
// (deferred mode), apply translations, rewrite links, and respond.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/valpere/pantolingo/internal/applicator"
	"github.com/valpere/pantolingo/internal/deferred"
	"github.com/valpere/pantolingo/internal/extractor"
	"github.com/valpere/pantolingo/internal/fetcher"
	"github.com/valpere/pantolingo/internal/gateway"
	"github.com/valpere/pantolingo/internal/pathresolver"
	"github.com/valpere/pantolingo/internal/segment"
	"github.com/valpere/pantolingo/internal/site"
	"github.com/valpere/pantolingo/internal/store"
)

// SegmentCache is the subset of the Translation Cache the orchestrator
// drives directly for segment translations.
type SegmentCache interface {
	Lookup(ctx context.Context, siteID, lang string, hashes []string) map[string]string
	Upsert(ctx context.Context, siteID, lang string, pairs []store.SegmentPair)
	RefreshLastUsed(ctx context.Context, siteID, lang string, hashes []string)
}

// PathnameCache is the subset of the Translation Cache the orchestrator
// drives directly for pathname translations, plus the reverse index the
// Path Resolver needs.
type PathnameCache interface {
	pathresolver.ReverseLookup
	BatchLookupPathnames(ctx context.Context, siteID, lang string, normalisedOriginals []string) map[string]string
	UpsertPathnames(ctx context.Context, siteID, lang string, pairs []store.PathnamePair)
	IncrementPathViews(ctx context.Context, siteID, lang, normalisedOriginal string)
}

// GlossaryProvider supplies per-site glossary terms to embed in every
// Translator Gateway call.
type GlossaryProvider interface {
	GetGlossaryTerms(ctx context.Context, siteID, sourceLang, targetLang string) map[string]string
}

// Config wires an Orchestrator's collaborators. All fields are required
// except Scheme, the pool/registry pair and Log, which New fills with
// defaults, and NotConfiguredBody, which may be left empty.
type Config struct {
	Sites     *site.Resolver
	Segments  SegmentCache
	Pathnames PathnameCache
	Glossary  GlossaryProvider
	Gateway   *gateway.Gateway
	Fetch     fetcher.Client

	// Inflight and Pool back deferred mode's background translation
	// jobs (§4.10). Both default to a usable instance if nil.
	Inflight *deferred.Registry
	Pool     *deferred.Pool

	// Scheme is the scheme used to build the origin URL. Defaults to
	// "https".
	Scheme string

	// NotConfiguredBody is served, with a 404 status, when the inbound
	// Host header matches no site (§4.1).
	NotConfiguredBody []byte

	Log *zap.Logger
}

// Orchestrator runs the C11 pipeline for one inbound request at a time.
type Orchestrator struct {
	cfg Config
	log *zap.Logger
}

// New builds an Orchestrator from cfg, filling in defaults for optional
// fields.
func New(cfg Config) *Orchestrator {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Inflight == nil {
		cfg.Inflight = deferred.NewRegistry(0)
	}
	if cfg.Pool == nil {
		cfg.Pool = deferred.NewPool(0, 0)
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, log: cfg.Log}
}

// Request is one inbound HTTP request, already stripped to the fields
// the pipeline cares about.
type Request struct {
	Host     string
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Response is what the orchestrator hands back to the HTTP layer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Handle runs the full pipeline for req (§4.11).
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	cfg, found, err := o.cfg.Sites.Resolve(ctx, req.Host)
	if err != nil {
		return Response{}, fmt.Errorf("orchestrator: resolve site: %w", err)
	}
	if !found {
		return Response{
			StatusCode: http.StatusNotFound,
			Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
			Body:       o.cfg.NotConfiguredBody,
		}, nil
	}

	pathRes, err := pathresolver.Resolve(ctx, o.cfg.Pathnames, cfg.SiteID, cfg.TargetLang, req.Path)
	if err != nil {
		// Fail open: treat the inbound path as already-original rather
		// than failing the whole request over a reverse-lookup hiccup.
		pathRes = pathresolver.Result{OriginPath: req.Path}
	}

	originURL := o.cfg.Scheme + "://" + cfg.OriginHostname + pathRes.OriginPath
	if req.RawQuery != "" {
		originURL += "?" + req.RawQuery
	}

	fetchStart := time.Now()
	fetchRes, err := fetcher.Fetch(ctx, o.cfg.Fetch, req.Method, originURL, req.Header, req.Body, cfg.OriginHostname, req.Host)
	fetchElapsed := time.Since(fetchStart)
	if err != nil {
		return Response{}, fmt.Errorf("orchestrator: fetch origin: %w", err)
	}

	if fetchRes.RedirectLocation != "" {
		h := fetchRes.Header.Clone()
		h.Set("Location", fetchRes.RedirectLocation)
		o.logSummary(cfg, req, start, fetchElapsed, 0, 0, gateway.Usage{}, "redirect")
		return Response{StatusCode: fetchRes.StatusCode, Header: h}, nil
	}

	if !fetchRes.IsHTML {
		o.logSummary(cfg, req, start, fetchElapsed, 0, 0, gateway.Usage{}, "passthrough")
		return Response{StatusCode: fetchRes.StatusCode, Header: fetchRes.Header, Body: fetchRes.Body}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fetchRes.Body))
	if err != nil {
		o.log.Warn("html parse failed, forwarding body unchanged", zap.Error(err), zap.String("host", req.Host))
		o.logSummary(cfg, req, start, fetchElapsed, 0, 0, gateway.Usage{}, "parse-error")
		return Response{StatusCode: fetchRes.StatusCode, Header: fetchRes.Header, Body: fetchRes.Body}, nil
	}

	rules := extractor.CompileSkipRules(cfg.SkipSelectors)
	segments := extractor.Extract(doc, rules)
	for i := range segments {
		segments[i].Hash = segment.ComputeHash(segments[i].Value)
	}

	hashes := make([]string, len(segments))
	for i, s := range segments {
		hashes[i] = s.Hash
	}

	cached := map[string]string{}
	if !cfg.CacheDisabled() {
		cached = o.cfg.Segments.Lookup(ctx, cfg.SiteID, cfg.TargetLang, hashes)
	}

	missingHashes, missingValues := missingSegments(segments, cached)

	var linkPaths []string
	if cfg.TranslatePaths {
		linkPaths = collectLinkPaths(doc, cfg.OriginHostname)
	}
	pathCache := map[string]string{}
	if len(linkPaths) > 0 {
		pathCache = o.cfg.Pathnames.BatchLookupPathnames(ctx, cfg.SiteID, cfg.TargetLang, linkPaths)
	}
	missingPaths := missingPathnames(linkPaths, pathCache)

	deferredMode := cfg.DeferredEnabled && len(missingHashes) > 0

	var (
		usage         gateway.Usage
		newTranslated map[string]string
		newPaths      map[string]string
		pending       []segment.PendingSegment
	)

	if deferredMode {
		translations := buildMixedTranslations(segments, cached)
		applyRes, err := applicator.Apply(doc, rules, segments, translations)
		if err != nil {
			return Response{}, fmt.Errorf("orchestrator: apply: %w", err)
		}
		pending = applyRes.Pending
		injectDeferredAssets(doc, pending)
		o.dispatchDeferredJobs(cfg, pending)
	} else {
		glossary := o.cfg.Glossary.GetGlossaryTerms(ctx, cfg.SiteID, cfg.SourceLang, cfg.TargetLang)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if len(missingValues) == 0 {
				return nil
			}
			out, u, err := o.cfg.Gateway.Translate(gctx, missingValues, cfg.SourceLang, cfg.TargetLang, glossary, "")
			if err != nil {
				return fmt.Errorf("segment translation: %w", err)
			}
			usage = u
			newTranslated = map[string]string{}
			for i, h := range missingHashes {
				newTranslated[h] = out[i]
			}
			return nil
		})
		g.Go(func() error {
			if len(missingPaths) == 0 {
				return nil
			}
			out, _, err := o.cfg.Gateway.Translate(gctx, missingPaths, cfg.SourceLang, cfg.TargetLang, nil, "")
			if err != nil {
				return fmt.Errorf("pathname translation: %w", err)
			}
			newPaths = map[string]string{}
			for i, p := range missingPaths {
				newPaths[p] = out[i]
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			o.log.Warn("translation failed, serving untranslated original", zap.Error(err), zap.String("host", req.Host))
			h := fetchRes.Header.Clone()
			h.Set("X-Error", "translation-failed")
			o.logSummary(cfg, req, start, fetchElapsed, len(segments), 0, usage, "translation-error")
			return Response{StatusCode: fetchRes.StatusCode, Header: h, Body: fetchRes.Body}, nil
		}

		translations := make([]segment.Translation, len(segments))
		for i, s := range segments {
			if text, ok := cached[s.Hash]; ok {
				translations[i] = segment.ReadyTranslation(text)
				continue
			}
			translations[i] = segment.ReadyTranslation(newTranslated[s.Hash])
		}
		if _, err := applicator.Apply(doc, rules, segments, translations); err != nil {
			return Response{}, fmt.Errorf("orchestrator: apply: %w", err)
		}

		for orig, trans := range newPaths {
			pathCache[orig] = trans
		}
	}

	rewriteLinks(doc, cfg.OriginHostname, pathCache)
	addLanguageMetadata(doc, cfg.TargetLang)

	body, err := renderDocument(doc)
	if err != nil {
		return Response{}, fmt.Errorf("orchestrator: render document: %w", err)
	}

	header := fetchRes.Header.Clone()
	header.Set("Content-Type", "text/html; charset=utf-8")

	o.schedulePersistence(cfg, pathRes, hashes, cached, newTranslated, missingPaths, newPaths)
	o.logSummary(cfg, req, start, fetchElapsed, len(segments), len(missingHashes), usage, mode(deferredMode))

	return Response{StatusCode: fetchRes.StatusCode, Header: header, Body: body}, nil
}

func mode(deferredMode bool) string {
	if deferredMode {
		return "deferred"
	}
	return "sync"
}

// missingSegments returns, in first-seen order, the distinct hashes (and
// their source values) not present in cached.
func missingSegments(segments []segment.Segment, cached map[string]string) (hashes []string, values []string) {
	seen := map[string]bool{}
	for _, s := range segments {
		if _, ok := cached[s.Hash]; ok {
			continue
		}
		if seen[s.Hash] {
			continue
		}
		seen[s.Hash] = true
		hashes = append(hashes, s.Hash)
		values = append(values, s.Value)
	}
	return hashes, values
}

func missingPathnames(paths []string, cached map[string]string) []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range paths {
		if _, ok := cached[p]; ok {
			continue
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// buildMixedTranslations builds the deferred-mode translation list: Ready
// for cache hits, Pending for misses, in the same order as segments (I1).
func buildMixedTranslations(segments []segment.Segment, cached map[string]string) []segment.Translation {
	out := make([]segment.Translation, len(segments))
	for i, s := range segments {
		if text, ok := cached[s.Hash]; ok {
			out[i] = segment.ReadyTranslation(text)
			continue
		}
		out[i] = segment.PendingTranslation(s.Hash)
	}
	return out
}

// dispatchDeferredJobs enqueues one background job per still-unclaimed
// pending hash, deduplicating against concurrent requests for the same
// (site, lang, hash) via the in-flight registry (P7).
func (o *Orchestrator) dispatchDeferredJobs(cfg site.SiteConfig, pending []segment.PendingSegment) {
	var claimed []segment.PendingSegment
	for _, p := range pending {
		key := deferred.InFlightKey{SiteID: cfg.SiteID, Lang: cfg.TargetLang, Hash: p.Hash}
		if o.cfg.Inflight.CheckAndSet(key) {
			continue
		}
		claimed = append(claimed, p)
	}
	if len(claimed) == 0 {
		return
	}

	o.cfg.Pool.Enqueue(func(ctx context.Context) {
		o.translateAndPersistPending(ctx, cfg, claimed)
	})
}

func (o *Orchestrator) translateAndPersistPending(ctx context.Context, cfg site.SiteConfig, claimed []segment.PendingSegment) {
	defer func() {
		for _, p := range claimed {
			o.cfg.Inflight.Unregister(deferred.InFlightKey{SiteID: cfg.SiteID, Lang: cfg.TargetLang, Hash: p.Hash})
		}
	}()

	values := make([]string, len(claimed))
	for i, p := range claimed {
		values[i] = normalisedValueForPending(p)
	}

	glossary := o.cfg.Glossary.GetGlossaryTerms(ctx, cfg.SiteID, cfg.SourceLang, cfg.TargetLang)
	out, _, err := o.cfg.Gateway.Translate(ctx, values, cfg.SourceLang, cfg.TargetLang, glossary, "")
	if err != nil {
		o.log.Warn("deferred translation job failed", zap.Error(err), zap.String("site", cfg.SiteID))
		return
	}

	pairs := make([]store.SegmentPair, len(claimed))
	for i, p := range claimed {
		pairs[i] = store.SegmentPair{Hash: p.Hash, Text: out[i], Kind: string(p.Kind)}
	}
	o.cfg.Segments.Upsert(ctx, cfg.SiteID, cfg.TargetLang, pairs)
}

// normalisedValueForPending re-derives the placeholdered value the
// Translator Gateway must see, mirroring what the extractor originally
// sent for this segment, from the raw content the applicator recorded.
func normalisedValueForPending(p segment.PendingSegment) string {
	item := deferred.PollItem{Hash: p.Hash, Kind: string(p.Kind), Content: p.RawContent, Attr: p.AttrName}
	return deferred.Normalise(item)
}

func (o *Orchestrator) schedulePersistence(
	cfg site.SiteConfig,
	pathRes pathresolver.Result,
	hashes []string,
	cached map[string]string,
	newTranslated map[string]string,
	missingPaths []string,
	newPaths map[string]string,
) {
	o.cfg.Pool.Enqueue(func(ctx context.Context) {
		var hitHashes []string
		for _, h := range hashes {
			if _, ok := cached[h]; ok {
				hitHashes = append(hitHashes, h)
			}
		}
		if len(hitHashes) > 0 {
			o.cfg.Segments.RefreshLastUsed(ctx, cfg.SiteID, cfg.TargetLang, hitHashes)
		}
		if len(newTranslated) > 0 {
			pairs := make([]store.SegmentPair, 0, len(newTranslated))
			for hash, text := range newTranslated {
				pairs = append(pairs, store.SegmentPair{Hash: hash, Text: text})
			}
			o.cfg.Segments.Upsert(ctx, cfg.SiteID, cfg.TargetLang, pairs)
		}
		if len(newPaths) > 0 {
			pairs := make([]store.PathnamePair, 0, len(newPaths))
			for orig, trans := range newPaths {
				pairs = append(pairs, store.PathnamePair{NormalisedOriginal: orig, NormalisedTranslated: trans})
			}
			o.cfg.Pathnames.UpsertPathnames(ctx, cfg.SiteID, cfg.TargetLang, pairs)
		}
		if pathRes.OriginPath != "" {
			o.cfg.Pathnames.IncrementPathViews(ctx, cfg.SiteID, cfg.TargetLang, pathresolver.Normalise(pathRes.OriginPath).Normalised)
		}
	})
}

func (o *Orchestrator) logSummary(cfg site.SiteConfig, req Request, start time.Time, fetchElapsed time.Duration, segCount, missCount int, usage gateway.Usage, outcome string) {
	o.log.Info("request",
		zap.String("host", req.Host),
		zap.String("path", req.Path),
		zap.String("target_lang", cfg.TargetLang),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)),
		zap.Duration("fetch_elapsed", fetchElapsed),
		zap.Int("segments", segCount),
		zap.Int("cache_misses", missCount),
		zap.Int("gateway_batches", usage.Batches),
		zap.Int64("gateway_latency_ns", usage.TotalLatency),
	)
}

func renderDocument(doc *goquery.Document) ([]byte, error) {
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, doc.Nodes[0]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
