// Package site implements the Site Resolver (C1, §4.1): mapping an
// inbound hostname to a SiteConfig through a short-TTL cache, with
// negative results cached too so an unconfigured hostname being hammered
// never reaches the backing store on every request. The cache is backed
// by hashicorp/golang-lru's expirable variant, the same family of
// process-local, read-mostly cache the rest of the pack reaches for
// (xiaolin593-ai-gateway carries golang-lru in its dependency graph).
package site

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// TTL is how long both positive and negative resolutions are cached
// before the next lookup re-consults the Loader (§4.1: "≈60 s").
const TTL = 60 * time.Second

// SiteConfig is everything the rest of the pipeline needs to know about
// one configured site.
type SiteConfig struct {
	SiteID            string
	OriginHostname    string
	SourceLang        string
	TargetLang        string
	SkipWords         []string
	SkipSelectors     []string
	SkipPathPatterns  []string
	TranslatePaths    bool
	DeferredEnabled   bool
	CacheDisabledUntil time.Time
}

// CacheDisabled reports whether the site's cache-bypass window is
// currently in effect.
func (c SiteConfig) CacheDisabled() bool {
	return !c.CacheDisabledUntil.IsZero() && time.Now().Before(c.CacheDisabledUntil)
}

// Loader is the out-of-scope persistence collaborator: a single keyed
// lookup by inbound hostname. found is false, not an error, when the
// hostname simply has no configured site.
type Loader interface {
	Load(ctx context.Context, hostname string) (cfg SiteConfig, found bool, err error)
}

type entry struct {
	cfg   SiteConfig
	found bool
}

// Resolver wraps a Loader with a TTL cache that remembers both hits and
// misses (§4.1). It is safe for concurrent use.
type Resolver struct {
	loader Loader
	cache  *lru.LRU[string, entry]
}

// New builds a Resolver over loader. maxEntries bounds memory use; pass 0
// for a reasonable default.
func New(loader Loader, maxEntries int) *Resolver {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &Resolver{
		loader: loader,
		cache:  lru.NewLRU[string, entry](maxEntries, nil, TTL),
	}
}

// Resolve maps an inbound hostname (any port suffix is stripped first, by
// NormaliseHostname) to its SiteConfig. found is false when the
// hostname is not configured, in which case the orchestrator must serve
// the static "not configured" page instead of proxying anything.
func (r *Resolver) Resolve(ctx context.Context, hostname string) (cfg SiteConfig, found bool, err error) {
	hostname = NormaliseHostname(hostname)

	if e, ok := r.cache.Get(hostname); ok {
		return e.cfg, e.found, nil
	}

	cfg, found, err = r.loader.Load(ctx, hostname)
	if err != nil {
		return SiteConfig{}, false, fmt.Errorf("site: load %q: %w", hostname, err)
	}
	r.cache.Add(hostname, entry{cfg: cfg, found: found})
	return cfg, found, nil
}

// Invalidate drops a cached entry immediately, for admin-triggered
// config changes that should not wait out the TTL.
func (r *Resolver) Invalidate(hostname string) {
	r.cache.Remove(NormaliseHostname(hostname))
}

// NormaliseHostname strips a trailing :port suffix and lower-cases the
// host, the two things about an inbound Host header that must not affect
// site resolution.
func NormaliseHostname(hostname string) string {
	if i := strings.LastIndexByte(hostname, ':'); i >= 0 {
		hostname = hostname[:i]
	}
	return strings.ToLower(hostname)
}
