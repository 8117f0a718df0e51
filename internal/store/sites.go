package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/pantolingo/internal/site"
)

// Load implements site.Loader: a single keyed lookup by inbound hostname
// for the Site Resolver's TTL cache to consult on a miss (§4.1).
func (s *Store) Load(ctx context.Context, hostname string) (site.SiteConfig, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT site_id, origin_hostname, source_lang, target_lang,
		       skip_words, skip_selectors, skip_path_patterns,
		       translate_paths, deferred_enabled, cache_disabled_until
		FROM sites WHERE origin_hostname = ?`, hostname)

	var cfg site.SiteConfig
	var skipWords, skipSelectors, skipPaths string
	var translatePaths, deferredEnabled int
	var cacheDisabledUntil sql.NullTime

	err := row.Scan(&cfg.SiteID, &cfg.OriginHostname, &cfg.SourceLang, &cfg.TargetLang,
		&skipWords, &skipSelectors, &skipPaths,
		&translatePaths, &deferredEnabled, &cacheDisabledUntil)
	if err == sql.ErrNoRows {
		return site.SiteConfig{}, false, nil
	}
	if err != nil {
		return site.SiteConfig{}, false, fmt.Errorf("store: load site %q: %w", hostname, err)
	}

	cfg.SkipWords = splitList(skipWords)
	cfg.SkipSelectors = splitList(skipSelectors)
	cfg.SkipPathPatterns = splitList(skipPaths)
	cfg.TranslatePaths = translatePaths != 0
	cfg.DeferredEnabled = deferredEnabled != 0
	if cacheDisabledUntil.Valid {
		cfg.CacheDisabledUntil = cacheDisabledUntil.Time
	}
	return cfg, true, nil
}

// UpsertSite creates or replaces a site's configuration, keyed by SiteID.
// origin_hostname is unique too, so reusing a hostname under a different
// site ID returns an error.
func (s *Store) UpsertSite(ctx context.Context, cfg site.SiteConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sites (site_id, origin_hostname, source_lang, target_lang,
			skip_words, skip_selectors, skip_path_patterns,
			translate_paths, deferred_enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			origin_hostname = excluded.origin_hostname,
			source_lang = excluded.source_lang,
			target_lang = excluded.target_lang,
			skip_words = excluded.skip_words,
			skip_selectors = excluded.skip_selectors,
			skip_path_patterns = excluded.skip_path_patterns,
			translate_paths = excluded.translate_paths,
			deferred_enabled = excluded.deferred_enabled`,
		cfg.SiteID, cfg.OriginHostname, cfg.SourceLang, cfg.TargetLang,
		joinList(cfg.SkipWords), joinList(cfg.SkipSelectors), joinList(cfg.SkipPathPatterns),
		boolToInt(cfg.TranslatePaths), boolToInt(cfg.DeferredEnabled))
	if err != nil {
		return fmt.Errorf("store: upsert site %q: %w", cfg.SiteID, err)
	}
	return nil
}

// ListSites returns every configured site, ordered by site ID.
func (s *Store) ListSites(ctx context.Context) ([]site.SiteConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT site_id, origin_hostname, source_lang, target_lang,
		       skip_words, skip_selectors, skip_path_patterns,
		       translate_paths, deferred_enabled, cache_disabled_until
		FROM sites ORDER BY site_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list sites: %w", err)
	}
	defer rows.Close()

	var out []site.SiteConfig
	for rows.Next() {
		var cfg site.SiteConfig
		var skipWords, skipSelectors, skipPaths string
		var translatePaths, deferredEnabled int
		var cacheDisabledUntil sql.NullTime
		if err := rows.Scan(&cfg.SiteID, &cfg.OriginHostname, &cfg.SourceLang, &cfg.TargetLang,
			&skipWords, &skipSelectors, &skipPaths,
			&translatePaths, &deferredEnabled, &cacheDisabledUntil); err != nil {
			return nil, fmt.Errorf("store: scan site: %w", err)
		}
		cfg.SkipWords = splitList(skipWords)
		cfg.SkipSelectors = splitList(skipSelectors)
		cfg.SkipPathPatterns = splitList(skipPaths)
		cfg.TranslatePaths = translatePaths != 0
		cfg.DeferredEnabled = deferredEnabled != 0
		if cacheDisabledUntil.Valid {
			cfg.CacheDisabledUntil = cacheDisabledUntil.Time
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// RemoveSite deletes a site's configuration by ID.
func (s *Store) RemoveSite(ctx context.Context, siteID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE site_id = ?`, siteID)
	if err != nil {
		return fmt.Errorf("store: remove site %q: %w", siteID, err)
	}
	return nil
}

// SetCacheDisabledUntil sets or clears (zero time) a site's cache-bypass
// window, the admin escape hatch for a bad cached translation (§4.7).
func (s *Store) SetCacheDisabledUntil(ctx context.Context, siteID string, until time.Time) error {
	var arg any
	if !until.IsZero() {
		arg = until
	}
	_, err := s.db.ExecContext(ctx, `UPDATE sites SET cache_disabled_until = ? WHERE site_id = ?`, arg, siteID)
	if err != nil {
		return fmt.Errorf("store: set cache_disabled_until for %q: %w", siteID, err)
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func joinList(vs []string) string {
	return strings.Join(vs, "\n")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
