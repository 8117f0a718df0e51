package store

import (
	"context"
	"fmt"
	"time"
)

// GlossaryEntry is one row of the glossary table, for admin listing.
type GlossaryEntry struct {
	ID         string
	SiteID     string
	SourceLang string
	TargetLang string
	SourceTerm string
	TargetTerm string
}

// ListGlossaryTerms returns every glossary entry matching the given
// filters; an empty filter matches any value (§4 "Glossary terms").
func (s *Store) ListGlossaryTerms(ctx context.Context, siteID, sourceLang, targetLang string) ([]GlossaryEntry, error) {
	query := `SELECT id, site_id, source_lang, target_lang, source_term, target_term FROM glossary WHERE 1=1`
	var args []any
	if siteID != "" {
		query += ` AND site_id = ?`
		args = append(args, siteID)
	}
	if sourceLang != "" {
		query += ` AND source_lang = ?`
		args = append(args, sourceLang)
	}
	if targetLang != "" {
		query += ` AND target_lang = ?`
		args = append(args, targetLang)
	}
	query += ` ORDER BY site_id, source_term`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list glossary: %w", err)
	}
	defer rows.Close()

	var out []GlossaryEntry
	for rows.Next() {
		var e GlossaryEntry
		if err := rows.Scan(&e.ID, &e.SiteID, &e.SourceLang, &e.TargetLang, &e.SourceTerm, &e.TargetTerm); err != nil {
			return nil, fmt.Errorf("store: scan glossary row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CacheStats summarises the translation cache for the admin CLI.
type CacheStats struct {
	SegmentCount  int
	PathnameCount int
	SiteCount     int
}

// Stats reports aggregate cache size, for "pantolingo cache stats".
func (s *Store) Stats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM segment_translations`)
	if err := row.Scan(&stats.SegmentCount); err != nil {
		return stats, fmt.Errorf("store: count segments: %w", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pathname_translations`)
	if err := row.Scan(&stats.PathnameCount); err != nil {
		return stats, fmt.Errorf("store: count pathnames: %w", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites`)
	if err := row.Scan(&stats.SiteCount); err != nil {
		return stats, fmt.Errorf("store: count sites: %w", err)
	}
	return stats, nil
}

// SegmentEntry is one row of the segment cache, for admin listing/export.
type SegmentEntry struct {
	SiteID         string
	TargetLang     string
	Hash           string
	Kind           string
	TranslatedText string
	UsageCount     int
	LastUsed       time.Time
}

// ListSegments returns cached segment translations, optionally filtered
// by site and/or language (empty string matches any), for "pantolingo
// cache list" and "pantolingo cache export".
func (s *Store) ListSegments(ctx context.Context, siteID, lang string) ([]SegmentEntry, error) {
	query := `SELECT site_id, target_lang, hash, kind, translated_text, usage_count, last_used FROM segment_translations WHERE 1=1`
	var args []any
	if siteID != "" {
		query += ` AND site_id = ?`
		args = append(args, siteID)
	}
	if lang != "" {
		query += ` AND target_lang = ?`
		args = append(args, lang)
	}
	query += ` ORDER BY site_id, target_lang, hash`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list segments: %w", err)
	}
	defer rows.Close()

	var out []SegmentEntry
	for rows.Next() {
		var e SegmentEntry
		if err := rows.Scan(&e.SiteID, &e.TargetLang, &e.Hash, &e.Kind, &e.TranslatedText, &e.UsageCount, &e.LastUsed); err != nil {
			return nil, fmt.Errorf("store: scan segment row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearSegments deletes cached segment translations matching the given
// filters (empty string matches any) and reports how many rows were
// removed — the admin escape hatch for a bad cached translation when a
// site's cache-bypass window (SiteConfig.CacheDisabledUntil) alone isn't
// enough.
func (s *Store) ClearSegments(ctx context.Context, siteID, lang string) (int64, error) {
	query := `DELETE FROM segment_translations WHERE 1=1`
	var args []any
	if siteID != "" {
		query += ` AND site_id = ?`
		args = append(args, siteID)
	}
	if lang != "" {
		query += ` AND target_lang = ?`
		args = append(args, lang)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("store: clear segments: %w", err)
	}
	return res.RowsAffected()
}
