// Package store implements the Translation Cache (C7, §4.7): a SQLite-backed,
// batched lookup/upsert surface over two keyspaces — translated segments
// keyed by (site, lang, hash) and pathnames keyed by (site, lang,
// normalised path) with a bidirectional index — plus the glossary and
// fuzzy-match supplements for near-duplicate reuse. Every segment and
// pathname cache method, and GetGlossaryTerms, is fail-open (§4.7): a database error
// is logged and turned into an empty result rather than propagated,
// because a cold cache must never turn into a 5xx. The glossary-editing,
// site and admin methods return their errors.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Store wraps the SQLite connection pool. All exported methods are safe
// for concurrent use (database/sql pools internally).
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens (creating if necessary) the SQLite database at dbPath and
// runs the schema migration.
func New(dbPath string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS segment_translations (
		site_id TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		hash TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		usage_count INTEGER DEFAULT 1,
		PRIMARY KEY (site_id, target_lang, hash)
	);

	CREATE TABLE IF NOT EXISTS pathname_translations (
		site_id TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		normalised_original TEXT NOT NULL,
		normalised_translated TEXT NOT NULL,
		view_count INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (site_id, target_lang, normalised_original)
	);

	CREATE INDEX IF NOT EXISTS idx_pathname_reverse
		ON pathname_translations(site_id, target_lang, normalised_translated);

	-- glossary holds per-site terminology overrides, injected into the
	-- Translator Gateway's prompt for consistent rendering of brand and
	-- domain terms.
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(site_id, source_lang, target_lang, source_term)
	);

	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(site_id, source_lang, target_lang);

	-- sites is the site-config table the Site Resolver's Loader reads
	-- through (§4.1); skip_words/skip_selectors/skip_path_patterns are
	-- stored as newline-joined lists to keep repeatable CLI flags in a
	-- single column.
	CREATE TABLE IF NOT EXISTS sites (
		site_id TEXT PRIMARY KEY,
		origin_hostname TEXT NOT NULL UNIQUE,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		skip_words TEXT NOT NULL DEFAULT '',
		skip_selectors TEXT NOT NULL DEFAULT '',
		skip_path_patterns TEXT NOT NULL DEFAULT '',
		translate_paths INTEGER NOT NULL DEFAULT 0,
		deferred_enabled INTEGER NOT NULL DEFAULT 0,
		cache_disabled_until TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sites_hostname ON sites(origin_hostname);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- Segment (text/attr/html) translations --------------------------------

// Lookup performs a single batched round trip, returning translations for
// whichever of hashes are cached. Fail-open: a database error yields an
// empty map rather than an error (§4.7).
func (s *Store) Lookup(ctx context.Context, siteID, lang string, hashes []string) map[string]string {
	out := map[string]string{}
	if len(hashes) == 0 {
		return out
	}

	query, args := inClauseQuery(
		`SELECT hash, translated_text FROM segment_translations WHERE site_id = ? AND target_lang = ? AND hash IN (`,
		siteID, lang, hashes)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.Warn("segment cache lookup failed, treating as empty", zap.Error(err))
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var hash, text string
		if err := rows.Scan(&hash, &text); err != nil {
			s.log.Warn("segment cache row scan failed", zap.Error(err))
			continue
		}
		out[hash] = text
	}
	return out
}

// LookupByHashes is the poll-endpoint variant of Lookup — identical
// semantics, named separately to match the Deferred Coordinator's public
// contract (§4.7).
func (s *Store) LookupByHashes(ctx context.Context, siteID, lang string, hashes []string) map[string]string {
	return s.Lookup(ctx, siteID, lang, hashes)
}

// SegmentPair is one (hash, translated text) upsert entry.
type SegmentPair struct {
	Hash string
	Text string
	Kind string
}

// Upsert batches an insert of new translations. Conflicts on
// (site, lang, hash) are no-ops — the first-written translation wins
// (§4.7, Open Question: "first wins; updates are an admin action").
// Fail-open: errors are logged and dropped.
func (s *Store) Upsert(ctx context.Context, siteID, lang string, pairs []SegmentPair) {
	if len(pairs) == 0 {
		return
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.log.Warn("segment cache upsert: begin tx failed", zap.Error(err))
		return
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO segment_translations (site_id, target_lang, hash, translated_text, kind)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(site_id, target_lang, hash) DO NOTHING`)
	if err != nil {
		s.log.Warn("segment cache upsert: prepare failed", zap.Error(err))
		return
	}
	defer stmt.Close()

	for _, p := range pairs {
		if _, err := stmt.ExecContext(ctx, siteID, lang, p.Hash, p.Text, p.Kind); err != nil {
			s.log.Warn("segment cache upsert: row failed", zap.String("hash", p.Hash), zap.Error(err))
		}
	}
	if err := tx.Commit(); err != nil {
		s.log.Warn("segment cache upsert: commit failed", zap.Error(err))
	}
}

// RefreshLastUsed bumps usage_count/last_used for hashes that were served
// from cache on this request, so eviction policy (when the admin surface
// adds one) can favour recently useful entries.
func (s *Store) RefreshLastUsed(ctx context.Context, siteID, lang string, hashes []string) {
	if len(hashes) == 0 {
		return
	}
	query, args := inClauseQuery(
		`UPDATE segment_translations SET usage_count = usage_count + 1, last_used = CURRENT_TIMESTAMP
		 WHERE site_id = ? AND target_lang = ? AND hash IN (`,
		siteID, lang, hashes)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.log.Warn("segment cache last-used refresh failed", zap.Error(err))
	}
}

// --- Pathnames --------------------------------------------------------------

// LookupPathname returns a single pathname's translation, forward
// direction (original → translated).
func (s *Store) LookupPathname(ctx context.Context, siteID, lang, normalisedOriginal string) (string, bool) {
	var translated string
	err := s.db.QueryRowContext(ctx,
		`SELECT normalised_translated FROM pathname_translations WHERE site_id = ? AND target_lang = ? AND normalised_original = ?`,
		siteID, lang, normalisedOriginal).Scan(&translated)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		s.log.Warn("pathname lookup failed", zap.Error(err))
		return "", false
	}
	return translated, true
}

// LookupReversePathname implements pathresolver.ReverseLookup: translated
// → original, used unconditionally on every inbound request (§4.2).
func (s *Store) LookupReversePathname(ctx context.Context, siteID, lang, normalisedTranslated string) (string, bool, error) {
	var original string
	err := s.db.QueryRowContext(ctx,
		`SELECT normalised_original FROM pathname_translations WHERE site_id = ? AND target_lang = ? AND normalised_translated = ?`,
		siteID, lang, normalisedTranslated).Scan(&original)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		// Fail-open per §4.7: the caller treats this the same as a miss.
		s.log.Warn("reverse pathname lookup failed", zap.Error(err))
		return "", false, nil
	}
	return original, true, nil
}

// BatchLookupPathnames resolves many original paths to their translated
// forms in one round trip.
func (s *Store) BatchLookupPathnames(ctx context.Context, siteID, lang string, normalisedOriginals []string) map[string]string {
	out := map[string]string{}
	if len(normalisedOriginals) == 0 {
		return out
	}
	query, args := inClauseQuery(
		`SELECT normalised_original, normalised_translated FROM pathname_translations WHERE site_id = ? AND target_lang = ? AND normalised_original IN (`,
		siteID, lang, normalisedOriginals)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.Warn("batch pathname lookup failed", zap.Error(err))
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var orig, trans string
		if err := rows.Scan(&orig, &trans); err != nil {
			continue
		}
		out[orig] = trans
	}
	return out
}

// PathnamePair is one (original, translated) upsert entry.
type PathnamePair struct {
	NormalisedOriginal   string
	NormalisedTranslated string
}

// UpsertPathnames batches new pathname translations, populating both the
// forward and reverse indices (a single row serves both — the reverse
// index is just a second query pattern over the same table).
func (s *Store) UpsertPathnames(ctx context.Context, siteID, lang string, pairs []PathnamePair) {
	if len(pairs) == 0 {
		return
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.log.Warn("pathname upsert: begin tx failed", zap.Error(err))
		return
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pathname_translations (site_id, target_lang, normalised_original, normalised_translated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(site_id, target_lang, normalised_original) DO NOTHING`)
	if err != nil {
		s.log.Warn("pathname upsert: prepare failed", zap.Error(err))
		return
	}
	defer stmt.Close()

	for _, p := range pairs {
		if _, err := stmt.ExecContext(ctx, siteID, lang, p.NormalisedOriginal, p.NormalisedTranslated); err != nil {
			s.log.Warn("pathname upsert: row failed", zap.String("path", p.NormalisedOriginal), zap.Error(err))
		}
	}
	if err := tx.Commit(); err != nil {
		s.log.Warn("pathname upsert: commit failed", zap.Error(err))
	}
}

// IncrementPathViews bumps the per-path view counter for one page-view
// accounting update (§4.11 step 6).
func (s *Store) IncrementPathViews(ctx context.Context, siteID, lang, normalisedOriginal string) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pathname_translations SET view_count = view_count + 1, last_used = CURRENT_TIMESTAMP
		 WHERE site_id = ? AND target_lang = ? AND normalised_original = ?`,
		siteID, lang, normalisedOriginal)
	if err != nil {
		s.log.Warn("path view increment failed", zap.Error(err))
	}
}

// --- Glossary ---------------------------------------------------------------

// AddGlossaryTerm inserts or replaces a per-site glossary entry.
func (s *Store) AddGlossaryTerm(ctx context.Context, siteID, sourceLang, targetLang, sourceTerm, targetTerm string) error {
	id := fmt.Sprintf("gl_%s_%d", siteID, time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO glossary (id, site_id, source_lang, target_lang, source_term, target_term)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(site_id, source_lang, target_lang, source_term) DO UPDATE SET target_term = excluded.target_term`,
		id, siteID, sourceLang, targetLang, sourceTerm, targetTerm)
	return err
}

// GetGlossaryTerms returns a site's active glossary terms as a
// source-term → target-term map, ready to embed in a translation prompt.
func (s *Store) GetGlossaryTerms(ctx context.Context, siteID, sourceLang, targetLang string) map[string]string {
	terms := map[string]string{}
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_term, target_term FROM glossary WHERE site_id = ? AND source_lang = ? AND target_lang = ?`,
		siteID, sourceLang, targetLang)
	if err != nil {
		s.log.Warn("glossary lookup failed", zap.Error(err))
		return terms
	}
	defer rows.Close()
	for rows.Next() {
		var src, tgt string
		if err := rows.Scan(&src, &tgt); err != nil {
			continue
		}
		terms[src] = tgt
	}
	return terms
}

// DeleteGlossaryTerm removes a glossary entry by ID.
func (s *Store) DeleteGlossaryTerm(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM glossary WHERE id = ?`, id)
	return err
}

// --- Fuzzy fallback ----------------------------------------------------------

// FuzzyMatch finds the best match for normalisedValue among candidates
// (typically the other cache-miss segments of the same request), returning
// the candidate's hash when its similarity reaches threshold. Operates over
// an explicit candidate set instead of a full table scan: this cache is
// hash-keyed, not text-keyed, so there is no source-text column to scan.
func FuzzyMatch(normalisedValue string, candidates map[string]string, threshold float64) (hash string, found bool) {
	if threshold <= 0 {
		return "", false
	}
	normalised := norm.NFC.String(strings.TrimSpace(normalisedValue))
	bestScore := 0.0
	for candHash, candText := range candidates {
		score := stringSimilarity(normalised, candText)
		if score >= threshold && score > bestScore {
			bestScore = score
			hash = candHash
			found = true
		}
	}
	return hash, found
}

// levenshtein returns the edit distance between two strings (rune-aware),
// using a space-optimised two-row DP.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
			} else {
				min := prev[j]
				if prev[j-1] < min {
					min = prev[j-1]
				}
				if curr[j-1] < min {
					min = curr[j-1]
				}
				curr[j] = min + 1
			}
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

// stringSimilarity returns a similarity score in [0, 1] (1 = identical).
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// inClauseQuery appends len(values) placeholders to prefix (which must
// end right before the opening "(" of an IN clause) and returns the
// finished query plus its full argument list.
func inClauseQuery(prefix, siteID, lang string, values []string) (string, []any) {
	args := make([]any, 0, len(values)+2)
	args = append(args, siteID, lang)
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args = append(args, v)
	}
	return prefix + strings.Join(placeholders, ",") + ")", args
}
