// Package gateway implements the Translator Gateway (C8, §4.8): given a
// list of cache-miss segment values, deduplicate, batch, invoke the
// configured translator.TranslationService, and reassemble a parallel
// result list in original order. It is the orchestrator's only contact
// point with the external LLM client.
package gateway

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/valpere/pantolingo/internal/chunker"
	"github.com/valpere/pantolingo/internal/translator"
	"github.com/valpere/pantolingo/internal/validator"
)

// MaxBatchChars bounds how much normalised text goes into a single
// service call, keeping batches inside typical LLM context windows.
const MaxBatchChars = 4000

// maxSingleValueChars is the point past which one segment value is split
// with internal/chunker before it is ever placed in a batch. A single
// oversized segment (a long article body extracted as one block) must
// not blow the whole batch past the backend's effective context window.
const maxSingleValueChars = 2000

// Gateway wraps one translation backend with the dedupe/batch/reassemble
// responsibilities the Translator Gateway owns. One Gateway is built per
// configured backend name at startup and reused across requests.
type Gateway struct {
	service  translator.TranslationService
	cfg      translator.ServiceConfig
	maxChars int

	// check, when non-nil, runs the post-translate language-sanity check
	// (§4.8: "a backend that silently ignores targetLang and echoes the
	// source must not poison the cache"). Off by default — constructing a
	// lingua-go detector is not free, and most deployments trust the
	// configured backend.
	check *validator.Validator
	log   *zap.Logger
}

// New builds a Gateway over service. maxChars overrides MaxBatchChars
// when positive.
func New(service translator.TranslationService, cfg translator.ServiceConfig, maxChars int) *Gateway {
	if maxChars <= 0 {
		maxChars = MaxBatchChars
	}
	return &Gateway{service: service, cfg: cfg, maxChars: maxChars, log: zap.NewNop()}
}

// WithLanguageCheck enables the post-translate language-sanity check,
// logging via log whenever a backend's output fails a plausibility check
// against targetLang (the translation is still returned — this is a
// diagnostic, not a retry: §4.8 leaves retry policy to the backend).
func (g *Gateway) WithLanguageCheck(check *validator.Validator, log *zap.Logger) *Gateway {
	g.check = check
	if log != nil {
		g.log = log
	}
	return g
}

// Usage aggregates per-call metadata the orchestrator logs once per
// request (§4.11: "number of translation batches and their elapsed").
type Usage struct {
	Batches      int
	TotalLatency int64 // nanoseconds, summed across batches
}

// Translate takes values in the order the caller wants results back in,
// deduplicates identical values before the external call, splits the
// unique set into batches under maxChars, invokes the backend once per
// batch, and reassembles results so translations[i] answers values[i].
// Failure semantics: if any batch fails after its own retry budget (owned
// by the backend, out of scope here), the whole call fails and the
// orchestrator must serve the original HTML with X-Error (§4.8).
func (g *Gateway) Translate(ctx context.Context, values []string, sourceLang, targetLang string, glossary map[string]string, previousContext string) ([]string, Usage, error) {
	if len(values) == 0 {
		return nil, Usage{}, nil
	}

	order := make([]string, 0, len(values))
	seen := map[string]bool{}
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			order = append(order, v)
		}
	}

	// Split any value too large for one batch slot into chunker pieces,
	// each translated like an ordinary value; chunkedParts remembers how
	// to rejoin them once resolved. Values carrying placeholder markers
	// are left whole — splitting could sever a [KIND n] token from its
	// closing tag.
	expanded := make([]string, 0, len(order))
	chunkedParts := map[string][]string{}
	for _, v := range order {
		if len(v) <= maxSingleValueChars || placeholderRe.MatchString(v) {
			expanded = append(expanded, v)
			continue
		}
		parts := chunker.Chunk(v, maxSingleValueChars)
		chunkedParts[v] = parts
		expanded = append(expanded, parts...)
	}

	batches := batchByChars(expanded, g.maxChars)
	resolved := map[string]string{}
	usage := Usage{}

	for _, batch := range batches {
		req := translator.TranslateRequest{
			Text:            joinForBatch(batch),
			SourceLang:      sourceLang,
			TargetLang:      targetLang,
			GlossaryTerms:   glossary,
			PreviousContext: previousContext,
			Instructions:    placeholderPreservationHint,
		}
		result, err := g.service.Translate(ctx, g.cfg, req)
		if err != nil {
			return nil, usage, fmt.Errorf("gateway: batch of %d values: %w", len(batch), err)
		}
		usage.Batches++
		usage.TotalLatency += int64(result.Latency)

		translatedParts := splitBatchResult(result.TranslatedText, batch)
		if len(translatedParts) != len(batch) {
			return nil, usage, fmt.Errorf("gateway: backend returned %d segments for a batch of %d", len(translatedParts), len(batch))
		}
		for i, original := range batch {
			resolved[original] = translatedParts[i]
		}
	}

	if g.check != nil {
		g.checkLanguage(resolved, targetLang)
	}

	out := make([]string, len(values))
	for i, v := range values {
		if parts, ok := chunkedParts[v]; ok {
			joined := make([]string, len(parts))
			for j, p := range parts {
				joined[j] = resolved[p]
			}
			out[i] = strings.Join(joined, " ")
			continue
		}
		out[i] = resolved[v]
	}
	return out, usage, nil
}

// placeholderRe matches a codec marker such as [N1] or [/HB2] — the same
// grammar internal/pattern and internal/inlinehtml emit.
var placeholderRe = regexp.MustCompile(`\[/?[A-Z]+[0-9]+\]`)

// checkLanguage runs the optional post-translate sanity check over every
// resolved value and logs a warning for anything implausible. It never
// alters resolved or fails the call — §4.8 has no retry budget here.
func (g *Gateway) checkLanguage(resolved map[string]string, targetLang string) {
	for original, translated := range resolved {
		if ok, err := g.check.IsValid(translated, targetLang); err != nil || !ok {
			g.log.Warn("translation failed language sanity check",
				zap.Error(err),
				zap.String("target_lang", targetLang),
				zap.Int("original_len", len(original)),
				zap.Int("translated_len", len(translated)))
		}
	}
}

// placeholderPreservationHint tells the LLM backend the inviolable rule
// governing every value this gateway ever sends it (§6: placeholder
// tokens survive translation verbatim).
const placeholderPreservationHint = "Bracketed tokens of the form [KIND n] or [/KIND n] are placeholders. " +
	"Copy them into the translation exactly, unchanged, in the same relative position, never translating or removing them."

// batchSeparator delimits individual values inside one batch call so a
// single backend invocation can carry many segments at once while still
// letting the gateway recover per-value boundaries from the response.
const batchSeparator = "\n<<<PANTOLINGO_SEGMENT_BREAK>>>\n"

func joinForBatch(batch []string) string {
	out := batch[0]
	for _, v := range batch[1:] {
		out += batchSeparator + v
	}
	return out
}

func splitBatchResult(text string, batch []string) []string {
	want := len(batch)
	parts := splitOn(text, batchSeparator)
	if len(parts) == want {
		return parts
	}
	// Backend dropped or merged the separator — degrade to returning the
	// whole response for the first value and the originals (untranslated)
	// for the rest, rather than silently misaligning the result set.
	out := make([]string, want)
	copy(out, batch)
	if want > 0 {
		out[0] = text
	}
	return out
}

func splitOn(text, sep string) []string {
	var parts []string
	for {
		i := indexOf(text, sep)
		if i < 0 {
			parts = append(parts, text)
			return parts
		}
		parts = append(parts, text[:i])
		text = text[i+len(sep):]
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// batchByChars groups values into batches whose combined length
// (including separators) stays under maxChars, never splitting a single
// value across batches.
func batchByChars(values []string, maxChars int) [][]string {
	var batches [][]string
	var current []string
	currentLen := 0

	for _, v := range values {
		addLen := len(v) + len(batchSeparator)
		if len(current) > 0 && currentLen+addLen > maxChars {
			batches = append(batches, current)
			current = nil
			currentLen = 0
		}
		current = append(current, v)
		currentLen += addLen
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
