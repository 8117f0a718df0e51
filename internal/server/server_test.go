package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/valpere/pantolingo/internal/deferred"
	"github.com/valpere/pantolingo/internal/fetcher"
	"github.com/valpere/pantolingo/internal/gateway"
	"github.com/valpere/pantolingo/internal/orchestrator"
	"github.com/valpere/pantolingo/internal/server"
	"github.com/valpere/pantolingo/internal/site"
	"github.com/valpere/pantolingo/internal/store"
	"github.com/valpere/pantolingo/internal/translator"
)

type stubLoader struct {
	cfg   site.SiteConfig
	found bool
}

func (s stubLoader) Load(_ context.Context, hostname string) (site.SiteConfig, bool, error) {
	if hostname != site.NormaliseHostname(s.cfg.OriginHostname) {
		return site.SiteConfig{}, false, nil
	}
	return s.cfg, s.found, nil
}

type memSegments struct{ cache map[string]string }

func (m memSegments) Lookup(_ context.Context, _, _ string, hashes []string) map[string]string {
	return m.LookupByHashes(context.Background(), "", "", hashes)
}
func (m memSegments) LookupByHashes(_ context.Context, _, _ string, hashes []string) map[string]string {
	out := map[string]string{}
	for _, h := range hashes {
		if v, ok := m.cache[h]; ok {
			out[h] = v
		}
	}
	return out
}
func (m memSegments) Upsert(_ context.Context, _, _ string, _ []store.SegmentPair) {}
func (m memSegments) RefreshLastUsed(_ context.Context, _, _ string, _ []string)   {}

type memPathnames struct{}

func (memPathnames) LookupReversePathname(_ context.Context, _, _, _ string) (string, bool, error) {
	return "", false, nil
}
func (memPathnames) BatchLookupPathnames(_ context.Context, _, _ string, _ []string) map[string]string {
	return nil
}
func (memPathnames) UpsertPathnames(_ context.Context, _, _ string, _ []store.PathnamePair) {}
func (memPathnames) IncrementPathViews(_ context.Context, _, _, _ string)                    {}

type nopGlossary struct{}

func (nopGlossary) GetGlossaryTerms(_ context.Context, _, _, _ string) map[string]string { return nil }

type echoService struct{}

func (echoService) Name() string { return "echo" }
func (echoService) Translate(_ context.Context, _ translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	return &translator.ServiceResult{TranslatedText: strings.ToUpper(req.Text)}, nil
}
func (echoService) IsAvailable(_ context.Context) error                   { return nil }
func (echoService) SupportedLanguages(_ context.Context) ([]string, error) { return nil, nil }

func newTestServer(t *testing.T, origin *httptest.Server) *server.Server {
	t.Helper()
	cfg := site.SiteConfig{
		SiteID:         "s1",
		OriginHostname: strings.TrimPrefix(origin.URL, "http://"),
		SourceLang:     "en",
		TargetLang:     "es",
	}
	sites := site.New(stubLoader{cfg: cfg, found: true}, 0)
	segments := memSegments{cache: map[string]string{}}

	orch := orchestrator.New(orchestrator.Config{
		Sites:     sites,
		Segments:  segments,
		Pathnames: memPathnames{},
		Glossary:  nopGlossary{},
		Gateway:   gateway.New(echoService{}, translator.ServiceConfig{}, 0),
		Fetch:     fetcher.NewClient(),
		Pool:      deferred.NewPool(1, 8),
		Scheme:    "http",
	})
	return server.New(orch, sites, segments, nil)
}

func TestHealthz(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ignored"))
	}))
	defer origin.Close()

	s := newTestServer(t, origin)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body)
	}
}

func TestDeferredScript(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer origin.Close()

	s := newTestServer(t, origin)
	req := httptest.NewRequest(http.MethodGet, "/__pantolingo/deferred.js", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/javascript" {
		t.Fatalf("unexpected content-type: %s", rec.Header().Get("Content-Type"))
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected non-empty client script")
	}
}

func TestTranslatePoll_UnknownSegmentNotReady(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer origin.Close()

	s := newTestServer(t, origin)
	body := `{"segments":[{"hash":"deadbeef","kind":"text","content":"hello"}]}`
	req := httptest.NewRequest(http.MethodPost, "/__pantolingo/translate", strings.NewReader(body))
	req.Host = strings.TrimPrefix(origin.URL, "http://")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no ready hashes, got %v", out)
	}
}

func TestProxy_UnknownHostNotConfigured(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer origin.Close()

	s := newTestServer(t, origin)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "not-configured.example"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unconfigured host, got %d", rec.Code)
	}
}
