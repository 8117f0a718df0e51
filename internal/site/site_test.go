package site_test

import (
	"context"
	"testing"

	"github.com/valpere/pantolingo/internal/site"
)

type stubLoader struct {
	calls  int
	cfg    site.SiteConfig
	found  bool
	err    error
}

func (s *stubLoader) Load(_ context.Context, hostname string) (site.SiteConfig, bool, error) {
	s.calls++
	return s.cfg, s.found, s.err
}

func TestResolve_CachesPositiveResult(t *testing.T) {
	loader := &stubLoader{cfg: site.SiteConfig{SiteID: "s1", TargetLang: "es"}, found: true}
	r := site.New(loader, 0)

	cfg, found, err := r.Resolve(context.Background(), "es.example.com:443")
	if err != nil || !found || cfg.SiteID != "s1" {
		t.Fatalf("unexpected result: cfg=%+v found=%v err=%v", cfg, found, err)
	}

	if _, _, _ = r.Resolve(context.Background(), "es.example.com"); loader.calls != 1 {
		t.Fatalf("expected 1 loader call after cache hit, got %d", loader.calls)
	}
}

func TestResolve_CachesNegativeResult(t *testing.T) {
	loader := &stubLoader{found: false}
	r := site.New(loader, 0)

	_, found, err := r.Resolve(context.Background(), "unknown.example.com")
	if err != nil || found {
		t.Fatalf("expected not-found, got found=%v err=%v", found, err)
	}
	_, _, _ = r.Resolve(context.Background(), "unknown.example.com")
	if loader.calls != 1 {
		t.Fatalf("expected negative result cached, loader called %d times", loader.calls)
	}
}

func TestResolve_StripsPortAndLowercases(t *testing.T) {
	loader := &stubLoader{cfg: site.SiteConfig{SiteID: "s1"}, found: true}
	r := site.New(loader, 0)

	if _, _, err := r.Resolve(context.Background(), "ES.Example.com:8443"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	_, found, _ := r.Resolve(context.Background(), "es.example.com")
	if !found || loader.calls != 1 {
		t.Fatalf("expected host normalisation to share one cache entry, calls=%d found=%v", loader.calls, found)
	}
}

func TestResolve_LoaderErrorPropagates(t *testing.T) {
	loader := &stubLoader{err: errBoom}
	r := site.New(loader, 0)
	if _, _, err := r.Resolve(context.Background(), "x.example.com"); err == nil {
		t.Fatalf("expected error")
	}
}

var errBoom = &stubError{"boom"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }
