package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/valpere/pantolingo/internal/fetcher"
)

func TestFetch_HTMLBodyBuffered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	res, err := fetcher.Fetch(context.Background(), fetcher.NewClient(), "GET", srv.URL, http.Header{}, nil, "origin.example.com", "es.example.com")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !res.IsHTML {
		t.Errorf("expected IsHTML true")
	}
	if string(res.Body) != "<html><body>hi</body></html>" {
		t.Errorf("unexpected body: %q", res.Body)
	}
}

func TestFetch_NonHTMLPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res, err := fetcher.Fetch(context.Background(), fetcher.NewClient(), "GET", srv.URL, http.Header{}, nil, "origin.example.com", "es.example.com")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.IsHTML {
		t.Errorf("expected IsHTML false for JSON")
	}
	if string(res.Body) != `{"ok":true}` {
		t.Errorf("unexpected body: %q", res.Body)
	}
}

func TestFetch_RedirectNotFollowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://origin.example.com/new-page")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	res, err := fetcher.Fetch(context.Background(), fetcher.NewClient(), "GET", srv.URL, http.Header{}, nil, "origin.example.com", "es.example.com")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", res.StatusCode)
	}
	if res.RedirectLocation != "https://es.example.com/new-page" {
		t.Fatalf("expected rewritten location, got %q", res.RedirectLocation)
	}
}

func TestIsHTMLContentType(t *testing.T) {
	cases := map[string]bool{
		"text/html":                 true,
		"text/html; charset=utf-8":  true,
		"application/xhtml+xml":     true,
		"application/json":          false,
		"image/png":                 false,
		"":                          false,
	}
	for ct, want := range cases {
		if got := fetcher.IsHTMLContentType(ct); got != want {
			t.Errorf("IsHTMLContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}
