package pathresolver_test

import (
	"context"
	"testing"

	"github.com/valpere/pantolingo/internal/pathresolver"
)

type stubReverse struct {
	original string
	found    bool
}

func (s stubReverse) LookupReversePathname(_ context.Context, _, _, _ string) (string, bool, error) {
	return s.original, s.found, nil
}

func TestResolve_RootAlwaysPassesThrough(t *testing.T) {
	res, err := pathresolver.Resolve(context.Background(), stubReverse{}, "s1", "es", "/")
	if err != nil || res.OriginPath != "/" || res.WasReverseTranslated {
		t.Fatalf("unexpected: %+v err=%v", res, err)
	}
}

func TestResolve_UnknownPathTreatedAsOriginal(t *testing.T) {
	res, err := pathresolver.Resolve(context.Background(), stubReverse{found: false}, "s1", "es", "/acerca-de")
	if err != nil || res.WasReverseTranslated || res.OriginPath != "/acerca-de" {
		t.Fatalf("unexpected: %+v err=%v", res, err)
	}
}

func TestResolve_KnownTranslatedPathDenormalises(t *testing.T) {
	res, err := pathresolver.Resolve(context.Background(), stubReverse{original: "/room/[N1]", found: true}, "s1", "es", "/habitacion/12")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.WasReverseTranslated {
		t.Fatalf("expected reverse-translated")
	}
	if res.OriginPath != "/room/12" {
		t.Fatalf("got %q", res.OriginPath)
	}
}
