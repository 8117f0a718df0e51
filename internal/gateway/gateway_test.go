package gateway_test

import (
	"context"
	"strings"
	"testing"

	"github.com/valpere/pantolingo/internal/gateway"
	"github.com/valpere/pantolingo/internal/translator"
)

// echoService translates by uppercasing each segment, preserving the
// batch separator so the gateway can recover per-value boundaries.
type echoService struct{ calls int }

func (e *echoService) Name() string { return "echo" }
func (e *echoService) Translate(_ context.Context, _ translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	e.calls++
	return &translator.ServiceResult{ServiceName: "echo", TranslatedText: strings.ToUpper(req.Text)}, nil
}
func (e *echoService) IsAvailable(_ context.Context) error                { return nil }
func (e *echoService) SupportedLanguages(_ context.Context) ([]string, error) { return nil, nil }

func TestTranslate_DeduplicatesAndReassembles(t *testing.T) {
	svc := &echoService{}
	gw := gateway.New(svc, translator.ServiceConfig{}, 0)

	out, usage, err := gw.Translate(context.Background(), []string{"hello", "world", "hello"}, "en", "es", nil, "")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(out) != 3 || out[0] != "HELLO" || out[1] != "WORLD" || out[2] != "HELLO" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if usage.Batches != 1 {
		t.Fatalf("expected 1 batch after dedup, got %d", usage.Batches)
	}
	if svc.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", svc.calls)
	}
}

func TestTranslate_EmptyInput(t *testing.T) {
	gw := gateway.New(&echoService{}, translator.ServiceConfig{}, 0)
	out, usage, err := gw.Translate(context.Background(), nil, "en", "es", nil, "")
	if err != nil || out != nil || usage.Batches != 0 {
		t.Fatalf("unexpected: out=%v usage=%+v err=%v", out, usage, err)
	}
}

func TestTranslate_SplitsLargeInputIntoBatches(t *testing.T) {
	svc := &echoService{}
	gw := gateway.New(svc, translator.ServiceConfig{}, 20)

	values := []string{"aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc"}
	out, usage, err := gw.Translate(context.Background(), values, "en", "es", nil, "")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if usage.Batches < 2 {
		t.Fatalf("expected values split across multiple small batches, got %d", usage.Batches)
	}
	for i, v := range values {
		if out[i] != strings.ToUpper(v) {
			t.Errorf("value %d: got %q, want %q", i, out[i], strings.ToUpper(v))
		}
	}
}
