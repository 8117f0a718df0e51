package deferred_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/pantolingo/internal/deferred"
)

func TestRegistry_CheckAndSet_AtMostOnce(t *testing.T) {
	reg := deferred.NewRegistry(time.Minute)
	key := deferred.InFlightKey{SiteID: "s1", Lang: "es", Hash: "h1"}

	if already := reg.CheckAndSet(key); already {
		t.Fatalf("first CheckAndSet should not observe already-in-flight")
	}
	if already := reg.CheckAndSet(key); !already {
		t.Fatalf("second CheckAndSet should observe already-in-flight")
	}

	reg.Unregister(key)
	if already := reg.CheckAndSet(key); already {
		t.Fatalf("after Unregister, key should be fresh")
	}
}

func TestRegistry_ConcurrentCheckAndSet_ExactlyOneWinner(t *testing.T) {
	reg := deferred.NewRegistry(time.Minute)
	key := deferred.InFlightKey{SiteID: "s1", Lang: "es", Hash: "h1"}

	var winners int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if already := reg.CheckAndSet(key); !already {
				atomic.AddInt64(&winners, 1)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}
}

func TestRegistry_ExpiredEntryCanBeReacquired(t *testing.T) {
	reg := deferred.NewRegistry(1 * time.Millisecond)
	key := deferred.InFlightKey{SiteID: "s1", Lang: "es", Hash: "h1"}

	reg.CheckAndSet(key)
	time.Sleep(5 * time.Millisecond)

	if already := reg.CheckAndSet(key); already {
		t.Fatalf("expired entry should be reacquirable")
	}
}

func TestPool_RunsEnqueuedJobs(t *testing.T) {
	pool := deferred.NewPool(2, 8)
	var done int64
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		pool.Enqueue(func(_ context.Context) {
			atomic.AddInt64(&done, 1)
			wg.Done()
		})
	}
	wg.Wait()
	pool.Shutdown(time.Second)

	if done != 3 {
		t.Fatalf("expected 3 jobs run, got %d", done)
	}
}

type stubCache struct{ translations map[string]string }

func (s stubCache) LookupByHashes(_ context.Context, _, _ string, hashes []string) map[string]string {
	out := map[string]string{}
	for _, h := range hashes {
		if v, ok := s.translations[h]; ok {
			out[h] = v
		}
	}
	return out
}

func TestResolve_OnlyReturnsReadyHashes(t *testing.T) {
	cache := stubCache{translations: map[string]string{"h1": "Hola"}}
	items := []deferred.PollItem{
		{Hash: "h1", Kind: "text", Content: "Hello"},
		{Hash: "h2", Kind: "text", Content: "World"},
	}
	out := deferred.Resolve(context.Background(), cache, "s1", "es", items)
	if len(out) != 1 || out["h1"] != "Hola" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if _, ok := out["h2"]; ok {
		t.Fatalf("h2 must be absent, not an empty string")
	}
}

func TestResolve_RestoresPatternPlaceholders(t *testing.T) {
	cache := stubCache{translations: map[string]string{"h1": "Precio [N1] USD"}}
	items := []deferred.PollItem{{Hash: "h1", Kind: "text", Content: "Price 123.45 USD"}}
	out := deferred.Resolve(context.Background(), cache, "s1", "es", items)
	if out["h1"] != "Precio 123.45 USD" {
		t.Fatalf("got %q", out["h1"])
	}
}

func TestResolve_RestoresHTMLPlaceholders(t *testing.T) {
	cache := stubCache{translations: map[string]string{"h1": "Hola [HB1]mundo[/HB1]"}}
	items := []deferred.PollItem{{Hash: "h1", Kind: "html", Content: "Hello <strong>world</strong>"}}
	out := deferred.Resolve(context.Background(), cache, "s1", "es", items)
	if out["h1"] != "Hola <strong>mundo</strong>" {
		t.Fatalf("got %q", out["h1"])
	}
}

func TestClientScript_Embedded(t *testing.T) {
	if deferred.ClientScript == "" {
		t.Fatalf("expected embedded client script to be non-empty")
	}
}
