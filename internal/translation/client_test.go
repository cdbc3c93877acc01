package translation_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"castsync/internal/logging"
	"castsync/internal/textnorm"
	"castsync/internal/translation"
)

type fakeEngine struct {
	results map[string]string
	err     error
	calls   [][]string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Translate(_ context.Context, texts []string, _ *translation.MediaContext) (map[string]string, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	out := make(map[string]string)
	for _, text := range texts {
		if v, ok := f.results[text]; ok {
			out[text] = v
		}
	}
	return out, f.err
}

func newClient(t *testing.T, engine translation.Engine) (*translation.Client, translation.Cache) {
	t.Helper()
	cache, err := translation.NewMemoryCache(64)
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}
	return translation.NewClient(cache, engine, textnorm.MustNew("Han"), logging.NewNop()), cache
}

func TestTranslateBatchFiltersAndPartitions(t *testing.T) {
	engine := &fakeEngine{results: map[string]string{"John Smith": "约翰·史密斯", "Hero": "英雄"}}
	client, cache := newClient(t, engine)
	ctx := context.Background()
	_ = cache.Put(ctx, "Jane Doe", "简·多伊", "")

	got, err := client.TranslateBatch(ctx, []string{
		"John Smith", "Jane Doe", "英雄", "JJ", "007", "", "Hero", "John Smith", "Unknown Person",
	}, nil)
	if err != nil {
		t.Fatalf("TranslateBatch: %v", err)
	}

	want := map[string]string{"John Smith": "约翰·史密斯", "Jane Doe": "简·多伊", "Hero": "英雄"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("got[%q] = %q, want %q", k, got[k], v)
		}
	}
	if len(engine.calls) != 1 {
		t.Fatalf("expected one engine batch, got %d", len(engine.calls))
	}
	if !slices.Equal(engine.calls[0], []string{"John Smith", "Hero", "Unknown Person"}) {
		t.Fatalf("engine received %v", engine.calls[0])
	}

	// Results were persisted; a second batch never reaches the engine.
	if _, err := client.TranslateBatch(ctx, []string{"John Smith", "Hero"}, nil); err != nil {
		t.Fatalf("second TranslateBatch: %v", err)
	}
	if len(engine.calls) != 1 {
		t.Fatalf("expected cache to absorb second batch, engine calls=%d", len(engine.calls))
	}
}

func TestTranslateBatchTargetScriptNeverSent(t *testing.T) {
	engine := &fakeEngine{}
	client, _ := newClient(t, engine)
	got, err := client.TranslateBatch(context.Background(), []string{"张三", "John 约翰", "李四"}, nil)
	if err != nil {
		t.Fatalf("TranslateBatch: %v", err)
	}
	if len(got) != 0 || len(engine.calls) != 0 {
		t.Fatalf("expected nothing translated, got %v calls=%v", got, engine.calls)
	}
}

func TestTranslateBatchEngineFailureDegrades(t *testing.T) {
	engine := &fakeEngine{results: map[string]string{"Bob": "鲍勃"}, err: errors.New("llm down")}
	client, cache := newClient(t, engine)
	ctx := context.Background()
	_ = cache.Put(ctx, "Alice", "爱丽丝", "")

	got, err := client.TranslateBatch(ctx, []string{"Alice", "Bob", "Carol"}, nil)
	if err != nil {
		t.Fatalf("expected engine failure to be swallowed, got %v", err)
	}
	if got["Alice"] != "爱丽丝" {
		t.Fatalf("expected cache hit to survive, got %v", got)
	}
	if got["Bob"] != "鲍勃" {
		t.Fatalf("expected partial engine result to be used, got %v", got)
	}
	if _, ok := got["Carol"]; ok {
		t.Fatalf("expected Carol absent, got %v", got)
	}
}

func TestTranslateBatchRejectsNonTargetResults(t *testing.T) {
	engine := &fakeEngine{results: map[string]string{"Alice": "Alice", "Bob": "Robert"}}
	client, cache := newClient(t, engine)
	got, _ := client.TranslateBatch(context.Background(), []string{"Alice", "Bob"}, nil)
	if len(got) != 0 {
		t.Fatalf("expected untranslated echoes to be dropped, got %v", got)
	}
	if _, ok, _ := cache.Get(context.Background(), "Bob"); ok {
		t.Fatal("expected rejected result not to be cached")
	}
}

func TestTranslateBatchWithoutEngine(t *testing.T) {
	client, cache := newClient(t, nil)
	ctx := context.Background()
	_ = cache.Put(ctx, "Alice", "爱丽丝", "")
	got, err := client.TranslateBatch(ctx, []string{"Alice", "Bob"}, nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("TranslateBatch = %v %v", got, err)
	}
}

func TestTranslateBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := &fakeEngine{err: context.Canceled}
	client, _ := newClient(t, engine)
	if _, err := client.TranslateBatch(ctx, []string{"Alice"}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
