package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func countingFetcher(calls *int, value []string) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) {
		*calls++
		return value, nil
	}
}

func TestFreshEntryIsServedWithoutFetching(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewWithClock(clock.Now)
	key := NewKey("listCampaigns", []string{"campaigns"})

	calls := 0
	fetch := countingFetcher(&calls, []string{"a", "b"})

	if _, err := GetOrFetch(ctx, c, key, ListWindow, fetch); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	calls = 0

	clock.now = clock.now.Add(59 * time.Second)
	got, err := GetOrFetch(ctx, c, key, ListWindow, fetch)
	if err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no fetch inside the window, got %d", calls)
	}
	if len(got) != 2 {
		t.Errorf("unexpected payload %v", got)
	}

	clock.now = clock.now.Add(2 * time.Second)
	if _, err := GetOrFetch(ctx, c, key, ListWindow, fetch); err != nil {
		t.Fatalf("expired read: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one fetch after the window, got %d", calls)
	}
}

func TestInvalidateDropsReferencingEntries(t *testing.T) {
	ctx := context.Background()
	c := New()
	campaigns := NewKey("listCampaigns", []string{"campaigns"})
	lists := NewKey("listViewed", []string{"user_lists", "campaigns"}, "u1")
	drafts := NewKey("listDrafts", []string{"drafts"}, "u1")

	calls := 0
	fetch := countingFetcher(&calls, []string{"x"})
	for _, k := range []Key{campaigns, lists, drafts} {
		_, _ = GetOrFetch(ctx, c, k, ListWindow, fetch)
	}

	c.Invalidate("campaigns")
	if c.Len() != 1 {
		t.Fatalf("expected only the drafts entry to survive, have %d", c.Len())
	}

	calls = 0
	_, _ = GetOrFetch(ctx, c, drafts, ListWindow, fetch)
	_, _ = GetOrFetch(ctx, c, campaigns, ListWindow, fetch)
	if calls != 1 {
		t.Errorf("expected one refetch, got %d", calls)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after clear")
	}
}

func TestFailedFetchIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := New()
	key := NewKey("getCampaign", []string{"campaigns"}, "c1")

	_, err := GetOrFetch(ctx, c, key, ListWindow, func(context.Context) (string, error) {
		return "", errors.New("remote down")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if c.Len() != 0 {
		t.Errorf("error result was cached")
	}

	got, err := GetOrFetch(ctx, c, key, ListWindow, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Errorf("unexpected result %q %v", got, err)
	}
}

func TestScopeSeparatesEntries(t *testing.T) {
	ctx := context.Background()
	c := New()
	calls := 0
	fetch := countingFetcher(&calls, nil)

	_, _ = GetOrFetch(ctx, c, NewKey("listViewed", []string{"user_lists"}, "u1"), ListWindow, fetch)
	_, _ = GetOrFetch(ctx, c, NewKey("listViewed", []string{"user_lists"}, "anonymous"), ListWindow, fetch)
	if calls != 2 {
		t.Errorf("expected separate entries per user, got %d fetches", calls)
	}
}

func TestCallerMutationDoesNotReachCache(t *testing.T) {
	ctx := context.Background()
	c := New()
	key := NewKey("listCampaigns", []string{"campaigns"})
	calls := 0
	fetch := countingFetcher(&calls, []string{"a", "b"})

	first, err := GetOrFetch(ctx, c, key, ListWindow, fetch)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	first[0] = "mutated"

	second, err := GetOrFetch(ctx, c, key, ListWindow, fetch)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the second read to be a hit, got %d fetches", calls)
	}
	if second[0] != "a" {
		t.Errorf("cached entry changed by the caller: %v", second)
	}
	second[1] = "again"
	if third, _ := GetOrFetch(ctx, c, key, ListWindow, fetch); third[1] != "b" {
		t.Errorf("hits share memory: %v", third)
	}
}

func TestLastKnownSurvivesInvalidation(t *testing.T) {
	ctx := context.Background()
	c := New()
	key := NewKey("getCampaign", []string{"campaigns"}, "c1")
	calls := 0

	if _, ok := LastKnown[[]string](c, key); ok {
		t.Fatalf("expected nothing known before the first read")
	}
	_, _ = GetOrFetch(ctx, c, key, ListWindow, countingFetcher(&calls, []string{"v1"}))
	c.Invalidate("campaigns")

	got, ok := LastKnown[[]string](c, key)
	if !ok || len(got) != 1 || got[0] != "v1" {
		t.Fatalf("expected v1 after invalidation, got %v %v", got, ok)
	}

	Remember(c, key, []string{"v2"})
	if got, _ := LastKnown[[]string](c, key); got[0] != "v2" {
		t.Errorf("expected the remembered value, got %v", got)
	}
	if c.Len() != 0 {
		t.Errorf("remembering must not create a fresh entry, have %d", c.Len())
	}

	c.Forget(key)
	if _, ok := LastKnown[[]string](c, key); ok {
		t.Errorf("expected forget to drop the last known value")
	}

	Remember(c, key, []string{"v3"})
	c.Clear()
	if _, ok := LastKnown[[]string](c, key); ok {
		t.Errorf("expected clear to drop last known values")
	}
}
