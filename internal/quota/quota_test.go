package quota

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
	"github.com/unclebandit/darb-backend/internal/store"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// campaignRecord returns a record whose length does not depend on i.
func campaignRecord(i int) []byte {
	return []byte(fmt.Sprintf(`{"id":"c%02d","createdAt":"%s","pad":"%s"}`,
		i, base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339), strings.Repeat("x", 200)))
}

func recordSize() int64 { return int64(len(campaignRecord(0))) }

func seedCampaigns(t *testing.T, kv store.KV, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if err := kv.Set(store.Key(model.CollectionCampaigns, fmt.Sprintf("c%02d", i)), campaignRecord(i)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func remainingIDs(t *testing.T, kv store.KV) []string {
	t.Helper()
	keys, err := store.CollectionKeys(kv, model.CollectionCampaigns)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		_, id := store.SplitKey(key)
		ids = append(ids, id)
	}
	return ids
}

func TestClassify(t *testing.T) {
	tests := []struct {
		used int64
		want Level
	}{
		{0, LevelNormal},
		{79, LevelNormal},
		{80, LevelNearLimit},
		{90, LevelNearLimit},
		{91, LevelCritical},
	}
	for _, tc := range tests {
		if got := Classify(tc.used, 100); got != tc.want {
			t.Errorf("Classify(%d) = %s, want %s", tc.used, got, tc.want)
		}
	}
}

func TestReportSumsKeysAndCollections(t *testing.T) {
	kv := store.NewMemoryStore(DefaultCapacity)
	_ = kv.Set("campaigns/a", make([]byte, 30))
	_ = kv.Set("campaigns/b", make([]byte, 20))
	_ = kv.Set("drafts/c", make([]byte, 5))

	r, err := NewMonitor(kv).Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if r.Used != 55 {
		t.Errorf("used = %d, want 55", r.Used)
	}
	if r.Collections["campaigns"] != 50 || r.Collections["drafts"] != 5 {
		t.Errorf("unexpected collection totals %v", r.Collections)
	}
	if r.Keys[0].Key != "campaigns/a" {
		t.Errorf("expected largest key first, got %v", r.Keys)
	}
	if r.Level != LevelNormal {
		t.Errorf("expected normal, got %s", r.Level)
	}
}

func TestNearLimitKeepsTenNewest(t *testing.T) {
	// 15 records at 85% of capacity
	kv := store.NewMemoryStore(15 * recordSize() * 100 / 85)
	seedCampaigns(t, kv, 15)

	monitor := NewMonitor(kv)
	if level, _ := monitor.Level(); level != LevelNearLimit {
		t.Fatalf("expected near-limit before eviction, got %s", level)
	}

	r, err := NewEvictor(monitor, zerolog.Nop()).Relieve(context.Background())
	if err != nil {
		t.Fatalf("relieve: %v", err)
	}
	if r.Level != LevelNormal {
		t.Errorf("expected normal after eviction, got %s", r.Level)
	}

	ids := remainingIDs(t, kv)
	if len(ids) != 10 {
		t.Fatalf("expected 10 records, got %d: %v", len(ids), ids)
	}
	for i, id := range ids {
		if want := fmt.Sprintf("c%02d", i+6); id != want {
			t.Errorf("kept %s, want %s", id, want)
		}
	}
}

func TestCriticalKeepsFewerUntilBelowCritical(t *testing.T) {
	size := recordSize()
	kv := store.NewMemoryStore(200 * size)
	seedCampaigns(t, kv, 15)
	_ = kv.Set(store.Key(model.CollectionDrafts, "big"), make([]byte, 172*size))

	r, err := NewEvictor(NewMonitor(kv), zerolog.Nop()).Relieve(context.Background())
	if err != nil {
		t.Fatalf("relieve: %v", err)
	}
	if r.Level == LevelCritical {
		t.Errorf("still critical after eviction")
	}
	if ids := remainingIDs(t, kv); len(ids) != 5 {
		t.Errorf("expected 5 campaigns kept, got %d", len(ids))
	}
}

func TestCriticalRejectsWhenNothingLeftToEvict(t *testing.T) {
	size := recordSize()
	kv := store.NewMemoryStore(200 * size)
	seedCampaigns(t, kv, 15)
	_ = kv.Set(store.Key(model.CollectionDrafts, "big"), make([]byte, 180*size))

	evictor := NewEvictor(NewMonitor(kv), zerolog.Nop())
	if _, err := evictor.Relieve(context.Background()); !appErrors.IsCapacity(err) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if ids := remainingIDs(t, kv); len(ids) != 3 {
		t.Errorf("expected 3 campaigns kept, got %d", len(ids))
	}
	if err := evictor.EnsureCapacity(context.Background(), size); !appErrors.IsCapacity(err) {
		t.Errorf("expected guard to reject the write, got %v", err)
	}
}

func TestEnsureCapacityNoopWhenNormal(t *testing.T) {
	kv := store.NewMemoryStore(DefaultCapacity)
	seedCampaigns(t, kv, 15)

	if err := NewEvictor(NewMonitor(kv), zerolog.Nop()).EnsureCapacity(context.Background(), 1024); err != nil {
		t.Fatalf("ensure capacity: %v", err)
	}
	if ids := remainingIDs(t, kv); len(ids) != 15 {
		t.Errorf("expected nothing evicted, got %d left", len(ids))
	}
}

func TestTrimListsOnlyTouchesViewAndFavoriteLists(t *testing.T) {
	kv := store.NewMemoryStore(DefaultCapacity)
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf(`"c%02d"`, i)
	}
	list := func(kind string) []byte {
		return []byte(fmt.Sprintf(`{"id":"%s:u1","kind":"%s","campaignIds":[%s]}`, kind, kind, strings.Join(ids, ",")))
	}
	_ = kv.Set("user_lists/viewed:u1", list("viewed"))
	_ = kv.Set("user_lists/funded:u1", list("funded"))

	if err := NewEvictor(NewMonitor(kv), zerolog.Nop()).TrimLists(model.MaxListLength); err != nil {
		t.Fatalf("trim: %v", err)
	}

	viewed, _, _ := kv.Get("user_lists/viewed:u1")
	if n := gjson.GetBytes(viewed, "campaignIds.#").Int(); n != 20 {
		t.Errorf("viewed list has %d entries, want 20", n)
	}
	if first := gjson.GetBytes(viewed, "campaignIds.0").String(); first != "c00" {
		t.Errorf("trim dropped the newest entry, first = %s", first)
	}
	funded, _, _ := kv.Get("user_lists/funded:u1")
	if n := gjson.GetBytes(funded, "campaignIds.#").Int(); n != 25 {
		t.Errorf("funded list should be untouched, has %d", n)
	}
}
