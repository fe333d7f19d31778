package quota

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/metrics"
	"github.com/unclebandit/darb-backend/internal/model"
	"github.com/unclebandit/darb-backend/internal/store"
)

// Campaign counts kept by successive eviction rounds.
var keepSteps = []int{10, 5, 3}

// Evictor discards old local records when the store comes under pressure.
type Evictor struct {
	Monitor *Monitor
	Logger  zerolog.Logger

	mu sync.Mutex
}

func NewEvictor(monitor *Monitor, logger zerolog.Logger) *Evictor {
	return &Evictor{
		Monitor: monitor,
		Logger:  logger.With().Str("component", "evictor").Logger(),
	}
}

// Relieve brings the store back under the critical threshold. Near-limit
// stores get one trim; critical stores keep fewer campaigns on each round
// and a CapacityExceeded error is returned when nothing more can go.
func (e *Evictor) Relieve(ctx context.Context) (Report, error) {
	return e.relieve(ctx, 0)
}

// EnsureCapacity makes room for a write of incoming bytes, evicting if the
// store would be under pressure after the write.
func (e *Evictor) EnsureCapacity(ctx context.Context, incoming int64) error {
	r, err := e.relieve(ctx, incoming)
	if err != nil {
		return err
	}
	if r.Used+incoming > r.Capacity {
		return appErrors.NewCapacityExceeded(r.Used, r.Capacity)
	}
	return nil
}

func (e *Evictor) relieve(_ context.Context, incoming int64) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.Monitor.Report()
	if err != nil {
		return r, err
	}
	if Classify(r.Used+incoming, r.Capacity) == LevelNormal {
		return r, nil
	}

	for i, keep := range keepSteps {
		if i > 0 && Classify(r.Used+incoming, r.Capacity) != LevelCritical {
			break
		}
		if err := e.TrimCollection(model.CollectionCampaigns, keep); err != nil {
			return r, err
		}
		if i == 0 {
			if err := e.TrimLists(model.MaxListLength); err != nil {
				return r, err
			}
		}
		if r, err = e.Monitor.Report(); err != nil {
			return r, err
		}
		e.Logger.Info().
			Int("kept", keep).
			Int64("used", r.Used).
			Str("level", r.Level.String()).
			Msg("🧹 evicted local records")
	}

	if Classify(r.Used+incoming, r.Capacity) == LevelCritical {
		return r, appErrors.NewCapacityExceeded(r.Used, r.Capacity)
	}
	return r, nil
}

type stamped struct {
	key       string
	createdAt time.Time
}

// TrimCollection keeps the keep most recently created records of collection
// and removes the rest.
func (e *Evictor) TrimCollection(collection string, keep int) error {
	kv := e.Monitor.KV
	keys, err := store.CollectionKeys(kv, collection)
	if err != nil {
		return errors.Wrapf(err, "enumerate %s", collection)
	}
	if len(keys) <= keep {
		return nil
	}

	records := make([]stamped, 0, len(keys))
	for _, key := range keys {
		value, ok, err := kv.Get(key)
		if err != nil {
			return errors.Wrapf(err, "read %s", key)
		}
		if !ok {
			continue
		}
		records = append(records, stamped{key: key, createdAt: gjson.GetBytes(value, "createdAt").Time()})
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].createdAt.Equal(records[j].createdAt) {
			return records[i].key > records[j].key
		}
		return records[i].createdAt.After(records[j].createdAt)
	})

	for _, rec := range records[keep:] {
		if err := kv.Remove(rec.key); err != nil {
			return errors.Wrapf(err, "remove %s", rec.key)
		}
		metrics.Evictions.WithLabelValues(collection).Inc()
	}
	return nil
}

// TrimLists cuts every viewed and favorites list down to its first limit
// entries.
func (e *Evictor) TrimLists(limit int) error {
	kv := e.Monitor.KV
	keys, err := store.CollectionKeys(kv, model.CollectionUserLists)
	if err != nil {
		return errors.Wrap(err, "enumerate user lists")
	}

	for _, key := range keys {
		value, ok, err := kv.Get(key)
		if err != nil {
			return errors.Wrapf(err, "read %s", key)
		}
		if !ok {
			continue
		}
		kind := model.ListKind(gjson.GetBytes(value, "kind").String())
		if kind != model.ListViewed && kind != model.ListFavorites {
			continue
		}
		ids := gjson.GetBytes(value, "campaignIds").Array()
		if len(ids) <= limit {
			continue
		}

		kept := make([]string, 0, limit)
		for _, id := range ids[:limit] {
			kept = append(kept, id.String())
		}
		trimmed, err := sjson.SetBytes(value, "campaignIds", kept)
		if err != nil {
			return errors.Wrapf(err, "trim %s", key)
		}
		if err := kv.Set(key, trimmed); err != nil {
			return errors.Wrapf(err, "store %s", key)
		}
		metrics.Evictions.WithLabelValues(model.CollectionUserLists).Inc()
	}
	return nil
}
