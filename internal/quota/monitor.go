// Package quota watches how full the local fallback store is and frees
// space when it runs short.
package quota

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/unclebandit/darb-backend/internal/metrics"
	"github.com/unclebandit/darb-backend/internal/store"
)

// DefaultCapacity is the local store ceiling used when none is configured.
const DefaultCapacity int64 = 5 * 1024 * 1024

const (
	nearLimitRatio = 0.80
	criticalRatio  = 0.90
)

type Level int

const (
	LevelNormal Level = iota
	LevelNearLimit
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelNearLimit:
		return "near-limit"
	case LevelCritical:
		return "critical"
	default:
		return "normal"
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Classify maps a usage figure onto a pressure level.
func Classify(used, capacity int64) Level {
	if capacity <= 0 {
		return LevelCritical
	}
	ratio := float64(used) / float64(capacity)
	switch {
	case ratio > criticalRatio:
		return LevelCritical
	case ratio >= nearLimitRatio:
		return LevelNearLimit
	default:
		return LevelNormal
	}
}

type KeySize struct {
	Key   string `json:"key"`
	Bytes int64  `json:"bytes"`
}

type Report struct {
	Used        int64            `json:"used"`
	Capacity    int64            `json:"capacity"`
	Ratio       float64          `json:"ratio"`
	Level       Level            `json:"level"`
	Keys        []KeySize        `json:"keys"`
	Collections map[string]int64 `json:"collections"`
}

// Monitor measures the local store. A record's size is the byte length of
// its serialized value.
type Monitor struct {
	KV store.KV
}

func NewMonitor(kv store.KV) *Monitor {
	return &Monitor{KV: kv}
}

// Report sums every key in the store, largest keys first.
func (m *Monitor) Report() (Report, error) {
	keys, err := m.KV.Keys()
	if err != nil {
		return Report{}, errors.Wrap(err, "enumerate local store")
	}

	r := Report{
		Capacity:    m.KV.Capacity(),
		Keys:        make([]KeySize, 0, len(keys)),
		Collections: make(map[string]int64),
	}
	for _, key := range keys {
		value, ok, err := m.KV.Get(key)
		if err != nil {
			return Report{}, errors.Wrapf(err, "read %s", key)
		}
		if !ok {
			continue
		}
		size := int64(len(value))
		r.Used += size
		r.Keys = append(r.Keys, KeySize{Key: key, Bytes: size})
		collection, _ := store.SplitKey(key)
		r.Collections[collection] += size
	}
	sort.Slice(r.Keys, func(i, j int) bool {
		if r.Keys[i].Bytes == r.Keys[j].Bytes {
			return r.Keys[i].Key < r.Keys[j].Key
		}
		return r.Keys[i].Bytes > r.Keys[j].Bytes
	})

	if r.Capacity > 0 {
		r.Ratio = float64(r.Used) / float64(r.Capacity)
	}
	r.Level = Classify(r.Used, r.Capacity)

	metrics.LocalStoreBytes.Set(float64(r.Used))
	metrics.PressureLevel.Set(float64(r.Level))
	return r, nil
}

// Level is a shortcut for Report().Level.
func (m *Monitor) Level() (Level, error) {
	r, err := m.Report()
	return r.Level, err
}
