// internal/handler/storage_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	zlog "github.com/rs/zerolog/log"

	"github.com/unclebandit/darb-backend/internal/quota"
)

// QuotaReporter measures the local store
type QuotaReporter interface {
	Report() (quota.Report, error)
}

// Reliever runs an eviction pass
type Reliever interface {
	Relieve(ctx context.Context) (quota.Report, error)
}

// CacheClearer drops every cached read
type CacheClearer interface {
	Clear()
	Len() int
}

// StorageHandler exposes the local store's quota and maintenance actions
type StorageHandler struct {
	Monitor QuotaReporter
	Evictor Reliever
	Cache   CacheClearer
}

// NewStorageHandler creates a new StorageHandler
func NewStorageHandler(monitor QuotaReporter, evictor Reliever, cache CacheClearer) *StorageHandler {
	return &StorageHandler{Monitor: monitor, Evictor: evictor, Cache: cache}
}

func (h *StorageHandler) Routes(r chi.Router) {
	r.Route("/storage", func(r chi.Router) {
		r.Get("/quota", h.GetQuota)
		r.Post("/evict", h.Evict)
		r.Post("/cache/clear", h.ClearCache)
	})
}

// summary omits the per-key breakdown unless asked for
type summary struct {
	quota.Report
	Keys []quota.KeySize `json:"keys,omitempty"`
}

func summarize(r *http.Request, report quota.Report) summary {
	s := summary{Report: report}
	if r.URL.Query().Get("keys") == "true" {
		s.Keys = report.Keys
	}
	return s
}

// GetQuota reports local store usage
func (h *StorageHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	report, err := h.Monitor.Report()
	if err != nil {
		zlog.Ctx(r.Context()).Error().Err(err).Msg("❌ quota report failed")
		http.Error(w, "failed to measure local storage: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summarize(r, report))
}

// Evict runs an eviction pass now instead of waiting for the next sweep
func (h *StorageHandler) Evict(w http.ResponseWriter, r *http.Request) {
	report, err := h.Evictor.Relieve(r.Context())
	if err != nil {
		zlog.Ctx(r.Context()).Warn().Err(err).Msg("⚠️ eviction could not relieve local storage")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInsufficientStorage)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  err.Error(),
			"report": summarize(r, report),
		})
		return
	}

	zlog.Ctx(r.Context()).Info().Str("level", report.Level.String()).Int64("used", report.Used).Msg("✅ eviction pass finished")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summarize(r, report))
}

// ClearCache drops every cached read
func (h *StorageHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	dropped := h.Cache.Len()
	h.Cache.Clear()
	zlog.Ctx(r.Context()).Info().Int("entries", dropped).Msg("🧹 read cache cleared")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"cleared": dropped})
}
