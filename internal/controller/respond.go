package controller

import (
	"encoding/json"
	"io"
	"net/http"

	zlog "github.com/rs/zerolog/log"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
)

// UserHeader carries the id of the signed-in user. Requests without it act
// as anonymous visitors.
const UserHeader = "X-User-ID"

func userID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

// StatusFor maps an application error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case appErrors.IsValidation(err):
		return http.StatusBadRequest
	case appErrors.IsPermission(err):
		return http.StatusForbidden
	case appErrors.IsNotFound(err):
		return http.StatusNotFound
	case appErrors.IsCapacity(err):
		return http.StatusInsufficientStorage
	case appErrors.IsAssetProcessing(err):
		return http.StatusUnprocessableEntity
	case appErrors.IsBackendUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	event := zlog.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = zlog.Ctx(r.Context()).Error()
	}
	event.Err(err).Int("status", status).Str("kind", appErrors.Kind(err)).Msg("❌ request failed")

	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  appErrors.Kind(err),
	})
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes)).Decode(v); err != nil {
		return appErrors.NewValidation("body", "invalid JSON: "+err.Error())
	}
	return nil
}
