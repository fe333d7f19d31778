// internal/errors/errors.go
package appErrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError is a caller mistake. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// BackendUnavailable covers timeouts, network failures and malformed
// responses from the remote document store.
type BackendUnavailable struct {
	Op      string
	Backend string
	Err     error
}

func (e *BackendUnavailable) Error() string {
	return fmt.Sprintf("%s backend unavailable during %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendUnavailable) Unwrap() error { return e.Err }

func NewBackendUnavailable(backend, op string, err error) error {
	return &BackendUnavailable{Backend: backend, Op: op, Err: err}
}

// CapacityExceeded means the local store is full even after eviction.
type CapacityExceeded struct {
	Used     int64
	Capacity int64
}

func (e *CapacityExceeded) Error() string {
	return fmt.Sprintf("local storage is full (%d of %d bytes used), free up space and retry", e.Used, e.Capacity)
}

func NewCapacityExceeded(used, capacity int64) error {
	return &CapacityExceeded{Used: used, Capacity: capacity}
}

// AssetProcessingError names the asset that could not be decoded or resampled.
type AssetProcessingError struct {
	Asset string
	Role  string
	Err   error
}

func (e *AssetProcessingError) Error() string {
	return fmt.Sprintf("could not process %s %q: %v", e.Role, e.Asset, e.Err)
}

func (e *AssetProcessingError) Unwrap() error { return e.Err }

func NewAssetProcessing(asset, role string, err error) error {
	return &AssetProcessingError{Asset: asset, Role: role, Err: err}
}

type NotFound struct {
	Collection string
	ID         string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s record %q not found", e.Collection, e.ID)
}

func NewNotFound(collection, id string) error {
	return &NotFound{Collection: collection, ID: id}
}

type PermissionError struct {
	Op string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s requires an authenticated user", e.Op)
}

func NewPermission(op string) error {
	return &PermissionError{Op: op}
}

// PartialContributionError reports that the campaign total was incremented
// but the matching contribution record could not be written.
type PartialContributionError struct {
	CampaignID string
	Amount     float64
	Err        error
}

func (e *PartialContributionError) Error() string {
	return fmt.Sprintf("campaign %s total incremented by %.2f but contribution was not recorded: %v", e.CampaignID, e.Amount, e.Err)
}

func (e *PartialContributionError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target *NotFound
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsBackendUnavailable(err error) bool {
	var target *BackendUnavailable
	return errors.As(err, &target)
}

func IsCapacity(err error) bool {
	var target *CapacityExceeded
	return errors.As(err, &target)
}

func IsAssetProcessing(err error) bool {
	var target *AssetProcessingError
	return errors.As(err, &target)
}

func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}

// Kind is a short label used in logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsNotFound(err):
		return "not_found"
	case IsValidation(err):
		return "validation"
	case IsCapacity(err):
		return "capacity"
	case IsAssetProcessing(err):
		return "asset"
	case IsPermission(err):
		return "permission"
	case IsBackendUnavailable(err):
		return "unavailable"
	default:
		return "unknown"
	}
}
