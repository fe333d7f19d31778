package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/metrics"
	"github.com/unclebandit/darb-backend/internal/model"
)

// DefaultRemoteTimeout bounds every remote call made by Failover.
const DefaultRemoteTimeout = 5 * time.Second

// CapacityGuard is consulted before the fallback store accepts a write. It
// returns a CapacityExceeded error when room cannot be made.
type CapacityGuard interface {
	EnsureCapacity(ctx context.Context, incoming int64) error
}

// Failover runs every operation against the remote adapter first and
// re-executes it against the local adapter when the remote call fails.
// Records written locally carry origin "local" and stay authoritative for
// their id.
type Failover struct {
	Remote  Adapter
	Local   Adapter
	Guard   CapacityGuard
	Timeout time.Duration
	Logger  zerolog.Logger
}

func NewFailover(remote, local Adapter, guard CapacityGuard, timeout time.Duration, logger zerolog.Logger) *Failover {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Failover{
		Remote:  remote,
		Local:   local,
		Guard:   guard,
		Timeout: timeout,
		Logger:  logger.With().Str("component", "failover").Logger(),
	}
}

func (f *Failover) Name() model.Origin { return f.Remote.Name() }

// remoteContext detaches the call from caller cancellation; only the timeout
// can end it.
func (f *Failover) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), f.Timeout)
}

// recoverable reports whether err should send the operation to the local
// store. Missing records and rejected input are answers, not outages.
func recoverable(err error) bool {
	return err != nil && !appErrors.IsNotFound(err) && !appErrors.IsValidation(err)
}

func (f *Failover) noteFallback(op, collection string, err error) {
	kind := appErrors.Kind(err)
	metrics.RemoteFailures.WithLabelValues(op, kind).Inc()
	metrics.FallbackWrites.WithLabelValues(op, collection).Inc()
	f.Logger.Warn().
		Err(err).
		Str("op", op).
		Str("collection", collection).
		Str("kind", kind).
		Msg("⚠️ remote store failed, using local store")
}

func (f *Failover) ensureCapacity(ctx context.Context, incoming int) error {
	if f.Guard == nil {
		return nil
	}
	return f.Guard.EnsureCapacity(ctx, int64(incoming))
}

func (f *Failover) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	rctx, cancel := f.remoteContext(ctx)
	created, err := f.Remote.Create(rctx, collection, doc)
	cancel()
	if !recoverable(err) {
		return created, err
	}

	f.noteFallback("create", collection, err)
	if err := f.ensureCapacity(ctx, len(doc.Body)); err != nil {
		return Document{}, err
	}
	return f.Local.Create(ctx, collection, doc)
}

func (f *Failover) Get(ctx context.Context, collection, id string) (Document, error) {
	if local, err := f.Local.Get(ctx, collection, id); err == nil && local.Origin == model.OriginLocal {
		return local, nil
	}

	rctx, cancel := f.remoteContext(ctx)
	defer cancel()
	doc, err := f.Remote.Get(rctx, collection, id)
	if !recoverable(err) {
		return doc, err
	}

	f.noteFallback("get", collection, err)
	if local, lerr := f.Local.Get(ctx, collection, id); lerr == nil {
		return local, nil
	}
	return doc, err
}

// Update writes to the local copy when one exists. Otherwise the remote
// record is patched; if the remote store is down the patch is written as a
// new local record under the same id, so callers should pass a patch that
// covers the whole record (see PatchFrom).
func (f *Failover) Update(ctx context.Context, collection, id string, patch Patch) (Document, error) {
	if _, err := f.Local.Get(ctx, collection, id); err == nil {
		if err := f.ensureCapacity(ctx, patchSize(patch)); err != nil {
			return Document{}, err
		}
		return f.Local.Update(ctx, collection, id, patch)
	}

	rctx, cancel := f.remoteContext(ctx)
	updated, err := f.Remote.Update(rctx, collection, id, patch)
	cancel()
	if !recoverable(err) {
		return updated, err
	}

	f.noteFallback("update", collection, err)
	body, perr := applyPatch([]byte("{}"), patch)
	if perr != nil {
		return Document{}, appErrors.NewValidation("patch", perr.Error())
	}
	if err := f.ensureCapacity(ctx, len(body)); err != nil {
		return Document{}, err
	}
	return f.Local.Create(ctx, collection, Document{
		ID:        id,
		CreatedAt: gjson.GetBytes(body, "createdAt").Time(),
		Body:      body,
	})
}

// Delete removes the record from both stores. It reports NotFound only when
// neither store had it.
func (f *Failover) Delete(ctx context.Context, collection, id string) (bool, error) {
	rctx, cancel := f.remoteContext(ctx)
	remoteDeleted, remoteErr := f.Remote.Delete(rctx, collection, id)
	cancel()
	if recoverable(remoteErr) {
		f.noteFallback("delete", collection, remoteErr)
	}

	localDeleted, localErr := f.Local.Delete(ctx, collection, id)
	if localErr != nil && !appErrors.IsNotFound(localErr) {
		return false, localErr
	}

	switch {
	case remoteDeleted || localDeleted:
		return true, nil
	case recoverable(remoteErr):
		return false, remoteErr
	default:
		return false, appErrors.NewNotFound(collection, id)
	}
}

// List merges remote results with records the local store is authoritative
// for. When the remote store fails only local records are returned.
func (f *Failover) List(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if err := filter.Validate(); err != nil {
		return nil, appErrors.NewValidation("filter", err.Error())
	}

	rctx, cancel := f.remoteContext(ctx)
	remote, remoteErr := f.Remote.List(rctx, collection, filter)
	cancel()

	local, localErr := f.Local.List(ctx, collection, filter)
	if remoteErr != nil {
		if !recoverable(remoteErr) {
			return nil, remoteErr
		}
		f.noteFallback("list", collection, remoteErr)
		if localErr != nil {
			return nil, remoteErr
		}
		return local, nil
	}
	if localErr != nil {
		f.Logger.Error().Err(localErr).Str("collection", collection).Msg("local list failed")
		return remote, nil
	}

	return mergeDocuments(remote, local), nil
}

// mergeDocuments lets local-origin records replace remote records with the
// same id.
func mergeDocuments(remote, local []Document) []Document {
	merged := make([]Document, 0, len(remote)+len(local))
	seen := make(map[string]struct{}, len(local))
	for _, doc := range local {
		if doc.Origin != model.OriginLocal {
			continue
		}
		seen[doc.ID] = struct{}{}
		merged = append(merged, doc)
	}
	for _, doc := range remote {
		if _, ok := seen[doc.ID]; ok {
			continue
		}
		merged = append(merged, doc)
	}
	sortNewestFirst(merged)
	return merged
}

func patchSize(patch Patch) int {
	b, err := json.Marshal(patch)
	if err != nil {
		return 0
	}
	return len(b)
}

var _ Adapter = (*Failover)(nil)
