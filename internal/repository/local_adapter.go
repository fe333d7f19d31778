package repository

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
	"github.com/unclebandit/darb-backend/internal/store"
)

// LocalIDPrefix namespaces ids assigned by the local adapter.
const LocalIDPrefix = "local-"

// LocalAdapter implements Adapter on top of the local key/value store.
// Filters are evaluated by a linear scan of the collection.
type LocalAdapter struct {
	KV  store.KV
	Now func() time.Time

	mu     sync.Mutex
	lastID int64
}

func NewLocalAdapter(kv store.KV) *LocalAdapter {
	return &LocalAdapter{KV: kv, Now: time.Now}
}

func (a *LocalAdapter) Name() model.Origin { return model.OriginLocal }

func (a *LocalAdapter) Create(_ context.Context, collection string, doc Document) (Document, error) {
	id := doc.ID
	if id == "" {
		id = a.nextID()
	}
	now := a.Now().UTC()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	body, err := stamp(doc.Body, id, model.OriginLocal, createdAt, now)
	if err != nil {
		return Document{}, errors.Wrap(err, "stamp local record")
	}
	if err := a.KV.Set(store.Key(collection, id), body); err != nil {
		return Document{}, errors.Wrapf(err, "store %s/%s", collection, id)
	}
	return documentFromBody(body)
}

func (a *LocalAdapter) Get(_ context.Context, collection, id string) (Document, error) {
	body, ok, err := a.KV.Get(store.Key(collection, id))
	if err != nil {
		return Document{}, errors.Wrapf(err, "read %s/%s", collection, id)
	}
	if !ok {
		return Document{}, appErrors.NewNotFound(collection, id)
	}
	return documentFromBody(body)
}

func (a *LocalAdapter) Update(ctx context.Context, collection, id string, patch Patch) (Document, error) {
	current, err := a.Get(ctx, collection, id)
	if err != nil {
		return Document{}, err
	}
	body, err := applyPatch(current.Body, patch)
	if err != nil {
		return Document{}, err
	}
	body, err = stamp(body, id, model.OriginLocal, current.CreatedAt, a.Now().UTC())
	if err != nil {
		return Document{}, errors.Wrap(err, "stamp local record")
	}
	if err := a.KV.Set(store.Key(collection, id), body); err != nil {
		return Document{}, errors.Wrapf(err, "store %s/%s", collection, id)
	}
	return documentFromBody(body)
}

func (a *LocalAdapter) Delete(_ context.Context, collection, id string) (bool, error) {
	key := store.Key(collection, id)
	_, ok, err := a.KV.Get(key)
	if err != nil {
		return false, errors.Wrapf(err, "read %s/%s", collection, id)
	}
	if !ok {
		return false, appErrors.NewNotFound(collection, id)
	}
	if err := a.KV.Remove(key); err != nil {
		return false, errors.Wrapf(err, "remove %s/%s", collection, id)
	}
	return true, nil
}

func (a *LocalAdapter) List(_ context.Context, collection string, filter Filter) ([]Document, error) {
	if err := filter.Validate(); err != nil {
		return nil, appErrors.NewValidation("filter", err.Error())
	}
	keys, err := store.CollectionKeys(a.KV, collection)
	if err != nil {
		return nil, errors.Wrapf(err, "enumerate %s", collection)
	}

	docs := make([]Document, 0, len(keys))
	for _, key := range keys {
		body, ok, err := a.KV.Get(key)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", key)
		}
		if !ok || !filter.Matches(body) {
			continue
		}
		doc, err := documentFromBody(body)
		if err != nil {
			// a corrupt entry must not hide the rest of the collection
			continue
		}
		docs = append(docs, doc)
	}
	sortNewestFirst(docs)
	return docs, nil
}

// nextID returns local-<unix nanos>, bumped when two ids would collide.
func (a *LocalAdapter) nextID() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.Now().UnixNano()
	if n <= a.lastID {
		n = a.lastID + 1
	}
	a.lastID = n
	return LocalIDPrefix + strconv.FormatInt(n, 10)
}

// IsLocalID reports whether id was assigned by the local adapter.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

var _ Adapter = (*LocalAdapter)(nil)
