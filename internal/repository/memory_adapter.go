package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
)

// MemoryAdapter is an in-process document store standing in for the remote
// backend in development and tests.
type MemoryAdapter struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	Now         func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		collections: make(map[string]map[string][]byte),
		Now:         time.Now,
	}
}

func (a *MemoryAdapter) Name() model.Origin { return model.OriginRemote }

func (a *MemoryAdapter) Create(_ context.Context, collection string, doc Document) (Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := a.Now().UTC()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	body, err := stamp(doc.Body, id, model.OriginRemote, createdAt, now)
	if err != nil {
		return Document{}, errors.Wrap(err, "stamp record")
	}

	records := a.collections[collection]
	if records == nil {
		records = make(map[string][]byte)
		a.collections[collection] = records
	}
	records[id] = body
	return documentFromBody(body)
}

func (a *MemoryAdapter) Get(_ context.Context, collection, id string) (Document, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	body, ok := a.collections[collection][id]
	if !ok {
		return Document{}, appErrors.NewNotFound(collection, id)
	}
	return documentFromBody(body)
}

func (a *MemoryAdapter) Update(_ context.Context, collection, id string, patch Patch) (Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, ok := a.collections[collection][id]
	if !ok {
		return Document{}, appErrors.NewNotFound(collection, id)
	}
	doc, err := documentFromBody(current)
	if err != nil {
		return Document{}, err
	}
	body, err := applyPatch(current, patch)
	if err != nil {
		return Document{}, err
	}
	body, err = stamp(body, id, model.OriginRemote, doc.CreatedAt, a.Now().UTC())
	if err != nil {
		return Document{}, errors.Wrap(err, "stamp record")
	}
	a.collections[collection][id] = body
	return documentFromBody(body)
}

func (a *MemoryAdapter) Delete(_ context.Context, collection, id string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.collections[collection][id]; !ok {
		return false, appErrors.NewNotFound(collection, id)
	}
	delete(a.collections[collection], id)
	return true, nil
}

func (a *MemoryAdapter) List(_ context.Context, collection string, filter Filter) ([]Document, error) {
	if err := filter.Validate(); err != nil {
		return nil, appErrors.NewValidation("filter", err.Error())
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	docs := make([]Document, 0, len(a.collections[collection]))
	for _, body := range a.collections[collection] {
		if !filter.Matches(body) {
			continue
		}
		doc, err := documentFromBody(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sortNewestFirst(docs)
	return docs, nil
}

var _ Adapter = (*MemoryAdapter)(nil)
