package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
)

const redisBackend = "redis"

// RedisAdapter keeps each collection in one hash, field = record id,
// value = stamped JSON body.
type RedisAdapter struct {
	client redis.UniversalClient
	Now    func() time.Time
}

func NewRedisAdapter(client redis.UniversalClient) *RedisAdapter {
	return &RedisAdapter{client: client, Now: time.Now}
}

func collectionHash(collection string) string {
	return fmt.Sprintf("docs:{%s}", collection)
}

func (a *RedisAdapter) Name() model.Origin { return model.OriginRemote }

func (a *RedisAdapter) Create(ctx context.Context, collection string, doc Document) (Document, error) {
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
		return Document{}, appErrors.NewValidation("body", err.Error())
	}
	if err := a.client.HSet(ctx, collectionHash(collection), id, body).Err(); err != nil {
		return Document{}, appErrors.NewBackendUnavailable(redisBackend, "create", err)
	}
	return documentFromBody(body)
}

func (a *RedisAdapter) Get(ctx context.Context, collection, id string) (Document, error) {
	body, err := a.client.HGet(ctx, collectionHash(collection), id).Bytes()
	if err == redis.Nil {
		return Document{}, appErrors.NewNotFound(collection, id)
	}
	if err != nil {
		return Document{}, appErrors.NewBackendUnavailable(redisBackend, "get", err)
	}
	doc, err := documentFromBody(body)
	if err != nil {
		return Document{}, appErrors.NewBackendUnavailable(redisBackend, "get", err)
	}
	return doc, nil
}

// Update applies the patch inside a WATCH transaction so concurrent writers
// to the same collection hash retry rather than overwrite each other.
func (a *RedisAdapter) Update(ctx context.Context, collection, id string, patch Patch) (Document, error) {
	key := collectionHash(collection)
	var updated []byte

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, id).Bytes()
		if err == redis.Nil {
			return appErrors.NewNotFound(collection, id)
		}
		if err != nil {
			return err
		}
		doc, err := documentFromBody(current)
		if err != nil {
			return err
		}
		body, err := applyPatch(current, patch)
		if err != nil {
			return appErrors.NewValidation("patch", err.Error())
		}
		body, err = stamp(body, id, model.OriginRemote, doc.CreatedAt, a.Now().UTC())
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, body)
			return nil
		})
		updated = body
		return err
	}

	if err := a.client.Watch(ctx, txf, key); err != nil {
		if appErrors.IsNotFound(err) || appErrors.IsValidation(err) {
			return Document{}, err
		}
		return Document{}, appErrors.NewBackendUnavailable(redisBackend, "update", err)
	}
	return documentFromBody(updated)
}

func (a *RedisAdapter) Delete(ctx context.Context, collection, id string) (bool, error) {
	n, err := a.client.HDel(ctx, collectionHash(collection), id).Result()
	if err != nil {
		return false, appErrors.NewBackendUnavailable(redisBackend, "delete", err)
	}
	if n == 0 {
		return false, appErrors.NewNotFound(collection, id)
	}
	return true, nil
}

func (a *RedisAdapter) List(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if err := filter.Validate(); err != nil {
		return nil, appErrors.NewValidation("filter", err.Error())
	}
	values, err := a.client.HVals(ctx, collectionHash(collection)).Result()
	if err != nil {
		return nil, appErrors.NewBackendUnavailable(redisBackend, "list", err)
	}

	docs := make([]Document, 0, len(values))
	for _, value := range values {
		body := []byte(value)
		if !filter.Matches(body) {
			continue
		}
		doc, err := documentFromBody(body)
		if err != nil {
			return nil, appErrors.NewBackendUnavailable(redisBackend, "list", err)
		}
		docs = append(docs, doc)
	}
	sortNewestFirst(docs)
	return docs, nil
}

var _ Adapter = (*RedisAdapter)(nil)
