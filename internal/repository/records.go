package repository

import (
	"context"

	"github.com/pkg/errors"
)

// createRecord stores v and decodes the stamped result back into it, so the
// caller sees the id, origin and timestamps chosen by the adapter.
func createRecord(ctx context.Context, store Adapter, collection string, v any) error {
	doc, err := NewDocument(v)
	if err != nil {
		return err
	}
	stored, err := store.Create(ctx, collection, doc)
	if err != nil {
		return err
	}
	return stored.Decode(v)
}

// updateRecord writes every field of v over the stored record id.
func updateRecord(ctx context.Context, store Adapter, collection, id string, v any) error {
	patch, err := PatchFrom(v)
	if err != nil {
		return err
	}
	stored, err := store.Update(ctx, collection, id, patch)
	if err != nil {
		return err
	}
	return stored.Decode(v)
}

func getRecord[T any](ctx context.Context, store Adapter, collection, id string) (*T, error) {
	doc, err := store.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := doc.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func listRecords[T any](ctx context.Context, store Adapter, collection string, filter Filter) ([]T, error) {
	docs, err := store.List(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			return nil, errors.Wrapf(err, "list %s", collection)
		}
		out = append(out, v)
	}
	return out, nil
}
