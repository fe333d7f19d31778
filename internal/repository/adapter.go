package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/unclebandit/darb-backend/internal/model"
)

// Adapter is the persistence contract shared by the remote document store
// and the local fallback store. Get, Update and Delete return a NotFound
// error for missing ids.
type Adapter interface {
	Name() model.Origin
	Create(ctx context.Context, collection string, doc Document) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Update(ctx context.Context, collection, id string, patch Patch) (Document, error)
	Delete(ctx context.Context, collection, id string) (bool, error)
	List(ctx context.Context, collection string, filter Filter) ([]Document, error)
}

// Document is a stored record. Body is the serialized record; adapters stamp
// id, origin, createdAt and updatedAt into it so the stored bytes describe
// themselves.
type Document struct {
	ID        string
	Origin    model.Origin
	CreatedAt time.Time
	UpdatedAt time.Time
	Body      json.RawMessage
}

// NewDocument serializes v into a document body. The id is taken from the
// body's "id" field when present.
func NewDocument(v any) (Document, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("marshal document: %w", err)
	}
	return Document{ID: gjson.GetBytes(body, "id").String(), Body: body}, nil
}

// Decode unmarshals the body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Patch replaces top-level fields of a record.
type Patch map[string]any

// PatchFrom turns a whole record into a patch covering every top-level field.
// createdAt is kept so a fallback write can rebuild the record in full;
// adapters never let a patch change it.
func PatchFrom(v any) (Patch, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}
	var p Patch
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("unmarshal patch: %w", err)
	}
	// bookkeeping fields belong to the adapter
	delete(p, "id")
	delete(p, "origin")
	delete(p, "updatedAt")
	return p, nil
}

// Condition is an equality test on a field. Field may be a one level nested
// dot-path such as "creator.id".
type Condition struct {
	Field string
	Value string
}

// Filter is a conjunction of conditions. The zero Filter matches everything.
type Filter struct {
	Conditions []Condition
}

// Where returns a filter with a single equality condition.
func Where(field string, value any) Filter {
	return Filter{}.And(field, value)
}

func (f Filter) And(field string, value any) Filter {
	conds := make([]Condition, 0, len(f.Conditions)+1)
	conds = append(conds, f.Conditions...)
	conds = append(conds, Condition{Field: field, Value: fmt.Sprint(value)})
	return Filter{Conditions: conds}
}

// pathSyntax holds the characters gjson reads as wildcards, queries,
// modifiers or escapes. Postgres compares them literally.
const pathSyntax = "*?#|@\\[]{}!"

// Validate rejects empty fields, path syntax and paths nested deeper than
// one level.
func (f Filter) Validate() error {
	for _, c := range f.Conditions {
		if strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("filter field is required")
		}
		if strings.ContainsAny(c.Field, pathSyntax) {
			return fmt.Errorf("filter field %q must be a plain field name", c.Field)
		}
		if strings.Count(c.Field, ".") > 1 {
			return fmt.Errorf("filter field %q nests deeper than one level", c.Field)
		}
	}
	return nil
}

// Matches evaluates the filter against a JSON body.
func (f Filter) Matches(body []byte) bool {
	for _, c := range f.Conditions {
		res := gjson.GetBytes(body, c.Field)
		if !res.Exists() || res.String() != c.Value {
			return false
		}
	}
	return true
}

// Signature is a stable string form of the filter used in cache keys.
func (f Filter) Signature() string {
	parts := make([]string, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		parts = append(parts, c.Field+"="+c.Value)
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// stamp writes the bookkeeping fields into body.
func stamp(body []byte, id string, origin model.Origin, createdAt, updatedAt time.Time) ([]byte, error) {
	var err error
	if len(body) == 0 {
		body = []byte("{}")
	}
	if body, err = sjson.SetBytes(body, "id", id); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "origin", string(origin)); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "createdAt", createdAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "updatedAt", updatedAt.UTC().Format(time.RFC3339Nano))
}

// applyPatch replaces each patched top-level field of body.
func applyPatch(body []byte, patch Patch) ([]byte, error) {
	keys := make([]string, 0, len(patch))
	for key := range patch {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var err error
	for _, key := range keys {
		if strings.ContainsAny(key, ".*?") {
			return nil, fmt.Errorf("patch key %q must be a top-level field", key)
		}
		if body, err = sjson.SetBytes(body, key, patch[key]); err != nil {
			return nil, fmt.Errorf("apply patch %s: %w", key, err)
		}
	}
	return body, nil
}

// documentFromBody rebuilds the Document metadata from a stamped body.
func documentFromBody(body []byte) (Document, error) {
	if !gjson.ValidBytes(body) {
		return Document{}, fmt.Errorf("stored record is not valid json")
	}
	parsed := gjson.ParseBytes(body)
	return Document{
		ID:        parsed.Get("id").String(),
		Origin:    model.Origin(parsed.Get("origin").String()),
		CreatedAt: parsed.Get("createdAt").Time(),
		UpdatedAt: parsed.Get("updatedAt").Time(),
		Body:      body,
	}, nil
}

// sortNewestFirst orders documents by creation time, newest first, breaking
// ties by id so results are deterministic.
func sortNewestFirst(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}
