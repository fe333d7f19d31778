package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
)

const postgresBackend = "postgres"

// PostgresAdapter stores every collection in the documents table, one JSONB
// body per record.
type PostgresAdapter struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewPostgresAdapter(db *sql.DB) *PostgresAdapter {
	return &PostgresAdapter{DB: db, Now: time.Now}
}

func (a *PostgresAdapter) Name() model.Origin { return model.OriginRemote }

func (a *PostgresAdapter) Create(ctx context.Context, collection string, doc Document) (Document, error) {
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

	query := `
        INSERT INTO documents (collection, id, origin, body, created_at, updated_at)
        VALUES ($1, $2, $3, $4::jsonb, $5, $6)
        ON CONFLICT (collection, id)
        DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
        RETURNING body
    `
	var stored []byte
	err = a.DB.QueryRowContext(ctx, query, collection, id, model.OriginRemote, string(body), createdAt, now).Scan(&stored)
	if err != nil {
		return Document{}, appErrors.NewBackendUnavailable(postgresBackend, "create", err)
	}
	return a.decodeRow(stored, "create")
}

func (a *PostgresAdapter) Get(ctx context.Context, collection, id string) (Document, error) {
	query := `SELECT body FROM documents WHERE collection=$1 AND id=$2`
	var stored []byte
	err := a.DB.QueryRowContext(ctx, query, collection, id).Scan(&stored)
	if err != nil {
		if err == sql.ErrNoRows {
			return Document{}, appErrors.NewNotFound(collection, id)
		}
		return Document{}, appErrors.NewBackendUnavailable(postgresBackend, "get", err)
	}
	return a.decodeRow(stored, "get")
}

func (a *PostgresAdapter) Update(ctx context.Context, collection, id string, patch Patch) (Document, error) {
	now := a.Now().UTC()
	merge := make(Patch, len(patch)+1)
	for key, value := range patch {
		if strings.ContainsAny(key, ".*?") {
			return Document{}, appErrors.NewValidation("patch", fmt.Sprintf("key %q must be a top-level field", key))
		}
		merge[key] = value
	}
	delete(merge, "id")
	delete(merge, "origin")
	delete(merge, "createdAt")
	merge["updatedAt"] = now.Format(time.RFC3339Nano)

	payload, err := json.Marshal(merge)
	if err != nil {
		return Document{}, appErrors.NewValidation("patch", err.Error())
	}

	query := `
        UPDATE documents
        SET body = body || $3::jsonb, updated_at=$4
        WHERE collection=$1 AND id=$2
        RETURNING body
    `
	var stored []byte
	err = a.DB.QueryRowContext(ctx, query, collection, id, string(payload), now).Scan(&stored)
	if err != nil {
		if err == sql.ErrNoRows {
			return Document{}, appErrors.NewNotFound(collection, id)
		}
		return Document{}, appErrors.NewBackendUnavailable(postgresBackend, "update", err)
	}
	return a.decodeRow(stored, "update")
}

func (a *PostgresAdapter) Delete(ctx context.Context, collection, id string) (bool, error) {
	res, err := a.DB.ExecContext(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return false, appErrors.NewBackendUnavailable(postgresBackend, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, appErrors.NewBackendUnavailable(postgresBackend, "delete", err)
	}
	if n == 0 {
		return false, appErrors.NewNotFound(collection, id)
	}
	return true, nil
}

func (a *PostgresAdapter) List(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if err := filter.Validate(); err != nil {
		return nil, appErrors.NewValidation("filter", err.Error())
	}
	query, args := BuildListQuery(collection, filter)

	rows, err := a.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, appErrors.NewBackendUnavailable(postgresBackend, "list", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var stored []byte
		if err := rows.Scan(&stored); err != nil {
			return nil, appErrors.NewBackendUnavailable(postgresBackend, "list", err)
		}
		doc, err := a.decodeRow(stored, "list")
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewBackendUnavailable(postgresBackend, "list", err)
	}
	return docs, nil
}

// BuildListQuery translates a filter into a documents query. Each condition
// compares the text value at a JSON path with the expected value.
func BuildListQuery(collection string, filter Filter) (string, []any) {
	query := `SELECT body FROM documents WHERE collection=$1`
	args := []any{collection}
	argPos := 2

	for _, c := range filter.Conditions {
		query += fmt.Sprintf(" AND body #>> $%d::text[] = $%d", argPos, argPos+1)
		args = append(args, pq.Array(strings.Split(c.Field, ".")), c.Value)
		argPos += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	return query, args
}

// decodeRow treats an unreadable body as a malformed response.
func (a *PostgresAdapter) decodeRow(stored []byte, op string) (Document, error) {
	doc, err := documentFromBody(stored)
	if err != nil {
		return Document{}, appErrors.NewBackendUnavailable(postgresBackend, op, err)
	}
	return doc, nil
}

var _ Adapter = (*PostgresAdapter)(nil)
