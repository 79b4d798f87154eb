package documents

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/dbx"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
)

// PostgresRepository keeps documents as JSONB rows over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

func encodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: fields: %v", common.ErrInvalidArgument, err)
	}
	return string(b), nil
}

func decodeFields(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	data := map[string]any{}
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return data, nil
}

// Set upserts ref. With merge the stored object is concatenated with fields
// so that keys not named survive; otherwise it is replaced.
func (r *PostgresRepository) Set(ctx context.Context, userID string, ref docstore.Ref, fields map[string]any, merge bool) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}

	update := "EXCLUDED.data"
	if merge {
		update = "documents.data || EXCLUDED.data"
	}
	query := `
		INSERT INTO documents (user_id, collection, doc_id, data)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (user_id, collection, doc_id)
		DO UPDATE SET data = ` + update

	if _, err := r.db.ExecContext(ctx, query, userID, ref.Collection, ref.ID, data); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, userID string, ref docstore.Ref, fields map[string]any) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}
	query := `
		UPDATE documents SET data = data || $4::jsonb
		WHERE user_id = $1 AND collection = $2 AND doc_id = $3
	`
	res, err := r.db.ExecContext(ctx, query, userID, ref.Collection, ref.ID, data)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) Get(ctx context.Context, userID string, ref docstore.Ref) (docstore.Document, error) {
	query := `
		SELECT data FROM documents
		WHERE user_id = $1 AND collection = $2 AND doc_id = $3
	`
	var raw []byte
	if err := r.db.QueryRowContext(ctx, query, userID, ref.Collection, ref.ID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.Document{}, common.ErrNotFound
		}
		return docstore.Document{}, fmt.Errorf("db error: %w", err)
	}
	data, err := decodeFields(raw)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: ref.ID, Data: data}, nil
}

func (r *PostgresRepository) Query(ctx context.Context, userID string, q docstore.Query) ([]docstore.Document, error) {
	b := newWhere(userID, q.Collection)
	if err := b.filters(q.Filters); err != nil {
		return nil, err
	}

	query := "SELECT doc_id, data FROM documents WHERE " + b.String()
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s, doc_id", b.column(q.OrderBy), dir)
	} else {
		query += " ORDER BY doc_id"
	}
	if q.Limit > 0 {
		query += " LIMIT " + b.arg(q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		data, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return docs, nil
}

func (r *PostgresRepository) ListIDs(ctx context.Context, userID, collection string) ([]string, error) {
	query := `
		SELECT doc_id FROM documents
		WHERE user_id = $1 AND collection = $2
		ORDER BY doc_id
	`
	rows, err := r.db.QueryContext(ctx, query, userID, collection)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanIDs(rows)
}

func (r *PostgresRepository) Count(ctx context.Context, userID, collection string, filters []docstore.Filter) (int64, error) {
	b := newWhere(userID, collection)
	if err := b.filters(filters); err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE "+b.String(), b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteTombstonesBefore(ctx context.Context, userID, collection string, cutoff int64, limit int) ([]string, error) {
	query := `
		DELETE FROM documents
		WHERE user_id = $1 AND collection = $2 AND doc_id IN (
			SELECT doc_id FROM documents
			WHERE user_id = $1 AND collection = $2 AND deleted AND updated_at < $3
			ORDER BY updated_at
			LIMIT $4
		)
		RETURNING doc_id
	`
	rows, err := r.db.QueryContext(ctx, query, userID, collection, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

// where accumulates a WHERE clause and its positional arguments.
type where struct {
	conds []string
	args  []any
}

func newWhere(userID, collection string) *where {
	w := &where{}
	w.conds = append(w.conds,
		"user_id = "+w.arg(userID),
		"collection = "+w.arg(collection))
	return w
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) String() string {
	return strings.Join(w.conds, " AND ")
}

// column maps a document field to an SQL expression. The tombstone flag has
// its own generated column; everything else is a JSONB path.
func (w *where) column(field string) string {
	if field == docstore.FieldDeleted {
		return "deleted"
	}
	return "(data -> " + w.arg(field) + ")"
}

// filters follows docstore.Matches: a missing field or a value of another
// JSON type only satisfies !=.
func (w *where) filters(filters []docstore.Filter) error {
	if err := docstore.ValidateFilters(filters); err != nil {
		return err
	}
	for _, f := range filters {
		if f.Field == docstore.FieldDeleted {
			v, ok := f.Value.(bool)
			if !ok {
				return fmt.Errorf("%w: %s takes a boolean", common.ErrInvalidArgument, docstore.FieldDeleted)
			}
			w.conds = append(w.conds, fmt.Sprintf("deleted %s %s", sqlOp(f.Op), w.arg(v)))
			continue
		}

		b, err := json.Marshal(f.Value)
		if err != nil {
			return fmt.Errorf("%w: filter value: %v", common.ErrInvalidArgument, err)
		}
		col := w.column(f.Field)
		val := w.arg(string(b)) + "::jsonb"
		if f.Op == docstore.OpNe {
			w.conds = append(w.conds, fmt.Sprintf("%s IS DISTINCT FROM %s", col, val))
			continue
		}
		w.conds = append(w.conds, fmt.Sprintf("(jsonb_typeof(%s) = jsonb_typeof(%s) AND %s %s %s)",
			col, val, col, sqlOp(f.Op), val))
	}
	return nil
}

func sqlOp(op docstore.Op) string {
	switch op {
	case docstore.OpEq:
		return "="
	case docstore.OpNe:
		return "<>"
	}
	return string(op)
}
