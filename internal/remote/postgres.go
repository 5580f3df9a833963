package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/matheus3301/jobboard/internal/remote/migrations"
	"github.com/pressly/goose/v3"
)

const postgresOperationTimeout = 5 * time.Second

// Postgres stores every collection in one jsonb table, documents(collection, id, data).
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects with lib/pq and applies the embedded goose migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		collection, id, string(payload))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	var payload []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument(id, payload)
}

func (p *Postgres) Set(ctx context.Context, collection, id string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, string(payload))
	return err
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	res, err := p.db.ExecContext(ctx, `
		UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2`,
		collection, id, string(payload))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	return err
}

func (p *Postgres) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	stmt, args, err := buildPostgresQuery(collection, q)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(id, payload)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// buildPostgresQuery translates q into SQL over the documents table.
// Equality uses jsonb containment so the GIN index applies. Numeric ranges
// cast the field to double precision; string ranges compare in the C collation.
func buildPostgresQuery(collection string, q Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	args := []any{collection}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where := []string{"collection = $1"}
	for _, f := range q.Filters {
		switch f.Op {
		case Eq:
			payload, err := json.Marshal(map[string]any{f.Field: f.Value})
			if err != nil {
				return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
			}
			where = append(where, fmt.Sprintf("data @> %s::jsonb", arg(string(payload))))
		case Prefix:
			field := arg(f.Field)
			where = append(where, fmt.Sprintf("starts_with(data->>%s, %s)", field, arg(f.Value)))
		default:
			field := arg(f.Field)
			if n, ok := number(f.Value); ok {
				where = append(where, fmt.Sprintf(
					"jsonb_typeof(data->%s) = 'number' AND (data->>%s)::double precision %s %s",
					field, field, f.Op, arg(n)))
				continue
			}
			s, ok := f.Value.(string)
			if !ok {
				return "", nil, fmt.Errorf("remote: range filter on %q needs a number or string", f.Field)
			}
			where = append(where, fmt.Sprintf("(data->>%s) COLLATE \"C\" %s %s", field, f.Op, arg(s)))
		}
	}

	var b strings.Builder
	b.WriteString("SELECT id, data FROM documents WHERE ")
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(" ORDER BY ")
	for _, o := range q.Orders {
		dir := "ASC NULLS FIRST"
		if o.Desc {
			dir = "DESC NULLS LAST"
		}
		fmt.Fprintf(&b, "data->%s %s, ", arg(o.Field), dir)
	}
	b.WriteString("id ASC")
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s", arg(q.Limit))
	}
	return b.String(), args, nil
}

func decodeDocument(id string, payload []byte) (*Document, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &Document{ID: id, Data: data}, nil
}
