package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores documents as JSONB rows in the items table
// (see db/migrations/001_init.sql). The pool is shared and owned by the caller.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Get(ctx context.Context, id, pk string) ([]byte, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM items WHERE partition_key = $1 AND id = $2`, pk, id,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func (s *Postgres) Add(ctx context.Context, id, pk string, doc []byte) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO items (partition_key, id, doc) VALUES ($1,$2,$3)
		 ON CONFLICT (partition_key, id) DO NOTHING`,
		pk, id, doc,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, id, pk string, doc []byte) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE items SET doc = $3, updated_at = NOW()
		 WHERE partition_key = $1 AND id = $2`,
		pk, id, doc,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, id, pk string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM items WHERE partition_key = $1 AND id = $2`, pk, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Query turns every predicate into a parameterized JSONB containment check,
// which the GIN index on doc can serve.
func (s *Postgres) Query(ctx context.Context, q *Query) ([][]byte, error) {
	sql, args, err := containmentSQL(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func containmentSQL(q *Query) (string, []any, error) {
	var b strings.Builder
	b.WriteString(`SELECT doc FROM items`)
	args := make([]any, 0, len(q.Where))
	for i, p := range q.Where {
		frag, err := json.Marshal(map[string]any{p.Field: p.Value})
		if err != nil {
			return "", nil, fmt.Errorf("store: encode predicate %s: %w", p.Field, err)
		}
		if i == 0 {
			b.WriteString(` WHERE `)
		} else {
			b.WriteString(` AND `)
		}
		args = append(args, string(frag))
		b.WriteString(`doc @> $` + strconv.Itoa(len(args)) + `::jsonb`)
	}
	b.WriteString(` ORDER BY seq`)
	return b.String(), args, nil
}
