// Package pgvector implements memory.VectorStore on Postgres with the
// pgvector extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/KamdynS/agentlab/memory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is satisfied by *pgx.Conn and *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Store struct {
	db    DB
	table string
}

func New(db DB, table string) (*Store, error) {
	if table == "" {
		table = "documents"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{db: db, table: table}, nil
}

// Connect opens a pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect pgvector: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pgvector: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the vector extension and the documents table.
func (s *Store) EnsureSchema(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return errors.New("dimensions must be positive")
	}
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id text PRIMARY KEY,
			content text NOT NULL,
			embedding vector(%d) NOT NULL,
			meta jsonb
		)`, s.table, dimensions),
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// vectorLiteral renders v in pgvector's text input format.
func vectorLiteral(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

func (s *Store) AddDocument(ctx context.Context, doc memory.Document) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}
	if len(doc.Embedding) == 0 {
		return errors.New("empty embedding")
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, content, embedding, meta) VALUES ($1, $2, $3::vector, $4)
		ON CONFLICT (id) DO UPDATE SET content = excluded.content, embedding = excluded.embedding, meta = excluded.meta`, s.table)
	_, err := s.db.Exec(ctx, q, doc.ID, doc.Content, vectorLiteral(doc.Embedding), doc.Meta)
	return err
}

// QuerySimilar ranks by cosine distance; Score is 1 - distance.
func (s *Store) QuerySimilar(ctx context.Context, queryEmbedding []float64, limit int) ([]memory.Document, error) {
	if limit <= 0 {
		limit = 5
	}
	q := fmt.Sprintf(`SELECT id, content, meta, 1 - (embedding <=> $1::vector) AS score
		FROM %s ORDER BY embedding <=> $1::vector, id LIMIT $2`, s.table)
	rows, err := s.db.Query(ctx, q, vectorLiteral(queryEmbedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]memory.Document, 0, limit)
	for rows.Next() {
		var d memory.Document
		if err := rows.Scan(&d.ID, &d.Content, &d.Meta, &d.Score); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table), id)
	return err
}

func (s *Store) GetDocument(ctx context.Context, id string) (*memory.Document, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT id, content, meta FROM %s WHERE id = $1", s.table), id)
	var d memory.Document
	if err := row.Scan(&d.ID, &d.Content, &d.Meta); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, memory.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&n)
	return n, err
}

var _ memory.VectorStore = (*Store)(nil)
