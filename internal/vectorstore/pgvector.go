package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/pkg/models"
)

// PgvectorStore implements VectorStoreDriver on PostgreSQL with the pgvector
// extension. The database is user-provided (CLIPHAVEN_PGVECTOR_URL).
type PgvectorStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPgvectorStore connects and creates the table if it does not exist.
func NewPgvectorStore(ctx context.Context, connURL string, dimensions int) (*PgvectorStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("pgvector: invalid dimensions %d", dimensions)
	}
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("pgvector connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector ping: %w", err)
	}

	s := &PgvectorStore{pool: pool, dimensions: dimensions}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector migrate: %w", err)
	}

	log.Info().Int("dims", dimensions).Msg("pgvector store initialized")
	return s, nil
}

func (s *PgvectorStore) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS cliphaven_vectors (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL DEFAULT '',
			metadata   JSONB NOT NULL DEFAULT '{}',
			vector     vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, s.dimensions)

	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PgvectorStore) Kind() string { return "pgvector" }

func (s *PgvectorStore) Upsert(ctx context.Context, docs []models.VectorDoc) error {
	if len(docs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range docs {
		if len(d.Vector) != s.dimensions {
			return fmt.Errorf("pgvector upsert %s: vector has %d dims, want %d", d.ID, len(d.Vector), s.dimensions)
		}
		created := d.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		metadata := d.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		meta, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("pgvector upsert %s: %w", d.ID, err)
		}
		batch.Queue(`INSERT INTO cliphaven_vectors (id, content, metadata, vector, created_at)
			VALUES ($1, $2, $3, $4::vector, $5)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				metadata = EXCLUDED.metadata,
				vector = EXCLUDED.vector`,
			d.ID, d.Content, meta, vectorLiteral(d.Vector), created)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("pgvector upsert: %w", err)
		}
	}
	return nil
}

// Search orders by cosine distance; Score is 1 - distance.
func (s *PgvectorStore) Search(ctx context.Context, vector []float64, topK int) ([]models.VectorMatch, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, content, metadata, created_at,
		1 - (vector <=> $1::vector) AS score
		FROM cliphaven_vectors
		ORDER BY vector <=> $1::vector
		LIMIT $2`, vectorLiteral(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	var results []models.VectorMatch
	for rows.Next() {
		var m models.VectorMatch
		var meta []byte
		if err := rows.Scan(&m.Doc.ID, &m.Doc.Content, &meta, &m.Doc.CreatedAt, &m.Score); err != nil {
			return nil, fmt.Errorf("pgvector scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Doc.Metadata); err != nil {
				return nil, fmt.Errorf("pgvector metadata %s: %w", m.Doc.ID, err)
			}
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *PgvectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, "DELETE FROM cliphaven_vectors WHERE id = ANY($1)", ids)
	return err
}

func (s *PgvectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM cliphaven_vectors").Scan(&count)
	return count, err
}

func (s *PgvectorStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PgvectorStore) Close() {
	s.pool.Close()
}

// vectorLiteral renders v in pgvector's text format: [1,2.5,3]
func vectorLiteral(v []float64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	sb.WriteByte(']')
	return sb.String()
}
