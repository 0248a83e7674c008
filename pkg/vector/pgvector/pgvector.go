// Package pgvector provides a PostgreSQL vector driver using the pgvector
// extension.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/vector"
)

// DefaultTable holds the entity vectors.
const DefaultTable = "insurag_vectors"

// Config holds configuration for the pgvector driver.
type Config struct {
	// ConnString is a PostgreSQL connection string or URI.
	ConnString string

	// Table defaults to DefaultTable.
	Table string

	// Dimensions sizes the vector column.
	Dimensions uint
}

// Driver implements vector.Driver on a pgvector table keyed by
// (collection, entity_id). Similarity is 1 - cosine distance (<=>).
type Driver struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// NewDriver connects to PostgreSQL and creates the extension, table and
// HNSW index when missing.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.ConnString == "" {
		return nil, fmt.Errorf("postgres connection string is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("pgvector embedding dimensions cannot be 0, must be configured")
	}
	table := c.Table
	if table == "" {
		table = DefaultTable
	}

	db, err := sql.Open("pgx", c.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			collection VARCHAR(32) NOT NULL,
			entity_id VARCHAR(255) NOT NULL,
			version BIGINT NOT NULL DEFAULT 0,
			content TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (collection, entity_id)
		)`, table, c.Dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, table, table),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	logger.Info("pgvector vector driver initialized", "table", table, "dimensions", c.Dimensions)
	return &Driver{db: db, table: table, logger: logger}, nil
}

// Upsert inserts or replaces entity vectors.
func (d *Driver) Upsert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (collection, entity_id, version, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, entity_id) DO UPDATE
		SET version = EXCLUDED.version, content = EXCLUDED.content, embedding = EXCLUDED.embedding
	`, d.table)
	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, stmt,
			string(doc.Collection), doc.ID, doc.Version, doc.Content, pgv.NewVector(doc.Embedding),
		); err != nil {
			return fmt.Errorf("upserting %s/%s: %w", doc.Collection, doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	d.logger.Debug("upserted documents to pgvector", "count", len(docs))
	return nil
}

// Search orders by cosine distance with the id tie-break done in SQL.
func (d *Driver) Search(ctx context.Context, embedding []float32, topK int, collections ...entity.Collection) ([]vector.QueryResult, error) {
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	names := make([]string, 0, len(collections))
	for _, c := range vector.ResolveCollections(collections) {
		names = append(names, string(c))
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT collection, entity_id, version, content, embedding <=> $1 AS distance
		FROM %s
		WHERE collection = ANY($2)
		ORDER BY distance, collection, entity_id
		LIMIT $3
	`, d.table), pgv.NewVector(embedding), names, topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	results := make([]vector.QueryResult, 0, topK)
	for rows.Next() {
		var (
			r        vector.QueryResult
			col      string
			distance float64
		)
		if err := rows.Scan(&col, &r.ID, &r.Version, &r.Content, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		r.Collection = entity.Collection(col)
		r.Score = vector.FromCosineDistance(distance)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	// float32 scores can collapse distinct distances into ties
	return vector.SortResults(results, topK), nil
}

// Get retrieves documents by entity id.
func (d *Driver) Get(ctx context.Context, c entity.Collection, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT entity_id, version, content, embedding
		FROM %s
		WHERE collection = $1 AND entity_id = ANY($2)
		ORDER BY entity_id
	`, d.table), string(c), ids)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := make([]vector.Document, 0, len(ids))
	for rows.Next() {
		doc := vector.Document{Collection: c}
		var emb pgv.Vector
		if err := rows.Scan(&doc.ID, &doc.Version, &doc.Content, &emb); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.Embedding = emb.Slice()
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes documents by entity id.
func (d *Driver) Delete(ctx context.Context, c entity.Collection, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	res, err := d.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE collection = $1 AND entity_id = ANY($2)`, d.table,
	), string(c), ids)
	if err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	n, _ := res.RowsAffected()
	d.logger.Debug("deleted documents from pgvector", "collection", c, "count", n)
	return nil
}

// Close releases the connection pool.
func (d *Driver) Close() error {
	return d.db.Close()
}

// Truncate empties the table. Used between test runs.
func (d *Driver) Truncate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, "TRUNCATE "+d.table)
	return err
}
