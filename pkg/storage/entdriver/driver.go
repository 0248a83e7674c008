// Package entdriver implements storage.Driver on top of ent's SQL dialect
// layer. It is database agnostic and embedded by the sqlite and postgres
// drivers.
package entdriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/storage"
)

const (
	table = "entities"

	colCollection   = "collection"
	colID           = "id"
	colAttributes   = "attributes"
	colVersion      = "version"
	colCreatedAt    = "created_at"
	colUpdatedAt    = "updated_at"
	colIndexed      = "vector_indexed"
	colIndexedAt    = "vector_indexed_at"
	colIndexError   = "vector_indexing_error"
	colEmbeddingTxt = "embedding_text"

	// maxUpdateAttempts bounds the optimistic version check loop in Update.
	maxUpdateAttempts = 5
)

var columns = []string{
	colCollection, colID, colAttributes, colVersion, colCreatedAt, colUpdatedAt,
	colIndexed, colIndexedAt, colIndexError, colEmbeddingTxt,
}

// EntDriver provides storage operations over an ent SQL driver.
type EntDriver struct {
	Driver *entsql.Driver
	now    func() time.Time
}

var _ storage.Driver = (*EntDriver)(nil)

// New wraps db for the given ent dialect and creates the schema.
func New(ctx context.Context, dialectName string, db *sql.DB) (*EntDriver, error) {
	ed := &EntDriver{
		Driver: entsql.OpenDB(dialectName, db),
		now:    time.Now,
	}
	if err := ed.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return ed, nil
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.Driver.Dialect())
}

// migrate is append only: it creates the table and index when missing.
func (ed *EntDriver) migrate(ctx context.Context) error {
	for _, stmt := range schema(ed.Driver.Dialect()) {
		if err := ed.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			return err
		}
	}
	return nil
}

// schema returns the DDL of the entities table for dialectName. Timestamps
// are RFC 3339 text on every dialect.
func schema(dialectName string) []string {
	timeType := "TEXT"
	if dialectName == dialect.Postgres {
		timeType = "VARCHAR(64)"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s VARCHAR(32) NOT NULL,
	%s VARCHAR(255) NOT NULL,
	%s TEXT NOT NULL,
	%s BIGINT NOT NULL,
	%s %s NOT NULL,
	%s %s NOT NULL,
	%s BOOLEAN NOT NULL DEFAULT FALSE,
	%s %s,
	%s TEXT,
	%s TEXT,
	PRIMARY KEY (%s, %s)
)`,
			table,
			colCollection,
			colID,
			colAttributes,
			colVersion,
			colCreatedAt, timeType,
			colUpdatedAt, timeType,
			colIndexed,
			colIndexedAt, timeType,
			colIndexError,
			colEmbeddingTxt,
			colCollection, colID,
		),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_collection_indexed ON %s (%s, %s)",
			table, table, colCollection, colIndexed),
	}
}

// Create inserts a new entity at version 1.
func (ed *EntDriver) Create(ctx context.Context, e *entity.Entity) (*entity.Entity, error) {
	if e == nil {
		return nil, errors.New("cannot store nil entity")
	}

	stored := e.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Attributes == nil {
		stored.Attributes = map[string]any{}
	}
	now := ed.now().UTC()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.Index = entity.IndexStatus{}

	attrs, err := json.Marshal(stored.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	exists, err := ed.exists(ctx, stored.Collection, stored.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, storage.ErrAlreadyExists
	}

	q, args := ed.builder().Insert(table).
		Columns(columns...).
		Values(
			string(stored.Collection), stored.ID, string(attrs), stored.Version,
			formatTime(now), formatTime(now), false, nil, nil, nil,
		).
		Query()
	if err := ed.Driver.Exec(ctx, q, args, nil); err != nil {
		return nil, fmt.Errorf("failed to insert entity: %w", err)
	}
	return stored, nil
}

// Get retrieves an entity by collection and id.
func (ed *EntDriver) Get(ctx context.Context, c entity.Collection, id string) (*entity.Entity, error) {
	q, args := ed.builder().Select(columns...).
		From(entsql.Table(table)).
		Where(entsql.And(entsql.EQ(colCollection, string(c)), entsql.EQ(colID, id))).
		Query()

	found, err := ed.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, storage.NotFoundError{Collection: string(c), ID: id}
	}
	return found[0], nil
}

// List returns the entities of a collection in ascending id order.
// Attribute filters are evaluated after loading because attribute storage
// is dialect neutral JSON text.
func (ed *EntDriver) List(ctx context.Context, c entity.Collection, opts storage.ListOptions) ([]*entity.Entity, error) {
	preds := []*entsql.Predicate{entsql.EQ(colCollection, string(c))}
	if opts.VectorIndexed != nil {
		preds = append(preds, entsql.EQ(colIndexed, *opts.VectorIndexed))
	}

	sel := ed.builder().Select(columns...).
		From(entsql.Table(table)).
		Where(entsql.And(preds...)).
		OrderBy(colID)
	if len(opts.Filter) == 0 {
		switch {
		case opts.Limit > 0:
			sel.Limit(opts.Limit)
		case opts.Offset > 0:
			// OFFSET is only valid after LIMIT on SQLite.
			sel.Limit(math.MaxInt32)
		}
		if opts.Offset > 0 {
			sel.Offset(opts.Offset)
		}
	}
	q, args := sel.Query()

	found, err := ed.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(opts.Filter) == 0 {
		return found, nil
	}

	filtered := found[:0]
	for _, e := range found {
		if storage.Matches(e.Attributes, opts.Filter) {
			filtered = append(filtered, e)
		}
	}
	return storage.Paginate(filtered, opts), nil
}

// Update merges attrs into the stored attributes and bumps the version.
// Concurrent updates are resolved with a compare-and-swap on version.
func (ed *EntDriver) Update(ctx context.Context, c entity.Collection, id string, attrs map[string]any) (*entity.Entity, error) {
	for range maxUpdateAttempts {
		current, err := ed.Get(ctx, c, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		for k, v := range attrs {
			next.Attributes[k] = v
		}
		next.Version = current.Version + 1
		next.UpdatedAt = ed.now().UTC()

		encoded, err := json.Marshal(next.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal attributes: %w", err)
		}

		q, args := ed.builder().Update(table).
			Set(colAttributes, string(encoded)).
			Set(colVersion, next.Version).
			Set(colUpdatedAt, formatTime(next.UpdatedAt)).
			Where(entsql.And(
				entsql.EQ(colCollection, string(c)),
				entsql.EQ(colID, id),
				entsql.EQ(colVersion, current.Version),
			)).
			Query()

		n, err := ed.exec(ctx, q, args)
		if err != nil {
			return nil, fmt.Errorf("failed to update entity: %w", err)
		}
		if n == 1 {
			return next, nil
		}
	}
	return nil, fmt.Errorf("failed to update entity %s/%s: concurrent modification", c, id)
}

// Delete removes an entity.
func (ed *EntDriver) Delete(ctx context.Context, c entity.Collection, id string) error {
	q, args := ed.builder().Delete(table).
		Where(entsql.And(entsql.EQ(colCollection, string(c)), entsql.EQ(colID, id))).
		Query()
	n, err := ed.exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{Collection: string(c), ID: id}
	}
	return nil
}

// SetIndexStatus writes only the index status columns.
func (ed *EntDriver) SetIndexStatus(ctx context.Context, c entity.Collection, id string, status entity.IndexStatus) error {
	var indexedAt any
	if status.VectorIndexedAt != nil {
		indexedAt = formatTime(*status.VectorIndexedAt)
	}

	q, args := ed.builder().Update(table).
		Set(colIndexed, status.VectorIndexed).
		Set(colIndexedAt, indexedAt).
		Set(colIndexError, nullable(status.VectorIndexingError)).
		Set(colEmbeddingTxt, nullable(status.EmbeddingText)).
		Where(entsql.And(entsql.EQ(colCollection, string(c)), entsql.EQ(colID, id))).
		Query()
	n, err := ed.exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("failed to update index status: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{Collection: string(c), ID: id}
	}
	return nil
}

// Ping checks the database connection.
func (ed *EntDriver) Ping(ctx context.Context) error {
	return ed.Driver.DB().PingContext(ctx)
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

func (ed *EntDriver) exists(ctx context.Context, c entity.Collection, id string) (bool, error) {
	_, err := ed.Get(ctx, c, id)
	if err == nil {
		return true, nil
	}
	if storage.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (ed *EntDriver) exec(ctx context.Context, q string, args []any) (int64, error) {
	var res sql.Result
	if err := ed.Driver.Exec(ctx, q, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (ed *EntDriver) query(ctx context.Context, q string, args []any) ([]*entity.Entity, error) {
	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	result := make([]*entity.Entity, 0)
	for rows.Next() {
		var (
			collection, id, attrs, createdAt, updatedAt string
			version                                    int64
			indexed                                    bool
			indexedAt, indexErr, embeddingText         sql.NullString
		)
		if err := rows.Scan(&collection, &id, &attrs, &version, &createdAt, &updatedAt,
			&indexed, &indexedAt, &indexErr, &embeddingText); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}

		e := &entity.Entity{
			ID:         id,
			Collection: entity.Collection(collection),
			Version:    version,
			CreatedAt:  parseTime(createdAt),
			UpdatedAt:  parseTime(updatedAt),
			Index: entity.IndexStatus{
				VectorIndexed:       indexed,
				VectorIndexingError: fromNull(indexErr),
				EmbeddingText:       fromNull(embeddingText),
			},
		}
		if indexedAt.Valid {
			t := parseTime(indexedAt.String)
			e.Index.VectorIndexedAt = &t
		}
		if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes of %s/%s: %w", collection, id, err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
