// Package postgres implements the store contract on PostgreSQL via pgx.
// One table per entity type, one transaction per bulk call, COPY for inserts.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ekowhinson/HRMS-sub000/internal/schema"
	"github.com/ekowhinson/HRMS-sub000/internal/store"
)

// uniqueViolation is the PostgreSQL error code for unique-constraint hits.
const uniqueViolation = "23505"

// Store persists entities in PostgreSQL. Table and column names derive from
// the entity registry: table = entity name, columns = field names, plus id,
// key and name bookkeeping columns.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL-backed store on the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool from a connection string and pings it.
func Connect(ctx context.Context, url string, maxConns, minConns int, maxConnLifetime time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	if minConns > 0 {
		cfg.MinConns = int32(minConns)
	}
	if maxConnLifetime > 0 {
		cfg.MaxConnLifetime = maxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// LookupKeys loads every natural key (code and name, lower-cased) for the
// entity type in one query.
func (s *Store) LookupKeys(ctx context.Context, entityType string) (map[string]string, error) {
	query := fmt.Sprintf(
		`SELECT id, lower(natural_key), lower(display_name) FROM %s`,
		quoteIdentifier(entityType),
	)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("lookup keys for %s: %w", entityType, err)
	}
	defer rows.Close()

	keys := make(map[string]string)
	for rows.Next() {
		var id string
		var key, name *string
		if err := rows.Scan(&id, &key, &name); err != nil {
			return nil, fmt.Errorf("scan key row: %w", err)
		}
		if key != nil && *key != "" {
			keys[*key] = id
		}
		if name != nil && *name != "" {
			keys[*name] = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate key rows: %w", err)
	}
	return keys, nil
}

// BulkInsert writes the batch through the COPY protocol inside a single
// transaction. A unique violation is surfaced as a store.ConstraintError so
// the executor can fall back to per-row retry.
func (s *Store) BulkInsert(ctx context.Context, entityType string, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	entity, ok := schema.Get(entityType)
	if !ok {
		return fmt.Errorf("unknown entity type: %s", entityType)
	}
	columns := insertColumns(entity)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	copyRows := make([][]any, len(records))
	for i, rec := range records {
		copyRows[i] = copyRow(entity, columns, rec)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{entityType},
		columns,
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return mapPgError(err, records)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err, records)
	}
	return nil
}

// BulkUpdate updates records by id using one batched statement set inside a
// single transaction.
func (s *Store) BulkUpdate(ctx context.Context, entityType string, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	entity, ok := schema.Get(entityType)
	if !ok {
		return fmt.Errorf("unknown entity type: %s", entityType)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		query, args := updateStatement(entityType, entity, rec)
		batch.Queue(query, args...)
	}

	br := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return mapPgError(err, records)
		}
	}
	if err := br.Close(); err != nil {
		return mapPgError(err, records)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err, records)
	}
	return nil
}

// insertColumns lists the physical columns in deterministic order.
func insertColumns(entity schema.EntityType) []string {
	columns := []string{"id", "natural_key", "display_name", "created_at"}
	for _, f := range entity.Fields {
		if f.Name == entity.KeyField || f.Name == entity.NameField {
			continue
		}
		columns = append(columns, f.Name)
	}
	return columns
}

func copyRow(entity schema.EntityType, columns []string, rec store.Record) []any {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}

	row := make([]any, 0, len(columns))
	row = append(row, id, rec.Key, rec.Name, time.Now().UTC())
	for _, col := range columns[4:] {
		row = append(row, pgValue(rec.Fields[col]))
	}
	return row
}

func updateStatement(table string, entity schema.EntityType, rec store.Record) (string, []any) {
	// Deterministic column order keeps statements cacheable.
	fields := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		if name == entity.KeyField || name == entity.NameField {
			continue
		}
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var sets []string
	args := make([]any, 0, len(fields)+1)
	for i, name := range fields {
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(name), i+1))
		args = append(args, pgValue(rec.Fields[name]))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, rec.ID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		quoteIdentifier(table), strings.Join(sets, ", "), len(args))
	return query, args
}

// pgValue converts coerced values to driver-friendly representations.
// Nil stays nil so the column is NULL.
func pgValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return t.String()
	default:
		return v
	}
}

// mapPgError converts a unique violation into a ConstraintError, pulling the
// offending key out of the detail text when the server provides it.
func mapPgError(err error, records []store.Record) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &store.ConstraintError{
			Key: keyFromDetail(pgErr.Detail, records),
			Err: err,
		}
	}
	return err
}

// keyFromDetail matches the "Key (natural_key)=(X) already exists." detail
// against the batch so the executor can identify the failed record.
func keyFromDetail(detail string, records []store.Record) string {
	detail = strings.ToLower(detail)
	for _, rec := range records {
		if rec.Key != "" && strings.Contains(detail, "("+strings.ToLower(rec.Key)+")") {
			return rec.Key
		}
	}
	return ""
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
