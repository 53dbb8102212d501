// Package postgres implements the persistence layer on PostgreSQL via pgx.
//
// Bulk writes stage rows into a transient temp table with COPY and merge
// them into the durable table in the same transaction, since COPY alone has
// no upsert semantics.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bobmcallan/stockwatch/internal/common"
	"github.com/bobmcallan/stockwatch/internal/interfaces"
)

// Postgres error codes the store branches on.
const (
	pgCheckViolation  = "23514"
	pgUniqueViolation = "23505"
)

// Store owns the connection pool and all on-disk state.
type Store struct {
	pool   *pgxpool.Pool
	logger *common.Logger
}

// StoreOption configures the store
type StoreOption func(*Store)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore connects to the database at url and verifies the connection.
func NewStore(ctx context.Context, url string, opts ...StoreOption) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{
		pool:   pool,
		logger: common.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// constraintErr rewraps check and unique violations with the violated
// constraint's name so run logs identify the offending rule directly.
func constraintErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCheckViolation:
			return fmt.Errorf("%s: row violates constraint %s: %w", op, pgErr.ConstraintName, err)
		case pgUniqueViolation:
			return fmt.Errorf("%s: duplicate key on %s: %w", op, pgErr.ConstraintName, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// inTx runs fn inside one transaction, rolling back on any failure.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var (
	_ interfaces.PriceStore = (*Store)(nil)
	_ interfaces.FXStore    = (*Store)(nil)
)
