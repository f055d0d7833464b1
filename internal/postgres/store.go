// Package postgres implements the durable store contracts on PostgreSQL
// using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements domain.Store on PostgreSQL.
type Store struct {
	db     DBTX
	inTx   bool
	logger zerolog.Logger
}

var _ domain.Store = (*Store)(nil)

// NewStore creates a store backed by the pool.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{db: pool, logger: logger.With().Str("component", "postgres").Logger()}
}

// Ledger implements domain.Store.
func (s *Store) Ledger() domain.StockLedger { return &Ledger{db: s.db} }

// Catalog returns the ledger with its concrete type, which also lists products.
func (s *Store) Catalog() *Ledger { return &Ledger{db: s.db} }

// Orders implements domain.Store.
func (s *Store) Orders() domain.OrderRepository { return &Orders{store: s} }

// Wishlists returns the wishlist repository.
func (s *Store) Wishlists() *Wishlists { return &Wishlists{db: s.db} }

// WithinTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
			return
		}
		if cErr := tx.Commit(ctx); cErr != nil {
			err = fmt.Errorf("commit transaction: %w", cErr)
		}
	}()

	return fn(&Store{db: tx, inTx: true, logger: s.logger})
}
