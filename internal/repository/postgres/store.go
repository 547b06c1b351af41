package postgres

import (
	"context"
	"database/sql"

	"ridebroker/internal/repository"
)

// TxStore runs functions inside a single database transaction with
// transaction-scoped repositories. This is the backing for the
// selection coordinator's all-or-nothing commit.
type TxStore struct {
	db *sql.DB
}

// NewTxStore creates a TxStore over the given database.
func NewTxStore(db *sql.DB) *TxStore {
	return &TxStore{db: db}
}

// RunInTx begins a transaction, hands transaction-scoped repositories
// to fn, and commits iff fn returns nil. Any error rolls everything
// back, so a partial selection can never become visible.
func (s *TxStore) RunInTx(ctx context.Context, fn func(repos repository.TxRepos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	repos := repository.TxRepos{
		Sessions: NewSessionRepositoryWithTx(tx),
		Offers:   NewOfferRepositoryWithTx(tx),
		Events:   NewEventRepositoryWithTx(tx),
	}

	if err := fn(repos); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

var _ repository.TxStore = (*TxStore)(nil)
