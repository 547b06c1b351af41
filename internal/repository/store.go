package repository

import "context"

// TxRepos bundles the repositories participating in one transaction.
type TxRepos struct {
	Sessions SessionRepository
	Offers   OfferRepository
	Events   EventRepository
}

// TxStore runs a function against transaction-scoped repositories. The
// selection coordinator's multi-row commit goes through this so it is
// all-or-nothing; the postgres implementation backs it with a single
// database transaction and row-level locks.
type TxStore interface {
	RunInTx(ctx context.Context, fn func(repos TxRepos) error) error
}
