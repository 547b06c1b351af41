package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridebroker/internal/domain"
	"ridebroker/internal/repository"
)

// OfferRepository is a PostgreSQL implementation of repository.OfferRepository.
type OfferRepository struct {
	q Querier
}

// NewOfferRepository creates a new PostgreSQL offer repository.
func NewOfferRepository(db *sql.DB) *OfferRepository {
	return &OfferRepository{q: db}
}

// NewOfferRepositoryWithTx creates an offer repository using a transaction.
func NewOfferRepositoryWithTx(tx *sql.Tx) *OfferRepository {
	return &OfferRepository{q: tx}
}

const offerColumns = `id, session_id, driver_id, offer_type, amount, note, status, created_at, expires_at`

// Create persists a new offer.
func (r *OfferRepository) Create(ctx context.Context, o *domain.Offer) error {
	query := `
		INSERT INTO offers (` + offerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var amount sql.NullFloat64
	if o.Type == domain.OfferTypeCounter {
		amount = sql.NullFloat64{Float64: o.Amount, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		o.ID,
		o.SessionID,
		o.DriverID,
		string(o.Type),
		amount,
		nullString(o.Note),
		string(o.Status),
		o.CreatedAt,
		o.ExpiresAt,
	)

	return err
}

// GetByID retrieves an offer by ID.
func (r *OfferRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	return scanOffer(r.q.QueryRowContext(ctx, query, id))
}

// ListBySession returns every offer for a session, oldest first.
func (r *OfferRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE session_id = $1 ORDER BY created_at ASC`

	rows, err := r.q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// CountPendingBySession returns the number of pending offers for a session.
func (r *OfferRepository) CountPendingBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offers WHERE session_id = $1 AND status = $2`,
		sessionID, string(domain.OfferStatusPending),
	).Scan(&count)
	return count, err
}

// UpdateStatus moves an offer to a new status.
func (r *OfferRepository) UpdateStatus(ctx context.Context, id string, status domain.OfferStatus) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE offers SET status = $1 WHERE id = $2`, string(status), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RejectPendingExcept marks every pending offer of the session as
// rejected, except the named one.
func (r *OfferRepository) RejectPendingExcept(ctx context.Context, sessionID, keepOfferID string) ([]string, error) {
	query := `
		UPDATE offers SET status = $1
		WHERE session_id = $2 AND status = $3 AND id <> $4
		RETURNING id
	`
	return collectIDs(r.q.QueryContext(ctx, query,
		string(domain.OfferStatusRejected), sessionID, string(domain.OfferStatusPending), keepOfferID))
}

// ExpirePendingBefore marks lapsed pending offers as expired.
func (r *OfferRepository) ExpirePendingBefore(ctx context.Context, sessionID string, cutoff time.Time) ([]string, error) {
	if sessionID != "" {
		query := `
			UPDATE offers SET status = $1
			WHERE session_id = $2 AND status = $3 AND expires_at < $4
			RETURNING id
		`
		return collectIDs(r.q.QueryContext(ctx, query,
			string(domain.OfferStatusExpired), sessionID, string(domain.OfferStatusPending), cutoff))
	}

	query := `
		UPDATE offers SET status = $1
		WHERE status = $2 AND expires_at < $3
		RETURNING id
	`
	return collectIDs(r.q.QueryContext(ctx, query,
		string(domain.OfferStatusExpired), string(domain.OfferStatusPending), cutoff))
}

func collectIDs(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanOffer(row rowScanner) (*domain.Offer, error) {
	var o domain.Offer
	var offerType, status string
	var amount sql.NullFloat64
	var note sql.NullString

	err := row.Scan(
		&o.ID,
		&o.SessionID,
		&o.DriverID,
		&offerType,
		&amount,
		&note,
		&status,
		&o.CreatedAt,
		&o.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	o.Type = domain.OfferType(offerType)
	o.Status = domain.OfferStatus(status)
	o.Amount = amount.Float64
	o.Note = note.String

	return &o, nil
}
