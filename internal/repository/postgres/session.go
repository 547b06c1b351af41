package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridebroker/internal/domain"
	"ridebroker/internal/repository"
)

// SessionRepository is a PostgreSQL implementation of repository.SessionRepository.
type SessionRepository struct {
	q Querier
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{q: db}
}

// NewSessionRepositoryWithTx creates a session repository using a transaction.
func NewSessionRepositoryWithTx(tx *sql.Tx) *SessionRepository {
	return &SessionRepository{q: tx}
}

const sessionColumns = `id, owner_id, origin_lat, origin_lng, origin_label,
	dest_lat, dest_lng, dest_label, dest_name,
	fare_amount, fare_metadata, request_type, target_driver_id,
	status, wave, selected_driver_id, selected_offer_id, final_amount, qr_token_id,
	created_at, discovery_start_at, last_wave_at, hold_start_at,
	confirmed_at, completed_at, canceled_at, cancel_reason`

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, s *domain.RideSession) error {
	query := `
		INSERT INTO ride_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	_, err := r.q.ExecContext(ctx, query,
		s.ID,
		s.OwnerID,
		s.Origin.Lat,
		s.Origin.Lng,
		s.Origin.Label,
		s.Destination.Lat,
		s.Destination.Lng,
		s.Destination.Label,
		nullString(s.Destination.Name),
		s.FareAmount,
		s.FareMetadata,
		string(s.RequestType),
		nullString(s.TargetDriverID),
		string(s.Status),
		s.Wave,
		nullString(s.SelectedDriverID),
		nullString(s.SelectedOfferID),
		s.FinalAmount,
		nullString(s.QRTokenID),
		s.CreatedAt,
		nullTime(s.DiscoveryStartAt),
		nullTime(s.LastWaveAt),
		nullTime(s.HoldStartAt),
		nullTime(s.ConfirmedAt),
		nullTime(s.CompletedAt),
		nullTime(s.CanceledAt),
		nullString(s.CancelReason),
	)

	return err
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.RideSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM ride_sessions WHERE id = $1`
	return r.scanSession(r.q.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves a session with its row locked. Meaningful
// only inside a transaction; the lock is what serializes concurrent
// selection commits per session.
func (r *SessionRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.RideSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM ride_sessions WHERE id = $1 FOR UPDATE`
	return r.scanSession(r.q.QueryRowContext(ctx, query, id))
}

// Update updates an existing session. Immutable creation facts are not
// touched; only state-machine fields are written.
func (r *SessionRepository) Update(ctx context.Context, s *domain.RideSession) error {
	query := `
		UPDATE ride_sessions
		SET status = $1, wave = $2, selected_driver_id = $3, selected_offer_id = $4,
		    final_amount = $5, qr_token_id = $6,
		    discovery_start_at = $7, last_wave_at = $8, hold_start_at = $9,
		    confirmed_at = $10, completed_at = $11, canceled_at = $12, cancel_reason = $13
		WHERE id = $14
	`

	result, err := r.q.ExecContext(ctx, query,
		string(s.Status),
		s.Wave,
		nullString(s.SelectedDriverID),
		nullString(s.SelectedOfferID),
		s.FinalAmount,
		nullString(s.QRTokenID),
		nullTime(s.DiscoveryStartAt),
		nullTime(s.LastWaveAt),
		nullTime(s.HoldStartAt),
		nullTime(s.ConfirmedAt),
		nullTime(s.CompletedAt),
		nullTime(s.CanceledAt),
		nullString(s.CancelReason),
		s.ID,
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

// ListByStatusOlderThan returns sessions in the given status whose
// reference timestamp predates the cutoff.
func (r *SessionRepository) ListByStatusOlderThan(ctx context.Context, status domain.SessionStatus, cutoff time.Time, limit int) ([]*domain.RideSession, error) {
	column := "created_at"
	switch status {
	case domain.SessionStatusDiscovery:
		column = "COALESCE(last_wave_at, discovery_start_at)"
	case domain.SessionStatusHold:
		column = "hold_start_at"
	}

	query := `SELECT ` + sessionColumns + ` FROM ride_sessions
		WHERE status = $1 AND ` + column + ` < $2
		ORDER BY created_at ASC LIMIT $3`

	rows, err := r.q.QueryContext(ctx, query, string(status), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.RideSession
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SessionRepository) scanSession(row rowScanner) (*domain.RideSession, error) {
	var s domain.RideSession
	var destName, targetDriverID, selectedDriverID, selectedOfferID, qrTokenID, cancelReason sql.NullString
	var discoveryStartAt, lastWaveAt, holdStartAt, confirmedAt, completedAt, canceledAt sql.NullTime
	var requestType, status string

	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.Origin.Lat,
		&s.Origin.Lng,
		&s.Origin.Label,
		&s.Destination.Lat,
		&s.Destination.Lng,
		&s.Destination.Label,
		&destName,
		&s.FareAmount,
		&s.FareMetadata,
		&requestType,
		&targetDriverID,
		&status,
		&s.Wave,
		&selectedDriverID,
		&selectedOfferID,
		&s.FinalAmount,
		&qrTokenID,
		&s.CreatedAt,
		&discoveryStartAt,
		&lastWaveAt,
		&holdStartAt,
		&confirmedAt,
		&completedAt,
		&canceledAt,
		&cancelReason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	s.RequestType = domain.RequestType(requestType)
	s.Status = domain.SessionStatus(status)
	s.Destination.Name = destName.String
	s.TargetDriverID = targetDriverID.String
	s.SelectedDriverID = selectedDriverID.String
	s.SelectedOfferID = selectedOfferID.String
	s.QRTokenID = qrTokenID.String
	s.CancelReason = cancelReason.String
	s.DiscoveryStartAt = discoveryStartAt.Time
	s.LastWaveAt = lastWaveAt.Time
	s.HoldStartAt = holdStartAt.Time
	s.ConfirmedAt = confirmedAt.Time
	s.CompletedAt = completedAt.Time
	s.CanceledAt = canceledAt.Time

	return &s, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
