package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
)

type RequestRepository interface {
	Create(ctx context.Context, recipientID int64, p *domain.CreateRequestPayload) (*domain.DonationRequest, error)
	CreateBroadcast(ctx context.Context, hospitalID int64, broadcastID string, donorID int64, p *domain.BroadcastPayload) (*domain.DonationRequest, error)
	GetByID(ctx context.Context, id int64) (*domain.DonationRequest, error)
	ListByRecipient(ctx context.Context, recipientID int64, status *domain.RequestStatus, limit, offset int) ([]domain.DonationRequest, error)
	ListByDonor(ctx context.Context, donorID int64, status *domain.RequestStatus, limit, offset int) ([]domain.DonationRequest, error)
	// Accept, Reject and Complete are conditional updates: they succeed only
	// when the row is still in the source state, so concurrent callers cannot
	// both win a transition. A nil result means the guard did not match.
	Accept(ctx context.Context, id int64) (*domain.DonationRequest, error)
	Reject(ctx context.Context, id int64) (*domain.DonationRequest, error)
	Complete(ctx context.Context, id int64) (*domain.DonationRequest, error)
	Expire(ctx context.Context, id int64) (*domain.DonationRequest, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]domain.DonationRequest, error)
	HasAcceptedBetween(ctx context.Context, donorID, userID int64) (bool, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestCols = `id, recipient_id, donor_id, hospital_id, broadcast_id, status,
blood_type, units_needed, urgency, patient_name, contact_phone, message,
accepted_at, completed_at, created_at`

func scanRequest(row pgx.Row) (*domain.DonationRequest, error) {
	var dr domain.DonationRequest
	err := row.Scan(
		&dr.ID, &dr.RecipientID, &dr.DonorID, &dr.HospitalID, &dr.BroadcastID, &dr.Status,
		&dr.BloodType, &dr.UnitsNeeded, &dr.Urgency, &dr.PatientName, &dr.ContactPhone, &dr.Message,
		&dr.AcceptedAt, &dr.CompletedAt, &dr.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dr, nil
}

func (r *requestRepository) Create(ctx context.Context, recipientID int64, p *domain.CreateRequestPayload) (*domain.DonationRequest, error) {
	const q = `INSERT INTO donation_requests (
		recipient_id, donor_id, status,
		blood_type, units_needed, urgency, patient_name, contact_phone, message
	) VALUES ($1,$2,'pending',$3,$4,$5,$6,$7,$8)
	RETURNING ` + requestCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q,
		recipientID, p.DonorID,
		p.BloodType, p.UnitsNeeded, p.Urgency, p.PatientName, p.ContactPhone, p.Message,
	))
}

// CreateBroadcast inserts one independent pending request targeting a single
// donor; the broadcasting hospital acts as both recipient and mediator.
func (r *requestRepository) CreateBroadcast(ctx context.Context, hospitalID int64, broadcastID string, donorID int64, p *domain.BroadcastPayload) (*domain.DonationRequest, error) {
	const q = `INSERT INTO donation_requests (
		recipient_id, donor_id, hospital_id, broadcast_id, status,
		blood_type, units_needed, urgency, patient_name, contact_phone, message
	) VALUES ($1,$2,$3,$4,'pending',$5,$6,'emergency',$7,$8,$9)
	RETURNING ` + requestCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q,
		hospitalID, donorID, hospitalID, broadcastID,
		p.BloodType, p.UnitsNeeded, p.PatientName, p.ContactPhone, p.Message,
	))
}

func (r *requestRepository) GetByID(ctx context.Context, id int64) (*domain.DonationRequest, error) {
	const q = `SELECT ` + requestCols + ` FROM donation_requests WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q, id))
}

func (r *requestRepository) list(ctx context.Context, col string, userID int64, status *domain.RequestStatus, limit, offset int) ([]domain.DonationRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + requestCols + ` FROM donation_requests WHERE ` + col + ` = $1`
	args := []any{userID}
	if status != nil {
		q += ` AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, *status, limit, offset)
	} else {
		q += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.DonationRequest
	for rows.Next() {
		var dr domain.DonationRequest
		if err := rows.Scan(
			&dr.ID, &dr.RecipientID, &dr.DonorID, &dr.HospitalID, &dr.BroadcastID, &dr.Status,
			&dr.BloodType, &dr.UnitsNeeded, &dr.Urgency, &dr.PatientName, &dr.ContactPhone, &dr.Message,
			&dr.AcceptedAt, &dr.CompletedAt, &dr.CreatedAt,
		); err != nil {
			return nil, err
		}
		requests = append(requests, dr)
	}
	return requests, rows.Err()
}

func (r *requestRepository) ListByRecipient(ctx context.Context, recipientID int64, status *domain.RequestStatus, limit, offset int) ([]domain.DonationRequest, error) {
	return r.list(ctx, "recipient_id", recipientID, status, limit, offset)
}

func (r *requestRepository) ListByDonor(ctx context.Context, donorID int64, status *domain.RequestStatus, limit, offset int) ([]domain.DonationRequest, error) {
	return r.list(ctx, "donor_id", donorID, status, limit, offset)
}

func (r *requestRepository) Accept(ctx context.Context, id int64) (*domain.DonationRequest, error) {
	const q = `
		UPDATE donation_requests
		SET status = 'accepted', accepted_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q, id))
}

func (r *requestRepository) Reject(ctx context.Context, id int64) (*domain.DonationRequest, error) {
	const q = `
		UPDATE donation_requests
		SET status = 'rejected'
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q, id))
}

func (r *requestRepository) Complete(ctx context.Context, id int64) (*domain.DonationRequest, error) {
	const q = `
		UPDATE donation_requests
		SET status = 'completed', completed_at = now()
		WHERE id = $1 AND status = 'accepted'
		RETURNING ` + requestCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q, id))
}

func (r *requestRepository) Expire(ctx context.Context, id int64) (*domain.DonationRequest, error) {
	const q = `
		UPDATE donation_requests
		SET status = 'expired'
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRequest(r.pool.QueryRow(ctx, q, id))
}

func (r *requestRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]domain.DonationRequest, error) {
	const q = `
		UPDATE donation_requests
		SET status = 'expired'
		WHERE status = 'pending' AND created_at < $1
		RETURNING ` + requestCols

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.DonationRequest
	for rows.Next() {
		var dr domain.DonationRequest
		if err := rows.Scan(
			&dr.ID, &dr.RecipientID, &dr.DonorID, &dr.HospitalID, &dr.BroadcastID, &dr.Status,
			&dr.BloodType, &dr.UnitsNeeded, &dr.Urgency, &dr.PatientName, &dr.ContactPhone, &dr.Message,
			&dr.AcceptedAt, &dr.CompletedAt, &dr.CreatedAt,
		); err != nil {
			return nil, err
		}
		expired = append(expired, dr)
	}
	return expired, rows.Err()
}

func (r *requestRepository) HasAcceptedBetween(ctx context.Context, donorID, userID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM donation_requests
			WHERE donor_id = $1
			  AND recipient_id = $2
			  AND status IN ('accepted', 'completed')
		)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, q, donorID, userID).Scan(&exists)
	return exists, err
}
