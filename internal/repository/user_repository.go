package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Manish-basnet10/Blood-Donation/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, req *domain.RegisterRequest, passwordHash string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, req *domain.UpdateProfileRequest) (*domain.User, error)
	SetAvailability(ctx context.Context, id int64, available bool) (*domain.User, error)
	SearchDonors(ctx context.Context, filter domain.DonorFilter, limit, offset int) ([]domain.User, error)
	FindEligibleDonors(ctx context.Context, bloodType string) ([]domain.User, error)
	MarkVerified(ctx context.Context, userID int64) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userCols = `id, role, email, password_hash, name, phone,
blood_type, is_available, city, address,
is_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Role, &u.Email, &u.PasswordHash, &u.Name, &u.Phone,
		&u.BloodType, &u.IsAvailable, &u.City, &u.Address,
		&u.IsVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, req *domain.RegisterRequest, passwordHash string) (*domain.User, error) {
	const q = `
		INSERT INTO users (role, email, password_hash, name, phone, blood_type, is_available, city, address, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	// New donors start available; the flag is meaningless for other roles.
	available := req.Role == domain.RoleDonor

	return scanUser(r.pool.QueryRow(ctx, q,
		req.Role, req.Email, passwordHash, req.Name, req.Phone,
		req.BloodType, available, req.City, req.Address,
	))
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepository) UpdateProfile(ctx context.Context, id int64, req *domain.UpdateProfileRequest) (*domain.User, error) {
	const q = `
		UPDATE users
		SET
			name    = COALESCE($2, name),
			phone   = COALESCE($3, phone),
			city    = COALESCE($4, city),
			address = COALESCE($5, address),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id, req.Name, req.Phone, req.City, req.Address))
}

func (r *userRepository) SetAvailability(ctx context.Context, id int64, available bool) (*domain.User, error) {
	const q = `
		UPDATE users SET is_available = $2, updated_at = now()
		WHERE id = $1 AND role = 'donor'
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id, available))
}

func (r *userRepository) SearchDonors(ctx context.Context, filter domain.DonorFilter, limit, offset int) ([]domain.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + userCols + ` FROM users WHERE role = 'donor'`
	args := []any{}
	n := 0
	if filter.BloodType != "" {
		n++
		q += ` AND blood_type = $` + itoa(n)
		args = append(args, filter.BloodType)
	}
	if filter.City != "" {
		n++
		q += ` AND city ILIKE $` + itoa(n)
		args = append(args, "%"+filter.City+"%")
	}
	q += ` ORDER BY created_at DESC LIMIT $` + itoa(n+1) + ` OFFSET $` + itoa(n+2)
	args = append(args, limit, offset)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donors []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID, &u.Role, &u.Email, &u.PasswordHash, &u.Name, &u.Phone,
			&u.BloodType, &u.IsAvailable, &u.City, &u.Address,
			&u.IsVerified, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		donors = append(donors, u)
	}
	return donors, rows.Err()
}

// FindEligibleDonors returns every available donor of the given blood type.
// Broadcast fan-out must cover the whole target set, so unlike SearchDonors
// this query is not paged.
func (r *userRepository) FindEligibleDonors(ctx context.Context, bloodType string) ([]domain.User, error) {
	const q = `SELECT ` + userCols + `
		FROM users
		WHERE role = 'donor' AND is_available AND blood_type = $1
		ORDER BY id`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, bloodType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donors []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID, &u.Role, &u.Email, &u.PasswordHash, &u.Name, &u.Phone,
			&u.BloodType, &u.IsAvailable, &u.City, &u.Address,
			&u.IsVerified, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		donors = append(donors, u)
	}
	return donors, rows.Err()
}

func (r *userRepository) MarkVerified(ctx context.Context, userID int64) error {
	const q = `UPDATE users SET is_verified = true, updated_at = now() WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
