package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/dmitrijs2005/rentdesk/internal/dbx"
	"github.com/dmitrijs2005/rentdesk/internal/server/models"
)

const userColumns = `id, email, hashed_password, is_active, is_admin, is_verified, language,
		 verification_token, verification_token_expires, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	var (
		token   sql.NullString
		expires sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.IsActive, &u.IsAdmin, &u.IsVerified, &u.Language,
		&token, &expires, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		u.VerificationToken = &token.String
	}
	if expires.Valid {
		u.VerificationTokenExpires = &expires.Time
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (email, hashed_password, is_active, is_admin, is_verified, language,
		 verification_token, verification_token_expires)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.HashedPassword, user.IsActive, user.IsAdmin, user.IsVerified, user.Language,
		user.VerificationToken, user.VerificationTokenExpires).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// SetVerificationToken replaces the outstanding token digest and expiry.
func (r *PostgresRepository) SetVerificationToken(ctx context.Context, id string, tokenHash string, expires time.Time) error {
	query :=
		`UPDATE users SET verification_token = $1, verification_token_expires = $2, updated_at = now()
		 WHERE id = $3
		 `

	res, err := r.db.ExecContext(ctx, query, tokenHash, expires, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

// VerifyByToken marks the owner of an unexpired token as verified and
// active, clearing the token in the same statement so it cannot be
// redeemed twice.
func (r *PostgresRepository) VerifyByToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	query :=
		`UPDATE users SET is_verified = TRUE, is_active = TRUE,
		 verification_token = NULL, verification_token_expires = NULL, updated_at = now()
		 WHERE verification_token = $1 AND verification_token_expires > $2
		 RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, tokenHash, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrInvalidOrExpiredVerificationToken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// Promote grants administrator rights to an existing account and marks it
// usable.
func (r *PostgresRepository) Promote(ctx context.Context, email string) error {
	query :=
		`UPDATE users SET is_admin = TRUE, is_active = TRUE, is_verified = TRUE, updated_at = now()
		 WHERE email = $1
		 `

	res, err := r.db.ExecContext(ctx, query, email)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
