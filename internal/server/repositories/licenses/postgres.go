package licenses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/dmitrijs2005/rentdesk/internal/dbx"
	"github.com/dmitrijs2005/rentdesk/internal/server/models"
)

const licenseColumns = `id, user_id, file_name, file_url, file_size, content_type, license_type,
		 status, admin_notes, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLicense(row scanner, extra ...any) (*models.License, error) {
	l := &models.License{}
	var (
		status string
		notes  sql.NullString
	)
	dest := []any{&l.ID, &l.UserID, &l.FileName, &l.FileURL, &l.FileSize, &l.ContentType, &l.LicenseType,
		&status, &notes, &l.CreatedAt, &l.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	l.Status = models.LicenseStatus(status)
	if notes.Valid {
		l.AdminNotes = &notes.String
	}
	return l, nil
}

func (r *PostgresRepository) Create(ctx context.Context, l *models.License) (*models.License, error) {
	query :=
		`INSERT INTO driver_licenses (user_id, file_name, file_url, file_size, content_type, license_type, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		l.UserID, l.FileName, l.FileURL, l.FileSize, l.ContentType, l.LicenseType, string(l.Status)).
		Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return l, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.License, error) {
	l, err := scanLicense(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.License, error) {
	return r.getOne(ctx, `SELECT `+licenseColumns+` FROM driver_licenses WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByUserAndType(ctx context.Context, userID, licenseType string, forUpdate bool) (*models.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM driver_licenses WHERE user_id = $1 AND license_type = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return r.getOne(ctx, query, userID, licenseType)
}

func (r *PostgresRepository) Replace(ctx context.Context, id string, l *models.License) (*models.License, error) {
	query :=
		`UPDATE driver_licenses SET file_name = $1, file_url = $2, file_size = $3, content_type = $4,
		 status = 'pending', admin_notes = NULL, updated_at = now()
		 WHERE id = $5
		 RETURNING ` + licenseColumns

	return r.getOne(ctx, query, l.FileName, l.FileURL, l.FileSize, l.ContentType, id)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.License, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+licenseColumns+` FROM driver_licenses WHERE user_id = $1 ORDER BY license_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListWithUsers(ctx context.Context) ([]models.LicenseWithUser, error) {
	query :=
		`SELECT l.id, l.user_id, l.file_name, l.file_url, l.file_size, l.content_type, l.license_type,
		 l.status, l.admin_notes, l.created_at, l.updated_at,
		 u.email, u.is_active, u.is_admin, u.is_verified, u.language, u.created_at, u.updated_at
		 FROM driver_licenses l JOIN users u ON u.id = l.user_id
		 ORDER BY l.created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.LicenseWithUser
	for rows.Next() {
		var u models.User
		l, err := scanLicense(rows, &u.Email, &u.IsActive, &u.IsAdmin, &u.IsVerified, &u.Language, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		u.ID = l.UserID
		result = append(result, models.LicenseWithUser{License: *l, User: u})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.LicenseStatus, notes *string) (*models.License, error) {
	query :=
		`UPDATE driver_licenses SET status = $1, admin_notes = $2, updated_at = now()
		 WHERE id = $3
		 RETURNING ` + licenseColumns

	return r.getOne(ctx, query, string(status), notes, id)
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM driver_licenses WHERE user_id = $1 RETURNING file_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return names, nil
}
