package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	SetVerificationToken(ctx context.Context, id string, tokenHash string, expires time.Time) error
	VerifyByToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	Promote(ctx context.Context, email string) error
	Delete(ctx context.Context, id string) error
}
