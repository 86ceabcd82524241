// Package services contains server-side business logic. This file implements
// UserService: registration with email verification, authentication, token
// issuing and user administration.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/dmitrijs2005/rentdesk/internal/dbx"
	"github.com/dmitrijs2005/rentdesk/internal/logging"
	"github.com/dmitrijs2005/rentdesk/internal/server/auth"
	"github.com/dmitrijs2005/rentdesk/internal/server/config"
	"github.com/dmitrijs2005/rentdesk/internal/server/models"
	"github.com/dmitrijs2005/rentdesk/internal/server/notify"
	"github.com/dmitrijs2005/rentdesk/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/rentdesk/internal/server/repositories/users"
	"github.com/dmitrijs2005/rentdesk/internal/server/storage"
	"github.com/google/uuid"
)

// Limiter throttles repeated actions per key.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// supportedLanguages are the notification languages a user may choose.
var supportedLanguages = map[string]bool{"en": true, "zh-CN": true, "zh-TW": true, "ja": true}

// RegisterResult is the outcome of Register. VerificationResent is set when
// the email belonged to an unverified account and a new link was sent
// instead of creating a user.
type RegisterResult struct {
	User               *models.User
	VerificationResent bool
}

// UserService provides account operations:
// - Register / VerifyEmail / ResendVerification: email verification flow
// - Login / AdminLogin: verify credentials and mint access tokens
// - ListUsers / DeleteUser / DeleteUserByEmail: administration
type UserService struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	store       storage.Store
	notifier    notify.Notifier
	limiter     Limiter
	logger      logging.Logger

	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	baseURL                     string
	defaultLanguage             string

	now func() time.Time
}

// NewUserService constructs a UserService. store and limiter may be nil: without
// a store files of deleted users are left in place, without a limiter resends
// are not throttled.
func NewUserService(tx dbx.Transactor, m repomanager.RepositoryManager, store storage.Store, notifier notify.Notifier,
	limiter Limiter, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		tx:                          tx,
		repomanager:                 m,
		store:                       store,
		notifier:                    notifier,
		limiter:                     limiter,
		logger:                      logger,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		baseURL:                     cfg.BaseURL,
		defaultLanguage:             cfg.DefaultLanguage,
		now:                         time.Now,
	}
}

// Register creates an unverified account and sends a verification link. For an
// email that belongs to an unverified account the link is reissued instead; a
// verified account yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, password, language string) (*RegisterResult, error) {
	result, token, err := s.register(ctx, email, password, language)
	if errors.Is(err, errConcurrentRegistration) {
		// the other request committed; this attempt now sees its row
		result, token, err = s.register(ctx, email, password, language)
	}
	if err != nil {
		if errors.Is(err, errConcurrentRegistration) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, err
	}

	s.notifier.SendVerification(ctx, email, s.verificationLink(token), result.User.Language)
	return result, nil
}

// errConcurrentRegistration marks a lost race on the unique email index.
var errConcurrentRegistration = errors.New("concurrent registration")

func (s *UserService) register(ctx context.Context, email, password, language string) (*RegisterResult, string, error) {
	token, digest, expires, err := s.newVerificationToken()
	if err != nil {
		return nil, "", err
	}

	lang := s.language(language)
	result := &RegisterResult{}

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		existing, err := repo.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if existing.IsVerified {
				return common.ErrorAlreadyExists
			}
			if err := s.checkResendLimit(ctx, email); err != nil {
				return err
			}
			if err := repo.SetVerificationToken(ctx, existing.ID, digest, expires); err != nil {
				return fmt.Errorf("error updating verification token: %w", err)
			}
			result.User = existing
			result.VerificationResent = true
			return nil
		case !errors.Is(err, common.ErrorNotFound):
			return fmt.Errorf("error searching user: %w", err)
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}

		user, err := repo.Create(ctx, &models.User{
			Email:                    email,
			HashedPassword:           hash,
			Language:                 lang,
			VerificationToken:        &digest,
			VerificationTokenExpires: &expires,
		})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return errConcurrentRegistration
			}
			return fmt.Errorf("error creating user: %w", err)
		}
		result.User = user
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return result, token, nil
}

// VerifyEmail redeems a verification token and activates its account. Unknown
// and expired tokens are not told apart.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, common.ErrInvalidOrExpiredVerificationToken
	}

	user, err := s.repomanager.Users(s.tx.DB()).VerifyByToken(ctx, common.HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, common.ErrInvalidOrExpiredVerificationToken) {
			return nil, err
		}
		return nil, fmt.Errorf("error verifying email: %w", err)
	}

	s.notifier.SendWelcome(ctx, user.Email, user.Language)
	return user, nil
}

// ResendVerification issues a fresh link for an unverified account.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	repo := s.repomanager.Users(s.tx.DB())

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrVerificationRejected
		}
		return fmt.Errorf("error searching user: %w", err)
	}
	if user.IsVerified {
		return common.ErrVerificationRejected
	}

	if err := s.checkResendLimit(ctx, email); err != nil {
		return err
	}

	token, digest, expires, err := s.newVerificationToken()
	if err != nil {
		return err
	}
	if err := repo.SetVerificationToken(ctx, user.ID, digest, expires); err != nil {
		return fmt.Errorf("error updating verification token: %w", err)
	}

	s.notifier.SendVerification(ctx, email, s.verificationLink(token), user.Language)
	return nil
}

// Authenticate checks the credentials of a verified, active account. All
// failures yield common.ErrorUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repomanager.Users(s.tx.DB()).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// keep timing close to the existing-user path
			auth.CheckPassword(dummyHash(), password)
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !auth.CheckPassword(user.HashedPassword, password) {
		return nil, common.ErrorUnauthorized
	}
	if !user.IsVerified || !user.IsActive {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// Login authenticates the user and returns an access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	return s.generateAccessToken(user.Email, false)
}

// AdminLogin is Login restricted to administrators; the token carries the
// admin flag.
func (s *UserService) AdminLogin(ctx context.Context, email, password string) (string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	if !user.IsAdmin {
		return "", common.ErrorUnauthorized
	}
	return s.generateAccessToken(user.Email, true)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repomanager.Users(s.tx.DB()).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repomanager.Users(s.tx.DB()).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// DeleteUser removes the user and all of their licenses in one transaction.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}
	return s.deleteUser(ctx, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		return s.repomanager.Users(tx).GetByID(ctx, id)
	})
}

func (s *UserService) DeleteUserByEmail(ctx context.Context, email string) error {
	return s.deleteUser(ctx, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		return s.repomanager.Users(tx).GetByEmail(ctx, email)
	})
}

func (s *UserService) deleteUser(ctx context.Context, find func(context.Context, dbx.DBTX) (*models.User, error)) error {
	var files []string

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := find(ctx, tx)
		if err != nil {
			return err
		}

		files, err = s.repomanager.Licenses(tx).DeleteByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("error deleting licenses: %w", err)
		}

		return s.repomanager.Users(tx).Delete(ctx, user.ID)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error deleting user: %w", err)
	}

	if s.store != nil {
		for _, f := range files {
			if err := s.store.Delete(ctx, f); err != nil {
				s.logger.Warn(ctx, "failed to delete stored file", "file", f, "error", err)
			}
		}
	}
	return nil
}

// EnsureAdmin creates a verified administrator when no account with email
// exists. An existing account is left untouched. It reports whether an
// account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	created := false
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		_, err := repo.GetByEmail(ctx, email)
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if err := s.createAdmin(ctx, repo, email, password); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("error ensuring admin: %w", err)
	}
	return created, nil
}

// PromoteAdmin grants administrator rights to an existing account, or creates
// the administrator when the account does not exist and password is set.
func (s *UserService) PromoteAdmin(ctx context.Context, email, password string) (bool, error) {
	created := false
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		_, err := repo.GetByEmail(ctx, email)
		if err == nil {
			return repo.Promote(ctx, email)
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if password == "" {
			return common.ErrorNotFound
		}
		if err := s.createAdmin(ctx, repo, email, password); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, err
		}
		return false, fmt.Errorf("error promoting admin: %w", err)
	}
	return created, nil
}

func (s *UserService) createAdmin(ctx context.Context, repo usersrepo.Repository, email, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = repo.Create(ctx, &models.User{
		Email:          email,
		HashedPassword: hash,
		IsActive:       true,
		IsAdmin:        true,
		IsVerified:     true,
		Language:       s.defaultLanguage,
	})
	return err
}

// --- helpers below ---

func (s *UserService) generateAccessToken(email string, isAdmin bool) (string, error) {
	token, err := auth.GenerateToken(email, isAdmin, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// newVerificationToken returns the token to mail, its stored digest and its expiry.
func (s *UserService) newVerificationToken() (string, string, time.Time, error) {
	token, err := common.MakeRandHexString(32)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("error generating verification token: %w", err)
	}
	return token, common.HashToken(token), s.now().Add(common.VerificationTokenValidity), nil
}

func (s *UserService) verificationLink(token string) string {
	return s.baseURL + "/verify-email?token=" + url.QueryEscape(token)
}

func (s *UserService) language(lang string) string {
	if supportedLanguages[lang] {
		return lang
	}
	return s.defaultLanguage
}

// checkResendLimit fails open when the limiter itself is unavailable.
func (s *UserService) checkResendLimit(ctx context.Context, email string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Allow(ctx, email)
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrTooManyRequests) {
		return err
	}
	s.logger.Warn(ctx, "resend limiter unavailable", "error", err)
	return nil
}

var (
	dummyHashOnce  sync.Once
	dummyHashValue string
)

// dummyHash is compared against when the user does not exist.
func dummyHash() string {
	dummyHashOnce.Do(func() {
		dummyHashValue, _ = auth.HashPassword("rentdesk-dummy-password")
	})
	return dummyHashValue
}
