package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/dmitrijs2005/rentdesk/internal/dbx"
	"github.com/dmitrijs2005/rentdesk/internal/logging"
	"github.com/dmitrijs2005/rentdesk/internal/server/config"
	"github.com/dmitrijs2005/rentdesk/internal/server/models"
	"github.com/dmitrijs2005/rentdesk/internal/server/notify"
	"github.com/dmitrijs2005/rentdesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/rentdesk/internal/server/storage"
	"github.com/google/uuid"
)

// FilesRoute is the public path under which stored files are proxied.
const FilesRoute = "/api/v1/auth/files"

// presignTTL is the lifetime of download links handed to administrators.
const presignTTL = 15 * time.Minute

// Recorder counts license events. *metrics.Metrics satisfies it.
type Recorder interface {
	Upload(licenseType, outcome string)
	Review(status string)
}

type nopRecorder struct{}

func (nopRecorder) Upload(string, string) {}
func (nopRecorder) Review(string)         {}

// Upload is one license image sent by a user.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
	LicenseType string
}

// LicenseDetails is a license with its owner and a temporary download link.
type LicenseDetails struct {
	License     *models.License `json:"license"`
	User        *models.User    `json:"user"`
	DownloadURL string          `json:"download_url,omitempty"`
}

// LicenseService implements the license review flow: uploads by users and
// listing and status changes by administrators.
type LicenseService struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	store       storage.Store
	notifier    notify.Notifier
	recorder    Recorder
	logger      logging.Logger

	adminEmail      string
	defaultLanguage string
}

func NewLicenseService(tx dbx.Transactor, m repomanager.RepositoryManager, store storage.Store, notifier notify.Notifier,
	recorder Recorder, cfg *config.Config, logger logging.Logger) *LicenseService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &LicenseService{
		tx:              tx,
		repomanager:     m,
		store:           store,
		notifier:        notifier,
		recorder:        recorder,
		logger:          logger,
		adminEmail:      cfg.AdminEmail,
		defaultLanguage: cfg.DefaultLanguage,
	}
}

// Upload stores the image and records it as pending review. A user holds at
// most one license per type; re-uploading a rejected one replaces it, any
// other existing record yields common.ErrorAlreadyExists.
func (s *LicenseService) Upload(ctx context.Context, email string, in Upload) (*models.License, error) {
	if !strings.HasPrefix(strings.ToLower(in.ContentType), "image/") {
		return nil, common.ErrInvalidUpload
	}
	if len(in.Data) > common.MaxUploadSize {
		return nil, common.ErrPayloadTooLarge
	}
	if in.LicenseType == "" {
		in.LicenseType = models.LicenseTypeFront
	}
	if !models.ValidLicenseType(in.LicenseType) {
		return nil, common.ErrInvalidLicenseType
	}

	db := s.tx.DB()
	user, err := s.repomanager.Users(db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	// cheap check before the object is written; repeated under lock below
	existing, err := s.repomanager.Licenses(db).GetByUserAndType(ctx, user.ID, in.LicenseType, false)
	switch {
	case err == nil:
		if existing.Status != models.LicenseStatusRejected {
			return nil, common.ErrorAlreadyExists
		}
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error searching license: %w", err)
	}

	name := uuid.NewString() + "." + fileExtension(in.ContentType)
	location, err := s.store.Put(ctx, name, in.Data, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("error storing file: %w", err)
	}

	record := &models.License{
		UserID:      user.ID,
		FileName:    name,
		FileURL:     FilesRoute + location,
		FileSize:    int64(len(in.Data)),
		ContentType: in.ContentType,
		LicenseType: in.LicenseType,
		Status:      models.LicenseStatusPending,
	}

	var (
		result   *models.License
		replaced string
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Licenses(tx)

		current, err := repo.GetByUserAndType(ctx, user.ID, in.LicenseType, true)
		if err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			result, err = repo.Create(ctx, record)
			return err
		}

		if current.Status != models.LicenseStatusRejected {
			return common.ErrorAlreadyExists
		}
		result, err = repo.Replace(ctx, current.ID, record)
		if err != nil {
			return err
		}
		replaced = current.FileName
		return nil
	})
	if err != nil {
		s.deleteFile(ctx, name)
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error saving license: %w", err)
	}

	outcome := "created"
	if replaced != "" {
		outcome = "replaced"
		s.deleteFile(ctx, replaced)
	}
	s.recorder.Upload(in.LicenseType, outcome)

	if s.adminEmail != "" {
		s.notifier.SendLicenseUploaded(ctx, s.adminEmail, user.Email, user.ID, s.defaultLanguage)
	}

	return result, nil
}

// MyLicenses returns the caller's licenses, common.ErrorNotFound when none.
func (s *LicenseService) MyLicenses(ctx context.Context, email string) ([]models.License, error) {
	db := s.tx.DB()
	user, err := s.repomanager.Users(db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	list, err := s.repomanager.Licenses(db).ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing licenses: %w", err)
	}
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return list, nil
}

func (s *LicenseService) ListLicensesWithUsers(ctx context.Context) ([]models.LicenseWithUser, error) {
	list, err := s.repomanager.Licenses(s.tx.DB()).ListWithUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing licenses: %w", err)
	}
	return list, nil
}

// ListGrouped returns the review queue grouped per user with aggregate status.
func (s *LicenseService) ListGrouped(ctx context.Context) ([]models.UserLicenses, error) {
	list, err := s.ListLicensesWithUsers(ctx)
	if err != nil {
		return nil, err
	}
	return models.GroupByUser(list), nil
}

// GetLicense returns a license with its owner. The download link is left
// empty when presigning fails.
func (s *LicenseService) GetLicense(ctx context.Context, id string) (*LicenseDetails, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	db := s.tx.DB()
	license, err := s.repomanager.Licenses(db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error searching license: %w", err)
	}

	user, err := s.repomanager.Users(db).GetByID(ctx, license.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	details := &LicenseDetails{License: license, User: user}
	if u, err := s.store.PresignGet(ctx, license.FileName, presignTTL); err != nil {
		s.logger.Warn(ctx, "failed to presign license download", "license_id", id, "error", err)
	} else {
		details.DownloadURL = u
	}
	return details, nil
}

// UpdateStatus sets the review status of one license and notifies its owner
// when the license was approved or rejected.
func (s *LicenseService) UpdateStatus(ctx context.Context, id string, status models.LicenseStatus, notes *string) (*models.License, error) {
	if !status.Valid() {
		return nil, common.ErrInvalidStatus
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	var (
		license *models.License
		owner   *models.User
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		license, err = s.repomanager.Licenses(tx).UpdateStatus(ctx, id, status, notes)
		if err != nil {
			return err
		}
		owner, err = s.repomanager.Users(tx).GetByID(ctx, license.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error updating license: %w", err)
	}

	s.recorder.Review(string(status))
	s.notifyReview(ctx, owner, status, notes)
	return license, nil
}

// UpdateStatusForUser applies one review decision to every license of a
// user. The owner is notified once for the whole batch.
func (s *LicenseService) UpdateStatusForUser(ctx context.Context, userID string, status models.LicenseStatus, notes *string) ([]models.License, error) {
	if !status.Valid() {
		return nil, common.ErrInvalidStatus
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, common.ErrorNotFound
	}

	var (
		updated []models.License
		owner   *models.User
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		owner, err = s.repomanager.Users(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}

		repo := s.repomanager.Licenses(tx)
		list, err := repo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return common.ErrorNotFound
		}

		for _, l := range list {
			u, err := repo.UpdateStatus(ctx, l.ID, status, notes)
			if err != nil {
				return err
			}
			updated = append(updated, *u)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error updating licenses: %w", err)
	}

	for range updated {
		s.recorder.Review(string(status))
	}
	s.notifyReview(ctx, owner, status, notes)
	return updated, nil
}

// OpenFile opens a stored license image for the file proxy.
func (s *LicenseService) OpenFile(ctx context.Context, bucket, name string) (*storage.Object, error) {
	if bucket != s.store.Bucket() || name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return nil, common.ErrorNotFound
	}
	return s.store.Get(ctx, name)
}

func (s *LicenseService) notifyReview(ctx context.Context, owner *models.User, status models.LicenseStatus, notes *string) {
	switch status {
	case models.LicenseStatusApproved:
		s.notifier.SendLicenseApproved(ctx, owner.Email, owner.Language)
	case models.LicenseStatusRejected:
		reason := ""
		if notes != nil {
			reason = *notes
		}
		s.notifier.SendLicenseRejected(ctx, owner.Email, reason, owner.Language)
	}
}

func (s *LicenseService) deleteFile(ctx context.Context, name string) {
	if err := s.store.Delete(ctx, name); err != nil {
		s.logger.Warn(ctx, "failed to delete stored file", "file", name, "error", err)
	}
}

// storedExtensions maps accepted image content types to the extension of
// the stored object. The client's file name is never consulted.
var storedExtensions = map[string]string{
	"image/jpeg":  "jpg",
	"image/jpg":   "jpg",
	"image/pjpeg": "jpg",
	"image/png":   "png",
	"image/x-png": "png",
	"image/gif":   "gif",
	"image/webp":  "webp",
}

// fileExtension returns the stored extension for a declared content type,
// "jpg" for any image type outside the allowlist.
func fileExtension(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if ext, ok := storedExtensions[ct]; ok {
		return ext
	}
	return "jpg"
}
