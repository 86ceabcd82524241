package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/dmitrijs2005/rentdesk/internal/logging"
	"github.com/dmitrijs2005/rentdesk/internal/server/auth"
	"github.com/dmitrijs2005/rentdesk/internal/server/models"
	"github.com/dmitrijs2005/rentdesk/internal/server/services"
	"github.com/dmitrijs2005/rentdesk/internal/server/storage"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubUsers struct {
	registerFn func(email, password, language string) (*services.RegisterResult, error)
	verifyFn   func(token string) (*models.User, error)
	resendFn   func(email string) error
	loginFn    func(email, password string) (string, error)
	adminFn    func(email, password string) (string, error)
	getFn      func(email string) (*models.User, error)
	listFn     func() ([]models.User, error)
	deleteFn   func(id string) error
	deleteByFn func(email string) error
}

func (s *stubUsers) Register(_ context.Context, email, password, language string) (*services.RegisterResult, error) {
	return s.registerFn(email, password, language)
}
func (s *stubUsers) VerifyEmail(_ context.Context, token string) (*models.User, error) {
	return s.verifyFn(token)
}
func (s *stubUsers) ResendVerification(_ context.Context, email string) error {
	return s.resendFn(email)
}
func (s *stubUsers) Login(_ context.Context, email, password string) (string, error) {
	return s.loginFn(email, password)
}
func (s *stubUsers) AdminLogin(_ context.Context, email, password string) (string, error) {
	return s.adminFn(email, password)
}
func (s *stubUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.getFn(email)
}
func (s *stubUsers) ListUsers(_ context.Context) ([]models.User, error) { return s.listFn() }
func (s *stubUsers) DeleteUser(_ context.Context, id string) error    { return s.deleteFn(id) }
func (s *stubUsers) DeleteUserByEmail(_ context.Context, email string) error {
	return s.deleteByFn(email)
}

type stubLicenses struct {
	uploadFn     func(email string, in services.Upload) (*models.License, error)
	mineFn       func(email string) ([]models.License, error)
	listFn       func() ([]models.LicenseWithUser, error)
	groupedFn    func() ([]models.UserLicenses, error)
	getFn        func(id string) (*services.LicenseDetails, error)
	updateFn     func(id string, status models.LicenseStatus, notes *string) (*models.License, error)
	updateUserFn func(userID string, status models.LicenseStatus, notes *string) ([]models.License, error)
	openFn       func(bucket, name string) (*storage.Object, error)
}

func (s *stubLicenses) Upload(_ context.Context, email string, in services.Upload) (*models.License, error) {
	return s.uploadFn(email, in)
}
func (s *stubLicenses) MyLicenses(_ context.Context, email string) ([]models.License, error) {
	return s.mineFn(email)
}
func (s *stubLicenses) ListLicensesWithUsers(_ context.Context) ([]models.LicenseWithUser, error) {
	return s.listFn()
}
func (s *stubLicenses) ListGrouped(_ context.Context) ([]models.UserLicenses, error) {
	return s.groupedFn()
}
func (s *stubLicenses) GetLicense(_ context.Context, id string) (*services.LicenseDetails, error) {
	return s.getFn(id)
}
func (s *stubLicenses) UpdateStatus(_ context.Context, id string, status models.LicenseStatus, notes *string) (*models.License, error) {
	return s.updateFn(id, status, notes)
}
func (s *stubLicenses) UpdateStatusForUser(_ context.Context, userID string, status models.LicenseStatus, notes *string) ([]models.License, error) {
	return s.updateUserFn(userID, status, notes)
}
func (s *stubLicenses) OpenFile(_ context.Context, bucket, name string) (*storage.Object, error) {
	return s.openFn(bucket, name)
}

func newTestServer(us *stubUsers, ls *stubLicenses) http.Handler {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	return NewServer(":0", logging.Discard(), us, ls, metrics, testSecret).Handler()
}

func bearer(t *testing.T, email string, isAdmin bool) string {
	t.Helper()
	tok, err := auth.GenerateToken(email, isAdmin, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, h http.Handler, method, path, authz, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set(common.AuthorizationHeaderName, authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
