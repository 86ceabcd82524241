package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/dmitrijs2005/rentdesk/internal/dbx"
	"github.com/dmitrijs2005/rentdesk/internal/logging"
	"github.com/dmitrijs2005/rentdesk/internal/server/config"
	"github.com/dmitrijs2005/rentdesk/internal/server/models"
	"github.com/dmitrijs2005/rentdesk/internal/server/repositories/licenses"
	"github.com/dmitrijs2005/rentdesk/internal/server/repositories/users"
	"github.com/dmitrijs2005/rentdesk/internal/server/storage"
	"github.com/google/uuid"
)

// --- in-memory database ---

type memDB struct {
	mu       sync.Mutex
	users    map[string]models.User
	licenses map[string]models.License
	seq      int
	base     time.Time

	createLicenseErr error

	// concurrentUser is committed by another transaction just before the
	// next user insert, which then fails on the unique email.
	concurrentUser *models.User
	committedByOther []models.User
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[string]models.User{},
		licenses: map[string]models.License{},
		base:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp.
func (m *memDB) tick() time.Time {
	m.seq++
	return m.base.Add(time.Duration(m.seq) * time.Second)
}

func (m *memDB) snapshot() (map[string]models.User, map[string]models.License) {
	u := make(map[string]models.User, len(m.users))
	for k, v := range m.users {
		u[k] = v
	}
	l := make(map[string]models.License, len(m.licenses))
	for k, v := range m.licenses {
		l[k] = v
	}
	return u, l
}

// fakeTransactor restores the memDB when fn fails, like a rollback.
type fakeTransactor struct {
	db    *memDB
	calls int
}

func (t *fakeTransactor) DB() dbx.DBTX { return nil }

func (t *fakeTransactor) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	t.calls++
	t.db.mu.Lock()
	u, l := t.db.snapshot()
	t.db.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		t.db.mu.Lock()
		t.db.users, t.db.licenses = u, l
		for _, other := range t.db.committedByOther {
			t.db.users[other.ID] = other
		}
		t.db.committedByOther = nil
		t.db.mu.Unlock()
		return err
	}
	return nil
}

type fakeRepoManager struct{ db *memDB }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return &fakeUsersRepo{db: m.db} }
func (m *fakeRepoManager) Licenses(dbx.DBTX) licenses.Repository       { return &fakeLicensesRepo{db: m.db} }

// --- users ---

type fakeUsersRepo struct{ db *memDB }

func (r *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if other := r.db.concurrentUser; other != nil {
		r.db.concurrentUser = nil
		other.ID = uuid.NewString()
		other.CreatedAt = r.db.tick()
		other.UpdatedAt = other.CreatedAt
		r.db.users[other.ID] = *other
		r.db.committedByOther = append(r.db.committedByOther, *other)
	}
	for _, e := range r.db.users {
		if e.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = r.db.tick()
	u.UpdatedAt = u.CreatedAt
	r.db.users[u.ID] = *u
	out := *u
	return &out, nil
}

func (r *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *fakeUsersRepo) List(ctx context.Context) ([]models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.User
	for _, u := range r.db.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeUsersRepo) SetVerificationToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.VerificationToken = &tokenHash
	u.VerificationTokenExpires = &expires
	r.db.users[id] = u
	return nil
}

func (r *fakeUsersRepo) VerifyByToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, u := range r.db.users {
		if u.VerificationToken != nil && *u.VerificationToken == tokenHash &&
			u.VerificationTokenExpires != nil && u.VerificationTokenExpires.After(now) {
			u.IsVerified, u.IsActive = true, true
			u.VerificationToken, u.VerificationTokenExpires = nil, nil
			r.db.users[id] = u
			out := u
			return &out, nil
		}
	}
	return nil, common.ErrInvalidOrExpiredVerificationToken
}

func (r *fakeUsersRepo) Promote(ctx context.Context, email string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, u := range r.db.users {
		if u.Email == email {
			u.IsAdmin, u.IsActive, u.IsVerified = true, true, true
			r.db.users[id] = u
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *fakeUsersRepo) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.db.users, id)
	return nil
}

// --- licenses ---

type fakeLicensesRepo struct{ db *memDB }

func (r *fakeLicensesRepo) Create(ctx context.Context, l *models.License) (*models.License, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.createLicenseErr != nil {
		return nil, r.db.createLicenseErr
	}
	for _, e := range r.db.licenses {
		if e.UserID == l.UserID && e.LicenseType == l.LicenseType {
			return nil, common.ErrorAlreadyExists
		}
	}
	l.ID = uuid.NewString()
	l.CreatedAt = r.db.tick()
	l.UpdatedAt = l.CreatedAt
	r.db.licenses[l.ID] = *l
	out := *l
	return &out, nil
}

func (r *fakeLicensesRepo) GetByID(ctx context.Context, id string) (*models.License, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.licenses[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &l, nil
}

func (r *fakeLicensesRepo) GetByUserAndType(ctx context.Context, userID, licenseType string, forUpdate bool) (*models.License, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, l := range r.db.licenses {
		if l.UserID == userID && l.LicenseType == licenseType {
			out := l
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeLicensesRepo) Replace(ctx context.Context, id string, l *models.License) (*models.License, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.licenses[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cur.FileName, cur.FileURL, cur.FileSize, cur.ContentType = l.FileName, l.FileURL, l.FileSize, l.ContentType
	cur.Status = models.LicenseStatusPending
	cur.AdminNotes = nil
	cur.UpdatedAt = r.db.tick()
	r.db.licenses[id] = cur
	return &cur, nil
}

func (r *fakeLicensesRepo) ListByUser(ctx context.Context, userID string) ([]models.License, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.License
	for _, l := range r.db.licenses {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LicenseType < out[j].LicenseType })
	return out, nil
}

func (r *fakeLicensesRepo) ListWithUsers(ctx context.Context) ([]models.LicenseWithUser, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.LicenseWithUser
	for _, l := range r.db.licenses {
		out = append(out, models.LicenseWithUser{License: l, User: r.db.users[l.UserID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeLicensesRepo) UpdateStatus(ctx context.Context, id string, status models.LicenseStatus, notes *string) (*models.License, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.licenses[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	l.Status = status
	l.AdminNotes = notes
	l.UpdatedAt = r.db.tick()
	r.db.licenses[id] = l
	return &l, nil
}

func (r *fakeLicensesRepo) DeleteByUser(ctx context.Context, userID string) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var names []string
	for id, l := range r.db.licenses {
		if l.UserID == userID {
			names = append(names, l.FileName)
			delete(r.db.licenses, id)
		}
	}
	return names, nil
}

// --- object store ---

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	presignOK bool
	deleted   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, presignOK: true}
}

func (s *fakeStore) Bucket() string { return "driver-licenses" }

func (s *fakeStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	s.objects[name] = data
	return "/driver-licenses/" + name, nil
}

func (s *fakeStore) Get(ctx context.Context, name string) (*storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &storage.Object{Body: io.NopCloser(bytes.NewReader(b)), Size: int64(len(b))}, nil
}

func (s *fakeStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *fakeStore) PresignGet(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if !s.presignOK {
		return "", errors.New("presign failed")
	}
	return "http://minio/driver-licenses/" + name + "?sig", nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// --- notifications ---

type sentNotification struct {
	Kind   string
	To     string
	Link   string
	Reason string
	Lang   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) add(s sentNotification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, s)
	return true
}

func (n *recordingNotifier) SendWelcome(ctx context.Context, to, lang string) bool {
	return n.add(sentNotification{Kind: "welcome", To: to, Lang: lang})
}

func (n *recordingNotifier) SendVerification(ctx context.Context, to, link, lang string) bool {
	return n.add(sentNotification{Kind: "verification", To: to, Link: link, Lang: lang})
}

func (n *recordingNotifier) SendLicenseUploaded(ctx context.Context, adminTo, userEmail, userID, lang string) bool {
	return n.add(sentNotification{Kind: "license_uploaded", To: adminTo, Reason: userEmail, Lang: lang})
}

func (n *recordingNotifier) SendLicenseApproved(ctx context.Context, to, lang string) bool {
	return n.add(sentNotification{Kind: "license_approved", To: to, Lang: lang})
}

func (n *recordingNotifier) SendLicenseRejected(ctx context.Context, to, reason, lang string) bool {
	return n.add(sentNotification{Kind: "license_rejected", To: to, Reason: reason, Lang: lang})
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

func (n *recordingNotifier) last() sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

// --- limiter ---

type fakeLimiter struct {
	hits  map[string]int
	limit int
	err   error
}

func (l *fakeLimiter) Allow(ctx context.Context, key string) error {
	if l.err != nil {
		return l.err
	}
	if l.hits == nil {
		l.hits = map[string]int{}
	}
	l.hits[key]++
	if l.hits[key] > l.limit {
		return common.ErrTooManyRequests
	}
	return nil
}

// --- fixture ---

type fixture struct {
	db       *memDB
	tx       *fakeTransactor
	store    *fakeStore
	notifier *recordingNotifier
	users    *UserService
	licenses *LicenseService
	now      time.Time
}

func newFixture() *fixture {
	db := newMemDB()
	f := &fixture{
		db:       db,
		tx:       &fakeTransactor{db: db},
		store:    newFakeStore(),
		notifier: &recordingNotifier{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		BaseURL:                     "http://localhost:3001",
		DefaultLanguage:             "en",
		AdminEmail:                  "admin@example.com",
	}
	rm := &fakeRepoManager{db: db}
	f.users = NewUserService(f.tx, rm, f.store, f.notifier, nil, cfg, logging.Discard())
	f.users.now = func() time.Time { return f.now }
	f.licenses = NewLicenseService(f.tx, rm, f.store, f.notifier, nil, cfg, logging.Discard())
	return f
}
