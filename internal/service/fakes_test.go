package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"projecthub/internal/auth"
	"projecthub/internal/domain"
	"projecthub/internal/domain/models"
	"projecthub/internal/domain/repositories"
	"projecthub/internal/domain/services"

	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory stand-in for the database. It enforces the same
// unique keys and cascades as the Postgres schema.
type memStore struct {
	mu           sync.Mutex
	users        map[string]models.User
	projects     map[string]models.Project
	participants map[string][]string // project ID -> user IDs in invite order
	documents    map[string]models.Document

	failDocumentUpdate bool
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]models.User{},
		projects:     map[string]models.Project{},
		participants: map[string][]string{},
		documents:    map[string]models.Document{},
	}
}

type memSnapshot struct {
	users        map[string]models.User
	projects     map[string]models.Project
	participants map[string][]string
	documents    map[string]models.Document
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		users:        make(map[string]models.User, len(s.users)),
		projects:     make(map[string]models.Project, len(s.projects)),
		participants: make(map[string][]string, len(s.participants)),
		documents:    make(map[string]models.Document, len(s.documents)),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.projects {
		snap.projects[k] = v
	}
	for k, v := range s.participants {
		snap.participants[k] = append([]string(nil), v...)
	}
	for k, v := range s.documents {
		snap.documents[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.projects = snap.projects
	s.participants = snap.participants
	s.documents = snap.documents
}

// memTxManager rolls the store back when fn fails. Like pool.Begin, it
// refuses to start on a cancelled context.
type memTxManager struct {
	store *memStore
	open  atomic.Int32
}

var _ repositories.TransactionManager = (*memTxManager)(nil)

func (m *memTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	m.open.Add(1)
	defer m.open.Add(-1)

	snap := m.store.snapshot()
	if err := fn(ctx); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return &domain.ConflictError{Message: "username taken", ResourceType: "user", ResourceID: u.ID}
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, domain.ErrNotFound)
}

func (r *memUserRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.users, id)
	for pid, p := range r.s.projects {
		if p.OwnerID == id {
			r.s.deleteProjectLocked(pid)
		}
	}
	for pid, members := range r.s.participants {
		kept := members[:0]
		for _, m := range members {
			if m != id {
				kept = append(kept, m)
			}
		}
		r.s.participants[pid] = kept
	}
	return nil
}

func (s *memStore) deleteProjectLocked(id string) {
	delete(s.projects, id)
	delete(s.participants, id)
	for did, d := range s.documents {
		if d.BelongsTo(id) {
			delete(s.documents, did)
		}
	}
}

func (s *memStore) loadProjectLocked(id string) (models.Project, bool) {
	p, ok := s.projects[id]
	if !ok {
		return p, false
	}
	p.Participants = []models.UserSummary{}
	for _, uid := range s.participants[id] {
		u := s.users[uid]
		p.Participants = append(p.Participants, u.Summary())
	}
	return p, true
}

type memProjectRepo struct{ s *memStore }

func (r *memProjectRepo) Create(ctx context.Context, project *models.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *project
	stored.Participants = nil
	stored.Documents = nil
	r.s.projects[project.ID] = stored
	return nil
}

func (r *memProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.loadProjectLocked(id)
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (r *memProjectRepo) ListForUser(ctx context.Context, userID string) ([]models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Project
	for id := range r.s.projects {
		p, _ := r.s.loadProjectLocked(id)
		if p.OwnerID == userID || p.HasParticipant(userID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memProjectRepo) ListOwnedIDs(ctx context.Context, ownerID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for id, p := range r.s.projects {
		if p.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memProjectRepo) Update(ctx context.Context, project *models.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.projects[project.ID]
	if !ok {
		return fmt.Errorf("project %s: %w", project.ID, domain.ErrNotFound)
	}
	stored.Name = project.Name
	stored.Description = project.Description
	stored.UpdatedAt = project.UpdatedAt
	r.s.projects[project.ID] = stored
	return nil
}

func (r *memProjectRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	r.s.deleteProjectLocked(id)
	return nil
}

func (r *memProjectRepo) AddParticipant(ctx context.Context, projectID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[projectID]; !ok {
		return fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	for _, m := range r.s.participants[projectID] {
		if m == userID {
			return &domain.ConflictError{Message: "user already in project", ResourceType: "participant", ResourceID: userID}
		}
	}
	r.s.participants[projectID] = append(r.s.participants[projectID], userID)
	return nil
}

type memDocumentRepo struct{ s *memStore }

func (r *memDocumentRepo) keyTakenLocked(key, exceptID string) (string, bool) {
	for id, d := range r.s.documents {
		if d.StorageKey == key && id != exceptID {
			return id, true
		}
	}
	return "", false
}

func (r *memDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id, taken := r.keyTakenLocked(doc.StorageKey, ""); taken {
		return &domain.ConflictError{Message: "storage key taken", ResourceType: "document", ResourceID: id}
	}
	r.s.documents[doc.ID] = *doc
	return nil
}

func (r *memDocumentRepo) GetByID(ctx context.Context, id string) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return &d, nil
}

func (r *memDocumentRepo) ListByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Document
	for _, d := range r.s.documents {
		if d.BelongsTo(projectID) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (r *memDocumentRepo) ListByProjects(ctx context.Context, projectIDs []string) (map[string][]models.Document, error) {
	out := make(map[string][]models.Document, len(projectIDs))
	for _, id := range projectIDs {
		docs, _ := r.ListByProject(ctx, id)
		if len(docs) > 0 {
			out[id] = docs
		}
	}
	return out, nil
}

func (r *memDocumentRepo) Update(ctx context.Context, doc *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failDocumentUpdate {
		return errors.New("connection reset")
	}
	if _, ok := r.s.documents[doc.ID]; !ok {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}
	if id, taken := r.keyTakenLocked(doc.StorageKey, doc.ID); taken {
		return &domain.ConflictError{Message: "storage key taken", ResourceType: "document", ResourceID: id}
	}
	r.s.documents[doc.ID] = *doc
	return nil
}

func (r *memDocumentRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.documents, id)
	return nil
}

// memStorage is an in-memory object store with switchable failures
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	failUpload bool
	failDelete bool
	// hideExisting makes Exists report false, simulating a concurrent
	// upload that lands between the check and the write
	hideExisting bool
	// beforeUpload runs at the start of every upload
	beforeUpload func()
	// afterDelete runs after every successful delete
	afterDelete func()
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideExisting {
		return false, nil
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStorage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, createOnly bool) error {
	if m.beforeUpload != nil {
		m.beforeUpload()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpload {
		return fmt.Errorf("%w: upload %s: bucket unavailable", domain.ErrStorage, key)
	}
	if _, ok := m.objects[key]; ok && createOnly {
		return &domain.ConflictError{Message: "object exists", ResourceType: "document"}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStorage) PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.test/bucket/%s?X-Amz-Expires=%d", key, int(ttl.Seconds())), nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return fmt.Errorf("%w: delete %s: bucket unavailable", domain.ErrStorage, key)
	}
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	if m.afterDelete != nil {
		m.afterDelete()
	}
	return nil
}

func (m *memStorage) content(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return string(data), ok
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires the three services over shared in-memory backends
type testEnv struct {
	store    *memStore
	storage  *memStorage
	tx       *memTxManager
	tokens   *auth.HMACTokenService
	accounts services.AccountService
	projects services.ProjectService
	docs     services.DocumentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := discardLogger()
	store := newMemStore()
	storage := newMemStorage()
	users := &memUserRepo{s: store}
	projects := &memProjectRepo{s: store}
	documents := &memDocumentRepo{s: store}
	tx := &memTxManager{store: store}

	tokens, err := auth.NewHMACTokenService("test-secret", "projecthub", 30*time.Minute, logger)
	if err != nil {
		t.Fatalf("NewHMACTokenService: %v", err)
	}

	accounts, err := NewAccountService(users, projects, documents, storage,
		auth.NewBcryptHasher(bcrypt.MinCost), tokens, tokens, logger)
	if err != nil {
		t.Fatalf("NewAccountService: %v", err)
	}

	return &testEnv{
		store:    store,
		storage:  storage,
		tx:       tx,
		tokens:   tokens,
		accounts: accounts,
		projects: NewProjectService(projects, documents, users, storage, tx, logger),
		docs:     NewDocumentService(projects, documents, storage, tx, time.Hour, logger),
	}
}

func (e *testEnv) register(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := e.accounts.Register(context.Background(), &services.RegisterRequest{
		Username:       username,
		Password:       "password123",
		RepeatPassword: "password123",
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return user
}

func (e *testEnv) createProject(t *testing.T, owner *models.User, name string) *models.Project {
	t.Helper()
	project, err := e.projects.CreateProject(context.Background(), owner, &services.CreateProjectRequest{Name: name})
	if err != nil {
		t.Fatalf("CreateProject(%s): %v", name, err)
	}
	return project
}

func (e *testEnv) invite(t *testing.T, owner *models.User, projectID string, invitee *models.User) {
	t.Helper()
	if _, err := e.projects.InviteParticipant(context.Background(), owner, projectID, invitee.Username); err != nil {
		t.Fatalf("InviteParticipant(%s): %v", invitee.Username, err)
	}
}

func (e *testEnv) upload(t *testing.T, user *models.User, projectID, filename, content string) *models.Document {
	t.Helper()
	doc, err := e.docs.UploadDocument(context.Background(), user, projectID, textFile(filename, content))
	if err != nil {
		t.Fatalf("UploadDocument(%s): %v", filename, err)
	}
	return doc
}

func textFile(filename, content string) *services.UploadedFile {
	return &services.UploadedFile{
		Filename:    filename,
		Content:     strings.NewReader(content),
		Size:        int64(len(content)),
		ContentType: "text/plain",
	}
}

func (s *memStore) documentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.documents)
}
