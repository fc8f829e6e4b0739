package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"projecthub/internal/domain"
	"projecthub/internal/domain/models"
	"projecthub/internal/domain/services"
	"projecthub/internal/middleware"
)

const (
	testToken     = "good-token"
	testProjectID = "6f1c2a4e-3b7d-4d8e-9a10-2b3c4d5e6f70"
	testDocID     = "0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d"
)

var testUser = &models.User{ID: "9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a", Username: "alice", PasswordHash: "$2a$10$secret"}

type fakeAccounts struct {
	registered *services.RegisterRequest
	login      *services.LoginRequest
	deleted    bool
}

func (f *fakeAccounts) Register(ctx context.Context, req *services.RegisterRequest) (*models.User, error) {
	f.registered = req
	if req.Username == "taken" {
		return nil, &domain.ConflictError{Message: "username 'taken' already exists", ResourceType: "user"}
	}
	return &models.User{ID: "new-id", Username: req.Username, PasswordHash: "$2a$10$hash"}, nil
}

func (f *fakeAccounts) Login(ctx context.Context, req *services.LoginRequest) (*models.AccessToken, error) {
	f.login = req
	if req.Password != "password123" {
		return nil, domain.ErrUnauthorized
	}
	return &models.AccessToken{AccessToken: "signed", TokenType: "bearer", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeAccounts) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == testToken {
		return testUser, nil
	}
	return nil, domain.ErrUnauthorized
}

func (f *fakeAccounts) DeleteAccount(ctx context.Context, user *models.User) error {
	f.deleted = true
	return nil
}

type fakeProjects struct {
	patch    models.ProjectPatch
	invitee  string
	getErr   error
	deleteID string
}

func (f *fakeProjects) CreateProject(ctx context.Context, user *models.User, req *services.CreateProjectRequest) (*models.Project, error) {
	return &models.Project{ID: testProjectID, Name: req.Name, OwnerID: user.ID, Participants: []models.UserSummary{}}, nil
}

func (f *fakeProjects) ListProjects(ctx context.Context, user *models.User) ([]models.Project, error) {
	return []models.Project{}, nil
}

func (f *fakeProjects) GetProject(ctx context.Context, user *models.User, id string) (*models.Project, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &models.Project{ID: id, OwnerID: user.ID}, nil
}

func (f *fakeProjects) UpdateProject(ctx context.Context, user *models.User, id string, patch models.ProjectPatch) (*models.Project, error) {
	f.patch = patch
	return &models.Project{ID: id, OwnerID: user.ID}, nil
}

func (f *fakeProjects) DeleteProject(ctx context.Context, user *models.User, id string) error {
	f.deleteID = id
	return nil
}

func (f *fakeProjects) InviteParticipant(ctx context.Context, user *models.User, id, username string) (*models.Project, error) {
	f.invitee = username
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	return &models.Project{ID: id, OwnerID: user.ID}, nil
}

type fakeDocuments struct {
	uploaded    string
	uploadedLen int
	contentType string
	uploadErr   error
}

func (f *fakeDocuments) ListDocuments(ctx context.Context, user *models.User, projectID string) ([]models.Document, error) {
	return []models.Document{}, nil
}

func (f *fakeDocuments) UploadDocument(ctx context.Context, user *models.User, projectID string, file *services.UploadedFile) (*models.Document, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, err := io.ReadAll(file.Content)
	if err != nil {
		return nil, err
	}
	f.uploaded = file.Filename
	f.uploadedLen = len(data)
	f.contentType = file.ContentType
	return &models.Document{ID: testDocID, ProjectID: &projectID, Filename: file.Filename, StorageKey: projectID + "/" + file.Filename}, nil
}

func (f *fakeDocuments) GetDownloadLink(ctx context.Context, user *models.User, projectID, documentID string) (*models.DownloadLink, error) {
	return &models.DownloadLink{URL: "https://storage.test/" + projectID + "/file", ExpiresIn: 3600}, nil
}

func (f *fakeDocuments) ReplaceDocument(ctx context.Context, user *models.User, projectID, documentID string, file *services.UploadedFile) (*models.Document, error) {
	return &models.Document{ID: documentID, ProjectID: &projectID, Filename: file.Filename}, nil
}

func (f *fakeDocuments) DeleteDocument(ctx context.Context, user *models.User, projectID, documentID string) error {
	return nil
}

type testServer struct {
	handler  http.Handler
	accounts *fakeAccounts
	projects *fakeProjects
	docs     *fakeDocuments
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := &testServer{
		accounts: &fakeAccounts{},
		projects: &fakeProjects{},
		docs:     &fakeDocuments{},
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, Handlers{
		Auth:      NewAuthHandler(s.accounts, logger),
		Users:     NewUserHandler(s.accounts, logger),
		Projects:  NewProjectHandler(s.projects, logger),
		Documents: NewDocumentHandler(s.docs, maxUpload, logger),
	}, middleware.RequireAuth(s.accounts, logger))

	s.handler = mux
	return s
}

func (s *testServer) do(req *http.Request, authenticated bool) *httptest.ResponseRecorder {
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, method, target, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(content)
	} else {
		mw.WriteField("note", "no file here")
	}
	mw.Close()

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantInBody  string
		wantNotBody string
	}{
		{name: "validation", err: fmt.Errorf("%w: name cannot be empty", domain.ErrValidation), wantStatus: http.StatusBadRequest, wantInBody: "name cannot be empty"},
		{name: "not found", err: fmt.Errorf("project x: %w", domain.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "forbidden", err: fmt.Errorf("access: %w", domain.ErrForbidden), wantStatus: http.StatusForbidden},
		{name: "unauthorized", err: domain.ErrUnauthorized, wantStatus: http.StatusUnauthorized},
		{name: "conflict error", err: &domain.ConflictError{Message: "user already in project", ResourceType: "participant", ResourceID: "u2"}, wantStatus: http.StatusConflict, wantInBody: `"resource_id":"u2"`},
		{name: "wrapped conflict sentinel", err: fmt.Errorf("insert: %w", domain.ErrConflict), wantStatus: http.StatusConflict},
		{name: "storage", err: fmt.Errorf("%w: put p/a.txt: AccessDenied", domain.ErrStorage), wantStatus: http.StatusInternalServerError, wantNotBody: "AccessDenied"},
		{name: "unknown", err: errors.New("pq: connection refused"), wantStatus: http.StatusInternalServerError, wantNotBody: "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), logger, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := rec.Body.String()
			if tt.wantInBody != "" && !strings.Contains(body, tt.wantInBody) {
				t.Errorf("body %s missing %q", body, tt.wantInBody)
			}
			if tt.wantNotBody != "" && strings.Contains(body, tt.wantNotBody) {
				t.Errorf("body %s leaks %q", body, tt.wantNotBody)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	s := newTestServer(t, 1<<20)

	t.Run("json", func(t *testing.T) {
		rec := s.do(jsonRequest(http.MethodPost, "/auth", `{"username":"bob","password":"password123","repeat_password":"password123"}`), false)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
		}

		var body map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body["message"] == "" {
			t.Error("missing message")
		}
		user, _ := body["user"].(map[string]interface{})
		if user["username"] != "bob" {
			t.Errorf("user = %v", user)
		}
		if strings.Contains(rec.Body.String(), "$2a$") {
			t.Error("password hash leaked in response")
		}
	})

	t.Run("form", func(t *testing.T) {
		form := url.Values{"username": {"carol"}, "password": {"password123"}, "repeat_password": {"password123"}}
		req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := s.do(req, false)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
		}
		if s.accounts.registered.RepeatPassword != "password123" {
			t.Errorf("repeat_password not bound: %+v", s.accounts.registered)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		rec := s.do(jsonRequest(http.MethodPost, "/auth", `{"username":"taken","password":"password123","repeat_password":"password123"}`), false)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := s.do(jsonRequest(http.MethodPost, "/auth", `{"username":`), false)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, 1<<20)

	form := url.Values{"username": {"alice"}, "password": {"password123"}, "grant_type": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := s.do(req, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var token models.AccessToken
	if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "signed" || token.TokenType != "bearer" {
		t.Errorf("token = %+v", token)
	}

	rec = s.do(jsonRequest(http.MethodPost, "/login", `{"username":"alice","password":"wrong"}`), false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Error("missing WWW-Authenticate header")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 1<<20)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/users/me"},
		{http.MethodDelete, "/users/me"},
		{http.MethodGet, "/projects"},
		{http.MethodPost, "/projects"},
		{http.MethodGet, "/projects/" + testProjectID},
		{http.MethodPost, "/projects/" + testProjectID + "/invite"},
		{http.MethodGet, "/projects/" + testProjectID + "/documents/" + testDocID},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := s.do(httptest.NewRequest(rt.method, rt.path, nil), false)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil), false)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestUsersMe(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/users/me", nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"username":"alice"`) {
		t.Errorf("body = %s", rec.Body)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Error("password hash leaked")
	}

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/users/me", nil), true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	if !s.accounts.deleted {
		t.Error("DeleteAccount not called")
	}
}

func TestProjectRoutes(t *testing.T) {
	s := newTestServer(t, 1<<20)

	t.Run("malformed id", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/projects/not-a-uuid", nil), true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("forbidden passes through", func(t *testing.T) {
		s.projects.getErr = fmt.Errorf("access: %w", domain.ErrForbidden)
		defer func() { s.projects.getErr = nil }()

		rec := s.do(httptest.NewRequest(http.MethodGet, "/projects/"+testProjectID, nil), true)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("create", func(t *testing.T) {
		rec := s.do(jsonRequest(http.MethodPost, "/projects", `{"name":"Roadmap"}`), true)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
	})

	t.Run("update partial", func(t *testing.T) {
		rec := s.do(jsonRequest(http.MethodPut, "/projects/"+testProjectID, `{"name":"renamed","owner_id":"someone-else"}`), true)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
		}
		if s.projects.patch.Name == nil || *s.projects.patch.Name != "renamed" {
			t.Errorf("patch name = %v", s.projects.patch.Name)
		}
		if s.projects.patch.Description != nil {
			t.Error("absent description should not be patched")
		}
	})

	t.Run("update null name", func(t *testing.T) {
		rec := s.do(jsonRequest(http.MethodPut, "/projects/"+testProjectID, `{"name":null}`), true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodDelete, "/projects/"+strings.ToUpper(testProjectID), nil), true)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if s.projects.deleteID != testProjectID {
			t.Errorf("deleted %q, want canonical %q", s.projects.deleteID, testProjectID)
		}
	})

	t.Run("invite by query", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodPost, "/projects/"+testProjectID+"/invite?user=bob", nil), true)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if s.projects.invitee != "bob" {
			t.Errorf("invitee = %q, want bob", s.projects.invitee)
		}
	})

	t.Run("invite by body", func(t *testing.T) {
		rec := s.do(jsonRequest(http.MethodPost, "/projects/"+testProjectID+"/invite", `{"username":"carol"}`), true)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if s.projects.invitee != "carol" {
			t.Errorf("invitee = %q, want carol", s.projects.invitee)
		}
	})

	t.Run("invite without username", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodPost, "/projects/"+testProjectID+"/invite", nil), true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestDocumentRoutes(t *testing.T) {
	t.Run("upload", func(t *testing.T) {
		s := newTestServer(t, 1<<20)
		req := multipartRequest(t, http.MethodPost, "/projects/"+testProjectID+"/documents", "file", "report.pdf", []byte("%PDF-1.7"))

		rec := s.do(req, true)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
		}
		if s.docs.uploaded != "report.pdf" || s.docs.uploadedLen != len("%PDF-1.7") {
			t.Errorf("uploaded %q (%d bytes)", s.docs.uploaded, s.docs.uploadedLen)
		}
		if s.docs.contentType != "application/octet-stream" {
			t.Errorf("content type = %q", s.docs.contentType)
		}
		if strings.Contains(rec.Body.String(), "storage_key") {
			t.Error("storage key exposed")
		}
	})

	t.Run("missing file field", func(t *testing.T) {
		s := newTestServer(t, 1<<20)
		req := multipartRequest(t, http.MethodPost, "/projects/"+testProjectID+"/documents", "", "", nil)

		rec := s.do(req, true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		s := newTestServer(t, 1024)
		req := multipartRequest(t, http.MethodPost, "/projects/"+testProjectID+"/documents", "file", "big.bin", bytes.Repeat([]byte("x"), 4096))

		rec := s.do(req, true)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", rec.Code)
		}
	})

	t.Run("duplicate upload", func(t *testing.T) {
		s := newTestServer(t, 1<<20)
		s.docs.uploadErr = &domain.ConflictError{Message: "file 'report.pdf' already exists in this project", ResourceType: "document"}
		req := multipartRequest(t, http.MethodPost, "/projects/"+testProjectID+"/documents", "file", "report.pdf", []byte("x"))

		rec := s.do(req, true)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("download link", func(t *testing.T) {
		s := newTestServer(t, 1<<20)
		rec := s.do(httptest.NewRequest(http.MethodGet, "/projects/"+testProjectID+"/documents/"+testDocID, nil), true)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var link models.DownloadLink
		if err := json.Unmarshal(rec.Body.Bytes(), &link); err != nil {
			t.Fatal(err)
		}
		if link.URL == "" || link.ExpiresIn != 3600 {
			t.Errorf("link = %+v", link)
		}
	})

	t.Run("malformed document id", func(t *testing.T) {
		s := newTestServer(t, 1<<20)
		rec := s.do(httptest.NewRequest(http.MethodDelete, "/projects/"+testProjectID+"/documents/42", nil), true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}
