package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"projecthub/internal/auth"
	"projecthub/internal/config"
	"projecthub/internal/domain"
	"projecthub/internal/domain/models"
	"projecthub/internal/domain/repositories"
	"projecthub/internal/domain/services"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// accountService implements the AccountService interface
type accountService struct {
	userRepo     repositories.UserRepository
	projectRepo  repositories.ProjectRepository
	documentRepo repositories.DocumentRepository
	storage      services.ObjectStorage
	hasher       auth.PasswordHasher
	tokens       auth.TokenIssuer
	verifier     auth.TokenVerifier
	logger       *slog.Logger

	// compared against when the username is unknown so both login
	// failure paths cost one bcrypt comparison
	dummyHash string
}

// NewAccountService creates a new account service
func NewAccountService(
	userRepo repositories.UserRepository,
	projectRepo repositories.ProjectRepository,
	documentRepo repositories.DocumentRepository,
	storage services.ObjectStorage,
	hasher auth.PasswordHasher,
	tokens auth.TokenIssuer,
	verifier auth.TokenVerifier,
	logger *slog.Logger,
) (services.AccountService, error) {
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy password hash: %w", err)
	}

	return &accountService{
		userRepo:     userRepo,
		projectRepo:  projectRepo,
		documentRepo: documentRepo,
		storage:      storage,
		hasher:       hasher,
		tokens:       tokens,
		verifier:     verifier,
		logger:       logger,
		dummyHash:    dummyHash,
	}, nil
}

// Register creates a new user account
func (s *accountService) Register(ctx context.Context, req *services.RegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)

	if err := s.validateRegisterRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	// A taken username is reported before a password mismatch
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("username '%s' already exists", req.Username),
			ResourceType: "user",
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if req.Password != req.RepeatPassword {
		return nil, fmt.Errorf("%w: passwords do not match", domain.ErrValidation)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	// Racing registrations are caught by the unique index
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		"user_id", user.ID,
		"username", user.Username,
	)

	return user, nil
}

// Login verifies credentials and issues a bearer token
func (s *accountService) Login(ctx context.Context, req *services.LoginRequest) (*models.AccessToken, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrUnauthorized)
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = s.hasher.Compare(s.dummyHash, req.Password)
			s.logger.Debug("login failed: unknown user", "username", username)
			return nil, fmt.Errorf("%w: invalid username or password", domain.ErrUnauthorized)
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.logger.Debug("login failed: wrong password", "user_id", user.ID)
			return nil, fmt.Errorf("%w: invalid username or password", domain.ErrUnauthorized)
		}
		return nil, err
	}

	token, err := s.tokens.IssueToken(user.Username)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return token, nil
}

// Authenticate resolves a bearer token to the user named by its subject
func (s *accountService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.verifier.VerifyToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByUsername(ctx, claims.GetUsername())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Account deleted after the token was issued
			return nil, fmt.Errorf("%w: unknown token subject", domain.ErrUnauthorized)
		}
		return nil, err
	}

	return user, nil
}

// DeleteAccount removes the blobs of every project the user owns, then the
// user row. Rows for owned projects, their documents and the user's
// participations are removed by cascade. It runs to completion even if the
// request is cancelled.
func (s *accountService) DeleteAccount(ctx context.Context, user *models.User) error {
	ctx = context.WithoutCancel(ctx)

	projectIDs, err := s.projectRepo.ListOwnedIDs(ctx, user.ID)
	if err != nil {
		return err
	}

	if len(projectIDs) > 0 {
		docsByProject, err := s.documentRepo.ListByProjects(ctx, projectIDs)
		if err != nil {
			return err
		}
		for projectID, docs := range docsByProject {
			if failed := purgeBlobs(ctx, s.storage, docs, s.logger); failed > 0 {
				s.logger.Warn("orphaned blobs left after account deletion",
					"user_id", user.ID,
					"project_id", projectID,
					"failed", failed,
				)
			}
		}
	}

	if err := s.userRepo.Delete(ctx, user.ID); err != nil {
		return err
	}

	s.logger.Info("account deleted",
		"user_id", user.ID,
		"owned_projects", len(projectIDs),
	)

	return nil
}

// validateRegisterRequest validates a registration request
func (s *accountService) validateRegisterRequest(req *services.RegisterRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Username,
			validation.Required,
			validation.Length(config.MinUsernameLength, config.MaxUsernameLength),
			validation.Match(usernamePattern).Error("may only contain letters, digits, '_', '.' and '-'"),
		),
		validation.Field(&req.Password,
			validation.Required,
			validation.By(validatePasswordLength),
		),
		validation.Field(&req.RepeatPassword, validation.Required),
	)
}

// validatePasswordLength bounds the password in bytes, which is what bcrypt counts
func validatePasswordLength(value interface{}) error {
	password, ok := value.(string)
	if !ok {
		return fmt.Errorf("password must be a string")
	}
	if len(password) < config.MinPasswordLength {
		return fmt.Errorf("must be at least %d characters", config.MinPasswordLength)
	}
	if len(password) > config.MaxPasswordLength {
		return fmt.Errorf("must be at most %d bytes", config.MaxPasswordLength)
	}
	return nil
}
