package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	awspkg "github.com/yashrajoria/shopflow/pkg/aws"
	"github.com/yashrajoria/shopflow/services/auth-service/models"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"go.uber.org/zap"
)

type IUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type ITokenIssuer interface {
	IssueToken(email, name string) (string, error)
}

type AuthService struct {
	userRepo    IUserRepository
	tokens      ITokenIssuer
	credentials CredentialVerifier
	metrics     awspkg.Recorder
}

func NewAuthService(ur IUserRepository, ts ITokenIssuer, cv CredentialVerifier, metrics awspkg.Recorder) *AuthService {
	return &AuthService{userRepo: ur, tokens: ts, credentials: cv, metrics: metrics}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login returns a signed token for a known user with a matching credential.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", apperrors.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}

	if err := s.credentials.Compare(user.Password, password); err != nil {
		if errors.Is(err, ErrCredentialMismatch) {
			return "", apperrors.ErrCredentialMismatch
		}
		return "", apperrors.ErrInternalServer.Wrap(err)
	}

	token, err := s.tokens.IssueToken(user.Email, user.Name)
	if err != nil {
		return "", apperrors.ErrInternalServer.Wrap(err)
	}
	s.record(awspkg.MetricLogins)
	return token, nil
}

// Register creates a user. The email check here gives a fast answer; the
// unique index in the repository settles concurrent registrations.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = normalizeEmail(email)

	_, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, apperrors.ErrUserAlreadyExists
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	hashed, err := s.credentials.Hash(password)
	if err != nil {
		return nil, apperrors.ErrInternalServer.Wrap(err)
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Password:  hashed,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	zap.L().Info("User registered", zap.String("user_id", user.ID), zap.String("email", user.Email))
	s.record(awspkg.MetricUsersRegistered)
	return user, nil
}

func (s *AuthService) record(metric string) {
	if s.metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(ctx, metric, map[string]string{"Service": "auth-service"})
	}()
}
