package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/shopflow/services/auth-service/models"
	"github.com/yashrajoria/shopflow/services/common/auth"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock Repository ---
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func newTestService(repo IUserRepository) (*AuthService, *auth.TokenService) {
	tokens := auth.NewTokenService("this_is_secret", 0)
	return NewAuthService(repo, tokens, NewBcryptVerifier(bcrypt.MinCost), nil), tokens
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user with hashed credential", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newTestService(repo)

		repo.On("FindByEmail", ctx, "a@x.com").Return(nil, apperrors.ErrNotFound).Once()
		repo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
			return u.Email == "a@x.com" && u.Name == "Alice" && u.Password != "p" && u.ID != ""
		})).Return(nil).Once()

		user, err := svc.Register(ctx, " A@x.com ", "p", "Alice")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", user.Email)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("p")))
		repo.AssertExpectations(t)
	})

	t.Run("existing email", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newTestService(repo)
		repo.On("FindByEmail", ctx, "a@x.com").Return(&models.User{Email: "a@x.com"}, nil).Once()

		_, err := svc.Register(ctx, "a@x.com", "p", "Alice")
		assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unique index race", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newTestService(repo)
		repo.On("FindByEmail", ctx, "a@x.com").Return(nil, apperrors.ErrNotFound).Once()
		repo.On("Create", ctx, mock.Anything).Return(apperrors.ErrUserAlreadyExists.Wrap(errors.New("E11000"))).Once()

		_, err := svc.Register(ctx, "a@x.com", "p", "Alice")
		assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("lookup failure is surfaced", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newTestService(repo)
		repo.On("FindByEmail", ctx, "a@x.com").Return(nil, errors.New("connection reset")).Once()

		_, err := svc.Register(ctx, "a@x.com", "p", "Alice")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	hash, err := NewBcryptVerifier(bcrypt.MinCost).Hash("secret")
	require.NoError(t, err)
	stored := &models.User{ID: "u1", Email: "a@x.com", Name: "Alice", Password: hash}

	t.Run("success issues verifiable token", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, tokens := newTestService(repo)
		repo.On("FindByEmail", ctx, "a@x.com").Return(stored, nil).Once()

		token, err := svc.Login(ctx, "a@x.com", "secret")
		require.NoError(t, err)

		id, err := tokens.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, auth.Identity{Email: "a@x.com", Name: "Alice"}, id)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newTestService(repo)
		repo.On("FindByEmail", ctx, "nobody@x.com").Return(nil, apperrors.ErrNotFound).Once()

		_, err := svc.Login(ctx, "nobody@x.com", "secret")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc, _ := newTestService(repo)
		repo.On("FindByEmail", ctx, "a@x.com").Return(stored, nil).Once()

		_, err := svc.Login(ctx, "a@x.com", "nope")
		assert.ErrorIs(t, err, apperrors.ErrCredentialMismatch)
	})
}

func TestBcryptVerifier(t *testing.T) {
	v := NewBcryptVerifier(0)
	assert.Equal(t, bcrypt.DefaultCost, v.Cost)

	v = NewBcryptVerifier(bcrypt.MinCost)
	hash, err := v.Hash("pw")
	require.NoError(t, err)
	assert.NoError(t, v.Compare(hash, "pw"))
	assert.ErrorIs(t, v.Compare(hash, "other"), ErrCredentialMismatch)
	assert.Error(t, v.Compare("not-a-hash", "pw"))
}
