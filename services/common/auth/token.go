package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
)

// Signature segments must use canonical base64url, so unused padding bits in
// the last character cannot be flipped without failing verification.
func init() {
	jwt.DecodeStrict = true
}

// Identity is the caller recovered from a verified token.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Claims is the token payload.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 identity tokens with a single
// process-wide key. Tokens carry no expiry unless ttl is positive.
type TokenService struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewTokenService creates a token service. It panics on an empty secret since
// no service can run without one.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if strings.TrimSpace(secret) == "" {
		panic("JWT secret not configured")
	}
	return &TokenService{secretKey: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueToken signs {email, name, iat[, exp]}.
func (s *TokenService) IssueToken(email, name string) (string, error) {
	now := s.now()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature and claims of a raw token.
func (s *TokenService) VerifyToken(tokenStr string) (Identity, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil || token == nil || !token.Valid {
		return Identity{}, apperrors.ErrInvalidToken.Wrap(err)
	}
	if claims.Email == "" {
		return Identity{}, apperrors.ErrInvalidToken.Wrap(fmt.Errorf("token has no email claim"))
	}
	return Identity{Email: claims.Email, Name: claims.Name}, nil
}

// VerifyRequest verifies an Authorization header of the form "Bearer <token>".
// Anything other than exactly two fields with a Bearer scheme is MissingToken.
func (s *TokenService) VerifyRequest(header string) (Identity, error) {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return Identity{}, apperrors.ErrMissingToken
	}
	return s.VerifyToken(fields[1])
}
