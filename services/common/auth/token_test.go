package auth

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc := NewTokenService("this_is_secret", 0)

	token, err := svc.IssueToken("a@x.com", "Alice")
	require.NoError(t, err)

	id, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{Email: "a@x.com", Name: "Alice"}, id)

	id, err = svc.VerifyRequest("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", id.Email)
}

func TestIssueToken_NoExpiryByDefault(t *testing.T) {
	svc := NewTokenService("k", 0)
	token, err := svc.IssueToken("a@x.com", "Alice")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Contains(t, claims, "iat")
	assert.NotContains(t, claims, "exp")
	assert.Equal(t, "a@x.com", claims["email"])
	assert.Equal(t, "Alice", claims["name"])
}

func TestVerifyToken_Expired(t *testing.T) {
	svc := NewTokenService("k", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := svc.IssueToken("a@x.com", "Alice")
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestVerifyToken_WrongKey(t *testing.T) {
	token, err := NewTokenService("one", 0).IssueToken("a@x.com", "Alice")
	require.NoError(t, err)

	_, err = NewTokenService("two", 0).VerifyToken(token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestVerifyToken_RejectsAlgNone(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "a@x.com"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenService("k", 0).VerifyToken(unsigned)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

// Every altered signature character must be rejected, including the last
// one whose low bits are base64url padding.
func TestVerifyToken_TamperedSignature(t *testing.T) {
	svc := NewTokenService("this_is_secret", 0)
	token, err := svc.IssueToken("a@x.com", "Alice")
	require.NoError(t, err)

	dot := strings.LastIndex(token, ".")
	head, sig := token[:dot+1], token[dot+1:]

	for i := 0; i < len(sig); i++ {
		replacement := byte('A')
		if sig[i] == 'A' {
			replacement = 'B'
		}
		tampered := head + sig[:i] + string(replacement) + sig[i+1:]

		_, err := svc.VerifyToken(tampered)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken, "position %d", i)
	}
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// Swapping the final character for its alphabet neighbour changes only a
// padding bit, which must still fail.
func TestVerifyToken_PaddingBitsInLastCharacter(t *testing.T) {
	svc := NewTokenService("this_is_secret", 0)

	for n := 0; n < 20; n++ {
		token, err := svc.IssueToken(fmt.Sprintf("user%d@x.com", n), "User")
		require.NoError(t, err)

		last := strings.IndexByte(base64URLAlphabet, token[len(token)-1])
		require.GreaterOrEqual(t, last, 0)
		tampered := token[:len(token)-1] + string(base64URLAlphabet[last^1])

		_, err = svc.VerifyToken(tampered)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken, "token %d", n)
	}
}

func TestVerifyToken_TamperedPayload(t *testing.T) {
	svc := NewTokenService("k", 0)
	token, err := svc.IssueToken("a@x.com", "Alice")
	require.NoError(t, err)

	other, err := svc.IssueToken("mallory@x.com", "Mallory")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	_, err = svc.VerifyToken(forged)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestVerifyRequest_HeaderShapes(t *testing.T) {
	svc := NewTokenService("k", 0)
	token, err := svc.IssueToken("a@x.com", "Alice")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"empty", "", apperrors.ErrMissingToken},
		{"scheme only", "Bearer", apperrors.ErrMissingToken},
		{"token only", token, apperrors.ErrMissingToken},
		{"wrong scheme", "Basic " + token, apperrors.ErrMissingToken},
		{"extra field", "Bearer " + token + " extra", apperrors.ErrMissingToken},
		{"garbage token", "Bearer not-a-jwt", apperrors.ErrInvalidToken},
		{"lowercase scheme", "bearer " + token, nil},
		{"extra whitespace", "  Bearer   " + token + "  ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.VerifyRequest(tt.header)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewTokenService_PanicsWithoutSecret(t *testing.T) {
	assert.Panics(t, func() { NewTokenService(" ", 0) })
}
