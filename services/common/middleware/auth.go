package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/shopflow/services/common/auth"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
)

const IdentityContextKey = "identity"

// RequestVerifier turns an Authorization header into an identity.
type RequestVerifier interface {
	VerifyRequest(header string) (auth.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token with 401 and
// stores the caller's identity for downstream handlers.
func RequireAuth(verifier RequestVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.VerifyRequest(c.GetHeader("Authorization"))
		if err != nil {
			apperrors.Abort(c, err)
			return
		}
		c.Set(IdentityContextKey, identity)
		c.Next()
	}
}

// GetIdentity returns the identity stored by RequireAuth.
func GetIdentity(c *gin.Context) (auth.Identity, error) {
	if val, ok := c.Get(IdentityContextKey); ok {
		if id, ok := val.(auth.Identity); ok && id.Email != "" {
			return id, nil
		}
	}
	return auth.Identity{}, apperrors.ErrMissingToken
}
