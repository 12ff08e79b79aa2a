package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error. Two errors are considered equal by
// errors.Is when their Kind matches, so sentinels can be wrapped with context
// and still be recognised by callers.
type Error struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Kind: e.Kind, Message: e.Message, Err: err}
}

// WithMessage returns a copy of e with a different user-facing message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Kind: e.Kind, Message: msg, Err: e.Err}
}

// New creates a new Error
func New(code int, kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Generic errors
var (
	ErrInvalidInput   = New(http.StatusBadRequest, "InvalidInput", "Invalid input", nil)
	ErrNotFound       = New(http.StatusNotFound, "NotFound", "Not found", nil)
	ErrInternalServer = New(http.StatusInternalServerError, "Internal", "Internal server error", nil)
)

// Authentication errors
var (
	ErrUserNotFound       = New(http.StatusUnauthorized, "UserNotFound", "User doesn't exist", nil)
	ErrCredentialMismatch = New(http.StatusUnauthorized, "CredentialMismatch", "Password incorrect", nil)
	// 402 is kept from the original register endpoint.
	ErrUserAlreadyExists = New(http.StatusPaymentRequired, "UserAlreadyExists", "User already exists", nil)
	ErrMissingToken      = New(http.StatusUnauthorized, "MissingToken", "Missing bearer token", nil)
	ErrInvalidToken      = New(http.StatusUnauthorized, "InvalidToken", "Invalid token", nil)
)

// Broker errors
var (
	ErrConnectFailed = New(http.StatusServiceUnavailable, "ConnectFailed", "Broker connection failed", nil)
	ErrPublishFailed = New(http.StatusServiceUnavailable, "PublishFailed", "Failed to publish message", nil)
)

// Persistence errors
var (
	ErrWriteFailed = New(http.StatusInternalServerError, "WriteFailed", "Failed to write record", nil)
)

// Deserialization errors
var (
	ErrMalformedMessage = New(http.StatusUnprocessableEntity, "MalformedMessage", "Malformed message", nil)
)

// From converts any error into an *Error, falling back to ErrInternalServer.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.Wrap(err)
}

// ErrorMiddleware renders the last error attached to the gin context.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			appErr := From(c.Errors.Last().Err)
			c.JSON(appErr.Code, appErr)
			c.Abort()
		}
	}
}

// Abort renders err immediately and stops the handler chain.
func Abort(c *gin.Context, err error) {
	appErr := From(err)
	_ = c.Error(appErr)
	c.AbortWithStatusJSON(appErr.Code, appErr)
}
