package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coachbase/authgate"
	"github.com/coachbase/authgate/otp"
	"github.com/coachbase/authgate/rate"
)

type errorBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfterSeconds,omitempty"`
}

// writeError maps engine errors onto HTTP statuses. Unmapped errors are
// backend trouble; they are logged server-side and surface as a bare 500.
func (s *Server) writeError(c *gin.Context, err error) {
	var limited *rate.LimitedError
	if errors.As(err, &limited) {
		c.Header("Retry-After", strconv.Itoa(int(limited.RetryAfter/time.Second)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
			Error:      "rate limited",
			RetryAfter: int(limited.RetryAfter / time.Second),
		})
		return
	}

	var locked *otp.LockedError
	if errors.As(err, &locked) {
		retry := int(locked.RetryAfter / time.Second)
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusLocked, errorBody{
			Error:      "verification locked",
			RetryAfter: retry,
		})
		return
	}

	switch {
	case errors.Is(err, authgate.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
	case errors.Is(err, authgate.ErrUnauthorized),
		errors.Is(err, authgate.ErrTokenInvalid),
		errors.Is(err, authgate.ErrTokenExpired),
		errors.Is(err, authgate.ErrTokenRevoked),
		errors.Is(err, authgate.ErrSessionNotFound):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	case errors.Is(err, authgate.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, authgate.ErrUserNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, otp.ErrLocked):
		c.AbortWithStatusJSON(http.StatusLocked, errorBody{Error: "verification locked"})
	case errors.Is(err, otp.ErrCodeMismatch),
		errors.Is(err, otp.ErrChallengeNotFound),
		errors.Is(err, otp.ErrChallengeExpired):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid or expired code"})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: msg})
}
