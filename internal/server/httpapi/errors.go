package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"filevault/internal/common"
)

// statusFromError maps domain sentinels onto HTTP status codes. Anything
// unrecognized is a 500, the message is never leaked for those.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrBadCredentials),
		errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenRevoked),
		errors.Is(err, common.ErrWrongTokenKind):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, common.ErrUserNotFound),
		errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrAlreadyExists),
		errors.Is(err, common.ErrDuplicateGrant):
		return http.StatusConflict
	case errors.Is(err, common.ErrLinkExpired),
		errors.Is(err, common.ErrLinkExhausted):
		return http.StatusGone
	case errors.Is(err, common.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFromError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
