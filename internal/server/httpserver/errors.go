package httpserver

import (
	"errors"
	"net/http"

	"github.com/and161185/nanocloud/internal/errs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serverErrorMsg = "Server error"

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// fail writes {"msg": ...} for err. Internal errors are logged and hidden from the client.
func (s *Server) fail(c *gin.Context, op string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error(op, zap.Error(err))
		c.AbortWithStatusJSON(code, gin.H{"msg": serverErrorMsg})
		return
	}
	c.AbortWithStatusJSON(code, gin.H{"msg": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"msg": msg})
}
