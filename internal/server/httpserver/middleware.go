package httpserver

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/and161185/nanocloud/internal/errs"
	"github.com/and161185/nanocloud/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LegacyTokenHeader is the token header older clients send instead of Authorization.
const LegacyTokenHeader = "x-auth-token"

// Logging returns middleware that writes one access log line per request.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// metadata only, never bodies
		log.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// Recover returns middleware that turns panics into a 500 response.
func Recover(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": serverErrorMsg})
			}
		}()
		c.Next()
	}
}

// RequireAuth rejects requests without a valid access token and stores the caller id.
func RequireAuth(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := tokenFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
			return
		}
		id, err := auth.ParseToken(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Token is not valid"})
			return
		}
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), id))
		c.Next()
	}
}

// tokenFromRequest extracts "Authorization: Bearer <JWT>" or falls back to x-auth-token.
func tokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "bearer "
		if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
			return "", errors.New("authorization is not bearer")
		}
		tok := strings.TrimSpace(h[len(prefix):])
		if tok == "" {
			return "", errors.New("empty bearer token")
		}
		return tok, nil
	}
	if tok := strings.TrimSpace(r.Header.Get(LegacyTokenHeader)); tok != "" {
		return tok, nil
	}
	return "", errs.ErrUnauthorized
}
