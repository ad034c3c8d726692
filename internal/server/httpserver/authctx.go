package httpserver

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const userIDKey ctxKey = "nc.userID"

// WithUserID stores the authenticated caller in ctx.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches the authenticated caller from ctx.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}
	return id, true
}

// callerID is the caller set by RequireAuth; uuid.Nil on unauthenticated routes.
func callerID(c *gin.Context) uuid.UUID {
	id, _ := UserIDFromCtx(c.Request.Context())
	return id
}
