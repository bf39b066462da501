package http

import (
	"github.com/gin-gonic/gin"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
)

// Identity headers set by the authenticating reverse proxy
const (
	headerUserID   = "X-User-Id"
	headerUserName = "X-User-Name"
	headerUserRole = "X-User-Role"
)

// identityMiddleware lifts the proxy-supplied identity headers into the
// request context. Requests without them pass through; role-gated services
// reject them with a validation fault.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		role := entity.Role(c.GetHeader(headerUserRole))

		if userID != "" && role.IsValid() {
			ctx := port.WithIdentity(c.Request.Context(), port.Identity{
				UserID: userID,
				Name:   c.GetHeader(headerUserName),
				Role:   role,
			})
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}
