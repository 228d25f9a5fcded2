package security

import (
	"net/http"
	"strings"

	"callbridge/tools/errs"
	sec "callbridge/tools/security"

	"github.com/gin-gonic/gin"
)

// Context keys every handler uses to read the authenticated identity.
const (
	CtxUserIDKey   = "authUserID"   // int64
	CtxUsernameKey = "authUsername" // string
)

type Options struct {
	JWT sec.Options
}

// Middleware verifies the bearer token and stores the identity in the gin
// context. Websocket upgrades cannot set headers, so a `token` query
// parameter is accepted as a fallback.
func Middleware(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized)
			return
		}

		id, err := sec.Verify(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized.WithDetail(err.Error()))
			return
		}
		c.Set(CtxUserIDKey, id.UserID)
		c.Set(CtxUsernameKey, id.Username)
		c.Next()
	}
}

// UserID reads the authenticated user id set by Middleware.
func UserID(c *gin.Context) int64 {
	v, _ := c.Get(CtxUserIDKey)
	id, _ := v.(int64)
	return id
}

// Username reads the authenticated display name set by Middleware.
func Username(c *gin.Context) string {
	v, _ := c.Get(CtxUsernameKey)
	name, _ := v.(string)
	return name
}
