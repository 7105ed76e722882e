package middleware

import (
	"net/http"
	"strings"

	"github.com/clawchat/clawchat-backend/internal/auth/biz"

	"github.com/gin-gonic/gin"
)

// SessionCookie is the name of the httpOnly session cookie.
const SessionCookie = "session"

// publicPaths skip the session gate. The SSE stream stays behind auth:
// it carries conversation content.
var publicPaths = []string{
	"/api/auth/invite",
	"/api/health",
	"/invite",
}

// Auth gates every non-public route on a live session. API callers get
// a 401 JSON body; page requests are redirected to the invite page.
func Auth(auth *biz.AuthUseCase) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range publicPaths {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}

		token, _ := c.Cookie(SessionCookie)
		if auth.Authenticated(c.Request.Context(), token) {
			c.Next()
			return
		}

		if strings.HasPrefix(path, "/api/") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Redirect(http.StatusFound, "/invite")
		c.Abort()
	}
}
