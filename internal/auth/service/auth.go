package service

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/clawchat/clawchat-backend/internal/auth/biz"
	"github.com/clawchat/clawchat-backend/internal/auth/middleware"
	"github.com/clawchat/clawchat-backend/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// cookieMaxAge outlives the server-side session so an expired session
// fails closed on lookup, not on cookie expiry.
const cookieMaxAge = 365 * 24 * 60 * 60

// AuthService exposes invite redemption and session endpoints
type AuthService struct {
	auth    *biz.AuthUseCase
	appName string
	logger  *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(auth *biz.AuthUseCase, appName string, logger *zap.Logger) *AuthService {
	return &AuthService{auth: auth, appName: appName, logger: logger}
}

// RegisterRoutes registers auth routes. rateLimit guards the invite
// verification endpoint, which is reachable without a session.
func (s *AuthService) RegisterRoutes(r *gin.RouterGroup, rateLimit gin.HandlerFunc) {
	r.GET("/api/auth/invite", rateLimit, s.RedeemInvite)
	r.GET("/api/auth/me", s.Me)
	r.POST("/api/auth/logout", s.Logout)
	r.GET("/invite", s.InvitePage)
}

// RedeemInvite spends an invite token, sets the session cookie and
// redirects into the app.
func (s *AuthService) RedeemInvite(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.BadRequest(c, "Token required")
		return
	}

	sessionToken, err := s.auth.RedeemInvite(c.Request.Context(), token)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, sessionToken, cookieMaxAge, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

// Me reports session validity
func (s *AuthService) Me(c *gin.Context) {
	token, _ := c.Cookie(middleware.SessionCookie)
	if s.auth.Authenticated(c.Request.Context(), token) {
		response.JSON(c, gin.H{"authenticated": true})
		return
	}
	c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
}

// Logout revokes the session and clears the cookie
func (s *AuthService) Logout(c *gin.Context) {
	token, _ := c.Cookie(middleware.SessionCookie)
	if err := s.auth.Logout(c.Request.Context(), token); err != nil {
		s.logger.Warn("logout failed", zap.Error(err))
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
	response.OK(c)
}

// InvitePage serves the join page. An authenticated visitor goes
// straight to the app; a token in the query is redeemed via the API.
func (s *AuthService) InvitePage(c *gin.Context) {
	token, _ := c.Cookie(middleware.SessionCookie)
	if s.auth.Authenticated(c.Request.Context(), token) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	if invite := c.Query("token"); invite != "" {
		c.Redirect(http.StatusFound, "/api/auth/invite?token="+url.QueryEscape(invite))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(s.invitePageHTML()))
}

func (s *AuthService) invitePageHTML() string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Join %s</title>
  <style>
    body { font-family: system-ui, sans-serif; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; background: #0a0a0a; color: #fff; }
    .container { text-align: center; padding: 2rem; max-width: 400px; }
    h1 { font-size: 2rem; margin-bottom: 1rem; }
    p { color: #888; margin-bottom: 1.5rem; }
    form { display: flex; flex-direction: column; gap: 0.75rem; }
    input { padding: 0.75rem; border: 1px solid #333; border-radius: 6px; background: #1a1a1a; color: #fff; font-size: 1rem; }
    input:focus { outline: none; border-color: #667eea; }
    button { padding: 0.75rem; border: none; border-radius: 6px; background: linear-gradient(135deg, #667eea, #764ba2); color: #fff; font-size: 1rem; cursor: pointer; }
    button:hover { opacity: 0.9; }
    .hint { font-size: 0.75rem; color: #666; margin-top: 1rem; }
  </style>
</head>
<body>
  <div class="container">
    <h1>%s</h1>
    <p>This chat is invite-only.<br>Enter your invite token below.</p>
    <form action="/invite" method="get">
      <input type="text" name="token" placeholder="Invite token" required autofocus />
      <button type="submit">Join</button>
    </form>
    <p class="hint">Ask the admin for an invite token or scan a QR code.</p>
  </div>
</body>
</html>`, s.appName, s.appName)
}
