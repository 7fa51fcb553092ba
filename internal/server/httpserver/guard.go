package httpserver

import (
	"net/http"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	"github.com/gin-gonic/gin"
)

const (
	loginPath   = "/admin"
	ticketsPath = "/admin/tickets"
	sessionKey  = "session_token"
)

// SessionValidator is the part of the admin auth service the guard needs.
type SessionValidator interface {
	ValidateSession(token string) bool
}

// Guard protects admin routes. Requests without a valid session cookie are
// redirected to the login entry; otherwise the token is stored in the
// context for the handlers.
func Guard(v SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(common.AuthCookieName)
		if err != nil || token == "" || !v.ValidateSession(token) {
			c.Redirect(http.StatusTemporaryRedirect, loginPath)
			c.Abort()
			return
		}
		c.Set(sessionKey, token)
		c.Next()
	}
}

// sessionToken returns the token placed by Guard.
func sessionToken(c *gin.Context) string {
	return c.GetString(sessionKey)
}
