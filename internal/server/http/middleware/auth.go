package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/domain/model"
	pkgAuth "github.com/polkiloo/userdir/internal/pkg/auth"
)

const (
	// CurrentUserContextKey is a gin context key for the authenticated user.
	CurrentUserContextKey = "currentUser"
	authCookieName        = "userdir_session"
)

// SessionResolver verifies bearer tokens and resolves the session inside
// them to a live user record.
type SessionResolver interface {
	ParseToken(token string) (string, error)
	UserBySession(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthRequired ensures the request carries a token for an active session
// before the handler runs.
func AuthRequired(facade SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		sessionID, err := facade.ParseToken(token)
		if err != nil {
			if errors.Is(err, pkgAuth.ErrInvalidToken) {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		usr, err := facade.UserBySession(c.Request.Context(), sessionID)
		if err != nil {
			// A valid signature over a rotated-away session is still
			// an expired credential.
			if errors.Is(err, domainErrors.ErrNotFound) {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Set(CurrentUserContextKey, usr)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}

	if cookie, err := c.Cookie(authCookieName); err == nil {
		return cookie
	}
	return ""
}

// SetAuthCookie writes session token cookie to response.
func SetAuthCookie(c *gin.Context, token string) {
	c.SetCookie(authCookieName, token, 0, "/", "", false, true)
	c.Header("Authorization", "Bearer "+token)
}

// ClearAuthCookie drops the session cookie.
func ClearAuthCookie(c *gin.Context) {
	c.SetCookie(authCookieName, "", -1, "/", "", false, true)
}
