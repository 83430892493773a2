package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/server/http/dto"
	"github.com/polkiloo/userdir/internal/server/http/middleware"
)

// AuthHandler processes registration and session endpoints.
type AuthHandler struct {
	facade AuthFacade
}

// NewAuthHandler creates AuthHandler instance.
func NewAuthHandler(facade AuthFacade) *AuthHandler {
	return &AuthHandler{facade: facade}
}

// Register handles POST /api/user/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	token, err := h.facade.Register(c.Request.Context(), req.Login, req.Password, req.Profile)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrInvalidCredentials), errors.Is(err, domainErrors.ErrInvalidUser):
			c.Status(http.StatusBadRequest)
		case errors.Is(err, domainErrors.ErrAlreadyExists):
			c.Status(http.StatusConflict)
		default:
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	middleware.SetAuthCookie(c, token)
	c.Status(http.StatusOK)
}

// Login handles POST /api/user/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	token, err := h.facade.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrInvalidCredentials):
			c.Status(http.StatusUnauthorized)
		default:
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	middleware.SetAuthCookie(c, token)
	c.Status(http.StatusOK)
}

// Logout handles POST /api/user/logout. The session is rotated away
// server-side, so the presented token stops resolving even if the client
// keeps it.
func (h *AuthHandler) Logout(c *gin.Context) {
	usr := CurrentUser(c)
	if usr == nil {
		c.Status(http.StatusUnauthorized)
		return
	}

	if err := h.facade.Logout(c.Request.Context(), usr); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	middleware.ClearAuthCookie(c)
	c.Status(http.StatusNoContent)
}

// Refresh handles POST /api/user/session/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	usr := CurrentUser(c)
	if usr == nil {
		c.Status(http.StatusUnauthorized)
		return
	}

	token, err := h.facade.RefreshSession(c.Request.Context(), usr)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	middleware.SetAuthCookie(c, token)
	c.Status(http.StatusOK)
}
