package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/server/http/dto"
)

// UserHandler serves profile reads/updates and the directory listing.
type UserHandler struct {
	facade      UserFacade
	maxPageSize int
}

// NewUserHandler creates UserHandler instance.
func NewUserHandler(facade UserFacade, maxPageSize int) *UserHandler {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &UserHandler{facade: facade, maxPageSize: maxPageSize}
}

// Me handles GET /api/user.
func (h *UserHandler) Me(c *gin.Context) {
	usr := CurrentUser(c)
	if usr == nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(usr))
}

// UpdateProfile handles PUT /api/user.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	usr := CurrentUser(c)
	if usr == nil {
		c.Status(http.StatusUnauthorized)
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	updated, err := h.facade.UpdateProfile(c.Request.Context(), usr.Login, req.Profile)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			c.Status(http.StatusNotFound)
		default:
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(updated))
}

// List handles GET /api/users.
func (h *UserHandler) List(c *gin.Context) {
	limit := h.maxPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.Status(http.StatusBadRequest)
			return
		}
		if n < limit {
			limit = n
		}
	}

	users, next, err := h.facade.ListUsers(c.Request.Context(), c.Query("cursor"), limit)
	if err != nil {
		if errors.Is(err, domainErrors.ErrInvalidCursor) {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusInternalServerError)
		return
	}

	resp := dto.UserListResponse{
		Users:      make([]dto.UserResponse, 0, len(users)),
		NextCursor: next,
	}
	for i := range users {
		resp.Users = append(resp.Users, dto.NewUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, resp)
}
