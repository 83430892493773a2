package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/polkiloo/userdir/internal/domain/model"
	"github.com/polkiloo/userdir/internal/server/http/middleware"
)

// CurrentUser extracts the authenticated user record from context.
func CurrentUser(c *gin.Context) *model.User {
	val, ok := c.Get(middleware.CurrentUserContextKey)
	if !ok {
		return nil
	}
	usr, _ := val.(*model.User)
	return usr
}
