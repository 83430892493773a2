package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/polkiloo/userdir/internal/config"
	"github.com/polkiloo/userdir/internal/server/http/handlers"
	"github.com/polkiloo/userdir/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.DirectoryFacade, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	authHandler := handlers.NewAuthHandler(facade)
	userHandler := handlers.NewUserHandler(facade, cfg.ListPageSize)
	billingHandler := handlers.NewBillingHandler(facade)

	api := engine.Group("/api")
	user := api.Group("/user")
	user.POST("/register", authHandler.Register)
	user.POST("/login", authHandler.Login)

	userAuth := user.Group("")
	userAuth.Use(middleware.AuthRequired(facade))
	userAuth.POST("/logout", authHandler.Logout)
	userAuth.POST("/session/refresh", authHandler.Refresh)
	userAuth.GET("", userHandler.Me)
	userAuth.PUT("", userHandler.UpdateProfile)

	api.GET("/users", middleware.AuthRequired(facade), userHandler.List)

	// The webhook gateway in front of this endpoint owns signature
	// verification; by the time an event lands here it is trusted.
	api.POST("/billing/events", billingHandler.Events)

	return engine
}
