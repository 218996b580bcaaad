package httpapi

import (
	"os"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "tsapi/internal/docs"

	"tsapi/internal/auth"
	"tsapi/internal/core"
	"tsapi/pkg/logger"
	"tsapi/pkg/middleware"
)

// SetupRoutes wires every route onto the given Core: explicit Recovery +
// GinLogger + compression middleware, and a single global auth check
// covering every route, not just a protected subset. The auth check is
// installed only when login_username is configured; with no username
// configured, every route is served without authentication.
func SetupRoutes(c *core.Core) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger.SetGinOutput()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())
	router.Use(middleware.CompressionMiddleware())

	if c.Config.LoginUsername != "" {
		passwordHash, err := auth.HashPassword(c.Config.LoginPassword)
		if err != nil {
			logger.Error("failed to hash configured login password", "error", err)
			os.Exit(1)
		}
		router.Use(auth.Any(c.Config.LoginUsername, passwordHash, c.Issuer))
	}

	h := NewHandler(c)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/", h.GetRoot)
	router.POST("/transcribe", h.PostTranscribe)
	router.GET("/transcribe", h.GetTranscribe)
	router.DELETE("/transcribe", h.DeleteTranscribe)
	router.POST("/module/opencast", h.PostModuleOpencast)
	router.GET("/status", h.GetStatus)
	router.GET("/status/system", h.GetSystemStatus)
	router.GET("/language", h.GetLanguage)
	router.GET("/model", h.GetModel)
	router.POST("/cli/login", h.PostCLILogin)

	return router
}
