package router

import (
	"github.com/gin-gonic/gin"

	"empathos.app/relay/internal/http/handler"
	"empathos.app/relay/internal/http/middleware"
	"empathos.app/relay/internal/locale"
	"empathos.app/relay/internal/model"
	"empathos.app/relay/internal/service"
)

type RouterConfig struct {
	DefaultMode model.Mode
	WordCeiling int
	ServerKey   bool
}

func SetupRoutes(router *gin.Engine, services *service.Services, catalog *locale.Catalog, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Locale(catalog))
	{
		optionsHandler := handler.NewOptionsHandler(catalog, handler.OptionsConfig{
			DefaultMode: cfg.DefaultMode,
			WordCeiling: cfg.WordCeiling,
			ServerKey:   cfg.ServerKey,
		})
		v1.GET("/options", optionsHandler.Options)
		v1.GET("/locales/:lang", optionsHandler.Locale)

		sessionHandler := handler.NewSessionHandler(services.Sessions(), catalog, cfg.WordCeiling)
		SessionRouter(v1.Group("/sessions"), sessionHandler)
	}
}
