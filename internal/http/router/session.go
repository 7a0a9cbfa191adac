package router

import (
	"github.com/gin-gonic/gin"

	"empathos.app/relay/internal/http/handler"
)

// SessionRouter sets up drafting session routes. Actions that reach the
// completion service read the X-LLM-API-Key header.
func SessionRouter(rg *gin.RouterGroup, h *handler.SessionHandler) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.DELETE("/:id", h.Delete)
	rg.PUT("/:id/inputs", h.UpdateInputs)

	rg.POST("/:id/generate", h.Generate)
	rg.POST("/:id/answers", h.SubmitAnswers)
	rg.POST("/:id/advance", h.Advance)
	rg.POST("/:id/translate", h.Translate)
	rg.POST("/:id/regenerate", h.Regenerate)
	rg.POST("/:id/start-over", h.StartOver)
	rg.POST("/:id/clear", h.Clear)

	rg.GET("/:id/download/reply", h.DownloadReply)
	rg.GET("/:id/download/translation", h.DownloadTranslation)
	rg.GET("/:id/exchanges", h.Exchanges)
}
