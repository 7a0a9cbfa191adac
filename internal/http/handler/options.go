package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"empathos.app/relay/internal/http/dto"
	"empathos.app/relay/internal/locale"
	"empathos.app/relay/internal/model"
)

type OptionsConfig struct {
	DefaultMode model.Mode
	WordCeiling int
	ServerKey   bool
}

// OptionsHandler serves the static choices and string tables the operator surface needs.
type OptionsHandler struct {
	catalog *locale.Catalog
	cfg     OptionsConfig
}

func NewOptionsHandler(catalog *locale.Catalog, cfg OptionsConfig) *OptionsHandler {
	return &OptionsHandler{catalog: catalog, cfg: cfg}
}

func (h *OptionsHandler) Options(c *gin.Context) {
	c.JSON(http.StatusOK, dto.OptionsResponse{
		Languages:   model.Languages,
		Channels:    []model.Channel{model.ChannelEmail, model.ChannelPublic},
		Modes:       []model.Mode{model.ModeSimple, model.ModeAdvanced},
		DefaultMode: h.cfg.DefaultMode,
		WordCeiling: h.cfg.WordCeiling,
		Locales:     h.catalog.Languages(),
		ServerKey:   h.cfg.ServerKey,
	})
}

func (h *OptionsHandler) Locale(c *gin.Context) {
	table, ok := h.catalog.Table(c.Param("lang"))
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: h.catalog.Message(locale.DefaultLang, msgNotFound),
			Code:  msgNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, table)
}
