package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"empathos.app/relay/internal/brain"
	"empathos.app/relay/internal/http/dto"
	"empathos.app/relay/internal/http/middleware"
	"empathos.app/relay/internal/locale"
	"empathos.app/relay/internal/model"
	"empathos.app/relay/internal/service"
	"empathos.app/relay/internal/store"
)

// CredentialHeader carries the operator's completion service key.
const CredentialHeader = "X-LLM-API-Key"

const (
	replyFilename       = "empathos_reply.txt"
	translationFilename = "empathos_reply_translated.txt"

	msgNotFound          = "error.not_found"
	msgInternal          = "error.internal"
	msgNothingToDownload = "error.nothing_to_download"
)

type SessionHandler struct {
	sessions    service.SessionService
	catalog     *locale.Catalog
	wordCeiling int
}

func NewSessionHandler(sessions service.SessionService, catalog *locale.Catalog, wordCeiling int) *SessionHandler {
	return &SessionHandler{sessions: sessions, catalog: catalog, wordCeiling: wordCeiling}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	sess, err := h.sessions.Create(c.Request.Context(), model.Mode(req.Mode))
	if err != nil {
		h.fail(c, nil, err)
		return
	}
	c.JSON(http.StatusCreated, h.render(c, sess))
}

func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, h.render(c, sess))
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, nil, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) UpdateInputs(c *gin.Context) {
	var req dto.UpdateInputsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	sess, err := h.sessions.SetInputs(c.Request.Context(), c.Param("id"), req.ToInputs())
	h.respond(c, sess, err)
}

func (h *SessionHandler) Generate(c *gin.Context) {
	sess, err := h.sessions.Generate(c.Request.Context(), c.Param("id"), credential(c))
	h.respond(c, sess, err)
}

func (h *SessionHandler) SubmitAnswers(c *gin.Context) {
	var req dto.SubmitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	sess, err := h.sessions.SubmitAnswers(c.Request.Context(), c.Param("id"), req.ToMap(), credential(c))
	h.respond(c, sess, err)
}

func (h *SessionHandler) Advance(c *gin.Context) {
	sess, err := h.sessions.Advance(c.Request.Context(), c.Param("id"), credential(c))
	h.respond(c, sess, err)
}

func (h *SessionHandler) Translate(c *gin.Context) {
	var req dto.TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	sess, err := h.sessions.Translate(c.Request.Context(), c.Param("id"), req.Language, credential(c))
	h.respond(c, sess, err)
}

func (h *SessionHandler) Regenerate(c *gin.Context) {
	sess, err := h.sessions.Regenerate(c.Request.Context(), c.Param("id"))
	h.respond(c, sess, err)
}

func (h *SessionHandler) StartOver(c *gin.Context) {
	sess, err := h.sessions.StartOver(c.Request.Context(), c.Param("id"))
	h.respond(c, sess, err)
}

func (h *SessionHandler) Clear(c *gin.Context) {
	var req dto.ClearRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}
	if v, ok := c.GetQuery("preserve"); ok {
		req.Preserve, _ = strconv.ParseBool(v)
	}
	sess, err := h.sessions.Clear(c.Request.Context(), c.Param("id"), req.Preserve)
	h.respond(c, sess, err)
}

func (h *SessionHandler) DownloadReply(c *gin.Context) {
	h.download(c, replyFilename, func(s *model.Session) string { return s.ReviewedDraft })
}

func (h *SessionHandler) DownloadTranslation(c *gin.Context) {
	h.download(c, translationFilename, func(s *model.Session) string { return s.ReviewedTranslation })
}

func (h *SessionHandler) download(c *gin.Context, filename string, field func(*model.Session) string) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, nil, err)
		return
	}
	text := field(sess)
	if text == "" {
		h.writeError(c, http.StatusNotFound, msgNothingToDownload, nil)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func (h *SessionHandler) Exchanges(c *gin.Context) {
	exchanges, err := h.sessions.Exchanges(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, nil, err)
		return
	}
	if exchanges == nil {
		exchanges = []model.Exchange{}
	}
	c.JSON(http.StatusOK, dto.ExchangesResponse{Exchanges: exchanges})
}

func (h *SessionHandler) respond(c *gin.Context, sess *model.Session, err error) {
	if err != nil {
		h.fail(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, h.render(c, sess))
}

func (h *SessionHandler) render(c *gin.Context, sess *model.Session) *dto.SessionResponse {
	lang := middleware.Lang(c)
	counts := brain.CountWords(sess, h.wordCeiling)

	var warnings []string
	if len(counts.Warnings()) > 0 {
		warnings = append(warnings, h.catalog.Message(lang, "warning.over_ceiling", "ceiling", strconv.Itoa(counts.Ceiling)))
	}
	return dto.ToSessionResponse(sess, counts, warnings)
}

// fail maps err onto a status code and a localized message. When the action
// left a session behind it is returned alongside the error.
func (h *SessionHandler) fail(c *gin.Context, sess *model.Session, err error) {
	ctx := c.Request.Context()

	status, key := http.StatusInternalServerError, msgInternal
	switch {
	case errors.Is(err, store.ErrNotFound):
		status, key = http.StatusNotFound, msgNotFound
	case errors.Is(err, brain.ErrInput):
		status, key = http.StatusBadRequest, brain.MessageKey(err)
	case errors.Is(err, brain.ErrValidation):
		status, key = http.StatusUnprocessableEntity, brain.MessageKey(err)
	case errors.Is(err, brain.ErrInvalidTransition):
		status, key = http.StatusConflict, brain.MessageKey(err)
	case errors.Is(err, brain.ErrUpstream):
		status, key = http.StatusBadGateway, brain.MessageKey(err)
	default:
		slog.ErrorContext(ctx, "session request failed", "error", err)
	}

	_ = c.Error(err)
	var view *dto.SessionResponse
	if sess != nil {
		view = h.render(c, sess)
	}
	h.writeError(c, status, key, view)
}

func (h *SessionHandler) badRequest(c *gin.Context, err error) {
	slog.WarnContext(c.Request.Context(), "invalid request body", "error", err)
	h.writeError(c, http.StatusBadRequest, brain.MsgInvalidInput, nil)
}

func (h *SessionHandler) writeError(c *gin.Context, status int, key string, sess *dto.SessionResponse) {
	c.JSON(status, dto.ErrorResponse{
		Error:   h.catalog.Message(middleware.Lang(c), key),
		Code:    key,
		Session: sess,
	})
}

func credential(c *gin.Context) string {
	return c.GetHeader(CredentialHeader)
}
