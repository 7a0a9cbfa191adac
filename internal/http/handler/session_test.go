package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"empathos.app/relay/internal/brain"
	"empathos.app/relay/internal/http/handler"
	"empathos.app/relay/internal/http/middleware"
	"empathos.app/relay/internal/locale"
	"empathos.app/relay/internal/model"
	"empathos.app/relay/internal/store"
)

func reviewedSession() *model.Session {
	sess := model.NewSession("s1", model.ModeSimple, time.Now())
	sess.ClientReview = "hello"
	sess.Signature = "Regards, Jane"
	sess.Draft = "Dear customer.\nRegards, Jane"
	sess.ReviewedDraft = "Dear customer!\nRegards, Jane"
	sess.Stage = model.StageReviewed
	return sess
}

var _ = Describe("SessionHandler", func() {
	var (
		router *gin.Engine
		svc    *mockSessionService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		catalog, err := locale.Load("en")
		Expect(err).NotTo(HaveOccurred())

		router = gin.New()
		router.Use(middleware.Locale(catalog))
		svc = &mockSessionService{}
		h := handler.NewSessionHandler(svc, catalog, 5)

		rg := router.Group("/sessions")
		rg.POST("", h.Create)
		rg.GET("/:id", h.Get)
		rg.PUT("/:id/inputs", h.UpdateInputs)
		rg.POST("/:id/generate", h.Generate)
		rg.POST("/:id/answers", h.SubmitAnswers)
		rg.POST("/:id/translate", h.Translate)
		rg.POST("/:id/clear", h.Clear)
		rg.GET("/:id/download/reply", h.DownloadReply)
		rg.GET("/:id/download/translation", h.DownloadTranslation)
		rg.GET("/:id/exchanges", h.Exchanges)
	})

	do := func(method, path, body string, headers ...string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
		}
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) map[string]any {
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	It("creates a session with the requested mode", func() {
		var gotMode model.Mode
		svc.createFn = func(_ context.Context, mode model.Mode) (*model.Session, error) {
			gotMode = mode
			return model.NewSession("new", model.ModeAdvanced, time.Now()), nil
		}

		w := do(http.MethodPost, "/sessions", `{"mode":"advanced"}`)

		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(gotMode).To(Equal(model.ModeAdvanced))
		resp := decode(w)
		Expect(resp["id"]).To(Equal("new"))
		Expect(resp["stage"]).To(Equal("init"))
		Expect(resp["actions"]).To(ContainElement("generate"))
	})

	It("rejects an unknown mode at the boundary", func() {
		w := do(http.MethodPost, "/sessions", `{"mode":"expert"}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decode(w)["code"]).To(Equal(brain.MsgInvalidInput))
	})

	It("returns 404 for an unknown session", func() {
		svc.getFn = func(context.Context, string) (*model.Session, error) {
			return nil, store.ErrNotFound
		}

		w := do(http.MethodGet, "/sessions/missing", "")

		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decode(w)["code"]).To(Equal("error.not_found"))
	})

	It("renders word counts and a localized warning over the ceiling", func() {
		svc.getFn = func(context.Context, string) (*model.Session, error) {
			sess := reviewedSession()
			sess.ReviewedDraft = "one two three four five six"
			return sess, nil
		}

		w := do(http.MethodGet, "/sessions/s1?lang=de", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		resp := decode(w)
		counts := resp["counts"].(map[string]any)
		Expect(counts["reviewed_draft"]).To(HaveKeyWithValue("words", BeNumerically("==", 6)))
		Expect(counts["reviewed_draft"]).To(HaveKeyWithValue("over_ceiling", true))
		Expect(resp["warnings"]).To(ConsistOf("Die Antwort ist länger als 5 Wörter."))
	})

	It("maps inputs onto the service", func() {
		var got brain.Inputs
		svc.setInputsFn = func(_ context.Context, _ string, in brain.Inputs) (*model.Session, error) {
			got = in
			return model.NewSession("s1", model.ModeSimple, time.Now()), nil
		}

		w := do(http.MethodPut, "/sessions/s1/inputs", `{"client_review":"hi","channel":"public"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(*got.ClientReview).To(Equal("hi"))
		Expect(*got.Channel).To(Equal(model.ChannelPublic))
		Expect(got.Signature).To(BeNil())
	})

	It("rejects an unknown channel", func() {
		w := do(http.MethodPut, "/sessions/s1/inputs", `{"channel":"fax"}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("passes the credential header to generate", func() {
		var gotCredential string
		svc.generateFn = func(_ context.Context, _, credential string) (*model.Session, error) {
			gotCredential = credential
			return reviewedSession(), nil
		}

		w := do(http.MethodPost, "/sessions/s1/generate", "", handler.CredentialHeader, "sk-operator")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gotCredential).To(Equal("sk-operator"))
		Expect(decode(w)["reviewed_draft"]).To(Equal("Dear customer!\nRegards, Jane"))
	})

	DescribeTable("maps errors to status codes",
		func(err error, status int, code string) {
			svc.generateFn = func(context.Context, string, string) (*model.Session, error) {
				return model.NewSession("s1", model.ModeSimple, time.Now()), err
			}

			w := do(http.MethodPost, "/sessions/s1/generate", "")

			Expect(w.Code).To(Equal(status))
			resp := decode(w)
			Expect(resp["code"]).To(Equal(code))
			Expect(resp["error"]).NotTo(BeEmpty())
			Expect(resp["session"]).To(HaveKeyWithValue("stage", "init"))
		},
		Entry("missing review", &brain.Error{Kind: brain.ErrInput, Key: brain.MsgMissingReview}, http.StatusBadRequest, brain.MsgMissingReview),
		Entry("missing credential", &brain.Error{Kind: brain.ErrInput, Key: brain.MsgMissingCredential}, http.StatusBadRequest, brain.MsgMissingCredential),
		Entry("unanswered", &brain.Error{Kind: brain.ErrValidation, Key: brain.MsgUnansweredQuestion}, http.StatusUnprocessableEntity, brain.MsgUnansweredQuestion),
		Entry("wrong stage", &brain.Error{Kind: brain.ErrInvalidTransition, Key: brain.MsgInvalidTransition}, http.StatusConflict, brain.MsgInvalidTransition),
		Entry("upstream", &brain.Error{Kind: brain.ErrUpstream, Key: brain.MsgUpstream, Err: errors.New("503")}, http.StatusBadGateway, brain.MsgUpstream),
		Entry("unexpected", fmt.Errorf("saving session: %w", errors.New("disk full")), http.StatusInternalServerError, "error.internal"),
	)

	It("localizes errors from Accept-Language", func() {
		svc.generateFn = func(context.Context, string, string) (*model.Session, error) {
			return nil, &brain.Error{Kind: brain.ErrInput, Key: brain.MsgMissingReview}
		}

		w := do(http.MethodPost, "/sessions/s1/generate", "", "Accept-Language", "sk-SK,sk;q=0.9")

		Expect(decode(w)["error"]).To(Equal("Zadajte text klienta."))
	})

	It("converts ordered answers to indexed answers", func() {
		var got map[int]string
		svc.answersFn = func(_ context.Context, _ string, answers map[int]string, _ string) (*model.Session, error) {
			got = answers
			return reviewedSession(), nil
		}

		w := do(http.MethodPost, "/sessions/s1/answers", `{"answers":["PN-123","March 3"]}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(got).To(Equal(map[int]string{0: "PN-123", 1: "March 3"}))
	})

	It("requires a language to translate", func() {
		w := do(http.MethodPost, "/sessions/s1/translate", `{}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("reads preserve from the body or the query", func() {
		var got []bool
		svc.clearFn = func(_ context.Context, _ string, preserve bool) (*model.Session, error) {
			got = append(got, preserve)
			return model.NewSession("s1", model.ModeSimple, time.Now()), nil
		}

		do(http.MethodPost, "/sessions/s1/clear", `{"preserve":true}`)
		do(http.MethodPost, "/sessions/s1/clear?preserve=true", "")
		do(http.MethodPost, "/sessions/s1/clear", "")

		Expect(got).To(Equal([]bool{true, true, false}))
	})

	Describe("downloads", func() {
		BeforeEach(func() {
			svc.getFn = func(context.Context, string) (*model.Session, error) {
				return reviewedSession(), nil
			}
		})

		It("serves the reviewed draft as a text attachment", func() {
			w := do(http.MethodGet, "/sessions/s1/download/reply", "")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Disposition")).To(Equal(`attachment; filename="empathos_reply.txt"`))
			Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/plain"))
			Expect(w.Body.String()).To(Equal("Dear customer!\nRegards, Jane"))
		})

		It("has nothing to serve before translating", func() {
			w := do(http.MethodGet, "/sessions/s1/download/translation", "")

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decode(w)["code"]).To(Equal("error.nothing_to_download"))
		})
	})

	It("lists exchanges as an empty array when there are none", func() {
		svc.exchangesFn = func(context.Context, string) ([]model.Exchange, error) {
			return nil, nil
		}

		w := do(http.MethodGet, "/sessions/s1/exchanges", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(strings.TrimSpace(w.Body.String())).To(Equal(`{"exchanges":[]}`))
	})
})
