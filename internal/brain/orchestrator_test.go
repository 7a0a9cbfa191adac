package brain_test

import (
	"context"
	"errors"
	"time"

	"empathos.app/relay/common/llm"
	"empathos.app/relay/internal/brain"
	"empathos.app/relay/internal/model"
	"empathos.app/relay/internal/prompt"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const credential = "sk-test"

var _ = Describe("Orchestrator", func() {
	var (
		ctx      context.Context
		client   *mockAgentClient
		recorder *mockRecorder
		orch     *brain.Orchestrator
		sess     *model.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockAgentClient{}
		recorder = &mockRecorder{}
		orch = brain.NewOrchestrator(brain.OrchestratorConfig{DevLog: true}, factoryFor(client), recorder)

		sess = model.NewSession("sess-1", model.ModeSimple, time.Now())
		sess.ClientReview = "Platba mi bola strhnutá dvakrát."
		sess.OperatorNotes = "Refund issued on 2024-01-10"
		sess.Signature = "Regards, Jane"
	})

	Describe("Generate", func() {
		It("translates, drafts and reviews in simple mode", func() {
			client.then(
				text("My payment was taken twice."),
				text("Dear customer, we are sorry.\nRegards, Jane"),
				text("Dear customer, we apologise.\nRegards, Jane"),
			)

			err := orch.Generate(ctx, sess, credential)

			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Stage).To(Equal(model.StageReviewed))
			Expect(sess.ReviewEnglish).To(Equal("My payment was taken twice."))
			Expect(sess.Draft).To(HaveSuffix("Regards, Jane"))
			Expect(sess.ReviewedDraft).To(Equal("Dear customer, we apologise.\nRegards, Jane"))

			Expect(client.requests).To(HaveLen(3))
			translate := client.requests[0]
			Expect(translate.Messages[0].Content).To(Equal(prompt.TranslateToEnglish()))
			Expect(translate.Messages[1].Content).To(Equal(sess.ClientReview))

			draft := client.requests[1]
			Expect(draft.Tools).To(BeEmpty())
			Expect(draft.Messages).To(HaveLen(1))
			Expect(draft.Messages[0].Role).To(Equal(llm.RoleSystem))
			Expect(draft.Messages[0].Content).To(ContainSubstring("My payment was taken twice."))
			Expect(draft.Messages[0].Content).To(ContainSubstring("(do not alter it):\nRegards, Jane"))
			Expect(draft.Messages[0].Content).NotTo(ContainSubstring(prompt.Advanced()))

			review := client.requests[2]
			Expect(review.Messages[0].Content).To(Equal(prompt.Review()))
			Expect(review.Messages[1].Content).To(Equal(sess.Draft))
		})

		It("logs every exchange to the session and the recorder", func() {
			client.then(text("english"), text("draft"), text("reviewed"))

			Expect(orch.Generate(ctx, sess, credential)).To(Succeed())

			Expect(sess.Exchanges).To(HaveLen(3))
			steps := []string{sess.Exchanges[0].Step, sess.Exchanges[1].Step, sess.Exchanges[2].Step}
			Expect(steps).To(Equal([]string{brain.StepTranslateInput, brain.StepDraft, brain.StepReview}))
			Expect(sess.Exchanges[1].PromptVersion).To(Equal(prompt.Version))
			Expect(sess.Exchanges[1].Model).To(Equal("test-model"))
			Expect(sess.Exchanges[0].ID).To(BeNumerically("<", sess.Exchanges[1].ID))
			Expect(recorder.exchanges).To(HaveLen(3))
		})

		It("keeps the developer log off the session when disabled", func() {
			orch = brain.NewOrchestrator(brain.OrchestratorConfig{DevLog: false}, factoryFor(client), recorder)
			client.then(text("english"), text("draft"), text("reviewed"))

			Expect(orch.Generate(ctx, sess, credential)).To(Succeed())

			Expect(sess.Exchanges).To(BeEmpty())
			Expect(recorder.exchanges).To(HaveLen(3))
		})

		It("rejects a blank customer review without calling the model", func() {
			sess.ClientReview = "  \n "

			err := orch.Generate(ctx, sess, credential)

			Expect(errors.Is(err, brain.ErrInput)).To(BeTrue())
			Expect(brain.MessageKey(err)).To(Equal(brain.MsgMissingReview))
			Expect(client.requests).To(BeEmpty())
			Expect(sess.Stage).To(Equal(model.StageInit))
		})

		It("requires a credential", func() {
			err := orch.Generate(ctx, sess, "")

			Expect(errors.Is(err, brain.ErrInput)).To(BeTrue())
			Expect(brain.MessageKey(err)).To(Equal(brain.MsgMissingCredential))
			Expect(client.requests).To(BeEmpty())
		})

		It("is not allowed once a draft exists", func() {
			sess.Stage = model.StageReviewed

			err := orch.Generate(ctx, sess, credential)

			Expect(errors.Is(err, brain.ErrInvalidTransition)).To(BeTrue())
		})

		It("leaves the session untouched when drafting fails", func() {
			client.then(text("english"), failure(errors.New("connection reset")))

			err := orch.Generate(ctx, sess, credential)

			Expect(errors.Is(err, brain.ErrUpstream)).To(BeTrue())
			Expect(brain.MessageKey(err)).To(Equal(brain.MsgUpstream))
			Expect(sess.Stage).To(Equal(model.StageInit))
			Expect(sess.ReviewEnglish).To(BeEmpty())
			Expect(sess.Draft).To(BeEmpty())

			Expect(sess.Exchanges).To(HaveLen(2))
			Expect(sess.Exchanges[1].Error).To(ContainSubstring("connection reset"))
		})

		It("treats an empty draft as an upstream failure", func() {
			client.then(text("english"), text("   "))

			err := orch.Generate(ctx, sess, credential)

			Expect(errors.Is(err, brain.ErrUpstream)).To(BeTrue())
			Expect(brain.MessageKey(err)).To(Equal(brain.MsgEmptyResponse))
			Expect(sess.Stage).To(Equal(model.StageInit))
		})

		It("keeps the draft when only the review fails, and Advance retries it", func() {
			client.then(text("english"), text("the draft"), failure(errors.New("timeout")))

			err := orch.Generate(ctx, sess, credential)

			Expect(errors.Is(err, brain.ErrUpstream)).To(BeTrue())
			Expect(sess.Stage).To(Equal(model.StageDone))
			Expect(sess.Draft).To(Equal("the draft"))
			Expect(sess.ReviewedDraft).To(BeEmpty())

			client.then(text("the reviewed draft"))
			Expect(orch.Advance(ctx, sess, credential)).To(Succeed())

			Expect(sess.Stage).To(Equal(model.StageReviewed))
			Expect(sess.ReviewedDraft).To(Equal("the reviewed draft"))
		})
	})

	Describe("advanced mode", func() {
		BeforeEach(func() {
			sess.Mode = model.ModeAdvanced
		})

		It("offers both capabilities and stores clarifying questions", func() {
			client.then(
				text("My payment was taken twice."),
				call(brain.CapabilityRequestInfo, `{"questions":["What is the policy number?"]}`),
			)

			err := orch.Generate(ctx, sess, credential)

			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Stage).To(Equal(model.StageAsked))
			Expect(sess.Questions).To(Equal([]string{"What is the policy number?"}))
			Expect(sess.Draft).To(BeEmpty())

			draft := client.requests[1]
			Expect(draft.ToolChoice).To(Equal(llm.ToolChoiceAuto))
			Expect(draft.Tools).To(HaveLen(2))
			Expect(draft.Tools[0].Name).To(Equal(brain.CapabilityRequestInfo))
			Expect(draft.Tools[1].Name).To(Equal(brain.CapabilityComposeReply))
			Expect(draft.Messages[0].Content).To(HaveSuffix(prompt.Advanced()))
			Expect(sess.Exchanges[1].CapabilityName).To(Equal(brain.CapabilityRequestInfo))
		})

		It("drafts directly when the model composes the reply", func() {
			client.then(
				text("english"),
				call(brain.CapabilityComposeReply, `{"draft":"Dear customer.\nRegards, Jane"}`),
				text("Reviewed.\nRegards, Jane"),
			)

			Expect(orch.Generate(ctx, sess, credential)).To(Succeed())

			Expect(sess.Stage).To(Equal(model.StageReviewed))
			Expect(sess.Draft).To(Equal("Dear customer.\nRegards, Jane"))
		})

		It("falls back to free text when the call does not match its schema", func() {
			client.then(
				text("english"),
				func(llm.AgentRequest) (*llm.AgentResponse, error) {
					return &llm.AgentResponse{
						Content:   "Plain draft",
						ToolCalls: []llm.ToolCall{{ID: "c1", Name: brain.CapabilityRequestInfo, Arguments: `{"questions":`}},
					}, nil
				},
				text("Reviewed plain draft"),
			)

			Expect(orch.Generate(ctx, sess, credential)).To(Succeed())

			Expect(sess.Stage).To(Equal(model.StageReviewed))
			Expect(sess.Draft).To(Equal("Plain draft"))
			Expect(sess.Questions).To(BeEmpty())
		})

		Context("after questions were asked", func() {
			BeforeEach(func() {
				client.then(
					text("My payment was taken twice."),
					call(brain.CapabilityRequestInfo, `{"questions":["What is the policy number?","When was the payment made?"]}`),
				)
				Expect(orch.Generate(ctx, sess, credential)).To(Succeed())
				client.requests = nil
			})

			It("requires every question to be answered", func() {
				err := orch.SubmitAnswers(ctx, sess, map[int]string{0: "PN-123", 1: "  "}, credential)

				Expect(errors.Is(err, brain.ErrValidation)).To(BeTrue())
				Expect(brain.MessageKey(err)).To(Equal(brain.MsgUnansweredQuestion))
				Expect(sess.Stage).To(Equal(model.StageAsked))
				Expect(client.requests).To(BeEmpty())
			})

			It("returns the answers as the capability result and forces compose_reply", func() {
				client.then(
					call(brain.CapabilityComposeReply, `{"draft":"Policy PN-123 was refunded.\nRegards, Jane"}`),
					text("Policy PN-123 has been refunded.\nRegards, Jane"),
				)

				err := orch.SubmitAnswers(ctx, sess, map[int]string{0: " PN-123 ", 1: "March 3"}, credential)

				Expect(err).NotTo(HaveOccurred())
				Expect(sess.Stage).To(Equal(model.StageReviewed))
				Expect(sess.Answers).To(Equal(map[int]string{0: "PN-123", 1: "March 3"}))
				Expect(sess.Draft).To(ContainSubstring("PN-123"))

				compose := client.requests[0]
				Expect(compose.ToolChoice).To(Equal(brain.CapabilityComposeReply))
				Expect(compose.Messages).To(HaveLen(3))
				Expect(compose.Messages[1].Role).To(Equal(llm.RoleAssistant))
				Expect(compose.Messages[1].ToolCalls[0].Name).To(Equal(brain.CapabilityRequestInfo))
				Expect(compose.Messages[2].Role).To(Equal(llm.RoleTool))
				Expect(compose.Messages[2].ToolCallID).To(Equal(compose.Messages[1].ToolCalls[0].ID))
				Expect(compose.Messages[2].Content).To(ContainSubstring("Q1: What is the policy number?\nA1: PN-123"))
				Expect(compose.Messages[2].Content).To(ContainSubstring("Q2: When was the payment made?\nA2: March 3"))
			})

			It("keeps the questions when composing fails", func() {
				client.then(failure(errors.New("boom")))

				err := orch.SubmitAnswers(ctx, sess, map[int]string{0: "PN-123", 1: "March 3"}, credential)

				Expect(errors.Is(err, brain.ErrUpstream)).To(BeTrue())
				Expect(sess.Stage).To(Equal(model.StageAsked))
				Expect(sess.Answers).To(BeEmpty())
				Expect(sess.Questions).To(HaveLen(2))
			})

			It("can start over while questions are pending", func() {
				orch.StartOver(sess)

				Expect(sess.Stage).To(Equal(model.StageInit))
				Expect(sess.Questions).To(BeNil())
				Expect(sess.QuestionCall).To(BeNil())
				Expect(sess.ClientReview).NotTo(BeEmpty())
			})
		})

		It("rejects answers when no questions are pending", func() {
			err := orch.SubmitAnswers(ctx, sess, map[int]string{0: "x"}, credential)

			Expect(errors.Is(err, brain.ErrInvalidTransition)).To(BeTrue())
		})
	})

	Describe("Translate", func() {
		BeforeEach(func() {
			client.then(text("english"), text("draft"), text("Reviewed draft.\nRegards, Jane"))
			Expect(orch.Generate(ctx, sess, credential)).To(Succeed())
			client.requests = nil
		})

		It("translates the reviewed draft and polishes the translation", func() {
			client.then(text("Szanowni Państwo.\nRegards, Jane"), text("Szanowni Państwo!\nRegards, Jane"))

			err := orch.Translate(ctx, sess, "polish", credential)

			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Stage).To(Equal(model.StageReviewedTranslation))
			Expect(sess.TargetLanguage).To(Equal(model.LanguagePolish))
			Expect(sess.Translation).To(Equal("Szanowni Państwo.\nRegards, Jane"))
			Expect(sess.ReviewedTranslation).To(Equal("Szanowni Państwo!\nRegards, Jane"))

			Expect(client.requests).To(HaveLen(2))
			Expect(client.requests[0].Messages[0].Content).To(Equal(prompt.TranslateTo(model.LanguagePolish)))
			Expect(client.requests[0].Messages[1].Content).To(Equal("Reviewed draft.\nRegards, Jane"))
			Expect(client.requests[1].Messages[0].Content).To(Equal(prompt.Polish(model.LanguagePolish)))
			Expect(client.requests[1].Messages[1].Content).To(Equal(sess.Translation))
		})

		It("replaces an earlier translation", func() {
			client.then(text("Hallo"), text("Hallo!"), text("Ciao"), text("Ciao!"))
			Expect(orch.Translate(ctx, sess, "German", credential)).To(Succeed())

			Expect(orch.Translate(ctx, sess, "Italian", credential)).To(Succeed())

			Expect(sess.TargetLanguage).To(Equal(model.LanguageItalian))
			Expect(sess.Translation).To(Equal("Ciao"))
			Expect(sess.ReviewedTranslation).To(Equal("Ciao!"))
			Expect(sess.ReviewedDraft).To(Equal("Reviewed draft.\nRegards, Jane"))
		})

		It("rejects an unsupported language", func() {
			err := orch.Translate(ctx, sess, "Klingon", credential)

			Expect(errors.Is(err, brain.ErrInput)).To(BeTrue())
			Expect(brain.MessageKey(err)).To(Equal(brain.MsgUnsupportedLang))
			Expect(client.requests).To(BeEmpty())
		})

		It("stays at translated when polishing fails", func() {
			client.then(text("Ahoj"), failure(errors.New("503")))

			err := orch.Translate(ctx, sess, "Slovak", credential)

			Expect(errors.Is(err, brain.ErrUpstream)).To(BeTrue())
			Expect(sess.Stage).To(Equal(model.StageTranslated))
			Expect(sess.Translation).To(Equal("Ahoj"))
			Expect(sess.ReviewedTranslation).To(BeEmpty())
		})
	})

	It("does not translate before a reviewed draft exists", func() {
		err := orch.Translate(ctx, sess, "German", credential)

		Expect(errors.Is(err, brain.ErrInvalidTransition)).To(BeTrue())
		Expect(client.requests).To(BeEmpty())
	})

	It("makes no call when nothing is pending", func() {
		Expect(orch.Advance(ctx, sess, "")).To(Succeed())
		Expect(client.requests).To(BeEmpty())
	})

	It("reviews a draft only once", func() {
		client.then(text("english"), text("draft"), text("reviewed"))
		Expect(orch.Generate(ctx, sess, credential)).To(Succeed())
		Expect(client.requests).To(HaveLen(3))

		Expect(orch.Advance(ctx, sess, credential)).To(Succeed())
		Expect(orch.Advance(ctx, sess, credential)).To(Succeed())

		sess.Stage = model.StageDone
		Expect(orch.Advance(ctx, sess, credential)).To(Succeed())

		Expect(client.requests).To(HaveLen(3))
		Expect(sess.ReviewedDraft).To(Equal("reviewed"))
	})

	Describe("Regenerate", func() {
		It("discards outputs and keeps inputs", func() {
			client.then(text("english"), text("draft"), text("reviewed"))
			Expect(orch.Generate(ctx, sess, credential)).To(Succeed())

			Expect(orch.Regenerate(sess)).To(Succeed())

			Expect(sess.Stage).To(Equal(model.StageInit))
			Expect(sess.Draft).To(BeEmpty())
			Expect(sess.ReviewedDraft).To(BeEmpty())
			Expect(sess.ReviewEnglish).To(BeEmpty())
			Expect(sess.ClientReview).To(Equal("Platba mi bola strhnutá dvakrát."))
			Expect(sess.Signature).To(Equal("Regards, Jane"))
		})

		It("is not allowed before anything was generated", func() {
			err := orch.Regenerate(sess)

			Expect(errors.Is(err, brain.ErrInvalidTransition)).To(BeTrue())
		})
	})

	Describe("Clear", func() {
		BeforeEach(func() {
			sess.Channel = model.ChannelPublic
			sess.Stage = model.StageReviewed
			sess.Draft = "draft"
		})

		It("resets everything", func() {
			orch.Clear(sess, false)

			Expect(sess.ID).To(Equal("sess-1"))
			Expect(sess.Stage).To(Equal(model.StageInit))
			Expect(sess.ClientReview).To(BeEmpty())
			Expect(sess.Signature).To(BeEmpty())
			Expect(sess.OperatorNotes).To(BeEmpty())
			Expect(sess.Channel).To(Equal(model.ChannelEmail))
			Expect(sess.Draft).To(BeEmpty())
		})

		It("leaves nothing of the previous session behind", func() {
			sess.Mode = model.ModeAdvanced
			sess.Stage = model.StageReviewedTranslation
			sess.ReviewEnglish = "My payment was taken twice."
			sess.Questions = []string{"Which card?"}
			sess.Answers = map[int]string{0: "Visa"}
			sess.QuestionCall = &llm.ToolCall{ID: "call_1", Name: brain.CapabilityRequestInfo}
			sess.ReviewedDraft = "reviewed"
			sess.Translation = "Ahoj"
			sess.ReviewedTranslation = "Dobrý deň"
			sess.TargetLanguage = model.LanguageSlovak
			sess.Exchanges = []model.Exchange{{ID: 1, SessionID: "sess-1", Step: brain.StepDraft}}

			orch.Clear(sess, false)

			want := model.NewSession("sess-1", model.ModeAdvanced, sess.CreatedAt)
			want.UpdatedAt = sess.UpdatedAt
			Expect(sess).To(Equal(want))
		})

		It("keeps the signature and notes when asked to", func() {
			orch.Clear(sess, true)

			Expect(sess.ClientReview).To(BeEmpty())
			Expect(sess.Signature).To(Equal("Regards, Jane"))
			Expect(sess.OperatorNotes).To(Equal("Refund issued on 2024-01-10"))
		})
	})

	Describe("SetInputs", func() {
		It("updates only the supplied fields", func() {
			channel := model.ChannelPublic
			notes := "call back tomorrow"

			err := orch.SetInputs(sess, brain.Inputs{Channel: &channel, OperatorNotes: &notes})

			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Channel).To(Equal(model.ChannelPublic))
			Expect(sess.OperatorNotes).To(Equal("call back tomorrow"))
			Expect(sess.Signature).To(Equal("Regards, Jane"))
		})

		It("rejects an unknown channel", func() {
			channel := model.Channel("fax")

			err := orch.SetInputs(sess, brain.Inputs{Channel: &channel})

			Expect(errors.Is(err, brain.ErrInput)).To(BeTrue())
			Expect(sess.Channel).To(Equal(model.ChannelEmail))
		})

		It("locks inputs once generation has run", func() {
			sess.Stage = model.StageDone
			review := "new text"

			err := orch.SetInputs(sess, brain.Inputs{ClientReview: &review})

			Expect(errors.Is(err, brain.ErrInvalidTransition)).To(BeTrue())
			Expect(sess.ClientReview).To(Equal("Platba mi bola strhnutá dvakrát."))
		})
	})
})
