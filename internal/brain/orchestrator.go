package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"empathos.app/relay/common/id"
	"empathos.app/relay/common/llm"
	"empathos.app/relay/common/logger"
	"empathos.app/relay/internal/model"
	"empathos.app/relay/internal/prompt"
)

// Steps name each completion call in logs and the exchange log.
const (
	StepTranslateInput = "translate_input"
	StepDraft          = "draft"
	StepCompose        = "compose"
	StepReview         = "review"
	StepTranslate      = "translate"
	StepPolish         = "polish"
)

// Recorder receives every completion exchange, successful or not.
type Recorder interface {
	Record(ctx context.Context, ex model.Exchange) error
}

type OrchestratorConfig struct {
	DevLog bool // append exchanges to the session for the developer log
}

// Orchestrator drives a session through the drafting workflow. Every method
// either commits its whole transition or leaves the session as it found it;
// only the exchange log survives a failed call.
type Orchestrator struct {
	cfg      OrchestratorConfig
	clients  llm.Factory
	recorder Recorder
	now      func() time.Time
}

// NewOrchestrator creates an Orchestrator. recorder may be nil.
func NewOrchestrator(cfg OrchestratorConfig, clients llm.Factory, recorder Recorder) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		clients:  clients,
		recorder: recorder,
		now:      time.Now,
	}
}

// Inputs holds operator-supplied fields. Nil pointers leave a field untouched.
type Inputs struct {
	ClientReview  *string
	OperatorNotes *string
	Signature     *string
	Channel       *model.Channel
	Mode          *model.Mode
}

// SetInputs updates the operator inputs. Inputs are editable only before generating.
func (o *Orchestrator) SetInputs(sess *model.Session, in Inputs) error {
	if sess.Stage != model.StageInit {
		return &Error{Kind: ErrInvalidTransition, Key: MsgInvalidTransition, Err: fmt.Errorf("inputs are locked in stage %s", sess.Stage)}
	}
	if in.Channel != nil && !in.Channel.Valid() {
		return inputError(MsgInvalidInput, fmt.Errorf("unknown channel %q", *in.Channel))
	}
	if in.Mode != nil && !in.Mode.Valid() {
		return inputError(MsgInvalidInput, fmt.Errorf("unknown mode %q", *in.Mode))
	}

	if in.ClientReview != nil {
		sess.ClientReview = *in.ClientReview
	}
	if in.OperatorNotes != nil {
		sess.OperatorNotes = *in.OperatorNotes
	}
	if in.Signature != nil {
		sess.Signature = *in.Signature
	}
	if in.Channel != nil {
		sess.Channel = *in.Channel
	}
	if in.Mode != nil {
		sess.Mode = *in.Mode
	}
	sess.UpdatedAt = o.now()
	return nil
}

// Generate translates the customer message to English, drafts a reply (or, in
// advanced mode, collects clarifying questions) and then runs the automatic review.
func (o *Orchestrator) Generate(ctx context.Context, sess *model.Session, credential string) error {
	ctx = o.enrich(ctx, sess)

	if strings.TrimSpace(sess.ClientReview) == "" {
		return inputError(MsgMissingReview, nil)
	}
	if !Allowed(sess.Stage, EventCompose) {
		_, err := Next(sess.Stage, EventCompose)
		return err
	}
	client, err := o.client(credential)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "generating draft", "mode", sess.Mode, "channel", sess.Channel)

	err = o.apply(sess, func(work *model.Session) error {
		resp, err := o.complete(ctx, work, client, StepTranslateInput, llm.AgentRequest{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: prompt.TranslateToEnglish()},
				{Role: llm.RoleUser, Content: work.ClientReview},
			},
		})
		if err != nil {
			return err
		}
		english, err := responseText(StepTranslateInput, resp)
		if err != nil {
			return err
		}
		work.ReviewEnglish = english

		req := llm.AgentRequest{Messages: draftingMessages(work)}
		if work.Mode == model.ModeAdvanced {
			req.Tools = capabilities()
			req.ToolChoice = llm.ToolChoiceAuto
		}

		resp, err = o.complete(ctx, work, client, StepDraft, req)
		if err != nil {
			return err
		}

		var out outcome
		if work.Mode == model.ModeAdvanced {
			out = interpret(Decode(resp))
		} else {
			out = interpret(FreeText(resp.Content))
		}
		if out.fellBack {
			slog.WarnContext(ctx, "capability response did not match schema, using free text",
				"tool_calls", len(resp.ToolCalls),
				"content_length", len(resp.Content))
		}

		if len(out.questions) > 0 {
			stage, err := Next(work.Stage, EventAsk)
			if err != nil {
				return err
			}
			work.Questions = out.questions
			work.Answers = map[int]string{}
			work.QuestionCall = out.call
			work.Stage = stage
			slog.InfoContext(ctx, "model asked clarifying questions", "count", len(out.questions))
			return nil
		}

		if out.draft == "" {
			return upstreamError(MsgEmptyResponse, fmt.Errorf("%s returned no draft", StepDraft))
		}
		stage, err := Next(work.Stage, EventCompose)
		if err != nil {
			return err
		}
		work.Draft = out.draft
		work.Stage = stage
		return nil
	})
	if err != nil {
		return err
	}

	return o.advance(ctx, sess, client)
}

// SubmitAnswers sends the operator's answers back to the model, forcing it to
// compose the reply, and then runs the automatic review.
func (o *Orchestrator) SubmitAnswers(ctx context.Context, sess *model.Session, answers map[int]string, credential string) error {
	ctx = o.enrich(ctx, sess)

	if _, err := Next(sess.Stage, EventSubmitAnswers); err != nil {
		return err
	}

	cleaned := make(map[int]string, len(sess.Questions))
	var missing []int
	for i := range sess.Questions {
		a := strings.TrimSpace(answers[i])
		if a == "" {
			missing = append(missing, i)
			continue
		}
		cleaned[i] = a
	}
	if len(missing) > 0 {
		return validationError(MsgUnansweredQuestion, fmt.Errorf("unanswered questions: %v", missing))
	}

	client, err := o.client(credential)
	if err != nil {
		return err
	}

	err = o.apply(sess, func(work *model.Session) error {
		answersText := prompt.Answers(work.Questions, cleaned)
		messages := draftingMessages(work)
		if work.QuestionCall != nil && work.QuestionCall.ID != "" {
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{*work.QuestionCall}},
				llm.Message{Role: llm.RoleTool, Content: answersText, ToolCallID: work.QuestionCall.ID},
			)
		} else {
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: answersText})
		}

		resp, err := o.complete(ctx, work, client, StepCompose, llm.AgentRequest{
			Messages:   messages,
			Tools:      capabilities(),
			ToolChoice: CapabilityComposeReply,
		})
		if err != nil {
			return err
		}

		out := interpret(Decode(resp))
		draft := out.draft
		if len(out.questions) > 0 {
			// Asked again despite the forced capability; keep whatever text came with it.
			draft = strings.TrimSpace(resp.Content)
		}
		if out.fellBack || len(out.questions) > 0 {
			slog.WarnContext(ctx, "compose response did not match schema, using free text")
		}
		if draft == "" {
			return upstreamError(MsgEmptyResponse, fmt.Errorf("%s returned no draft", StepCompose))
		}

		stage, err := Next(work.Stage, EventSubmitAnswers)
		if err != nil {
			return err
		}
		work.Answers = cleaned
		work.Draft = draft
		work.Stage = stage
		return nil
	})
	if err != nil {
		return err
	}

	return o.advance(ctx, sess, client)
}

// Advance runs whichever automatic pass is pending: the review once a draft
// exists, the polish once a translation exists. Each runs at most once per
// output; when nothing is pending it makes no call.
func (o *Orchestrator) Advance(ctx context.Context, sess *model.Session, credential string) error {
	if !needsReview(sess) && !needsPolish(sess) {
		return nil
	}
	client, err := o.client(credential)
	if err != nil {
		return err
	}
	return o.advance(o.enrich(ctx, sess), sess, client)
}

func (o *Orchestrator) advance(ctx context.Context, sess *model.Session, client llm.AgentClient) error {
	if needsReview(sess) {
		if err := o.review(ctx, sess, client); err != nil {
			return err
		}
	}
	if needsPolish(sess) {
		if err := o.polish(ctx, sess, client); err != nil {
			return err
		}
	}
	return nil
}

func needsReview(sess *model.Session) bool {
	return sess.Stage == model.StageDone && sess.Draft != "" && sess.ReviewedDraft == ""
}

func needsPolish(sess *model.Session) bool {
	return sess.Stage == model.StageTranslated && sess.Translation != "" && sess.ReviewedTranslation == ""
}

func (o *Orchestrator) review(ctx context.Context, sess *model.Session, client llm.AgentClient) error {
	return o.apply(sess, func(work *model.Session) error {
		resp, err := o.complete(ctx, work, client, StepReview, llm.AgentRequest{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: prompt.Review()},
				{Role: llm.RoleUser, Content: work.Draft},
			},
		})
		if err != nil {
			return err
		}
		reviewed, err := responseText(StepReview, resp)
		if err != nil {
			return err
		}
		stage, err := Next(work.Stage, EventReview)
		if err != nil {
			return err
		}
		work.ReviewedDraft = reviewed
		work.Stage = stage
		return nil
	})
}

// Translate translates the reviewed draft into lang and then runs the polish pass.
// Translating again replaces the previous translation and its polish.
func (o *Orchestrator) Translate(ctx context.Context, sess *model.Session, language string, credential string) error {
	ctx = o.enrich(ctx, sess)

	lang, ok := model.ParseLanguage(language)
	if !ok {
		return inputError(MsgUnsupportedLang, fmt.Errorf("unsupported language %q", language))
	}
	if _, err := Next(sess.Stage, EventTranslate); err != nil {
		return err
	}
	if strings.TrimSpace(sess.ReviewedDraft) == "" {
		return inputError(MsgNothingToTranslate, nil)
	}
	client, err := o.client(credential)
	if err != nil {
		return err
	}

	err = o.apply(sess, func(work *model.Session) error {
		resp, err := o.complete(ctx, work, client, StepTranslate, llm.AgentRequest{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: prompt.TranslateTo(lang)},
				{Role: llm.RoleUser, Content: work.ReviewedDraft},
			},
		})
		if err != nil {
			return err
		}
		translation, err := responseText(StepTranslate, resp)
		if err != nil {
			return err
		}
		stage, err := Next(work.Stage, EventTranslate)
		if err != nil {
			return err
		}
		work.TargetLanguage = lang
		work.Translation = translation
		work.ReviewedTranslation = ""
		work.Stage = stage
		return nil
	})
	if err != nil {
		return err
	}

	return o.advance(ctx, sess, client)
}

func (o *Orchestrator) polish(ctx context.Context, sess *model.Session, client llm.AgentClient) error {
	return o.apply(sess, func(work *model.Session) error {
		resp, err := o.complete(ctx, work, client, StepPolish, llm.AgentRequest{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: prompt.Polish(work.TargetLanguage)},
				{Role: llm.RoleUser, Content: work.Translation},
			},
		})
		if err != nil {
			return err
		}
		polished, err := responseText(StepPolish, resp)
		if err != nil {
			return err
		}
		stage, err := Next(work.Stage, EventPolish)
		if err != nil {
			return err
		}
		work.ReviewedTranslation = polished
		work.Stage = stage
		return nil
	})
}

// Regenerate discards every output and returns to init, keeping the inputs.
func (o *Orchestrator) Regenerate(sess *model.Session) error {
	stage, err := Next(sess.Stage, EventRegenerate)
	if err != nil {
		return err
	}
	resetOutputs(sess)
	sess.Stage = stage
	sess.UpdatedAt = o.now()
	return nil
}

// StartOver is Regenerate from any stage, including while questions are pending.
func (o *Orchestrator) StartOver(sess *model.Session) {
	resetOutputs(sess)
	sess.Stage = model.StageInit
	sess.UpdatedAt = o.now()
}

// Clear wipes the session back to its initial defaults. With preserve set,
// the signature and operator notes survive.
func (o *Orchestrator) Clear(sess *model.Session, preserve bool) {
	signature, notes := sess.Signature, sess.OperatorNotes

	fresh := model.NewSession(sess.ID, sess.Mode, sess.CreatedAt)
	fresh.UpdatedAt = o.now()
	if preserve {
		fresh.Signature = signature
		fresh.OperatorNotes = notes
	}
	*sess = *fresh
}

func resetOutputs(sess *model.Session) {
	sess.ReviewEnglish = ""
	sess.Questions = nil
	sess.Answers = nil
	sess.QuestionCall = nil
	sess.Draft = ""
	sess.ReviewedDraft = ""
	sess.Translation = ""
	sess.ReviewedTranslation = ""
	sess.TargetLanguage = ""
}

// draftingMessages rebuilds the drafting context from the session, so the
// answers turn sees exactly what the first drafting call saw.
func draftingMessages(sess *model.Session) []llm.Message {
	system := prompt.Drafting(prompt.DraftInput{
		ClientReview:  sess.ReviewEnglish,
		OperatorNotes: sess.OperatorNotes,
		Signature:     sess.Signature,
		Channel:       sess.Channel,
	})
	if sess.Mode == model.ModeAdvanced {
		system += "\n\n" + prompt.Advanced()
	}
	return []llm.Message{{Role: llm.RoleSystem, Content: system}}
}

func (o *Orchestrator) client(credential string) (llm.AgentClient, error) {
	client, err := o.clients(credential)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, inputError(MsgMissingCredential, err)
		}
		return nil, inputError(MsgInvalidInput, err)
	}
	return client, nil
}

// apply runs fn on a copy of sess and commits it only when fn succeeds.
func (o *Orchestrator) apply(sess *model.Session, fn func(work *model.Session) error) error {
	work := sess.Clone()
	if err := fn(work); err != nil {
		sess.Exchanges = work.Exchanges
		return err
	}
	work.UpdatedAt = o.now()
	*sess = *work
	return nil
}

// complete issues one completion call and records it.
func (o *Orchestrator) complete(ctx context.Context, work *model.Session, client llm.AgentClient, step string, req llm.AgentRequest) (*llm.AgentResponse, error) {
	sc := logger.StartCompletionSpan(ctx, step, client.Model())
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Step: logger.Ptr(step)})

	ex := model.Exchange{
		ID:            id.New(),
		SessionID:     work.ID,
		Step:          step,
		Stage:         work.Stage,
		Model:         client.Model(),
		PromptVersion: prompt.Version,
		Request:       req.Messages,
		ToolChoice:    req.ToolChoice,
		CreatedAt:     o.now(),
	}
	for _, t := range req.Tools {
		ex.Capabilities = append(ex.Capabilities, t.Name)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{ExchangeID: logger.Ptr(ex.ID)})

	start := time.Now()
	resp, err := client.ChatWithTools(ctx, req)
	ex.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		ex.Error = err.Error()
		sc.RecordError(err)
		slog.WarnContext(ctx, "completion call failed",
			"error", err,
			"error_class", llm.Classify(err),
			"duration_ms", ex.LatencyMs)
	} else {
		ex.Response = resp.Content
		ex.PromptTokens = resp.PromptTokens
		ex.CompletionTokens = resp.CompletionTokens
		if len(resp.ToolCalls) > 0 {
			ex.CapabilityName = resp.ToolCalls[0].Name
			ex.CapabilityArgs = resp.ToolCalls[0].Arguments
		}
		sc.RecordUsage(ex.PromptTokens, ex.CompletionTokens, ex.CapabilityName)
		slog.DebugContext(ctx, "completion call finished",
			"duration_ms", ex.LatencyMs,
			"capability", ex.CapabilityName,
			"response", logger.Truncate(resp.Content, 200))
	}

	o.record(ctx, work, ex)

	if err != nil {
		return nil, upstreamError(MsgUpstream, fmt.Errorf("%s: %w", step, err))
	}
	return resp, nil
}

func (o *Orchestrator) record(ctx context.Context, work *model.Session, ex model.Exchange) {
	if o.cfg.DevLog {
		work.Exchanges = append(work.Exchanges, ex)
	}
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, ex); err != nil {
		slog.WarnContext(ctx, "failed to record exchange", "error", err)
	}
}

func (o *Orchestrator) enrich(ctx context.Context, sess *model.Session) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{
		SessionID: logger.Ptr(sess.ID),
		Stage:     logger.Ptr(string(sess.Stage)),
		Component: "relay.brain.orchestrator",
	})
}

func responseText(step string, resp *llm.AgentResponse) (string, error) {
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", upstreamError(MsgEmptyResponse, fmt.Errorf("%s returned no text", step))
	}
	return text, nil
}
