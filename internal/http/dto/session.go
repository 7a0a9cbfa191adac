package dto

import (
	"time"

	"empathos.app/relay/internal/brain"
	"empathos.app/relay/internal/model"
)

type CreateSessionRequest struct {
	Mode string `json:"mode" binding:"omitempty,oneof=simple advanced"`
}

// UpdateInputsRequest sets operator inputs. Omitted fields are left unchanged.
type UpdateInputsRequest struct {
	ClientReview  *string `json:"client_review" binding:"omitempty,max=20000"`
	OperatorNotes *string `json:"operator_notes" binding:"omitempty,max=10000"`
	Signature     *string `json:"signature" binding:"omitempty,max=1000"`
	Channel       *string `json:"channel" binding:"omitempty,oneof=email public"`
	Mode          *string `json:"mode" binding:"omitempty,oneof=simple advanced"`
}

func (r UpdateInputsRequest) ToInputs() brain.Inputs {
	in := brain.Inputs{
		ClientReview:  r.ClientReview,
		OperatorNotes: r.OperatorNotes,
		Signature:     r.Signature,
	}
	if r.Channel != nil {
		ch := model.Channel(*r.Channel)
		in.Channel = &ch
	}
	if r.Mode != nil {
		m := model.Mode(*r.Mode)
		in.Mode = &m
	}
	return in
}

// SubmitAnswersRequest carries one answer per question, in question order.
type SubmitAnswersRequest struct {
	Answers []string `json:"answers" binding:"required"`
}

func (r SubmitAnswersRequest) ToMap() map[int]string {
	answers := make(map[int]string, len(r.Answers))
	for i, a := range r.Answers {
		answers[i] = a
	}
	return answers
}

type TranslateRequest struct {
	Language string `json:"language" binding:"required"`
}

type ClearRequest struct {
	Preserve bool `json:"preserve"`
}

type SessionResponse struct {
	ID      string        `json:"id"`
	Stage   model.Stage   `json:"stage"`
	Mode    model.Mode    `json:"mode"`
	Channel model.Channel `json:"channel"`

	ClientReview  string `json:"client_review"`
	OperatorNotes string `json:"operator_notes"`
	Signature     string `json:"signature"`

	Questions []string `json:"questions,omitempty"`
	Answers   []string `json:"answers,omitempty"`

	Draft               string         `json:"draft"`
	ReviewedDraft       string         `json:"reviewed_draft"`
	Translation         string         `json:"translation"`
	ReviewedTranslation string         `json:"reviewed_translation"`
	TargetLanguage      model.Language `json:"target_language,omitempty"`

	Counts   brain.Counts `json:"counts"`
	Warnings []string     `json:"warnings,omitempty"`
	Actions  []string     `json:"actions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToSessionResponse renders sess. warnings are already localized.
func ToSessionResponse(sess *model.Session, counts brain.Counts, warnings []string) *SessionResponse {
	resp := &SessionResponse{
		ID:                  sess.ID,
		Stage:               sess.Stage,
		Mode:                sess.Mode,
		Channel:             sess.Channel,
		ClientReview:        sess.ClientReview,
		OperatorNotes:       sess.OperatorNotes,
		Signature:           sess.Signature,
		Questions:           sess.Questions,
		Draft:               sess.Draft,
		ReviewedDraft:       sess.ReviewedDraft,
		Translation:         sess.Translation,
		ReviewedTranslation: sess.ReviewedTranslation,
		TargetLanguage:      sess.TargetLanguage,
		Counts:              counts,
		Warnings:            warnings,
		Actions:             brain.Actions(sess.Stage),
		CreatedAt:           sess.CreatedAt,
		UpdatedAt:           sess.UpdatedAt,
	}
	if len(sess.Answers) > 0 {
		resp.Answers = make([]string, len(sess.Questions))
		for i := range sess.Questions {
			resp.Answers[i] = sess.Answers[i]
		}
	}
	return resp
}

type ErrorResponse struct {
	Error   string           `json:"error"`
	Code    string           `json:"code"`
	Session *SessionResponse `json:"session,omitempty"`
}

type ExchangesResponse struct {
	Exchanges []model.Exchange `json:"exchanges"`
}

type OptionsResponse struct {
	Languages   []model.Language `json:"languages"`
	Channels    []model.Channel  `json:"channels"`
	Modes       []model.Mode     `json:"modes"`
	DefaultMode model.Mode       `json:"default_mode"`
	WordCeiling int              `json:"word_ceiling"`
	Locales     []string         `json:"locales"`
	ServerKey   bool             `json:"server_key"` // operators may omit their own credential
}
