package model

import (
	"time"

	"empathos.app/relay/common/llm"
)

// Session is the per-operator drafting record. It is only mutated by the
// orchestrator in response to an explicit operator action.
type Session struct {
	ID    string `json:"id"`
	Stage Stage  `json:"stage"`
	Mode  Mode   `json:"mode"`

	ClientReview  string  `json:"client_review"`
	OperatorNotes string  `json:"operator_notes"`
	Signature     string  `json:"signature"`
	Channel       Channel `json:"channel"`

	// ReviewEnglish is the working-language copy of ClientReview produced by generate.
	ReviewEnglish string `json:"review_english,omitempty"`

	Questions    []string       `json:"questions,omitempty"`
	Answers      map[int]string `json:"answers,omitempty"`
	QuestionCall *llm.ToolCall  `json:"question_call,omitempty"` // the request_additional_info call the answers reply to

	Draft               string   `json:"draft"`
	ReviewedDraft       string   `json:"reviewed_draft"`
	Translation         string   `json:"translation"`
	ReviewedTranslation string   `json:"reviewed_translation"`
	TargetLanguage      Language `json:"target_language,omitempty"`

	Exchanges []Exchange `json:"exchanges,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an empty session in the init stage.
func NewSession(id string, mode Mode, now time.Time) *Session {
	if !mode.Valid() {
		mode = ModeSimple
	}
	return &Session{
		ID:        id,
		Stage:     StageInit,
		Mode:      mode,
		Channel:   ChannelEmail,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so a failed transition can be discarded.
func (s *Session) Clone() *Session {
	c := *s
	if s.Questions != nil {
		c.Questions = append([]string(nil), s.Questions...)
	}
	if s.Answers != nil {
		c.Answers = make(map[int]string, len(s.Answers))
		for k, v := range s.Answers {
			c.Answers[k] = v
		}
	}
	if s.QuestionCall != nil {
		call := *s.QuestionCall
		c.QuestionCall = &call
	}
	if s.Exchanges != nil {
		c.Exchanges = append([]Exchange(nil), s.Exchanges...)
	}
	return &c
}
