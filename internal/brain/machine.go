package brain

import (
	"fmt"

	"empathos.app/relay/internal/model"
)

// Event drives the session stage machine.
type Event string

const (
	EventAsk           Event = "ask"     // generate ended with clarifying questions
	EventCompose       Event = "compose" // generate ended with a draft
	EventSubmitAnswers Event = "submit_answers"
	EventReview        Event = "review"
	EventTranslate     Event = "translate"
	EventPolish        Event = "polish"
	EventRegenerate    Event = "regenerate"
	EventStartOver     Event = "start_over"
	EventClear         Event = "clear"
)

// transitions lists every legal (stage, event) pair. start_over and clear are
// legal from every stage and handled in Next.
var transitions = map[model.Stage]map[Event]model.Stage{
	model.StageInit: {
		EventAsk:     model.StageAsked,
		EventCompose: model.StageDone,
	},
	model.StageAsked: {
		EventSubmitAnswers: model.StageDone,
	},
	model.StageDone: {
		EventReview: model.StageReviewed,
	},
	model.StageReviewed: {
		EventTranslate:  model.StageTranslated,
		EventRegenerate: model.StageInit,
	},
	model.StageTranslated: {
		EventTranslate:  model.StageTranslated,
		EventPolish:     model.StageReviewedTranslation,
		EventRegenerate: model.StageInit,
	},
	model.StageReviewedTranslation: {
		EventTranslate:  model.StageTranslated,
		EventRegenerate: model.StageInit,
	},
}

// Next returns the stage reached from `from` on ev, or ErrInvalidTransition.
func Next(from model.Stage, ev Event) (model.Stage, error) {
	if _, known := transitions[from]; !known {
		return "", &Error{Kind: ErrInvalidTransition, Key: MsgInvalidTransition, Err: fmt.Errorf("unknown stage %q", from)}
	}
	if ev == EventStartOver || ev == EventClear {
		return model.StageInit, nil
	}
	to, ok := transitions[from][ev]
	if !ok {
		return "", &Error{Kind: ErrInvalidTransition, Key: MsgInvalidTransition, Err: fmt.Errorf("%s not allowed in stage %s", ev, from)}
	}
	return to, nil
}

// Allowed reports whether ev may fire in stage from.
func Allowed(from model.Stage, ev Event) bool {
	_, err := Next(from, ev)
	return err == nil
}

// Actions lists the operator actions available in a stage, for the operator surface.
func Actions(from model.Stage) []string {
	var actions []string
	if from == model.StageInit {
		actions = append(actions, "generate")
	}
	for _, ev := range []Event{EventSubmitAnswers, EventTranslate, EventRegenerate} {
		if Allowed(from, ev) {
			actions = append(actions, string(ev))
		}
	}
	return append(actions, string(EventStartOver), string(EventClear))
}
