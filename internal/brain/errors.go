package brain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is against any error returned by the Orchestrator.
var (
	ErrInput             = errors.New("input error")
	ErrUpstream          = errors.New("upstream error")
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Message keys resolved against the locale tables by the operator surface.
const (
	MsgMissingReview      = "error.missing_review"
	MsgMissingCredential  = "error.missing_credential"
	MsgInvalidInput       = "error.invalid_input"
	MsgUnansweredQuestion = "error.unanswered_question"
	MsgUnsupportedLang    = "error.unsupported_language"
	MsgUpstream           = "error.upstream"
	MsgEmptyResponse      = "error.empty_response"
	MsgInvalidTransition  = "error.invalid_transition"
	MsgNothingToTranslate = "error.nothing_to_translate"
)

// Error is a failed operator action. The session is left as it was.
type Error struct {
	Kind error  // one of the Err* kinds above
	Key  string // locale message key
	Err  error  // cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Key)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Key, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func inputError(key string, err error) *Error {
	return &Error{Kind: ErrInput, Key: key, Err: err}
}

func upstreamError(key string, err error) *Error {
	return &Error{Kind: ErrUpstream, Key: key, Err: err}
}

func validationError(key string, err error) *Error {
	return &Error{Kind: ErrValidation, Key: key, Err: err}
}

// MessageKey returns the locale key carried by err, or the upstream key for
// errors that did not originate here.
func MessageKey(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Key
	}
	return MsgUpstream
}
