package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"empathos.app/relay/common/logger"
	"empathos.app/relay/internal/brain"
	"empathos.app/relay/internal/model"
	"empathos.app/relay/internal/store"
)

// SessionService runs operator actions against stored sessions. Mutating
// methods return the session as saved, also when the action failed, so the
// caller can render the unchanged state together with the error.
type SessionService interface {
	Create(ctx context.Context, mode model.Mode) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	SetInputs(ctx context.Context, id string, in brain.Inputs) (*model.Session, error)
	Generate(ctx context.Context, id, credential string) (*model.Session, error)
	SubmitAnswers(ctx context.Context, id string, answers map[int]string, credential string) (*model.Session, error)
	Advance(ctx context.Context, id, credential string) (*model.Session, error)
	Translate(ctx context.Context, id, language, credential string) (*model.Session, error)
	Regenerate(ctx context.Context, id string) (*model.Session, error)
	StartOver(ctx context.Context, id string) (*model.Session, error)
	Clear(ctx context.Context, id string, preserve bool) (*model.Session, error)
	Exchanges(ctx context.Context, id string) ([]model.Exchange, error)
}

type sessionService struct {
	sessions    store.SessionStore
	exchanges   store.ExchangeStore
	orch        *brain.Orchestrator
	defaultMode model.Mode

	locks sync.Map // session id -> *sync.Mutex
}

// NewSessionService wires the orchestrator to session storage. exchanges may be nil.
func NewSessionService(sessions store.SessionStore, exchanges store.ExchangeStore, orch *brain.Orchestrator, defaultMode model.Mode) SessionService {
	if !defaultMode.Valid() {
		defaultMode = model.ModeSimple
	}
	return &sessionService{
		sessions:    sessions,
		exchanges:   exchanges,
		orch:        orch,
		defaultMode: defaultMode,
	}
}

func (s *sessionService) Create(ctx context.Context, mode model.Mode) (*model.Session, error) {
	if mode == "" {
		mode = s.defaultMode
	}
	if !mode.Valid() {
		return nil, &brain.Error{Kind: brain.ErrInput, Key: brain.MsgInvalidInput, Err: fmt.Errorf("unknown mode %q", mode)}
	}

	sess := model.NewSession(uuid.NewString(), mode, time.Now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		slog.ErrorContext(ctx, "failed to create session", "error", err)
		return nil, fmt.Errorf("creating session: %w", err)
	}

	slog.InfoContext(ctx, "session created", "session_id", sess.ID, "mode", sess.Mode)
	return sess, nil
}

func (s *sessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	return s.sessions.Get(ctx, id)
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	s.locks.Delete(id)
	slog.InfoContext(ctx, "session deleted", "session_id", id)
	return nil
}

func (s *sessionService) SetInputs(ctx context.Context, id string, in brain.Inputs) (*model.Session, error) {
	return s.update(ctx, id, "set_inputs", func(sess *model.Session) error {
		return s.orch.SetInputs(sess, in)
	})
}

func (s *sessionService) Generate(ctx context.Context, id, credential string) (*model.Session, error) {
	return s.update(ctx, id, "generate", func(sess *model.Session) error {
		return s.orch.Generate(ctx, sess, credential)
	})
}

func (s *sessionService) SubmitAnswers(ctx context.Context, id string, answers map[int]string, credential string) (*model.Session, error) {
	return s.update(ctx, id, "submit_answers", func(sess *model.Session) error {
		return s.orch.SubmitAnswers(ctx, sess, answers, credential)
	})
}

func (s *sessionService) Advance(ctx context.Context, id, credential string) (*model.Session, error) {
	return s.update(ctx, id, "advance", func(sess *model.Session) error {
		return s.orch.Advance(ctx, sess, credential)
	})
}

func (s *sessionService) Translate(ctx context.Context, id, language, credential string) (*model.Session, error) {
	return s.update(ctx, id, "translate", func(sess *model.Session) error {
		return s.orch.Translate(ctx, sess, language, credential)
	})
}

func (s *sessionService) Regenerate(ctx context.Context, id string) (*model.Session, error) {
	return s.update(ctx, id, "regenerate", s.orch.Regenerate)
}

func (s *sessionService) StartOver(ctx context.Context, id string) (*model.Session, error) {
	return s.update(ctx, id, "start_over", func(sess *model.Session) error {
		s.orch.StartOver(sess)
		return nil
	})
}

func (s *sessionService) Clear(ctx context.Context, id string, preserve bool) (*model.Session, error) {
	return s.update(ctx, id, "clear", func(sess *model.Session) error {
		s.orch.Clear(sess, preserve)
		return nil
	})
}

// Exchanges returns the audit trail when one is configured, otherwise the
// developer log kept on the session.
func (s *sessionService) Exchanges(ctx context.Context, id string) ([]model.Exchange, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.exchanges == nil {
		return sess.Exchanges, nil
	}

	exchanges, err := s.exchanges.ListBySession(ctx, id, 0)
	if err != nil {
		slog.WarnContext(ctx, "audit store unavailable, using session log", "error", err, "session_id", id)
		return sess.Exchanges, nil
	}
	return exchanges, nil
}

// update serializes actions per session: load, apply, save. The session is
// saved even when fn fails since a failed action still extends the exchange log.
func (s *sessionService) update(ctx context.Context, id, action string, fn func(*model.Session) error) (*model.Session, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SessionID: logger.Ptr(id),
		Component: "relay.service.session",
	})

	unlock := s.lock(id)
	defer unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	actionErr := fn(sess)

	if err := s.sessions.Save(ctx, sess); err != nil {
		slog.ErrorContext(ctx, "failed to save session", "error", err, "action", action)
		return nil, fmt.Errorf("saving session: %w", err)
	}

	if actionErr != nil {
		level := slog.LevelWarn
		if errors.Is(actionErr, brain.ErrUpstream) {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "session action failed",
			"action", action,
			"stage", sess.Stage,
			"error", actionErr)
		return sess, actionErr
	}

	slog.InfoContext(ctx, "session action completed", "action", action, "stage", sess.Stage)
	return sess, nil
}

func (s *sessionService) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
