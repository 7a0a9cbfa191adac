package service

import (
	"empathos.app/relay/internal/brain"
	"empathos.app/relay/internal/model"
	"empathos.app/relay/internal/store"
)

type ServicesConfig struct {
	Sessions     store.SessionStore
	Exchanges    store.ExchangeStore // nil when the audit store is disabled
	Orchestrator *brain.Orchestrator
	DefaultMode  model.Mode
}

type Services struct {
	sessions SessionService
}

func NewServices(cfg ServicesConfig) *Services {
	return &Services{
		sessions: NewSessionService(cfg.Sessions, cfg.Exchanges, cfg.Orchestrator, cfg.DefaultMode),
	}
}

func (s *Services) Sessions() SessionService {
	return s.sessions
}
