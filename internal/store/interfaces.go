package store

import (
	"context"
	"errors"

	"empathos.app/relay/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// SessionStore defines the contract for drafting session persistence.
// Implementations hand out copies; callers save explicitly.
type SessionStore interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	Save(ctx context.Context, sess *model.Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// ExchangeStore defines the contract for the completion exchange audit trail.
type ExchangeStore interface {
	Record(ctx context.Context, ex model.Exchange) error
	ListBySession(ctx context.Context, sessionID string, limit int32) ([]model.Exchange, error)
}
