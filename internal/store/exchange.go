package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"empathos.app/relay/common/llm"
	"empathos.app/relay/internal/model"
)

type exchangeStore struct {
	pool *pgxpool.Pool
}

// NewExchangeStore persists exchanges to the llm_exchanges table.
func NewExchangeStore(pool *pgxpool.Pool) ExchangeStore {
	return &exchangeStore{pool: pool}
}

const insertExchange = `
INSERT INTO llm_exchanges (
    id, session_id, step, stage, model, prompt_version, request_json,
    response_text, capability_name, capability_args, capabilities, tool_choice,
    error_text, latency_ms, prompt_tokens, completion_tokens, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (id) DO NOTHING`

func (s *exchangeStore) Record(ctx context.Context, ex model.Exchange) error {
	request, err := json.Marshal(ex.Request)
	if err != nil {
		return fmt.Errorf("encoding exchange request: %w", err)
	}

	_, err = s.pool.Exec(ctx, insertExchange,
		ex.ID,
		ex.SessionID,
		ex.Step,
		string(ex.Stage),
		ex.Model,
		ex.PromptVersion,
		request,
		ex.Response,
		nullable(ex.CapabilityName),
		nullable(ex.CapabilityArgs),
		capabilities(ex.Capabilities),
		nullable(ex.ToolChoice),
		nullable(ex.Error),
		int32(ex.LatencyMs),
		int32(ex.PromptTokens),
		int32(ex.CompletionTokens),
		ex.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting exchange %d: %w", ex.ID, err)
	}
	return nil
}

const listExchanges = `
SELECT id, session_id, step, stage, model, prompt_version, request_json,
       response_text, capability_name, capability_args, capabilities, tool_choice,
       error_text, latency_ms, prompt_tokens, completion_tokens, created_at
FROM llm_exchanges
WHERE session_id = $1
ORDER BY created_at, id
LIMIT $2`

func (s *exchangeStore) ListBySession(ctx context.Context, sessionID string, limit int32) ([]model.Exchange, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, listExchanges, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing exchanges: %w", err)
	}

	exchanges, err := pgx.CollectRows(rows, scanExchange)
	if err != nil {
		return nil, fmt.Errorf("scanning exchanges: %w", err)
	}
	return exchanges, nil
}

func scanExchange(row pgx.CollectableRow) (model.Exchange, error) {
	var (
		ex                                model.Exchange
		stage                             string
		request                           []byte
		offered                           []string
		capName, capArgs, choice, errText *string
		latency, promptTok, complTok      *int32
	)
	if err := row.Scan(
		&ex.ID, &ex.SessionID, &ex.Step, &stage, &ex.Model, &ex.PromptVersion, &request,
		&ex.Response, &capName, &capArgs, &offered, &choice,
		&errText, &latency, &promptTok, &complTok, &ex.CreatedAt,
	); err != nil {
		return model.Exchange{}, err
	}

	ex.Stage = model.Stage(stage)
	ex.CapabilityName = deref(capName)
	ex.CapabilityArgs = deref(capArgs)
	if len(offered) > 0 {
		ex.Capabilities = offered
	}
	ex.ToolChoice = deref(choice)
	ex.Error = deref(errText)
	ex.LatencyMs = int64(derefInt(latency))
	ex.PromptTokens = int(derefInt(promptTok))
	ex.CompletionTokens = int(derefInt(complTok))

	var messages []llm.Message
	if err := json.Unmarshal(request, &messages); err != nil {
		return model.Exchange{}, fmt.Errorf("decoding request of exchange %d: %w", ex.ID, err)
	}
	ex.Request = messages
	return ex, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// capabilities never returns nil so the NOT NULL column accepts exchanges
// that offered no tools.
func capabilities(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int32) int32 {
	if i == nil {
		return 0
	}
	return *i
}
