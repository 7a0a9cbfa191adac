package model

import (
	"time"

	"empathos.app/relay/common/llm"
)

// Exchange records one completion call for the developer log and audit store.
type Exchange struct {
	ID               int64         `json:"id"`
	SessionID        string        `json:"session_id"`
	Step             string        `json:"step"`
	Stage            Stage         `json:"stage"`
	Model            string        `json:"model"`
	PromptVersion    string        `json:"prompt_version"`
	Request          []llm.Message `json:"request"`
	Capabilities     []string      `json:"capabilities,omitempty"`
	ToolChoice       string        `json:"tool_choice,omitempty"`
	Response         string        `json:"response"`
	CapabilityName   string        `json:"capability_name,omitempty"`
	CapabilityArgs   string        `json:"capability_args,omitempty"`
	Error            string        `json:"error,omitempty"`
	LatencyMs        int64         `json:"latency_ms"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	CreatedAt        time.Time     `json:"created_at"`
}
