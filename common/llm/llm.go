package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Message roles understood by every adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Tool choice values. Any other non-empty value is treated as the name of a
// tool the model is forced to call.
const (
	ToolChoiceAuto     = ""
	ToolChoiceRequired = "required"
)

// Config holds LLM client configuration.
type Config struct {
	Provider    string   // "openai" or "anthropic"
	APIKey      string   // Required: API key for the provider
	BaseURL     string   // Optional: custom API endpoint
	Model       string   // Model name (e.g., "gpt-4.1", "claude-sonnet-4-5-20250514")
	MaxTokens   int      // Default completion budget when a request leaves it at zero
	Temperature *float64 // Default temperature when a request leaves it nil
}

// AgentClient is the completion collaborator: role-tagged messages in, free
// text or tool calls out.
type AgentClient interface {
	ChatWithTools(ctx context.Context, req AgentRequest) (*AgentResponse, error)
	Model() string
}

// AgentRequest contains the messages and tools for one completion call.
type AgentRequest struct {
	Messages    []Message
	Tools       []Tool
	ToolChoice  string // ToolChoiceAuto, ToolChoiceRequired or a tool name
	MaxTokens   int
	Temperature *float64
}

// Message represents a conversation message.
type Message struct {
	Role       string     `json:"role"`                   // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`                // Text content
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // For assistant messages that request tool calls
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool result messages (references the tool call)
}

// Tool defines a function the LLM can call.
type Tool struct {
	Name        string
	Description string
	Parameters  any // JSON Schema for parameters
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID        string `json:"id"`        // Unique ID for this call
	Name      string `json:"name"`      // Tool name
	Arguments string `json:"arguments"` // JSON-encoded arguments
}

// AgentResponse contains the LLM's response.
type AgentResponse struct {
	Content          string     // Text response (when no tool calls)
	ToolCalls        []ToolCall // Tool calls to execute
	FinishReason     string     // "stop", "tool_calls", "length"
	PromptTokens     int
	CompletionTokens int
}

// NewAgentClient creates an AgentClient for tool-calling conversations.
// It selects the appropriate provider based on cfg.Provider ("openai" or "anthropic").
// Defaults to OpenAI if no provider is specified.
func NewAgentClient(cfg Config) (AgentClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(cfg)
	case ProviderOpenAI:
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// ParseToolArguments unmarshals tool arguments into the target struct.
func ParseToolArguments[T any](arguments string) (T, error) {
	var result T
	if err := json.Unmarshal([]byte(arguments), &result); err != nil {
		return result, fmt.Errorf("parse tool arguments: %w", err)
	}
	return result, nil
}

// GenerateSchemaFrom generates a JSON schema from an instance value.
// Useful when the type is not known at compile time.
func GenerateSchemaFrom(v any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// GenerateSchema generates a JSON schema for T.
func GenerateSchema[T any]() any {
	var v T
	return GenerateSchemaFrom(v)
}

// Temp returns a pointer to t for AgentRequest.Temperature.
func Temp(t float64) *float64 {
	return &t
}
