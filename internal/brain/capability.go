package brain

import (
	"strings"

	"empathos.app/relay/common/llm"
)

// Capabilities offered to the model in advanced mode.
const (
	CapabilityRequestInfo  = "request_additional_info"
	CapabilityComposeReply = "compose_reply"
)

type RequestAdditionalInfoParams struct {
	Questions []string `json:"questions" jsonschema:"required,minItems=1,maxItems=5,description=Short questions for the operator about facts missing from the customer review and notes"`
}

type ComposeReplyParams struct {
	Draft string `json:"draft" jsonschema:"required,description=The complete reply to the customer including the signature"`
}

func capabilities() []llm.Tool {
	return []llm.Tool{
		{
			Name:        CapabilityRequestInfo,
			Description: "Ask the operator for facts that are essential for a correct reply and missing from the input.",
			Parameters:  llm.GenerateSchema[RequestAdditionalInfoParams](),
		},
		{
			Name:        CapabilityComposeReply,
			Description: "Return the finished reply to the customer.",
			Parameters:  llm.GenerateSchema[ComposeReplyParams](),
		},
	}
}

// Reply is a decoded completion response: FreeText or CapabilityCall.
type Reply interface {
	isReply()
}

// FreeText is a plain text response.
type FreeText string

// CapabilityCall is a structured call the model chose instead of free text.
type CapabilityCall struct {
	ID        string
	Name      string
	Arguments string
	Content   string // any text the model sent alongside the call
}

func (FreeText) isReply()       {}
func (CapabilityCall) isReply() {}

// Decode turns a collaborator response into a Reply. Only the first call
// counts when the model made several.
func Decode(resp *llm.AgentResponse) Reply {
	if len(resp.ToolCalls) == 0 {
		return FreeText(resp.Content)
	}
	tc := resp.ToolCalls[0]
	return CapabilityCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments, Content: resp.Content}
}

// outcome is what a drafting reply means for the session.
type outcome struct {
	questions []string
	call      *llm.ToolCall // request_additional_info call, kept for the answers turn
	draft     string
	fellBack  bool // the call did not match its schema and free text was used
}

// interpret resolves a reply into questions or a draft. Malformed calls fall
// back to any free text the model sent.
func interpret(r Reply) outcome {
	switch v := r.(type) {
	case FreeText:
		return outcome{draft: strings.TrimSpace(string(v))}

	case CapabilityCall:
		switch v.Name {
		case CapabilityRequestInfo:
			params, err := llm.ParseToolArguments[RequestAdditionalInfoParams](v.Arguments)
			if err == nil {
				if qs := cleanQuestions(params.Questions); len(qs) > 0 {
					return outcome{
						questions: qs,
						call:      &llm.ToolCall{ID: v.ID, Name: v.Name, Arguments: v.Arguments},
					}
				}
			}
		case CapabilityComposeReply:
			params, err := llm.ParseToolArguments[ComposeReplyParams](v.Arguments)
			if err == nil && strings.TrimSpace(params.Draft) != "" {
				return outcome{draft: strings.TrimSpace(params.Draft)}
			}
		}
		return outcome{draft: strings.TrimSpace(v.Content), fellBack: true}
	}

	return outcome{fellBack: true}
}

func cleanQuestions(qs []string) []string {
	var out []string
	for _, q := range qs {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}
