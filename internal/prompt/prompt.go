// Package prompt holds the instruction texts sent to the completion service
// and pure functions that fill them in.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	"empathos.app/relay/internal/model"
)

// Version identifies the template set recorded with every exchange.
const Version = "lite-3"

const (
	// NoNotes replaces blank operator notes in the drafting template.
	NoNotes = "-"
	// NoSignature replaces a blank signature in the drafting template.
	NoSignature = "(No signature provided)"
)

var (
	//go:embed templates/drafting.txt
	draftingTemplate string

	//go:embed templates/translate_english.txt
	translateEnglish string

	//go:embed templates/channel_email.txt
	channelEmail string

	//go:embed templates/channel_public.txt
	channelPublic string

	//go:embed templates/review.txt
	review string

	//go:embed templates/translate_to.txt
	translateToTemplate string

	//go:embed templates/polish.txt
	polishTemplate string

	//go:embed templates/advanced.txt
	advanced string

	//go:embed templates/answers.txt
	answersTemplate string
)

// DraftInput is everything the drafting template needs.
type DraftInput struct {
	ClientReview  string // Working-language copy of the customer message
	OperatorNotes string
	Signature     string
	Channel       model.Channel
}

// TranslateToEnglish is the system instruction for the working-language pass.
func TranslateToEnglish() string {
	return text(translateEnglish)
}

// ChannelInstruction returns the formatting guidance for ch. Anything but
// public is treated as email.
func ChannelInstruction(ch model.Channel) string {
	if ch == model.ChannelPublic {
		return text(channelPublic)
	}
	return text(channelEmail)
}

// Drafting renders the drafting system prompt: channel guidance followed by
// the filled template. Substituted values are never re-expanded.
func Drafting(in DraftInput) string {
	notes := in.OperatorNotes
	if strings.TrimSpace(notes) == "" {
		notes = NoNotes
	}
	signature := strings.TrimSpace(in.Signature)
	if signature == "" {
		signature = NoSignature
	}

	body := fill(draftingTemplate,
		"{client_review}", in.ClientReview,
		"{operator_notes}", notes,
		"{signature}", signature,
	)
	return ChannelInstruction(in.Channel) + "\n" + body
}

// Advanced is appended to the drafting prompt when the model may ask questions.
func Advanced() string {
	return text(advanced)
}

// Review is the audit instruction for the automatic review pass.
func Review() string {
	return text(review)
}

// TranslateTo is the instruction for translating the reviewed draft.
func TranslateTo(lang model.Language) string {
	return fill(translateToTemplate, "{language}", string(lang))
}

// Polish is the instruction for the automatic pass over a translation.
func Polish(lang model.Language) string {
	return fill(polishTemplate, "{language}", string(lang))
}

// Answers renders the operator's answers as the result of request_additional_info.
// Questions are numbered from 1 in the order the model asked them.
func Answers(questions []string, answers map[int]string) string {
	var sb strings.Builder
	for i, q := range questions {
		fmt.Fprintf(&sb, "Q%d: %s\nA%d: %s\n", i+1, q, i+1, strings.TrimSpace(answers[i]))
	}
	return fill(answersTemplate, "{answers}", strings.TrimSuffix(sb.String(), "\n"))
}

func fill(tmpl string, oldnew ...string) string {
	return strings.NewReplacer(oldnew...).Replace(text(tmpl))
}

// text drops the trailing newline editors add to embedded files.
func text(s string) string {
	return strings.TrimSuffix(s, "\n")
}
