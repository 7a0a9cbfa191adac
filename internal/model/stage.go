package model

import "strings"

// Stage is the discrete state of one drafting session.
type Stage string

const (
	StageInit                Stage = "init"
	StageAsked               Stage = "asked"
	StageDone                Stage = "done"
	StageReviewed            Stage = "reviewed"
	StageTranslated          Stage = "translated"
	StageReviewedTranslation Stage = "reviewed_translation"
)

type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelPublic Channel = "public"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelPublic
}

// Mode selects whether the model may ask clarifying questions before drafting.
type Mode string

const (
	ModeSimple   Mode = "simple"
	ModeAdvanced Mode = "advanced"
)

func (m Mode) Valid() bool {
	return m == ModeSimple || m == ModeAdvanced
}

// Language is a translation target offered to operators.
type Language string

const (
	LanguageEnglish   Language = "English"
	LanguageSlovak    Language = "Slovak"
	LanguageItalian   Language = "Italian"
	LanguageIcelandic Language = "Icelandic"
	LanguageHungarian Language = "Hungarian"
	LanguageGerman    Language = "German"
	LanguageCzech     Language = "Czech"
	LanguagePolish    Language = "Polish"
	LanguageVulcan    Language = "Vulcan"
)

// Languages is the fixed, ordered list shown in the target language picker.
var Languages = []Language{
	LanguageEnglish,
	LanguageSlovak,
	LanguageItalian,
	LanguageIcelandic,
	LanguageHungarian,
	LanguageGerman,
	LanguageCzech,
	LanguagePolish,
	LanguageVulcan,
}

// ParseLanguage matches s against Languages, ignoring case and surrounding space.
func ParseLanguage(s string) (Language, bool) {
	s = strings.TrimSpace(s)
	for _, l := range Languages {
		if strings.EqualFold(string(l), s) {
			return l, true
		}
	}
	return "", false
}
