package brain

import (
	"strings"

	"empathos.app/relay/internal/model"
)

// DefaultWordCeiling is the soft reply length the prompts ask for.
const DefaultWordCeiling = 250

// WordCount returns the number of whitespace-delimited tokens in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Count annotates one text field. OverCeiling is a warning, never an error.
type Count struct {
	Words       int  `json:"words"`
	OverCeiling bool `json:"over_ceiling"`
}

type Counts struct {
	Ceiling             int   `json:"ceiling"`
	Draft               Count `json:"draft"`
	ReviewedDraft       Count `json:"reviewed_draft"`
	Translation         Count `json:"translation"`
	ReviewedTranslation Count `json:"reviewed_translation"`
}

// CountWords computes word counts for every output field of sess.
func CountWords(sess *model.Session, ceiling int) Counts {
	if ceiling <= 0 {
		ceiling = DefaultWordCeiling
	}
	count := func(s string) Count {
		n := WordCount(s)
		return Count{Words: n, OverCeiling: n > ceiling}
	}
	return Counts{
		Ceiling:             ceiling,
		Draft:               count(sess.Draft),
		ReviewedDraft:       count(sess.ReviewedDraft),
		Translation:         count(sess.Translation),
		ReviewedTranslation: count(sess.ReviewedTranslation),
	}
}

// Warnings lists the fields whose word count exceeds the ceiling.
func (c Counts) Warnings() []string {
	var out []string
	for _, f := range []struct {
		name  string
		count Count
	}{
		{"draft", c.Draft},
		{"reviewed_draft", c.ReviewedDraft},
		{"translation", c.Translation},
		{"reviewed_translation", c.ReviewedTranslation},
	} {
		if f.count.OverCeiling {
			out = append(out, f.name)
		}
	}
	return out
}
