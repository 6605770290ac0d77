package analysis

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/util"
)

// MaxQuestionLength is the longest text still treated as a question, in runes
const MaxQuestionLength = 2000

// commandPrefixes mark chat commands logged alongside real questions
var commandPrefixes = []string{"/feedback", "/correct", "/help"}

// Rejection reasons
const (
	reasonBlank    = "blank"
	reasonEncoding = "invalid utf-8"
	reasonTooLong  = "too long"
	reasonCommand  = "command"
)

// rejectReason returns why text cannot be analyzed, or "" when it can
func rejectReason(text string) string {
	if !utf8.ValidString(text) {
		return reasonEncoding
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || util.Normalize(trimmed) == "" {
		return reasonBlank
	}
	if utf8.RuneCountInString(trimmed) > MaxQuestionLength {
		return reasonTooLong
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range commandPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return reasonCommand
		}
	}
	return ""
}

// filterQuestions drops corrupted entries and commands. Skipped entries are logged, never fatal.
func filterQuestions(events []model.QuestionEvent) []model.QuestionEvent {
	kept := make([]model.QuestionEvent, 0, len(events))
	skipped := 0
	for _, e := range events {
		if reason := rejectReason(e.Text); reason != "" {
			skipped++
			if reason != reasonCommand {
				log.Warn().
					Str("component", "analysis").
					Int64("question_id", e.ID).
					Str("reason", reason).
					Msg("skipping corrupted question")
			}
			continue
		}
		kept = append(kept, e)
	}
	if skipped > 0 {
		log.Debug().Str("component", "analysis").Int("skipped", skipped).Msg("filtered question log")
	}
	return kept
}
