package assistant

import (
	"errors"
	"fmt"

	"github.com/markdave123-py/libassist/internal/logger"
	"github.com/markdave123-py/libassist/internal/models"
)

// DefaultLanguage is used whenever a language code is missing or unknown.
const DefaultLanguage = models.LanguageUkrainian

const promptPreviewRunes = 200

var ErrEmptyPrompt = errors.New("prompt is empty")

// PipelineError is returned by Generator.Reply for any failure while
// building or generating a reply. Op names the failed step.
type PipelineError struct {
	Op  string
	Err error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("reply pipeline failed at %s: %v", e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

var localizedErrorMessages = map[models.Language]string{
	models.LanguageUkrainian: "Вибачте, сталася помилка при генеруванні відповіді. Будь ласка, спробуйте ще раз.",
	models.LanguageRussian:   "Извините, произошла ошибка при генерировании ответа. Пожалуйста, попробуйте еще раз.",
	models.LanguageEnglish:   "Sorry, an error occurred while generating the response. Please try again.",
}

// LocalizedErrorMessage is the apology shown to the user when a reply fails.
func LocalizedErrorMessage(lang models.Language) string {
	if msg, ok := localizedErrorMessages[lang]; ok {
		return msg
	}
	return localizedErrorMessages[models.LanguageEnglish]
}

func NormalizeLanguage(s string) models.Language {
	if l := models.Language(s); l.Valid() {
		return l
	}
	return DefaultLanguage
}

// FailureContext identifies the turn a pipeline failure belongs to.
type FailureContext struct {
	ConversationID int64
	UserID         string
	Prompt         string
}

// LogPipelineError records a failed reply with its conversation context.
// The prompt is truncated so long user input is not echoed in full.
func LogPipelineError(log logger.Logger, err error, fc FailureContext) {
	kv := []any{
		"conversation_id", fc.ConversationID,
		"user_id", fc.UserID,
		"prompt", truncateRunes(fc.Prompt, promptPreviewRunes),
		"error", err,
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		kv = append(kv, "op", pe.Op)
	}
	log.Error("failed to generate response", kv...)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
