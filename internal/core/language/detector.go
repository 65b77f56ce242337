// Package language guesses which supported language a user wrote in.
//
// The detector is a heuristic over letter classes and a few common words. It
// is approximate and regularly wrong on very short or mixed-language input.
package language

import (
	"strings"
	"unicode"

	"github.com/markdave123-py/libassist/internal/models"
)

const (
	ukrainianLetters = "іїєґ"
	russianLetters   = "ёыэъ"
)

var (
	ukrainianAnchors = []string{"привіт", "дякую", "будь ласка"}
	russianAnchors   = []string{"привет", "спасибо", "пожалуйста", "здравствуйте"}
)

// Detector scores Ukrainian-only against Russian-only letters and anchor words.
// The higher score wins. A tie goes to CyrillicDefault when the text contains
// any Cyrillic letter and to LatinDefault otherwise.
type Detector struct {
	CyrillicDefault models.Language
	LatinDefault    models.Language
}

// NewDetector falls back to uk and en for unsupported defaults.
func NewDetector(cyrillicDefault, latinDefault models.Language) *Detector {
	if !cyrillicDefault.Valid() {
		cyrillicDefault = models.LanguageUkrainian
	}
	if !latinDefault.Valid() {
		latinDefault = models.LanguageEnglish
	}
	return &Detector{CyrillicDefault: cyrillicDefault, LatinDefault: latinDefault}
}

// Detect returns false only for empty or whitespace-only text.
func (d *Detector) Detect(text string) (models.Language, bool) {
	sample := strings.ToLower(text)
	if strings.TrimSpace(sample) == "" {
		return "", false
	}

	var uk, ru int
	cyrillic := false
	for _, r := range sample {
		switch {
		case strings.ContainsRune(ukrainianLetters, r):
			uk++
		case strings.ContainsRune(russianLetters, r):
			ru++
		}
		if !cyrillic && unicode.Is(unicode.Cyrillic, r) {
			cyrillic = true
		}
	}
	uk += countAnchors(sample, ukrainianAnchors)
	ru += countAnchors(sample, russianAnchors)

	switch {
	case uk > ru:
		return models.LanguageUkrainian, true
	case ru > uk:
		return models.LanguageRussian, true
	case cyrillic:
		return d.CyrillicDefault, true
	default:
		return d.LatinDefault, true
	}
}

func countAnchors(sample string, anchors []string) int {
	n := 0
	for _, a := range anchors {
		n += strings.Count(sample, a)
	}
	return n
}
