// Package sanitize cleans text retrieved from untrusted sources before it is
// placed in a model's system context.
package sanitize

import (
	"regexp"
	"strings"
)

// PreviewLen bounds how much of a dropped line is reported back.
const PreviewLen = 120

var (
	tagPattern     = regexp.MustCompile(`<[^<>]*>`)
	bracketPattern = regexp.MustCompile(`[<>]`)

	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ignore\s+(previous|all|prior)\s+(instructions?|prompts?|rules?|context)`),
		regexp.MustCompile(`(?i)disregard\s+(previous|all|prior|everything|the\s+above)`),
		regexp.MustCompile(`(?i)forget\s+(everything|all|the\s+above|what\s+(I|you|we)\s+(said|discussed)|your\s+instructions)`),
		regexp.MustCompile(`(?i)you\s+are\s+now\s+a?n?\s*\w+`),
		regexp.MustCompile(`(?i)act\s+as\s+(an?\s+)?(jailbroken|uncensored|unrestricted|different|evil|hacker|dan)\b`),
		regexp.MustCompile(`(?i)new\s+instructions?:`),
		regexp.MustCompile(`(?i)override\s+(system|instructions?)`),
		regexp.MustCompile(`(?i)\[SYSTEM\]`),
		regexp.MustCompile(`(?i)\[INST\]`),
		regexp.MustCompile(`(?i)###\s*(instruction|system|prompt)`),
	}
)

// Sanitize strips markup and drops lines that look like injected instructions.
// It returns the cleaned text and a bounded preview of every dropped line.
//
// Innermost tags are removed until nothing tag-shaped remains, then any stray
// angle bracket left by malformed markup is deleted, so the output never
// contains '<' or '>'. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) (string, []string) {
	stripped := StripTags(text)

	var dropped []string
	lines := strings.Split(stripped, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if IsInjection(line) {
			dropped = append(dropped, preview(line))
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n")), dropped
}

// StripTags removes tag-like spans until a fixed point, then stray brackets.
func StripTags(text string) string {
	for {
		next := tagPattern.ReplaceAllString(text, "")
		if next == text {
			break
		}
		text = next
	}
	return bracketPattern.ReplaceAllString(text, "")
}

// IsInjection reports whether line matches a known prompt-injection signature.
func IsInjection(line string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

func preview(line string) string {
	r := []rune(line)
	if len(r) <= PreviewLen {
		return line
	}
	return string(r[:PreviewLen])
}
