// Package security validates user input at the HTTP boundary before it
// reaches the agent loop.
package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// injectionPatterns covers the obvious prompt-injection phrasings
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)override\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)new\s+context\s*:`),
	regexp.MustCompile(`(?i)instead\s+of\s+the\s+above`),
}

// PromptValidator checks user chat messages before they enter a turn
type PromptValidator struct {
	maxLength int
}

func NewPromptValidator(maxLength int) *PromptValidator {
	return &PromptValidator{maxLength: maxLength}
}

// Validate rejects empty, oversized, control-character-laden or obviously
// injected messages
func (v *PromptValidator) Validate(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return fmt.Errorf("message must not be empty")
	}
	if len(prompt) > v.maxLength {
		return fmt.Errorf("message exceeds maximum length of %d characters", v.maxLength)
	}

	for _, r := range prompt {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return fmt.Errorf("message contains control characters")
		}
	}

	for _, p := range injectionPatterns {
		if p.MatchString(prompt) {
			return fmt.Errorf("message matches a blocked pattern")
		}
	}
	return nil
}
