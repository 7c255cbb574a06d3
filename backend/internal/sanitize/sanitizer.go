// Package sanitize turns raw Discord message content into text fit to be spoken.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"yomiage-bot/backend/internal/constants"
)

// DefaultMaxLength is the spoken length limit in runes when none is configured
const DefaultMaxLength = 100

var (
	customEmojiRe = regexp.MustCompile(`<a?:[A-Za-z0-9_~]+:[0-9]+>`)
	urlRe         = regexp.MustCompile(`https?://[^\s<>]+`)
	mentionRe     = regexp.MustCompile(`<(?:@[!&]?|#)[0-9]+>`)
	tokenRe       = regexp.MustCompile(`[^\s　]+`)
)

// Lookup is the read-only view of the pronunciation dictionary
type Lookup interface {
	Reading(word string) (string, bool)
}

// Sanitizer applies the fixed transform pipeline to message text
type Sanitizer struct {
	maxLength int
	dict      Lookup
}

// New creates a sanitizer. dict may be nil, which disables substitution.
func New(maxLength int, dict Lookup) *Sanitizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Sanitizer{maxLength: maxLength, dict: dict}
}

// MaxLength returns the configured spoken length limit
func (s *Sanitizer) MaxLength() int {
	return s.maxLength
}

// Sanitize returns the spoken form of raw. The result may be empty.
func (s *Sanitizer) Sanitize(raw string, attachments int) string {
	text := customEmojiRe.ReplaceAllString(raw, constants.PlaceholderEmoji)
	text = urlRe.ReplaceAllString(text, constants.PlaceholderURL)
	text = mentionRe.ReplaceAllString(text, constants.PlaceholderMention)
	text = strings.TrimSpace(text)

	// The limit bounds the spoken text, readings included
	text = s.substitute(text)
	text = Truncate(text, s.maxLength)

	if attachments > 0 {
		text += fmt.Sprintf(constants.AttachmentSuffixFmt, attachments)
	}
	return strings.TrimSpace(text)
}

func (s *Sanitizer) substitute(text string) string {
	if s.dict == nil || text == "" {
		return text
	}
	// Only whole tokens are replaced; the separators between them are kept as is
	return tokenRe.ReplaceAllStringFunc(text, func(token string) string {
		if reading, ok := s.dict.Reading(token); ok {
			return reading
		}
		return token
	})
}

// Truncate cuts text to max runes and appends the truncation marker if anything was cut.
// A second pass over its own output returns the same string.
func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max]) + constants.TruncatedMarker
}
