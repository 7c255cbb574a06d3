package state

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// AnnouncementItem is one unit of text queued for a guild's voice session
type AnnouncementItem struct {
	Text          string `json:"text"`                     // Sanitized, ready to speak
	OriginUserID  string `json:"origin_user_id,omitempty"` // Empty for system announcements (join/leave)
	VoiceOverride string `json:"voice_override,omitempty"` // Wins over the origin user's preference
}

// IsSystem reports whether the item was generated by the bot rather than a user
func (a AnnouncementItem) IsSystem() bool {
	return a.OriginUserID == ""
}

// PronunciationEntry maps a written word to how it should be read aloud
type PronunciationEntry struct {
	Word      string    `json:"word"`
	Reading   string    `json:"reading"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// MaxReadingLength bounds a dictionary reading in runes
const MaxReadingLength = 100

// Validate checks if the PronunciationEntry is valid
func (p *PronunciationEntry) Validate() error {
	if p.Word == "" {
		return ErrInvalidPronunciation{Field: "word", Reason: "cannot be empty"}
	}
	if strings.ContainsFunc(p.Word, isSpace) {
		return ErrInvalidPronunciation{Field: "word", Reason: "cannot contain whitespace"}
	}
	if strings.TrimSpace(p.Reading) == "" {
		return ErrInvalidPronunciation{Field: "reading", Reason: "cannot be empty"}
	}
	if utf8.RuneCountInString(p.Reading) > MaxReadingLength {
		return ErrInvalidPronunciation{Field: "reading", Reason: fmt.Sprintf("longer than %d characters", MaxReadingLength)}
	}
	return nil
}

// SessionState is the playback state of a guild voice session
type SessionState string

const (
	SessionIdle         SessionState = "idle"
	SessionPlaying      SessionState = "playing"
	SessionReconnecting SessionState = "reconnecting"
	SessionDestroyed    SessionState = "destroyed"
)

// SessionSnapshot is a point-in-time view of a session, safe to serialize
type SessionSnapshot struct {
	GuildID         string       `json:"guild_id"`
	SourceChannelID string       `json:"source_channel_id"`
	VoiceChannelID  string       `json:"voice_channel_id"`
	State           SessionState `json:"state"`
	QueueLength     int          `json:"queue_length"`
	CreatedAt       time.Time    `json:"created_at"`
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '　'
}

// Errors

type ErrInvalidPronunciation struct {
	Field  string
	Reason string
}

func (e ErrInvalidPronunciation) Error() string {
	return fmt.Sprintf("invalid pronunciation entry: %s - %s", e.Field, e.Reason)
}
