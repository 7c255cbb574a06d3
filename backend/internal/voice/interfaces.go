// Package voice runs the per-guild announcement queue: one session per guild,
// FIFO playback over a voice transport, and recovery when the transport drops.
package voice

import (
	"context"

	"yomiage-bot/backend/internal/state"
	"yomiage-bot/backend/internal/tts"
)

// Transport is a live audio connection to one voice channel
type Transport interface {
	ChannelID() string
	// Play blocks until the file has been played or ctx is done.
	// A dropped connection is reported as apperrors.ErrTransportClosed.
	Play(ctx context.Context, path string) error
	Move(ctx context.Context, channelID string) error
	Disconnect() error
}

// Connector opens transports
type Connector interface {
	Connect(ctx context.Context, guildID, channelID string) (Transport, error)
}

// Synthesizer produces audio files for announcements
type Synthesizer interface {
	Synthesize(ctx context.Context, guildID, text, voice string) (*tts.Handle, error)
}

// PreferenceResolver picks the voice for a user
type PreferenceResolver interface {
	Resolve(ctx context.Context, userID string) string
}

// Directory answers questions about guild members and voice channels
type Directory interface {
	DisplayName(guildID, userID string) string
	// HumanCount is the number of non-bot members in the voice channel
	HumanCount(guildID, channelID string) int
}

// DictionaryStore is the pronunciation dictionary as seen by the command layer
type DictionaryStore interface {
	Add(ctx context.Context, word, reading string) (state.PronunciationEntry, error)
	Remove(ctx context.Context, word string) error
	List(ctx context.Context, limit, offset int) ([]state.PronunciationEntry, error)
}

// PreferenceStore reads and writes voice preferences
type PreferenceStore interface {
	PreferenceResolver
	Set(ctx context.Context, userID, voice string) error
	Clear(ctx context.Context, userID string) error
}

// VoiceLister lists the voices users may choose from
type VoiceLister interface {
	Voices() []string
}
