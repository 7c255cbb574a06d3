package voice

import (
	"context"
	"errors"
	"fmt"

	"yomiage-bot/backend/internal/constants"
	"yomiage-bot/backend/internal/sanitize"
	"yomiage-bot/backend/internal/state"
	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"go.uber.org/zap"
)

// ServiceConfig wires a Service
type ServiceConfig struct {
	Registry         *Registry
	Sanitizer        *sanitize.Sanitizer
	Dictionary       DictionaryStore
	Preferences      PreferenceStore
	Directory        Directory
	Voices           VoiceLister
	AnnouncePresence bool
	Logger           *zap.Logger
}

// Service is the entry point used by the Discord command layer and the admin API
type Service struct {
	registry         *Registry
	sanitizer        *sanitize.Sanitizer
	dictionary       DictionaryStore
	preferences      PreferenceStore
	directory        Directory
	voices           VoiceLister
	announcePresence bool
	logger           *zap.Logger
}

// NewService creates a service from cfg
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		registry:         cfg.Registry,
		sanitizer:        cfg.Sanitizer,
		dictionary:       cfg.Dictionary,
		preferences:      cfg.Preferences,
		directory:        cfg.Directory,
		voices:           cfg.Voices,
		announcePresence: cfg.AnnouncePresence,
		logger:           logger.OrNop(cfg.Logger),
	}
}

// Sessions lists the active sessions
func (s *Service) Sessions() []state.SessionSnapshot {
	return s.registry.Sessions()
}

// Registry exposes the session registry
func (s *Service) Registry() *Registry {
	return s.registry
}

// HandleGuildMessage sanitizes a chat message and queues it for the guild's session.
// It reports whether an announcement was queued; messages outside the gated
// channel, in guilds without a session, or with nothing to say are ignored.
func (s *Service) HandleGuildMessage(ctx context.Context, guildID, channelID, authorID, text string, attachments int) bool {
	session := s.registry.Session(guildID)
	if session == nil || session.SourceChannelID() != channelID {
		return false
	}

	spoken := s.sanitizer.Sanitize(text, attachments)
	if spoken == "" {
		return false
	}

	err := s.registry.Enqueue(guildID, state.AnnouncementItem{Text: spoken, OriginUserID: authorID})
	if err != nil {
		if !errors.Is(err, apperrors.ErrSessionNotFound) {
			s.logger.Warn("Failed to enqueue message", zap.String("guild_id", guildID), zap.Error(err))
		}
		return false
	}
	return true
}

// HandleVoicePresenceChange announces a member joining or leaving the session's
// voice channel and leaves when no humans remain.
func (s *Service) HandleVoicePresenceChange(ctx context.Context, guildID, memberID string, joined bool) {
	session := s.registry.Session(guildID)
	if session == nil {
		return
	}

	if !joined && s.directory.HumanCount(guildID, session.VoiceChannelID()) == 0 {
		s.logger.Info("Voice channel empty, leaving", zap.String("guild_id", guildID))
		if err := s.registry.Leave(guildID); err != nil {
			s.logger.Warn("Failed to disconnect voice", zap.String("guild_id", guildID), zap.Error(err))
		}
		return
	}

	if !s.announcePresence {
		return
	}

	format := constants.PresenceLeftFormat
	if joined {
		format = constants.PresenceJoinedFormat
	}
	name := s.directory.DisplayName(guildID, memberID)
	spoken := s.sanitizer.Sanitize(fmt.Sprintf(format, name), 0)

	err := s.registry.Enqueue(guildID, state.AnnouncementItem{Text: spoken})
	if err != nil && !errors.Is(err, apperrors.ErrSessionNotFound) {
		s.logger.Warn("Failed to enqueue presence announcement", zap.String("guild_id", guildID), zap.Error(err))
	}
}

// Join starts (or moves) the guild's session
func (s *Service) Join(ctx context.Context, guildID, voiceChannelID, sourceChannelID string) error {
	return s.registry.Join(ctx, guildID, voiceChannelID, sourceChannelID)
}

// Leave ends the guild's session
func (s *Service) Leave(guildID string) error {
	return s.registry.Leave(guildID)
}

// Reconnect restores the guild's voice transport after a forced disconnect
func (s *Service) Reconnect(ctx context.Context, guildID string) error {
	return s.registry.Reconnect(ctx, guildID)
}

// SessionChannels returns the voice and source channel of the guild's session
func (s *Service) SessionChannels(guildID string) (voiceChannelID, sourceChannelID string, ok bool) {
	session := s.registry.Session(guildID)
	if session == nil {
		return "", "", false
	}
	return session.VoiceChannelID(), session.SourceChannelID(), true
}

// SetVoicePreference stores the voice a user is read with
func (s *Service) SetVoicePreference(ctx context.Context, userID, voice string) error {
	return s.preferences.Set(ctx, userID, voice)
}

// ClearVoicePreference resets a user to the default voice
func (s *Service) ClearVoicePreference(ctx context.Context, userID string) error {
	return s.preferences.Clear(ctx, userID)
}

// VoicePreference returns the voice a user is currently read with
func (s *Service) VoicePreference(ctx context.Context, userID string) string {
	return s.preferences.Resolve(ctx, userID)
}

// Voices lists the selectable voices
func (s *Service) Voices() []string {
	return s.voices.Voices()
}

// AddDictionaryEntry registers or replaces a reading
func (s *Service) AddDictionaryEntry(ctx context.Context, word, reading string) (state.PronunciationEntry, error) {
	return s.dictionary.Add(ctx, word, reading)
}

// RemoveDictionaryEntry deletes a reading
func (s *Service) RemoveDictionaryEntry(ctx context.Context, word string) error {
	return s.dictionary.Remove(ctx, word)
}

// ListDictionary returns one page (1-based) of entries
func (s *Service) ListDictionary(ctx context.Context, page int) ([]state.PronunciationEntry, error) {
	if page < 1 {
		page = 1
	}
	return s.dictionary.List(ctx, constants.DictionaryPageSize, (page-1)*constants.DictionaryPageSize)
}

// DictionaryEntries returns entries by raw limit and offset
func (s *Service) DictionaryEntries(ctx context.Context, limit, offset int) ([]state.PronunciationEntry, error) {
	return s.dictionary.List(ctx, limit, offset)
}
