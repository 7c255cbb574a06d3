package discord

import (
	"context"
	"errors"

	apperrors "yomiage-bot/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// HandleVoiceStateUpdate turns voice state changes into presence announcements,
// and restores the bot's own connection when Discord drops it.
func (h *Handler) HandleVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || v.GuildID == "" {
		return
	}

	sessionChannel, _, ok := h.service.SessionChannels(v.GuildID)
	if !ok {
		return
	}

	if s.State.User != nil && v.UserID == s.State.User.ID {
		if v.ChannelID == "" {
			h.logger.Warn("Bot was disconnected from voice, reconnecting", zap.String("guild_id", v.GuildID))
			go h.reconnect(v.GuildID)
		}
		return
	}

	if v.Member != nil && v.Member.User != nil && v.Member.User.Bot {
		return
	}

	var before string
	if v.BeforeUpdate != nil {
		before = v.BeforeUpdate.ChannelID
	}
	joined, changed := presenceChange(sessionChannel, before, v.ChannelID)
	if !changed {
		return
	}
	h.service.HandleVoicePresenceChange(context.Background(), v.GuildID, v.UserID, joined)
}

func (h *Handler) reconnect(guildID string) {
	err := h.service.Reconnect(context.Background(), guildID)
	switch {
	case err == nil:
		h.logger.Info("Voice reconnected", zap.String("guild_id", guildID))
	case errors.Is(err, apperrors.ErrReconnectInProgress), errors.Is(err, apperrors.ErrSessionNotFound):
	default:
		h.logger.Warn("Voice reconnect failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}

// presenceChange reports whether a move from before to after entered or left
// the session channel. Moves unrelated to it are not changes.
func presenceChange(sessionChannel, before, after string) (joined, changed bool) {
	if sessionChannel == "" || before == after {
		return false, false
	}
	switch sessionChannel {
	case after:
		return true, true
	case before:
		return false, true
	}
	return false, false
}
