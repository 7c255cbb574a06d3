package discord

import (
	"context"

	"yomiage-bot/backend/pkg/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Handler handles Discord gateway events
type Handler struct {
	service Announcer
	prefix  string
	logger  *zap.Logger
}

// NewHandler creates a new Discord event handler
func NewHandler(service Announcer, prefix string, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		prefix:  prefix,
		logger:  logger.OrNop(log),
	}
}

// HandleMessage processes a Discord message
func (h *Handler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bots, including ourselves, and DMs
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	ctx := context.Background()

	if cmd, ok := ParseCommand(h.prefix, m.Content); ok && known(cmd.Name) {
		h.logger.Info("Processing command",
			zap.String("command", cmd.Name),
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.Author.ID),
		)

		req := commandRequest{
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			UserID:    m.Author.ID,
			Command:   cmd,
		}
		if cmd.Name == "join" {
			if vs, err := s.State.VoiceState(m.GuildID, m.Author.ID); err == nil && vs != nil {
				req.VoiceChannelID = vs.ChannelID
			}
		}

		if reply := execute(ctx, h.service, h.prefix, req); reply != "" {
			h.sendLongMessage(s, m.ChannelID, reply)
		}
		return
	}

	if h.service.HandleGuildMessage(ctx, m.GuildID, m.ChannelID, m.Author.ID, m.Content, len(m.Attachments)) {
		h.logger.Debug("Queued announcement",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.Author.ID),
		)
	}
}
