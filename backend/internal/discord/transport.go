package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"yomiage-bot/backend/internal/audio"
	"yomiage-bot/backend/internal/constants"
	"yomiage-bot/backend/internal/voice"
	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Connector joins voice channels through a discordgo session
type Connector struct {
	session   *discordgo.Session
	converter *audio.Converter
	logger    *zap.Logger
}

// NewConnector creates a connector
func NewConnector(session *discordgo.Session, converter *audio.Converter, log *zap.Logger) *Connector {
	return &Connector{
		session:   session,
		converter: converter,
		logger:    logger.OrNop(log),
	}
}

// Connect joins the voice channel and waits for the connection to become ready
func (c *Connector) Connect(ctx context.Context, guildID, channelID string) (voice.Transport, error) {
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, apperrors.NewDiscordRequestFailed("voice join", err)
	}

	c.logger.Debug("Waiting for voice connection to be ready...", zap.String("guild_id", guildID))
	timeout := time.NewTimer(constants.VoiceReadyTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for !voiceReady(vc) {
		select {
		case <-ctx.Done():
			_ = vc.Disconnect()
			return nil, apperrors.NewContextCancelled("voice join", ctx.Err())
		case <-timeout.C:
			_ = vc.Disconnect()
			return nil, apperrors.NewDiscordRequestFailed("voice join", errors.New("voice connection not ready in time"))
		case <-ticker.C:
		}
	}

	c.logger.Info("Voice connection ready",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
	)
	return &Transport{
		vc:        vc,
		guildID:   guildID,
		channelID: channelID,
		converter: c.converter,
		logger:    c.logger.With(zap.String("guild_id", guildID)),
	}, nil
}

// Transport plays audio files over one discordgo voice connection
type Transport struct {
	vc        *discordgo.VoiceConnection
	guildID   string
	converter *audio.Converter
	logger    *zap.Logger

	mu        sync.Mutex
	channelID string
}

// ChannelID returns the channel the connection is in
func (t *Transport) ChannelID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channelID
}

// Play encodes the file to Opus and streams it, returning once the last packet is sent.
// A connection that is not ready or stops accepting packets is reported as closed.
func (t *Transport) Play(ctx context.Context, path string) error {
	if !voiceReady(t.vc) {
		return apperrors.NewTransportClosed(t.guildID, errors.New("voice connection not ready"))
	}

	stream, err := t.converter.ToOggOpus(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to start audio conversion: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil && ctx.Err() == nil {
			t.logger.Debug("ffmpeg exited with error", zap.Error(err))
		}
	}()

	if err := t.vc.Speaking(true); err != nil {
		return apperrors.NewTransportClosed(t.guildID, err)
	}
	defer func() {
		_ = t.vc.Speaking(false)
	}()

	reader := audio.NewOggReader(stream)
	stall := time.NewTimer(constants.OpusSendTimeout)
	defer stall.Stop()

	for {
		packet, err := reader.ReadPacket()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read opus stream: %w", err)
		}

		stall.Reset(constants.OpusSendTimeout)
		select {
		case t.vc.OpusSend <- packet:
		case <-stall.C:
			return apperrors.NewTransportClosed(t.guildID, errors.New("opus send timed out"))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Move switches the connection to another channel in the same guild
func (t *Transport) Move(ctx context.Context, channelID string) error {
	if err := t.vc.ChangeChannel(channelID, false, true); err != nil {
		return apperrors.NewDiscordRequestFailed("voice move", err)
	}
	t.mu.Lock()
	t.channelID = channelID
	t.mu.Unlock()
	return nil
}

// Disconnect leaves the voice channel
func (t *Transport) Disconnect() error {
	return t.vc.Disconnect()
}

func voiceReady(vc *discordgo.VoiceConnection) bool {
	vc.RLock()
	defer vc.RUnlock()
	return vc.Ready
}
