package discord

import (
	"strings"
	"time"
	"unicode/utf8"

	"yomiage-bot/backend/internal/constants"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// sendLongMessage splits a message into chunks if it exceeds Discord's character limit
func (h *Handler) sendLongMessage(s *discordgo.Session, channelID, content string) {
	chunks := splitMessage(content, constants.DiscordMaxMessageLength)

	for i, chunk := range chunks {
		_, err := s.ChannelMessageSend(channelID, chunk)
		if err != nil {
			h.logger.Error("Failed to send message chunk",
				zap.Error(err),
				zap.String("channel_id", channelID),
				zap.Int("chunk", i+1),
				zap.Int("total_chunks", len(chunks)),
			)
			// Stop sending if we hit an error
			break
		}

		// Small delay between chunks to avoid rate limiting
		if i < len(chunks)-1 {
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// splitMessage splits content into chunks of at most maxLength runes, preferring line breaks
func splitMessage(content string, maxLength int) []string {
	if utf8.RuneCountInString(content) <= maxLength {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.SplitAfter(content, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen <= maxLength {
			current.WriteString(line)
			currentLen += lineLen
			continue
		}
		flush()

		// A single line longer than the limit is cut by runes
		runes := []rune(line)
		for len(runes) > maxLength {
			chunks = append(chunks, string(runes[:maxLength]))
			runes = runes[maxLength:]
		}
		current.WriteString(string(runes))
		currentLen = len(runes)
	}
	flush()

	for i := range chunks {
		chunks[i] = strings.TrimRight(chunks[i], "\n")
	}
	return chunks
}
