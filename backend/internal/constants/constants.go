package constants

import "time"

// Discord constants
const (
	// DiscordMaxMessageLength is the maximum character limit for Discord messages
	DiscordMaxMessageLength = 2000

	// VoiceReadyTimeout bounds how long a fresh voice connection may take to become ready
	VoiceReadyTimeout = 5 * time.Second

	// OpusSendTimeout is how long a single frame may block before the transport counts as closed
	OpusSendTimeout = 5 * time.Second
)

// Announcement placeholders
const (
	PlaceholderEmoji     = "絵文字"
	PlaceholderURL       = "URL省略"
	PlaceholderMention   = "メンション"
	TruncatedMarker      = "以下略"
	AttachmentSuffixFmt  = " 添付ファイル%d件"
	PresenceJoinedFormat = "%sさんが入室しました"
	PresenceLeftFormat   = "%sさんが退室しました"
)

// Dictionary constants
const (
	// DictionaryPageSize is how many entries a dictionary list command shows
	DictionaryPageSize = 10
)
