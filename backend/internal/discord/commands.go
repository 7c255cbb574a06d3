package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"yomiage-bot/backend/internal/state"
	apperrors "yomiage-bot/backend/pkg/errors"
)

// Announcer is the part of voice.Service the Discord layer drives
type Announcer interface {
	HandleGuildMessage(ctx context.Context, guildID, channelID, authorID, text string, attachments int) bool
	HandleVoicePresenceChange(ctx context.Context, guildID, memberID string, joined bool)
	Join(ctx context.Context, guildID, voiceChannelID, sourceChannelID string) error
	Leave(guildID string) error
	Reconnect(ctx context.Context, guildID string) error
	SessionChannels(guildID string) (voiceChannelID, sourceChannelID string, ok bool)
	SetVoicePreference(ctx context.Context, userID, voice string) error
	ClearVoicePreference(ctx context.Context, userID string) error
	VoicePreference(ctx context.Context, userID string) string
	Voices() []string
	AddDictionaryEntry(ctx context.Context, word, reading string) (state.PronunciationEntry, error)
	RemoveDictionaryEntry(ctx context.Context, word string) error
	ListDictionary(ctx context.Context, page int) ([]state.PronunciationEntry, error)
}

// Command is a parsed prefix command
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits content into a command when it starts with prefix
func ParseCommand(prefix, content string) (Command, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// commandRequest carries everything a command needs, resolved from the gateway event
type commandRequest struct {
	GuildID        string
	ChannelID      string
	UserID         string
	VoiceChannelID string // Caller's current voice channel, empty when not in one
	Command        Command
}

// known reports whether name is handled by execute
func known(name string) bool {
	switch name {
	case "join", "leave", "voice", "dict", "help":
		return true
	}
	return false
}

// execute runs a command and returns the reply text
func execute(ctx context.Context, svc Announcer, prefix string, req commandRequest) string {
	args := req.Command.Args
	switch req.Command.Name {
	case "join":
		if req.VoiceChannelID == "" {
			return "ボイスチャンネルに参加してから呼んでください。"
		}
		if err := svc.Join(ctx, req.GuildID, req.VoiceChannelID, req.ChannelID); err != nil {
			return "ボイスチャンネルに接続できませんでした。"
		}
		return fmt.Sprintf("<#%s> の読み上げを開始します。", req.ChannelID)

	case "leave":
		if _, _, ok := svc.SessionChannels(req.GuildID); !ok {
			return "ボイスチャンネルに接続していません。"
		}
		if err := svc.Leave(req.GuildID); err != nil {
			return "切断中にエラーが発生しました。"
		}
		return "読み上げを終了しました。"

	case "voice":
		if len(args) == 0 {
			current := svc.VoicePreference(ctx, req.UserID)
			return fmt.Sprintf("現在の声: %s\n使える声: %s", current, strings.Join(svc.Voices(), ", "))
		}
		if strings.EqualFold(args[0], "reset") {
			if err := svc.ClearVoicePreference(ctx, req.UserID); err != nil {
				return "声の設定を消せませんでした。"
			}
			return "声の設定を標準に戻しました。"
		}
		err := svc.SetVoicePreference(ctx, req.UserID, args[0])
		switch {
		case errors.Is(err, apperrors.ErrUnknownVoice):
			return fmt.Sprintf("%s という声はありません。使える声: %s", args[0], strings.Join(svc.Voices(), ", "))
		case err != nil:
			return "声の設定を保存できませんでした。"
		}
		return fmt.Sprintf("声を %s に設定しました。", args[0])

	case "dict":
		return executeDict(ctx, svc, prefix, args)

	case "help":
		return helpText(prefix)
	}
	return ""
}

func executeDict(ctx context.Context, svc Announcer, prefix string, args []string) string {
	if len(args) == 0 {
		return helpText(prefix)
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 3 {
			return fmt.Sprintf("使い方: %sdict add <単語> <読み>", prefix)
		}
		entry, err := svc.AddDictionaryEntry(ctx, args[1], strings.Join(args[2:], " "))
		if err != nil {
			var invalid state.ErrInvalidPronunciation
			if errors.As(err, &invalid) {
				return fmt.Sprintf("登録できません: %s", invalid.Reason)
			}
			return "辞書に登録できませんでした。"
		}
		return fmt.Sprintf("「%s」を「%s」と読みます。", entry.Word, entry.Reading)

	case "remove", "rm", "delete":
		if len(args) < 2 {
			return fmt.Sprintf("使い方: %sdict remove <単語>", prefix)
		}
		err := svc.RemoveDictionaryEntry(ctx, args[1])
		switch {
		case errors.Is(err, apperrors.ErrEntryNotFound):
			return fmt.Sprintf("「%s」は辞書にありません。", args[1])
		case err != nil:
			return "辞書から削除できませんでした。"
		}
		return fmt.Sprintf("「%s」を辞書から削除しました。", args[1])

	case "list":
		page := 1
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
				page = n
			}
		}
		entries, err := svc.ListDictionary(ctx, page)
		if err != nil {
			return "辞書を読み込めませんでした。"
		}
		if len(entries) == 0 {
			return fmt.Sprintf("辞書の %d ページ目は空です。", page)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "辞書 (%d ページ目)\n", page)
		for _, e := range entries {
			fmt.Fprintf(&b, "・%s → %s\n", e.Word, e.Reading)
		}
		return strings.TrimRight(b.String(), "\n")
	}
	return helpText(prefix)
}

func helpText(p string) string {
	return strings.Join([]string{
		p + "join: 今いるボイスチャンネルで、このチャンネルの読み上げを開始",
		p + "leave: 読み上げを終了",
		p + "voice [声]: 自分の声を表示・設定 (" + p + "voice reset で標準に戻す)",
		p + "dict add <単語> <読み>: 読み方を登録",
		p + "dict remove <単語>: 読み方を削除",
		p + "dict list [ページ]: 辞書を表示",
	}, "\n")
}
