package discord

import (
	"context"
	"strings"
	"testing"

	"yomiage-bot/backend/internal/state"
	apperrors "yomiage-bot/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnnouncer struct {
	joined     []string
	left       []string
	sessions   map[string]string
	prefs      map[string]string
	dict       map[string]string
	pages      map[int][]state.PronunciationEntry
	joinErr    error
	reconnects []string
	presence   []bool
}

func newFakeAnnouncer() *fakeAnnouncer {
	return &fakeAnnouncer{
		sessions: map[string]string{},
		prefs:    map[string]string{},
		dict:     map[string]string{},
		pages:    map[int][]state.PronunciationEntry{},
	}
}

func (f *fakeAnnouncer) HandleGuildMessage(ctx context.Context, guildID, channelID, authorID, text string, attachments int) bool {
	return false
}

func (f *fakeAnnouncer) HandleVoicePresenceChange(ctx context.Context, guildID, memberID string, joined bool) {
	f.presence = append(f.presence, joined)
}

func (f *fakeAnnouncer) Join(ctx context.Context, guildID, voiceChannelID, sourceChannelID string) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined = append(f.joined, guildID+"/"+voiceChannelID+"/"+sourceChannelID)
	f.sessions[guildID] = voiceChannelID
	return nil
}

func (f *fakeAnnouncer) Leave(guildID string) error {
	f.left = append(f.left, guildID)
	delete(f.sessions, guildID)
	return nil
}

func (f *fakeAnnouncer) Reconnect(ctx context.Context, guildID string) error {
	f.reconnects = append(f.reconnects, guildID)
	return nil
}

func (f *fakeAnnouncer) SessionChannels(guildID string) (string, string, bool) {
	ch, ok := f.sessions[guildID]
	return ch, "", ok
}

func (f *fakeAnnouncer) SetVoicePreference(ctx context.Context, userID, voice string) error {
	if voice != "nova" && voice != "alloy" {
		return apperrors.NewUnknownVoice(voice)
	}
	f.prefs[userID] = voice
	return nil
}

func (f *fakeAnnouncer) ClearVoicePreference(ctx context.Context, userID string) error {
	delete(f.prefs, userID)
	return nil
}

func (f *fakeAnnouncer) VoicePreference(ctx context.Context, userID string) string {
	if v, ok := f.prefs[userID]; ok {
		return v
	}
	return "alloy"
}

func (f *fakeAnnouncer) Voices() []string { return []string{"alloy", "nova"} }

func (f *fakeAnnouncer) AddDictionaryEntry(ctx context.Context, word, reading string) (state.PronunciationEntry, error) {
	entry := state.PronunciationEntry{Word: word, Reading: reading}
	if err := entry.Validate(); err != nil {
		return entry, err
	}
	f.dict[word] = reading
	return entry, nil
}

func (f *fakeAnnouncer) RemoveDictionaryEntry(ctx context.Context, word string) error {
	if _, ok := f.dict[word]; !ok {
		return apperrors.ErrEntryNotFound
	}
	delete(f.dict, word)
	return nil
}

func (f *fakeAnnouncer) ListDictionary(ctx context.Context, page int) ([]state.PronunciationEntry, error) {
	return f.pages[page], nil
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Command
		ok      bool
	}{
		{"simple", "!join", Command{Name: "join", Args: []string{}}, true},
		{"case and spacing", "  !VOICE   nova ", Command{Name: "voice", Args: []string{"nova"}}, true},
		{"dict add", "!dict add 草 くさ", Command{Name: "dict", Args: []string{"add", "草", "くさ"}}, true},
		{"no prefix", "join", Command{}, false},
		{"prefix only", "!", Command{}, false},
		{"plain message", "hello !join", Command{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand("!", tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecute_JoinAndLeave(t *testing.T) {
	ctx := context.Background()
	svc := newFakeAnnouncer()

	reply := execute(ctx, svc, "!", commandRequest{GuildID: "1", ChannelID: "5", UserID: "9", Command: Command{Name: "join"}})
	assert.Contains(t, reply, "ボイスチャンネルに参加してから")
	assert.Empty(t, svc.joined)

	reply = execute(ctx, svc, "!", commandRequest{GuildID: "1", ChannelID: "5", UserID: "9", VoiceChannelID: "10", Command: Command{Name: "join"}})
	assert.Contains(t, reply, "<#5>")
	assert.Equal(t, []string{"1/10/5"}, svc.joined)

	reply = execute(ctx, svc, "!", commandRequest{GuildID: "1", Command: Command{Name: "leave"}})
	assert.Equal(t, "読み上げを終了しました。", reply)
	assert.Equal(t, []string{"1"}, svc.left)

	reply = execute(ctx, svc, "!", commandRequest{GuildID: "1", Command: Command{Name: "leave"}})
	assert.Equal(t, "ボイスチャンネルに接続していません。", reply)
	assert.Len(t, svc.left, 1)
}

func TestExecute_JoinFailure(t *testing.T) {
	svc := newFakeAnnouncer()
	svc.joinErr = apperrors.NewDiscordRequestFailed("voice join", assert.AnError)

	reply := execute(context.Background(), svc, "!", commandRequest{GuildID: "1", VoiceChannelID: "10", Command: Command{Name: "join"}})
	assert.Equal(t, "ボイスチャンネルに接続できませんでした。", reply)
}

func TestExecute_Voice(t *testing.T) {
	ctx := context.Background()
	svc := newFakeAnnouncer()
	req := func(args ...string) commandRequest {
		return commandRequest{GuildID: "1", UserID: "9", Command: Command{Name: "voice", Args: args}}
	}

	assert.Contains(t, execute(ctx, svc, "!", req()), "現在の声: alloy")
	assert.Contains(t, execute(ctx, svc, "!", req("robot")), "robot という声はありません")
	assert.Equal(t, "声を nova に設定しました。", execute(ctx, svc, "!", req("nova")))
	assert.Equal(t, "nova", svc.prefs["9"])
	assert.Contains(t, execute(ctx, svc, "!", req("reset")), "標準に戻しました")
	assert.Empty(t, svc.prefs)
}

func TestExecute_Dictionary(t *testing.T) {
	ctx := context.Background()
	svc := newFakeAnnouncer()
	req := func(args ...string) commandRequest {
		return commandRequest{GuildID: "1", Command: Command{Name: "dict", Args: args}}
	}

	assert.Equal(t, "「草」を「くさ」と読みます。", execute(ctx, svc, "!", req("add", "草", "くさ")))
	assert.Equal(t, "くさ", svc.dict["草"])
	assert.Contains(t, execute(ctx, svc, "!", req("add", "草")), "使い方")
	assert.Contains(t, execute(ctx, svc, "!", req("add", "x", strings.Repeat("あ", state.MaxReadingLength+1))), "登録できません")

	assert.Equal(t, "「草」を辞書から削除しました。", execute(ctx, svc, "!", req("remove", "草")))
	assert.Equal(t, "「草」は辞書にありません。", execute(ctx, svc, "!", req("remove", "草")))

	svc.pages[2] = []state.PronunciationEntry{{Word: "w", Reading: "だぶりゅー"}}
	list := execute(ctx, svc, "!", req("list", "2"))
	require.Contains(t, list, "2 ページ目")
	assert.Contains(t, list, "・w → だぶりゅー")
	assert.Contains(t, execute(ctx, svc, "!", req("list")), "空です")
}

func TestExecute_Help(t *testing.T) {
	help := execute(context.Background(), newFakeAnnouncer(), "?", commandRequest{Command: Command{Name: "help"}})
	assert.Contains(t, help, "?join")
	assert.Contains(t, help, "?dict list")
	assert.True(t, known("help"))
	assert.False(t, known("play"))
}
