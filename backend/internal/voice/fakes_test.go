package voice

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"yomiage-bot/backend/internal/state"
	"yomiage-bot/backend/internal/tts"
	apperrors "yomiage-bot/backend/pkg/errors"
)

// fakeEngine writes the announcement text as the "audio" so transports can tell items apart
type fakeEngine struct {
	mu     sync.Mutex
	calls  []engineCall
	failOn map[string]bool
}

type engineCall struct {
	text  string
	voice string
}

func (e *fakeEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, engineCall{text: text, voice: voice})
	if e.failOn[text] {
		return nil, apperrors.Permanent(errors.New("engine rejected text"))
	}
	return []byte(text), nil
}

func (e *fakeEngine) Voices() []string { return []string{"alloy", "nova", "echo"} }
func (e *fakeEngine) Format() string   { return "wav" }

func (e *fakeEngine) Calls() []engineCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engineCall(nil), e.calls...)
}

// recorder is shared by every transport a connector hands out
type recorder struct {
	mu        sync.Mutex
	waiting   int
	attempted []string
	played    []string
}

// Waiting counts plays that reached a gate
func (r *recorder) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

func (r *recorder) Played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.played...)
}

func (r *recorder) Attempted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.attempted...)
}

type fakeTransport struct {
	rec     *recorder
	gate    chan struct{}
	closeOn string

	mu           sync.Mutex
	channelID    string
	moves        []string
	disconnected int
}

func (t *fakeTransport) ChannelID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channelID
}

func (t *fakeTransport) Play(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := string(data)

	if t.gate != nil {
		t.rec.mu.Lock()
		t.rec.waiting++
		t.rec.mu.Unlock()
		select {
		case <-t.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.attempted = append(t.rec.attempted, text)
	if t.closeOn != "" && text == t.closeOn {
		return apperrors.NewTransportClosed("test", errors.New("udp connection lost"))
	}
	t.rec.played = append(t.rec.played, text)
	return nil
}

func (t *fakeTransport) Move(ctx context.Context, channelID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.moves = append(t.moves, channelID)
	t.channelID = channelID
	return nil
}

func (t *fakeTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnected++
	return nil
}

func (t *fakeTransport) Disconnects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnected
}

type fakeConnector struct {
	rec *recorder

	// Applied to the first transport only
	firstGate    chan struct{}
	firstCloseOn string

	mu         sync.Mutex
	calls      int
	failAll    bool
	block      chan struct{}
	transports []*fakeTransport
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{rec: &recorder{}}
}

func (c *fakeConnector) Connect(ctx context.Context, guildID, channelID string) (Transport, error) {
	c.mu.Lock()
	c.calls++
	block := c.block
	fail := c.failAll
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("voice server unreachable")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTransport{rec: c.rec, channelID: channelID}
	if len(c.transports) == 0 {
		t.gate = c.firstGate
		t.closeOn = c.firstCloseOn
	}
	c.transports = append(c.transports, t)
	return t, nil
}

func (c *fakeConnector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeConnector) Transport(i int) *fakeTransport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transports[i]
}

func (c *fakeConnector) setFailAll(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAll = v
}

func (c *fakeConnector) setBlock(ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block = ch
}

type fakePrefs map[string]string

func (p fakePrefs) Resolve(ctx context.Context, userID string) string {
	if v, ok := p[userID]; ok {
		return v
	}
	return "alloy"
}

func newTestRegistry(t *testing.T, engine *fakeEngine, connector *fakeConnector, prefs PreferenceResolver) (*Registry, *tts.Synthesizer) {
	t.Helper()
	synth := tts.NewSynthesizer(engine, tts.Options{
		TempDir:      t.TempDir(),
		RetryDelay:   time.Millisecond,
		DefaultVoice: "alloy",
	}, nil)
	reg := NewRegistry(connector, synth, prefs, Options{
		ReconnectAttempts: 3,
		ReconnectDelay:    time.Millisecond,
	}, nil)
	t.Cleanup(func() {
		_ = reg.Shutdown(context.Background())
		synth.Shutdown()
	})
	return reg, synth
}

func say(text string) state.AnnouncementItem {
	return state.AnnouncementItem{Text: text, OriginUserID: "9"}
}
