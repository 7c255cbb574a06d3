package voice

import (
	"context"
	"sync"
	"time"

	"yomiage-bot/backend/internal/state"
)

// Session is the voice state of one guild.
// mu guards every field below it; playback itself runs outside the lock.
type Session struct {
	guildID   string
	createdAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	mu              sync.Mutex
	sourceChannelID string
	voiceChannelID  string
	transport       Transport
	queue           []state.AnnouncementItem
	draining        bool // a drain goroutine owns playback
	reconnecting    bool
	destroyed       bool
}

func newSession(guildID, voiceChannelID, sourceChannelID string, transport Transport) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		guildID:         guildID,
		createdAt:       time.Now(),
		ctx:             ctx,
		cancel:          cancel,
		sourceChannelID: sourceChannelID,
		voiceChannelID:  voiceChannelID,
		transport:       transport,
	}
}

// GuildID returns the owning guild
func (s *Session) GuildID() string {
	return s.guildID
}

// SourceChannelID returns the gated text channel
func (s *Session) SourceChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceChannelID
}

// VoiceChannelID returns the voice channel the session is bound to
func (s *Session) VoiceChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceChannelID
}

// State returns the current playback state
func (s *Session) State() state.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// QueueLength returns the number of items waiting behind the one playing
func (s *Session) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Snapshot returns a copy of the session's observable state
func (s *Session) Snapshot() state.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.SessionSnapshot{
		GuildID:         s.guildID,
		SourceChannelID: s.sourceChannelID,
		VoiceChannelID:  s.voiceChannelID,
		State:           s.stateLocked(),
		QueueLength:     len(s.queue),
		CreatedAt:       s.createdAt,
	}
}

func (s *Session) stateLocked() state.SessionState {
	switch {
	case s.destroyed:
		return state.SessionDestroyed
	case s.reconnecting:
		return state.SessionReconnecting
	case s.draining:
		return state.SessionPlaying
	default:
		return state.SessionIdle
	}
}

// popLocked removes and returns the head of the queue
func (s *Session) popLocked() (state.AnnouncementItem, bool) {
	if len(s.queue) == 0 {
		return state.AnnouncementItem{}, false
	}
	item := s.queue[0]
	s.queue[0] = state.AnnouncementItem{}
	s.queue = s.queue[1:]
	return item, true
}

// pushFrontLocked puts item back at the head of the queue
func (s *Session) pushFrontLocked(item state.AnnouncementItem) {
	s.queue = append(s.queue, state.AnnouncementItem{})
	copy(s.queue[1:], s.queue)
	s.queue[0] = item
}
