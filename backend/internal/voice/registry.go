package voice

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"yomiage-bot/backend/internal/state"
	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Default reconnection protocol settings
const (
	DefaultReconnectAttempts = 3
	DefaultReconnectDelay    = 2 * time.Second
)

// Options configures a Registry
type Options struct {
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Registry owns every guild's Session
type Registry struct {
	connector Connector
	synth     Synthesizer
	prefs     PreferenceResolver
	opts      Options
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	joinMu    sync.Mutex
	joinLocks map[string]*guildMutex

	workers sync.WaitGroup
}

// NewRegistry creates an empty registry. prefs may be nil, in which case the
// synthesizer's default voice is used for every item without an override.
func NewRegistry(connector Connector, synth Synthesizer, prefs PreferenceResolver, opts Options, log *zap.Logger) *Registry {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = DefaultReconnectAttempts
	}
	if opts.ReconnectDelay < 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	return &Registry{
		connector: connector,
		synth:     synth,
		prefs:     prefs,
		opts:      opts,
		logger:    logger.OrNop(log),
		sessions:  make(map[string]*Session),
		joinLocks: make(map[string]*guildMutex),
	}
}

type guildMutex struct {
	sync.Mutex
	refs int
}

// lockGuild serializes Join/Leave for one guild and returns the unlock func.
// The entry is dropped once no caller holds or waits on it.
func (r *Registry) lockGuild(guildID string) func() {
	r.joinMu.Lock()
	lock, ok := r.joinLocks[guildID]
	if !ok {
		lock = &guildMutex{}
		r.joinLocks[guildID] = lock
	}
	lock.refs++
	r.joinMu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		r.joinMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(r.joinLocks, guildID)
		}
		r.joinMu.Unlock()
	}
}

// Session returns the guild's session, or nil
func (r *Registry) Session(guildID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[guildID]
}

// Sessions returns a snapshot of every session ordered by guild
func (r *Registry) Sessions() []state.SessionSnapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]state.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out
}

// Join connects to voiceChannelID, or moves the existing session there, and gates
// announcements to sourceChannelID.
func (r *Registry) Join(ctx context.Context, guildID, voiceChannelID, sourceChannelID string) error {
	defer r.lockGuild(guildID)()

	if s := r.Session(guildID); s != nil {
		return r.rejoin(ctx, s, voiceChannelID, sourceChannelID)
	}

	transport, err := r.connector.Connect(ctx, guildID, voiceChannelID)
	if err != nil {
		return err
	}

	s := newSession(guildID, voiceChannelID, sourceChannelID, transport)
	r.mu.Lock()
	r.sessions[guildID] = s
	r.mu.Unlock()

	r.logger.Info("Voice session created",
		zap.String("guild_id", guildID),
		zap.String("voice_channel_id", voiceChannelID),
		zap.String("source_channel_id", sourceChannelID))
	return nil
}

func (r *Registry) rejoin(ctx context.Context, s *Session, voiceChannelID, sourceChannelID string) error {
	s.mu.Lock()
	transport := s.transport
	reconnecting := s.reconnecting
	s.mu.Unlock()

	switch {
	case reconnecting:
		// The running reconnection reads voiceChannelID on its next attempt
	case transport == nil:
		fresh, err := r.connector.Connect(ctx, s.guildID, voiceChannelID)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.transport = fresh
		s.mu.Unlock()
	case transport.ChannelID() != voiceChannelID:
		if err := transport.Move(ctx, voiceChannelID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.voiceChannelID = voiceChannelID
	s.sourceChannelID = sourceChannelID
	r.startDrainLocked(s)
	s.mu.Unlock()

	r.logger.Info("Voice session moved",
		zap.String("guild_id", s.guildID),
		zap.String("voice_channel_id", voiceChannelID),
		zap.String("source_channel_id", sourceChannelID))
	return nil
}

// Leave disconnects and removes the guild's session, discarding its queue.
// It is a no-op when there is no session.
func (r *Registry) Leave(guildID string) error {
	defer r.lockGuild(guildID)()

	s := r.Session(guildID)
	if s == nil {
		return nil
	}

	dropped, transport := r.destroy(s)
	r.logger.Info("Voice session closed", zap.String("guild_id", guildID), zap.Int("dropped_items", dropped))
	if transport != nil {
		return transport.Disconnect()
	}
	return nil
}

// destroy removes s from the registry and stops its queue.
// It returns how many queued items were discarded and the transport for the caller to disconnect.
func (r *Registry) destroy(s *Session) (int, Transport) {
	r.mu.Lock()
	if r.sessions[s.guildID] == s {
		delete(r.sessions, s.guildID)
	}
	r.mu.Unlock()

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return 0, nil
	}
	s.destroyed = true
	dropped := len(s.queue)
	s.queue = nil
	transport := s.transport
	s.transport = nil
	s.mu.Unlock()

	s.cancel()
	return dropped, transport
}

// Enqueue appends item to the guild's queue and starts playback if the session is idle.
// It returns apperrors.ErrSessionNotFound when the guild has no session.
func (r *Registry) Enqueue(guildID string, item state.AnnouncementItem) error {
	s := r.Session(guildID)
	if s == nil {
		return apperrors.NewSessionNotFound(guildID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return apperrors.NewSessionNotFound(guildID)
	}
	s.queue = append(s.queue, item)
	r.startDrainLocked(s)
	return nil
}

// startDrainLocked hands the queue head to a new drain goroutine when nothing is playing.
// s.mu must be held.
func (r *Registry) startDrainLocked(s *Session) {
	if s.draining || s.reconnecting || s.destroyed {
		return
	}
	item, ok := s.popLocked()
	if !ok {
		return
	}
	s.draining = true
	r.workers.Add(1)
	go r.drain(s, item)
}

type playResult int

const (
	playDone playResult = iota
	// The transport was down before synthesis; the item goes back to the queue head
	playDeferred
	playClosed
)

// drain plays item and then every queued item until the queue is empty,
// the session is destroyed, or the transport drops.
func (r *Registry) drain(s *Session, item state.AnnouncementItem) {
	defer r.workers.Done()

	for {
		used, res := r.play(s, item)

		s.mu.Lock()
		if s.destroyed {
			s.draining = false
			s.mu.Unlock()
			return
		}
		if res == playDeferred {
			s.pushFrontLocked(item)
		}
		// A transport swapped in while we played means someone already reconnected
		stale := res == playClosed && s.transport == used
		if stale || s.transport == nil || s.reconnecting {
			// An in-flight item is dropped; queued items wait for the new transport
			s.draining = false
			start := !s.reconnecting
			s.reconnecting = true
			s.mu.Unlock()
			if start {
				_ = r.reconnect(s.ctx, s)
			}
			return
		}
		next, ok := s.popLocked()
		if !ok {
			s.draining = false
			s.mu.Unlock()
			return
		}
		item = next
		s.mu.Unlock()
	}
}

// play synthesizes and plays one item. It returns the transport it used and
// how playback ended.
func (r *Registry) play(s *Session, item state.AnnouncementItem) (Transport, playResult) {
	log := r.logger.With(zap.String("guild_id", s.guildID))

	s.mu.Lock()
	down := s.transport == nil || s.reconnecting
	s.mu.Unlock()
	if down {
		return nil, playDeferred
	}

	voice := item.VoiceOverride
	if voice == "" && r.prefs != nil {
		voice = r.prefs.Resolve(s.ctx, item.OriginUserID)
	}

	handle, err := r.synth.Synthesize(s.ctx, s.guildID, item.Text, voice)
	if err != nil {
		if !errors.Is(err, apperrors.ErrEmptyInput) && s.ctx.Err() == nil {
			log.Warn("Dropping announcement after synthesis failure", zap.String("voice", voice), zap.Error(err))
		}
		return nil, playDone
	}
	defer func() {
		if err := handle.Release(); err != nil {
			log.Warn("Failed to remove temp audio file", zap.String("path", handle.Path()), zap.Error(err))
		}
	}()

	s.mu.Lock()
	transport := s.transport
	s.mu.Unlock()
	if transport == nil {
		return nil, playClosed
	}

	err = transport.Play(s.ctx, handle.Path())
	switch {
	case err == nil:
		return transport, playDone
	case errors.Is(err, apperrors.ErrTransportClosed):
		log.Warn("Voice transport closed during playback", zap.Error(err))
		return transport, playClosed
	case s.ctx.Err() != nil:
		return transport, playDone
	default:
		log.Warn("Playback failed", zap.Error(err))
		return transport, playDone
	}
}

// Reconnect runs the reconnection protocol for the guild.
// A second caller while one is running gets apperrors.ErrReconnectInProgress.
func (r *Registry) Reconnect(ctx context.Context, guildID string) error {
	s := r.Session(guildID)
	if s == nil {
		return apperrors.NewSessionNotFound(guildID)
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return apperrors.NewSessionNotFound(guildID)
	}
	if s.reconnecting {
		s.mu.Unlock()
		return apperrors.ErrReconnectInProgress
	}
	s.reconnecting = true
	s.mu.Unlock()

	return r.reconnect(ctx, s)
}

// reconnect replaces the session's transport. The caller must have set s.reconnecting.
func (r *Registry) reconnect(ctx context.Context, s *Session) error {
	log := r.logger.With(zap.String("guild_id", s.guildID))

	var lastErr error
	for attempt := 1; attempt <= r.opts.ReconnectAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return r.abandonReconnect(s, ctx.Err())
			case <-s.ctx.Done():
				return apperrors.NewSessionNotFound(s.guildID)
			case <-time.After(r.opts.ReconnectDelay):
			}
		}

		s.mu.Lock()
		if s.destroyed {
			s.mu.Unlock()
			return apperrors.NewSessionNotFound(s.guildID)
		}
		stale := s.transport
		s.transport = nil
		channelID := s.voiceChannelID
		s.mu.Unlock()

		if stale != nil {
			if err := stale.Disconnect(); err != nil {
				log.Debug("Stale transport disconnect failed", zap.Error(err))
			}
		}

		log.Info("Reconnecting voice transport", zap.Int("attempt", attempt), zap.String("voice_channel_id", channelID))
		transport, err := r.connector.Connect(ctx, s.guildID, channelID)
		if err != nil {
			lastErr = err
			log.Warn("Reconnection attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			if ctx.Err() != nil {
				return r.abandonReconnect(s, ctx.Err())
			}
			continue
		}

		s.mu.Lock()
		if s.destroyed {
			s.mu.Unlock()
			_ = transport.Disconnect()
			return apperrors.NewSessionNotFound(s.guildID)
		}
		s.transport = transport
		s.reconnecting = false
		r.startDrainLocked(s)
		s.mu.Unlock()

		log.Info("Voice transport reconnected", zap.Int("attempt", attempt))
		return nil
	}

	exhausted := apperrors.NewReconnectionExhausted(s.guildID, r.opts.ReconnectAttempts, lastErr)
	dropped, transport := r.destroy(s)
	if transport != nil {
		_ = transport.Disconnect()
	}
	log.Error("Voice session destroyed", zap.Int("dropped_items", dropped), zap.Error(exhausted))
	return exhausted
}

// abandonReconnect clears the guard after the caller gave up. The session keeps
// no transport, so the next announcement is held back and starts a new reconnection.
func (r *Registry) abandonReconnect(s *Session, cause error) error {
	s.mu.Lock()
	s.reconnecting = false
	s.mu.Unlock()
	return apperrors.NewContextCancelled("voice reconnect", cause)
}

// Shutdown leaves every guild and waits for playback goroutines to stop
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	guilds := make([]string, 0, len(r.sessions))
	for guildID := range r.sessions {
		guilds = append(guilds, guildID)
	}
	r.mu.RUnlock()

	g := new(errgroup.Group)
	for _, guildID := range guilds {
		guildID := guildID
		g.Go(func() error {
			return r.Leave(guildID)
		})
	}
	leaveErr := g.Wait()

	done := make(chan struct{})
	go func() {
		r.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return apperrors.NewContextCancelled("voice shutdown", ctx.Err())
	}

	r.logger.Info("Voice sessions shut down", zap.Int("sessions", len(guilds)))
	return leaveErr
}
