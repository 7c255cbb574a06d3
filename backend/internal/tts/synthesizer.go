package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxAttempts is the first call plus one retry
const maxAttempts = 2

// Options configures a Synthesizer
type Options struct {
	TempDir      string
	RetryDelay   time.Duration
	RatePerSec   float64 // Engine calls per second across all guilds; <= 0 disables limiting
	DefaultVoice string
}

// Synthesizer turns text into temporary audio files and tracks every file it hands out
type Synthesizer struct {
	engine  Engine
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger

	mu          sync.Mutex
	outstanding map[string]*Handle
	closed      bool
}

// Handle owns one temporary audio file. Release it after playback.
type Handle struct {
	path    string
	guildID string
	voice   string
	owner   *Synthesizer
	once    sync.Once
	err     error
}

// NewSynthesizer creates a synthesizer over engine
func NewSynthesizer(engine Engine, opts Options, log *zap.Logger) *Synthesizer {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSec > 0 {
		burst := int(opts.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}

	return &Synthesizer{
		engine:      engine,
		opts:        opts,
		limiter:     limiter,
		logger:      logger.OrNop(log),
		outstanding: make(map[string]*Handle),
	}
}

// Voices lists the voices the engine accepts
func (s *Synthesizer) Voices() []string {
	return s.engine.Voices()
}

// HasVoice reports whether voice is offered by the engine
func (s *Synthesizer) HasVoice(voice string) bool {
	return containsVoice(s.engine.Voices(), voice)
}

// Synthesize speaks text with voice and writes the audio to a file unique to (guild, request).
// It returns apperrors.ErrEmptyInput when text has nothing printable, and a
// *apperrors.SynthesisError when the engine failed after the retry.
func (s *Synthesizer) Synthesize(ctx context.Context, guildID, text, voice string) (*Handle, error) {
	text = strings.TrimSpace(text)
	if !hasPrintable(text) {
		return nil, apperrors.ErrEmptyInput
	}
	if voice == "" {
		voice = s.opts.DefaultVoice
	}

	var audio []byte
	var err error
	attempts := 1
	for ; ; attempts++ {
		audio, err = s.attempt(ctx, text, voice)
		if err == nil || attempts >= maxAttempts || !apperrors.IsRetryable(err) {
			break
		}

		s.logger.Debug("Retrying synthesis",
			zap.String("guild_id", guildID),
			zap.Int("attempt", attempts+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(s.opts.RetryDelay):
			continue
		}
		break
	}
	if err != nil {
		return nil, apperrors.NewSynthesisError(voice, attempts, err)
	}

	name := fmt.Sprintf("tts_%s_%s.%s", guildID, uuid.NewString(), s.engine.Format())
	path := filepath.Join(s.opts.TempDir, name)
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return nil, apperrors.NewSynthesisError(voice, attempts, fmt.Errorf("write temp file: %w", err))
	}

	h := &Handle{path: path, guildID: guildID, voice: voice, owner: s}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = os.Remove(path)
		return nil, apperrors.NewSynthesisError(voice, attempts, fmt.Errorf("synthesizer shut down"))
	}
	s.outstanding[path] = h
	s.mu.Unlock()

	s.logger.Debug("Synthesized announcement",
		zap.String("guild_id", guildID),
		zap.String("voice", voice),
		zap.Int("bytes", len(audio)),
		zap.String("path", path))
	return h, nil
}

func (s *Synthesizer) attempt(ctx context.Context, text, voice string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Permanent(err)
	}
	audio, err := s.engine.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("engine returned no audio")
	}
	return audio, nil
}

// Outstanding returns the number of handles not yet released
func (s *Synthesizer) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}

// Shutdown releases every outstanding handle. Later Synthesize calls fail.
func (s *Synthesizer) Shutdown() {
	s.mu.Lock()
	s.closed = true
	handles := make([]*Handle, 0, len(s.outstanding))
	for _, h := range s.outstanding {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		if err := h.Release(); err != nil {
			s.logger.Warn("Failed to remove temp audio file", zap.String("path", h.path), zap.Error(err))
		}
	}
	if len(handles) > 0 {
		s.logger.Info("Released outstanding audio files", zap.Int("count", len(handles)))
	}
}

func (s *Synthesizer) forget(path string) {
	s.mu.Lock()
	delete(s.outstanding, path)
	s.mu.Unlock()
}

// Path is the audio file location
func (h *Handle) Path() string {
	return h.path
}

// GuildID is the guild the audio was produced for
func (h *Handle) GuildID() string {
	return h.guildID
}

// Voice is the voice that was used
func (h *Handle) Voice() string {
	return h.voice
}

// Release deletes the file. Safe to call more than once.
func (h *Handle) Release() error {
	h.once.Do(func() {
		if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
			h.err = err
		}
		h.owner.forget(h.path)
	})
	return h.err
}

func hasPrintable(text string) bool {
	for _, r := range text {
		if unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
