package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeDiscord represents Discord gateway/REST errors
	ErrorTypeDiscord ErrorType = "discord"
	// ErrorTypeVoice represents voice session and transport errors
	ErrorTypeVoice ErrorType = "voice"
	// ErrorTypeSynthesis represents text-to-speech errors
	ErrorTypeSynthesis ErrorType = "synthesis"
	// ErrorTypeStorage represents durable storage errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// Messages shared between sentinels and their typed constructors so that
// errors.Is matches a typed error against its sentinel.
const (
	msgEmptyInput           = "nothing to synthesize"
	msgSynthesisFailed      = "speech synthesis failed"
	msgTransportClosed      = "voice transport closed"
	msgReconnectExhausted   = "voice reconnection exhausted"
	msgReconnectInProgress  = "voice reconnection already in progress"
	msgSessionNotFound      = "no voice session"
	msgUnknownVoice         = "unknown voice"
	msgEntryNotFound        = "entry not found"
	msgStorageQueryFailed   = "storage query failed"
	msgConfigValidation     = "config validation failed"
	msgConfigMissing        = "missing required config"
	msgDiscordSessionFailed = "discord request failed"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a BaseError of the same type and message.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// Kind returns the error category
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Synthesis Errors

// ErrEmptyInput is returned when sanitized text has nothing printable to speak
var ErrEmptyInput = NewBaseError(ErrorTypeSynthesis, msgEmptyInput, nil)

// ErrSynthesisFailed matches any SynthesisError
var ErrSynthesisFailed = NewBaseError(ErrorTypeSynthesis, msgSynthesisFailed, nil)

// SynthesisError is returned when the TTS engine failed after all attempts
type SynthesisError struct {
	*BaseError
	Voice    string
	Attempts int
}

func NewSynthesisError(voice string, attempts int, err error) *SynthesisError {
	return &SynthesisError{
		BaseError: NewBaseError(ErrorTypeSynthesis, msgSynthesisFailed, err),
		Voice:     voice,
		Attempts:  attempts,
	}
}

// PermanentError marks an engine failure that a retry cannot fix (bad request, auth)
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so IsRetryable reports false for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// ErrUnknownVoice matches any UnknownVoiceError
var ErrUnknownVoice = NewBaseError(ErrorTypeSynthesis, msgUnknownVoice, nil)

// UnknownVoiceError is returned when a voice identifier is not offered by the engine
type UnknownVoiceError struct {
	*BaseError
	Voice string
}

func NewUnknownVoice(voice string) *UnknownVoiceError {
	return &UnknownVoiceError{
		BaseError: NewBaseError(ErrorTypeSynthesis, msgUnknownVoice, fmt.Errorf("voice %q", voice)),
		Voice:     voice,
	}
}

// Voice Errors

// ErrTransportClosed matches any TransportClosedError
var ErrTransportClosed = NewBaseError(ErrorTypeVoice, msgTransportClosed, nil)

// TransportClosedError is returned when the voice connection dropped during playback
type TransportClosedError struct {
	*BaseError
	GuildID string
}

func NewTransportClosed(guildID string, err error) *TransportClosedError {
	return &TransportClosedError{
		BaseError: NewBaseError(ErrorTypeVoice, msgTransportClosed, err),
		GuildID:   guildID,
	}
}

// ErrReconnectionExhausted matches any ReconnectionExhaustedError
var ErrReconnectionExhausted = NewBaseError(ErrorTypeVoice, msgReconnectExhausted, nil)

// ReconnectionExhaustedError is returned when every reconnection attempt failed
type ReconnectionExhaustedError struct {
	*BaseError
	GuildID  string
	Attempts int
}

func NewReconnectionExhausted(guildID string, attempts int, err error) *ReconnectionExhaustedError {
	return &ReconnectionExhaustedError{
		BaseError: NewBaseError(ErrorTypeVoice, msgReconnectExhausted, err),
		GuildID:   guildID,
		Attempts:  attempts,
	}
}

// ErrReconnectInProgress is returned to a second caller while a reconnection runs
var ErrReconnectInProgress = NewBaseError(ErrorTypeVoice, msgReconnectInProgress, nil)

// ErrSessionNotFound matches any SessionNotFoundError
var ErrSessionNotFound = NewBaseError(ErrorTypeVoice, msgSessionNotFound, nil)

// SessionNotFoundError is returned when a guild has no active voice session
type SessionNotFoundError struct {
	*BaseError
	GuildID string
}

func NewSessionNotFound(guildID string) *SessionNotFoundError {
	return &SessionNotFoundError{
		BaseError: NewBaseError(ErrorTypeVoice, msgSessionNotFound, fmt.Errorf("guild %s", guildID)),
		GuildID:   guildID,
	}
}

// Storage Errors

// ErrEntryNotFound is returned when a keyed entry does not exist
var ErrEntryNotFound = NewBaseError(ErrorTypeStorage, msgEntryNotFound, nil)

// StorageQueryFailedError is returned when a backend query fails
type StorageQueryFailedError struct {
	*BaseError
	Backend   string
	Operation string
}

func NewStorageQueryFailed(backend, operation string, err error) *StorageQueryFailedError {
	return &StorageQueryFailedError{
		BaseError: NewBaseError(ErrorTypeStorage, msgStorageQueryFailed, fmt.Errorf("%s %s: %w", backend, operation, err)),
		Backend:   backend,
		Operation: operation,
	}
}

// Discord Errors

// DiscordRequestFailedError is returned when a gateway or REST call fails
type DiscordRequestFailedError struct {
	*BaseError
	Operation string
}

func NewDiscordRequestFailed(operation string, err error) *DiscordRequestFailedError {
	return &DiscordRequestFailedError{
		BaseError: NewBaseError(ErrorTypeDiscord, msgDiscordSessionFailed, fmt.Errorf("%s: %w", operation, err)),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, msgConfigValidation, fmt.Errorf("%s - %s", field, reason)),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, msgConfigMissing, fmt.Errorf("%s", field)),
		Field:     field,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Helper functions

// IsErrorType checks if an error (or anything it wraps) is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		// Typed errors embed *BaseError and inherit Kind
		if k, ok := err.(interface{ Kind() ErrorType }); ok && k.Kind() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsRetryable checks if an error is worth a second attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Context errors are not retryable
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	var permanent *PermanentError
	if stderrors.As(err, &permanent) {
		return false
	}
	if stderrors.Is(err, ErrEmptyInput) {
		return false
	}
	return true
}
