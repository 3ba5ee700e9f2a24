package chat

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrSessionUnavailable is returned when chat metadata could not be
	// fetched. Consumers navigate away; the core does not retry.
	ErrSessionUnavailable = errors.New("chat session unavailable")

	// ErrStaleResult marks a fetch that resolved after its session closed or
	// switched chats. It is never surfaced to consumers.
	ErrStaleResult = errors.New("stale result")

	// ErrNoActiveChat is returned by actions that need an open chat.
	ErrNoActiveChat = errors.New("no active chat")

	ErrMessageTooLong = errors.New("message too long")
	ErrInvalidText    = errors.New("message contains invalid UTF-8")
)

// InvalidChatError is returned when a session is opened without a chat id.
type InvalidChatError struct {
	ChatID string
}

func (e *InvalidChatError) Error() string {
	return fmt.Sprintf("invalid chat id %q", e.ChatID)
}

const (
	MaxMessageBytes = 4096
	MaxTextChars    = 2000
)

// ValidateText checks outgoing message content limits. Emptiness is not an
// error here: callers treat blank input as a no-op.
func ValidateText(text string) error {
	if !utf8.ValidString(text) {
		return ErrInvalidText
	}
	if len(text) > MaxMessageBytes {
		return fmt.Errorf("%w: exceeds %d bytes", ErrMessageTooLong, MaxMessageBytes)
	}
	if n := utf8.RuneCountInString(text); n > MaxTextChars {
		return fmt.Errorf("%w: %d characters, limit %d", ErrMessageTooLong, n, MaxTextChars)
	}
	return nil
}
