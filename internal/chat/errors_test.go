package chat

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"simple", "hello", nil},
		{"max chars", strings.Repeat("a", MaxTextChars), nil},
		{"too many chars", strings.Repeat("a", MaxTextChars+1), ErrMessageTooLong},
		{"too many bytes", strings.Repeat("é", MaxMessageBytes/2+1), ErrMessageTooLong},
		{"invalid utf8", string([]byte{0xff, 0xfe}), ErrInvalidText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateText() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInvalidChatErrorAs(t *testing.T) {
	var err error = &InvalidChatError{}
	var target *InvalidChatError
	if !errors.As(err, &target) {
		t.Fatal("errors.As failed for *InvalidChatError")
	}
}

func TestNewSystemAlert(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := NewSystemAlert("c1", "bob joined", now)
	b := NewSystemAlert("c1", "bob joined", now)

	if !a.IsSystemAlert() {
		t.Error("IsSystemAlert() = false, want true")
	}
	if a.Sender.ID != SystemSenderID {
		t.Errorf("sender = %q, want %q", a.Sender.ID, SystemSenderID)
	}
	if a.ChatID != "c1" || a.Content != "bob joined" || !a.CreatedAt.Equal(now) {
		t.Errorf("unexpected alert %+v", a)
	}
	if a.ID == b.ID {
		t.Error("alert ids must be unique")
	}
}

func TestKindKnown(t *testing.T) {
	if !KindAlert.Known() {
		t.Error("alert should be known")
	}
	if Kind("reaction").Known() {
		t.Error("reaction should be unknown")
	}
}
