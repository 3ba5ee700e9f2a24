// Package protocol encodes and decodes the frames exchanged with the chat
// server. Every frame is an envelope with a type discriminator and a data
// object whose shape depends on the type:
//
//	{"type": "new-message", "data": {"chatId": "...", "message": {...}}}
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/chatsync/internal/chat"
)

// ErrUnknownKind is returned for frames whose type this client does not
// speak. Callers ignore such frames.
var ErrUnknownKind = errors.New("protocol: unknown event kind")

// Frame is the wire envelope.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Codec converts between outbound signals / inbound events and wire bytes.
type Codec interface {
	Name() string
	Encode(kind chat.Kind, payload any) ([]byte, error)
	Decode(data []byte) (chat.Event, error)
}

// inbound new-message data; the server sends the persisted message.
type newMessageData struct {
	ChatID  string       `json:"chatId"`
	Message chat.Message `json:"message"`
	Members []string     `json:"members,omitempty"`
}

type alertData struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// NewCodec returns the codec registered under name: "json" (default) or "proto".
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "proto":
		return ProtoCodec{}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown codec %q", name)
	}
}

// JSONCodec is the text frame codec used over websockets.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(kind chat.Kind, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", kind, err)
	}
	return json.Marshal(Frame{Type: string(kind), Data: data})
}

func (JSONCodec) Decode(data []byte) (chat.Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return chat.Event{}, fmt.Errorf("protocol: unmarshal frame: %w", err)
	}
	return decodeFrame(f)
}

func decodeFrame(f Frame) (chat.Event, error) {
	if f.Type == "" {
		return chat.Event{}, errors.New("protocol: missing frame type")
	}
	kind := chat.Kind(f.Type)
	if !kind.Known() {
		return chat.Event{Kind: kind}, fmt.Errorf("%w: %q", ErrUnknownKind, f.Type)
	}

	evt := chat.Event{Kind: kind}
	switch kind {
	case chat.KindNewMessage:
		var d newMessageData
		if err := unmarshalData(f, &d); err != nil {
			return chat.Event{}, err
		}
		if d.Message.ChatID == "" {
			d.Message.ChatID = d.ChatID
		}
		evt.ChatID = d.ChatID
		evt.Message = &d.Message
		evt.Members = d.Members
	case chat.KindAlert:
		var d alertData
		if err := unmarshalData(f, &d); err != nil {
			return chat.Event{}, err
		}
		evt.ChatID = d.ChatID
		evt.Alert = d.Message
	case chat.KindTypingStart, chat.KindTypingStop:
		var d chat.Typing
		if err := unmarshalData(f, &d); err != nil {
			return chat.Event{}, err
		}
		evt.ChatID = d.ChatID
		evt.Members = d.Members
	case chat.KindJoined, chat.KindLeft:
		var d chat.Membership
		if err := unmarshalData(f, &d); err != nil {
			return chat.Event{}, err
		}
		evt.Members = d.Members
	}
	return evt, nil
}

func unmarshalData(f Frame, v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("protocol: %s frame without data", f.Type)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("protocol: unmarshal %s data: %w", f.Type, err)
	}
	return nil
}
