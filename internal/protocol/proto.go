package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/matheus3301/chatsync/internal/chat"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoCodec carries the same envelope as a protobuf Struct. It is used on
// the NATS bridge, where payloads travel as binary.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return "proto" }

func (ProtoCodec) Encode(kind chat.Kind, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", kind, err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("protocol: %s payload is not an object: %w", kind, err)
	}

	msg, err := structpb.NewStruct(map[string]any{
		"type": string(kind),
		"data": data,
	})
	if err != nil {
		return nil, fmt.Errorf("protocol: build struct: %w", err)
	}
	out, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return out, nil
}

func (ProtoCodec) Decode(data []byte) (chat.Event, error) {
	msg := &structpb.Struct{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return chat.Event{}, fmt.Errorf("failed to decode frame: %w", err)
	}

	var f Frame
	if v, ok := msg.Fields["type"]; ok {
		f.Type = v.GetStringValue()
	}
	if v, ok := msg.Fields["data"]; ok && v.GetStructValue() != nil {
		raw, err := v.GetStructValue().MarshalJSON()
		if err != nil {
			return chat.Event{}, fmt.Errorf("protocol: convert data: %w", err)
		}
		f.Data = raw
	}
	return decodeFrame(f)
}
