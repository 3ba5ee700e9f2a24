package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOutboundFrames(t *testing.T) {
	tests := []struct {
		name    string
		kind    chat.Kind
		payload any
		want    string
	}{
		{
			name:    "joined",
			kind:    chat.KindJoined,
			payload: chat.Membership{UserID: "u1", Members: []string{"u1", "u2"}},
			want:    `{"type":"joined","data":{"userId":"u1","members":["u1","u2"]}}`,
		},
		{
			name:    "new message",
			kind:    chat.KindNewMessage,
			payload: chat.Outgoing{ChatID: "c1", Text: "hello", Members: []string{"u1"}},
			want:    `{"type":"new-message","data":{"chatId":"c1","message":"hello","members":["u1"]}}`,
		},
		{
			name:    "typing stop",
			kind:    chat.KindTypingStop,
			payload: chat.Typing{ChatID: "c1", Members: []string{"u2"}},
			want:    `{"type":"typing-stop","data":{"chatId":"c1","members":["u2"]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSONCodec{}.Encode(tt.kind, tt.payload)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestDecodeNewMessage(t *testing.T) {
	raw := `{"type":"new-message","data":{"chatId":"c1","message":{
		"_id":"m1","sender":{"_id":"u2","name":"Bob"},"content":"hey",
		"createdAt":"2024-05-01T12:00:00Z"}}}`

	evt, err := JSONCodec{}.Decode([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, chat.KindNewMessage, evt.Kind)
	assert.Equal(t, "c1", evt.ChatID)
	require.NotNil(t, evt.Message)
	assert.Equal(t, "m1", evt.Message.ID)
	assert.Equal(t, "c1", evt.Message.ChatID, "chat id falls back to the envelope")
	assert.Equal(t, "Bob", evt.Message.Sender.Name)
	assert.True(t, evt.Message.CreatedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestDecodeAlertAndTyping(t *testing.T) {
	evt, err := JSONCodec{}.Decode([]byte(`{"type":"alert","data":{"chatId":"c1","message":"Bob left"}}`))
	require.NoError(t, err)
	assert.Equal(t, chat.Event{Kind: chat.KindAlert, ChatID: "c1", Alert: "Bob left"}, evt)

	evt, err = JSONCodec{}.Decode([]byte(`{"type":"typing-start","data":{"chatId":"c1","members":["u1"]}}`))
	require.NoError(t, err)
	assert.Equal(t, chat.Event{Kind: chat.KindTypingStart, ChatID: "c1", Members: []string{"u1"}}, evt)
}

func TestDecodeUnknownKind(t *testing.T) {
	evt, err := JSONCodec{}.Decode([]byte(`{"type":"reaction","data":{}}`))
	require.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, chat.Kind("reaction"), evt.Kind)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"data":{}}`,
		`{"type":"alert"}`,
		`{"type":"alert","data":"oops"}`,
	} {
		_, err := JSONCodec{}.Decode([]byte(raw))
		assert.Error(t, err, raw)
		assert.NotErrorIs(t, err, ErrUnknownKind, raw)
	}
}

func TestProtoCodecCarriesSameFrames(t *testing.T) {
	c := ProtoCodec{}
	msg := chat.Message{ID: "m1", ChatID: "c1", Sender: chat.Sender{ID: "u2", Name: "Bob"}, Content: "hey",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	// The server side of the bridge publishes the persisted message.
	data, err := c.Encode(chat.KindNewMessage, newMessageData{ChatID: "c1", Message: msg})
	require.NoError(t, err)

	evt, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, chat.KindNewMessage, evt.Kind)
	require.NotNil(t, evt.Message)
	assert.Equal(t, msg.ID, evt.Message.ID)
	assert.Equal(t, msg.Content, evt.Message.Content)
	assert.True(t, msg.CreatedAt.Equal(evt.Message.CreatedAt))

	_, err = c.Decode([]byte{0xff, 0x01})
	assert.Error(t, err)
}

func TestProtoCodecRejectsNonObjectPayload(t *testing.T) {
	_, err := ProtoCodec{}.Encode(chat.KindAlert, "just a string")
	assert.Error(t, err)
}

func TestNewCodec(t *testing.T) {
	c, err := NewCodec("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = NewCodec("proto")
	require.NoError(t, err)
	assert.Equal(t, "proto", c.Name())

	_, err = NewCodec("xml")
	assert.Error(t, err)
}

func TestFrameRoundTripsThroughEnvelope(t *testing.T) {
	out, err := JSONCodec{}.Encode(chat.KindLeft, chat.Membership{UserID: "u1"})
	require.NoError(t, err)

	var f Frame
	require.NoError(t, json.Unmarshal(out, &f))
	assert.Equal(t, "left", f.Type)
}
