package chat

// Kind is a transport event name.
type Kind string

const (
	KindJoined      Kind = "joined"
	KindLeft        Kind = "left"
	KindTypingStart Kind = "typing-start"
	KindTypingStop  Kind = "typing-stop"
	KindNewMessage  Kind = "new-message"
	KindAlert       Kind = "alert"
)

// Known reports whether k is part of the event vocabulary this client speaks.
func (k Kind) Known() bool {
	switch k {
	case KindJoined, KindLeft, KindTypingStart, KindTypingStop, KindNewMessage, KindAlert:
		return true
	}
	return false
}

// Event is an inbound transport event after decoding.
// Message is set for new-message, Alert for alert.
type Event struct {
	Kind    Kind
	ChatID  string
	Message *Message
	Alert   string
	Members []string
}

// Membership is the payload of the outbound joined/left signals.
type Membership struct {
	UserID  string   `json:"userId"`
	Members []string `json:"members"`
}

// Typing is the payload of typing-start/typing-stop in both directions.
type Typing struct {
	ChatID  string   `json:"chatId"`
	Members []string `json:"members"`
}

// Outgoing is the outbound new-message payload, before the server persists it.
type Outgoing struct {
	ChatID  string   `json:"chatId"`
	Text    string   `json:"message"`
	Members []string `json:"members"`
}
