package store

// Chat represents a cached chat.
type Chat struct {
	ID                 string
	Name               string
	IsGroup            bool
	UnreadAlerts       int
	LastMessageAt      int64 // unix ms
	LastMessagePreview string
}

const previewLen = 100

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
