package views

import (
	"strings"
	"unicode/utf8"
)

// sanitizeText cleans text received from the chat server before it is drawn.
// Control characters are dropped, so a message cannot move the cursor or
// inject escape sequences. Emoji modifiers that tcell renders at the wrong
// width are dropped too. Newlines survive; tabs become a space.
func sanitizeText(s string) string {
	return sanitize(s, false)
}

// sanitizeLine is sanitizeText for single-line cells: newlines become spaces.
func sanitizeLine(s string) string {
	return sanitize(s, true)
}

func sanitize(s string, oneLine bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == utf8.RuneError && size == 1:
			b.WriteRune(utf8.RuneError)
		case r == '\n' && !oneLine:
			b.WriteByte('\n')
		case r == '\n' || r == '\t':
			b.WriteByte(' ')
		case isControlRune(r), isWidthBreakingRune(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isControlRune covers C0, DEL, C1 and the bidi embedding/isolate controls.
func isControlRune(r rune) bool {
	switch {
	case r < 0x20, r == 0x7F:
		return true
	case r >= 0x80 && r <= 0x9F:
		return true
	case r >= 0x202A && r <= 0x202E:
		return true
	case r >= 0x2066 && r <= 0x2069:
		return true
	}
	return false
}

func isWidthBreakingRune(r rune) bool {
	switch {
	// Skin tone modifiers.
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	// Zero width joiner.
	case r == 0x200D:
		return true
	// Variation selectors and their supplement.
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}
