package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// ThreadState is what the thread renders.
type ThreadState struct {
	Messages  []chat.Message
	SelfID    string
	Loading   bool
	Exhausted bool
	Typing    bool
}

// MessageThread displays messages and a composer for a single chat.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	chatName string

	onSend  func(text string)
	onEdit  func(text string)
	onTop   func()
	quiet   bool // composer text set programmatically
	atEnd   bool
	lastLen int
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		atEnd:    true,
	}

	composer.SetChangedFunc(func(text string) {
		if !mt.quiet && mt.onEdit != nil {
			mt.onEdit(text)
		}
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			if text := composer.GetText(); strings.TrimSpace(text) != "" {
				mt.onSend(text)
			}
		}
	})

	messages.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyPgUp, tcell.KeyUp:
			row, _ := messages.GetScrollOffset()
			mt.atEnd = false
			if row == 0 && mt.onTop != nil {
				mt.onTop()
			}
		case tcell.KeyEnd:
			mt.atEnd = true
		}
		return ev
	})

	return mt
}

// SetChatName updates the chat name and title.
func (mt *MessageThread) SetChatName(name string) {
	mt.chatName = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeLine(name))))
}

// SetOnSend sets the callback when Enter is pressed on non-blank text.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnEdit sets the callback for every user edit of the composer.
func (mt *MessageThread) SetOnEdit(fn func(text string)) {
	mt.onEdit = fn
}

// SetOnTop sets the callback for scrolling up past the oldest loaded line.
func (mt *MessageThread) SetOnTop(fn func()) {
	mt.onTop = fn
}

// ClearComposer empties the composer without reporting an edit.
func (mt *MessageThread) ClearComposer() {
	mt.quiet = true
	mt.composer.SetText("")
	mt.quiet = false
}

// Reset prepares the view for another chat.
func (mt *MessageThread) Reset() {
	mt.ClearComposer()
	mt.messages.Clear()
	mt.atEnd = true
	mt.lastLen = 0
}

// Update re-renders the thread. The view follows new messages while the
// reader is at the bottom and keeps its position when history is prepended.
func (mt *MessageThread) Update(st ThreadState) {
	row, col := mt.messages.GetScrollOffset()
	mt.messages.SetText(RenderThread(mt.theme, st))

	grown := len(st.Messages) - mt.lastLen
	mt.lastLen = len(st.Messages)
	switch {
	case mt.atEnd:
		mt.messages.ScrollToEnd()
	case grown > 0 && row == 0:
		// Older messages were prepended above the reader.
		mt.messages.ScrollTo(grown*3, col)
	default:
		mt.messages.ScrollTo(row, col)
	}
}

// RenderThread formats a thread as tview markup.
func RenderThread(theme *ui.Theme, st ThreadState) string {
	var b strings.Builder
	switch {
	case st.Loading:
		_, _ = fmt.Fprintf(&b, "[::d]loading older messages...[-:-:-]\n\n")
	case st.Exhausted && len(st.Messages) > 0:
		_, _ = fmt.Fprintf(&b, "[::d]beginning of conversation[-:-:-]\n\n")
	}
	for _, m := range st.Messages {
		body := tview.Escape(sanitizeText(m.Content))
		if m.IsSystemAlert() {
			_, _ = fmt.Fprintf(&b, "[%s::i]-- %s --[-:-:-]\n\n", ui.Tag(theme.AlertColor), body)
			continue
		}
		sender := m.Sender.Name
		if sender == "" {
			sender = m.Sender.ID
		}
		color := theme.PeerColor
		if m.Sender.ID == st.SelfID {
			sender = "You"
			color = theme.SelfColor
		}
		ts := ""
		if !m.CreatedAt.IsZero() {
			ts = m.CreatedAt.Local().Format("15:04")
		}
		_, _ = fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			ui.Tag(color), tview.Escape(sanitizeLine(sender)), ts, body)
	}
	if st.Typing {
		_, _ = fmt.Fprintf(&b, "[%s::i]typing...[-:-:-]\n", ui.Tag(theme.TypingColor))
	}
	return b.String()
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
