package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// ChatList is the cached chat list view (K9s-inspired table).
type ChatList struct {
	*tview.Table
	theme *ui.Theme
	chats []store.Chat
}

// NewChatList creates a new chat list table.
func NewChatList(theme *ui.Theme) *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Chats ")
	table.SetTitleColor(theme.TitleColor)

	return &ChatList{Table: table, theme: theme}
}

// Update refreshes the chat list with new data, keeping the selection on
// the same chat when it is still listed.
func (cl *ChatList) Update(chats []store.Chat) {
	selected := cl.SelectedChat()
	cl.chats = chats
	cl.Clear()

	header := func(col int, text string) {
		cl.SetCell(0, col, tview.NewTableCell(text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold))
	}
	header(0, " NAME")
	header(1, " LAST MESSAGE")
	header(2, " TIME")

	row := 1
	for i, c := range chats {
		name := sanitizeLine(c.Name)
		if c.UnreadAlerts > 0 {
			name = fmt.Sprintf("* %s (%d)", name, c.UnreadAlerts)
		}
		cl.SetCell(i+1, 0, tview.NewTableCell(" "+name).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(i+1, 1, tview.NewTableCell(" "+sanitizeLine(c.LastMessagePreview)).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(i+1, 2, tview.NewTableCell(" "+formatTimestamp(c.LastMessageAt, time.Now())).SetMaxWidth(12))
		if c.ID == selected {
			row = i + 1
		}
	}
	if len(chats) > 0 {
		cl.Select(row, 0)
	}
}

// SelectedChat returns the id of the currently selected chat.
func (cl *ChatList) SelectedChat() string {
	row, _ := cl.GetSelection()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.chats) {
		return cl.chats[idx].ID
	}
	return ""
}

// ChatName returns the display name of a listed chat, or its id.
func (cl *ChatList) ChatName(id string) string {
	for _, c := range cl.chats {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}

func formatTimestamp(ms int64, now time.Time) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms).In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
