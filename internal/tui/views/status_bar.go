package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar displays the profile, connection state and flash messages.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	profile string
	status  string
	chat    string
	hints   string
	flash   *ui.FlashMessage
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, theme: theme}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetStatus updates the connection state display.
func (sb *StatusBar) SetStatus(status string) {
	sb.status = status
	sb.render()
}

// SetChat shows the open chat, or nothing when empty.
func (sb *StatusBar) SetChat(name string) {
	sb.chat = name
	sb.render()
}

// SetHints shows key hints for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = strings.Join(hints, " ")
	sb.render()
}

// SetFlash sets a temporary message; nil clears it.
func (sb *StatusBar) SetFlash(msg *ui.FlashMessage) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line(time.Now()))
}

func (sb *StatusBar) line(now time.Time) string {
	status := sb.status
	if status == "ONLINE" {
		status = "[green]" + status + "[-]"
	} else if status != "" {
		status = "[yellow]" + status + "[-]"
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s", tview.Escape(sb.profile), status)
	if sb.chat != "" {
		line += " | " + tview.Escape(sanitizeLine(sb.chat))
	}
	line += " | " + now.Format("15:04")
	if sb.flash != nil {
		line += fmt.Sprintf(" | [%s]%s[-]", sb.theme.FlashColor(sb.flash.Level), tview.Escape(sb.flash.Text))
	} else if sb.hints != "" {
		line += " | [::d]" + tview.Escape(sb.hints) + "[-:-:-]"
	}
	return line
}
