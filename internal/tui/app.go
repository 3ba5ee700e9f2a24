// Package tui is the terminal frontend: a cached chat list and one open
// conversation driven by a conversation.Session.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/conversation"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/tui/keys"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/matheus3301/chatsync/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageChats = "chats"
	pageChat  = "chat"
)

// ChatSource lists cached chats.
type ChatSource interface {
	ListChats(limit, offset int) ([]store.Chat, error)
}

// Deps is what the TUI drives.
type Deps struct {
	Profile string
	SelfID  string
	Session *conversation.Session
	Chats   ChatSource
	State   *status.Machine
	Bus     *bus.Bus
	Logger  *zap.Logger
	Reopen  string // chat opened at startup, if any
}

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	root      *tview.Flex
	pages     *tview.Pages
	theme     *ui.Theme
	flash     *ui.FlashModel
	registry  *keys.Registry
	statusBar *views.StatusBar
	chatList  *views.ChatList
	thread    *views.MessageThread
	prompt    *ui.Prompt
	deps      Deps
	openID    string
	unsub     func()
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(d Deps) *App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		theme:     theme,
		flash:     ui.NewFlashModel(),
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(theme),
		chatList:  views.NewChatList(theme),
		thread:    views.NewMessageThread(theme),
		prompt:    ui.NewPrompt(theme),
		deps:      d,
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(d.Profile)
	a.statusBar.SetStatus(string(d.State.Current()))
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	a.statusBar.SetHints(a.registry.Hints(pageChats))

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: ":command", Visible: true,
		Handler: a.showPrompt,
	})
	a.registry.AddView(pageChats, "reload", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:reload", Visible: true,
		Handler: func() { go a.reloadChats() },
	})
	a.registry.AddView(pageChat, "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageChat, "older", &keys.Action{
		Key: tcell.KeyCtrlU,
		Description: "^u:older", Visible: true,
		Handler: a.deps.Session.RequestNextPage,
	})
	a.registry.AddView(pageChat, "leave", &keys.Action{
		Key: tcell.KeyEscape,
		Description: "esc:leave", Visible: true,
		Handler: func() { go a.deps.Session.Close() },
	})
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(_, _ int) {
		if id := a.chatList.SelectedChat(); id != "" {
			a.selectChat(id)
		}
	})

	a.thread.SetOnEdit(a.deps.Session.Edit)
	a.thread.SetOnTop(a.deps.Session.RequestNextPage)
	a.thread.SetOnSend(func(text string) {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
			defer cancel()
			err := a.deps.Session.Send(ctx, text)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					a.setFlash(func() { a.flash.Err(err) })
					return
				}
				a.thread.ClearComposer()
			})
		}()
	})

	a.prompt.SetOnSubmit(func(text string) {
		a.hidePrompt()
		a.runCommand(ParseCommand(text))
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.unsub = a.deps.Session.Subscribe(func(c conversation.Change) {
		// Observers run on the session loop; never block it on the UI.
		go a.app.QueueUpdateDraw(func() { a.onChange(c) })
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageChats, a.chatList, true, true)
	a.pages.AddPage(pageChat, a.thread, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		// Let text input widgets handle all keys normally.
		switch a.app.GetFocus() {
		case a.thread.Composer():
			if event.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return event
		case a.prompt.InputField:
			return event
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}
		return event
	})
}

func (a *App) showPrompt() {
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusPage()
}

func (a *App) switchTo(page string) {
	a.pages.SwitchToPage(page)
	a.statusBar.SetHints(a.registry.Hints(page))
	a.focusPage()
}

func (a *App) focusPage() {
	if page, _ := a.pages.GetFrontPage(); page == pageChat {
		a.app.SetFocus(a.thread.Messages())
		return
	}
	a.app.SetFocus(a.chatList)
}

func (a *App) runCommand(cmd Command) {
	if err := cmd.Validate(); err != nil {
		a.flash.Warn(err.Error())
		a.statusBar.SetFlash(a.flash.Current())
		return
	}
	switch cmd.Name {
	case CmdOpen:
		a.selectChat(cmd.Args)
	case CmdClose:
		go a.deps.Session.Close()
	case CmdChats:
		a.switchTo(pageChats)
		go a.reloadChats()
	case CmdQuit:
		a.app.Stop()
	}
}

func (a *App) selectChat(id string) {
	a.flash.Info("opening " + a.chatList.ChatName(id) + "...")
	a.statusBar.SetFlash(a.flash.Current())
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 15*time.Second)
		defer cancel()
		err := a.deps.Session.Select(ctx, id, a.deps.SelfID)
		// Metadata failures also arrive as ChangeUnavailable.
		if err != nil && !errors.Is(err, chat.ErrSessionUnavailable) {
			a.app.QueueUpdateDraw(func() {
				a.setFlash(func() { a.flash.Err(err) })
			})
		}
	}()
}

func (a *App) onChange(c conversation.Change) {
	switch c.Kind {
	case conversation.ChangeUnavailable:
		a.setFlash(func() { a.flash.Err(c.Err) })
	case conversation.ChangePageFailed:
		a.setFlash(func() { a.flash.Warn("older messages unavailable, scroll up to retry") })
	}
	a.renderSession()
}

// renderSession derives the visible page from the session state, so the
// order in which queued changes are drawn does not matter.
func (a *App) renderSession() {
	st := a.deps.Session.State()
	if st.ChatID == "" {
		if a.openID != "" {
			a.openID = ""
			a.statusBar.SetChat("")
			a.thread.Reset()
			a.switchTo(pageChats)
			go a.reloadChats()
		}
		return
	}
	if st.ChatID != a.openID {
		a.openID = st.ChatID
		name := a.chatList.ChatName(st.ChatID)
		a.thread.Reset()
		a.thread.SetChatName(name)
		a.statusBar.SetChat(name)
		a.switchTo(pageChat)
	}

	msgs := make([]chat.Message, 0, len(st.History)+len(st.Live))
	msgs = append(msgs, st.History...)
	msgs = append(msgs, st.Live...)
	a.thread.Update(views.ThreadState{
		Messages:  msgs,
		SelfID:    st.SelfUserID,
		Loading:   st.Loading,
		Exhausted: st.HistoryExhausted,
		Typing:    st.RemoteTyping,
	})
}

func (a *App) setFlash(set func()) {
	set()
	a.statusBar.SetFlash(a.flash.Current())
}

func (a *App) reloadChats() {
	chats, err := a.deps.Chats.ListChats(200, 0)
	if err != nil {
		a.deps.Logger.Warn("failed to list chats", zap.Error(err))
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.chatList.Update(chats)
	})
}

// watchBus follows connection state and cache updates.
func (a *App) watchBus() {
	connCh, unsubConn := a.deps.Bus.Subscribe(bus.KindConnStatusChanged, 16)
	storeCh, unsubStore := a.deps.Bus.Subscribe(bus.NamespaceStore, 64)
	ticker := time.NewTicker(time.Second)
	go func() {
		defer unsubConn()
		defer unsubStore()
		defer ticker.Stop()
		dirty := false
		for {
			select {
			case evt := <-connCh:
				if sc, ok := evt.Payload.(status.StatusChange); ok {
					a.app.QueueUpdateDraw(func() { a.statusBar.SetStatus(string(sc.To)) })
				}
			case <-storeCh:
				dirty = true
			case <-ticker.C:
				// Coalesce cache updates into one reload per tick.
				if dirty {
					dirty = false
					a.reloadChats()
				}
				a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.flash.Current()) })
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	a.watchBus()
	go func() {
		a.reloadChats()
		if a.deps.Reopen != "" {
			a.app.QueueUpdateDraw(func() { a.selectChat(a.deps.Reopen) })
		}
	}()

	err := a.app.Run()
	a.cancel()
	a.unsub()
	return err
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
