package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/conversation"
	"github.com/spf13/cobra"
)

func newTailCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tail <chat-id>",
		Short: "Join a chat and print messages as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fxApp, rt, err := startApp(ctx, false)
			if err != nil {
				return err
			}
			defer stopApp(fxApp)

			onlineCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			if err := waitOnline(onlineCtx, rt.State); err != nil {
				return err
			}

			sig := newTailSignal()
			unsub := rt.Session.Subscribe(sig.observe)
			defer unsub()

			if err := rt.Session.Select(onlineCtx, args[0], rt.Config.UserID); err != nil {
				return err
			}

			p := &tailPrinter{self: rt.Config.UserID, seen: make(map[string]bool)}
			typing := false
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-sig.dirty:
					st := rt.Session.State()
					if st.ChatID != args[0] {
						return nil
					}
					p.print(rt.Session.View())
					if st.RemoteTyping && !typing {
						fmt.Fprintln(os.Stderr, "... typing")
					}
					typing = st.RemoteTyping
					if sig.pageFailed.Swap(false) {
						fmt.Fprintln(os.Stderr, "warning: history page failed to load")
					}
				}
			}
		},
	}
}

// tailSignal coalesces session changes into one pending wake-up. The
// reader re-reads the whole state, so no change is lost when several
// arrive before it runs. observe never blocks the session loop.
type tailSignal struct {
	dirty      chan struct{}
	pageFailed atomic.Bool
}

func newTailSignal() *tailSignal {
	return &tailSignal{dirty: make(chan struct{}, 1)}
}

func (s *tailSignal) observe(c conversation.Change) {
	if c.Kind == conversation.ChangePageFailed {
		s.pageFailed.Store(true)
	}
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// tailPrinter prints each message once, in view order.
type tailPrinter struct {
	self string
	seen map[string]bool
}

func (p *tailPrinter) print(view []chat.Message) {
	for _, m := range view {
		if p.seen[m.ID] {
			continue
		}
		p.seen[m.ID] = true
		sender := m.Sender.Name
		if m.Sender.ID == p.self {
			sender = "you"
		}
		if jsonFlag {
			outputJSON(m)
			continue
		}
		if m.IsSystemAlert() {
			fmt.Printf("%s  -- %s --\n", m.CreatedAt.Local().Format("15:04"), m.Content)
			continue
		}
		fmt.Printf("%s  %s: %s\n", m.CreatedAt.Local().Format("15:04"), sender, m.Content)
	}
}
