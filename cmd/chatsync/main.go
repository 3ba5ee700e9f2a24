// Command chatsync is a terminal chat client: an interactive TUI plus
// scriptable subcommands over the same session engine and local cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	profileFlag string
	jsonFlag    bool
	verboseFlag bool
)

func main() {
	root := &cobra.Command{
		Use:           "chatsync",
		Short:         "Terminal client for real-time group chat",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log to stderr as well as the log file")

	root.AddCommand(
		newTUICommand(),
		newTailCommand(),
		newSendCommand(),
		newHistoryCommand(),
		newUnreadCommand(),
		newStatusCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func resolveProfile() (string, error) {
	name := profile.Resolve(profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// startApp builds and starts the client for the resolved profile.
func startApp(ctx context.Context, quiet bool) (*fx.App, *app.Runtime, error) {
	name, err := resolveProfile()
	if err != nil {
		return nil, nil, err
	}
	fxApp, rt := app.New(app.Params{Profile: name, Quiet: quiet || !verboseFlag})
	if err := fxApp.Err(); err != nil {
		return nil, nil, err
	}
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return nil, nil, err
	}
	return fxApp, rt, nil
}

func stopApp(fxApp *fx.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fxApp.Stop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

// waitOnline blocks until the transport is online.
func waitOnline(ctx context.Context, m *status.Machine) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for m.Current() != status.Online {
		select {
		case <-ctx.Done():
			return fmt.Errorf("transport not online (%s): %w", m.Current(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// openStore opens the profile cache read side, without the client running.
func openStore() (*store.DB, error) {
	name, err := resolveProfile()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(profile.CachePath(name))
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
