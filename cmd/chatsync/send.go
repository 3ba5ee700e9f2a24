package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newSendCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send <chat-id> <text>...",
		Short: "Send one message to a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			fxApp, rt, err := startApp(ctx, false)
			if err != nil {
				return err
			}
			defer stopApp(fxApp)

			if err := waitOnline(ctx, rt.State); err != nil {
				return err
			}
			if err := rt.Session.Select(ctx, args[0], rt.Config.UserID); err != nil {
				return err
			}
			if err := rt.Session.Send(ctx, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			if !jsonFlag {
				fmt.Println("sent")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Second, "give up after this long")
	return cmd
}
