package main

import (
	"github.com/matheus3301/chatsync/internal/profile"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"github.com/matheus3301/chatsync/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTUICommand() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fxApp, rt, err := startApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer stopApp(fxApp)

			reopen := ""
			if resume {
				reopen, err = intsync.NewReconciler(rt.Store, rt.Logger).GetCheckpoint(intsync.CheckpointLastChat)
				if err != nil {
					rt.Logger.Warn("no chat to resume", zap.Error(err))
				}
			}

			return tui.NewApp(tui.Deps{
				Profile: profile.Resolve(profileFlag),
				SelfID:  rt.Config.UserID,
				Session: rt.Session,
				Chats:   rt.Store,
				State:   rt.State,
				Bus:     rt.Bus,
				Logger:  rt.Logger.Named("tui"),
				Reopen:  reopen,
			}).Run()
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", true, "reopen the last opened chat")
	return cmd
}
