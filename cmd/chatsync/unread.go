package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUnreadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "List chats with unread alerts",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			chats, err := db.ListUnread()
			if err != nil {
				return err
			}
			if jsonFlag {
				outputJSON(chats)
				return nil
			}
			if len(chats) == 0 {
				fmt.Println("No unread chats.")
				return nil
			}
			for _, c := range chats {
				fmt.Printf("%-24s %-30s %d\n", c.ID, c.Name, c.UnreadAlerts)
			}
			return nil
		},
	}
}
