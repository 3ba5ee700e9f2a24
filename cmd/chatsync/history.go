package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit  int
		before string
	)
	cmd := &cobra.Command{
		Use:   "history <chat-id>",
		Short: "Print cached messages of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var beforeMs int64
			if before != "" {
				t, err := time.Parse(time.RFC3339, before)
				if err != nil {
					return fmt.Errorf("--before: %w", err)
				}
				beforeMs = t.UnixMilli()
			}

			db, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			msgs, err := db.ListMessages(args[0], beforeMs, limit)
			if err != nil {
				return err
			}
			if jsonFlag {
				outputJSON(msgs)
				return nil
			}
			if len(msgs) == 0 {
				fmt.Println("No cached messages.")
				return nil
			}
			for _, m := range msgs {
				fmt.Printf("%s  %s: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Sender.Name, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of messages")
	cmd.Flags().StringVar(&before, "before", "", "only messages older than this RFC3339 time")
	return cmd
}
