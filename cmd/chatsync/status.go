package main

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/health"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type statusReport struct {
	Profile string `json:"profile"`
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Online  bool   `json:"online"`
	Error   string `json:"error,omitempty"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a client is running for the profile and online",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := resolveProfile()
			if err != nil {
				return err
			}
			r := statusReport{Profile: name, PID: lock.Holder(profile.Dir(name))}
			r.Running = r.PID > 0

			if r.Running {
				ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
				defer cancel()
				st, err := health.Probe(ctx, profile.SocketPath(name))
				if err != nil {
					r.Error = err.Error()
				}
				r.Online = st == healthpb.HealthCheckResponse_SERVING
			}

			if jsonFlag {
				outputJSON(r)
				return nil
			}
			fmt.Printf("Profile: %s\n", r.Profile)
			if !r.Running {
				fmt.Println("Client:  not running")
				return nil
			}
			fmt.Printf("Client:  running (pid %d)\n", r.PID)
			if r.Error != "" {
				fmt.Printf("Health:  %s\n", r.Error)
				return nil
			}
			if r.Online {
				fmt.Println("Transport: online")
			} else {
				fmt.Println("Transport: offline")
			}
			return nil
		},
	}
}
