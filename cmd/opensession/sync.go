package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensession/opensession-go/internal/sync"
	"github.com/opensession/opensession-go/internal/uploadapi"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending sessions and pull team summaries",
	}
	cmd.AddCommand(syncPushCmd())
	cmd.AddCommand(syncPullCmd())
	return cmd
}

func syncPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload every local-only session for the configured team",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				client, err := syncClient(e)
				if err != nil {
					return printError("sync push", err)
				}
				limiter := sync.NewUploadLimiter(e.cfg.Upload.RatePerSecond, e.cfg.Upload.Burst)
				result, err := sync.Push(cmd.Context(), e.store, client, e.cfg.Team.ID, limiter)
				if err != nil {
					return printError("sync push", err)
				}
				fmt.Printf("uploaded %d, skipped %d, failed %d\n", result.Uploaded, result.Skipped, result.Failed)
				return nil
			})
		},
	}
}

func syncPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch and index session summaries the team server has that this machine doesn't",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				client, err := syncClient(e)
				if err != nil {
					return printError("sync pull", err)
				}
				result, err := sync.Pull(cmd.Context(), e.store, client, e.cfg.Team.ID)
				if err != nil {
					return printError("sync pull", err)
				}
				fmt.Printf("received %d\n", result.Received)
				return nil
			})
		},
	}
}

func syncClient(e *env) (*uploadapi.Client, error) {
	if e.cfg.Upload.Endpoint == "" {
		return nil, fmt.Errorf("no upload endpoint configured (set upload.endpoint or OPENSESSION_UPLOAD_ENDPOINT)")
	}
	if e.cfg.Team.ID == "" {
		return nil, fmt.Errorf("no team id configured (set team.id or OPENSESSION_TEAM_ID)")
	}
	return uploadapi.NewClient(e.cfg.Upload.Endpoint, e.cfg.Upload.APIKey, uploadapi.WithScoreRegistry(e.scores)), nil
}
