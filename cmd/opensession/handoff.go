package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensession/opensession-go/internal/handoff"
)

func handoffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Build and manage handoff artifacts",
	}
	cmd.AddCommand(handoffBuildCmd())
	cmd.AddCommand(handoffArtifactsCmd())
	return cmd
}

func handoffBuildCmd() *cobra.Command {
	var (
		fromURIs []string
		last     int
		validate bool
		pin      string
	)

	cmd := &cobra.Command{
		Use:   "build [file]...",
		Short: "Build a new, content-addressed handoff artifact",
		Long: "build derives a HandoffSummary from every named session " +
			"(parsed transcript files, existing os://src/local/... URIs, " +
			"and/or the N most recent indexed sessions), canonicalizes the " +
			"summaries into deterministic bytes, and writes the resulting " +
			"ArtifactRecord to the content-addressed artifact store, " +
			"printing its os://artifact/<sha256> URI.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				in := handoff.BuildInputs{
					Files:    args,
					FromURIs: fromURIs,
					Validate: validate,
					Pin:      pin,
				}
				if last > 0 {
					rows, err := e.store.GetSessionsLatest(last)
					if err != nil {
						return printError("handoff build", err)
					}
					for _, row := range rows {
						if row.SourcePath != "" {
							in.ResolvedPaths = append(in.ResolvedPaths, row.SourcePath)
						}
					}
				}

				result, err := e.builder.Build(in)
				if err != nil {
					return printError("handoff build", err)
				}
				fmt.Println(result.ArtifactURI)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&fromURIs, "from", nil, "existing os://src/local/<sha256> URI to include (repeatable)")
	cmd.Flags().IntVar(&last, "last", 0, "include the N most recent indexed sessions")
	cmd.Flags().BoolVar(&validate, "validate", false, "fail the build if any summary has an error-level validation finding")
	cmd.Flags().StringVar(&pin, "pin", "", "pin alias to move to the new artifact on success")
	return cmd
}

func handoffArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect and manage built handoff artifacts",
	}
	cmd.AddCommand(artifactsListCmd())
	cmd.AddCommand(artifactsGetCmd())
	cmd.AddCommand(artifactsVerifyCmd())
	cmd.AddCommand(artifactsPinCmd())
	cmd.AddCommand(artifactsUnpinCmd())
	cmd.AddCommand(artifactsRmCmd())
	return cmd
}

func artifactsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every artifact visible across the local and global stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				records, err := e.builder.List()
				if err != nil {
					return printError("handoff artifacts list", err)
				}
				if len(records) == 0 {
					fmt.Println("no artifacts")
					return nil
				}
				for _, r := range records {
					fmt.Printf("os://artifact/%s  %s  %d source(s)\n", r.SHA256, r.CreatedAt, len(r.SourceURIs))
				}
				return nil
			})
		},
	}
}

func artifactsGetCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "get <id-or-uri>",
		Short: "Print an artifact's canonical summary bytes (or its raw record with --raw)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				record, err := e.builder.Get(args[0])
				if err != nil {
					return printError("handoff artifacts get", err)
				}
				if raw {
					return printJSON(record)
				}
				fmt.Print(record.CanonicalJSONL)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the full ArtifactRecord (sources, validation reports) as JSON")
	return cmd
}

func artifactsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <id-or-uri>",
		Short: "Recompute an artifact's hash and confirm it matches its name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				if err := e.builder.Verify(args[0]); err != nil {
					return printError("handoff artifacts verify", err)
				}
				fmt.Println("ok")
				return nil
			})
		},
	}
}

func artifactsPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <alias> <id-or-uri>",
		Short: "Point a named alias at an artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				if err := e.builder.Pin(args[0], args[1]); err != nil {
					return printError("handoff artifacts pin", err)
				}
				return nil
			})
		},
	}
}

func artifactsUnpinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpin <alias>",
		Short: "Remove a pin alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				if err := e.builder.Unpin(args[0]); err != nil {
					return printError("handoff artifacts unpin", err)
				}
				return nil
			})
		},
	}
}

func artifactsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id-or-uri>",
		Short: "Delete an artifact record (refuses while it is pinned)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(e *env) error {
				if err := e.builder.Delete(args[0]); err != nil {
					return printError("handoff artifacts rm", err)
				}
				return nil
			})
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
