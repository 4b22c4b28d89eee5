package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensession/opensession-go/internal/gitshare"
	"github.com/opensession/opensession-go/internal/sourceuri"
)

func shareCmd() *cobra.Command {
	var (
		git    bool
		remote string
		ref    string
		path   string
		push   bool
	)

	cmd := &cobra.Command{
		Use:   "share <source-uri>",
		Short: "Share a stored source object with a teammate",
		Long: "share takes an os://src/local/<sha256> source URI and writes " +
			"its raw bytes into a git remote as a plumbing-level blob/tree/" +
			"commit at a dedicated ref (--git), optionally pushing it " +
			"immediately (--push). This is the only sharing transport the " +
			"core implements; a hosted-web share mode is out of scope here.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !git {
				return printError("share", fmt.Errorf("only --git sharing is implemented; pass --git"))
			}
			return withEnv(cmd.Context(), func(e *env) error {
				uri, err := sourceuri.Parse(args[0])
				if err != nil {
					return printError("share", fmt.Errorf("parse source uri: %w", err))
				}
				hash := uri.AsLocalHash()
				if hash == "" {
					return printError("share", fmt.Errorf("%s is not a local source URI", args[0]))
				}
				_, data, err := e.sources.Read(hash)
				if err != nil {
					return printError("share", fmt.Errorf("read source object %s: %w", hash, err))
				}

				cwd, err := os.Getwd()
				if err != nil {
					return printError("share", err)
				}

				shareArgs := gitshare.ShareArgs{
					LocalHash:     hash,
					Data:          data,
					Remote:        remoteOrDefault(remote, e.cfg.GitShare.DefaultRemote),
					Ref:           refOrDefault(ref, e.cfg.GitShare.DefaultRef),
					Path:          path,
					Push:          push || e.cfg.GitShare.AutoPush,
					WorkDirectory: cwd,
				}
				result, err := gitshare.ShareGit(cmd.Context(), shareArgs)
				if err != nil {
					return printError("share", err)
				}

				fmt.Println(result.URI.String())
				if result.Pushed {
					fmt.Printf("pushed to %s\n", result.Remote.PushTarget)
				} else {
					fmt.Printf("run to publish: %s\n", result.PushCommand)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&git, "git", false, "share via a git-object write at a ref (the only supported mode)")
	cmd.Flags().StringVar(&remote, "remote", "", "git remote name or URL (defaults to the configured git-share remote)")
	cmd.Flags().StringVar(&ref, "ref", "", "target ref to write the blob at (defaults to refs/heads/opensession/sessions)")
	cmd.Flags().StringVar(&path, "path", "", "repo-relative path at the ref (defaults to sessions/<hash>.jsonl)")
	cmd.Flags().BoolVar(&push, "push", false, "push the ref to the remote immediately")
	return cmd
}

func remoteOrDefault(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

func refOrDefault(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}
