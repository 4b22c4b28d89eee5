package localindex

import (
	"context"
	"os/exec"
	"strings"

	"github.com/opensession/opensession-go/internal/gitshare"
)

// GitContext is the repo metadata attached to a session when it's indexed
// from a local transcript file: where it came from, so `log --repo` and
// the handoff builder can filter and label by project.
type GitContext struct {
	Remote   string
	Branch   string
	Commit   string
	RepoName string
}

// DetectGitContext shells out to git from dir to discover the repo's
// origin remote, current branch, and HEAD commit. Any piece that can't be
// determined (not a repo, detached HEAD, no origin) is left empty rather
// than failing the whole detection — a session indexed outside a repo
// still gets indexed, just without git metadata.
func DetectGitContext(ctx context.Context, dir string) GitContext {
	var gc GitContext

	if remote, err := gitOutput(ctx, dir, "remote", "get-url", "origin"); err == nil {
		gc.Remote = remote
		if name, ok := NormalizeRepoName(remote); ok {
			gc.RepoName = name
		}
	}
	if branch, err := gitOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"); err == nil && branch != "HEAD" {
		gc.Branch = branch
	}
	if commit, err := gitOutput(ctx, dir, "rev-parse", "HEAD"); err == nil {
		gc.Commit = commit
	}
	return gc
}

// NormalizeRepoName reduces a git remote URL to an "owner/repo" style
// display name, reusing gitshare's host/path parser so github.com and
// gitlab.com remotes collapse to the same short form `opensession share`
// derives its URIs from.
func NormalizeRepoName(remoteURL string) (string, bool) {
	host, path, ok := gitshare.ParseRemoteHostAndPath(remoteURL)
	if !ok {
		return "", false
	}
	cleaned := strings.TrimSuffix(strings.TrimPrefix(path, "/"), ".git")
	if cleaned == "" {
		return "", false
	}
	_ = host
	return cleaned, true
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
