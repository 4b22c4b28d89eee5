// Package gitshare writes a locally-hashed source object into a repository
// at a dedicated git ref, so a teammate without access to the object store
// can fetch it with an ordinary `git fetch` instead of a network call to a
// handoff server. It shells out to the `git` binary for every plumbing
// operation rather than linking a Go git implementation — no repo in the
// retrieval pack carries git plumbing as a library dependency, and git
// itself is the one thing guaranteed to be on a machine that has a repo to
// share into.
package gitshare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/opensession/opensession-go/internal/sourceuri"
)

// DefaultRef is the ref opensession writes shared objects into when the
// caller doesn't name one explicitly.
const DefaultRef = "refs/heads/opensession/sessions"

// emptyTreeSHA1 is git's well-known hash of the empty tree — the base tree
// used the first time a ref is written to.
const emptyTreeSHA1 = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// RemoteSpec names the resolved URL of a remote plus the argument `git
// push` should actually be given (a remote name, if the caller passed one,
// or the literal URL otherwise).
type RemoteSpec struct {
	URL        string
	PushTarget string
}

// runGit executes git in repoRoot and returns trimmed stdout. stderr is
// captured into the returned error on failure.
func runGit(ctx context.Context, repoRoot string, stdin []byte, args ...string) (string, error) {
	return runGitEnv(ctx, repoRoot, nil, stdin, args...)
}

// FindRepoRoot walks up from start looking for a .git directory, the way
// `git rev-parse --show-toplevel` would, without requiring git to already
// be confirmed present.
func FindRepoRoot(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info != nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LooksLikeRemoteURL reports whether value is a URL or scp-style remote
// rather than a configured remote name.
func LooksLikeRemoteURL(value string) bool {
	return strings.Contains(value, "://") || strings.HasPrefix(value, "git@")
}

// ResolveRemote turns a remote name or URL into a RemoteSpec. A bare name
// is resolved via `git remote get-url`; a URL/scp-style value is used
// directly as both the display URL and the push target.
func ResolveRemote(ctx context.Context, repoRoot, remote string) (RemoteSpec, error) {
	if LooksLikeRemoteURL(remote) {
		trimmed := strings.TrimSpace(remote)
		return RemoteSpec{URL: trimmed, PushTarget: trimmed}, nil
	}

	resolved, err := runGit(ctx, repoRoot, nil, "remote", "get-url", remote)
	if err != nil {
		return RemoteSpec{}, fmt.Errorf("resolve git remote %q: %w", remote, err)
	}
	if resolved == "" {
		return RemoteSpec{}, fmt.Errorf("git remote %q resolved to empty url", remote)
	}
	return RemoteSpec{URL: resolved, PushTarget: remote}, nil
}

// ValidateRelPath rejects anything that isn't a clean, repo-relative path:
// empty, absolute, or containing a "." / ".." / backslash segment.
func ValidateRelPath(path string) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || strings.HasPrefix(trimmed, "/") {
		return fmt.Errorf("path must be repository-relative")
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == "" || segment == "." || segment == ".." || strings.Contains(segment, `\`) {
			return fmt.Errorf("path contains invalid segment: %q", segment)
		}
	}
	return nil
}

// StoreBlobAtRef writes data into the repo's object database, stages it at
// targetPath on top of the tree targetRef currently points at (or the
// empty tree, the first time), and commits that tree to targetRef. It
// uses a scratch index file (via GIT_INDEX_FILE) so it never disturbs the
// caller's working tree or staged changes. Returns the new commit sha.
func StoreBlobAtRef(ctx context.Context, repoRoot, targetRef, targetPath string, data []byte, commitMessage string) (string, error) {
	if err := ValidateRelPath(targetPath); err != nil {
		return "", err
	}

	scratchIndex, err := os.CreateTemp("", "opensession-gitshare-index-*")
	if err != nil {
		return "", fmt.Errorf("create scratch index: %w", err)
	}
	scratchIndex.Close()
	defer os.Remove(scratchIndex.Name())

	gitEnv := "GIT_INDEX_FILE=" + scratchIndex.Name()

	parentCommit, hasParent := "", false
	if sha, err := runGit(ctx, repoRoot, nil, "rev-parse", "--verify", targetRef); err == nil && sha != "" {
		parentCommit, hasParent = sha, true
	}

	baseTree := emptyTreeSHA1
	if hasParent {
		treeSHA, err := runGit(ctx, repoRoot, nil, "rev-parse", "--verify", parentCommit+"^{tree}")
		if err != nil {
			return "", fmt.Errorf("resolve base tree: %w", err)
		}
		baseTree = treeSHA
	}

	if _, err := runGitEnv(ctx, repoRoot, []string{gitEnv}, nil, "read-tree", baseTree); err != nil {
		return "", fmt.Errorf("read base tree into scratch index: %w", err)
	}

	blobSHA, err := runGitEnv(ctx, repoRoot, nil, data, "hash-object", "-w", "-t", "blob", "--stdin")
	if err != nil {
		return "", fmt.Errorf("hash blob: %w", err)
	}

	if _, err := runGitEnv(ctx, repoRoot, []string{gitEnv}, nil,
		"update-index", "--add", "--cacheinfo", "100644,"+blobSHA+","+targetPath,
	); err != nil {
		return "", fmt.Errorf("stage blob at %s: %w", targetPath, err)
	}

	newTree, err := runGitEnv(ctx, repoRoot, []string{gitEnv}, nil, "write-tree")
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}

	commitArgs := []string{"commit-tree", newTree, "-m", commitMessage}
	if hasParent {
		commitArgs = append(commitArgs, "-p", parentCommit)
	}
	newCommit, err := runGitEnv(ctx, repoRoot, nil, nil, commitArgs...)
	if err != nil {
		return "", fmt.Errorf("commit tree: %w", err)
	}

	updateRefArgs := []string{"update-ref", targetRef, newCommit}
	if hasParent {
		updateRefArgs = append(updateRefArgs, parentCommit)
	}
	if _, err := runGitEnv(ctx, repoRoot, nil, nil, updateRefArgs...); err != nil {
		return "", fmt.Errorf("update ref %s: %w", targetRef, err)
	}

	return newCommit, nil
}

func runGitEnv(ctx context.Context, repoRoot string, extraEnv []string, stdin []byte, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Push runs `git push <remote> <ref>:<ref>` in repoRoot.
func Push(ctx context.Context, repoRoot, remote, targetRef string) error {
	_, err := runGit(ctx, repoRoot, nil, "push", remote, targetRef+":"+targetRef)
	return err
}

// URIForRemote derives the canonical os:// source URI a shared object is
// addressable by, detecting github.com/gitlab.com hosts from the remote
// URL and falling back to the generic git form otherwise.
func URIForRemote(remoteURL, ref, path string) sourceuri.URI {
	if host, repoPath, ok := ParseRemoteHostAndPath(remoteURL); ok {
		cleaned := strings.TrimSuffix(strings.TrimPrefix(repoPath, "/"), ".git")
		if strings.EqualFold(host, "github.com") {
			segments := nonEmptySegments(cleaned)
			if len(segments) >= 2 {
				return sourceuri.URI{Kind: sourceuri.KindGh, Owner: segments[0], Repo: segments[1], Ref: ref, Path: path}
			}
		}
		if strings.EqualFold(host, "gitlab.com") {
			return sourceuri.URI{Kind: sourceuri.KindGl, Project: cleaned, Ref: ref, Path: path}
		}
	}
	return sourceuri.URI{Kind: sourceuri.KindGit, Remote: remoteURL, Ref: ref, Path: path}
}

// ParseRemoteHostAndPath extracts the host and repo-path portion out of an
// scp-style (`git@host:path`) or URL-style (`scheme://[user@]host[:port]/path`)
// git remote, matching both forms git itself accepts.
func ParseRemoteHostAndPath(remoteURL string) (host, path string, ok bool) {
	remote := strings.TrimSpace(remoteURL)
	if remote == "" {
		return "", "", false
	}

	if rest, found := strings.CutPrefix(remote, "git@"); found {
		host, path, ok := strings.Cut(rest, ":")
		host, path = strings.TrimSpace(host), strings.TrimSpace(path)
		if !ok || host == "" || path == "" {
			return "", "", false
		}
		return host, path, true
	}

	idx := strings.Index(remote, "://")
	if idx < 0 {
		return "", "", false
	}
	afterScheme := remote[idx+3:]
	withoutUser := afterScheme
	if at := strings.LastIndex(afterScheme, "@"); at >= 0 {
		withoutUser = afterScheme[at+1:]
	}
	hostPart, rest, found := strings.Cut(withoutUser, "/")
	hostPart, rest = strings.TrimSpace(hostPart), strings.TrimSpace(rest)
	if !found || hostPart == "" || rest == "" {
		return "", "", false
	}
	if h, _, cut := strings.Cut(hostPart, ":"); cut {
		hostPart = h
	}
	return hostPart, rest, true
}

func nonEmptySegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ErrNotAGitRepo is returned by callers (e.g. ShareGit) when the working
// directory isn't inside a git repository.
var ErrNotAGitRepo = errors.New("gitshare: current directory is not inside a git repository")

// ShareArgs mirrors the CLI's `opensession share --git` flags.
type ShareArgs struct {
	LocalHash     string // the os://src/local/<sha256> hash being shared
	Data          []byte // the object's bytes
	Remote        string // remote name or URL
	Ref           string // target ref, defaults to DefaultRef
	Path          string // repo-relative path, defaults to sessions/<hash>.jsonl
	Push          bool
	WorkDirectory string // cwd to resolve the repo root from
}

// ShareResult is what a successful ShareGit returns.
type ShareResult struct {
	URI          sourceuri.URI
	Remote       RemoteSpec
	Ref          string
	Path         string
	Pushed       bool
	CommitSHA    string
	PushCommand  string
}

// ShareGit runs the full git-share flow: locate the repo, validate the
// target path, write the blob at targetRef, mint the resulting source URI,
// and optionally push.
func ShareGit(ctx context.Context, args ShareArgs) (ShareResult, error) {
	repoRoot, ok := FindRepoRoot(args.WorkDirectory)
	if !ok {
		return ShareResult{}, ErrNotAGitRepo
	}

	targetRef := args.Ref
	if targetRef == "" {
		targetRef = DefaultRef
	}
	targetPath := args.Path
	if targetPath == "" {
		targetPath = fmt.Sprintf("sessions/%s.jsonl", args.LocalHash)
	}
	if err := ValidateRelPath(targetPath); err != nil {
		return ShareResult{}, err
	}

	remote, err := ResolveRemote(ctx, repoRoot, args.Remote)
	if err != nil {
		return ShareResult{}, err
	}

	commitMessage := fmt.Sprintf("opensession share %s", args.LocalHash)
	commitSHA, err := StoreBlobAtRef(ctx, repoRoot, targetRef, targetPath, args.Data, commitMessage)
	if err != nil {
		return ShareResult{}, fmt.Errorf("store git object: %w", err)
	}

	sharedURI := URIForRemote(remote.URL, targetRef, targetPath)
	pushCmd := fmt.Sprintf("git push %s %s:%s", remote.PushTarget, targetRef, targetRef)

	if args.Push {
		if err := Push(ctx, repoRoot, remote.PushTarget, targetRef); err != nil {
			return ShareResult{}, fmt.Errorf("push: %w", err)
		}
	}

	return ShareResult{
		URI:         sharedURI,
		Remote:      remote,
		Ref:         targetRef,
		Path:        targetPath,
		Pushed:      args.Push,
		CommitSHA:   commitSHA,
		PushCommand: pushCmd,
	}, nil
}
