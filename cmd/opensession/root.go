// Command opensession is a thin cobra front-end: flag parsing and
// one-line error reporting only. Every operation it exposes is a call
// into internal/* — nothing here re-implements parsing, indexing,
// canonicalization, or transport. Grounded on the teacher's cmd/root.go
// (persistent flags, subcommand registration, Execute shape).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensession/opensession-go/internal/extract"
	"github.com/opensession/opensession-go/internal/gitshare"
	"github.com/opensession/opensession-go/internal/handoff"
	"github.com/opensession/opensession-go/internal/localindex"
	"github.com/opensession/opensession-go/internal/objectstore"
	"github.com/opensession/opensession-go/internal/obs"
	"github.com/opensession/opensession-go/internal/oscfg"
	"github.com/opensession/opensession-go/internal/parsers"
	"github.com/opensession/opensession-go/internal/parsers/amp"
	"github.com/opensession/opensession-go/internal/parsers/claudecode"
	"github.com/opensession/opensession-go/internal/parsers/cline"
	"github.com/opensession/opensession-go/internal/parsers/codex"
	"github.com/opensession/opensession-go/internal/parsers/cursor"
	"github.com/opensession/opensession-go/internal/parsers/gemini"
	"github.com/opensession/opensession-go/internal/parsers/hail"
	"github.com/opensession/opensession-go/internal/parsers/opencode"
)

// Version is set at build time via -ldflags
// "-X main.Version=v1.0.0".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "opensession",
	Short: "Capture, index, and share AI coding-assistant transcripts",
	Long: "opensession normalizes transcripts from Claude Code, Codex, Cursor, " +
		"Gemini CLI, Amp, Cline, and opencode into a canonical interaction " +
		"log, indexes them locally, and builds deterministic, content-" +
		"addressed handoff artifacts that can be shared via Git or synced " +
		"to a team server.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		obs.InitLogger(obs.Options{Debug: verbose})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.opensession/config.json5)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(handoffCmd())
	rootCmd.AddCommand(shareCmd())
	rootCmd.AddCommand(syncCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("opensession %s\n", Version)
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("OPENSESSION_CONFIG"); v != "" {
		return v
	}
	return oscfg.ExpandHome("~/.opensession/config.json5")
}

// env is the wiring a command needs to talk to every core component: the
// loaded config, the local index, the layered object stores, the parser
// registry, and a tracer. Built once per invocation by withEnv.
type env struct {
	cfg       *oscfg.Config
	store     *localindex.Store
	sources   *objectstore.SourceStore
	artifacts *objectstore.LayeredArtifactStore
	registry  *parsers.Registry
	scores    *extract.Registry
	builder   *handoff.Builder
	tracer    *obs.Tracer
}

// withEnv loads config, opens the local index and object stores, and runs
// fn with them wired together; everything is closed/flushed afterward
// regardless of fn's outcome, matching the teacher's defer-close discipline
// in cmd/gateway.go.
func withEnv(ctx context.Context, fn func(*env) error) error {
	cfg, err := oscfg.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tracer, err := obs.NewTracer(ctx, "opensession-cli")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(ctx); err != nil {
			slog.Warn("shutdown tracer", "error", err)
		}
	}()

	store, err := localindex.Open(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("open local index: %w", err)
	}
	defer store.Close()

	localRoot, globalRoot := resolveStoreRoots(cfg)
	sources := objectstore.NewSourceStore(localRoot)
	artifacts := objectstore.NewLayeredArtifactStore(localRoot, globalRoot)

	registry := defaultRegistry()
	scores := extract.NewRegistry(nil)
	builder := handoff.NewBuilder(registry, sources, artifacts)

	return fn(&env{
		cfg:       cfg,
		store:     store,
		sources:   sources,
		artifacts: artifacts,
		registry:  registry,
		scores:    scores,
		builder:   builder,
		tracer:    tracer,
	})
}

// resolveStoreRoots picks the repository-local object store root (the
// discovered git repo's .opensession directory, or the configured
// ObjectStore.Root when no repo is found) and the global, per-user root
// every lookup falls back to, per spec §4.C.
func resolveStoreRoots(cfg *oscfg.Config) (local, global string) {
	global = oscfg.ExpandHome("~/.local/share/opensession")
	if root, ok := gitshare.FindRepoRoot("."); ok {
		return root + "/.opensession", global
	}
	if cfg.ObjectStore.Root != "" {
		return cfg.ObjectStore.Root, global
	}
	return global, global
}

// defaultRegistry builds the process-global parser set: one zero-value
// Parser per vendor format, matching spec §4.D's enumerated list.
func defaultRegistry() *parsers.Registry {
	return parsers.NewRegistry(
		claudecode.Parser{},
		codex.Parser{},
		gemini.Parser{},
		amp.Parser{},
		cline.Parser{},
		cursor.Parser{},
		opencode.Parser{},
		hail.Parser{},
	)
}

// printError writes err to stderr as a one-line diagnostic
// ("opensession: <op>: <err>") and returns it unchanged, so cobra's RunE
// can both report and propagate the failure in one line. It prints plain
// text only; no structured (JSON) error envelope is emitted, whether or
// not stderr is a terminal.
func printError(op string, err error) error {
	fmt.Fprintf(os.Stderr, "opensession: %s: %v\n", op, err)
	return err
}
