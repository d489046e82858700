// Package main provides the artdep CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"artdep/internal/changes"
	"artdep/internal/config"
	"artdep/internal/detect"
	"artdep/internal/history"
	"artdep/internal/scan"
	"artdep/internal/store"
	"artdep/internal/watch"
)

var rootCmd = &cobra.Command{
	Use:   "artdep",
	Short: "Incremental artifact dependency and change-detection engine",
	Long:  `artdep maintains a dependency graph over a documentation/artifact corpus and computes which artifacts need reprocessing after a change, in dependency order.`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize artdep in the current repository",
	RunE:  runInit,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Artifact graph commands",
}

var graphBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the artifact graph from the working tree",
	RunE:  runGraphBuild,
}

var graphUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the cached graph from detected changes",
	RunE:  runGraphUpdate,
}

var graphExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the current graph to stdout",
	RunE:  runGraphExport,
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect changed files and compute the affected artifact set",
	RunE:  runDetect,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent engine runs",
	RunE:  runHistory,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the corpus and keep the graph current",
	RunE:  runWatch,
}

var (
	repoPath     string
	targetBranch string
	changedOnly  bool
	exportFormat string
	outputFormat string
	withStaged   bool
	withUnstaged bool
	withDiff     bool
	historyLimit int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", ".", "Path to the repository root")

	graphUpdateCmd.Flags().BoolVar(&changedOnly, "changed-only", true, "Only re-scan files reported changed by git")
	graphExportCmd.Flags().StringVar(&exportFormat, "format", "mermaid", "Export format: mermaid or json")

	detectCmd.Flags().StringVar(&targetBranch, "target", "", "Target branch for branch-diff collection (default from config)")
	detectCmd.Flags().BoolVar(&withStaged, "include-staged", true, "Include staged changes")
	detectCmd.Flags().BoolVar(&withUnstaged, "include-unstaged", true, "Include unstaged and untracked changes")
	detectCmd.Flags().BoolVar(&withDiff, "include-branch-diff", true, "Include the diff against the target branch")
	detectCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show")

	graphCmd.AddCommand(graphBuildCmd)
	graphCmd.AddCommand(graphUpdateCmd)
	graphCmd.AddCommand(graphExportCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	path := config.Path(repoPath)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("already initialized: %s exists", path)
	}

	if err := config.Default().Write(repoPath); err != nil {
		return err
	}

	fmt.Printf("Initialized artdep in %s/\n", config.Dir)
	return nil
}

func runGraphBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(repoPath)
	if err != nil {
		return err
	}

	builder := scan.NewBuilder(cfg, nil)
	g, err := builder.Build(cmd.Context(), repoPath)
	if err != nil {
		return err
	}

	engine := detect.NewEngine(repoPath, cfg, nil)
	if err := store.Save(g, engine.GraphPath()); err != nil {
		return err
	}

	fmt.Printf("Built artifact graph: %d nodes, %d edges\n", g.Len(), len(g.Edges()))
	return nil
}

func runGraphUpdate(cmd *cobra.Command, args []string) error {
	if !changedOnly {
		return runGraphBuild(cmd, args)
	}

	cfg, err := config.Load(repoPath)
	if err != nil {
		return err
	}

	opts := changes.DefaultOptions(repoPath, branchOrDefault(cfg))
	cs, err := changes.Detect(cmd.Context(), opts)
	if err != nil {
		return err
	}

	engine := detect.NewEngine(repoPath, cfg, nil)
	g, err := engine.LoadOrBuildGraph(cmd.Context())
	if err != nil {
		return err
	}

	builder := scan.NewBuilder(cfg, nil)
	if err := builder.Update(cmd.Context(), g, repoPath, cs.Files); err != nil {
		return err
	}
	if err := store.Save(g, engine.GraphPath()); err != nil {
		return err
	}

	fmt.Printf("Updated artifact graph from %d changed files: %d nodes, %d edges\n",
		len(cs.Files), g.Len(), len(g.Edges()))
	return nil
}

func runGraphExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(repoPath)
	if err != nil {
		return err
	}

	engine := detect.NewEngine(repoPath, cfg, nil)
	g, err := engine.LoadOrBuildGraph(cmd.Context())
	if err != nil {
		return err
	}

	switch exportFormat {
	case "mermaid":
		fmt.Print(g.Mermaid())
	case "json":
		data, err := os.ReadFile(engine.GraphPath())
		if err != nil {
			return fmt.Errorf("reading graph file: %w", err)
		}
		os.Stdout.Write(data)
	default:
		return fmt.Errorf("unknown export format %q (want mermaid or json)", exportFormat)
	}
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(repoPath)
	if err != nil {
		return err
	}

	branch := targetBranch
	if branch == "" {
		branch = branchOrDefault(cfg)
	}

	opts := changes.Options{
		RepoPath:          repoPath,
		TargetBranch:      branch,
		IncludeStaged:     withStaged,
		IncludeUnstaged:   withUnstaged,
		IncludeBranchDiff: withDiff,
		DiffTimeout:       changes.DefaultDiffTimeout,
	}

	engine := detect.NewEngine(repoPath, cfg, nil)
	started := time.Now()
	result, cs, err := engine.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	recordRun(result, cs, time.Since(started))

	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "text":
		printResult(result, cs, cfg)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", outputFormat)
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	ledger, err := history.Open(repoPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.Recent(historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No recorded runs")
		return nil
	}
	for _, r := range runs {
		ts := time.UnixMilli(r.CreatedAt).UTC().Format(time.RFC3339)
		fmt.Printf("%s  %-12s  head=%s target=%s changed=%d affected=%d %dms\n",
			ts, r.Kind, r.HeadSHA, r.TargetBranch, r.ChangedCount, r.AffectedCount, r.DurationMs)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(repoPath)
	if err != nil {
		return err
	}

	engine := detect.NewEngine(repoPath, cfg, nil)
	g, err := engine.LoadOrBuildGraph(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Watching %s (%d nodes); Ctrl-C to stop\n", repoPath, g.Len())
	err = watch.New(repoPath, cfg, nil).Run(cmd.Context(), g, engine.GraphPath())
	if err == context.Canceled {
		return nil
	}
	return err
}

func branchOrDefault(cfg *config.Config) string {
	if cfg.TargetBranch != "" {
		return cfg.TargetBranch
	}
	return "main"
}

// recordRun appends the run to the history ledger. Ledger failures are
// never fatal for a detection run.
func recordRun(result detect.Result, cs *changes.ChangeSet, took time.Duration) {
	ledger, err := history.Open(repoPath)
	if err != nil {
		slog.Warn("history ledger unavailable", "error", err)
		return
	}
	defer ledger.Close()

	run := history.Run{
		HeadSHA:      cs.HeadSHA,
		TargetBranch: cs.TargetBranch,
		Kind:         string(result.Kind()),
		ChangedCount: len(cs.Files),
		DurationMs:   took.Milliseconds(),
	}
	switch r := result.(type) {
	case *detect.FullRefresh:
		run.Reason = r.Reason
		run.AffectedCount = len(r.AllArtifacts)
	case *detect.Incremental:
		run.AffectedCount = len(r.AffectedArtifacts)
	}
	if err := ledger.Record(run); err != nil {
		slog.Warn("recording run failed", "error", err)
	}
}

func printResult(result detect.Result, cs *changes.ChangeSet, cfg *config.Config) {
	switch r := result.(type) {
	case *detect.FullRefresh:
		fmt.Println("Full refresh required")
		fmt.Printf("  reason: %s\n", r.Reason)
		fmt.Printf("  artifacts to reprocess: %d\n", len(r.AllArtifacts))
		for _, p := range r.AllArtifacts {
			fmt.Printf("    %s\n", p)
		}
	case *detect.Incremental:
		if len(r.ChangedFiles) == 0 {
			fmt.Println("No changes detected")
			return
		}
		fmt.Printf("Changed files (%d):\n", len(r.ChangedFiles))
		buckets := cs.Categorize(cfg.CategoryRules)
		for _, name := range categoryOrder(cfg) {
			files, ok := buckets[name]
			if !ok {
				continue
			}
			fmt.Printf("  [%s]\n", name)
			for _, f := range files {
				fmt.Printf("    %s\n", f)
			}
		}
		fmt.Printf("Affected artifacts, in processing order (%d):\n", len(r.AffectedArtifacts))
		for _, p := range r.AffectedArtifacts {
			fmt.Printf("  %s\n", p)
		}
	}
}

func categoryOrder(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.CategoryRules)+1)
	for _, rule := range cfg.CategoryRules {
		names = append(names, rule.Name)
	}
	return append(names, changes.OtherCategory)
}
