package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/julianshen/archscan/internal/config"
	"github.com/julianshen/archscan/internal/diff"
	"github.com/julianshen/archscan/internal/output"
	"github.com/julianshen/archscan/internal/scan"
	"github.com/julianshen/archscan/internal/scanner"
	"github.com/julianshen/archscan/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath   string
	outputFlag   string
	outDirFlag   string
	scannersFlag string
	verboseFlag  bool
	dryRunFlag   bool
	saveFlag     bool
	timeoutFlag  time.Duration
)

func versionString() string {
	return fmt.Sprintf("archscan %s (commit: %s, built: %s)", version, commit, date)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "archscan [path]",
		Short: "Scan a source tree into an architecture model",
		Long: "archscan discovers components, dependencies, API endpoints, data\n" +
			"entities, and message flows in a multi-ecosystem source tree and\n" +
			"merges them into a single architecture model.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), rootArg(args))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "per-plugin progress on stderr")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output format: json, markdown")
	rootCmd.Flags().StringVar(&outDirFlag, "out-dir", "", "directory for the generated report")
	rootCmd.Flags().StringVar(&scannersFlag, "scanners", "", "comma-separated scanner ids (empty = all)")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "list applicable scanners without scanning")
	rootCmd.Flags().BoolVar(&saveFlag, "save", false, "record this run in the scan history database")
	rootCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "overall scan timeout (0 = none)")

	rootCmd.AddCommand(scannersCmd(), diffCmd(), historyCmd(), validateCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func loadConfig(root string) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(root, config.DefaultFileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if outputFlag != "" {
		cfg.Output.Format = outputFlag
	}
	if outDirFlag != "" {
		cfg.Output.Dir = outDirFlag
	}
	if scannersFlag != "" {
		cfg.Scan.Scanners = splitList(scannersFlag)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// executeScan runs the full pipeline for a root and returns the rendered
// document plus the per-plugin results.
func executeScan(ctx context.Context, root string, cfg *config.Config) (*output.Document, []*scan.Result, error) {
	registry, err := scan.NewRegistry(scanner.DefaultPlugins(), cfg.Scan.Scanners)
	if err != nil {
		return nil, nil, err
	}

	opts := []scan.ContextOption{scan.WithPluginConfig(cfg.Scan.Options)}
	if prev := historySeed(root, cfg); prev != nil {
		opts = append(opts, scan.WithPreviousResults(prev))
	}
	sc, err := scan.NewContext(root, opts...)
	if err != nil {
		return nil, nil, err
	}

	results, err := scan.NewRunner(registry).Verbose(verboseFlag).Run(ctx, sc)
	if err != nil {
		return nil, nil, err
	}

	model, warnings := scan.Assembler{
		ProjectName:    cfg.Project.Name,
		ProjectVersion: cfg.Project.Version,
		Repositories:   cfg.Project.Repositories,
	}.Merge(results)

	doc := &output.Document{
		Model:       model,
		Statistics:  make(map[string]scan.Statistics, len(results)),
		Warnings:    warnings,
		GeneratedAt: time.Now(),
	}
	for _, res := range results {
		doc.Statistics[res.PluginID] = res.Stats
	}
	return doc, results, nil
}

// historySeed loads the components of the last recorded run for root, so a
// scan with only a subset of plugins enabled can still attribute findings
// to components discovered earlier. Seeding is best effort; a missing or
// unreadable history never blocks a scan.
func historySeed(root string, cfg *config.Config) map[string]*scan.Result {
	if !cfg.History.Enabled {
		return nil
	}
	s, err := store.NewStore(cfg.History.Path)
	if err != nil {
		return nil
	}
	defer s.Close()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	run, err := s.Latest(absRoot)
	if err != nil || run == nil || run.Model == nil {
		return nil
	}
	return map[string]*scan.Result{
		"history": {
			PluginID:   "history",
			Success:    true,
			Components: run.Model.Components,
		},
	}
}

func runScan(ctx context.Context, root string) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	if timeoutFlag > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeoutFlag)
		defer cancel()
	}

	if dryRunFlag {
		return runDryRun(root, cfg)
	}

	doc, _, err := executeScan(ctx, root, cfg)
	if err != nil {
		return err
	}

	formatter, err := output.ByName(cfg.Output.Format)
	if err != nil {
		return err
	}
	data, err := formatter.Format(doc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	outPath := filepath.Join(cfg.Output.Dir, "architecture."+formatter.Extension())
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("wrote %s\n", outPath)

	if saveFlag || cfg.History.Enabled {
		id, err := saveRun(root, cfg, doc)
		if err != nil {
			return err
		}
		fmt.Printf("saved run %s\n", id)
	}
	return nil
}

func runDryRun(root string, cfg *config.Config) error {
	registry, err := scan.NewRegistry(scanner.DefaultPlugins(), cfg.Scan.Scanners)
	if err != nil {
		return err
	}
	sc, err := scan.NewContext(root)
	if err != nil {
		return err
	}

	for _, p := range registry.Plugins() {
		files := sc.FindFiles(p.FilePatterns()...)
		status := "skip"
		if p.AppliesTo(sc) {
			status = "run"
		}
		fmt.Printf("%-12s %-30s %4d file(s)  %s\n", p.ID(), p.Name(), len(files), status)
	}
	return nil
}

func saveRun(root string, cfg *config.Config, doc *output.Document) (string, error) {
	s, err := store.NewStore(cfg.History.Path)
	if err != nil {
		return "", err
	}
	defer s.Close()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	return s.Save(store.Run{
		Root:    absRoot,
		Project: cfg.Project.Name,
		Model:   doc.Model,
		Stats:   doc.Statistics,
	})
}

func scannersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scanners",
		Short: "List the registered scanner plugins",
		Run: func(_ *cobra.Command, _ []string) {
			for _, p := range scanner.DefaultPlugins() {
				fmt.Printf("%-12s prio %3d  [%s]  %s\n",
					p.ID(), p.Priority(), strings.Join(p.Ecosystems(), ","), p.Name())
			}
		},
	}
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [path]",
		Short: "Scan now and compare against the last recorded run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := rootArg(args)
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			s, err := store.NewStore(cfg.History.Path)
			if err != nil {
				return err
			}
			defer s.Close()

			absRoot, err := filepath.Abs(root)
			if err != nil {
				absRoot = root
			}
			previous, err := s.Latest(absRoot)
			if err != nil {
				return err
			}
			if previous == nil {
				return fmt.Errorf("no recorded run for %s; scan with --save first", absRoot)
			}

			doc, _, err := executeScan(cmd.Context(), root, cfg)
			if err != nil {
				return err
			}

			report := diff.Compare(previous.Model, doc.Model)
			if report.Empty() {
				fmt.Println("no changes")
				return nil
			}
			for _, line := range report.Lines() {
				fmt.Println(line)
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [path]",
		Short: "List recorded scan runs for a root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root := rootArg(args)
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			s, err := store.NewStore(cfg.History.Path)
			if err != nil {
				return err
			}
			defer s.Close()

			absRoot, err := filepath.Abs(root)
			if err != nil {
				absRoot = root
			}
			runs, err := s.List(absRoot, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}
			for _, run := range runs {
				fmt.Printf("%s  %s  %s\n", run.ID, run.CreatedAt.Format(time.RFC3339), run.Project)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum runs to list (0 = all)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate the configuration and scanner selection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root := rootArg(args)
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if _, err := scan.NewRegistry(scanner.DefaultPlugins(), cfg.Scan.Scanners); err != nil {
				return err
			}
			if _, err := output.ByName(cfg.Output.Format); err != nil {
				return err
			}
			fmt.Println("configuration ok")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(versionString())
		},
	}
}
