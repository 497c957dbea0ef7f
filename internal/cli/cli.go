// Package cli implements the querymigrate command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hemanthest/dataquerymigration/internal/config"
	"github.com/hemanthest/dataquerymigration/internal/logging"
	"github.com/hemanthest/dataquerymigration/internal/mapping"
	"github.com/hemanthest/dataquerymigration/internal/migrate"
	"github.com/hemanthest/dataquerymigration/internal/report"
	"github.com/hemanthest/dataquerymigration/internal/sheet"
	"github.com/hemanthest/dataquerymigration/internal/verify"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Execute runs the command tree and returns a process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRoot(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "querymigrate:", err)
		return 1
	}
	return 0
}

type rootOptions struct {
	configPath string
	strict     bool
	verbose    bool
}

func newRoot(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "querymigrate",
		Short:         "Migrate SQL SELECT queries from deprecated tables to a new schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "querymigrate.toml", "path to configuration file")
	pf.BoolVar(&opts.strict, "strict-config", false, "treat configuration warnings as errors")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newMigrateCmd(opts, stdout, stderr))
	root.AddCommand(newTemplateCmd(stdout))
	root.AddCommand(newVersionCmd(stdout))
	return root
}

func newMigrateCmd(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		outOverride    string
		workerOverride int
		verifyOverride bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run a migration batch and write the result sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := config.Load(opts.configPath, config.LoadOptions{Strict: opts.strict})
			if err != nil {
				return err
			}
			for _, warning := range res.Warnings {
				fmt.Fprintln(stderr, "warning:", warning)
			}

			plan := res.Plan
			if cmd.Flags().Changed("out") {
				plan.Out = outOverride
			}
			if cmd.Flags().Changed("workers") {
				plan.Workers = workerOverride
			}
			if cmd.Flags().Changed("verify") {
				plan.Verify = verifyOverride
			}
			if opts.verbose {
				plan.Verbose = true
			}
			return runMigrate(cmd.Context(), plan, stdout, stderr)
		},
	}
	cmd.Flags().StringVar(&outOverride, "out", "", "override the output sheet path")
	cmd.Flags().IntVar(&workerOverride, "workers", 0, "override the worker count")
	cmd.Flags().BoolVar(&verifyOverride, "verify", false, "override the post-rewrite smoke check")
	return cmd
}

func runMigrate(ctx context.Context, plan config.Plan, stdout, stderr io.Writer) error {
	logger := logging.NewSlogAdapter(logging.New(logging.Options{
		Verbose: plan.Verbose,
		Writer:  stderr,
	}))

	entries, err := loadMappings(plan)
	if err != nil {
		return err
	}
	records, err := loadQueries(plan.Queries)
	if err != nil {
		return err
	}
	logger.Info("migration starting",
		"mappings", len(entries), "queries", len(records), "workers", plan.Workers)

	started := time.Now()
	migrator := migrate.New(entries, migrate.WithLogger(logger))
	migrated, err := migrator.MigrateAll(ctx, records, plan.Workers)
	if err != nil {
		return fmt.Errorf("migrate batch: %w", err)
	}

	if plan.Verify {
		verifyBatch(ctx, migrated, logger)
	}

	out, err := os.Create(plan.Out)
	if err != nil {
		return fmt.Errorf("create output sheet: %w", err)
	}
	defer out.Close()
	if err := sheet.WriteQueries(out, migrated); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output sheet: %w", err)
	}

	return report.New(migrated, started, time.Now()).Render(stdout)
}

func loadMappings(plan config.Plan) ([]mapping.Entry, error) {
	f, err := os.Open(plan.Mappings)
	if err != nil {
		return nil, fmt.Errorf("open mapping file: %w", err)
	}
	defer f.Close()
	if plan.MappingFormat == config.FormatYAML {
		return sheet.ReadMappingsYAML(f)
	}
	return sheet.ReadMappings(f)
}

func loadQueries(paths []string) ([]migrate.QueryRecord, error) {
	var records []migrate.QueryRecord
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open query sheet: %w", err)
		}
		recs, err := sheet.ReadQueries(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}

// verifyBatch smoke-checks every impacted rewrite. Findings are logged, never
// returned: verification cannot fail a batch.
func verifyBatch(ctx context.Context, records []migrate.QueryRecord, logger logging.Logger) {
	for _, rec := range records {
		if !rec.Impacted || rec.UpdatedQuery == "" {
			continue
		}
		res := verify.Query(ctx, rec.UpdatedQuery)
		switch {
		case res.Warning != nil:
			logger.Warn("rewritten query failed verification", "query", rec.Name, "err", res.Warning)
		case res.Skipped:
			logger.Debug("verification skipped", "query", rec.Name)
		}
	}
}

func newTemplateCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:       "template (mapping|query)",
		Short:     "Print a blank sheet header for uploads",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"mapping", "query"},
		RunE: func(_ *cobra.Command, args []string) error {
			switch args[0] {
			case "mapping":
				fmt.Fprint(stdout, sheet.MappingTemplate())
			case "query":
				fmt.Fprint(stdout, sheet.QueryTemplate())
			}
			return nil
		},
	}
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the querymigrate version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(stdout, "querymigrate", Version)
		},
	}
}
