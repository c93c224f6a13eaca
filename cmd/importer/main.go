package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ekowhinson/HRMS-sub000/internal/config"
	"github.com/ekowhinson/HRMS-sub000/internal/core"
	"github.com/ekowhinson/HRMS-sub000/internal/logging"
	"github.com/ekowhinson/HRMS-sub000/internal/match"
	"github.com/ekowhinson/HRMS-sub000/internal/progress"
	"github.com/ekowhinson/HRMS-sub000/internal/schema"
	"github.com/ekowhinson/HRMS-sub000/internal/store/postgres"
)

var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Bulk file importer for HR reference and employee data",
	Long: `importer ingests delimited text and xlsx files, detects which entity
type each file holds, orders files by their dependencies and executes the
import in chunks with per-row error accounting.`,
	SilenceUsage: true,
}

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(entitiesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// readInputs loads each named file into memory, enforcing the size limit.
func readInputs(paths []string, maxSize int64) ([]core.FileInput, error) {
	inputs := make([]core.FileInput, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.Size() > maxSize {
			return nil, fmt.Errorf("%s: file is %d bytes, limit is %d", p, info.Size(), maxSize)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, core.FileInput{Name: filepath.Base(p), Data: data})
	}
	return inputs, nil
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Detect entity types and column mappings without importing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

			inputs, err := readInputs(args, cfg.Import.MaxFileSize)
			if err != nil {
				return err
			}

			// Analysis never touches the database, so no store is wired.
			orch := core.NewOrchestrator(nil, match.NewRuleMatcher(), nil)
			analysis := orch.Analyze(cmd.Context(), inputs)

			out, err := json.MarshalIndent(analysis, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	return cmd
}

func runCmd() *cobra.Command {
	var (
		mode      string
		actor     string
		reportDir string
	)

	cmd := &cobra.Command{
		Use:   "run <file>...",
		Short: "Import files into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

			if mode == "" {
				mode = cfg.Import.Mode
			}
			switch core.ImportMode(mode) {
			case core.ModeSkipExisting, core.ModeOverwrite, core.ModeMerge:
			default:
				return fmt.Errorf("invalid mode %q: must be skip, overwrite or merge", mode)
			}

			inputs, err := readInputs(args, cfg.Import.MaxFileSize)
			if err != nil {
				return err
			}
			core.ErrorCap = cfg.Import.ErrorCap

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Import.Timeout)
			defer cancel()

			pool, err := postgres.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns, cfg.Database.MaxConnLifetime)
			if err != nil {
				return err
			}
			defer pool.Close()

			orch := core.NewOrchestrator(
				postgres.New(pool),
				match.NewRuleMatcher(),
				progress.NewMemoryStore(cfg.Progress.Capacity, cfg.Progress.TTL),
				core.WithLimiter(core.NewImportLimiter(cfg.Import.MaxConcurrentFiles, cfg.Import.MaxWaitTime)),
				core.WithChunking(cfg.Import.ChunkSize, cfg.Import.BatchSize),
				core.WithLogger(slog.Default()),
			)

			batch, err := orch.CreateBatch(ctx, actor, inputs)
			if err != nil {
				return err
			}
			for _, w := range batch.Analysis.Warnings {
				slog.Warn(w)
			}

			report, err := orch.ExecuteBatch(ctx, batch.ID, core.ImportMode(mode))
			if err != nil {
				return err
			}

			printReport(cmd, report)
			if reportDir != "" {
				if err := writeErrorReports(reportDir, report); err != nil {
					return err
				}
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d file(s) failed", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "conflict behavior: skip, overwrite or merge (default from IMPORT_MODE)")
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor identifier recorded on the batch")
	cmd.Flags().StringVar(&reportDir, "error-reports", "", "directory to write per-file error report CSVs into")
	return cmd
}

func entitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the entity types files can be imported as",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, e := range schema.All() {
				deps := "none"
				if len(e.DependsOn) > 0 {
					deps = strings.Join(e.DependsOn, ", ")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s (key: %s, depends on: %s)\n",
					e.Name, e.Label, e.KeyField, deps)
			}
			return nil
		},
	}
}

func printReport(cmd *cobra.Command, report *core.BatchReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "batch %s finished in %s\n", report.BatchID, report.Duration.Round(time.Millisecond))
	for _, f := range report.Files {
		fmt.Fprintf(out, "  %-28s %-14s %-10s processed=%d success=%d errors=%d skipped=%d\n",
			f.FileName, f.Entity, f.Status, f.Processed, f.Succeeded, f.Errored, f.Skipped)
		if f.Err != "" {
			fmt.Fprintf(out, "    %s\n", f.Err)
		}
	}
	fmt.Fprintf(out, "total: processed=%d success=%d errors=%d skipped=%d\n",
		report.Total, report.Succeeded, report.Errored, report.Skipped)
}

// writeErrorReports writes one CSV per file that recorded row errors.
func writeErrorReports(dir string, report *core.BatchReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := range report.Files {
		f := &report.Files[i]
		if len(f.Errors) == 0 {
			continue
		}
		name := strings.TrimSuffix(f.FileName, filepath.Ext(f.FileName)) + ".errors.csv"
		out, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := core.WriteErrorReport(out, f); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
	return nil
}
