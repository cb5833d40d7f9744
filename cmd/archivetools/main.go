package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/quidome/archivetools/pkg/config"
	"github.com/quidome/archivetools/pkg/logging"
	"github.com/quidome/archivetools/pkg/report"
	"github.com/quidome/archivetools/pkg/resolve"
)

const version = "0.2.0"

type options struct {
	verbose    bool
	dryRun     bool
	json       bool
	timestamps bool
	envFiles   []string
	workers    int

	cfg    config.Config
	logger *log.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "archivetools",
		Short: "Date-aware tools for media archives",
		Long: "archivetools organizes photos and videos into date buckets, writes resolved dates back into files " +
			"and removes duplicate copies. Dates come from EXIF, video containers, sidecar files, file and " +
			"folder names and filesystem timestamps.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFiles...)
			if err != nil {
				return err
			}
			if opts.workers > 0 {
				cfg.Workers = opts.workers
			}
			opts.cfg = cfg
			opts.logger = logging.New(cmd.ErrOrStderr(), logging.Options{
				Verbose:    opts.verbose,
				Timestamps: opts.timestamps,
				Prefix:     cmd.Name(),
			})
			return nil
		},
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVarP(&opts.dryRun, "dry-run", "n", false, "perform a dry run without making changes")
	pf.BoolVar(&opts.json, "json", false, "print results as JSON")
	pf.BoolVar(&opts.timestamps, "log-time", false, "prefix log lines with the time")
	pf.StringSliceVar(&opts.envFiles, "env-file", nil, "load settings from these .env files (default .env)")
	pf.IntVar(&opts.workers, "workers", 0, "number of files processed in parallel (default: number of CPUs)")

	rootCmd.AddCommand(newOrganizeCmd(opts))
	rootCmd.AddCommand(newSetDatesCmd(opts))
	rootCmd.AddCommand(newDuplicatesCmd(opts))
	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newResolveCmd(opts))

	return rootCmd
}

// modeFlag registers --mode on cmd.
func modeFlag(cmd *cobra.Command, dst *string) {
	names := make([]string, 0, len(resolve.Modes()))
	for _, m := range resolve.Modes() {
		names = append(names, string(m))
	}
	cmd.Flags().StringVarP(dst, "mode", "m", string(resolve.Default),
		fmt.Sprintf("date resolution mode %v", names))
}

// finish prints the summary, as JSON with --json, and keeps the command error.
func finish(cmd *cobra.Command, opts *options, sum *report.Summary, results any, err error) error {
	if sum == nil {
		return err
	}
	if opts.json {
		payload := map[string]any{"summary": sum}
		if results != nil {
			payload["results"] = results
		}
		return errors.Join(err, printJSON(cmd, payload))
	}
	for _, line := range sum.Lines() {
		cmd.Println(line)
	}
	return err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
