package main

import (
	"github.com/spf13/cobra"

	"github.com/quidome/archivetools/pkg/pipeline"
	"github.com/quidome/archivetools/pkg/resolve"
)

func newSetDatesCmd(opts *options) *cobra.Command {
	var (
		file     string
		mode     string
		force    bool
		maxDepth int
	)

	cmd := &cobra.Command{
		Use:   "set-dates [folder]",
		Short: "Write resolved dates into files and their timestamps",
		Long: "Write each file's resolved date into its EXIF or container metadata, its modification time " +
			"and the modification time of its sidecar files. Use --file to update a single file.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := oneTarget(args, file); err != nil {
				return err
			}
			m, err := resolve.ParseMode(mode)
			if err != nil {
				return err
			}
			engine, err := opts.cfg.NewEngine(opts.logger)
			if err != nil {
				return err
			}

			writer := opts.cfg.SetDatesOptions()
			writer.Force = force
			writer.DryRun = opts.dryRun

			run := pipeline.SetDatesOptions{
				File:    file,
				Mode:    m,
				Scan:    opts.cfg.ScanOptions(maxDepth),
				Workers: opts.cfg.Workers,
				Writer:  writer,
			}
			if len(args) == 1 {
				run.Root = args[0]
			}

			sum, err := pipeline.SetDates(cmd.Context(), engine, run, opts.logger)
			return finish(cmd, opts, sum, nil, err)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "update only this file")
	modeFlag(cmd, &mode)
	f.BoolVar(&force, "force", false, "rewrite file times even when they already match")
	f.IntVar(&maxDepth, "max-depth", -1, "maximum directory depth to scan (-1 for unlimited)")

	return cmd
}
