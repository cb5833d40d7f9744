package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/quidome/archivetools/pkg/bucket"
	"github.com/quidome/archivetools/pkg/pipeline"
	"github.com/quidome/archivetools/pkg/resolve"
)

type organizeOptions struct {
	granularity   string
	mode          string
	midnightShift int
	rename        bool
	copy          bool
	maxDepth      int
}

func newOrganizeCmd(opts *options) *cobra.Command {
	o := &organizeOptions{}

	cmd := &cobra.Command{
		Use:   "organize [folder] [destination]",
		Short: "Move media files into date folders",
		Long: "Move (or copy) every photo and video below folder into a day, week, month or year folder " +
			"named after its resolved date. The destination defaults to folder itself.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := bucket.ParseGranularity(o.granularity)
			if err != nil {
				return err
			}
			mode, err := resolve.ParseMode(o.mode)
			if err != nil {
				return err
			}
			if o.midnightShift < 0 || o.midnightShift > 23 {
				return fmt.Errorf("--midnight-shift must be between 0 and 23, got %d", o.midnightShift)
			}

			engine, err := opts.cfg.NewEngine(opts.logger)
			if err != nil {
				return err
			}

			run := pipeline.OrganizeOptions{
				Source:        args[0],
				Granularity:   g,
				Mode:          mode,
				MidnightShift: o.midnightShift,
				Namer:         opts.cfg.Namer(),
				Rename:        o.rename,
				Copy:          o.copy,
				DryRun:        opts.dryRun,
				Scan:          opts.cfg.ScanOptions(o.maxDepth),
				Workers:       opts.cfg.Workers,
			}
			if len(args) == 2 {
				run.Destination = args[1]
			}

			sum, err := pipeline.Organize(cmd.Context(), engine, run, opts.logger)
			return finish(cmd, opts, sum, nil, err)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.granularity, "granularity", "g", string(bucket.Month), "bucket size: day, week, month or year")
	modeFlag(cmd, &o.mode)
	midnightShiftFlag(f, &o.midnightShift)
	f.BoolVar(&o.rename, "rename", false, "add a _N suffix instead of skipping when a different file has the same name")
	f.BoolVar(&o.copy, "copy", false, "copy files and keep the originals")
	f.IntVar(&o.maxDepth, "max-depth", -1, "maximum directory depth to scan (-1 for unlimited)")

	return cmd
}

// midnightShiftFlag registers --midnight-shift. Given without a value it
// shifts by three hours; a value must be attached: --midnight-shift=5.
func midnightShiftFlag(f *pflag.FlagSet, dst *int) {
	f.IntVar(dst, "midnight-shift", 0, "count files taken before this hour as the previous day")
	f.Lookup("midnight-shift").NoOptDefVal = "3"
}
