package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quidome/archivetools/pkg/pipeline"
	"github.com/quidome/archivetools/pkg/resolve"
)

func newResolveCmd(opts *options) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "resolve [files...]",
		Short: "Show every date found for files and the one that wins",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := resolve.ParseMode(mode)
			if err != nil {
				return err
			}
			engine, err := opts.cfg.NewEngine(opts.logger)
			if err != nil {
				return err
			}

			inspections, err := pipeline.Inspect(cmd.Context(), engine, args, m, opts.cfg.Workers)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd, inspections)
			}

			for _, in := range inspections {
				cmd.Println(in.Path)
				if len(in.Sidecars) > 0 {
					cmd.Printf("  %-12s %s\n", "sidecars", strings.Join(in.Sidecars, ", "))
				}
				for _, o := range in.Observations {
					cmd.Printf("  %-12s %s\n", o.Source, o.Time.Format(time.RFC3339))
				}
				cmd.Printf("  %-12s %s\n", "=> "+string(m), describe(in.Result))
			}
			return nil
		},
	}

	modeFlag(cmd, &mode)
	return cmd
}

func describe(r resolve.Result) string {
	if !r.Found {
		return "unresolved"
	}
	s := r.CreatedAt.Format(time.RFC3339) + " (" + string(r.Source) + ")"
	if r.FellBack {
		s += " fallback"
	}
	return s
}
