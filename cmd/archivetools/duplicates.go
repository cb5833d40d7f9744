package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/quidome/archivetools/pkg/dedupe"
	"github.com/quidome/archivetools/pkg/pipeline"
	"github.com/quidome/archivetools/pkg/resolve"
)

func newDuplicatesCmd(opts *options) *cobra.Command {
	var (
		file     string
		mode     string
		algo     string
		maxDepth int
	)

	cmd := &cobra.Command{
		Use:   "delete-duplicates [folder]",
		Short: "Delete byte-identical copies and keep one file per group",
		Long: "Group files with identical content and delete all but one of each group. The kept file " +
			"is chosen by resolved date: the oldest, or the newest with --mode newest. With --file only " +
			"copies of that file in its own folder are deleted and the file itself is kept.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := oneTarget(args, file); err != nil {
				return err
			}
			m, err := resolve.ParseMode(mode)
			if err != nil {
				return err
			}
			alg := opts.cfg.HashAlgorithm
			if algo != "" {
				if alg, err = dedupe.ParseAlgorithm(algo); err != nil {
					return err
				}
			}
			engine, err := opts.cfg.NewEngine(opts.logger)
			if err != nil {
				return err
			}

			run := pipeline.DuplicatesOptions{
				File:      file,
				Mode:      m,
				Algorithm: alg,
				Scan:      opts.cfg.ScanOptions(maxDepth),
				Workers:   opts.cfg.Workers,
				DryRun:    opts.dryRun,
			}
			if len(args) == 1 {
				run.Root = args[0]
			}

			sum, groups, err := pipeline.DeleteDuplicates(cmd.Context(), engine, run, opts.logger)
			return finish(cmd, opts, sum, groups, err)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "delete only copies of this file")
	modeFlag(cmd, &mode)
	f.StringVar(&algo, "algo", "", "hash algorithm: sha256, sha512, blake2b or blake2s (default from config)")
	f.IntVar(&maxDepth, "max-depth", -1, "maximum directory depth to scan (-1 for unlimited)")

	return cmd
}

var errTarget = errors.New("need exactly one of [folder] or --file")

// oneTarget checks that a command got a folder or a file, not both.
func oneTarget(args []string, file string) error {
	if (len(args) == 0) == (file == "") {
		return errTarget
	}
	return nil
}
