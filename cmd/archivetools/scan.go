package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/quidome/archivetools/pkg/scan"
)

func newScanCmd(opts *options) *cobra.Command {
	var (
		maxDepth int
		hidden   bool
		long     bool
	)

	scanCmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "Scan a directory for media files",
		Long:  "Scan a directory and print all media files found (relative to the scan root).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directory := args[0]

			scanOpts := opts.cfg.ScanOptions(maxDepth)
			scanOpts.IncludeHidden = hidden

			records, err := scan.ScanRecords(os.DirFS(directory), ".", scanOpts)
			if err != nil {
				return err
			}

			if opts.json {
				return printJSON(cmd, records)
			}
			for _, r := range records {
				if long {
					cmd.Printf("%s\t%s\t%s\n", r.ModTime.Format("2006-01-02 15:04:05"), humanize.IBytes(uint64(r.FileSizeBytes)), r.Path)
					continue
				}
				cmd.Println(r.Path)
			}

			opts.logger.Debug("scan finished", "dir", directory, "files", len(records))
			return nil
		},
	}

	f := scanCmd.Flags()
	f.IntVar(&maxDepth, "max-depth", -1, "maximum recursion depth (0 = no recursion)")
	f.BoolVar(&hidden, "hidden", false, "include hidden files and folders")
	f.BoolVarP(&long, "long", "l", false, "also print modification time and size")

	return scanCmd
}
