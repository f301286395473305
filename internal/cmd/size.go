package cmd

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/sys-apps-go/search/common"
	"github.com/sys-apps-go/search/internal/fsize"
	"github.com/sys-apps-go/search/internal/logger"
)

// NewSizeCommand creates the fsize command, which reports the size of files
// and directories.
func NewSizeCommand() *cobra.Command {
	var (
		opts  fsize.Options
		mute  bool
		regex string
	)

	cmd := &cobra.Command{
		Use:   "fsize [PATH...]",
		Short: "Report the size of files and directories",
		Long: `Fsize prints the size of each PATH. A directory counts the regular files
directly inside it, or every regular file beneath it with --recursive.
Symbolic links are not followed.

With --regex only matching names below each PATH are counted, and only
subdirectories whose name followed by "/" matches are entered.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Paths = args
			if opts.FilesOnly && opts.DirsOnly {
				return errors.New("--files and --dirs are mutually exclusive")
			}
			if regex != "" {
				re, err := regexp.Compile(regex)
				if err != nil {
					return fmt.Errorf("invalid regex: %w", err)
				}
				opts.Match = re
			}
			if opts.Threads <= 0 {
				opts.Threads = common.DefaultThreads()
			}
			log := logger.New(cmd.ErrOrStderr(), mute, false)
			return fsize.Run(opts, log, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.Recursive, "recursive", "r", false, "Include subdirectories")
	f.BoolVar(&opts.Total, "total", false, "Print the total size of all paths")
	f.BoolVar(&opts.SI, "si", false, "Use powers of 1000 (kB, MB) instead of 1024 (KiB, MiB)")
	f.BoolVarP(&opts.Bytes, "bytes", "b", false, "Print sizes in bytes")
	f.IntVarP(&opts.Threads, "threads", "t", 0, "Number of worker threads (default: host parallelism)")
	f.BoolVarP(&mute, "mute", "m", false, "Mute non-fatal errors")
	f.StringVar(&regex, "regex", "", "Regular expression entry names must match to be counted")
	f.BoolVar(&opts.Exclude, "excl", false, "Exclude names matching --regex instead")
	f.BoolVar(&opts.FilesOnly, "files", false, "Apply --regex to files only")
	f.BoolVar(&opts.DirsOnly, "dirs", false, "Apply --regex to directories only")

	return cmd
}
