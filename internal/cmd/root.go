package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sys-apps-go/search/common"
	"github.com/sys-apps-go/search/internal/config"
	"github.com/sys-apps-go/search/internal/logger"
	"github.com/sys-apps-go/search/internal/search"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates the search command.
func NewRootCommand() *cobra.Command {
	var (
		content     bool
		recursive   bool
		insensitive bool
		sortResults bool
		mute        bool
		counts      bool
		regex       bool
		linenos     bool
		skipHidden  bool
		debug       bool
		replace     string
		ignoreExts  []string
		threads     int
		procs       int
		configPath  string
		cpuProfile  string
		memProfile  string
	)

	cmd := &cobra.Command{
		Use:   "search WHAT [PATH...]",
		Short: "Find files by name or content. Does not follow symbolic links",
		Long: `Search walks one or more directory trees in parallel and prints every entry
whose name, or with --content whose body, contains WHAT.

PATH defaults to the current directory. Prefix WHAT with '\' when it starts
with '-' so it is not taken as a flag: "\--help" searches for "--help" and
"\\--help" for "\--help".

Defaults for --threads, --procs, --ignore-exts, --mute, --sort and
--skip-hidden may be stored in a YAML file (see --config).`,
		Args:          cobra.MinimumNArgs(1),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()

			if configPath == "" {
				configPath = config.DefaultPath()
			}
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg.MergeWithFlags(
				changedInt(flags, "threads", threads),
				changedInt(flags, "procs", procs),
				changedBool(flags, "mute", mute),
				changedBool(flags, "sort", sortResults),
				changedBool(flags, "skip-hidden", skipHidden),
				ignoreExts,
			)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Threads == 0 {
				cfg.Threads = common.DefaultThreads()
			}
			common.SetKernelThreads(cfg.Procs)

			opts := search.Options{
				What:        args[0],
				Paths:       args[1:],
				Content:     content,
				Recursive:   recursive,
				Insensitive: insensitive,
				Sort:        cfg.Sort,
				Mute:        cfg.Mute,
				Counts:      counts,
				Regex:       regex,
				Linenos:     linenos,
				IgnoreExts:  cfg.IgnoreExts,
				Threads:     cfg.Threads,
				SkipHidden:  cfg.SkipHidden,
			}
			if flags.Changed("replace") {
				opts.Replace = &replace
			}

			req, err := search.NewRequest(opts)
			if err != nil {
				return err
			}

			if cpuProfile != "" {
				stop, err := common.StartCPUProfile(cpuProfile)
				if err != nil {
					return err
				}
				defer stop()
			}

			log := logger.New(cmd.ErrOrStderr(), cfg.Mute, debug)
			log.Debugf("%d workers, %s predicate %q", req.Threads, req.What.Kind(), req.What.Pattern())
			if err := search.New(req, log, cmd.OutOrStdout()).Run(); err != nil {
				return err
			}

			if memProfile != "" {
				if err := common.WriteMemoryProfile(memProfile); err != nil {
					return fmt.Errorf("memory profile: %w", err)
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&content, "content", "c", false, "Search file contents")
	f.BoolVarP(&recursive, "recursive", "r", false, "Search directories recursively")
	f.BoolVarP(&insensitive, "insensitive", "i", false, "Case-insensitive search (ASCII only)")
	f.BoolVarP(&sortResults, "sort", "s", false, "Sort results")
	f.BoolVarP(&mute, "mute", "m", false, "Mute non-fatal errors")
	f.BoolVarP(&counts, "counts", "n", false, "Count the number of occurrences")
	f.BoolVarP(&regex, "regex", "x", false, "Use regex")
	f.BoolVarP(&linenos, "linenos", "l", false, "Print line numbers of occurrences")
	f.StringVarP(&replace, "replace", "p", "", "Text to replace matches with (implies --content)")
	f.StringSliceVar(&ignoreExts, "ignore-exts", nil, "File extensions whose content is never searched (repeatable)")
	f.IntVarP(&threads, "threads", "t", 0, "Number of worker threads (default: host parallelism)")
	f.IntVarP(&procs, "procs", "k", 0, "Number of kernel threads running workers (default: runtime default)")
	f.BoolVar(&skipHidden, "skip-hidden", false, "Skip dot-prefixed files and directories")
	f.BoolVar(&debug, "debug", false, "Print debug messages")
	f.StringVar(&configPath, "config", "", "Config file (default: $SEARCH_CONFIG or ~/.config/search/config.yaml)")
	f.StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	f.StringVar(&memProfile, "memprofile", "", "Write a heap profile to this file")

	return cmd
}

func changedInt(flags *pflag.FlagSet, name string, v int) *int {
	if !flags.Changed(name) {
		return nil
	}
	return &v
}

func changedBool(flags *pflag.FlagSet, name string, v bool) *bool {
	if !flags.Changed(name) {
		return nil
	}
	return &v
}
