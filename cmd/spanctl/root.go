package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/spanalloc/alloc"
	"github.com/joshuapare/spanalloc/internal/diag"
	"github.com/joshuapare/spanalloc/span/sizeclass"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	// Allocator flags
	pageSize    uint64
	maxPages    uint64
	indexKind   string
	sizeClasses string
)

var rootCmd = &cobra.Command{
	Use:   "spanctl",
	Short: "Inspect and exercise the spanalloc allocator",
	Long: `spanctl prints the size-class layout of the spanalloc allocator and runs
allocation workloads against it, reporting page source, page heap and
small-object statistics.

Allocator settings are read from SPANALLOC_* environment variables first;
flags override them.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose && !quiet {
			diag.Init(diag.Options{Enabled: true, Level: slog.LevelDebug, JSON: jsonOut})
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	rootCmd.PersistentFlags().Uint64Var(&pageSize, "page-size", 0, "Allocation page size in bytes (default: OS page size)")
	rootCmd.PersistentFlags().Uint64Var(&maxPages, "max-pages", 0, "Page budget of the span index")
	rootCmd.PersistentFlags().StringVar(&indexKind, "index", "", "Span index: radix or linear")
	rootCmd.PersistentFlags().
		StringVar(&sizeClasses, "size-classes", "", "Size-class table: default, fine or coarse")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// allocatorOptions merges the environment with the command-line flags.
func allocatorOptions() ([]alloc.Option, error) {
	opts, err := alloc.OptionsFromEnv()
	if err != nil {
		return nil, err
	}
	if pageSize != 0 {
		opts = append(opts, alloc.WithPageSize(uintptr(pageSize)))
	}
	if maxPages != 0 {
		opts = append(opts, alloc.WithMaxPages(uintptr(maxPages)))
	}
	if indexKind != "" {
		opts = append(opts, alloc.WithIndex(alloc.IndexKind(strings.ToLower(indexKind))))
	}
	if sizeClasses != "" {
		cfg, err := lookupSizeClasses(sizeClasses)
		if err != nil {
			return nil, err
		}
		opts = append(opts, alloc.WithSizeClasses(cfg))
	}
	return opts, nil
}

func lookupSizeClasses(name string) (sizeclass.Config, error) {
	switch strings.ToLower(name) {
	case "default":
		return sizeclass.ConfigDefault, nil
	case "fine":
		return sizeclass.ConfigFine, nil
	case "coarse":
		return sizeclass.ConfigCoarse, nil
	}
	return sizeclass.Config{}, fmt.Errorf("unknown size-class table %q (want default, fine or coarse)", name)
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
