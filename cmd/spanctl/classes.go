package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/spanalloc/alloc"
	"github.com/joshuapare/spanalloc/span/central"
	"github.com/joshuapare/spanalloc/span/sizeclass"
)

func init() {
	rootCmd.AddCommand(newClassesCmd())
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "Print the size-class table",
		Long: `The classes command prints every small-object size class: the class
size, the number of pages in a carved span and the number of objects
one span holds.

Example:
  spanctl classes
  spanctl classes --size-classes coarse --page-size 16384
  spanctl classes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses()
		},
	}
}

// ClassTable is the JSON form of the classes output.
type ClassTable struct {
	Config    string            `json:"config"`
	PageSize  uintptr           `json:"page_size"`
	Threshold uintptr           `json:"threshold"`
	Classes   []sizeclass.Class `json:"classes"`
}

func runClasses() error {
	opts, err := allocatorOptions()
	if err != nil {
		return err
	}
	a, err := alloc.New(opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	cat := a.Catalog()
	table := ClassTable{
		Config:    cat.String(),
		PageSize:  a.PageSize(),
		Threshold: cat.Threshold(),
		Classes:   cat.Classes(a.PageSize(), central.HeaderSize),
	}

	if jsonOut {
		return printJSON(table)
	}

	printVerbose("Size classes %s, page size %d\n", table.Config, table.PageSize)
	printInfo("%5s  %8s  %6s  %8s  %6s\n", "CLASS", "SIZE", "PAGES", "OBJECTS", "WASTE")
	for _, c := range table.Classes {
		spanBytes := c.SpanPages * table.PageSize
		waste := spanBytes - central.HeaderSize - c.Objects*c.Size
		printInfo("%5d  %8d  %6d  %8d  %6d\n", c.Index, c.Size, c.SpanPages, c.Objects, waste)
	}
	printInfo("\n%d classes, requests above %d bytes are served in whole pages\n",
		len(table.Classes), table.Threshold)
	return nil
}
