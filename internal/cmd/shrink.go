package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/shrink"
)

var (
	shrinkOutFlag        string
	shrinkDropOpaqueFlag bool
)

var shrinkCmd = &cobra.Command{
	Use:   "shrink <input>",
	Short: "Drop unreferenced constants and ID table entries",
	Long: `Remove constant pool entries that nothing in a classfile refers to, and
compact the ID tables of dex files the same way.

A classfile carrying attributes this tool cannot parse is refused, since
those attributes may refer to constants. --drop-opaque removes such
attributes instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runShrink,
}

func init() {
	shrinkCmd.Flags().StringVarP(&shrinkOutFlag, "output", "o", "", "Output file, directory or archive")
	shrinkCmd.Flags().BoolVar(&shrinkDropOpaqueFlag, "drop-opaque", false, "Drop attributes that cannot be rewritten instead of failing")
	_ = shrinkCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(shrinkCmd)
}

func runShrink(cmd *cobra.Command, args []string) error {
	entries, err := loadInput(args[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Dex != nil {
			before := len(e.Dex.Strings)
			if err := e.Dex.Compact(); err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			logger.Logger.Info("compacted", "entry", e.Name, "strings_before", before, "strings_after", len(e.Dex.Strings))
			continue
		}
		stats, err := shrink.Class(e.Class, shrink.Options{DropOpaque: shrinkDropOpaqueFlag})
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
		logger.Logger.Info("shrunk", "entry", e.Name, "before", stats.Before, "after", stats.After)
		for _, name := range stats.Dropped {
			logger.Logger.Warn("dropped attribute", "entry", e.Name, "attribute", name)
		}
	}
	return saveOutput(entries, args[0], shrinkOutFlag)
}
