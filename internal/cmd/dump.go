package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/daimatz/jdex/internal/config"
	"github.com/daimatz/jdex/pkg/dump"
)

var (
	dumpVerboseFlag     bool
	dumpAnnotationsFlag bool
	dumpFilterFlag      string
	dumpColorFlag       string
)

var dumpCmd = &cobra.Command{
	Use:   "dump <input>",
	Short: "Print a readable summary of classfiles and dex files",
	Long: `Print the classes found in the input with their fields and methods.

--verbose adds the constant pool or ID tables and decoded code, and
--annotations adds annotations. --filter keeps only the classes whose
name matches a regular expression.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().BoolVarP(&dumpVerboseFlag, "verbose", "v", false, "Show pools and code")
	dumpCmd.Flags().BoolVar(&dumpAnnotationsFlag, "annotations", false, "Show annotations")
	dumpCmd.Flags().StringVar(&dumpFilterFlag, "filter", "", "Only classes whose name matches this regular expression")
	dumpCmd.Flags().StringVar(&dumpColorFlag, "color", "", "Colour output: auto, always or never")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	opts := dump.Options{Verbose: dumpVerboseFlag, Annotations: dumpAnnotationsFlag}
	if dumpFilterFlag != "" {
		re, err := regexp.Compile(dumpFilterFlag)
		if err != nil {
			return fmt.Errorf("invalid --filter: %w", err)
		}
		opts.Filter = re
	}
	mode := cfg.Color
	if dumpColorFlag != "" {
		mode = config.ColorMode(dumpColorFlag)
		switch mode {
		case config.ColorAuto, config.ColorAlways, config.ColorNever:
		default:
			return fmt.Errorf("invalid --color %q: use auto, always or never", dumpColorFlag)
		}
	}
	opts.Color = useColor(mode)

	entries, err := loadInput(args[0])
	if err != nil {
		return err
	}
	p := dump.New(cmd.OutOrStdout(), opts)
	classes := p.Classes()
	for _, e := range entries {
		if e.Class != nil {
			classes.Visit(e.Class)
			continue
		}
		if err := p.Dex(e.Dex); err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
	}
	return p.Err()
}
