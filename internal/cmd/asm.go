package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daimatz/jdex/internal/loader"
	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/asm/dasm"
	"github.com/daimatz/jdex/pkg/asm/jasm"
	"github.com/daimatz/jdex/pkg/dex"
)

var (
	asmOutFlag     string
	asmDexFlag     bool
	asmTargetFlag  string
	asmLenientFlag bool
)

var asmCmd = &cobra.Command{
	Use:   "asm <source>",
	Short: "Assemble jasm or dasm text into classfiles or a dex file",
	Long: `Assemble a source file, or every source file under a directory.

By default .j files are assembled into classfiles, written under the output
directory at their class names, or into an archive when the output ends in
.jar or .zip. With --dex the .d files are assembled together into a single
dex file.`,
	Example: `  jdex asm Hello.j -o classes/
  jdex asm src/ --target 17 -o app.jar
  jdex asm smali/ --dex -o classes.dex`,
	Args: cobra.ExactArgs(1),
	RunE: runAsm,
}

func init() {
	asmCmd.Flags().StringVarP(&asmOutFlag, "output", "o", "", "Output directory, archive or dex file")
	asmCmd.Flags().BoolVar(&asmDexFlag, "dex", false, "Assemble .d files into a dex file")
	asmCmd.Flags().StringVar(&asmTargetFlag, "target", "", "Java release to target, e.g. 1.8 or 17")
	asmCmd.Flags().BoolVar(&asmLenientFlag, "lenient", false, "Turn recoverable source errors into warnings")
	rootCmd.AddCommand(asmCmd)
}

func runAsm(cmd *cobra.Command, args []string) error {
	ext := ".j"
	if asmDexFlag {
		ext = ".d"
	}
	files, err := sources(args[0], ext)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s files found in %s", ext, args[0])
	}
	lenient := cfg.Lenient || asmLenientFlag
	if asmDexFlag {
		return assembleDex(files, lenient)
	}
	return assembleClasses(files, lenient)
}

func assembleClasses(files []string, lenient bool) error {
	opts := jasm.Options{Target: asmTargetFlag, Lenient: lenient, Warn: logger.Warn}
	entries := make([]loader.Entry, 0, len(files))
	for _, p := range files {
		src, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		cf, err := jasm.Assemble(p, src, opts)
		if err != nil {
			return err
		}
		name, err := cf.ClassName()
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		entries = append(entries, loader.Entry{Name: name + ".class", Class: cf})
	}
	out := asmOutFlag
	if out == "" {
		out = "."
	}
	var err error
	switch strings.ToLower(filepath.Ext(out)) {
	case ".jar", ".zip":
		err = loader.Save(entries, out)
	case ".class":
		if len(entries) != 1 {
			return fmt.Errorf("%d classes cannot be written to the single file %s", len(entries), out)
		}
		err = loader.Save(entries, out)
	default:
		err = loader.SaveDir(entries, out)
	}
	if err != nil {
		return err
	}
	logger.Logger.Info("assembled", "classes", len(entries), "output", out)
	return nil
}

func assembleDex(files []string, lenient bool) error {
	opts := dasm.Options{Lenient: lenient, Warn: logger.Warn}
	f := dex.NewFile()
	var classes []string
	for _, p := range files {
		src, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		names, err := dasm.Assemble(f, p, src, opts)
		if err != nil {
			return err
		}
		classes = append(classes, names...)
	}
	if err := f.Compact(); err != nil {
		return err
	}
	out := asmOutFlag
	if out == "" {
		out = "classes.dex"
	}
	if err := loader.Save([]loader.Entry{{Name: filepath.Base(out), Dex: f}}, out); err != nil {
		return err
	}
	logger.Logger.Info("assembled", "classes", len(classes), "output", out)
	return nil
}

// sources lists the files under p with the given extension, sorted. A
// plain file is taken as is.
func sources(p, ext string) ([]string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{p}, nil
	}
	var out []string
	err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.EqualFold(filepath.Ext(path), ext) {
			out = append(out, path)
		}
		return err
	})
	sort.Strings(out)
	return out, err
}
