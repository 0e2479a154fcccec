package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/asm/dasm"
	"github.com/daimatz/jdex/pkg/asm/jasm"
)

var disasmOutFlag string

var disasmCmd = &cobra.Command{
	Use:   "disasm <input>",
	Short: "Disassemble classfiles and dex files to text",
	Long: `Disassemble every classfile and dex class found in the input.

Classfiles become jasm text (.j) and dex classes become dasm text (.d).
With -o each class is written to its own file under the output directory,
named after the class. Without it everything goes to standard output.`,
	Args: cobra.ExactArgs(1),
	RunE: runDisasm,
}

func init() {
	disasmCmd.Flags().StringVarP(&disasmOutFlag, "output", "o", "", "Output directory")
	rootCmd.AddCommand(disasmCmd)
}

func runDisasm(cmd *cobra.Command, args []string) error {
	entries, err := loadInput(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	written := 0
	for _, e := range entries {
		if e.Class != nil {
			name, err := e.Class.ClassName()
			if err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			err = emit(out, name+".j", func(w io.Writer) error { return jasm.Disassemble(e.Class, w) })
			if err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			written++
			continue
		}
		for i := range e.Dex.Classes {
			c := &e.Dex.Classes[i]
			desc, err := e.Dex.TypeName(c.Class)
			if err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			err = emit(out, descriptorPath(desc)+".d", func(w io.Writer) error { return dasm.Disassemble(e.Dex, c, w) })
			if err != nil {
				return fmt.Errorf("%s: %s: %w", e.Name, desc, err)
			}
			written++
		}
	}
	logger.Logger.Info("disassembled", "classes", written)
	return nil
}

// emit writes one class either to stdout, separated by a blank line, or
// to its own file under the output directory.
func emit(stdout io.Writer, rel string, render func(io.Writer) error) error {
	if disasmOutFlag == "" {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return err
		}
		buf.WriteString("\n")
		_, err := stdout.Write(buf.Bytes())
		return err
	}
	p := filepath.Join(disasmOutFlag, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	return os.WriteFile(p, buf.Bytes(), 0o644)
}

// descriptorPath turns "Lcom/example/Foo;" into "com/example/Foo".
func descriptorPath(desc string) string {
	return strings.TrimSuffix(strings.TrimPrefix(desc, "L"), ";")
}
