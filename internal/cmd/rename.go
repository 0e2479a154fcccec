package cmd

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/rename"
	"github.com/daimatz/jdex/pkg/shrink"
)

var (
	renameOutFlag        string
	renameMapFlag        []string
	renameDropOpaqueFlag bool
)

var renameCmd = &cobra.Command{
	Use:   "rename <input>",
	Short: "Rename classes and packages",
	Long: `Rename classes everywhere they are used: class references, descriptors
and generic signatures. String literals are not touched.

Each --map takes old=new with internal names (com/example/Foo). A name
ending in "/" moves a whole package.`,
	Example: `  jdex rename lib.jar --map com/old/=com/new/ -o renamed.jar
  jdex rename classes.dex --map a/B=a/Better -o out.dex`,
	Args: cobra.ExactArgs(1),
	RunE: runRename,
}

func init() {
	renameCmd.Flags().StringVarP(&renameOutFlag, "output", "o", "", "Output file, directory or archive")
	renameCmd.Flags().StringArrayVar(&renameMapFlag, "map", nil, "Rename old=new (repeatable)")
	renameCmd.Flags().BoolVar(&renameDropOpaqueFlag, "drop-opaque", false, "Drop attributes that cannot be rewritten instead of failing")
	_ = renameCmd.MarkFlagRequired("output")
	_ = renameCmd.MarkFlagRequired("map")
	rootCmd.AddCommand(renameCmd)
}

func parseMappings(pairs []string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		from, to, ok := strings.Cut(pair, "=")
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid --map %q: want old=new", pair)
		}
		if strings.HasSuffix(from, "/") != strings.HasSuffix(to, "/") {
			return nil, fmt.Errorf("invalid --map %q: a package must map to a package", pair)
		}
		m[from] = to
	}
	return m, nil
}

func runRename(cmd *cobra.Command, args []string) error {
	m, err := parseMappings(renameMapFlag)
	if err != nil {
		return err
	}
	policy := rename.FromMap(m)
	entries, err := loadInput(args[0])
	if err != nil {
		return err
	}
	for i := range entries {
		e := &entries[i]
		if e.Dex != nil {
			if err := rename.Dex(e.Dex, policy); err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			continue
		}
		old, err := e.Class.ClassName()
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
		if err := rename.Class(e.Class, policy, shrink.Options{DropOpaque: renameDropOpaqueFlag}); err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
		e.Name = renamedEntry(e.Name, old, policy(old))
	}
	if err := saveOutput(entries, args[0], renameOutFlag); err != nil {
		return err
	}
	logger.Logger.Info("renamed", "entries", len(entries), "output", renameOutFlag)
	return nil
}

// renamedEntry moves a classfile entry along with its class. Entries whose
// path does not follow the class name keep their directory.
func renamedEntry(name, old, renamed string) string {
	if old == renamed {
		return name
	}
	if strings.HasSuffix(name, old+".class") {
		return strings.TrimSuffix(name, old+".class") + renamed + ".class"
	}
	return path.Join(path.Dir(name), path.Base(renamed)+".class")
}
