package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/daimatz/jdex/internal/config"
	"github.com/daimatz/jdex/internal/loader"
	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/dex"
)

// Global flag variables
var (
	LogLevelFlag   string
	ConfigFlag     string
	NoChecksumFlag bool
	SignatureFlag  bool
)

// cfg is the effective configuration, loaded before any subcommand runs.
var cfg = config.DefaultConfig()

var rootCmd = &cobra.Command{
	Use:   "jdex",
	Short: "Read, edit and write JVM classfiles and dex files",
	Long: `jdex works on JVM classfiles and Android dex files: it disassembles them
to text, assembles text back to binaries, dumps them for reading, renames
classes and drops unused constants.

Inputs may be .class or .dex files, directories, or .jar, .zip, .apk and
.jmod archives.

Examples:
  jdex dump app.jar --filter '^com/example/'   Show the classes of a package
  jdex disasm classes.dex -o out/              One .d file per class
  jdex asm out/ --dex -o classes.dex           Assemble them again
  jdex rename lib.jar --map old/=new/ -o x.jar Move a package`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if ConfigFlag != "" {
			cfg, err = config.LoadFrom(ConfigFlag)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		if LogLevelFlag != "" {
			cfg.LogLevel = LogLevelFlag
		}
		if cmd.Flags().Changed("no-checksum") {
			cfg.VerifyChecksum = !NoChecksumFlag
		}
		if cmd.Flags().Changed("verify-signature") {
			cfg.VerifySignature = SignatureFlag
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		lvl, _ := logger.ParseLevel(cfg.LogLevel)
		logger.SetLevel(lvl)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&LogLevelFlag, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&ConfigFlag, "config", "", "Config file (default $HOME/.jdex/config.json)")
	rootCmd.PersistentFlags().BoolVar(&NoChecksumFlag, "no-checksum", false, "Do not verify dex checksums")
	rootCmd.PersistentFlags().BoolVar(&SignatureFlag, "verify-signature", false, "Also verify dex SHA-1 signatures")
}

func loadInput(path string) ([]loader.Entry, error) {
	return loader.Load(path, loader.Options{Dex: dex.Options{
		VerifyChecksum:  cfg.VerifyChecksum,
		VerifySignature: cfg.VerifySignature,
	}})
}

// saveOutput writes entries loaded from in to out. A directory input is
// written back as a directory tree even when it held a single entry.
func saveOutput(entries []loader.Entry, in, out string) error {
	if info, err := os.Stat(in); err == nil && info.IsDir() {
		switch strings.ToLower(filepath.Ext(out)) {
		case ".jar", ".zip", ".apk":
		default:
			return loader.SaveDir(entries, out)
		}
	}
	return loader.Save(entries, out)
}

// useColor resolves the configured colour mode against the terminal.
func useColor(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
