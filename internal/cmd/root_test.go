package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/jdex/internal/loader"
)

const helloSrc = `.class public super demo/Hello
.super java/lang/Object

.method public static answer ()I
    bipush 42
    ireturn
.end method
`

const pickSrc = `.class public LPick;
.super Ljava/lang/Object;

.method public static pick(I)I
    .registers 2
    if-eqz p0, zero
    const/4 v0, 1
    return v0
zero:
    const/4 v0, 0
    return v0
.end method
`

// run executes the command line in a clean state and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// flags keep their values between Execute calls on the same command tree
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func writeFile(t *testing.T, p, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "jdex version dev\n", out)
}

func TestRootRequiresSubcommandArgs(t *testing.T) {
	_, err := run(t, "dump")
	assert.Error(t, err)
}

func TestClassRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "src", "Hello.j"), helloSrc)
	classes := filepath.Join(dir, "classes")

	_, err := run(t, "asm", src, "-o", classes)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(classes, "demo", "Hello.class"))

	t.Run("disasm", func(t *testing.T) {
		out, err := run(t, "disasm", filepath.Join(classes, "demo", "Hello.class"))
		require.NoError(t, err)
		assert.Contains(t, out, ".class public super demo/Hello\n")
		assert.Contains(t, out, "bipush 42")

		outDir := filepath.Join(dir, "text")
		_, err = run(t, "disasm", classes, "-o", outDir)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(outDir, "demo", "Hello.j"))
	})

	t.Run("dump", func(t *testing.T) {
		out, err := run(t, "dump", classes, "--color", "never")
		require.NoError(t, err)
		assert.Contains(t, out, "public class demo/Hello extends java/lang/Object\n")
		assert.NotContains(t, out, "\x1b[")

		out, err = run(t, "dump", classes, "--color", "always", "-v")
		require.NoError(t, err)
		assert.Contains(t, out, "\x1b[")
		assert.Contains(t, out, "bipush")

		out, err = run(t, "dump", classes, "--filter", "^other/")
		require.NoError(t, err)
		assert.NotContains(t, out, "demo/Hello")
	})

	t.Run("rename", func(t *testing.T) {
		renamed := filepath.Join(dir, "renamed")
		_, err := run(t, "rename", classes, "--map", "demo/=sample/", "-o", renamed)
		require.NoError(t, err)
		entries, err := loader.Load(renamed, loader.Options{})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "sample/Hello.class", entries[0].Name)
		name, err := entries[0].Class.ClassName()
		require.NoError(t, err)
		assert.Equal(t, "sample/Hello", name)
	})

	t.Run("shrink into jar", func(t *testing.T) {
		jar := filepath.Join(dir, "out.jar")
		_, err := run(t, "shrink", classes, "-o", jar)
		require.NoError(t, err)
		entries, err := loader.Load(jar, loader.Options{})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "demo/Hello.class", entries[0].Name)
	})
}

func TestDexRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "smali", "Pick.d"), pickSrc)
	dexPath := filepath.Join(dir, "classes.dex")

	_, err := run(t, "asm", filepath.Join(dir, "smali"), "--dex", "-o", dexPath)
	require.NoError(t, err)

	out, err := run(t, "dump", dexPath, "--verbose", "--color", "never")
	require.NoError(t, err)
	assert.Contains(t, out, "public class LPick; extends Ljava/lang/Object;\n")
	assert.Contains(t, out, "0000: if-eqz v1, 0004\n")

	outDir := filepath.Join(dir, "text")
	_, err = run(t, "disasm", dexPath, "-o", outDir)
	require.NoError(t, err)
	text, err := os.ReadFile(filepath.Join(outDir, "Pick.d"))
	require.NoError(t, err)
	assert.Contains(t, string(text), ".class public LPick;\n")

	renamed := filepath.Join(dir, "renamed.dex")
	_, err = run(t, "rename", dexPath, "--map", "Pick=Chosen", "-o", renamed)
	require.NoError(t, err)
	out, err = run(t, "dump", renamed)
	require.NoError(t, err)
	assert.Contains(t, out, "class LChosen;")
	assert.NotContains(t, out, "LPick;")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, filepath.Join(dir, "Bad.j"), ".class public Bad\n.super java/lang/Object\nbogus\n")
	hello := writeFile(t, filepath.Join(dir, "Hello.j"), helloSrc)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"assembler error names the file", []string{"asm", bad, "-o", filepath.Join(dir, "o1")}, "Bad.j:"},
		{"no sources", []string{"asm", dir, "--dex", "-o", filepath.Join(dir, "x.dex")}, "no .d files"},
		{"bad target", []string{"asm", hello, "--target", "nope", "-o", filepath.Join(dir, "o2")}, "invalid target"},
		{"bad mapping", []string{"rename", hello, "--map", "demo", "-o", filepath.Join(dir, "o3")}, "want old=new"},
		{"package to class", []string{"rename", hello, "--map", "demo/=x", "-o", filepath.Join(dir, "o4")}, "package"},
		{"bad filter", []string{"dump", hello, "--filter", "("}, "invalid --filter"},
		{"bad color", []string{"dump", dir, "--color", "rainbow"}, "invalid --color"},
		{"bad log level", []string{"--log-level", "loud", "version"}, "invalid config"},
		{"missing input", []string{"dump", filepath.Join(dir, "missing")}, "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRenamedEntry(t *testing.T) {
	tests := []struct {
		name, old, renamed, want string
	}{
		{"p/A.class", "p/A", "q/B", "q/B.class"},
		{"lib/p/A.class", "p/A", "q/B", "lib/q/B.class"},
		{"A.class", "p/A", "q/B", "B.class"},
		{"x/Odd.class", "p/A", "q/B", "x/B.class"},
		{"p/A.class", "p/A", "p/A", "p/A.class"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, renamedEntry(tt.name, tt.old, tt.renamed), "renaming %s", tt.name)
	}
}
