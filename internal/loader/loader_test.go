package loader

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/pkg/asm/dasm"
	"github.com/daimatz/jdex/pkg/asm/jasm"
	"github.com/daimatz/jdex/pkg/dex"
)

func classBytes(t *testing.T, name string) []byte {
	t.Helper()
	cf, err := jasm.Assemble("t.j", []byte(".class public "+name+"\n.super java/lang/Object\n"), jasm.Options{})
	require.NoError(t, err)
	b, err := cf.Bytes()
	require.NoError(t, err)
	return b
}

func dexBytes(t *testing.T, name string) []byte {
	t.Helper()
	f := dex.NewFile()
	_, err := dasm.Assemble(f, "t.d", []byte(".class public "+name+"\n"), dasm.Options{})
	require.NoError(t, err)
	require.NoError(t, f.Compact())
	b, err := f.Bytes()
	require.NoError(t, err)
	return b
}

func zipBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func write(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	a := classBytes(t, "p/A")
	b := classBytes(t, "p/B")
	d := dexBytes(t, "LD;")

	tests := []struct {
		name  string
		path  string
		want  []string
		dexes int
	}{
		{"class file", write(t, filepath.Join(dir, "one", "A.class"), a), []string{"A.class"}, 0},
		{"dex file", write(t, filepath.Join(dir, "classes.dex"), d), []string{"classes.dex"}, 1},
		{"jar", write(t, filepath.Join(dir, "lib.jar"), zipBytes(t, map[string][]byte{
			"p/A.class": a, "p/B.class": b, "META-INF/MANIFEST.MF": []byte("Manifest-Version: 1.0\n"),
		})), []string{"p/A.class", "p/B.class"}, 0},
		{"apk", write(t, filepath.Join(dir, "app.apk"), zipBytes(t, map[string][]byte{
			"classes.dex": d, "res/x.png": {0x89},
		})), []string{"classes.dex"}, 1},
		{"jmod", write(t, filepath.Join(dir, "m.jmod"), append([]byte{'J', 'M', 1, 0}, zipBytes(t, map[string][]byte{
			"classes/p/A.class": a, "lib/p/B.class": b,
		})...)), []string{"p/A.class"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Load(tt.path, Options{Dex: dex.DefaultOptions()})
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(entries))
			dexes := 0
			for _, e := range entries {
				if e.Dex != nil {
					dexes++
				} else {
					assert.NotNil(t, e.Class)
				}
			}
			assert.Equal(t, tt.dexes, dexes)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "p", "B.class"), classBytes(t, "p/B"))
	write(t, filepath.Join(dir, "p", "A.class"), classBytes(t, "p/A"))
	write(t, filepath.Join(dir, "out", "classes.dex"), dexBytes(t, "LD;"))
	write(t, filepath.Join(dir, "README"), []byte("ignored"))

	entries, err := Load(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"out/classes.dex", "p/A.class", "p/B.class"}, names(entries))
	name, err := entries[1].Class.ClassName()
	require.NoError(t, err)
	assert.Equal(t, "p/A", name)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.class"), Options{})
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	_, err = Load(write(t, filepath.Join(dir, "junk.bin"), []byte("junk")), Options{})
	assert.True(t, errors.Is(err, jerrors.ErrBadMagic), "got %v", err)

	// 壊れた dex はチェックサムで弾かれる
	d := dexBytes(t, "LD;")
	d[len(d)-1] ^= 0xFF
	_, err = Load(write(t, filepath.Join(dir, "bad.dex"), d), Options{Dex: dex.DefaultOptions()})
	assert.True(t, errors.Is(err, jerrors.ErrChecksum), "got %v", err)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	entries, err := Load(write(t, filepath.Join(dir, "lib.jar"), zipBytes(t, map[string][]byte{
		"p/A.class": classBytes(t, "p/A"), "p/B.class": classBytes(t, "p/B"),
	})), Options{})
	require.NoError(t, err)

	t.Run("directory", func(t *testing.T) {
		out := filepath.Join(dir, "outdir")
		require.NoError(t, Save(entries, out))
		again, err := Load(out, Options{})
		require.NoError(t, err)
		assert.Equal(t, names(entries), names(again))
	})

	t.Run("archive", func(t *testing.T) {
		out := filepath.Join(dir, "out.jar")
		require.NoError(t, Save(entries, out))
		again, err := Load(out, Options{})
		require.NoError(t, err)
		assert.Equal(t, names(entries), names(again))
	})

	t.Run("single file", func(t *testing.T) {
		out := filepath.Join(dir, "single", "X.class")
		require.NoError(t, Save(entries[:1], out))
		again, err := Load(out, Options{})
		require.NoError(t, err)
		require.Len(t, again, 1)
		name, err := again[0].Class.ClassName()
		require.NoError(t, err)
		assert.Equal(t, "p/A", name)
	})
}
