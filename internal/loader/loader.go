// Package loader finds the classfiles and dex files behind a command line
// path: a single file, a directory tree, or a jar, zip, apk or jmod
// archive. It also writes edited entries back out.
package loader

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/dex"
)

const classMagic = 0xCAFEBABE

// jmod files are zip archives behind a four byte "JM\x01\x00" header.
var jmodMagic = []byte{'J', 'M', 1, 0}

// Entry is one loaded file. Exactly one of Class and Dex is set. Name is
// the slash separated path relative to the loaded root, or the base name
// when a single file was loaded.
type Entry struct {
	Name  string
	Class *classfile.ClassFile
	Dex   *dex.File
}

// Options carries the dex integrity checks to apply on read.
type Options struct {
	Dex dex.Options
}

// Load reads every classfile and dex file found at p, sorted by name.
// Other files inside directories and archives are skipped.
func Load(p string, opts Options) ([]Entry, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if info.IsDir() {
		entries, err = loadDir(p, opts)
	} else {
		var data []byte
		if data, err = os.ReadFile(p); err != nil {
			return nil, err
		}
		entries, err = loadFile(filepath.Base(p), data, opts, true)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	logger.Logger.Debug("loaded input", "path", p, "entries", len(entries))
	return entries, nil
}

func loadDir(root string, opts Options) ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if !isCodeName(rel) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		es, err := loadFile(filepath.ToSlash(rel), data, opts, false)
		if err != nil {
			return err
		}
		out = append(out, es...)
		return nil
	})
	return out, err
}

func isCodeName(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".class", ".dex":
		return true
	}
	return false
}

// loadFile sniffs data by its magic. Archives are only opened at the top
// level, so a jar inside a jar is not searched.
func loadFile(name string, data []byte, opts Options, top bool) ([]Entry, error) {
	switch {
	case len(data) >= 4 && binary.BigEndian.Uint32(data) == classMagic:
		cf, err := classfile.ParseBytes(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return []Entry{{Name: name, Class: cf}}, nil
	case dex.IsDex(data):
		f, err := dex.ParseBytes(data, opts.Dex)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return []Entry{{Name: name, Dex: f}}, nil
	case top && bytes.HasPrefix(data, jmodMagic):
		return loadZip(name, data[len(jmodMagic):], "classes/", opts)
	case top && bytes.HasPrefix(data, []byte("PK")):
		return loadZip(name, data, "", opts)
	}
	return nil, fmt.Errorf("%w: %s is not a classfile, dex file or archive", errors.ErrBadMagic, name)
}

// loadZip reads the code entries of an archive. Only names under prefix
// are read, and the prefix is stripped from them.
func loadZip(name string, data []byte, prefix string, opts Options) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: opening archive: %w", name, err)
	}
	var out []Entry
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !strings.HasPrefix(zf.Name, prefix) || !isCodeName(zf.Name) {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: opening %s: %w", name, zf.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: reading %s: %w", name, zf.Name, err)
		}
		es, err := loadFile(strings.TrimPrefix(zf.Name, prefix), body, opts, false)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, es...)
	}
	return out, nil
}

// Bytes serializes the entry.
func (e *Entry) Bytes() ([]byte, error) {
	if e.Dex != nil {
		return e.Dex.Bytes()
	}
	return e.Class.Bytes()
}

// Save writes entries to out. A single entry goes to out as a file unless
// out is an existing directory; a .jar, .zip or .apk out becomes an
// archive; anything else is a directory holding the entries at their
// names.
func Save(entries []Entry, out string) error {
	switch strings.ToLower(filepath.Ext(out)) {
	case ".jar", ".zip", ".apk":
		return saveZip(entries, out)
	}
	if len(entries) == 1 {
		if info, err := os.Stat(out); err != nil || !info.IsDir() {
			return saveFile(&entries[0], out)
		}
		return saveFile(&entries[0], filepath.Join(out, path.Base(entries[0].Name)))
	}
	return SaveDir(entries, out)
}

// SaveDir writes every entry under dir at its name.
func SaveDir(entries []Entry, dir string) error {
	for i := range entries {
		if err := saveFile(&entries[i], filepath.Join(dir, filepath.FromSlash(entries[i].Name))); err != nil {
			return err
		}
	}
	return nil
}

func saveFile(e *Entry, p string) error {
	data, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func saveZip(entries []Entry, out string) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	for i := range entries {
		e := &entries[i]
		data, err := e.Bytes()
		if err != nil {
			f.Close()
			return fmt.Errorf("%s: %w", e.Name, err)
		}
		w, err := zw.Create(e.Name)
		if err == nil {
			_, err = w.Write(data)
		}
		if err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
