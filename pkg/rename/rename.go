// Package rename renames classes throughout a class file or dex file.
//
// Every reference to a UTF-8 entry is classified by how it is used: as a
// class name, a descriptor or a signature. Only those uses are rewritten,
// so a string literal that happens to spell a class name is left alone.
// Rewritten uses are pointed at new entries rather than edited in place,
// and the pool is shrunk afterwards to drop what became unreferenced.
package rename

import (
	"strings"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/shrink"
)

// Policy maps an internal class name (java/lang/Object) to its new name.
type Policy func(name string) string

// Identity leaves every name unchanged.
func Identity(name string) string { return name }

// FromMap renames the classes named in m and leaves the rest alone. A key
// ending in "/" renames a whole package prefix; the longest matching
// prefix wins.
func FromMap(m map[string]string) Policy {
	return func(name string) string {
		if n, ok := m[name]; ok {
			return n
		}
		best := ""
		for from := range m {
			if strings.HasSuffix(from, "/") && strings.HasPrefix(name, from) && len(from) > len(best) {
				best = from
			}
		}
		if best == "" {
			return name
		}
		return m[best] + name[len(best):]
	}
}

// Class applies p to every class name used by cf and then shrinks its
// constant pool.
func Class(cf *classfile.ClassFile, p Policy, opts shrink.Options) error {
	if p == nil {
		p = Identity
	}
	pool := cf.ConstantPool
	seen := make(map[uint16]bool)
	renamed := 0
	var err error

	var visit func(r classfile.Ref)
	visit = func(r classfile.Ref) {
		if err != nil {
			return
		}
		c, gerr := pool.Get(*r.Index)
		if gerr != nil {
			err = gerr
			return
		}
		if _, ok := c.(*classfile.ConstantUtf8); ok {
			var changed bool
			if changed, err = repoint(pool, r, p); changed {
				renamed++
			}
			return
		}
		if seen[*r.Index] {
			return
		}
		seen[*r.Index] = true
		classfile.ConstantRefs(c, r.Kind, visit)
	}
	cf.Refs(visit)
	if err != nil {
		return err
	}
	pool.Rehash()
	logger.Logger.Debug("class names rewritten", "uses", renamed)

	_, err = shrink.Class(cf, opts)
	return err
}

// repoint rewrites one use of a UTF-8 entry according to its kind.
func repoint(pool *classfile.ConstantPool, r classfile.Ref, p Policy) (bool, error) {
	old, err := pool.GetUtf8(*r.Index)
	if err != nil {
		return false, err
	}
	var s string
	switch r.Kind {
	case classfile.KindClassName:
		s, err = classfile.MapClassRef(old, p)
	case classfile.KindFieldDescriptor, classfile.KindMethodDescriptor, classfile.KindDescriptor, classfile.KindSignature:
		s, err = classfile.MapClassNames(old, p)
	default:
		return false, nil
	}
	if err != nil {
		return false, errors.WrapFormat("renaming %s %q: %v", r.Kind, old, err)
	}
	if s == old {
		return false, nil
	}
	idx, err := pool.Utf8(s)
	if err != nil {
		return false, err
	}
	*r.Index = idx
	return true, nil
}
