// Package shrink removes unreferenced constant pool entries from a class
// and renumbers the survivors.
package shrink

import (
	"fmt"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/classfile"
)

// Options controls how attributes that are kept as raw bytes are
// treated. Such an attribute may hold pool indices that cannot be
// rewritten, so by default the class is rejected.
type Options struct {
	DropOpaque bool
}

// Stats reports the pool size before and after shrinking.
type Stats struct {
	Before  int
	After   int
	Dropped []string
}

// Class marks every pool entry reachable from the class structure and
// compacts the pool to those entries. The class and its pool are left
// untouched when an error is returned.
func Class(cf *classfile.ClassFile, opts Options) (Stats, error) {
	pool := cf.ConstantPool
	stats := Stats{Before: pool.Count()}

	view := cf
	if name, ok := cf.HasOpaqueAttributes(); ok {
		if !opts.DropOpaque {
			return stats, fmt.Errorf("%w: %s", errors.ErrOpaqueAttribute, name)
		}
		view, stats.Dropped = withoutOpaque(cf)
	}

	live, err := Mark(view)
	if err != nil {
		return stats, err
	}
	if err := checkClosed(view, live); err != nil {
		return stats, err
	}
	if view != cf {
		*cf = *view
		logger.Logger.Debug("dropped opaque attributes", "names", stats.Dropped)
	}

	remap := pool.Retain(func(index uint16) bool { return live[index] })
	rewrite := func(r classfile.Ref) { *r.Index = remap[*r.Index] }
	pool.Each(func(_ uint16, c classfile.Constant) {
		classfile.ConstantRefs(c, classfile.KindAny, rewrite)
	})
	cf.Refs(rewrite)
	pool.Rehash()

	stats.After = pool.Count()
	logger.Logger.Debug("constant pool shrunk", "before", stats.Before, "after", stats.After)
	return stats, nil
}

// checkClosed reports the first reference that does not land on a live
// entry.
func checkClosed(cf *classfile.ClassFile, live map[uint16]bool) error {
	var missing error
	check := func(r classfile.Ref) {
		if missing == nil && !live[*r.Index] {
			missing = errors.WrapMissingMapping("constant pool", int(*r.Index))
		}
	}
	cf.ConstantPool.Each(func(index uint16, c classfile.Constant) {
		if live[index] {
			classfile.ConstantRefs(c, classfile.KindAny, check)
		}
	})
	cf.Refs(check)
	return missing
}

// Mark returns the set of pool indices reachable from the class structure,
// following references between entries transitively.
func Mark(cf *classfile.ClassFile) (map[uint16]bool, error) {
	live := make(map[uint16]bool)
	var err error
	var visit func(r classfile.Ref)
	visit = func(r classfile.Ref) {
		idx := *r.Index
		if live[idx] || err != nil {
			return
		}
		c, gerr := cf.ConstantPool.Get(idx)
		if gerr != nil {
			err = gerr
			return
		}
		live[idx] = true
		classfile.ConstantRefs(c, r.Kind, visit)
	}
	cf.Refs(visit)
	if err != nil {
		return nil, err
	}
	return live, nil
}

// withoutOpaque returns a copy of cf with every UnknownAttribute removed,
// and their names. cf itself is not modified; the copy shares everything
// else with it.
func withoutOpaque(cf *classfile.ClassFile) (*classfile.ClassFile, []string) {
	var names []string
	var filter func(attrs []classfile.Attribute) []classfile.Attribute
	filter = func(attrs []classfile.Attribute) []classfile.Attribute {
		out := make([]classfile.Attribute, 0, len(attrs))
		for _, a := range attrs {
			switch a := a.(type) {
			case *classfile.UnknownAttribute:
				names = append(names, a.AttrName)
				continue
			case *classfile.CodeAttribute:
				c := *a
				c.Attributes = filter(a.Attributes)
				out = append(out, &c)
				continue
			case *classfile.RecordAttribute:
				r := *a
				r.Components = make([]classfile.RecordComponent, len(a.Components))
				for i, rc := range a.Components {
					rc.Attributes = filter(rc.Attributes)
					r.Components[i] = rc
				}
				out = append(out, &r)
				continue
			}
			out = append(out, a)
		}
		return out
	}
	view := *cf
	view.Attributes = filter(cf.Attributes)
	view.Fields = make([]classfile.FieldInfo, len(cf.Fields))
	for i, f := range cf.Fields {
		f.Attributes = filter(f.Attributes)
		view.Fields[i] = f
	}
	view.Methods = make([]classfile.MethodInfo, len(cf.Methods))
	for i, m := range cf.Methods {
		m.Attributes = filter(m.Attributes)
		view.Methods[i] = m
	}
	return &view, names
}
