package rename

import (
	"strings"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/dex"
)

const signatureAnnotation = "Ldalvik/annotation/Signature;"

// Dex applies p to every class name used by f: type descriptors and the
// generic signatures held in dalvik Signature annotations. String
// literals are left alone. The ID tables are compacted afterwards, which
// also merges types that now share a descriptor.
func Dex(f *dex.File, p Policy) error {
	if p == nil {
		p = Identity
	}
	renamed := 0
	for i, s := range f.Types {
		old, err := f.String(s)
		if err != nil {
			return err
		}
		desc, err := classfile.MapClassNames(old, p)
		if err != nil {
			return errors.WrapFormat("renaming type %q: %v", old, err)
		}
		if desc != old {
			f.Types[i] = f.AddString(desc)
			renamed++
		}
	}
	f.Rehash()

	sigType := dex.NoIndex
	for i, s := range f.Types {
		if name, err := f.String(s); err == nil && name == signatureAnnotation {
			sigType = uint32(i)
			break
		}
	}
	if sigType != dex.NoIndex {
		for i := range f.Classes {
			d := f.Classes[i].Annotations
			if d == nil {
				continue
			}
			for _, set := range annotationSets(d) {
				for j := range set {
					a := &set[j].Annotation
					if a.Type != sigType {
						continue
					}
					changed, err := renameSignature(f, a, p)
					if err != nil {
						return err
					}
					if changed {
						renamed++
					}
				}
			}
		}
	}
	logger.Logger.Debug("dex class names rewritten", "uses", renamed)
	return f.Compact()
}

func annotationSets(d *dex.AnnotationsDirectory) []dex.AnnotationSet {
	out := []dex.AnnotationSet{d.Class}
	for _, fa := range d.Fields {
		out = append(out, fa.Set)
	}
	for _, ma := range d.Methods {
		out = append(out, ma.Set)
	}
	for _, pa := range d.Parameters {
		out = append(out, pa.Sets...)
	}
	return out
}

// renameSignature joins the string fragments of a Signature annotation,
// renames the signature and stores it back as a single fragment.
func renameSignature(f *dex.File, a *dex.EncodedAnnotation, p Policy) (bool, error) {
	for k := range a.Elements {
		el := &a.Elements[k]
		if name, err := f.String(el.Name); err != nil || name != "value" || el.Value.Type != dex.ValueArray {
			continue
		}
		var b strings.Builder
		for _, v := range el.Value.Array {
			if v.Type != dex.ValueString {
				return false, errors.WrapFormat("signature annotation holds a %s value", v.Type)
			}
			s, err := f.String(v.Index)
			if err != nil {
				return false, err
			}
			b.WriteString(s)
		}
		old := b.String()
		sig, err := classfile.MapClassNames(old, p)
		if err != nil {
			return false, errors.WrapFormat("renaming signature %q: %v", old, err)
		}
		if sig == old {
			return false, nil
		}
		el.Value.Array = []dex.EncodedValue{dex.IndexValue(dex.ValueString, f.AddString(sig))}
		return true, nil
	}
	return false, nil
}
