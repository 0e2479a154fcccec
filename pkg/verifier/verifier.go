// Package verifier replays a JVM method body to compute the max_stack and
// max_locals values its Code attribute needs.
//
// The replay is a single linear pass. Depths recorded at branch targets
// and exception handlers are carried forward, but paths are not merged,
// so the result is an upper bound for the code the editor produces rather
// than a proof that the method verifies.
package verifier

import (
	"fmt"
	"math"

	"github.com/daimatz/jdex/internal/errors"
	"github.com/daimatz/jdex/internal/logger"
	"github.com/daimatz/jdex/pkg/bytecode"
	"github.com/daimatz/jdex/pkg/classfile"
	"github.com/daimatz/jdex/pkg/reloc"
)

// Result holds the computed bounds.
type Result struct {
	MaxStack  int
	MaxLocals int
}

// Analyze computes bounds for a method body. accessFlags and descriptor
// belong to the method and decide how many local slots the arguments take.
func Analyze(pool *classfile.ConstantPool, accessFlags uint16, descriptor string, code []bytecode.Instruction, handlers []classfile.ExceptionHandler) (Result, error) {
	md, err := classfile.ParseMethodDescriptor(descriptor)
	if err != nil {
		return Result{}, err
	}
	args := md.ArgSlots()
	if accessFlags&classfile.AccStatic == 0 {
		args++
	}
	f := NewFrame(args)

	// depth on entry to an offset reached by a jump or a handler
	entry := make(map[int]int)
	for _, h := range handlers {
		entry[int(h.HandlerPC)] = 1
	}
	record := func(l reloc.Label, depth int) {
		if off, ok := l.Offset(); ok {
			if d, seen := entry[off]; !seen || depth > d {
				entry[off] = depth
			}
		}
	}

	fallsThrough := true
	for i := range code {
		in := &code[i]
		info := in.Info()
		if info == nil {
			return Result{}, errors.WrapUnknownTag("opcode", int(in.Op), in.Offset)
		}
		if d, ok := entry[in.Offset]; ok {
			if !fallsThrough || d > f.Depth {
				f.Reset(d)
			}
		} else if !fallsThrough {
			f.Reset(0)
		}

		pop, push, err := stackEffect(pool, in, info)
		if err != nil {
			return Result{}, fmt.Errorf("%s at %d: %w", info.Name, in.Offset, err)
		}
		if f.Pop(pop) {
			logger.Logger.Debug("operand stack underflow", "op", info.Name, "offset", in.Offset)
		}
		f.Push(push)
		if info.LocalWidth > 0 {
			f.Touch(in.LocalIndex(), int(info.LocalWidth))
		}

		for _, l := range in.Labels() {
			record(l, f.Depth)
		}
		fallsThrough = !in.Op.EndsBlock()
	}

	if f.MaxDepth > math.MaxUint16 {
		return Result{}, errors.WrapOperandRange("max_stack", int64(f.MaxDepth))
	}
	if f.MaxLocals > math.MaxUint16 {
		return Result{}, errors.WrapOperandRange("max_locals", int64(f.MaxLocals))
	}
	return Result{MaxStack: f.MaxDepth, MaxLocals: f.MaxLocals}, nil
}

// stackEffect returns the words popped and pushed by in, resolving the
// operand-dependent effects through the pool.
func stackEffect(pool *classfile.ConstantPool, in *bytecode.Instruction, info *bytecode.Info) (int, int, error) {
	if info.Pop != bytecode.Variable && info.Push != bytecode.Variable {
		return int(info.Pop), int(info.Push), nil
	}
	switch in.Op {
	case bytecode.OpMultianewarray:
		return int(in.Value), 1, nil
	case bytecode.OpInvokedynamic:
		_, desc, err := pool.ResolveInvokeDynamic(in.Index)
		if err != nil {
			return 0, 0, err
		}
		md, err := classfile.ParseMethodDescriptor(desc)
		if err != nil {
			return 0, 0, err
		}
		return md.ArgSlots(), classfile.FieldSize(md.Return), nil
	}

	ref, err := pool.ResolveMemberref(in.Index)
	if err != nil {
		return 0, 0, err
	}
	switch in.Op {
	case bytecode.OpGetstatic:
		return 0, classfile.FieldSize(ref.Descriptor), nil
	case bytecode.OpPutstatic:
		return classfile.FieldSize(ref.Descriptor), 0, nil
	case bytecode.OpGetfield:
		return 1, classfile.FieldSize(ref.Descriptor), nil
	case bytecode.OpPutfield:
		return 1 + classfile.FieldSize(ref.Descriptor), 0, nil
	}
	md, err := classfile.ParseMethodDescriptor(ref.Descriptor)
	if err != nil {
		return 0, 0, err
	}
	pop := md.ArgSlots()
	if in.Op != bytecode.OpInvokestatic {
		pop++
	}
	return pop, classfile.FieldSize(md.Return), nil
}

// UpdateMaxs recomputes max_stack and max_locals of m's Code attribute.
func UpdateMaxs(cf *classfile.ClassFile, m *classfile.MethodInfo) error {
	code := m.Code()
	if code == nil {
		return nil
	}
	desc, err := cf.ConstantPool.GetUtf8(m.DescriptorIndex)
	if err != nil {
		return fmt.Errorf("resolving method descriptor: %w", err)
	}
	res, err := Analyze(cf.ConstantPool, m.AccessFlags, desc, code.Instructions, code.ExceptionTable)
	if err != nil {
		return err
	}
	code.MaxStack = uint16(res.MaxStack)
	code.MaxLocals = uint16(res.MaxLocals)
	return nil
}
