package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is
var (
	ErrFormat            = errors.New("malformed input")
	ErrBadMagic          = errors.New("bad magic number")
	ErrChecksum          = errors.New("checksum mismatch")
	ErrSignature         = errors.New("signature mismatch")
	ErrUnknownTag        = errors.New("unknown tag")
	ErrMalformedVarint   = errors.New("malformed LEB128 value")
	ErrMalformedUTF8     = errors.New("malformed modified UTF-8")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrPoolFull          = errors.New("pool is full")
	ErrUnresolvedLabel   = errors.New("unresolved label")
	ErrDuplicateLabel    = errors.New("duplicate label")
	ErrConflictingEdit   = errors.New("conflicting edit")
	ErrLayoutChanged     = errors.New("code layout changed outside an editor")
	ErrMissingMapping    = errors.New("missing reference mapping")
	ErrOpaqueAttribute   = errors.New("opaque attribute may hold pool references")
	ErrOperandRange      = errors.New("operand out of range")
	ErrSyntax            = errors.New("syntax error")
	ErrArgumentRequired  = errors.New("argument required")
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// Wrap functions for consistent error wrapping
func WrapFormat(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

func WrapUnknownTag(what string, tag int, pos int) error {
	return fmt.Errorf("%w: %s tag %d at offset %d", ErrUnknownTag, what, tag, pos)
}

func WrapIndexOutOfRange(what string, index, size int) error {
	return fmt.Errorf("%w: %s index %d (size %d)", ErrIndexOutOfRange, what, index, size)
}

func WrapUnresolvedLabel(label string) error {
	return fmt.Errorf("%w: %s", ErrUnresolvedLabel, label)
}

func WrapConflictingEdit(offset int, msg string) error {
	return fmt.Errorf("%w at offset %d: %s", ErrConflictingEdit, offset, msg)
}

func WrapMissingMapping(what string, index int) error {
	return fmt.Errorf("%w: %s index %d", ErrMissingMapping, what, index)
}

func WrapOperandRange(op string, value int64) error {
	return fmt.Errorf("%w: %s operand %d", ErrOperandRange, op, value)
}

func WrapSyntax(file string, line int, msg string) error {
	return fmt.Errorf("%w: %s:%d: %s", ErrSyntax, file, line, msg)
}

func WrapChecksum(want, got uint32) error {
	return fmt.Errorf("%w: header says 0x%08x, computed 0x%08x", ErrChecksum, want, got)
}
