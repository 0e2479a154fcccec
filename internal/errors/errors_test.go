package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{"format", WrapFormat("bad %s", "thing"), ErrFormat, "bad thing"},
		{"unknown tag", WrapUnknownTag("constant", 2, 10), ErrUnknownTag, "constant tag 2 at offset 10"},
		{"index", WrapIndexOutOfRange("constant pool", 9, 4), ErrIndexOutOfRange, "index 9 (size 4)"},
		{"label", WrapUnresolvedLabel("L3"), ErrUnresolvedLabel, "L3"},
		{"edit", WrapConflictingEdit(12, "already replaced"), ErrConflictingEdit, "offset 12"},
		{"mapping", WrapMissingMapping("string", 7), ErrMissingMapping, "string index 7"},
		{"operand", WrapOperandRange("bipush", 300), ErrOperandRange, "bipush operand 300"},
		{"syntax", WrapSyntax("A.jasm", 3, "unexpected token"), ErrSyntax, "A.jasm:3"},
		{"checksum", WrapChecksum(1, 2), ErrChecksum, "0x00000001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}
}
