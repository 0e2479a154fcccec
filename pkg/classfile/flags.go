package classfile

import "strings"

// FlagTarget selects which access-flag keywords apply.
type FlagTarget int

const (
	FlagClass FlagTarget = iota
	FlagField
	FlagMethod
	FlagInnerClass
	FlagParameter
)

type flagName struct {
	bit  uint16
	name string
}

var flagNames = map[FlagTarget][]flagName{
	FlagClass: {
		{AccPublic, "public"}, {AccFinal, "final"}, {AccSuper, "super"},
		{AccInterface, "interface"}, {AccAbstract, "abstract"}, {AccSynthetic, "synthetic"},
		{AccAnnotation, "annotation"}, {AccEnum, "enum"}, {AccModule, "module"},
	},
	FlagField: {
		{AccPublic, "public"}, {AccPrivate, "private"}, {AccProtected, "protected"},
		{AccStatic, "static"}, {AccFinal, "final"}, {AccVolatile, "volatile"},
		{AccTransient, "transient"}, {AccSynthetic, "synthetic"}, {AccEnum, "enum"},
	},
	FlagMethod: {
		{AccPublic, "public"}, {AccPrivate, "private"}, {AccProtected, "protected"},
		{AccStatic, "static"}, {AccFinal, "final"}, {AccSynchronized, "synchronized"},
		{AccBridge, "bridge"}, {AccVarargs, "varargs"}, {AccNative, "native"},
		{AccAbstract, "abstract"}, {AccStrict, "strict"}, {AccSynthetic, "synthetic"},
	},
	FlagInnerClass: {
		{AccPublic, "public"}, {AccPrivate, "private"}, {AccProtected, "protected"},
		{AccStatic, "static"}, {AccFinal, "final"}, {AccInterface, "interface"},
		{AccAbstract, "abstract"}, {AccSynthetic, "synthetic"}, {AccAnnotation, "annotation"},
		{AccEnum, "enum"},
	},
	FlagParameter: {
		{AccFinal, "final"}, {0x1000, "synthetic"}, {0x8000, "mandated"},
	},
}

// FlagKeywords renders flags as space-separated keywords. Bits without a
// keyword are ignored.
func FlagKeywords(target FlagTarget, flags uint16) string {
	var parts []string
	for _, f := range flagNames[target] {
		if flags&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, " ")
}

// ParseFlag returns the bit for an access-flag keyword.
func ParseFlag(target FlagTarget, keyword string) (uint16, bool) {
	for _, f := range flagNames[target] {
		if f.name == keyword {
			return f.bit, true
		}
	}
	return 0, false
}
