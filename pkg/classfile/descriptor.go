package classfile

import (
	"strings"

	"github.com/daimatz/jdex/internal/errors"
)

// MethodDescriptor is a parsed method descriptor such as (IJ)V.
type MethodDescriptor struct {
	Params []string
	Return string
}

// ParseMethodDescriptor splits a method descriptor into its parameter and
// return types.
func ParseMethodDescriptor(desc string) (*MethodDescriptor, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, errors.WrapFormat("method descriptor %q", desc)
	}
	md := &MethodDescriptor{}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldTypeLen(desc[i:])
		if err != nil {
			return nil, errors.WrapFormat("method descriptor %q", desc)
		}
		md.Params = append(md.Params, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return nil, errors.WrapFormat("method descriptor %q", desc)
	}
	md.Return = desc[i+1:]
	if md.Return != "V" {
		if n, err := fieldTypeLen(md.Return); err != nil || n != len(md.Return) {
			return nil, errors.WrapFormat("method descriptor %q", desc)
		}
	}
	return md, nil
}

// ArgSlots returns the number of local slots the parameters occupy.
func (md *MethodDescriptor) ArgSlots() int {
	n := 0
	for _, p := range md.Params {
		n += FieldSize(p)
	}
	return n
}

// FieldSize returns the slot size of a field type: 2 for long and double,
// 0 for void, 1 otherwise.
func FieldSize(desc string) int {
	switch desc {
	case "J", "D":
		return 2
	case "V":
		return 0
	}
	return 1
}

func fieldTypeLen(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0, errors.ErrFormat
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end < 2 {
			return 0, errors.ErrFormat
		}
		return i + end + 1, nil
	}
	return 0, errors.ErrFormat
}

// MapClassNames rewrites every class name in a descriptor or generic
// signature with fn. Type variables, formal type parameter names and
// inner class suffixes are left alone.
func MapClassNames(sig string, fn func(string) string) (string, error) {
	m := &sigMapper{s: sig, fn: fn}
	if err := m.top(); err != nil {
		return sig, errors.WrapFormat("signature %q", sig)
	}
	return m.out.String(), nil
}

// MapClassRef rewrites the name held by a CONSTANT_Class, which is either
// a plain internal name or an array descriptor.
func MapClassRef(name string, fn func(string) string) (string, error) {
	if strings.HasPrefix(name, "[") {
		return MapClassNames(name, fn)
	}
	return fn(name), nil
}

type sigMapper struct {
	s   string
	i   int
	out strings.Builder
	fn  func(string) string
}

func (m *sigMapper) peek() byte {
	if m.i < len(m.s) {
		return m.s[m.i]
	}
	return 0
}

func (m *sigMapper) copy1() {
	m.out.WriteByte(m.s[m.i])
	m.i++
}

func (m *sigMapper) top() error {
	if m.peek() == '<' {
		if err := m.formals(); err != nil {
			return err
		}
	}
	if m.peek() == '(' {
		m.copy1()
		for m.peek() != ')' {
			if err := m.typ(); err != nil {
				return err
			}
		}
		m.copy1()
		if err := m.typ(); err != nil {
			return err
		}
		for m.peek() == '^' {
			m.copy1()
			if err := m.typ(); err != nil {
				return err
			}
		}
	} else {
		for m.i < len(m.s) {
			if err := m.typ(); err != nil {
				return err
			}
		}
	}
	if m.i != len(m.s) {
		return errors.ErrFormat
	}
	return nil
}

func (m *sigMapper) formals() error {
	m.copy1()
	for m.peek() != '>' {
		colon := strings.IndexByte(m.s[m.i:], ':')
		if colon <= 0 {
			return errors.ErrFormat
		}
		m.out.WriteString(m.s[m.i : m.i+colon])
		m.i += colon
		for m.peek() == ':' {
			m.copy1()
			if c := m.peek(); c == ':' || c == '>' {
				continue
			}
			if err := m.typ(); err != nil {
				return err
			}
		}
	}
	m.copy1()
	return nil
}

func (m *sigMapper) typ() error {
	switch m.peek() {
	case 'L':
		return m.classType()
	case 'T':
		end := strings.IndexByte(m.s[m.i:], ';')
		if end < 0 {
			return errors.ErrFormat
		}
		m.out.WriteString(m.s[m.i : m.i+end+1])
		m.i += end + 1
		return nil
	case '[', '+', '-':
		m.copy1()
		return m.typ()
	case '*', 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
		m.copy1()
		return nil
	}
	return errors.ErrFormat
}

func (m *sigMapper) ident() string {
	start := m.i
	for m.i < len(m.s) && !strings.ContainsRune(";<.", rune(m.s[m.i])) {
		m.i++
	}
	return m.s[start:m.i]
}

func (m *sigMapper) classType() error {
	m.copy1()
	name := m.ident()
	if name == "" {
		return errors.ErrFormat
	}
	m.out.WriteString(m.fn(name))
	for {
		switch m.peek() {
		case '<':
			m.copy1()
			for m.peek() != '>' {
				if err := m.typ(); err != nil {
					return err
				}
			}
			m.copy1()
		case '.':
			m.copy1()
			m.out.WriteString(m.ident())
		case ';':
			m.copy1()
			return nil
		default:
			return errors.ErrFormat
		}
	}
}
