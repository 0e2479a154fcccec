// Package visit holds the visitor combinators shared by every model in the
// toolkit. A model exposes its node kinds as a closed set and a Visitor
// struct that switches over them; the combinators here only see the node
// type T.
package visit

import "regexp"

type Visitor[T any] interface {
	Visit(node T)
}

// Func adapts a plain function to a Visitor.
type Func[T any] func(node T)

func (f Func[T]) Visit(node T) { f(node) }

// MultiVisitor dispatches every node to each of its visitors in
// registration order.
type MultiVisitor[T any] struct {
	visitors []Visitor[T]
}

// Multi builds a MultiVisitor. Nested MultiVisitors are flattened into the
// result, so composing them never deepens the delegation chain.
func Multi[T any](visitors ...Visitor[T]) *MultiVisitor[T] {
	m := &MultiVisitor[T]{}
	for _, v := range visitors {
		m.Add(v)
	}
	return m
}

func (m *MultiVisitor[T]) Add(v Visitor[T]) {
	if v == nil {
		return
	}
	if inner, ok := v.(*MultiVisitor[T]); ok {
		m.visitors = append(m.visitors, inner.visitors...)
		return
	}
	m.visitors = append(m.visitors, v)
}

func (m *MultiVisitor[T]) Len() int { return len(m.visitors) }

func (m *MultiVisitor[T]) Visit(node T) {
	for _, v := range m.visitors {
		v.Visit(node)
	}
}

type joined[T any] struct {
	v         Visitor[T]
	separator func()
	seen      bool
}

// JoinedBy calls separator before every visit except the first one.
func JoinedBy[T any](v Visitor[T], separator func()) Visitor[T] {
	return &joined[T]{v: v, separator: separator}
}

func (j *joined[T]) Visit(node T) {
	if j.seen {
		j.separator()
	}
	j.seen = true
	j.v.Visit(node)
}

type filter[T any] struct {
	v    Visitor[T]
	keep func(T) bool
}

// Filter forwards only the nodes for which keep returns true.
func Filter[T any](v Visitor[T], keep func(T) bool) Visitor[T] {
	return &filter[T]{v: v, keep: keep}
}

func (f *filter[T]) Visit(node T) {
	if f.keep(node) {
		f.v.Visit(node)
	}
}

// OneOf forwards nodes whose kind is in kinds.
func OneOf[T any, K comparable](v Visitor[T], kind func(T) K, kinds ...K) Visitor[T] {
	set := make(map[K]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return Filter(v, func(node T) bool { return set[kind(node)] })
}

// NameMatching forwards nodes whose name matches re. A nil pattern matches
// everything.
func NameMatching[T any](v Visitor[T], re *regexp.Regexp, name func(T) string) Visitor[T] {
	if re == nil {
		return v
	}
	return Filter(v, func(node T) bool { return re.MatchString(name(node)) })
}

// Each visits every element of nodes in order.
func Each[T any](nodes []T, v Visitor[T]) {
	for _, n := range nodes {
		v.Visit(n)
	}
}
