package visit

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type node struct {
	kind string
	name string
}

func recorder(out *[]string, prefix string) Visitor[node] {
	return Func[node](func(n node) { *out = append(*out, prefix+n.name) })
}

func TestMultiFlattens(t *testing.T) {
	var got []string
	inner := Multi(recorder(&got, "a:"), recorder(&got, "b:"))
	outer := Multi[node](inner, recorder(&got, "c:"), nil)

	assert.Equal(t, 3, outer.Len())
	outer.Visit(node{name: "x"})
	assert.Equal(t, []string{"a:x", "b:x", "c:x"}, got)
}

func TestJoinedBy(t *testing.T) {
	var sb strings.Builder
	v := JoinedBy[node](Func[node](func(n node) { sb.WriteString(n.name) }), func() { sb.WriteString(", ") })

	Each([]node{{name: "I"}, {name: "J"}, {name: "Ljava/lang/String;"}}, v)
	assert.Equal(t, "I, J, Ljava/lang/String;", sb.String())

	t.Run("single item has no separator", func(t *testing.T) {
		calls := 0
		one := JoinedBy[node](Func[node](func(node) {}), func() { calls++ })
		one.Visit(node{})
		assert.Equal(t, 0, calls)
	})
}

func TestFilters(t *testing.T) {
	nodes := []node{
		{kind: "class", name: "com/example/Foo"},
		{kind: "field", name: "count"},
		{kind: "class", name: "com/other/Bar"},
	}

	var byKind []string
	Each(nodes, OneOf(recorder(&byKind, ""), func(n node) string { return n.kind }, "class"))
	assert.Equal(t, []string{"com/example/Foo", "com/other/Bar"}, byKind)

	var byName []string
	re := regexp.MustCompile(`^com/example/`)
	Each(nodes, NameMatching(recorder(&byName, ""), re, func(n node) string { return n.name }))
	assert.Equal(t, []string{"com/example/Foo"}, byName)

	var all []string
	Each(nodes, NameMatching(recorder(&all, ""), nil, func(n node) string { return n.name }))
	assert.Len(t, all, 3)
}
