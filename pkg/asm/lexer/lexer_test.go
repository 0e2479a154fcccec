package lexer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
)

func TestLex(t *testing.T) {
	src := []byte(`.class public Foo   # comment
L0:
    ldc "a \"quoted\" # string"

    invoke-static {v0, v1}, LFoo;->bar(II)V
# only a comment
`)
	lines, err := Lex("foo.j", src)
	require.NoError(t, err)
	require.Len(t, lines, 4)

	tests := []struct {
		line  int
		kinds []Kind
		texts []string
	}{
		{1, []Kind{Directive, Word, Word}, []string{".class", "public", "Foo"}},
		{2, []Kind{Label}, []string{"L0"}},
		{3, []Kind{Word, String}, []string{"ldc", `a "quoted" # string`}},
		{5, []Kind{Word, Punct, Word, Punct, Word, Punct, Punct, Word}, []string{"invoke-static", "{", "v0", ",", "v1", "}", ",", "LFoo;->bar(II)V"}},
	}
	for i, tt := range tests {
		l := lines[i]
		if l.Num != tt.line {
			t.Errorf("line %d: got number %d, want %d", i, l.Num, tt.line)
		}
		var kinds []Kind
		var texts []string
		for _, tok := range l.Tokens {
			kinds = append(kinds, tok.Kind)
			texts = append(texts, tok.Text)
		}
		assert.Equal(t, tt.kinds, kinds, "line %d", tt.line)
		assert.Equal(t, tt.texts, texts, "line %d", tt.line)
	}
}

func TestLexErrors(t *testing.T) {
	_, err := Lex("bad.j", []byte("ok\nldc \"open"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, jerrors.ErrSyntax), "got %v", err)
	assert.Contains(t, err.Error(), "bad.j:2")
}

func TestCursor(t *testing.T) {
	lines, err := Lex("c.j", []byte(`iinc 3 -0x10 "s" extra`))
	require.NoError(t, err)
	c := NewCursor(&lines[0])

	w, err := c.Word()
	require.NoError(t, err)
	assert.Equal(t, "iinc", w)
	n, err := c.Int(16)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = c.Int(16)
	require.NoError(t, err)
	assert.Equal(t, int64(-16), n)

	_, err = c.Word()
	assert.True(t, errors.Is(err, jerrors.ErrSyntax), "string is not a word: %v", err)

	assert.False(t, c.Accept("other"))
	assert.True(t, c.Accept("extra"))
	assert.True(t, c.Done())
	require.NoError(t, c.End())
	_, err = c.Next()
	assert.Error(t, err)
}
