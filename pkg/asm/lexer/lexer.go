// Package lexer splits assembler source into lines of tokens. Both text
// syntaxes share it: a line is a sequence of whitespace separated words,
// double quoted strings and the punctuation { } , with # starting a
// comment that runs to the end of the line.
package lexer

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/daimatz/jdex/internal/errors"
)

type Kind int

const (
	Word Kind = iota
	// Directive is a word starting with a dot, such as .method.
	Directive
	// Label is a word ending in a colon at the start of a line.
	Label
	String
	Punct
)

var kindNames = [...]string{Word: "word", Directive: "directive", Label: "label", String: "string", Punct: "punctuation"}

func (k Kind) String() string { return kindNames[k] }

type Token struct {
	Kind Kind
	// Text is the word, the unquoted string, or the label without its
	// colon.
	Text string
	Col  int
}

// Line is one non-empty source line.
type Line struct {
	File   string
	Num    int
	Tokens []Token
}

// Errorf reports a syntax error at this line.
func (l *Line) Errorf(format string, args ...any) error {
	return errors.WrapSyntax(l.File, l.Num, fmt.Sprintf(format, args...))
}

// Lex tokenizes src. Lines holding only whitespace or a comment are
// dropped.
func Lex(file string, src []byte) ([]Line, error) {
	var out []Line
	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	num := 0
	for sc.Scan() {
		num++
		toks, err := lexLine(sc.Text())
		if err != nil {
			return nil, errors.WrapSyntax(file, num, err.Error())
		}
		if len(toks) > 0 {
			out = append(out, Line{File: file, Num: num, Tokens: toks})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	return out, nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' }

func isPunct(c byte) bool { return c == '{' || c == '}' || c == ',' }

func lexLine(s string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case isSpace(c):
			i++
		case c == '#':
			return toks, nil
		case isPunct(c):
			toks = append(toks, Token{Kind: Punct, Text: s[i : i+1], Col: i + 1})
			i++
		case c == '"':
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unterminated string at column %d", i+1)
			}
			text, err := strconv.Unquote(s[i : j+1])
			if err != nil {
				return nil, fmt.Errorf("bad string at column %d: %v", i+1, err)
			}
			toks = append(toks, Token{Kind: String, Text: text, Col: i + 1})
			i = j + 1
		default:
			j := i
			for j < len(s) && !isSpace(s[j]) && !isPunct(s[j]) && s[j] != '"' {
				j++
			}
			word := s[i:j]
			t := Token{Kind: Word, Text: word, Col: i + 1}
			switch {
			case strings.HasPrefix(word, ".") && len(word) > 1:
				t.Kind = Directive
			case len(toks) == 0 && strings.HasSuffix(word, ":") && len(word) > 1:
				t.Kind, t.Text = Label, strings.TrimSuffix(word, ":")
			}
			toks = append(toks, t)
			i = j
		}
	}
	return toks, nil
}

// Quote renders s as a string token.
func Quote(s string) string { return strconv.Quote(s) }

// Cursor walks the tokens of one line.
type Cursor struct {
	line *Line
	pos  int
}

func NewCursor(l *Line) *Cursor { return &Cursor{line: l} }

func (c *Cursor) Line() *Line { return c.line }

// Done reports whether every token was consumed.
func (c *Cursor) Done() bool { return c.pos >= len(c.line.Tokens) }

func (c *Cursor) Peek() (Token, bool) {
	if c.Done() {
		return Token{}, false
	}
	return c.line.Tokens[c.pos], true
}

func (c *Cursor) Next() (Token, error) {
	if c.Done() {
		return Token{}, c.line.Errorf("unexpected end of line")
	}
	t := c.line.Tokens[c.pos]
	c.pos++
	return t, nil
}

// Word consumes a bare word.
func (c *Cursor) Word() (string, error) {
	t, err := c.Next()
	if err != nil {
		return "", err
	}
	if t.Kind != Word {
		return "", c.line.Errorf("expected a word at column %d, got %s %q", t.Col, t.Kind, t.Text)
	}
	return t.Text, nil
}

func (c *Cursor) String() (string, error) {
	t, err := c.Next()
	if err != nil {
		return "", err
	}
	if t.Kind != String {
		return "", c.line.Errorf("expected a string at column %d, got %s %q", t.Col, t.Kind, t.Text)
	}
	return t.Text, nil
}

// Int consumes a word holding a signed integer in Go syntax (decimal,
// 0x hex or 0 octal).
func (c *Cursor) Int(bits int) (int64, error) {
	w, err := c.Word()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(w, 0, bits)
	if err != nil {
		return 0, c.line.Errorf("bad integer %q: %v", w, err)
	}
	return v, nil
}

// Accept consumes the next token if its text is text.
func (c *Cursor) Accept(text string) bool {
	if t, ok := c.Peek(); ok && t.Text == text && t.Kind != String {
		c.pos++
		return true
	}
	return false
}

func (c *Cursor) Expect(text string) error {
	if !c.Accept(text) {
		t, _ := c.Peek()
		return c.line.Errorf("expected %q, got %q", text, t.Text)
	}
	return nil
}

// End fails if tokens remain.
func (c *Cursor) End() error {
	if t, ok := c.Peek(); ok {
		return c.line.Errorf("unexpected %s %q at column %d", t.Kind, t.Text, t.Col)
	}
	return nil
}
