package main

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func lexAll(input string) []Token {
	l := NewStringLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestNumberLiteral(t *testing.T) {
	tests := []struct {
		input   string
		literal string
		value   float64
	}{
		{"12345", "12345", 12345},
		{"1.5", "1.5", 1.5},
		{".5", ".5", 0.5},
		{"1.", "1.", 1},
		{"1.2.3", "1.2.3", 1.2},
		{".", ".", 0},
		{"..5", "..5", 0},
		{"007", "007", 7},
	}

	for _, test := range tests {
		tok := NewStringLexer(test.input).NextToken()
		be.Equal(t, tok.Type, TokenType(NUMBER))
		be.Equal(t, tok.Literal, test.literal)
		be.Equal(t, tok.Number, test.value)
	}
}

func TestNumberLiteralOverflow(t *testing.T) {
	huge := strings.Repeat("9", 400)
	for _, input := range []string{huge, huge + ".5", huge + ".5.1"} {
		tok := NewStringLexer(input).NextToken()
		be.Equal(t, tok.Type, TokenType(NUMBER))
		be.True(t, math.IsInf(tok.Number, 1))
	}

	tok := NewStringLexer("0." + strings.Repeat("0", 400) + "1").NextToken()
	be.Equal(t, tok.Number, 0.0)
}

func TestIdentifier(t *testing.T) {
	tok := NewStringLexer("foo42bar").NextToken()
	be.Equal(t, tok.Type, TokenType(IDENT))
	be.Equal(t, tok.Literal, "foo42bar")
}

func TestIdentifierStopsAtUnderscore(t *testing.T) {
	tokens := lexAll("a_b")
	be.Equal(t, tokenTypes(tokens), []TokenType{IDENT, "_", IDENT, EOF})
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"def", DEF},
		{"extern", EXTERN},
		{"return", RETURN},
		{"var", VAR},
		{"if", IF},
		{"else", ELSE},
		{"for", FOR},
		{"in", IDENT},
		{"Def", IDENT},
		{"define", IDENT},
	}

	for _, test := range tests {
		tok := NewStringLexer(test.input).NextToken()
		be.Equal(t, tok.Type, test.typ)
		be.Equal(t, tok.Literal, test.input)
	}
}

func TestDelimiters(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"(", LPAREN},
		{")", RPAREN},
		{"{", LBRACE},
		{"}", RBRACE},
		{",", COMMA},
		{";", SEMICOLON},
		{"=", ASSIGN},
		{"+", PLUS},
		{"-", MINUS},
		{"*", ASTERISK},
		{"/", SLASH},
		{"<", LT},
		{">", GT},
		{"!", "!"},
		{"%", "%"},
	}

	for _, test := range tests {
		tok := NewStringLexer(test.input).NextToken()
		be.Equal(t, tok.Type, test.typ)
		be.Equal(t, tok.Literal, test.input)
	}
}

func TestOperatorsAreSingleCharacters(t *testing.T) {
	tokens := lexAll("a==b")
	be.Equal(t, tokenTypes(tokens), []TokenType{IDENT, ASSIGN, ASSIGN, IDENT, EOF})
}

func TestCommentsAndWhitespace(t *testing.T) {
	tokens := lexAll("  # comment\n\tdef # another\r\nf")
	be.Equal(t, tokenTypes(tokens), []TokenType{DEF, IDENT, EOF})
	be.Equal(t, tokens[1].Literal, "f")
}

func TestCommentAtEndOfInput(t *testing.T) {
	tokens := lexAll("1 # no newline")
	be.Equal(t, tokenTypes(tokens), []TokenType{NUMBER, EOF})
}

func TestPositions(t *testing.T) {
	tokens := lexAll("def f(x)\n  x + 1")
	be.Equal(t, tokens[0].Pos, Position{Line: 1, Column: 1})
	be.Equal(t, tokens[1].Pos, Position{Line: 1, Column: 5})
	be.Equal(t, tokens[2].Pos, Position{Line: 1, Column: 6})
	be.Equal(t, tokens[5].Pos, Position{Line: 2, Column: 3})
	be.Equal(t, tokens[6].Pos, Position{Line: 2, Column: 5})
	be.Equal(t, tokens[6].Pos.String(), "2:5")
}

func TestEOFRepeats(t *testing.T) {
	l := NewStringLexer("x")
	be.Equal(t, l.NextToken().Type, TokenType(IDENT))
	be.Equal(t, l.NextToken().Type, TokenType(EOF))
	be.Equal(t, l.NextToken().Type, TokenType(EOF))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestReadErrorEndsInput(t *testing.T) {
	l := NewLexer(failingReader{})
	be.Equal(t, l.NextToken().Type, TokenType(EOF))
	be.Err(t, l.Err, "disk on fire")
}
