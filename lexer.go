package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TokenType is the type of token (identifier, operator, literal, etc.).
type TokenType string

// Definition of token types
const (
	// Special tokens
	EOF = "EOF"

	// Identifiers + literals
	IDENT  = "IDENT"  // foo, x1
	NUMBER = "NUMBER" // 12, 1.5, .5

	// Operators
	ASSIGN   = "="
	PLUS     = "+"
	MINUS    = "-"
	ASTERISK = "*"
	SLASH    = "/"
	LT       = "<"
	GT       = ">"

	// Delimiters
	COMMA     = ","
	SEMICOLON = ";"
	LPAREN    = "("
	RPAREN    = ")"
	LBRACE    = "{"
	RBRACE    = "}"

	// Keywords
	DEF    = "DEF"
	EXTERN = "EXTERN"
	RETURN = "RETURN"
	VAR    = "VAR"
	IF     = "IF"
	ELSE   = "ELSE"
	FOR    = "FOR"
)

var keywords = map[string]TokenType{
	"def":    DEF,
	"extern": EXTERN,
	"return": RETURN,
	"var":    VAR,
	"if":     IF,
	"else":   ELSE,
	"for":    FOR,
}

// Position is a 1-based line and column in the source.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is one lexical unit. Any character that does not start an identifier,
// keyword or number is its own token; Type is then the character itself.
type Token struct {
	Type    TokenType
	Literal string
	Number  float64 // only meaningful when Type == NUMBER
	Pos     Position
}

const eofRune rune = -1

// Lexer converts a character stream into tokens, one at a time.
type Lexer struct {
	r *bufio.Reader

	// Single character of lookahead. Never pushed back.
	c    rune
	line int
	col  int

	// Err holds the first non-EOF read error. The lexer reports EOF after it.
	Err error
}

func NewLexer(r io.Reader) *Lexer {
	l := &Lexer{r: bufio.NewReader(r), line: 1}
	// Start on a blank so the first NextToken reads real input.
	l.c = ' '
	return l
}

// NewStringLexer is a convenience for lexing in-memory source.
func NewStringLexer(src string) *Lexer {
	return NewLexer(strings.NewReader(src))
}

func (l *Lexer) readChar() {
	if l.c == '\n' {
		l.line++
		l.col = 0
	}
	c, _, err := l.r.ReadRune()
	if err != nil {
		if err != io.EOF && l.Err == nil {
			l.Err = err
		}
		l.c = eofRune
		return
	}
	l.col++
	l.c = c
}

func (l *Lexer) pos() Position {
	return Position{Line: l.line, Column: l.col}
}

// NextToken scans the next token. After the end of input it keeps returning EOF.
func (l *Lexer) NextToken() Token {
	for {
		l.skipWhitespace()
		if l.c != '#' {
			break
		}
		l.skipLineComment()
	}

	pos := l.pos()
	c := l.c

	switch {
	case c == eofRune:
		return Token{Type: EOF, Pos: pos}

	case isLetter(c):
		lit := l.readIdentifier()
		if kw, ok := keywords[lit]; ok {
			return Token{Type: kw, Literal: lit, Pos: pos}
		}
		return Token{Type: IDENT, Literal: lit, Pos: pos}

	case isDigit(c) || c == '.':
		lit := l.readNumber()
		return Token{Type: NUMBER, Literal: lit, Number: parseNumber(lit), Pos: pos}

	default:
		l.readChar()
		return Token{Type: TokenType(string(c)), Literal: string(c), Pos: pos}
	}
}

func (l *Lexer) skipWhitespace() {
	for l.c == ' ' || l.c == '\t' || l.c == '\n' || l.c == '\r' || l.c == '\v' || l.c == '\f' {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for l.c != '\n' && l.c != '\r' && l.c != eofRune {
		l.readChar()
	}
}

func isLetter(c rune) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c rune) bool {
	return '0' <= c && c <= '9'
}

func (l *Lexer) readIdentifier() string {
	var sb strings.Builder
	for isLetter(l.c) || isDigit(l.c) {
		sb.WriteRune(l.c)
		l.readChar()
	}
	return sb.String()
}

func (l *Lexer) readNumber() string {
	var sb strings.Builder
	for isDigit(l.c) || l.c == '.' {
		sb.WriteRune(l.c)
		l.readChar()
	}
	return sb.String()
}

// parseNumber converts the longest valid prefix of lit, so "1.2.3" is 1.2
// and a lone "." is 0. Out-of-range literals become ±Inf.
func parseNumber(lit string) float64 {
	if v, ok := parseFloat(lit); ok {
		return v
	}
	if first := strings.IndexByte(lit, '.'); first >= 0 {
		if second := strings.IndexByte(lit[first+1:], '.'); second >= 0 {
			lit = lit[:first+1+second]
		}
	}
	if v, ok := parseFloat(lit); ok {
		return v
	}
	return 0
}

func parseFloat(lit string) (float64, bool) {
	v, err := strconv.ParseFloat(lit, 64)
	if err == nil || errors.Is(err, strconv.ErrRange) {
		return v, true
	}
	return 0, false
}
