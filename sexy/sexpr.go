// Package sexy parses the S-expression patterns used by Kal's Markdown test
// suites and matches them against rendered ASTs.
package sexy

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NodeType represents the type of a Node
type NodeType int

const (
	NodeSymbol NodeType = iota
	NodeString
	NodeNumber
	NodeEllipsis // "...": matches any remaining list items
	NodeList
)

func (t NodeType) String() string {
	switch t {
	case NodeSymbol:
		return "symbol"
	case NodeString:
		return "string"
	case NodeNumber:
		return "number"
	case NodeEllipsis:
		return "ellipsis"
	case NodeList:
		return "list"
	default:
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
}

// Node represents any Sexy datum.
type Node struct {
	Type NodeType

	// NodeSymbol, NodeString, NodeNumber. Numbers keep their source text.
	Text string

	// NodeList
	Items []*Node
}

func (n *Node) String() string {
	switch n.Type {
	case NodeSymbol:
		return n.Text
	case NodeString:
		return strconv.Quote(n.Text)
	case NodeNumber:
		return n.Text
	case NodeEllipsis:
		return "..."
	case NodeList:
		parts := make([]string, len(n.Items))
		for i, item := range n.Items {
			parts[i] = item.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return fmt.Sprintf("UNKNOWN_NODE_TYPE_%d", n.Type)
	}
}

func NewSymbol(name string) *Node {
	return &Node{Type: NodeSymbol, Text: name}
}

func NewString(value string) *Node {
	return &Node{Type: NodeString, Text: value}
}

func NewNumber(text string) *Node {
	return &Node{Type: NodeNumber, Text: text}
}

func NewEllipsis() *Node {
	return &Node{Type: NodeEllipsis}
}

func NewList(items ...*Node) *Node {
	return &Node{Type: NodeList, Items: items}
}

// IsAtom reports whether n is anything but a list.
func (n *Node) IsAtom() bool {
	return n.Type != NodeList
}

// Float returns the value of a NodeNumber.
func (n *Node) Float() (float64, error) {
	if n.Type != NodeNumber {
		return 0, fmt.Errorf("%s is not a number", n)
	}
	return strconv.ParseFloat(n.Text, 64)
}

// Parse parses input, which must hold exactly one datum.
func Parse(input string) (*Node, error) {
	p := &parser{lexer: &lexer{input: input}}
	if err := p.next(); err != nil {
		return nil, err
	}

	result, err := p.parseDatum()
	if err != nil {
		return nil, err
	}
	if p.tok.typ != tokenEOF {
		return nil, fmt.Errorf("offset %d: expected end of input but got %s", p.tok.pos, p.tok.typ)
	}
	return result, nil
}

type parser struct {
	lexer *lexer
	tok   token
}

func (p *parser) next() error {
	tok, err := p.lexer.nextToken()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parseDatum() (*Node, error) {
	tok := p.tok
	switch tok.typ {
	case tokenSymbol:
		return NewSymbol(tok.text), p.next()
	case tokenString:
		return NewString(tok.text), p.next()
	case tokenNumber:
		return NewNumber(tok.text), p.next()
	case tokenEllipsis:
		return NewEllipsis(), p.next()
	case tokenLParen:
		return p.parseList()
	default:
		return nil, fmt.Errorf("offset %d: unexpected %s", tok.pos, tok.typ)
	}
}

func (p *parser) parseList() (*Node, error) {
	start := p.tok.pos
	if err := p.next(); err != nil { // consume '('
		return nil, err
	}

	list := NewList()
	for p.tok.typ != tokenRParen {
		if p.tok.typ == tokenEOF {
			return nil, fmt.Errorf("offset %d: unclosed '('", start)
		}
		item, err := p.parseDatum()
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, item)
	}
	return list, p.next() // consume ')'
}

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenSymbol
	tokenString
	tokenNumber
	tokenEllipsis
	tokenLParen
	tokenRParen
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of input"
	case tokenSymbol:
		return "symbol"
	case tokenString:
		return "string"
	case tokenNumber:
		return "number"
	case tokenEllipsis:
		return "'...'"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	default:
		return fmt.Sprintf("unknown token %d", int(t))
	}
}

type token struct {
	typ  tokenType
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ';':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		case unicode.IsSpace(rune(c)):
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) nextToken() (token, error) {
	l.skipSpaceAndComments()
	start := l.pos
	c := l.peek(0)

	switch {
	case l.pos >= len(l.input):
		return token{typ: tokenEOF, pos: start}, nil
	case c == '(':
		l.pos++
		return token{typ: tokenLParen, pos: start}, nil
	case c == ')':
		l.pos++
		return token{typ: tokenRParen, pos: start}, nil
	case c == '"':
		text, err := l.readString()
		return token{typ: tokenString, text: text, pos: start}, err
	case c == '.' && l.peek(1) == '.' && l.peek(2) == '.':
		l.pos += 3
		return token{typ: tokenEllipsis, pos: start}, nil
	case isDigit(c) || ((c == '-' || c == '+' || c == '.') && isDigit(l.peek(1))):
		return token{typ: tokenNumber, text: l.readNumber(), pos: start}, nil
	case isSymbolChar(c):
		for isSymbolChar(l.peek(0)) {
			l.pos++
		}
		return token{typ: tokenSymbol, text: l.input[start:l.pos], pos: start}, nil
	default:
		return token{}, fmt.Errorf("offset %d: unexpected character %q", start, c)
	}
}

func (l *lexer) readString() (string, error) {
	start := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return "", fmt.Errorf("offset %d: unterminated string", start)
		}
		c := l.input[l.pos]
		l.pos++
		switch c {
		case '"':
			return sb.String(), nil
		case '\\':
			switch esc := l.peek(0); esc {
			case '"', '\\':
				sb.WriteByte(esc)
				l.pos++
			case 'n':
				sb.WriteByte('\n')
				l.pos++
			default:
				return "", fmt.Errorf("offset %d: invalid escape sequence \\%c", l.pos-1, esc)
			}
		default:
			sb.WriteByte(c)
		}
	}
}

func (l *lexer) readNumber() string {
	start := l.pos
	if c := l.peek(0); c == '-' || c == '+' {
		l.pos++
	}
	for isDigit(l.peek(0)) || l.peek(0) == '.' || l.peek(0) == 'e' || l.peek(0) == 'E' {
		if c := l.peek(0); (c == 'e' || c == 'E') && (l.peek(1) == '-' || l.peek(1) == '+') {
			l.pos++
		}
		l.pos++
	}
	return l.input[start:l.pos]
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isSymbolChar(c byte) bool {
	if c == 0 || c == '(' || c == ')' || c == '"' || c == ';' {
		return false
	}
	return !unicode.IsSpace(rune(c))
}
