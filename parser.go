package main

// UnitKind says which kind of top-level unit ParseUnit produced.
type UnitKind int

const (
	UnitEOF UnitKind = iota
	UnitDefinition
	UnitExtern
	UnitExpression
)

func (k UnitKind) String() string {
	switch k {
	case UnitEOF:
		return "end of input"
	case UnitDefinition:
		return "definition"
	case UnitExtern:
		return "extern"
	case UnitExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// Unit is one top-level unit: a def, an extern, or a bare expression.
type Unit struct {
	Kind  UnitKind
	Def   *FunctionDef // UnitDefinition
	Proto *Prototype   // UnitExtern
	Expr  *ASTNode     // UnitExpression
}

// Parser is a recursive-descent parser with one token of lookahead.
type Parser struct {
	lexer *Lexer
	curr  Token
}

// NewParser primes the first token from l.
func NewParser(l *Lexer) *Parser {
	p := &Parser{lexer: l}
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.curr = p.lexer.NextToken()
}

// Current returns the lookahead token.
func (p *Parser) Current() Token {
	return p.curr
}

// Skip discards the lookahead token. The top-level driver calls it after a
// syntax error to resume at the next token.
func (p *Parser) Skip() {
	if p.curr.Type != EOF {
		p.advance()
	}
}

func (p *Parser) errorf(format string, args ...any) error {
	return errorAt(p.curr.Pos, ErrSyntax, format, args...)
}

func describe(tok Token) string {
	switch tok.Type {
	case EOF:
		return "end of input"
	case IDENT:
		return "identifier '" + tok.Literal + "'"
	case NUMBER:
		return "number " + tok.Literal
	default:
		return "'" + tok.Literal + "'"
	}
}

// expect consumes the lookahead token if it has type typ.
func (p *Parser) expect(typ TokenType, context string) error {
	if p.curr.Type != typ {
		return p.errorf("expected '%s' %s, got %s", string(typ), context, describe(p.curr))
	}
	p.advance()
	return nil
}

// ParseUnit parses the next top-level unit. Stray top-level semicolons are
// skipped. On a syntax error the offending token is left as lookahead.
func (p *Parser) ParseUnit() (Unit, error) {
	for p.curr.Type == SEMICOLON {
		p.advance()
	}

	switch p.curr.Type {
	case EOF:
		return Unit{Kind: UnitEOF}, nil
	case DEF:
		def, err := p.ParseDefinition()
		if err != nil {
			return Unit{}, err
		}
		return Unit{Kind: UnitDefinition, Def: def}, nil
	case EXTERN:
		proto, err := p.ParseExtern()
		if err != nil {
			return Unit{}, err
		}
		return Unit{Kind: UnitExtern, Proto: proto}, nil
	default:
		expr, err := p.ParseExpression()
		if err != nil {
			return Unit{}, err
		}
		return Unit{Kind: UnitExpression, Expr: expr}, nil
	}
}

// ParseDefinition ::= 'def' prototype '{' stmt_list '}'
func (p *Parser) ParseDefinition() (*FunctionDef, error) {
	if err := p.expect(DEF, "to start a definition"); err != nil {
		return nil, err
	}
	proto, err := p.ParsePrototype()
	if err != nil {
		return nil, err
	}
	if p.curr.Type != LBRACE {
		return nil, p.errorf("expected '{' after prototype of '%s', got %s", proto.Name, describe(p.curr))
	}
	bracePos := p.curr.Pos
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errorAt(bracePos, ErrSyntax, "body of '%s' is empty", proto.Name)
	}
	return &FunctionDef{Proto: proto, Body: body}, nil
}

// ParseExtern ::= 'extern' prototype
func (p *Parser) ParseExtern() (*Prototype, error) {
	if err := p.expect(EXTERN, "to start an extern"); err != nil {
		return nil, err
	}
	return p.ParsePrototype()
}

// ParsePrototype ::= identifier '(' (identifier (',' identifier)*)? ')'
func (p *Parser) ParsePrototype() (*Prototype, error) {
	if p.curr.Type != IDENT {
		return nil, p.errorf("expected function name in prototype, got %s", describe(p.curr))
	}
	proto := &Prototype{Name: p.curr.Literal, Pos: p.curr.Pos}
	p.advance()

	if err := p.expect(LPAREN, "in prototype"); err != nil {
		return nil, err
	}
	if p.curr.Type != RPAREN {
		for {
			if p.curr.Type != IDENT {
				return nil, p.errorf("expected parameter name in prototype, got %s", describe(p.curr))
			}
			proto.Params = append(proto.Params, p.curr.Literal)
			p.advance()

			if p.curr.Type == RPAREN {
				break
			}
			if err := p.expect(COMMA, "or ')' in prototype"); err != nil {
				return nil, err
			}
		}
	}
	p.advance() // consume ')'
	return proto, nil
}

// parseBody ::= '{' (expr ';'?)* '}'
// Separators are optional and a trailing ';' is allowed.
func (p *Parser) parseBody() ([]*ASTNode, error) {
	if err := p.expect(LBRACE, "to open a body"); err != nil {
		return nil, err
	}
	var stmts []*ASTNode
	for p.curr.Type != RBRACE {
		if p.curr.Type == EOF {
			return nil, p.errorf("expected '}' to close a body, got end of input")
		}
		stmt, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if p.curr.Type == SEMICOLON {
			p.advance()
		}
	}
	p.advance() // consume '}'
	return stmts, nil
}

func (p *Parser) parseBlock() (*ASTNode, error) {
	pos := p.curr.Pos
	stmts, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ASTNode{Kind: NodeBlock, Children: stmts, Pos: pos}, nil
}

// precedence returns the precedence level for a given token type
func precedence(tokenType TokenType) int {
	switch tokenType {
	case ASSIGN:
		return 1 // assignment has very low precedence
	case LT, GT:
		return 2
	case PLUS, MINUS:
		return 3
	case ASTERISK, SLASH:
		return 4
	default:
		return 0 // not an operator
	}
}

// isOperator returns true if the token is a binary operator
func isOperator(tokenType TokenType) bool {
	return precedence(tokenType) > 0
}

// ParseExpression parses an expression and returns an AST node
func (p *Parser) ParseExpression() (*ASTNode, error) {
	return p.parseExpressionWithPrecedence(1)
}

// parseExpressionWithPrecedence implements precedence climbing. Every
// operator, assignment included, is left-associative: the right operand only
// absorbs operators that bind strictly tighter.
func (p *Parser) parseExpressionWithPrecedence(minPrec int) (*ASTNode, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for isOperator(p.curr.Type) && precedence(p.curr.Type) >= minPrec {
		op := p.curr
		prec := precedence(op.Type)
		p.advance()

		right, err := p.parseExpressionWithPrecedence(prec + 1)
		if err != nil {
			return nil, err
		}

		left = &ASTNode{
			Kind:     NodeBinary,
			Op:       op.Literal,
			Children: []*ASTNode{left, right},
			Pos:      op.Pos,
		}
	}

	return left, nil
}

// parsePrimary handles literals, identifiers, calls, parentheses and the
// keyword-introduced expressions.
func (p *Parser) parsePrimary() (*ASTNode, error) {
	switch p.curr.Type {
	case NUMBER:
		node := &ASTNode{Kind: NodeNumber, Number: p.curr.Number, Pos: p.curr.Pos}
		p.advance()
		return node, nil

	case IDENT:
		return p.parseIdentifier()

	case LPAREN:
		p.advance() // consume '('
		expr, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(RPAREN, "to close parenthesized expression"); err != nil {
			return nil, err
		}
		return expr, nil

	case RETURN:
		// "return" only marks an expression; the function value is still its
		// last statement.
		p.advance()
		return p.ParseExpression()

	case VAR:
		return p.parseVar()

	case IF:
		return p.parseIf()

	case FOR:
		return p.parseFor()

	default:
		return nil, p.errorf("unexpected %s when expecting an expression", describe(p.curr))
	}
}

// parseIdentifier ::= identifier | identifier '(' (expr (',' expr)*)? ')'
func (p *Parser) parseIdentifier() (*ASTNode, error) {
	name := p.curr.Literal
	pos := p.curr.Pos
	p.advance()

	if p.curr.Type != LPAREN {
		return &ASTNode{Kind: NodeIdent, String: name, Pos: pos}, nil
	}

	p.advance() // consume '('
	call := &ASTNode{Kind: NodeCall, String: name, Pos: pos}
	if p.curr.Type != RPAREN {
		for {
			arg, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			call.Children = append(call.Children, arg)

			if p.curr.Type == RPAREN {
				break
			}
			if err := p.expect(COMMA, "or ')' in argument list"); err != nil {
				return nil, err
			}
		}
	}
	p.advance() // consume ')'
	return call, nil
}

// parseVar ::= 'var' identifier ('=' expr)? ';'
// The ';' is required but left for the enclosing statement list.
func (p *Parser) parseVar() (*ASTNode, error) {
	pos := p.curr.Pos
	p.advance() // consume 'var'

	if p.curr.Type != IDENT {
		return nil, p.errorf("expected identifier after 'var', got %s", describe(p.curr))
	}
	binding := &ASTNode{Kind: NodeBinding, String: p.curr.Literal, Pos: p.curr.Pos}
	p.advance()

	if p.curr.Type == ASSIGN {
		p.advance()
		init, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		binding.Children = []*ASTNode{init}
	}

	if p.curr.Type != SEMICOLON {
		return nil, p.errorf("expected ';' to end the definition of '%s', got %s", binding.String, describe(p.curr))
	}
	return &ASTNode{Kind: NodeVar, Children: []*ASTNode{binding}, Pos: pos}, nil
}

// parseIf ::= 'if' '(' expr ')' '{' stmt_list '}' ('else' '{' stmt_list '}')?
func (p *Parser) parseIf() (*ASTNode, error) {
	pos := p.curr.Pos
	p.advance() // consume 'if'

	if err := p.expect(LPAREN, "after 'if'"); err != nil {
		return nil, err
	}
	cond, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(RPAREN, "after if condition"); err != nil {
		return nil, err
	}
	if p.curr.Type != LBRACE {
		return nil, p.errorf("expected '{' after if condition, got %s", describe(p.curr))
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node := &ASTNode{Kind: NodeIf, Children: []*ASTNode{cond, then}, Pos: pos}

	if p.curr.Type == ELSE {
		p.advance()
		if p.curr.Type != LBRACE {
			return nil, p.errorf("expected '{' after 'else', got %s", describe(p.curr))
		}
		els, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, els)
	}
	return node, nil
}

// parseFor ::= 'for' identifier 'in' '(' expr ',' expr (',' expr)? ')' '{' stmt_list '}'
func (p *Parser) parseFor() (*ASTNode, error) {
	pos := p.curr.Pos
	p.advance() // consume 'for'

	if p.curr.Type != IDENT {
		return nil, p.errorf("expected loop variable after 'for', got %s", describe(p.curr))
	}
	node := &ASTNode{Kind: NodeFor, String: p.curr.Literal, Pos: pos}
	p.advance()

	if p.curr.Type != IDENT || p.curr.Literal != "in" {
		return nil, p.errorf("expected 'in' after loop variable, got %s", describe(p.curr))
	}
	p.advance()

	if err := p.expect(LPAREN, "after 'in'"); err != nil {
		return nil, err
	}
	start, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(COMMA, "after loop start"); err != nil {
		return nil, err
	}
	end, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	node.Children = []*ASTNode{start, end}

	if p.curr.Type == COMMA {
		p.advance()
		step, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, step)
	}
	if err := p.expect(RPAREN, "to close loop range"); err != nil {
		return nil, err
	}

	if p.curr.Type != LBRACE {
		return nil, p.errorf("expected '{' to open loop body, got %s", describe(p.curr))
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node.Children = append(node.Children, body)
	return node, nil
}
