package parser

import (
	"github.com/kowhai-lang/kowhai/lang/ast"
	"github.com/kowhai-lang/kowhai/lang/token"
)

func (p *parser) parseExpr() ast.Expr {
	return p.parseSubExpr(0)
}

// parseSubExpr parses an expression whose outer binary operator binds
// tighter than priority (precedence climbing).
func (p *parser) parseSubExpr(priority int) ast.Expr {
	var left ast.Expr

	if token.IsUnaryOp(p.tok) {
		op := p.tok
		opPos := p.expect(p.tok)
		left = &ast.UnOpExpr{Op: op, OpPos: opPos, Right: p.parseSubExpr(token.UnaryPrecedence)}
	} else {
		left = p.parseSimpleExpr()
	}

	for {
		prec := token.BinaryPrecedence(p.tok)
		if prec <= priority {
			break
		}
		op := p.tok
		opPos := p.expect(p.tok)
		nextPriority := prec
		if token.RightAssoc(op) {
			nextPriority--
		}
		right := p.parseSubExpr(nextPriority)
		left = &ast.BinOpExpr{Left: left, Op: op, OpPos: opPos, Right: right}
	}
	return left
}

func (p *parser) parseSimpleExpr() ast.Expr {
	switch p.tok {
	case token.NIL:
		pos := p.expect(token.NIL)
		return &ast.NilExpr{Start: pos}
	case token.TRUE:
		pos := p.expect(token.TRUE)
		return &ast.BoolExpr{Start: pos, Value: true}
	case token.FALSE:
		pos := p.expect(token.FALSE)
		return &ast.BoolExpr{Start: pos, Value: false}
	case token.INT:
		raw, val := p.val.Raw, p.val.Int
		pos := p.expect(token.INT)
		return &ast.NumberExpr{Start: pos, Raw: raw, Int: val}
	case token.FLOAT:
		raw, val := p.val.Raw, p.val.Float
		pos := p.expect(token.FLOAT)
		return &ast.NumberExpr{Start: pos, Raw: raw, IsFloat: true, Float: val}
	case token.STRING:
		raw, val := p.val.Raw, p.val.String
		pos := p.expect(token.STRING)
		return &ast.StringExpr{Start: pos, Raw: raw, Value: val}
	case token.ELLIPSIS:
		pos := p.expect(token.ELLIPSIS)
		return &ast.VarargExpr{Ellipsis: pos}
	case token.FUNCTION:
		return p.parseFunctionExpr()
	case token.LBRACE:
		return p.parseTableExpr()
	default:
		return p.parseSuffixedExpr()
	}
}

func (p *parser) parseFunctionExpr() *ast.FunctionExpr {
	fn := p.expect(token.FUNCTION)
	body := p.parseFuncBody()
	return &ast.FunctionExpr{Function: fn, Body: body}
}

func (p *parser) parseFuncBody() *ast.FuncBody {
	var body ast.FuncBody
	body.Lparen = p.expect(token.LPAREN)
	body.Params = p.parseParList()
	body.Rparen = p.expect(token.RPAREN)
	body.Body = p.parseBlock(token.END)
	body.End = p.expect(token.END)
	return &body
}

func (p *parser) parseParList() *ast.ParList {
	var pl ast.ParList
	if p.tok == token.RPAREN {
		return &pl
	}
	for {
		if p.tok == token.ELLIPSIS {
			pl.Variadic = true
			pl.VariadicPos = p.expect(token.ELLIPSIS)
			break
		}
		pl.Names = append(pl.Names, p.parseName())
		if !p.accept(token.COMMA) {
			break
		}
	}
	return &pl
}

func (p *parser) parseName() *ast.Name {
	lit := p.val.Raw
	pos := p.expect(token.IDENT)
	return &ast.Name{NamePos: pos, Value: lit}
}

// parseTableExpr parses a table constructor: `{` [field {fieldsep field}
// [fieldsep]] `}`, where field is `[exp] = exp`, `Name = exp` or a bare exp,
// and fieldsep is `,` or `;`.
func (p *parser) parseTableExpr() *ast.TableExpr {
	var texpr ast.TableExpr
	texpr.Lbrace = p.expect(token.LBRACE)

	for p.tok != token.RBRACE && p.tok != token.EOF {
		texpr.Fields = append(texpr.Fields, p.parseField())
		if !p.accept(token.COMMA) && !p.accept(token.SEMI) {
			break
		}
	}
	texpr.Rbrace = p.expect(token.RBRACE)
	return &texpr
}

func (p *parser) parseField() *ast.Field {
	switch {
	case p.tok == token.LBRACK:
		p.expect(token.LBRACK)
		key := p.parseExpr()
		p.expect(token.RBRACK)
		assign := p.expect(token.ASSIGN)
		val := p.parseExpr()
		return &ast.Field{Key: key, Assign: assign, Value: val}

	case p.tok == token.IDENT:
		// could be `Name = exp` or a bare expression starting with Name;
		// only committing to the key form if '=' follows the Name.
		name := p.parseName()
		if p.tok == token.ASSIGN {
			assign := p.expect(token.ASSIGN)
			key := &ast.StringExpr{Start: name.NamePos, Raw: name.Value, Value: name.Value}
			val := p.parseExpr()
			return &ast.Field{Key: key, Assign: assign, Value: val}
		}
		val := p.parseSuffixedExprFrom(name)
		val = p.continueBinExpr(val)
		return &ast.Field{Value: val}

	default:
		return &ast.Field{Value: p.parseExpr()}
	}
}

// continueBinExpr extends a primary/suffixed expression already parsed (as
// the left operand) with any trailing binary operators, mirroring the tail
// of parseSubExpr. Used by parseField, which must parse a Name eagerly to
// decide between a keyed field and a bare expression.
func (p *parser) continueBinExpr(left ast.Expr) ast.Expr {
	for {
		prec := token.BinaryPrecedence(p.tok)
		if prec <= 0 {
			break
		}
		op := p.tok
		opPos := p.expect(p.tok)
		nextPriority := prec
		if token.RightAssoc(op) {
			nextPriority--
		}
		right := p.parseSubExpr(nextPriority)
		left = &ast.BinOpExpr{Left: left, Op: op, OpPos: opPos, Right: right}
	}
	return left
}

// parseSuffixedExpr parses a prefixexp: a Name or a parenthesized
// expression, followed by any number of `.Name`, `[exp]`, `:Name(args)` or
// `(args)` suffixes.
func (p *parser) parseSuffixedExpr() ast.Expr {
	return p.parseSuffixedExprFrom(p.parsePrimaryExpr())
}

func (p *parser) parsePrimaryExpr() ast.Expr {
	switch p.tok {
	case token.IDENT:
		return p.parseName()
	case token.LPAREN:
		lparen := p.expect(token.LPAREN)
		inner := p.parseExpr()
		rparen := p.expect(token.RPAREN)
		return &ast.ParenExpr{Lparen: lparen, Expr: inner, Rparen: rparen}
	default:
		p.expect(token.IDENT, token.LPAREN)
		panic("unreachable")
	}
}

func (p *parser) parseSuffixedExprFrom(primary ast.Expr) ast.Expr {
	expr := primary
loop:
	for {
		switch p.tok {
		case token.DOT:
			dot := p.expect(token.DOT)
			name := p.parseName()
			expr = &ast.FieldExpr{Prefix: expr, Dot: dot, Name: name}
		case token.LBRACK:
			lbrack := p.expect(token.LBRACK)
			idx := p.parseExpr()
			rbrack := p.expect(token.RBRACK)
			expr = &ast.IndexExpr{Prefix: expr, Lbrack: lbrack, Index: idx, Rbrack: rbrack}
		case token.COLON:
			colon := p.expect(token.COLON)
			method := p.parseName()
			lparen, args, rparen := p.parseArgs()
			expr = &ast.MethodCallExpr{
				Prefix: expr, Colon: colon, Method: method,
				Lparen: lparen, Args: args, Rparen: rparen,
			}
		case token.LPAREN, token.LBRACE, token.STRING:
			lparen, args, rparen := p.parseArgs()
			expr = &ast.CallExpr{Fn: expr, Lparen: lparen, Args: args, Rparen: rparen}
		default:
			break loop
		}
	}
	return expr
}

// parseArgs parses a call's argument list: `(explist)`, a single table
// constructor, or a single string literal.
func (p *parser) parseArgs() (lparen token.Pos, args []ast.Expr, rparen token.Pos) {
	switch p.tok {
	case token.LPAREN:
		lparen = p.expect(token.LPAREN)
		if p.tok != token.RPAREN {
			args = p.parseExprList()
		}
		rparen = p.expect(token.RPAREN)
		return lparen, args, rparen
	case token.LBRACE:
		return token.NoPos, []ast.Expr{p.parseTableExpr()}, token.NoPos
	case token.STRING:
		raw, val := p.val.Raw, p.val.String
		pos := p.expect(token.STRING)
		return token.NoPos, []ast.Expr{&ast.StringExpr{Start: pos, Raw: raw, Value: val}}, token.NoPos
	default:
		p.expect(token.LPAREN, token.LBRACE, token.STRING)
		panic("unreachable")
	}
}

func (p *parser) parseExprList() []ast.Expr {
	exprs := []ast.Expr{p.parseExpr()}
	for p.accept(token.COMMA) {
		exprs = append(exprs, p.parseExpr())
	}
	return exprs
}
