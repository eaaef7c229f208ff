package parser

import (
	"github.com/kowhai-lang/kowhai/lang/ast"
	"github.com/kowhai-lang/kowhai/lang/token"
)

func (p *parser) parseLabelStmt() *ast.LabelStmt {
	var stmt ast.LabelStmt
	stmt.Start = p.expect(token.COLONCOLON)
	stmt.Name = p.parseName()
	stmt.End = p.expect(token.COLONCOLON)
	return &stmt
}

func (p *parser) parseBreakStmt() *ast.BreakStmt {
	return &ast.BreakStmt{Break: p.expect(token.BREAK)}
}

func (p *parser) parseGotoStmt() *ast.GotoStmt {
	var stmt ast.GotoStmt
	stmt.Goto = p.expect(token.GOTO)
	stmt.Name = p.parseName()
	return &stmt
}

func (p *parser) parseDoStmt() *ast.DoStmt {
	var stmt ast.DoStmt
	stmt.Do = p.expect(token.DO)
	stmt.Body = p.parseBlock(token.END)
	stmt.End = p.expect(token.END)
	return &stmt
}

func (p *parser) parseWhileStmt() *ast.WhileStmt {
	var stmt ast.WhileStmt
	stmt.While = p.expect(token.WHILE)
	stmt.Cond = p.parseExpr()
	p.expect(token.DO)
	stmt.Body = p.parseBlock(token.END)
	stmt.End = p.expect(token.END)
	return &stmt
}

func (p *parser) parseRepeatStmt() *ast.RepeatStmt {
	var stmt ast.RepeatStmt
	stmt.Repeat = p.expect(token.REPEAT)
	stmt.Body = p.parseBlock(token.UNTIL)
	p.expect(token.UNTIL)
	stmt.Cond = p.parseExpr()
	return &stmt
}

func (p *parser) parseIfStmt() *ast.IfStmt {
	var stmt ast.IfStmt
	stmt.If = p.expect(token.IF)

	cond := p.parseExpr()
	p.expect(token.THEN)
	body := p.parseBlock(token.ELSEIF, token.ELSE, token.END)
	stmt.Clauses = append(stmt.Clauses, ast.IfClause{Cond: cond, Body: body})

	for p.tok == token.ELSEIF {
		p.expect(token.ELSEIF)
		cond := p.parseExpr()
		p.expect(token.THEN)
		body := p.parseBlock(token.ELSEIF, token.ELSE, token.END)
		stmt.Clauses = append(stmt.Clauses, ast.IfClause{Cond: cond, Body: body})
	}

	if p.tok == token.ELSE {
		p.expect(token.ELSE)
		stmt.Else = p.parseBlock(token.END)
	}
	stmt.End = p.expect(token.END)
	return &stmt
}

// parseForStmt disambiguates the numeric and generic for forms after the
// first Name: `for Name = ...` is numeric, anything else (`,` or `in`) is
// generic.
func (p *parser) parseForStmt() ast.Stmt {
	forPos := p.expect(token.FOR)
	first := p.parseName()

	if p.tok == token.ASSIGN {
		return p.parseNumericForStmt(forPos, first)
	}
	return p.parseGenericForStmt(forPos, first)
}

func (p *parser) parseNumericForStmt(forPos token.Pos, name *ast.Name) *ast.NumericForStmt {
	var stmt ast.NumericForStmt
	stmt.For = forPos
	stmt.Name = name
	p.expect(token.ASSIGN)
	stmt.Start = p.parseExpr()
	p.expect(token.COMMA)
	stmt.Stop = p.parseExpr()
	if p.accept(token.COMMA) {
		stmt.Step = p.parseExpr()
	}
	p.expect(token.DO)
	stmt.Body = p.parseBlock(token.END)
	stmt.End = p.expect(token.END)
	return &stmt
}

func (p *parser) parseGenericForStmt(forPos token.Pos, first *ast.Name) *ast.GenericForStmt {
	var stmt ast.GenericForStmt
	stmt.For = forPos
	stmt.Names = []*ast.Name{first}
	for p.accept(token.COMMA) {
		stmt.Names = append(stmt.Names, p.parseName())
	}
	p.expect(token.IN)
	stmt.Exprs = p.parseExprList()
	p.expect(token.DO)
	stmt.Body = p.parseBlock(token.END)
	stmt.End = p.expect(token.END)
	return &stmt
}

func (p *parser) parseFunctionStmt() *ast.FunctionStmt {
	var stmt ast.FunctionStmt
	stmt.Function = p.expect(token.FUNCTION)
	stmt.Name = p.parseFuncName()
	stmt.Body = p.parseFuncBody()
	return &stmt
}

func (p *parser) parseFuncName() *ast.FuncName {
	var fn ast.FuncName
	fn.Base = p.parseName()
	for p.tok == token.DOT {
		p.expect(token.DOT)
		fn.Fields = append(fn.Fields, p.parseName())
	}
	if p.tok == token.COLON {
		p.expect(token.COLON)
		fn.Method = p.parseName()
	}
	return &fn
}

func (p *parser) parseLocalStmt() ast.Stmt {
	localPos := p.expect(token.LOCAL)
	if p.tok == token.FUNCTION {
		p.expect(token.FUNCTION)
		name := p.parseName()
		body := p.parseFuncBody()
		return &ast.LocalFunctionStmt{Local: localPos, Name: name, Body: body}
	}

	var stmt ast.LocalStmt
	stmt.Local = localPos
	stmt.Names = append(stmt.Names, p.parseName())
	stmt.Attribs = append(stmt.Attribs, p.parseAttrib())
	for p.accept(token.COMMA) {
		stmt.Names = append(stmt.Names, p.parseName())
		stmt.Attribs = append(stmt.Attribs, p.parseAttrib())
	}
	if p.accept(token.ASSIGN) {
		stmt.Right = p.parseExprList()
	}
	return &stmt
}

// parseAttrib parses an optional Lua 5.4 variable attribute `<const>` or
// `<close>`, returning "" if none is present.
func (p *parser) parseAttrib() string {
	if p.tok != token.LT {
		return ""
	}
	p.expect(token.LT)
	name := p.parseName()
	p.expect(token.GT)
	return name.Value
}

func (p *parser) parseReturnStmt() *ast.ReturnStmt {
	var stmt ast.ReturnStmt
	stmt.Return = p.expect(token.RETURN)
	stmt.End = p.val.Pos
	if !tokenIn(p.tok, token.EOF, token.END, token.ELSE, token.ELSEIF, token.UNTIL, token.SEMI) {
		stmt.Exprs = p.parseExprList()
		stmt.End = p.val.Pos
	}
	if p.tok == token.SEMI {
		stmt.End = p.expect(token.SEMI)
	}
	return &stmt
}

// parseExprOrAssignStmt parses either a call-as-statement or an assignment,
// disambiguated by what follows the first parsed expression: `=`/`,` means
// assignment, anything else requires the expression to be a valid call.
// parseExprOrAssignStmt parses a statement starting with an expression:
// either an assignment (`varlist '=' explist`) or a call statement
// (`functioncall`). Only suffixed expressions (Names and calls) are valid to
// start a statement in the Lua grammar — a bare numeric literal, for
// instance, cannot, so parseSuffixedExpr is used rather than parseExpr.
func (p *parser) parseExprOrAssignStmt() ast.Stmt {
	expr := p.parseSuffixedExpr()
	if tokenIn(p.tok, token.COMMA, token.ASSIGN) {
		return p.parseAssignStmt(expr)
	}
	if !ast.IsValidCallStmt(expr) {
		start, end := expr.Span()
		p.errorExpected(start, "function call")
		return &ast.BadStmt{Start: start, End: end}
	}
	return &ast.ExprStmt{Expr: expr}
}

func (p *parser) parseAssignStmt(firstExpr ast.Expr) *ast.AssignStmt {
	var stmt ast.AssignStmt
	left := []ast.Expr{firstExpr}
	for p.accept(token.COMMA) {
		left = append(left, p.parseSuffixedExpr())
	}

	for _, e := range left {
		if !ast.IsAssignable(e) {
			start, _ := e.Span()
			p.errorExpected(start, "assignable expression")
		}
	}

	stmt.Left = left
	p.expect(token.ASSIGN)
	stmt.Right = p.parseExprList()
	return &stmt
}
