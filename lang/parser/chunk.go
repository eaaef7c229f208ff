package parser

import (
	"github.com/kowhai-lang/kowhai/lang/ast"
	"github.com/kowhai-lang/kowhai/lang/token"
)

func (p *parser) parseChunk() *ast.Chunk {
	var chunk ast.Chunk
	chunk.Block = p.parseBlock()
	chunk.EOF = p.expect(token.EOF)
	return &chunk
}

// parseBlock parses a sequence of statements up to (but not consuming) one
// of endToks or EOF. A block-ending statement (return/break) may only
// be the last statement; anything after it is an error.
func (p *parser) parseBlock(endToks ...token.Token) *ast.Block {
	var block ast.Block
	var list []ast.Stmt

	block.Start = p.val.Pos
	endToks = append(endToks, token.EOF)

	var ending ast.Stmt
	var endingReported bool
	for !tokenIn(p.tok, endToks...) {
		stmt := p.parseStmt()
		if stmt == nil {
			continue
		}
		if ending != nil {
			if !endingReported {
				pos, _ := stmt.Span()
				p.errorExpected(pos, "end of block")
				endingReported = true
			}
		} else if stmt.BlockEnding() {
			ending = stmt
		}
		list = append(list, stmt)
	}

	block.Stmts = list
	block.End = p.val.Pos
	return &block
}

// parseStmt parses one statement, returning nil for a statement to skip
// (the empty `;` statement).
func (p *parser) parseStmt() (stmt ast.Stmt) {
	start := p.val.Pos

	defer func() {
		if err := recover(); err != nil {
			if err == errPanicMode {
				stmt = &ast.BadStmt{Start: start, End: p.syncAfterError()}
				return
			}
			panic(err)
		}
	}()

	switch p.tok {
	case token.SEMI:
		p.advance()
		return nil
	case token.COLONCOLON:
		return p.parseLabelStmt()
	case token.BREAK:
		return p.parseBreakStmt()
	case token.GOTO:
		return p.parseGotoStmt()
	case token.DO:
		return p.parseDoStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.REPEAT:
		return p.parseRepeatStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.FUNCTION:
		return p.parseFunctionStmt()
	case token.LOCAL:
		return p.parseLocalStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func tokenIn(t token.Token, toks ...token.Token) bool {
	for _, tok := range toks {
		if t == tok {
			return true
		}
	}
	return false
}

// syncToks are tokens that synchronize the parser after a parse error: the
// parser skips forward until it finds one, to resume parsing at a safe
// statement boundary instead of cascading more errors from the same defect.
var syncToks = map[token.Token]bool{
	token.SEMI: true, token.END: true, token.IF: true, token.WHILE: true,
	token.FOR: true, token.DO: true, token.REPEAT: true, token.UNTIL: true,
	token.FUNCTION: true, token.LOCAL: true, token.RETURN: true,
	token.BREAK: true, token.GOTO: true, token.COLONCOLON: true,
	token.ELSE: true, token.ELSEIF: true,
}

func (p *parser) syncAfterError() token.Pos {
	for p.tok != token.EOF {
		if syncToks[p.tok] {
			if p.tok == token.SEMI {
				p.advance()
			}
			return p.val.Pos
		}
		p.advance()
	}
	return p.val.Pos
}
