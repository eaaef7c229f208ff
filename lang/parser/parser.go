// Package parser implements a recursive-descent parser that transforms Lua
// 5.4 source code into an abstract syntax tree (AST).
package parser

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/kowhai-lang/kowhai/lang/ast"
	"github.com/kowhai-lang/kowhai/lang/scanner"
	"github.com/kowhai-lang/kowhai/lang/token"
)

// ParseFiles is a helper function that parses the source files and returns
// the fileset along with the ASTs and any error encountered. The error, if
// non-nil, is guaranteed to be a scanner.ErrorList.
func ParseFiles(ctx context.Context, files ...string) (*token.FileSet, []*ast.Chunk, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}

	var p parser
	res := make([]*ast.Chunk, 0, len(files))
	fs := token.NewFileSet()

	for _, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			p.errors.Add(token.Position{Filename: file}, err.Error())
			continue
		}

		p.init(fs, file, b)
		ch := p.parseChunk()
		ch.Name = file
		res = append(res, ch)
	}
	p.errors.Sort()
	return fs, res, p.errors.Err()
}

// ParseChunk is a helper function that parses a single chunk from a slice of
// bytes and returns the AST and any error encountered. The chunk is added to
// the provided fset for position reporting under the name specified in
// filename. The error, if non-nil, is guaranteed to be a scanner.ErrorList.
func ParseChunk(ctx context.Context, fset *token.FileSet, filename string, src []byte) (*ast.Chunk, error) {
	var p parser
	p.init(fset, filename, src)
	ch := p.parseChunk()
	ch.Name = filename
	return ch, p.errors.Err()
}

// parser parses a source file and generates an AST.
type parser struct {
	scanner scanner.Scanner
	errors  scanner.ErrorList
	file    *token.File

	// current token
	tok token.Token
	val token.Value
}

func (p *parser) init(fset *token.FileSet, filename string, src []byte) {
	p.file = fset.AddFile(filename, len(src))
	p.scanner.Init(p.file, src, p.errors.Add)

	// advance to first token
	p.advance()
}

func (p *parser) advance() {
	p.tok = p.scanner.Scan(&p.val)
}

var errPanicMode = errors.New("panic")

// expect returns the position of the current token and consumes it if it is
// one of the expected tokens, otherwise it reports an error and panics with
// errPanicMode, which is recovered at the statement level, resulting in a
// BadStmt.
func (p *parser) expect(toks ...token.Token) token.Pos {
	pos := p.val.Pos

	var buf strings.Builder
	var ok bool
	for i, tok := range toks {
		if p.tok == tok {
			ok = true
			break
		}
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(tok.GoString())
	}

	if !ok {
		var lbl string
		if len(toks) > 1 {
			lbl = "one of " + buf.String()
		} else {
			lbl = buf.String()
		}
		p.errorExpected(pos, lbl)
		panic(errPanicMode)
	}

	p.advance()
	return pos
}

// accept consumes and returns true if the current token is tok, otherwise it
// leaves the token stream untouched and returns false.
func (p *parser) accept(tok token.Token) bool {
	if p.tok != tok {
		return false
	}
	p.advance()
	return true
}

func (p *parser) error(pos token.Pos, msg string) {
	lpos := p.file.Position(pos)
	p.errors.Add(lpos, msg)
}

func (p *parser) errorExpected(pos token.Pos, msg string) {
	msg = "expected " + msg
	if pos == p.val.Pos {
		// the error happened at the current position; make the error
		// message more specific
		switch lit := p.tok.Literal(p.val); lit {
		case "":
			msg += ", found " + p.tok.GoString()
		default:
			msg += ", found " + lit
		}
	}
	p.error(pos, msg)
}
