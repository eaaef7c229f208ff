package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kowhai-lang/kowhai/lang/scanner"
	"github.com/kowhai-lang/kowhai/lang/token"
)

func scanAll(t *testing.T, src string) ([]token.Token, []token.Value) {
	t.Helper()
	fset := token.NewFileSet()
	f := fset.AddFile("test.lua", len(src))

	var s scanner.Scanner
	var errs []string
	s.Init(f, []byte(src), func(pos token.Position, msg string) {
		errs = append(errs, pos.String()+": "+msg)
	})

	var toks []token.Token
	var vals []token.Value
	var v token.Value
	for {
		tok := s.Scan(&v)
		toks = append(toks, tok)
		vals = append(vals, v)
		if tok == token.EOF {
			break
		}
	}
	require.Emptyf(t, errs, "unexpected scan errors: %v", errs)
	return toks, vals
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks, vals := scanAll(t, "local x = foo")
	require.Equal(t, []token.Token{token.LOCAL, token.IDENT, token.ASSIGN, token.IDENT, token.EOF}, toks)
	require.Equal(t, "x", vals[1].Raw)
	require.Equal(t, "foo", vals[3].Raw)
}

func TestScanPunctuation(t *testing.T) {
	toks, _ := scanAll(t, "a==b~=c<=d>=e..f...")
	require.Equal(t, []token.Token{
		token.IDENT, token.EQ, token.IDENT, token.NEQ, token.IDENT, token.LE,
		token.IDENT, token.GE, token.IDENT, token.DOTDOT, token.IDENT, token.ELLIPSIS,
		token.EOF,
	}, toks)
}

func TestScanComments(t *testing.T) {
	toks, _ := scanAll(t, "x -- a line comment\ny --[[ a\nlong comment ]] z")
	require.Equal(t, []token.Token{token.IDENT, token.IDENT, token.IDENT, token.EOF}, toks)
}

func TestScanIntegers(t *testing.T) {
	toks, vals := scanAll(t, "10 0x1A 0")
	require.Equal(t, []token.Token{token.INT, token.INT, token.INT, token.EOF}, toks)
	require.Equal(t, int64(10), vals[0].Int)
	require.Equal(t, int64(26), vals[1].Int)
}

func TestScanFloats(t *testing.T) {
	toks, vals := scanAll(t, "1.5 1e10 0x1p4 3.")
	require.Equal(t, []token.Token{token.FLOAT, token.FLOAT, token.FLOAT, token.FLOAT, token.EOF}, toks)
	require.InDelta(t, 1.5, vals[0].Float, 0)
	require.InDelta(t, 1e10, vals[1].Float, 0)
}

func TestScanShortString(t *testing.T) {
	toks, vals := scanAll(t, `"hello\nworld"`)
	require.Equal(t, []token.Token{token.STRING, token.EOF}, toks)
	require.Equal(t, "hello\nworld", vals[0].String)
}

func TestScanLongString(t *testing.T) {
	toks, vals := scanAll(t, "[[raw\ntext]]")
	require.Equal(t, []token.Token{token.STRING, token.EOF}, toks)
	require.Equal(t, "raw\ntext", vals[0].String)

	toks, vals = scanAll(t, "[==[a]]b]==]")
	require.Equal(t, []token.Token{token.STRING, token.EOF}, toks)
	require.Equal(t, "a]]b", vals[0].String)
}

func TestScanIllegalCharacter(t *testing.T) {
	fset := token.NewFileSet()
	f := fset.AddFile("test.lua", 1)
	var s scanner.Scanner
	var errs []string
	s.Init(f, []byte("$"), func(pos token.Position, msg string) {
		errs = append(errs, msg)
	})
	var v token.Value
	tok := s.Scan(&v)
	require.Equal(t, token.ILLEGAL, tok)
	require.Len(t, errs, 1)
}
