package parser_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kowhai-lang/kowhai/lang/ast"
	"github.com/kowhai-lang/kowhai/lang/parser"
	"github.com/kowhai-lang/kowhai/lang/token"
)

func parseOK(t *testing.T, src string) *ast.Chunk {
	t.Helper()
	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(context.Background(), fset, "test.lua", []byte(src))
	require.NoError(t, err)
	return chunk
}

func TestParseLocalAssign(t *testing.T) {
	chunk := parseOK(t, "local x, y = 1, 2")
	require.Len(t, chunk.Block.Stmts, 1)
	stmt, ok := chunk.Block.Stmts[0].(*ast.LocalStmt)
	require.True(t, ok)
	require.Len(t, stmt.Names, 2)
	require.Equal(t, "x", stmt.Names[0].Value)
	require.Equal(t, "y", stmt.Names[1].Value)
	require.Len(t, stmt.Right, 2)
}

func TestParseAssign(t *testing.T) {
	chunk := parseOK(t, "x.y[1] = z")
	require.Len(t, chunk.Block.Stmts, 1)
	stmt, ok := chunk.Block.Stmts[0].(*ast.AssignStmt)
	require.True(t, ok)
	require.Len(t, stmt.Left, 1)
	_, ok = stmt.Left[0].(*ast.IndexExpr)
	require.True(t, ok)
}

func TestParseIfElseif(t *testing.T) {
	chunk := parseOK(t, `
if a then
	b()
elseif c then
	d()
else
	e()
end`)
	require.Len(t, chunk.Block.Stmts, 1)
	stmt, ok := chunk.Block.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	require.Len(t, stmt.Clauses, 2)
	require.NotNil(t, stmt.Else)
}

func TestParseNumericFor(t *testing.T) {
	chunk := parseOK(t, "for i = 1, 10, 2 do print(i) end")
	stmt, ok := chunk.Block.Stmts[0].(*ast.NumericForStmt)
	require.True(t, ok)
	require.Equal(t, "i", stmt.Name.Value)
	require.NotNil(t, stmt.Step)
}

func TestParseGenericFor(t *testing.T) {
	chunk := parseOK(t, "for k, v in pairs(t) do print(k, v) end")
	stmt, ok := chunk.Block.Stmts[0].(*ast.GenericForStmt)
	require.True(t, ok)
	require.Len(t, stmt.Names, 2)
}

func TestParseWhileAndRepeat(t *testing.T) {
	chunk := parseOK(t, "while true do break end repeat x = x - 1 until x == 0")
	require.Len(t, chunk.Block.Stmts, 2)
	_, ok := chunk.Block.Stmts[0].(*ast.WhileStmt)
	require.True(t, ok)
	_, ok = chunk.Block.Stmts[1].(*ast.RepeatStmt)
	require.True(t, ok)
}

func TestParseFunctionDecl(t *testing.T) {
	chunk := parseOK(t, "function t.a.b:m(x, ...) return x end")
	stmt, ok := chunk.Block.Stmts[0].(*ast.FunctionStmt)
	require.True(t, ok)
	require.Equal(t, "t", stmt.Name.Base.Value)
	require.Len(t, stmt.Name.Fields, 2)
	require.Equal(t, "m", stmt.Name.Method.Value)
	require.True(t, stmt.Body.Params.Variadic)
}

func TestParseLocalFunction(t *testing.T) {
	chunk := parseOK(t, "local function f() return 1 end")
	stmt, ok := chunk.Block.Stmts[0].(*ast.LocalFunctionStmt)
	require.True(t, ok)
	require.Equal(t, "f", stmt.Name.Value)
}

func TestParseCallAndMethodCall(t *testing.T) {
	chunk := parseOK(t, `print("hi") obj:method(1, 2)`)
	require.Len(t, chunk.Block.Stmts, 2)
	es1, ok := chunk.Block.Stmts[0].(*ast.ExprStmt)
	require.True(t, ok)
	_, ok = es1.Expr.(*ast.CallExpr)
	require.True(t, ok)

	es2, ok := chunk.Block.Stmts[1].(*ast.ExprStmt)
	require.True(t, ok)
	mc, ok := es2.Expr.(*ast.MethodCallExpr)
	require.True(t, ok)
	require.Equal(t, "method", mc.Method.Value)
}

func TestParseTableConstructor(t *testing.T) {
	chunk := parseOK(t, `local t = {1, 2, x = 3, [4+1] = 5}`)
	stmt := chunk.Block.Stmts[0].(*ast.LocalStmt)
	tbl, ok := stmt.Right[0].(*ast.TableExpr)
	require.True(t, ok)
	require.Len(t, tbl.Fields, 4)
	require.Nil(t, tbl.Fields[0].Key)
	require.Nil(t, tbl.Fields[1].Key)
	require.NotNil(t, tbl.Fields[2].Key)
	require.NotNil(t, tbl.Fields[3].Key)
}

func TestParseBinOpPrecedence(t *testing.T) {
	chunk := parseOK(t, "local x = 1 + 2 * 3")
	stmt := chunk.Block.Stmts[0].(*ast.LocalStmt)
	bin := stmt.Right[0].(*ast.BinOpExpr)
	require.Equal(t, token.PLUS, bin.Op)
	mul, ok := bin.Right.(*ast.BinOpExpr)
	require.True(t, ok)
	require.Equal(t, token.STAR, mul.Op)
}

func TestParseRightAssocConcat(t *testing.T) {
	chunk := parseOK(t, "local x = a .. b .. c")
	stmt := chunk.Block.Stmts[0].(*ast.LocalStmt)
	bin := stmt.Right[0].(*ast.BinOpExpr)
	// right-associative: a .. (b .. c)
	_, leftIsName := bin.Left.(*ast.Name)
	require.True(t, leftIsName)
	_, rightIsBin := bin.Right.(*ast.BinOpExpr)
	require.True(t, rightIsBin)
}

func TestParseReturnAndBreak(t *testing.T) {
	chunk := parseOK(t, "while true do if x then break end end return 1, 2")
	require.Len(t, chunk.Block.Stmts, 2)
	ret, ok := chunk.Block.Stmts[1].(*ast.ReturnStmt)
	require.True(t, ok)
	require.Len(t, ret.Exprs, 2)
}

func TestParseLabelAndGoto(t *testing.T) {
	chunk := parseOK(t, "::top:: goto top")
	require.Len(t, chunk.Block.Stmts, 2)
	_, ok := chunk.Block.Stmts[0].(*ast.LabelStmt)
	require.True(t, ok)
	_, ok = chunk.Block.Stmts[1].(*ast.GotoStmt)
	require.True(t, ok)
}

func TestParseLocalAttribs(t *testing.T) {
	chunk := parseOK(t, "local x <const> = 1")
	stmt := chunk.Block.Stmts[0].(*ast.LocalStmt)
	require.Equal(t, "const", stmt.Attribs[0])
}

func TestParseError(t *testing.T) {
	fset := token.NewFileSet()
	_, err := parser.ParseChunk(context.Background(), fset, "bad.lua", []byte("local = 1"))
	require.Error(t, err)
}
