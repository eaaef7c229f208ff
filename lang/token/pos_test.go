package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSetPosition(t *testing.T) {
	fset := NewFileSet()
	f0 := fset.AddFile("a.lua", 10)
	f1 := fset.AddFile("b.lua", 4)

	// f0 spans offsets 0..10 (Pos 1..11), with lines starting at 0, 4 and 7.
	f0.AddLine(4) // newline byte at offset 3, line 2 starts at 4
	f0.AddLine(7) // newline byte at offset 6, line 3 starts at 7

	cases := []struct {
		pos  Pos
		want Position
	}{
		{f0.Pos(0), Position{"a.lua", 1, 1}},
		{f0.Pos(3), Position{"a.lua", 1, 4}},
		{f0.Pos(4), Position{"a.lua", 2, 1}},
		{f0.Pos(6), Position{"a.lua", 2, 3}},
		{f0.Pos(7), Position{"a.lua", 3, 1}},
		{f0.Pos(10), Position{"a.lua", 3, 4}},
		{f1.Pos(0), Position{"b.lua", 1, 1}},
		{f1.Pos(4), Position{"b.lua", 1, 5}},
	}
	for _, c := range cases {
		got := fset.Position(c.pos)
		require.Equal(t, c.want, got)
	}
}

func TestFileSetFileLookup(t *testing.T) {
	fset := NewFileSet()
	f0 := fset.AddFile("a.lua", 5)
	f1 := fset.AddFile("b.lua", 3)

	require.Same(t, f0, fset.File(f0.Pos(0)))
	require.Same(t, f0, fset.File(f0.Pos(5)))
	require.Same(t, f1, fset.File(f1.Pos(0)))
	require.Nil(t, fset.File(NoPos))
}

func TestPositionString(t *testing.T) {
	require.Equal(t, "-", Position{}.String())
	require.Equal(t, "a.lua:1:1", Position{Filename: "a.lua", Line: 1, Column: 1}.String())
	require.Equal(t, "3:4", Position{Line: 3, Column: 4}.String())
}
