package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		require.NotEmpty(t, tok.String())
	}
	require.Contains(t, Token(127).String(), "token(127)")
}

func TestGoString(t *testing.T) {
	require.Equal(t, "identifier", IDENT.GoString())
	require.Equal(t, "'+'", PLUS.GoString())
	require.Equal(t, "'local'", LOCAL.GoString())
}

func TestKeywords(t *testing.T) {
	for tok := AND; tok < maxToken; tok++ {
		got, ok := Keywords[tok.String()]
		require.True(t, ok)
		require.Equal(t, tok, got)
	}
	_, ok := Keywords["notakeyword"]
	require.False(t, ok)
}

func TestBinaryPrecedence(t *testing.T) {
	require.Zero(t, BinaryPrecedence(LOCAL))
	require.Less(t, BinaryPrecedence(OR), BinaryPrecedence(AND))
	require.Less(t, BinaryPrecedence(AND), BinaryPrecedence(LT))
	require.Less(t, BinaryPrecedence(PLUS), BinaryPrecedence(STAR))
	require.Less(t, BinaryPrecedence(STAR), BinaryPrecedence(CARET))
	require.Less(t, BinaryPrecedence(DOTDOT), BinaryPrecedence(PLUS))
}

func TestLookupKw(t *testing.T) {
	require.Equal(t, LOCAL, LookupKw("local"))
	require.Equal(t, AND, LookupKw("and"))
	require.Equal(t, IDENT, LookupKw("notakeyword"))
}

func TestLookupPunct(t *testing.T) {
	require.Equal(t, PLUS, LookupPunct("+"))
	require.Equal(t, DOTDOT, LookupPunct(".."))
	require.Equal(t, ELLIPSIS, LookupPunct("..."))
	require.Panics(t, func() { LookupPunct("not-a-punct") })
}

func TestRightAssoc(t *testing.T) {
	require.True(t, RightAssoc(CARET))
	require.True(t, RightAssoc(DOTDOT))
	require.False(t, RightAssoc(PLUS))
	require.False(t, RightAssoc(STAR))
}
