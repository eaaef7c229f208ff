package scanner

import (
	"strconv"

	"github.com/kowhai-lang/kowhai/lang/token"
)

// number scans a Lua numeral: a decimal integer/float with an optional
// `e`/`E` exponent, or a hexadecimal integer/float (`0x` prefix) with an
// optional `p`/`P` exponent. Lua numerals have no digit-separator ('_') and
// no octal/binary prefix.
func (s *Scanner) number() (tok token.Token, base int, lit string) {
	startOff := s.off
	tok = token.INT
	base = 10
	isHex := false

	if s.cur == '0' {
		s.advance()
		if lower(s.cur) == 'x' {
			s.advance()
			base, isHex = 16, true
		}
	}
	s.digits(base)

	if s.cur == '.' {
		tok = token.FLOAT
		s.advance()
		s.digits(base)
	}

	if e := lower(s.cur); (isHex && e == 'p') || (!isHex && e == 'e') {
		s.advance()
		tok = token.FLOAT
		if s.cur == '+' || s.cur == '-' {
			s.advance()
		}
		if !isDecimal(s.cur) {
			s.error(s.off, "exponent has no digits")
		}
		s.digits(10)
	} else if isHex && tok == token.FLOAT {
		s.error(s.off, "hexadecimal float requires a 'p' exponent")
	}

	lit = string(s.src[startOff:s.off])
	return tok, base, lit
}

func isDecimal(rn rune) bool {
	return '0' <= rn && rn <= '9'
}

func isHexadecimal(rn rune) bool {
	return isDecimal(rn) ||
		'a' <= rn && rn <= 'f' ||
		'A' <= rn && rn <= 'F'
}

// digits consumes a run of digits valid in base (10 or 16).
func (s *Scanner) digits(base int) {
	if base == 16 {
		for isHexadecimal(s.cur) {
			s.advance()
		}
		return
	}
	for isDecimal(s.cur) {
		s.advance()
	}
}

func lower(ch rune) rune {
	return ('a' - 'A') | ch // returns lower-case ch iff ch is ASCII letter
}

// numberToInt parses a scanned integer literal. Hexadecimal integers wrap
// around 64 bits per Lua semantics, matching strconv's ParseUint-then-cast
// behavior for out-of-range hex literals.
func numberToInt(lit string, base int) (int64, error) {
	if base == 16 {
		u, err := strconv.ParseUint(lit[2:], 16, 64)
		return int64(u), err
	}
	return strconv.ParseInt(lit, base, 64)
}

func numberToFloat(lit string) (float64, error) {
	return strconv.ParseFloat(lit, 64)
}
