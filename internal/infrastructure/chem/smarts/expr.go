package smarts

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/turtacn/molcore/internal/domain/molecule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Atom expressions
//
// Precedence, tightest first: '!', '&' (or juxtaposition), ',', ';'.
// ─────────────────────────────────────────────────────────────────────────────

type atomLexer struct {
	s   string
	pos int
	// first is true until the first primitive has been read; a leading H
	// names the element rather than a hydrogen count.
	first  bool
	mapNum int
}

func parseAtomExpr(body string) (*molecule.AtomExpr, int, error) {
	if body == "" {
		return nil, 0, fmt.Errorf("empty bracket atom")
	}
	l := &atomLexer{s: body, first: true}
	e, err := l.low()
	if err != nil {
		return nil, 0, err
	}
	if l.pos != len(l.s) {
		return nil, 0, fmt.Errorf("unexpected character %q in bracket atom", l.s[l.pos])
	}
	return e, l.mapNum, nil
}

func (l *atomLexer) peek() byte {
	if l.pos < len(l.s) {
		return l.s[l.pos]
	}
	return 0
}

func (l *atomLexer) low() (*molecule.AtomExpr, error) {
	var parts []*molecule.AtomExpr
	for {
		e, err := l.or()
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
		if l.peek() != ';' {
			break
		}
		l.pos++
	}
	return molecule.AtomAnd(parts...), nil
}

func (l *atomLexer) or() (*molecule.AtomExpr, error) {
	var parts []*molecule.AtomExpr
	for {
		e, err := l.and()
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
		if l.peek() != ',' {
			break
		}
		l.pos++
	}
	return molecule.AtomOr(parts...), nil
}

func (l *atomLexer) and() (*molecule.AtomExpr, error) {
	var parts []*molecule.AtomExpr
	for {
		e, err := l.not()
		if err != nil {
			return nil, err
		}
		if e != nil {
			parts = append(parts, e)
		}
		c := l.peek()
		if c == '&' {
			l.pos++
			continue
		}
		if c == 0 || c == ',' || c == ';' {
			break
		}
	}
	if len(parts) == 0 {
		return molecule.AtomPrim(molecule.AtomAny, 0), nil
	}
	return molecule.AtomAnd(parts...), nil
}

func (l *atomLexer) not() (*molecule.AtomExpr, error) {
	if l.peek() == '!' {
		l.pos++
		e, err := l.not()
		if err != nil {
			return nil, err
		}
		if e == nil {
			e = molecule.AtomPrim(molecule.AtomAny, 0)
		}
		return molecule.AtomNot(e), nil
	}
	return l.primitive()
}

func (l *atomLexer) number() (int, bool) {
	start := l.pos
	n := 0
	for l.pos < len(l.s) && l.s[l.pos] >= '0' && l.s[l.pos] <= '9' {
		n = n*10 + int(l.s[l.pos]-'0')
		l.pos++
	}
	return n, l.pos > start
}

func (l *atomLexer) countOr(def int) int {
	if n, ok := l.number(); ok {
		return n
	}
	return def
}

// primitive reads one atom test. Chirality marks and atom classes return a
// nil expression: they are accepted but never constrain a match.
func (l *atomLexer) primitive() (*molecule.AtomExpr, error) {
	first := l.first
	l.first = false
	if l.pos >= len(l.s) {
		return nil, fmt.Errorf("incomplete atom expression")
	}
	c := l.s[l.pos]
	rest := l.s[l.pos:]

	switch {
	case c >= '0' && c <= '9':
		n, _ := l.number()
		l.first = first
		return molecule.AtomPrim(molecule.AtomIsotope, n), nil
	case c == '*':
		l.pos++
		return molecule.AtomPrim(molecule.AtomAny, 0), nil
	case c == '#':
		l.pos++
		n, ok := l.number()
		if !ok {
			return nil, fmt.Errorf("'#' needs an atomic number")
		}
		return molecule.AtomPrim(molecule.AtomAtomicNum, n), nil
	case c == '+' || c == '-':
		l.pos++
		sign := 1
		if c == '-' {
			sign = -1
		}
		mag := 1
		if n, ok := l.number(); ok {
			mag = n
		} else {
			for l.peek() == c {
				mag++
				l.pos++
			}
		}
		return molecule.AtomPrim(molecule.AtomCharge, sign*mag), nil
	case c == '@':
		l.pos++
		if l.peek() == '@' {
			l.pos++
		}
		for _, class := range []string{"TH", "AL", "SP", "TB", "OH"} {
			if strings.HasPrefix(l.s[l.pos:], class) {
				l.pos += len(class)
				l.number()
				break
			}
		}
		return nil, nil
	case c == ':':
		l.pos++
		n, ok := l.number()
		if !ok {
			return nil, fmt.Errorf("missing atom class")
		}
		l.mapNum = n
		return nil, nil
	case c == '$':
		return nil, fmt.Errorf("recursive SMARTS is not supported")
	}

	// Two-letter element symbols win over single-letter primitives.
	if len(rest) >= 2 && unicode.IsUpper(rune(rest[0])) && unicode.IsLower(rune(rest[1])) {
		if el, ok := molecule.ElementBySymbol(rest[:2]); ok {
			l.pos += 2
			return aliphatic(el.Number), nil
		}
	}
	if len(rest) >= 2 {
		if el, ok := molecule.AromaticSymbol(rest[:2]); ok {
			l.pos += 2
			return aromatic(el.Number), nil
		}
	}

	switch c {
	case 'H':
		l.pos++
		if first {
			return molecule.AtomPrim(molecule.AtomAtomicNum, 1), nil
		}
		return molecule.AtomPrim(molecule.AtomTotalHs, l.countOr(1)), nil
	case 'D':
		l.pos++
		return molecule.AtomPrim(molecule.AtomDegree, l.countOr(1)), nil
	case 'X':
		l.pos++
		return molecule.AtomPrim(molecule.AtomConnectivity, l.countOr(1)), nil
	case 'v':
		l.pos++
		return molecule.AtomPrim(molecule.AtomValence, l.countOr(1)), nil
	case 'R':
		l.pos++
		if n, ok := l.number(); ok {
			if n == 0 {
				return molecule.AtomNot(molecule.AtomPrim(molecule.AtomInRing, 0)), nil
			}
			return molecule.AtomPrim(molecule.AtomRingCount, n), nil
		}
		return molecule.AtomPrim(molecule.AtomInRing, 0), nil
	case 'r':
		l.pos++
		if n, ok := l.number(); ok {
			if n == 0 {
				return molecule.AtomNot(molecule.AtomPrim(molecule.AtomInRing, 0)), nil
			}
			return molecule.AtomPrim(molecule.AtomRingSize, n), nil
		}
		return molecule.AtomPrim(molecule.AtomInRing, 0), nil
	case 'a':
		l.pos++
		return molecule.AtomPrim(molecule.AtomAromatic, 0), nil
	case 'A':
		l.pos++
		return molecule.AtomPrim(molecule.AtomAliphatic, 0), nil
	}

	if unicode.IsUpper(rune(c)) {
		if el, ok := molecule.ElementBySymbol(rest[:1]); ok {
			l.pos++
			return aliphatic(el.Number), nil
		}
	}
	if el, ok := molecule.AromaticSymbol(rest[:1]); ok {
		l.pos++
		return aromatic(el.Number), nil
	}
	return nil, fmt.Errorf("unknown atom primitive %q", c)
}

// ─────────────────────────────────────────────────────────────────────────────
// Bond expressions
// ─────────────────────────────────────────────────────────────────────────────

type bondLexer struct {
	s   string
	pos int
}

func parseBondExpr(s string) (*molecule.BondExpr, error) {
	l := &bondLexer{s: s}
	e, err := l.low()
	if err != nil {
		return nil, err
	}
	if l.pos != len(l.s) {
		return nil, fmt.Errorf("unexpected character %q in bond expression", l.s[l.pos])
	}
	return e, nil
}

func (l *bondLexer) peek() byte {
	if l.pos < len(l.s) {
		return l.s[l.pos]
	}
	return 0
}

func (l *bondLexer) low() (*molecule.BondExpr, error) {
	var parts []*molecule.BondExpr
	for {
		e, err := l.or()
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
		if l.peek() != ';' {
			break
		}
		l.pos++
	}
	return molecule.BondAnd(parts...), nil
}

func (l *bondLexer) or() (*molecule.BondExpr, error) {
	var parts []*molecule.BondExpr
	for {
		e, err := l.and()
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
		if l.peek() != ',' {
			break
		}
		l.pos++
	}
	return molecule.BondOr(parts...), nil
}

func (l *bondLexer) and() (*molecule.BondExpr, error) {
	var parts []*molecule.BondExpr
	for {
		e, err := l.not()
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
		c := l.peek()
		if c == '&' {
			l.pos++
			continue
		}
		if c == 0 || c == ',' || c == ';' {
			break
		}
	}
	return molecule.BondAnd(parts...), nil
}

func (l *bondLexer) not() (*molecule.BondExpr, error) {
	if l.peek() == '!' {
		l.pos++
		e, err := l.not()
		if err != nil {
			return nil, err
		}
		return molecule.BondNot(e), nil
	}
	if l.pos >= len(l.s) {
		return nil, fmt.Errorf("incomplete bond expression")
	}
	c := l.s[l.pos]
	l.pos++
	switch c {
	case '-', '/', '\\':
		return molecule.BondPrim(molecule.BondIsSingle), nil
	case '=':
		return molecule.BondPrim(molecule.BondIsDouble), nil
	case '#':
		return molecule.BondPrim(molecule.BondIsTriple), nil
	case ':':
		return molecule.BondPrim(molecule.BondIsAromatic), nil
	case '~':
		return molecule.BondPrim(molecule.BondIsAny), nil
	case '@':
		return molecule.BondPrim(molecule.BondIsRing), nil
	}
	l.pos--
	return nil, fmt.Errorf("unknown bond primitive %q", c)
}
