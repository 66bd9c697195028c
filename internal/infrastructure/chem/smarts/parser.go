// Package smarts builds query graphs from SMARTS patterns. Atoms and bonds
// of the result carry boolean expression trees that the match engine
// evaluates against sanitized molecules.
package smarts

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/pkg/errors"
)

// Parse reads a SMARTS pattern into a Query graph.
func Parse(text string) (*molecule.Graph, error) {
	text = strings.TrimSpace(text)
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		text = text[:i]
	}
	if text == "" {
		return nil, errors.ParseError("empty SMARTS")
	}
	if strings.Contains(text, "$(") {
		return nil, errors.ParseError("recursive SMARTS is not supported").
			WithDetail(fmt.Sprintf("offset=%d input=%q", strings.Index(text, "$("), text))
	}
	p := &parser{src: text, g: molecule.NewGraph(), prev: -1, rings: make(map[int]*ringOpen)}
	if err := p.run(); err != nil {
		return nil, err
	}
	p.g.MarkQuery()
	return p.g, nil
}

// Parser implements molecule.Parser.
type Parser struct{}

// Parse calls the package-level Parse.
func (Parser) Parse(text string) (*molecule.Graph, error) { return Parse(text) }

type ringOpen struct {
	atom int
	bond *molecule.BondExpr
}

type parser struct {
	src string
	pos int
	g   *molecule.Graph

	prev     int
	bond     *molecule.BondExpr
	branches []int
	rings    map[int]*ringOpen
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.ParseError(fmt.Sprintf(format, args...)).
		WithDetail(fmt.Sprintf("offset=%d input=%q", p.pos, p.src))
}

const bondChars = "-=#:~@/\\!&,;"

func (p *parser) run() error {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.errorf("branch without a preceding atom")
			}
			if p.bond != nil {
				return p.errorf("bond before branch")
			}
			p.branches = append(p.branches, p.prev)
			p.pos++
		case c == ')':
			if len(p.branches) == 0 {
				return p.errorf("unbalanced parenthesis")
			}
			if p.bond != nil {
				return p.errorf("dangling bond")
			}
			p.prev = p.branches[len(p.branches)-1]
			p.branches = p.branches[:len(p.branches)-1]
			p.pos++
		case c == '.':
			if p.bond != nil || p.prev < 0 || len(p.branches) > 0 {
				return p.errorf("misplaced '.'")
			}
			p.prev = -1
			p.pos++
		case strings.IndexByte(bondChars, c) >= 0:
			if p.prev < 0 {
				return p.errorf("bond without a preceding atom")
			}
			if p.bond != nil {
				return p.errorf("consecutive bond expressions")
			}
			start := p.pos
			for p.pos < len(p.src) && strings.IndexByte(bondChars, p.src[p.pos]) >= 0 {
				p.pos++
			}
			expr, err := parseBondExpr(p.src[start:p.pos])
			if err != nil {
				p.pos = start
				return p.errorf("%s", err.Error())
			}
			p.bond = expr
		case c == '%' || (c >= '0' && c <= '9'):
			if err := p.ringClosure(); err != nil {
				return err
			}
		case c == '[':
			end := strings.IndexByte(p.src[p.pos:], ']')
			if end < 0 {
				return p.errorf("unclosed bracket atom")
			}
			body := p.src[p.pos+1 : p.pos+end]
			expr, mapNum, err := parseAtomExpr(body)
			if err != nil {
				return p.errorf("%s", err.Error())
			}
			p.pos += end + 1
			if err := p.addAtom(expr, mapNum); err != nil {
				return err
			}
		default:
			expr, n, err := organicAtom(p.src[p.pos:])
			if err != nil {
				return p.errorf("%s", err.Error())
			}
			p.pos += n
			if err := p.addAtom(expr, 0); err != nil {
				return err
			}
		}
	}
	if len(p.branches) > 0 {
		return p.errorf("unbalanced parenthesis")
	}
	if p.bond != nil {
		return p.errorf("dangling bond")
	}
	if len(p.rings) > 0 {
		open := -1
		for d := range p.rings {
			if open < 0 || d < open {
				open = d
			}
		}
		return p.errorf("unclosed ring closure %d", open)
	}
	if p.g.NumAtoms() == 0 {
		return p.errorf("pattern has no atoms")
	}
	return nil
}

func (p *parser) addAtom(expr *molecule.AtomExpr, mapNum int) error {
	a := p.g.AddAtom(molecule.Atom{AtomicNum: displayElement(expr), MapNum: mapNum, Query: expr})
	if p.prev >= 0 {
		if err := p.connect(p.prev, a.Index, p.bond); err != nil {
			return err
		}
	}
	p.bond = nil
	p.prev = a.Index
	return nil
}

func (p *parser) connect(from, to int, expr *molecule.BondExpr) error {
	if expr == nil {
		expr = molecule.DefaultPatternBond()
	}
	b, err := p.g.AddBond(from, to, molecule.BondUnspecified)
	if err != nil {
		return p.errorf("%s", err.Error())
	}
	b.Query = expr
	return nil
}

func (p *parser) ringClosure() error {
	if p.prev < 0 {
		return p.errorf("ring closure without a preceding atom")
	}
	var digit int
	if p.src[p.pos] == '%' {
		if p.pos+2 >= len(p.src) || !isDigit(p.src[p.pos+1]) || !isDigit(p.src[p.pos+2]) {
			return p.errorf("malformed %%nn ring closure")
		}
		digit = int(p.src[p.pos+1]-'0')*10 + int(p.src[p.pos+2]-'0')
		p.pos += 3
	} else {
		digit = int(p.src[p.pos] - '0')
		p.pos++
	}
	open, ok := p.rings[digit]
	if !ok {
		p.rings[digit] = &ringOpen{atom: p.prev, bond: p.bond}
		p.bond = nil
		return nil
	}
	delete(p.rings, digit)
	expr := open.bond
	if p.bond != nil {
		if expr != nil && expr.String() != p.bond.String() {
			return p.errorf("conflicting ring closure bonds for %d", digit)
		}
		expr = p.bond
	}
	p.bond = nil
	return p.connect(open.atom, p.prev, expr)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// displayElement picks an atomic number for formula and logging purposes:
// the element of the first atomic-number primitive, 0 otherwise.
func displayElement(e *molecule.AtomExpr) int {
	if e == nil {
		return 0
	}
	switch e.Op {
	case molecule.OpPrimitive:
		if e.Kind == molecule.AtomAtomicNum {
			return e.Value
		}
	case molecule.OpAnd:
		for _, c := range e.Children {
			if n := displayElement(c); n != 0 {
				return n
			}
		}
	}
	return 0
}

// organicAtom reads an unbracketed pattern atom and returns its expression
// and length.
func organicAtom(s string) (*molecule.AtomExpr, int, error) {
	switch {
	case strings.HasPrefix(s, "Cl"):
		return aliphatic(17), 2, nil
	case strings.HasPrefix(s, "Br"):
		return aliphatic(35), 2, nil
	}
	switch s[0] {
	case '*':
		return molecule.AtomPrim(molecule.AtomAny, 0), 1, nil
	case 'a':
		return molecule.AtomPrim(molecule.AtomAromatic, 0), 1, nil
	case 'A':
		return molecule.AtomPrim(molecule.AtomAliphatic, 0), 1, nil
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		el, _ := molecule.ElementBySymbol(s[:1])
		return aliphatic(el.Number), 1, nil
	case 'b', 'c', 'n', 'o', 'p', 's':
		el, _ := molecule.AromaticSymbol(s[:1])
		return aromatic(el.Number), 1, nil
	}
	return nil, 0, fmt.Errorf("unexpected character %q", s[0])
}

func aliphatic(z int) *molecule.AtomExpr {
	return molecule.AtomAnd(molecule.AtomPrim(molecule.AtomAtomicNum, z), molecule.AtomPrim(molecule.AtomAliphatic, 0))
}

func aromatic(z int) *molecule.AtomExpr {
	return molecule.AtomAnd(molecule.AtomPrim(molecule.AtomAtomicNum, z), molecule.AtomPrim(molecule.AtomAromatic, 0))
}
