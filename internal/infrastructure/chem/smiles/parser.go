// Package smiles reads and writes the SMILES line notation. Parse builds a
// Raw molecule.Graph exactly as written; Write renders a sanitized graph as
// canonical SMILES.
package smiles

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/pkg/errors"
)

// Parse reads a SMILES string into a Raw graph. Text after the first
// whitespace (a molecule name) is ignored.
func Parse(text string) (*molecule.Graph, error) {
	text = strings.TrimSpace(text)
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		text = text[:i]
	}
	if text == "" {
		return nil, errors.ParseError("empty SMILES")
	}
	p := &parser{
		src:   text,
		g:     molecule.NewGraph(),
		rings: make(map[int]*ringOpen),
		prev:  -1,
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.g, nil
}

// Parser implements molecule.Parser.
type Parser struct{}

// Parse calls the package-level Parse.
func (Parser) Parse(text string) (*molecule.Graph, error) { return Parse(text) }

type pendingBond struct {
	typ molecule.BondType
	dir molecule.BondDir
	set bool
	pos int
}

type ringOpen struct {
	atom int
	bond pendingBond
	// slot is the position reserved in the opening atom's reference list.
	slot int
}

type chiralState struct {
	tag  molecule.Chirality
	refs []int
	// hasPrev records whether a preceding atom was the first reference;
	// an implied lone pair takes the slot right after it.
	hasPrev bool
	hs      int
}

type parser struct {
	src string
	pos int
	g   *molecule.Graph

	prev     int
	bond     pendingBond
	branches []int
	rings    map[int]*ringOpen

	chiral map[int]*chiralState
	refs   map[int][]int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.ParseError(fmt.Sprintf(format, args...)).
		WithDetail(fmt.Sprintf("offset=%d input=%q", p.pos, p.src))
}

func (p *parser) run() error {
	p.chiral = make(map[int]*chiralState)
	p.refs = make(map[int][]int)
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.errorf("branch without a preceding atom")
			}
			if p.bond.set {
				return p.errorf("bond before branch")
			}
			p.branches = append(p.branches, p.prev)
			p.pos++
		case c == ')':
			if len(p.branches) == 0 {
				return p.errorf("unbalanced parenthesis")
			}
			if p.bond.set {
				return p.errorf("dangling bond")
			}
			if p.pos > 0 && p.src[p.pos-1] == '(' {
				return p.errorf("empty branch")
			}
			p.prev = p.branches[len(p.branches)-1]
			p.branches = p.branches[:len(p.branches)-1]
			p.pos++
		case c == '.':
			if p.bond.set || p.prev < 0 {
				return p.errorf("misplaced '.'")
			}
			if len(p.branches) > 0 {
				return p.errorf("'.' inside a branch")
			}
			p.prev = -1
			p.pos++
		case strings.IndexByte("-=#$:/\\", c) >= 0:
			if p.bond.set {
				return p.errorf("consecutive bond symbols")
			}
			if p.prev < 0 {
				return p.errorf("bond without a preceding atom")
			}
			p.bond = bondSymbol(c, p.pos)
			p.pos++
		case c == '%' || (c >= '0' && c <= '9'):
			if err := p.ringClosure(); err != nil {
				return err
			}
		case c == '[':
			if err := p.bracketAtom(); err != nil {
				return err
			}
		default:
			if err := p.organicAtom(); err != nil {
				return err
			}
		}
	}
	if len(p.branches) > 0 {
		return p.errorf("unbalanced parenthesis")
	}
	if p.bond.set {
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
	p.finishChirality()
	return nil
}

func bondSymbol(c byte, pos int) pendingBond {
	b := pendingBond{set: true, pos: pos, typ: molecule.BondSingle}
	switch c {
	case '=':
		b.typ = molecule.BondDouble
	case '#':
		b.typ = molecule.BondTriple
	case '$':
		b.typ = molecule.BondQuadruple
	case ':':
		b.typ = molecule.BondAromatic
	case '/':
		b.dir = molecule.DirUp
	case '\\':
		b.dir = molecule.DirDown
	}
	return b
}

func (p *parser) organicAtom() error {
	rest := p.src[p.pos:]
	var (
		sym      string
		aromatic bool
	)
	switch {
	case strings.HasPrefix(rest, "Cl"), strings.HasPrefix(rest, "Br"):
		sym = rest[:2]
	case strings.IndexByte("BCNOPSFI", rest[0]) >= 0:
		sym = rest[:1]
	case strings.IndexByte("bcnops", rest[0]) >= 0:
		sym, aromatic = rest[:1], true
	case rest[0] == '*':
		sym = "*"
	default:
		return p.errorf("unexpected character %q", rest[0])
	}
	p.pos += len(sym)

	atom := molecule.Atom{Aromatic: aromatic}
	if sym != "*" {
		var el molecule.Element
		if aromatic {
			el, _ = molecule.AromaticSymbol(sym)
		} else {
			el, _ = molecule.ElementBySymbol(sym)
		}
		atom.AtomicNum = el.Number
	}
	return p.addAtom(atom, nil)
}

func (p *parser) bracketAtom() error {
	start := p.pos
	end := strings.IndexByte(p.src[start:], ']')
	if end < 0 {
		return p.errorf("unclosed bracket atom")
	}
	body := p.src[start+1 : start+end]
	p.pos++
	atom := molecule.Atom{NoImplicit: true}

	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		atom.Isotope = atom.Isotope*10 + int(body[i]-'0')
		i++
	}

	switch {
	case i < len(body) && body[i] == '*':
		i++
	case i < len(body) && unicode.IsLower(rune(body[i])):
		matched := false
		if i+2 <= len(body) {
			if el, ok := molecule.AromaticSymbol(body[i : i+2]); ok {
				atom.AtomicNum, atom.Aromatic, matched = el.Number, true, true
				i += 2
			}
		}
		if !matched {
			el, ok := molecule.AromaticSymbol(body[i : i+1])
			if !ok {
				p.pos = start + 1 + i
				return p.errorf("unknown aromatic symbol")
			}
			atom.AtomicNum, atom.Aromatic = el.Number, true
			i++
		}
	case i < len(body) && unicode.IsUpper(rune(body[i])):
		matched := false
		if i+2 <= len(body) && unicode.IsLower(rune(body[i+1])) {
			if el, ok := molecule.ElementBySymbol(body[i : i+2]); ok {
				atom.AtomicNum, matched = el.Number, true
				i += 2
			}
		}
		if !matched {
			el, ok := molecule.ElementBySymbol(body[i : i+1])
			if !ok {
				p.pos = start + 1 + i
				return p.errorf("unknown element symbol")
			}
			atom.AtomicNum = el.Number
			i++
		}
	default:
		p.pos = start + 1 + i
		return p.errorf("missing element symbol in bracket atom")
	}

	var tag molecule.Chirality
	if i < len(body) && body[i] == '@' {
		switch {
		case strings.HasPrefix(body[i:], "@@"):
			tag = molecule.ChiralCW
			i += 2
		case strings.HasPrefix(body[i:], "@TH1"):
			tag = molecule.ChiralCCW
			i += 4
		case strings.HasPrefix(body[i:], "@TH2"):
			tag = molecule.ChiralCW
			i += 4
		case strings.HasPrefix(body[i:], "@SP"), strings.HasPrefix(body[i:], "@TB"), strings.HasPrefix(body[i:], "@OH"):
			p.pos = start + 1 + i
			return p.errorf("unsupported chirality class")
		default:
			tag = molecule.ChiralCCW
			i++
		}
	}

	if i < len(body) && body[i] == 'H' {
		i++
		atom.ExplicitHs = 1
		if i < len(body) && body[i] >= '0' && body[i] <= '9' {
			atom.ExplicitHs = int(body[i] - '0')
			i++
		}
	}

	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		sym := body[i]
		i++
		mag := 1
		switch {
		case i < len(body) && body[i] >= '0' && body[i] <= '9':
			mag = 0
			for i < len(body) && body[i] >= '0' && body[i] <= '9' {
				mag = mag*10 + int(body[i]-'0')
				i++
			}
		default:
			for i < len(body) && body[i] == sym {
				mag++
				i++
			}
		}
		atom.Charge = sign * mag
	}

	if i < len(body) && body[i] == ':' {
		i++
		if i == len(body) {
			p.pos = start + 1 + i
			return p.errorf("missing atom class")
		}
		for i < len(body) && body[i] >= '0' && body[i] <= '9' {
			atom.MapNum = atom.MapNum*10 + int(body[i]-'0')
			i++
		}
	}
	if i != len(body) {
		p.pos = start + 1 + i
		return p.errorf("unexpected character %q in bracket atom", body[i])
	}
	p.pos = start + end + 1

	var cs *chiralState
	if tag != molecule.ChiralNone {
		cs = &chiralState{tag: tag, hs: atom.ExplicitHs}
	}
	return p.addAtom(atom, cs)
}

func (p *parser) addAtom(atom molecule.Atom, cs *chiralState) error {
	a := p.g.AddAtom(atom)
	if p.prev >= 0 {
		if err := p.connect(p.prev, a.Index, p.bond); err != nil {
			return err
		}
		p.refs[a.Index] = append(p.refs[a.Index], p.prev)
		p.refs[p.prev] = append(p.refs[p.prev], a.Index)
	}
	if cs != nil {
		cs.hasPrev = p.prev >= 0
		if cs.hs == 1 {
			p.refs[a.Index] = append(p.refs[a.Index], molecule.ImplicitRef)
		}
		p.chiral[a.Index] = cs
	}
	p.bond = pendingBond{}
	p.prev = a.Index
	return nil
}

// connect creates the bond between two atoms, applying the implicit bond
// rule: aromatic between two aromatic atoms, single otherwise.
func (p *parser) connect(from, to int, pb pendingBond) error {
	typ := pb.typ
	if !pb.set {
		typ = molecule.BondSingle
		a, _ := p.g.Atom(from)
		b, _ := p.g.Atom(to)
		if a.Aromatic && b.Aromatic {
			typ = molecule.BondAromatic
		}
	}
	bond, err := p.g.AddBond(from, to, typ)
	if err != nil {
		if ae, ok := err.(*errors.AppError); ok {
			return ae.WithDetail(fmt.Sprintf("offset=%d input=%q", p.pos, p.src))
		}
		return err
	}
	bond.Dir = pb.dir
	return nil
}

func (p *parser) ringClosure() error {
	if p.prev < 0 {
		return p.errorf("ring closure without a preceding atom")
	}
	digit := 0
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
		p.rings[digit] = &ringOpen{atom: p.prev, bond: p.bond, slot: len(p.refs[p.prev])}
		p.refs[p.prev] = append(p.refs[p.prev], molecule.ImplicitRef-1)
		p.bond = pendingBond{}
		return nil
	}
	delete(p.rings, digit)

	pb := open.bond
	if p.bond.set {
		if pb.set && pb.typ != p.bond.typ {
			return p.errorf("conflicting ring closure bonds for %d", digit)
		}
		if !pb.set {
			// written at the closing atom: read from it
			pb = p.bond
			if err := p.connect(p.prev, open.atom, pb); err != nil {
				return err
			}
			p.fillRing(open, p.prev)
			p.bond = pendingBond{}
			return nil
		}
	}
	if err := p.connect(open.atom, p.prev, pb); err != nil {
		return err
	}
	p.fillRing(open, p.prev)
	p.bond = pendingBond{}
	return nil
}

func (p *parser) fillRing(open *ringOpen, closer int) {
	p.refs[open.atom][open.slot] = closer
	p.refs[closer] = append(p.refs[closer], open.atom)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// finishChirality stores the reference order of every tagged atom. A
// three-connected center without a hydrogen gets an implied lone pair in
// the hydrogen slot.
func (p *parser) finishChirality() {
	for idx, cs := range p.chiral {
		a, _ := p.g.Atom(idx)
		refs := append([]int(nil), p.refs[idx]...)
		if len(refs) == 3 && cs.hs == 0 {
			at := 0
			if cs.hasPrev {
				at = 1
			}
			refs = append(refs[:at], append([]int{molecule.ImplicitRef}, refs[at:]...)...)
		}
		a.Chirality = cs.tag
		a.ChiralRefs = refs
	}
}
