// Package molfile reads MDL connection tables (V2000 and V3000) into
// molecule graphs. Stereochemistry is derived from wedge bonds and
// coordinates, and explicit hydrogens can be folded into their neighbors.
package molfile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/pkg/errors"
)

// Options controls connection-table parsing.
type Options struct {
	// RemoveHs folds plain explicit hydrogens into the hydrogen count of
	// their neighbor.
	RemoveHs bool
	// Strict requires fixed-column V2000 lines; otherwise short lines fall
	// back to whitespace-separated fields.
	Strict bool
}

// DefaultOptions removes hydrogens and tolerates sloppy column layout.
func DefaultOptions() Options {
	return Options{RemoveHs: true}
}

// Parser implements molecule.Parser with fixed options.
type Parser struct {
	Options Options
}

// Parse calls the package-level Parse with p.Options.
func (p Parser) Parse(text string) (*molecule.Graph, error) { return Parse(text, p.Options) }

// Bond stereo codes of the V2000 bond block.
const (
	stereoWedge  = 1
	stereoEither = 4
	stereoHash   = 6
	// on double bonds: cis/trans unknown
	stereoDoubleEither = 3
)

// rawBond keeps the wedge annotation until stereochemistry is perceived.
type rawBond struct {
	bond   *molecule.Bond
	stereo int
}

type builder struct {
	opts  Options
	lines []string
	g     *molecule.Graph
	// index maps the 1-based file atom number to the graph index.
	index []int
	bonds []rawBond
}

// Parse reads a connection table terminated by "M  END" into a Raw graph.
func Parse(text string, opts Options) (*molecule.Graph, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	b := &builder{opts: opts, lines: lines, g: molecule.NewGraph()}
	if err := b.parse(); err != nil {
		return nil, err
	}
	b.perceiveStereo()
	if opts.RemoveHs {
		removeHs(b.g)
	}
	return b.g, nil
}

func lineError(line int, format string, args ...interface{}) *errors.AppError {
	return errors.ParseError(fmt.Sprintf(format, args...)).WithDetail(fmt.Sprintf("line=%d", line+1))
}

func (b *builder) parse() error {
	if len(b.lines) < 4 {
		return lineError(len(b.lines), "connection table header is incomplete")
	}
	counts := b.lines[3]
	if strings.Contains(counts, "V3000") {
		return b.parseV3000(4)
	}
	natoms, nbonds, err := b.countsLine(counts)
	if err != nil {
		return err
	}
	if len(b.lines) < 4+natoms+nbonds {
		return lineError(len(b.lines), "connection table is truncated")
	}
	b.index = make([]int, natoms+1)
	for i := 0; i < natoms; i++ {
		if err := b.atomLine(4+i, i+1); err != nil {
			return err
		}
	}
	for i := 0; i < nbonds; i++ {
		if err := b.bondLine(4 + natoms + i); err != nil {
			return err
		}
	}
	return b.properties(4 + natoms + nbonds)
}

func (b *builder) countsLine(line string) (int, int, error) {
	na, errA := fixedInt(line, 0, 3)
	nb, errB := fixedInt(line, 3, 6)
	if errA != nil || errB != nil {
		if b.opts.Strict {
			return 0, 0, lineError(3, "malformed counts line")
		}
		f := strings.Fields(line)
		if len(f) < 2 {
			return 0, 0, lineError(3, "malformed counts line")
		}
		var err error
		if na, err = strconv.Atoi(f[0]); err != nil {
			return 0, 0, lineError(3, "malformed atom count")
		}
		if nb, err = strconv.Atoi(f[1]); err != nil {
			return 0, 0, lineError(3, "malformed bond count")
		}
	}
	if na < 0 || nb < 0 {
		return 0, 0, lineError(3, "negative counts")
	}
	return na, nb, nil
}

// fixedInt reads a right-justified integer from columns [from, to).
func fixedInt(line string, from, to int) (int, error) {
	if len(line) < to {
		if len(line) <= from {
			return 0, fmt.Errorf("short line")
		}
		to = len(line)
	}
	s := strings.TrimSpace(line[from:to])
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func fixedFloat(line string, from, to int) (float64, error) {
	if len(line) < to {
		return 0, fmt.Errorf("short line")
	}
	return strconv.ParseFloat(strings.TrimSpace(line[from:to]), 64)
}

func (b *builder) atomLine(ln, fileIdx int) error {
	line := b.lines[ln]
	var (
		x, y, z     float64
		sym         string
		massDiff    int
		chargeCode  int
		errX, errY  error
		errZ        error
		fixedLayout = len(line) >= 34
	)
	if fixedLayout {
		x, errX = fixedFloat(line, 0, 10)
		y, errY = fixedFloat(line, 10, 20)
		z, errZ = fixedFloat(line, 20, 30)
		sym = strings.TrimSpace(line[31:34])
		if errX != nil || errY != nil || errZ != nil || sym == "" {
			fixedLayout = false
		} else {
			var err error
			if massDiff, err = fixedInt(line, 34, 36); err != nil && len(line) > 34 {
				return lineError(ln, "malformed mass difference")
			}
			if chargeCode, err = fixedInt(line, 36, 39); err != nil && len(line) > 36 {
				return lineError(ln, "malformed charge code")
			}
		}
	}
	if !fixedLayout {
		if b.opts.Strict {
			return lineError(ln, "malformed atom line")
		}
		f := strings.Fields(line)
		if len(f) < 4 {
			return lineError(ln, "malformed atom line")
		}
		var err error
		if x, err = strconv.ParseFloat(f[0], 64); err != nil {
			return lineError(ln, "malformed x coordinate")
		}
		if y, err = strconv.ParseFloat(f[1], 64); err != nil {
			return lineError(ln, "malformed y coordinate")
		}
		if z, err = strconv.ParseFloat(f[2], 64); err != nil {
			return lineError(ln, "malformed z coordinate")
		}
		sym = f[3]
		if len(f) > 4 {
			massDiff, _ = strconv.Atoi(f[4])
		}
		if len(f) > 5 {
			chargeCode, _ = strconv.Atoi(f[5])
		}
	}

	atom, err := atomForSymbol(sym)
	if err != nil {
		return lineError(ln, "%s", err.Error())
	}
	atom.Coords = &molecule.Point{X: x, Y: y, Z: z}
	switch chargeCode {
	case 0:
	case 1, 2, 3:
		atom.Charge = 4 - chargeCode
	case 4:
		atom.Radicals = 1
	case 5, 6, 7:
		atom.Charge = 4 - chargeCode
	default:
		return lineError(ln, "unknown charge code %d", chargeCode)
	}
	if massDiff != 0 && atom.AtomicNum > 0 {
		el, _ := molecule.ElementByNumber(atom.AtomicNum)
		atom.Isotope = int(math.Round(el.Mass)) + massDiff
	}
	a := b.g.AddAtom(atom)
	b.index[fileIdx] = a.Index
	return nil
}

// atomForSymbol maps an atom-block symbol to an atom, turning query symbols
// into expressions.
func atomForSymbol(sym string) (molecule.Atom, error) {
	switch sym {
	case "*", "R", "R#", "LP":
		return molecule.Atom{Query: molecule.AtomPrim(molecule.AtomAny, 0)}, nil
	case "A":
		return molecule.Atom{Query: molecule.AtomPrim(molecule.AtomHeavy, 0)}, nil
	case "Q":
		return molecule.Atom{Query: molecule.AtomAnd(
			molecule.AtomNot(molecule.AtomPrim(molecule.AtomAtomicNum, 6)),
			molecule.AtomNot(molecule.AtomPrim(molecule.AtomAtomicNum, 1)),
		)}, nil
	case "D":
		return molecule.Atom{AtomicNum: 1, Isotope: 2}, nil
	case "T":
		return molecule.Atom{AtomicNum: 1, Isotope: 3}, nil
	case "L":
		return molecule.Atom{}, fmt.Errorf("atom lists are only supported in V3000 tables")
	}
	el, ok := molecule.ElementBySymbol(sym)
	if !ok || el.Number == 0 {
		return molecule.Atom{}, fmt.Errorf("unknown element symbol %q", sym)
	}
	return molecule.Atom{AtomicNum: el.Number}, nil
}

func (b *builder) bondLine(ln int) error {
	line := b.lines[ln]
	var vals [4]int
	ok := len(line) >= 9
	if ok {
		for i := range vals {
			v, err := fixedInt(line, 3*i, 3*i+3)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
	}
	if !ok {
		if b.opts.Strict {
			return lineError(ln, "malformed bond line")
		}
		f := strings.Fields(line)
		if len(f) < 3 {
			return lineError(ln, "malformed bond line")
		}
		for i := 0; i < len(vals) && i < len(f); i++ {
			v, err := strconv.Atoi(f[i])
			if err != nil {
				return lineError(ln, "malformed bond field %d", i+1)
			}
			vals[i] = v
		}
	}
	return b.addBond(ln, vals[0], vals[1], vals[2], vals[3])
}

func (b *builder) addBond(ln, from, to, code, stereo int) error {
	if from < 1 || from >= len(b.index) || to < 1 || to >= len(b.index) {
		return lineError(ln, "bond references atom out of range")
	}
	typ, query, err := bondForCode(code)
	if err != nil {
		return lineError(ln, "%s", err.Error())
	}
	bond, err := b.g.AddBond(b.index[from], b.index[to], typ)
	if err != nil {
		if ae, ok := err.(*errors.AppError); ok {
			return ae.WithDetail(fmt.Sprintf("line=%d", ln+1))
		}
		return err
	}
	bond.Query = query
	if typ == molecule.BondAromatic {
		for _, idx := range []int{bond.Begin, bond.End} {
			a, _ := b.g.Atom(idx)
			a.Aromatic = true
		}
	}
	b.bonds = append(b.bonds, rawBond{bond: bond, stereo: stereo})
	return nil
}

func bondForCode(code int) (molecule.BondType, *molecule.BondExpr, error) {
	switch code {
	case 1:
		return molecule.BondSingle, nil, nil
	case 2:
		return molecule.BondDouble, nil, nil
	case 3:
		return molecule.BondTriple, nil, nil
	case 4:
		return molecule.BondAromatic, nil, nil
	case 5:
		return molecule.BondUnspecified, molecule.BondOr(
			molecule.BondPrim(molecule.BondIsSingle), molecule.BondPrim(molecule.BondIsDouble)), nil
	case 6:
		return molecule.BondUnspecified, molecule.BondOr(
			molecule.BondPrim(molecule.BondIsSingle), molecule.BondPrim(molecule.BondIsAromatic)), nil
	case 7:
		return molecule.BondUnspecified, molecule.BondOr(
			molecule.BondPrim(molecule.BondIsDouble), molecule.BondPrim(molecule.BondIsAromatic)), nil
	case 8:
		return molecule.BondUnspecified, molecule.BondPrim(molecule.BondIsAny), nil
	}
	return molecule.BondUnspecified, nil, fmt.Errorf("unknown bond type %d", code)
}

// properties reads the "M  " property block up to "M  END". Charge and
// isotope properties replace every value given in the atom block.
func (b *builder) properties(start int) error {
	chargesReset, isotopesReset := false, false
	for ln := start; ln < len(b.lines); ln++ {
		line := b.lines[ln]
		if strings.HasPrefix(line, "M  END") {
			return nil
		}
		if !strings.HasPrefix(line, "M  ") || len(line) < 6 {
			continue
		}
		kind := line[3:6]
		switch kind {
		case "CHG", "ISO", "RAD":
		default:
			continue
		}
		pairs, err := b.propertyPairs(ln, line)
		if err != nil {
			return err
		}
		switch kind {
		case "CHG":
			if !chargesReset {
				for _, a := range b.g.Atoms() {
					a.Charge = 0
				}
				chargesReset = true
			}
			for _, p := range pairs {
				p.atom.Charge = p.value
			}
		case "ISO":
			if !isotopesReset {
				for _, a := range b.g.Atoms() {
					a.Isotope = 0
				}
				isotopesReset = true
			}
			for _, p := range pairs {
				p.atom.Isotope = p.value
			}
		case "RAD":
			for _, p := range pairs {
				switch p.value {
				case 2:
					p.atom.Radicals = 1
				case 1, 3:
					p.atom.Radicals = 2
				default:
					p.atom.Radicals = 0
				}
			}
		}
	}
	return lineError(len(b.lines)-1, "missing M  END")
}

type propertyPair struct {
	atom  *molecule.Atom
	value int
}

func (b *builder) propertyPairs(ln int, line string) ([]propertyPair, error) {
	f := strings.Fields(line[6:])
	if len(f) == 0 {
		return nil, lineError(ln, "empty property line")
	}
	n, err := strconv.Atoi(f[0])
	if err != nil || n < 0 || len(f) < 1+2*n {
		return nil, lineError(ln, "malformed property line")
	}
	out := make([]propertyPair, 0, n)
	for i := 0; i < n; i++ {
		idx, err1 := strconv.Atoi(f[1+2*i])
		val, err2 := strconv.Atoi(f[2+2*i])
		if err1 != nil || err2 != nil {
			return nil, lineError(ln, "malformed property entry")
		}
		if idx < 1 || idx >= len(b.index) {
			return nil, lineError(ln, "property references atom out of range")
		}
		a, _ := b.g.Atom(b.index[idx])
		out = append(out, propertyPair{atom: a, value: val})
	}
	return out, nil
}
