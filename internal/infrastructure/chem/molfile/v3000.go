package molfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/molcore/internal/domain/molecule"
)

// v3000Lines joins "M  V30 " continuation lines (trailing '-') and returns
// the logical lines with their starting physical line numbers.
func (b *builder) v3000Lines(start int) ([]string, []int, int) {
	var out []string
	var nums []int
	var cur strings.Builder
	curStart := -1
	for ln := start; ln < len(b.lines); ln++ {
		line := b.lines[ln]
		if strings.HasPrefix(line, "M  END") {
			return out, nums, ln
		}
		if !strings.HasPrefix(line, "M  V30 ") {
			continue
		}
		body := line[len("M  V30 "):]
		if curStart < 0 {
			curStart = ln
		}
		if strings.HasSuffix(body, "-") {
			cur.WriteString(body[:len(body)-1])
			continue
		}
		cur.WriteString(body)
		out = append(out, strings.TrimSpace(cur.String()))
		nums = append(nums, curStart)
		cur.Reset()
		curStart = -1
	}
	return out, nums, -1
}

func (b *builder) parseV3000(start int) error {
	lines, nums, end := b.v3000Lines(start)
	if end < 0 {
		return lineError(len(b.lines)-1, "missing M  END")
	}
	section := ""
	natoms := 0
	files := map[int]int{}
	for i, line := range lines {
		ln := nums[i]
		switch {
		case strings.HasPrefix(line, "BEGIN "):
			section = strings.TrimSpace(line[len("BEGIN "):])
			continue
		case strings.HasPrefix(line, "END "):
			section = ""
			continue
		case strings.HasPrefix(line, "COUNTS "):
			f := strings.Fields(line)
			if len(f) < 3 {
				return lineError(ln, "malformed COUNTS line")
			}
			n, err := strconv.Atoi(f[1])
			if err != nil || n < 0 {
				return lineError(ln, "malformed atom count")
			}
			natoms = n
			continue
		}
		switch section {
		case "ATOM":
			if err := b.v3000Atom(ln, line, files); err != nil {
				return err
			}
		case "BOND":
			if err := b.v3000Bond(ln, line, files); err != nil {
				return err
			}
		}
	}
	if natoms != len(files) {
		return lineError(end, "atom block does not match COUNTS")
	}
	return nil
}

// splitV3000 splits a V3000 record into positional fields and KEY=VALUE
// options. Bracketed atom lists and parenthesised values stay whole.
func splitV3000(line string) ([]string, map[string]string) {
	var fields []string
	opts := map[string]string{}
	depth := 0
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		tok := cur.String()
		cur.Reset()
		if k := strings.IndexByte(tok, '='); k > 0 && !strings.HasPrefix(tok, "[") {
			opts[strings.ToUpper(tok[:k])] = tok[k+1:]
			return
		}
		fields = append(fields, tok)
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ' ' && depth == 0:
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	return fields, opts
}

func (b *builder) v3000Atom(ln int, line string, files map[int]int) error {
	f, opts := splitV3000(line)
	if len(f) < 5 {
		return lineError(ln, "malformed V3000 atom line")
	}
	fileIdx, err := strconv.Atoi(f[0])
	if err != nil {
		return lineError(ln, "malformed atom number")
	}
	var atom molecule.Atom
	if strings.HasPrefix(f[1], "[") || strings.HasPrefix(f[1], "NOT[") {
		atom, err = atomList(f[1])
	} else {
		atom, err = atomForSymbol(f[1])
	}
	if err != nil {
		return lineError(ln, "%s", err.Error())
	}
	var xyz [3]float64
	for k := 0; k < 3; k++ {
		if xyz[k], err = strconv.ParseFloat(f[2+k], 64); err != nil {
			return lineError(ln, "malformed coordinate")
		}
	}
	atom.Coords = &molecule.Point{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	if len(f) > 5 {
		if m, err := strconv.Atoi(f[5]); err == nil {
			atom.MapNum = m
		}
	}
	if v, ok := opts["CHG"]; ok {
		if atom.Charge, err = strconv.Atoi(v); err != nil {
			return lineError(ln, "malformed CHG")
		}
	}
	if v, ok := opts["MASS"]; ok {
		if atom.Isotope, err = strconv.Atoi(v); err != nil {
			return lineError(ln, "malformed MASS")
		}
	}
	if v, ok := opts["RAD"]; ok {
		switch v {
		case "2":
			atom.Radicals = 1
		case "1", "3":
			atom.Radicals = 2
		}
	}
	if _, dup := files[fileIdx]; dup {
		return lineError(ln, "duplicate atom number %d", fileIdx)
	}
	a := b.g.AddAtom(atom)
	files[fileIdx] = a.Index
	for len(b.index) <= fileIdx {
		b.index = append(b.index, -1)
	}
	b.index[fileIdx] = a.Index
	return nil
}

// atomList turns "[C,N,O]" or "NOT[C,N]" into an atomic-number alternative.
func atomList(tok string) (molecule.Atom, error) {
	negate := strings.HasPrefix(tok, "NOT")
	tok = strings.TrimPrefix(tok, "NOT")
	tok = strings.TrimSuffix(strings.TrimPrefix(tok, "["), "]")
	var alts []*molecule.AtomExpr
	for _, sym := range strings.Split(tok, ",") {
		el, ok := molecule.ElementBySymbol(strings.TrimSpace(sym))
		if !ok || el.Number == 0 {
			return molecule.Atom{}, fmt.Errorf("unknown element symbol %q", sym)
		}
		alts = append(alts, molecule.AtomPrim(molecule.AtomAtomicNum, el.Number))
	}
	expr := molecule.AtomOr(alts...)
	if negate {
		expr = molecule.AtomNot(expr)
	}
	return molecule.Atom{Query: expr}, nil
}

func (b *builder) v3000Bond(ln int, line string, files map[int]int) error {
	f, opts := splitV3000(line)
	if len(f) < 4 {
		return lineError(ln, "malformed V3000 bond line")
	}
	var vals [3]int
	for k := 0; k < 3; k++ {
		v, err := strconv.Atoi(f[1+k])
		if err != nil {
			return lineError(ln, "malformed bond field")
		}
		vals[k] = v
	}
	if _, ok := files[vals[1]]; !ok {
		return lineError(ln, "bond references atom out of range")
	}
	if _, ok := files[vals[2]]; !ok {
		return lineError(ln, "bond references atom out of range")
	}
	stereo := 0
	switch opts["CFG"] {
	case "1":
		stereo = stereoWedge
	case "2":
		stereo = stereoEither
		if vals[0] == 2 {
			stereo = stereoDoubleEither
		}
	case "3":
		stereo = stereoHash
	}
	return b.addBond(ln, vals[1], vals[2], vals[0], stereo)
}
