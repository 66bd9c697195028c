package molecule

import "strings"

// Element describes the properties of a chemical element used by the
// valence model and the aromaticity rules.
type Element struct {
	Number int
	Symbol string
	// Mass is the standard atomic weight.
	Mass float64
	// Valences lists the allowed total valences in ascending order. Nil means
	// the element has no default valence model: it receives no implicit
	// hydrogens and its valence is not checked.
	Valences []int
	// Outer is the number of valence electrons for main-group elements, zero
	// otherwise.
	Outer int
}

var elementTable = []Element{
	{0, "*", 0, nil, 0},
	{1, "H", 1.008, []int{1}, 1},
	{2, "He", 4.0026, []int{0}, 8},
	{3, "Li", 6.94, []int{1}, 1},
	{4, "Be", 9.0122, []int{2}, 2},
	{5, "B", 10.81, []int{3}, 3},
	{6, "C", 12.011, []int{4}, 4},
	{7, "N", 14.007, []int{3}, 5},
	{8, "O", 15.999, []int{2}, 6},
	{9, "F", 18.998, []int{1}, 7},
	{10, "Ne", 20.180, []int{0}, 8},
	{11, "Na", 22.990, []int{1}, 1},
	{12, "Mg", 24.305, []int{2}, 2},
	{13, "Al", 26.982, []int{3}, 3},
	{14, "Si", 28.085, []int{4}, 4},
	{15, "P", 30.974, []int{3, 5}, 5},
	{16, "S", 32.06, []int{2, 4, 6}, 6},
	{17, "Cl", 35.45, []int{1}, 7},
	{18, "Ar", 39.948, []int{0}, 8},
	{19, "K", 39.098, []int{1}, 1},
	{20, "Ca", 40.078, []int{2}, 2},
	{21, "Sc", 44.956, nil, 0},
	{22, "Ti", 47.867, nil, 0},
	{23, "V", 50.942, nil, 0},
	{24, "Cr", 51.996, nil, 0},
	{25, "Mn", 54.938, nil, 0},
	{26, "Fe", 55.845, nil, 0},
	{27, "Co", 58.933, nil, 0},
	{28, "Ni", 58.693, nil, 0},
	{29, "Cu", 63.546, nil, 0},
	{30, "Zn", 65.38, nil, 0},
	{31, "Ga", 69.723, []int{3}, 3},
	{32, "Ge", 72.630, []int{4}, 4},
	{33, "As", 74.922, []int{3, 5}, 5},
	{34, "Se", 78.971, []int{2, 4, 6}, 6},
	{35, "Br", 79.904, []int{1}, 7},
	{36, "Kr", 83.798, []int{0}, 8},
	{37, "Rb", 85.468, []int{1}, 1},
	{38, "Sr", 87.62, []int{2}, 2},
	{39, "Y", 88.906, nil, 0},
	{40, "Zr", 91.224, nil, 0},
	{41, "Nb", 92.906, nil, 0},
	{42, "Mo", 95.95, nil, 0},
	{43, "Tc", 98, nil, 0},
	{44, "Ru", 101.07, nil, 0},
	{45, "Rh", 102.91, nil, 0},
	{46, "Pd", 106.42, nil, 0},
	{47, "Ag", 107.87, nil, 0},
	{48, "Cd", 112.41, nil, 0},
	{49, "In", 114.82, []int{3}, 3},
	{50, "Sn", 118.71, []int{2, 4}, 4},
	{51, "Sb", 121.76, []int{3, 5}, 5},
	{52, "Te", 127.60, []int{2, 4, 6}, 6},
	{53, "I", 126.90, []int{1, 3, 5}, 7},
	{54, "Xe", 131.29, []int{0}, 8},
	{55, "Cs", 132.91, []int{1}, 1},
	{56, "Ba", 137.33, []int{2}, 2},
	{57, "La", 138.91, nil, 0},
	{58, "Ce", 140.12, nil, 0},
	{59, "Pr", 140.91, nil, 0},
	{60, "Nd", 144.24, nil, 0},
	{61, "Pm", 145, nil, 0},
	{62, "Sm", 150.36, nil, 0},
	{63, "Eu", 151.96, nil, 0},
	{64, "Gd", 157.25, nil, 0},
	{65, "Tb", 158.93, nil, 0},
	{66, "Dy", 162.50, nil, 0},
	{67, "Ho", 164.93, nil, 0},
	{68, "Er", 167.26, nil, 0},
	{69, "Tm", 168.93, nil, 0},
	{70, "Yb", 173.05, nil, 0},
	{71, "Lu", 174.97, nil, 0},
	{72, "Hf", 178.49, nil, 0},
	{73, "Ta", 180.95, nil, 0},
	{74, "W", 183.84, nil, 0},
	{75, "Re", 186.21, nil, 0},
	{76, "Os", 190.23, nil, 0},
	{77, "Ir", 192.22, nil, 0},
	{78, "Pt", 195.08, nil, 0},
	{79, "Au", 196.97, nil, 0},
	{80, "Hg", 200.59, nil, 0},
	{81, "Tl", 204.38, []int{3}, 3},
	{82, "Pb", 207.2, []int{2, 4}, 4},
	{83, "Bi", 208.98, []int{3, 5}, 5},
	{84, "Po", 209, []int{2, 4, 6}, 6},
	{85, "At", 210, []int{1}, 7},
	{86, "Rn", 222, []int{0}, 8},
	{87, "Fr", 223, []int{1}, 1},
	{88, "Ra", 226, []int{2}, 2},
	{89, "Ac", 227, nil, 0},
	{90, "Th", 232.04, nil, 0},
	{91, "Pa", 231.04, nil, 0},
	{92, "U", 238.03, nil, 0},
}

var elementsBySymbol = func() map[string]Element {
	m := make(map[string]Element, len(elementTable))
	for _, el := range elementTable {
		m[el.Symbol] = el
	}
	return m
}()

// ElementByNumber looks an element up by atomic number.
func ElementByNumber(n int) (Element, bool) {
	if n < 0 || n >= len(elementTable) {
		return Element{}, false
	}
	return elementTable[n], true
}

// ElementBySymbol looks an element up by its case-sensitive symbol.
func ElementBySymbol(sym string) (Element, bool) {
	el, ok := elementsBySymbol[sym]
	return el, ok
}

// AromaticSymbol resolves a lowercase aromatic symbol ("c", "se", ...).
func AromaticSymbol(sym string) (Element, bool) {
	switch sym {
	case "b", "c", "n", "o", "p", "s", "se", "as", "te", "si", "ge", "sb":
		return ElementBySymbol(strings.ToUpper(sym[:1]) + sym[1:])
	}
	return Element{}, false
}

// IsOrganicSubset reports whether an element may be written without
// brackets in line notation.
func IsOrganicSubset(n int) bool {
	switch n {
	case 5, 6, 7, 8, 9, 15, 16, 17, 35, 53:
		return true
	}
	return false
}

// allowedValences returns the valence list for an element carrying a formal
// charge. Charged main-group atoms take the valences of the isoelectronic
// neutral element (N+ behaves like C, O- like F); a shift that leaves the
// main group falls back to the neutral list reduced by the charge magnitude.
func allowedValences(atomicNum, charge int) []int {
	el, ok := ElementByNumber(atomicNum)
	if !ok || el.Valences == nil {
		return nil
	}
	if charge == 0 {
		return el.Valences
	}
	if iso, ok := ElementByNumber(atomicNum - charge); ok && iso.Number > 0 && iso.Valences != nil {
		return iso.Valences
	}
	mag := charge
	if mag < 0 {
		mag = -mag
	}
	out := make([]int, 0, len(el.Valences))
	for _, v := range el.Valences {
		if v-mag >= 0 {
			out = append(out, v-mag)
		}
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	return out
}
