package molfile

import (
	"math"

	"github.com/turtacn/molcore/internal/domain/molecule"
)

type vec struct{ x, y, z float64 }

func sub(a, b *molecule.Point) vec { return vec{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func (v vec) minus(o vec) vec     { return vec{v.x - o.x, v.y - o.y, v.z - o.z} }
func (v vec) scale(f float64) vec { return vec{v.x * f, v.y * f, v.z * f} }
func (v vec) dot(o vec) float64   { return v.x*o.x + v.y*o.y + v.z*o.z }
func (v vec) norm() float64       { return math.Sqrt(v.dot(v)) }

func det(a, b, c vec) float64 {
	return a.x*(b.y*c.z-b.z*c.y) - a.y*(b.x*c.z-b.z*c.x) + a.z*(b.x*c.y-b.y*c.x)
}

func (v vec) unit() vec {
	n := v.norm()
	if n == 0 {
		return v
	}
	return v.scale(1 / n)
}

const stereoEpsilon = 1e-6

// perceiveStereo assigns tetrahedral tags from wedge and hash bonds (or
// from 3D coordinates when the table has depth) and cis/trans
// configurations from coordinates. It runs before hydrogens are removed so
// that drawn hydrogens take part.
func (b *builder) perceiveStereo() {
	atoms := b.g.Atoms()
	if len(atoms) == 0 {
		return
	}
	has3D, hasCoords := false, false
	for _, a := range atoms {
		if a.Coords == nil {
			continue
		}
		if a.Coords.X != 0 || a.Coords.Y != 0 {
			hasCoords = true
		}
		if math.Abs(a.Coords.Z) > stereoEpsilon {
			has3D = true
		}
	}
	if !hasCoords && !has3D {
		return
	}

	wedgesAt := map[int][]rawBond{}
	for _, rb := range b.bonds {
		if rb.bond.Type != molecule.BondSingle {
			continue
		}
		if rb.stereo == stereoWedge || rb.stereo == stereoHash {
			wedgesAt[rb.bond.Begin] = append(wedgesAt[rb.bond.Begin], rb)
		}
	}

	for _, a := range atoms {
		if has3D {
			b.tetrahedralFrom3D(a)
		} else if ws, ok := wedgesAt[a.Index]; ok {
			b.tetrahedralFromWedges(a, ws)
		}
	}

	for _, rb := range b.bonds {
		if rb.bond.Type == molecule.BondDouble && rb.stereo != stereoDoubleEither {
			b.doubleBondFromCoords(rb.bond)
		}
	}
}

// tagFromVolume converts the signed volume of neighbor vectors seen from
// refs[0] into a tag relative to refs. A positive volume is clockwise.
func tagFromVolume(vol float64) molecule.Chirality {
	switch {
	case vol > stereoEpsilon:
		return molecule.ChiralCW
	case vol < -stereoEpsilon:
		return molecule.ChiralCCW
	}
	return molecule.ChiralNone
}

func (b *builder) neighborVectors(a *molecule.Atom, z map[int]float64) ([]int, []vec, bool) {
	nbrs := b.g.Neighbors(a.Index)
	if len(nbrs) < 3 || len(nbrs) > 4 {
		return nil, nil, false
	}
	vs := make([]vec, len(nbrs))
	for i, n := range nbrs {
		na, _ := b.g.Atom(n)
		if na.Coords == nil || a.Coords == nil {
			return nil, nil, false
		}
		v := sub(na.Coords, a.Coords)
		if z != nil {
			v.z = 0
			v = v.unit()
			v.z = z[n]
		}
		vs[i] = v
	}
	return nbrs, vs, true
}

func (b *builder) tetrahedralFromWedges(a *molecule.Atom, wedges []rawBond) {
	z := map[int]float64{}
	for _, rb := range wedges {
		other := rb.bond.Other(a.Index)
		if rb.stereo == stereoWedge {
			z[other] = 1
		} else {
			z[other] = -1
		}
	}
	nbrs, vs, ok := b.neighborVectors(a, z)
	if !ok {
		return
	}
	setTag(a, nbrs, vs)
}

func (b *builder) tetrahedralFrom3D(a *molecule.Atom) {
	nbrs, vs, ok := b.neighborVectors(a, nil)
	if !ok {
		return
	}
	setTag(a, nbrs, vs)
}

// setTag stores the chirality of a center. With three neighbors the
// implicit hydrogen (or lone pair) is the first reference and sits opposite
// the drawn bonds; with four, the first neighbor is the viewpoint.
func setTag(a *molecule.Atom, nbrs []int, vs []vec) {
	var vol float64
	var refs []int
	if len(nbrs) == 3 {
		vol = det(vs[0], vs[1], vs[2])
		refs = []int{molecule.ImplicitRef, nbrs[0], nbrs[1], nbrs[2]}
	} else {
		vol = det(vs[1].minus(vs[0]), vs[2].minus(vs[0]), vs[3].minus(vs[0]))
		refs = append([]int(nil), nbrs...)
	}
	tag := tagFromVolume(vol)
	if tag == molecule.ChiralNone {
		return
	}
	a.Chirality = tag
	a.ChiralRefs = refs
}

// doubleBondFromCoords compares the sides of the two reference
// substituents after removing their components along the double bond.
func (b *builder) doubleBondFromCoords(bond *molecule.Bond) {
	x, _ := b.g.Atom(bond.Begin)
	y, _ := b.g.Atom(bond.End)
	if x.Coords == nil || y.Coords == nil {
		return
	}
	ra := b.stereoReference(x, y.Index)
	rd := b.stereoReference(y, x.Index)
	if ra < 0 || rd < 0 {
		return
	}
	axis := sub(y.Coords, x.Coords).unit()
	aa, _ := b.g.Atom(ra)
	da, _ := b.g.Atom(rd)
	va := sub(aa.Coords, x.Coords)
	vd := sub(da.Coords, y.Coords)
	va = va.minus(axis.scale(va.dot(axis)))
	vd = vd.minus(axis.scale(vd.dot(axis)))
	d := va.dot(vd)
	switch {
	case d > stereoEpsilon:
		bond.Stereo = molecule.StereoCis
	case d < -stereoEpsilon:
		bond.Stereo = molecule.StereoTrans
	default:
		return
	}
	bond.StereoAtoms = [2]int{ra, rd}
}

// stereoReference picks a substituent of a double-bond atom, preferring a
// heavy atom so the reference survives hydrogen removal.
func (b *builder) stereoReference(a *molecule.Atom, skip int) int {
	ref := -1
	for _, n := range b.g.Neighbors(a.Index) {
		if n == skip {
			continue
		}
		na, _ := b.g.Atom(n)
		if na.Coords == nil {
			continue
		}
		if na.AtomicNum != 1 {
			return n
		}
		if ref < 0 {
			ref = n
		}
	}
	return ref
}
