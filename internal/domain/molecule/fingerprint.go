package molecule

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/turtacn/molcore/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fingerprint Structure
// ─────────────────────────────────────────────────────────────────────────────

// FingerprintType identifies the algorithm that produced a fingerprint.
type FingerprintType string

const (
	// FingerprintCircular is the Morgan / ECFP-style circular fingerprint.
	FingerprintCircular FingerprintType = "circular"
	// FingerprintPath is the linear-path topological fingerprint.
	FingerprintPath FingerprintType = "path"
)

// IsValid reports whether t names a supported algorithm.
func (t FingerprintType) IsValid() bool {
	return t == FingerprintCircular || t == FingerprintPath
}

func (t FingerprintType) String() string { return string(t) }

// ParseFingerprintType converts a user-supplied name. "morgan" is accepted
// as an alias of circular.
func ParseFingerprintType(s string) (FingerprintType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "circular", "morgan":
		return FingerprintCircular, nil
	case "path", "topological", "rdkit":
		return FingerprintPath, nil
	}
	return "", errors.InvalidParam("unknown fingerprint type").WithDetail(s)
}

// Fingerprint represents a molecular fingerprint as a bit vector. Bit i is
// stored in byte i/8 at bit position i%8.
type Fingerprint struct {
	Type      FingerprintType `json:"type"`
	Bits      []byte          `json:"bits"`
	Length    int             `json:"length"`
	NumOnBits int             `json:"num_on_bits"`
}

// NewFingerprint returns an all-zero fingerprint of length bits.
func NewFingerprint(fpType FingerprintType, length int) *Fingerprint {
	return &Fingerprint{
		Type:   fpType,
		Bits:   make([]byte, (length+7)/8),
		Length: length,
	}
}

// GetBit returns true if the bit at the given index is set.
func (fp *Fingerprint) GetBit(index int) bool {
	if index < 0 || index >= fp.Length {
		return false
	}
	return fp.Bits[index/8]&(1<<uint(index%8)) != 0
}

// SetBit sets the bit at the given index to 1.
func (fp *Fingerprint) SetBit(index int) {
	if index < 0 || index >= fp.Length {
		return
	}
	old := fp.Bits[index/8]
	fp.Bits[index/8] |= 1 << uint(index%8)
	if old != fp.Bits[index/8] {
		fp.NumOnBits++
	}
}

// BitString renders the fingerprint as Length characters of '0' and '1',
// bit 0 first.
func (fp *Fingerprint) BitString() string {
	if fp == nil {
		return ""
	}
	var sb strings.Builder
	sb.Grow(fp.Length)
	for i := 0; i < fp.Length; i++ {
		if fp.GetBit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// OnBits returns the indices of set bits in ascending order.
func (fp *Fingerprint) OnBits() []int {
	out := make([]int, 0, fp.NumOnBits)
	for i, b := range fp.Bits {
		for b != 0 {
			k := bits.TrailingZeros8(b)
			out = append(out, i*8+k)
			b &= b - 1
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

// MaxFingerprintBits bounds the requested fingerprint length.
const MaxFingerprintBits = 1 << 20

// CircularOptions configures CircularFingerprint.
type CircularOptions struct {
	Radius int `json:"radius" mapstructure:"radius"`
	Bits   int `json:"bits" mapstructure:"bits"`
}

// DefaultCircularOptions returns radius 2, 2048 bits.
func DefaultCircularOptions() CircularOptions {
	return CircularOptions{Radius: 2, Bits: 2048}
}

// Validate checks the option ranges.
func (o CircularOptions) Validate() error {
	if o.Radius < 0 {
		return errors.New(errors.ErrCodeFingerprintGenerationFailed, "radius must be non-negative").
			WithDetail(fmt.Sprintf("radius=%d", o.Radius))
	}
	return validateBits(o.Bits)
}

// PathOptions configures PathFingerprint.
type PathOptions struct {
	MinPath     int `json:"min_path" mapstructure:"min_path"`
	MaxPath     int `json:"max_path" mapstructure:"max_path"`
	Bits        int `json:"bits" mapstructure:"bits"`
	BitsPerHash int `json:"bits_per_hash" mapstructure:"bits_per_hash"`
}

// DefaultPathOptions returns paths of 1 to 6 bonds, 1024 bits and two bits
// per path.
func DefaultPathOptions() PathOptions {
	return PathOptions{MinPath: 1, MaxPath: 6, Bits: 1024, BitsPerHash: 2}
}

// Validate checks the option ranges.
func (o PathOptions) Validate() error {
	switch {
	case o.MinPath < 1:
		return errors.New(errors.ErrCodeFingerprintGenerationFailed, "min path must be at least 1").
			WithDetail(fmt.Sprintf("min_path=%d", o.MinPath))
	case o.MaxPath < o.MinPath:
		return errors.New(errors.ErrCodeFingerprintGenerationFailed, "max path must not be below min path").
			WithDetail(fmt.Sprintf("min_path=%d max_path=%d", o.MinPath, o.MaxPath))
	case o.BitsPerHash < 1:
		return errors.New(errors.ErrCodeFingerprintGenerationFailed, "bits per hash must be at least 1").
			WithDetail(fmt.Sprintf("bits_per_hash=%d", o.BitsPerHash))
	}
	return validateBits(o.Bits)
}

func validateBits(n int) error {
	if n < 1 || n > MaxFingerprintBits {
		return errors.New(errors.ErrCodeFingerprintGenerationFailed, "fingerprint length out of range").
			WithDetail(fmt.Sprintf("bits=%d max=%d", n, MaxFingerprintBits))
	}
	return nil
}

func checkFingerprintInput(g *Graph) error {
	if g == nil {
		return errors.NullOperand("fingerprint")
	}
	if g.state != StateSanitized {
		return errors.New(errors.ErrCodeFingerprintGenerationFailed, "fingerprints need a sanitized molecule").
			WithDetail(fmt.Sprintf("state=%s", g.state))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Hashing
// ─────────────────────────────────────────────────────────────────────────────

func hashInts(vals ...uint64) uint64 {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], v)
	}
	return xxhash.Sum64(buf)
}

func signed(v int) uint64 { return uint64(int64(v)) }

// ─────────────────────────────────────────────────────────────────────────────
// Circular (Morgan) Fingerprint
// ─────────────────────────────────────────────────────────────────────────────

// CircularFingerprint computes a Morgan fingerprint. Every atom starts from
// an invariant of atomic number, connectivity, hydrogen count, charge,
// isotope and ring membership. Each iteration folds in the sorted
// (bond order, neighbor invariant) pairs. An environment whose covered bond
// set was already produced, or that stopped growing, adds no bit.
func CircularFingerprint(g *Graph, opts CircularOptions) (*Fingerprint, error) {
	if err := checkFingerprintInput(g); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	fp := NewFingerprint(FingerprintCircular, opts.Bits)
	n, m := len(g.atoms), len(g.bonds)
	if n == 0 {
		return fp, nil
	}
	t := g.topology()
	ri := g.Rings()
	setInv := func(h uint64) { fp.SetBit(int(h % uint64(opts.Bits))) }

	inv := make([]uint64, n)
	for p := range g.atoms {
		inv[p] = atomInvariant(g, t, ri, p)
		setInv(inv[p])
	}

	hood := make([]bitset, n)
	for p := range hood {
		hood[p] = newBitset(m)
	}
	dead := make([]bool, n)
	seen := make(map[string]bool)

	type env struct {
		pos  int
		inv  uint64
		bset bitset
	}
	for layer := 1; layer <= opts.Radius; layer++ {
		next := make([]uint64, n)
		var envs []env
		for p := range g.atoms {
			next[p] = inv[p]
			if dead[p] {
				continue
			}
			type pair struct{ bond, nbr uint64 }
			pairs := make([]pair, 0, len(t.adj[p]))
			grown := hood[p].clone()
			for _, e := range t.adj[p] {
				pairs = append(pairs, pair{uint64(g.bonds[e.bond].Type), inv[e.to]})
				grown.set(e.bond)
				grown.or(hood[e.to])
			}
			if len(pairs) == 0 {
				dead[p] = true
				continue
			}
			sort.Slice(pairs, func(i, j int) bool {
				if pairs[i].bond != pairs[j].bond {
					return pairs[i].bond < pairs[j].bond
				}
				return pairs[i].nbr < pairs[j].nbr
			})
			vals := []uint64{uint64(layer), inv[p]}
			for _, pr := range pairs {
				vals = append(vals, pr.bond, pr.nbr)
			}
			next[p] = hashInts(vals...)
			if grown.equal(hood[p]) {
				dead[p] = true
				continue
			}
			envs = append(envs, env{pos: p, inv: next[p], bset: grown})
		}
		// Deterministic winner among identical neighborhoods: smallest
		// invariant first.
		sort.SliceStable(envs, func(i, j int) bool {
			ki, kj := envs[i].bset.key(), envs[j].bset.key()
			if ki != kj {
				return ki < kj
			}
			return envs[i].inv < envs[j].inv
		})
		for _, e := range envs {
			hood[e.pos] = e.bset
			k := e.bset.key()
			if seen[k] {
				dead[e.pos] = true
				continue
			}
			seen[k] = true
			setInv(e.inv)
		}
		inv = next
	}
	return fp, nil
}

// atomInvariant is the radius-0 identifier of an atom: element, heavy
// degree, total hydrogens, charge, isotope and ring membership.
func atomInvariant(g *Graph, t *topology, ri *RingInfo, p int) uint64 {
	a := g.atoms[p]
	heavy := 0
	for _, e := range t.adj[p] {
		if g.atoms[e.to].AtomicNum != 1 {
			heavy++
		}
	}
	inRing := uint64(0)
	if len(ri.atomRings[p]) > 0 {
		inRing = 1
	}
	return hashInts(
		signed(a.AtomicNum),
		signed(heavy),
		signed(a.TotalHs()),
		signed(a.Charge),
		signed(a.Isotope),
		inRing,
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// Path Fingerprint
// ─────────────────────────────────────────────────────────────────────────────

// PathFingerprint enumerates every simple linear path of MinPath to MaxPath
// bonds once, hashes its canonical atom/bond token sequence and sets
// BitsPerHash bits derived from that hash.
func PathFingerprint(g *Graph, opts PathOptions) (*Fingerprint, error) {
	if err := checkFingerprintInput(g); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	fp := NewFingerprint(FingerprintPath, opts.Bits)
	t := g.topology()

	atomToken := make([]uint64, len(g.atoms))
	for p, a := range g.atoms {
		arom := uint64(0)
		if a.Aromatic {
			arom = 1
		}
		atomToken[p] = hashInts(signed(a.AtomicNum), arom)
	}

	seen := make(map[string]bool)
	visited := make([]bool, len(g.atoms))
	atoms := make([]int, 0, opts.MaxPath+1)
	bonds := make([]int, 0, opts.MaxPath)

	emit := func() {
		key := pathKey(bonds)
		if seen[key] {
			return
		}
		seen[key] = true
		h := hashTokens(pathTokens(g, atomToken, atoms, bonds))
		for k := 0; k < opts.BitsPerHash; k++ {
			fp.SetBit(int(h % uint64(opts.Bits)))
			h = hashInts(uint64(k+1), h)
		}
	}

	var walk func(p int)
	walk = func(p int) {
		if len(bonds) >= opts.MinPath {
			emit()
		}
		if len(bonds) == opts.MaxPath {
			return
		}
		for _, e := range t.adj[p] {
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			atoms = append(atoms, e.to)
			bonds = append(bonds, e.bond)
			walk(e.to)
			atoms = atoms[:len(atoms)-1]
			bonds = bonds[:len(bonds)-1]
			visited[e.to] = false
		}
	}
	for p := range g.atoms {
		visited[p] = true
		atoms = append(atoms[:0], p)
		bonds = bonds[:0]
		walk(p)
		visited[p] = false
	}
	return fp, nil
}

func pathKey(bonds []int) string {
	sorted := append([]int(nil), bonds...)
	sort.Ints(sorted)
	var sb strings.Builder
	for _, b := range sorted {
		fmt.Fprintf(&sb, "%d,", b)
	}
	return sb.String()
}

// pathTokens interleaves atom and bond tokens and returns the
// lexicographically smaller of the two reading directions.
func pathTokens(g *Graph, atomToken []uint64, atoms, bonds []int) []uint64 {
	fwd := make([]uint64, 0, len(atoms)+len(bonds))
	for i, p := range atoms {
		fwd = append(fwd, atomToken[p])
		if i < len(bonds) {
			fwd = append(fwd, uint64(g.bonds[bonds[i]].Type))
		}
	}
	rev := make([]uint64, len(fwd))
	for i, v := range fwd {
		rev[len(fwd)-1-i] = v
	}
	for i := range fwd {
		if fwd[i] != rev[i] {
			if rev[i] < fwd[i] {
				return rev
			}
			break
		}
	}
	return fwd
}

func hashTokens(tokens []uint64) uint64 {
	return hashInts(tokens...)
}
