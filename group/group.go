// Package group wraps the BLS12-381 G1 group and scalar field supplied by
// gnark-crypto behind the small surface the rest of ARCHIMEDES needs:
// generators, scalar multiplication, addition, subgroup checks, and
// multi-scalar multiplication. It is the assumed-external Group primitive
// of the protocol (nothing here reimplements curve arithmetic).
package group

import (
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"archimedes/internal/measure"
	"archimedes/prof"
)

// Point is an affine element of the BLS12-381 G1 subgroup.
type Point = bls12381.G1Affine

// Scalar is an element of the BLS12-381 scalar field.
type Scalar = fr.Element

// Rand is the injected randomness capability (§6): fill(buf) with
// cryptographically secure bytes. Production code wires crypto/rand; tests
// wire a deterministic stream so scenarios reproduce exactly.
type Rand interface {
	Fill(buf []byte) error
}

const hGeneratorDST = "ARCHIMEDES-H-GENERATOR-v1"

// Context carries the two independent generators every Pedersen commitment
// is built from. It is process-wide and immutable once constructed; tests
// build their own Context instead of mutating the shared one.
type Context struct {
	G Point
	H Point
}

// NewContext derives H from G by hashing to the curve with a domain
// separator distinct from any other tag used in the protocol, so nobody —
// including whoever runs this constructor — learns log_G(H).
func NewContext() (*Context, error) {
	_, _, g1Gen, _ := bls12381.Generators()
	h, err := bls12381.HashToG1([]byte("ARCHIMEDES-PEDERSEN-H-GENERATOR"), []byte(hGeneratorDST))
	if err != nil {
		return nil, fmt.Errorf("group: derive H generator: %w", err)
	}
	if !h.IsInSubGroup() {
		return nil, fmt.Errorf("group: derived H generator failed subgroup check")
	}
	if IsIdentity(g1Gen) || IsIdentity(h) {
		return nil, fmt.Errorf("group: generator collapsed to identity")
	}
	return &Context{G: g1Gen, H: h}, nil
}

// Default is initialized once at process start and used unless a caller
// supplies its own Context (tests routinely do, to pin fixed generators).
var Default *Context

func init() {
	ctx, err := NewContext()
	if err != nil {
		panic(fmt.Sprintf("group: failed to initialize default context: %v", err))
	}
	Default = ctx
}

// IsIdentity reports whether p is the group identity (point at infinity).
func IsIdentity(p Point) bool {
	return p.IsInfinity()
}

// CheckPoint enforces the mandatory check on any externally supplied G1
// point: it must lie on the curve (implied by a well-formed Affine) and in
// the correct prime-order subgroup. The identity passes; CheckGenerator is
// the variant that also rejects it.
func CheckPoint(p Point) error {
	if !p.IsInSubGroup() {
		return fmt.Errorf("group: point not in subgroup")
	}
	return nil
}

// CheckGenerator additionally rejects the identity, which CheckPoint alone
// allows (the identity IS a valid subgroup element, just not a valid
// generator).
func CheckGenerator(p Point) error {
	if err := CheckPoint(p); err != nil {
		return err
	}
	if IsIdentity(p) {
		return fmt.Errorf("group: identity is not a valid generator")
	}
	return nil
}

// RandomScalar draws a uniform element of 𝔽_r by rejection sampling: read
// fr.Bytes bytes from r, reject and redraw if the big-endian value is ≥ the
// field modulus, otherwise accept. A modular reduction of raw bytes would
// bias small values; injected randomness (§6) means every draw must go
// through r rather than gnark-crypto's own crypto/rand-backed SetRandom, so
// tests can pin a deterministic stream.
func RandomScalar(r io.Reader) (Scalar, error) {
	modulus := fr.Modulus()
	buf := make([]byte, fr.Bytes)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return Scalar{}, fmt.Errorf("group: sample scalar: %w", err)
		}
		var candidate big.Int
		candidate.SetBytes(buf)
		if candidate.Cmp(modulus) >= 0 {
			continue
		}
		var s Scalar
		s.SetBytes(buf)
		return s, nil
	}
}

// ScalarMul returns s*p using gnark-crypto's constant-time scalar
// multiplication.
func ScalarMul(p Point, s *Scalar) Point {
	var out Point
	var sBig big.Int
	s.BigInt(&sBig)
	out.ScalarMultiplication(&p, &sBig)
	return out
}

// Add returns a+b in G1.
func Add(a, b Point) Point {
	var out Point
	var aj, bj bls12381.G1Jac
	aj.FromAffine(&a)
	bj.FromAffine(&b)
	aj.AddAssign(&bj)
	out.FromJacobian(&aj)
	return out
}

// Sub returns a-b in G1.
func Sub(a, b Point) Point {
	var out Point
	var aj, bj bls12381.G1Jac
	aj.FromAffine(&a)
	bj.FromAffine(&b)
	bj.Neg(&bj)
	aj.AddAssign(&bj)
	out.FromJacobian(&aj)
	return out
}

// Equal reports whether a and b are the same affine point.
func Equal(a, b Point) bool {
	return a.Equal(&b)
}

// AddScalars returns a+b in 𝔽_r.
func AddScalars(a, b Scalar) Scalar {
	var out Scalar
	out.Add(&a, &b)
	return out
}

// ZeroScalar returns the additive identity of 𝔽_r.
func ZeroScalar() Scalar {
	var z Scalar
	z.SetZero()
	return z
}

// SubScalars returns a-b in 𝔽_r.
func SubScalars(a, b Scalar) Scalar {
	var out Scalar
	out.Sub(&a, &b)
	return out
}

// MulScalars returns a*b in 𝔽_r.
func MulScalars(a, b Scalar) Scalar {
	var out Scalar
	out.Mul(&a, &b)
	return out
}

// InverseScalar returns a⁻¹ in 𝔽_r. Callers must not pass the zero element.
func InverseScalar(a Scalar) Scalar {
	var out Scalar
	out.Inverse(&a)
	return out
}

// ScalarFromUint64 lifts a small integer into 𝔽_r, used to build fixed
// evaluation points for the erasure code (§4.5) rather than field elements
// drawn from hashing.
func ScalarFromUint64(v uint64) Scalar {
	var s Scalar
	s.SetUint64(v)
	return s
}

// ScalarBytes returns the canonical big-endian encoding of s.
func ScalarBytes(s Scalar) [32]byte {
	return s.Bytes()
}

// ScalarFromBytes decodes b as a canonical big-endian scalar encoding
// produced by ScalarBytes. Values ≥ the field modulus are reduced by
// gnark-crypto's SetBytes, matching ScalarBytes/ScalarFromBytes round-trip
// behavior for anything this package itself ever wrote.
func ScalarFromBytes(b [32]byte) Scalar {
	var s Scalar
	s.SetBytes(b[:])
	return s
}

// IdentityPoint returns the G1 identity (point at infinity).
func IdentityPoint() Point {
	var p Point
	p.X.SetZero()
	p.Y.SetZero()
	return p
}

// MSM computes the multi-scalar multiplication Σ scalars[i]*points[i],
// switching to gnark-crypto's Pippenger implementation once the input is
// large enough (|vs| ≥ 64, per §4.1) to amortize the bucket setup; smaller
// inputs use a plain accumulation loop, which is faster below that size.
func MSM(points []Point, scalars []Scalar) (Point, error) {
	defer prof.Track(time.Now(), "group.MSM")
	measure.Global.Add("group.MSM.calls", 1)
	if len(points) != len(scalars) {
		return Point{}, fmt.Errorf("group: MSM length mismatch: %d points, %d scalars", len(points), len(scalars))
	}
	if len(points) == 0 {
		var identity Point
		identity.X.SetZero()
		identity.Y.SetZero()
		return identity, nil
	}
	if len(points) >= 64 {
		var out Point
		if _, err := out.MultiExp(points, scalars, ecc.MultiExpConfig{}); err != nil {
			return Point{}, fmt.Errorf("group: MSM: %w", err)
		}
		return out, nil
	}
	var acc Point
	acc.X.SetZero()
	acc.Y.SetZero()
	for i := range points {
		acc = Add(acc, ScalarMul(points[i], &scalars[i]))
	}
	return acc, nil
}
