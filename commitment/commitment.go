// Package commitment implements CommitmentCore: Pedersen commitments over
// BLS12-381 G1 with two independent generators. Binding rests on
// discrete-log hardness between the generators; hiding is information
// theoretic given a uniform blinder. Commit/VerifyOpen/Add keep the same
// shape a lattice-ring linear commitment would use; only the algebra
// underneath changed.
package commitment

import (
	"archimedes/errs"
	"archimedes/group"
)

// Core exposes the commitment operations against a fixed generator pair.
// It carries no mutable state and is safe for concurrent use.
type Core struct {
	ctx *group.Context
}

// New builds a Core over ctx. Passing nil uses the process-wide default
// generators.
func New(ctx *group.Context) (*Core, error) {
	if ctx == nil {
		ctx = group.Default
	}
	if err := group.CheckGenerator(ctx.G); err != nil {
		return nil, errs.New(errs.CryptoRejected, errs.OffenderNone, "commitment.New(G)", err)
	}
	if err := group.CheckGenerator(ctx.H); err != nil {
		return nil, errs.New(errs.CryptoRejected, errs.OffenderNone, "commitment.New(H)", err)
	}
	return &Core{ctx: ctx}, nil
}

// Commit returns v·G + r·H. Both scalar multiplications run through
// gnark-crypto's constant-time ScalarMultiplication.
func (c *Core) Commit(v, r group.Scalar) group.Point {
	vG := group.ScalarMul(c.ctx.G, &v)
	rH := group.ScalarMul(c.ctx.H, &r)
	return group.Add(vG, rH)
}

// VerifyOpen recomputes commit(v, r) and compares it to C in constant time
// (point equality in gnark-crypto's affine representation is already a
// fixed-cost field comparison, not a short-circuiting byte scan).
func (c *Core) VerifyOpen(C group.Point, v, r group.Scalar) bool {
	return group.Equal(C, c.Commit(v, r))
}

// Add returns C1+C2, the group-law addition that makes commitments
// homomorphic: commit(a,r)+commit(b,s) == commit(a+b, r+s).
func (c *Core) Add(C1, C2 group.Point) group.Point {
	return group.Add(C1, C2)
}

// Sub returns C1-C2.
func (c *Core) Sub(C1, C2 group.Point) group.Point {
	return group.Sub(C1, C2)
}

// CommitBatch commits to the vectors vs and rs simultaneously via
// multi-scalar multiplication: Σ vs[i]·G + Σ rs[i]·H, computed as a single
// MSM over the concatenated point/scalar lists so callers folding many
// steps at once pay one Pippenger pass instead of one scalar mul per step.
func (c *Core) CommitBatch(vs, rs []group.Scalar) (group.Point, error) {
	if len(vs) != len(rs) {
		return group.Point{}, errs.Wrap(errs.ProgrammerError, errs.OffenderNone, "commitment.CommitBatch",
			"mismatched vector lengths: %d values, %d blinders", len(vs), len(rs))
	}
	n := len(vs)
	points := make([]group.Point, 0, 2*n)
	scalars := make([]group.Scalar, 0, 2*n)
	for i := 0; i < n; i++ {
		points = append(points, c.ctx.G, c.ctx.H)
		scalars = append(scalars, vs[i], rs[i])
	}
	out, err := group.MSM(points, scalars)
	if err != nil {
		return group.Point{}, errs.New(errs.ProgrammerError, errs.OffenderNone, "commitment.CommitBatch", err)
	}
	return out, nil
}

// CheckExternalPoint validates a G1 point received from a counterparty
// before it is folded into any local computation, per §4.1's requirement
// that every externally supplied point pass a subgroup check.
func CheckExternalPoint(p group.Point, offender errs.Offender) error {
	if err := group.CheckPoint(p); err != nil {
		return errs.New(errs.CryptoRejected, offender, "commitment.CheckExternalPoint", err)
	}
	return nil
}
