// Package availability implements §4.5: a systematic Reed-Solomon erasure
// code over the scalar field, a Merkle commitment over the resulting
// chunks, and a Fiat-Shamir random-sampling verdict over chunk openings.
//
// The open question in §4.5 ("Source implies Reed-Solomon over 'chunks'
// without fixing the alphabet") is resolved here by fixing the alphabet to
// 𝔽_r (BLS12-381's scalar field) and the evaluation domain to the fixed
// points 1..n, so every encoder/decoder pair agrees on both without needing
// to transmit them.
package availability

import (
	"archimedes/errs"
	"archimedes/group"
)

// Chunk is one row of the erasure-coded commitment vector: its evaluation
// point is implicit in Index (x = Index+1, so index 0 never lands on the
// field's zero, which has no multiplicative inverse).
type Chunk struct {
	Index uint64
	Data  []group.Scalar
}

func evalPoint(index uint64) group.Scalar {
	return group.ScalarFromUint64(index + 1)
}

// lagrangeEval evaluates, at x, the unique degree-<len(xs) polynomial
// through the points (xs[i], ys[i]), without ever materializing its
// coefficients. O(k^2) total for k output points over k input points,
// adequate for the chunk counts a Merkle-committed availability layer
// works with (tens to low thousands).
func lagrangeEval(xs, ys []group.Scalar, x group.Scalar) group.Scalar {
	acc := group.ZeroScalar()
	for i := range xs {
		term := ys[i]
		for j := range xs {
			if j == i {
				continue
			}
			num := group.SubScalars(x, xs[j])
			den := group.InverseScalar(group.SubScalars(xs[i], xs[j]))
			term = group.MulScalars(term, group.MulScalars(num, den))
		}
		acc = group.AddScalars(acc, term)
	}
	return acc
}

// Encode splits data into k systematic source chunks of equal width and
// derives n-k parity chunks: for each column, the unique degree-<k
// polynomial through the source chunks' values at points 1..k is evaluated
// at the parity chunks' points k+1..n (chunk i sits at point i+1). Any k of
// the n resulting chunks reconstruct the original data exactly (Decode).
func Encode(data []group.Scalar, k, n int) ([]Chunk, error) {
	if k <= 0 || n <= k {
		return nil, errs.Wrap(errs.ProgrammerError, errs.OffenderNone, "availability.Encode",
			"invalid erasure params k=%d n=%d", k, n)
	}
	width := (len(data) + k - 1) / k
	if width == 0 {
		width = 1
	}
	rows := make([][]group.Scalar, k)
	for i := 0; i < k; i++ {
		row := make([]group.Scalar, width)
		for j := 0; j < width; j++ {
			pos := i*width + j
			if pos < len(data) {
				row[j] = data[pos]
			} else {
				row[j] = group.ZeroScalar()
			}
		}
		rows[i] = row
	}

	sourceXs := make([]group.Scalar, k)
	for i := 0; i < k; i++ {
		sourceXs[i] = evalPoint(uint64(i))
	}

	chunks := make([]Chunk, n)
	for i := 0; i < k; i++ {
		chunks[i] = Chunk{Index: uint64(i), Data: rows[i]}
	}
	for i := k; i < n; i++ {
		x := evalPoint(uint64(i))
		row := make([]group.Scalar, width)
		for j := 0; j < width; j++ {
			col := make([]group.Scalar, k)
			for r := 0; r < k; r++ {
				col[r] = rows[r][j]
			}
			row[j] = lagrangeEval(sourceXs, col, x)
		}
		chunks[i] = Chunk{Index: uint64(i), Data: row}
	}
	return chunks, nil
}

// Decode reconstructs the original data from any k of the n chunks
// produced by Encode, truncating the padded tail back to originalLen.
func Decode(chunks []Chunk, k, originalLen int) ([]group.Scalar, error) {
	if len(chunks) < k {
		return nil, errs.Wrap(errs.ProtocolViolation, errs.OffenderNone, "availability.Decode",
			"insufficient chunks for reconstruction: have %d, need %d", len(chunks), k)
	}
	used := chunks[:k]
	width := 0
	if k > 0 {
		width = len(used[0].Data)
	}
	xs := make([]group.Scalar, k)
	for i, c := range used {
		xs[i] = evalPoint(c.Index)
	}
	sourceXs := make([]group.Scalar, k)
	for i := 0; i < k; i++ {
		sourceXs[i] = evalPoint(uint64(i))
	}

	recovered := make([][]group.Scalar, k)
	for i := range recovered {
		recovered[i] = make([]group.Scalar, width)
	}
	for j := 0; j < width; j++ {
		col := make([]group.Scalar, k)
		for i, c := range used {
			if len(c.Data) <= j {
				return nil, errs.Wrap(errs.ProtocolViolation, errs.OffenderNone, "availability.Decode",
					"chunk %d shorter than expected width %d", c.Index, width)
			}
			col[i] = c.Data[j]
		}
		for row, sx := range sourceXs {
			recovered[row][j] = lagrangeEval(xs, col, sx)
		}
	}

	out := make([]group.Scalar, 0, k*width)
	for _, row := range recovered {
		out = append(out, row...)
	}
	if len(out) > originalLen {
		out = out[:originalLen]
	}
	return out, nil
}
