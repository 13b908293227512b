// Package gemm implements a handful of dense matrix-multiply loop
// orderings used to generate the memory-access traces this repository's
// cache simulator consumes. It has no dependency on the cache package;
// the link between the two is the trace file a GEMM run can be made to
// emit, not a Go API.
package gemm

import "math/rand"

// Matrix is a row-major, square n*n matrix of float64 stored flat, the
// layout every variant below assumes: element (i, j) lives at
// i*n+j.
type Matrix struct {
	N    int
	Data []float64
}

// NewMatrix allocates an n*n matrix, zero-initialised.
func NewMatrix(n int) Matrix {
	return Matrix{N: n, Data: make([]float64, n*n)}
}

func (m Matrix) at(i, j int) float64    { return m.Data[i*m.N+j] }
func (m Matrix) set(i, j int, v float64) { m.Data[i*m.N+j] = v }

// IJK computes C += A*B with the textbook i,j,k loop order.
func IJK(c, a, b Matrix) {
	n := c.N
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				c.Data[i*n+j] += a.at(i, k) * b.at(k, j)
			}
		}
	}
}

// IKJAccumulated computes C += A*B with the i,j,k order but accumulates
// C[i][j] in a local variable across the k loop instead of re-reading
// and re-writing memory on every iteration.
func IKJAccumulated(c, a, b Matrix) {
	n := c.N
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cij := c.at(i, j)
			for k := 0; k < n; k++ {
				cij += a.at(i, k) * b.at(k, j)
			}
			c.set(i, j, cij)
		}
	}
}

// KIJ computes C += A*B with the k,i,j loop order, which streams B and C
// row-wise at the cost of re-reading C[i][j] on every k iteration.
func KIJ(c, a, b Matrix) {
	n := c.N
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				c.Data[i*n+j] += a.at(i, k) * b.at(k, j)
			}
		}
	}
}

// JKI computes C += A*B with the j,k,i loop order, which streams A and C
// column-wise.
func JKI(c, a, b Matrix) {
	n := c.N
	for j := 0; j < n; j++ {
		for k := 0; k < n; k++ {
			for i := 0; i < n; i++ {
				c.Data[i*n+j] += a.at(i, k) * b.at(k, j)
			}
		}
	}
}

// BlockSize is the tile edge used by Tiled.
const BlockSize = 16

// Tiled computes C += A*B in BlockSize x BlockSize tiles, trading a more
// complex loop nest for reuse of each tile's A, B, and C entries while
// they are still cache-resident.
func Tiled(c, a, b Matrix) {
	n := c.N
	for ii := 0; ii < n; ii += BlockSize {
		for jj := 0; jj < n; jj += BlockSize {
			for kk := 0; kk < n; kk += BlockSize {
				iMax := min(ii+BlockSize, n)
				jMax := min(jj+BlockSize, n)
				kMax := min(kk+BlockSize, n)

				for i := ii; i < iMax; i++ {
					for j := jj; j < jMax; j++ {
						cij := c.at(i, j)
						for k := kk; k < kMax; k++ {
							cij += a.at(i, k) * b.at(k, j)
						}
						c.set(i, j, cij)
					}
				}
			}
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// VerifyResult spot-checks 10 random entries of c against the reference
// computation c = initial + A*B, where initial is the matrix's value
// before multiplication, and reports whether every sampled entry matches
// within a relative tolerance of 1e-10.
func VerifyResult(c, a, b Matrix, initial float64) bool {
	n := c.N
	for t := 0; t < 10; t++ {
		i := rand.Intn(n)
		j := rand.Intn(n)

		want := initial
		for k := 0; k < n; k++ {
			want += a.at(i, k) * b.at(k, j)
		}

		got := c.at(i, j)
		relErr := relativeError(got, want)
		if relErr > 1e-10 {
			return false
		}
	}
	return true
}

func relativeError(got, want float64) float64 {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	denom := want
	if denom < 0 {
		denom = -denom
	}
	return diff / (denom + 1e-20)
}
