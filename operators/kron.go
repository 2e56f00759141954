// Package operators assembles the discrete operators of the staggered
// scheme: the divergence matrix M and its boundary vector yM, the
// gradient pairing Mᵀ with yG, per-component diffusion matrices with yD,
// the pressure Poisson matrix M·Ω⁻¹·Mᵀ, and the matrix-free convection
// and variable-viscosity kernels. Multi-dimensional matrices are composed
// from 1D stencils by Kronecker products rather than hand-derived
// multi-dimensional stencils.
package operators

import (
	"github.com/james-bowman/sparse"
)

// kron returns the Kronecker product a ⊗ b. With the first grid axis
// fastest, an operator acting on axis d is assembled as
// kron(I_{D-1}, ..., Op_d, ..., I_0) by folding from the fastest axis up.
func kron(a, b *sparse.CSR) *sparse.CSR {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	dok := sparse.NewDOK(ra*rb, ca*cb)
	a.DoNonZero(func(ia, ja int, va float64) {
		b.DoNonZero(func(ib, jb int, vb float64) {
			dok.Set(ia*rb+ib, ja*cb+jb, va*vb)
		})
	})
	return dok.ToCSR()
}

// speye returns the n×n identity.
func speye(n int) *sparse.CSR {
	dok := sparse.NewDOK(n, n)
	for i := 0; i < n; i++ {
		dok.Set(i, i, 1)
	}
	return dok.ToCSR()
}

// spdiag returns the diagonal matrix with v on its diagonal.
func spdiag(v []float64) *sparse.CSR {
	dok := sparse.NewDOK(len(v), len(v))
	for i, x := range v {
		if x != 0 {
			dok.Set(i, i, x)
		}
	}
	return dok.ToCSR()
}

// transpose returns aᵀ as a new CSR.
func transpose(a *sparse.CSR) *sparse.CSR {
	r, c := a.Dims()
	dok := sparse.NewDOK(c, r)
	a.DoNonZero(func(i, j int, v float64) {
		dok.Set(j, i, v)
	})
	return dok.ToCSR()
}

// MulVec computes dst = a·x. dst must not alias x.
func MulVec(dst []float64, a *sparse.CSR, x []float64) {
	for i := range dst {
		dst[i] = 0
	}
	a.DoNonZero(func(i, j int, v float64) {
		dst[i] += v * x[j]
	})
}

// MulVecT computes dst = aᵀ·x. dst must not alias x.
func MulVecT(dst []float64, a *sparse.CSR, x []float64) {
	for i := range dst {
		dst[i] = 0
	}
	a.DoNonZero(func(i, j int, v float64) {
		dst[j] += v * x[i]
	})
}
