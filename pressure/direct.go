package pressure

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/sifanexisted/macflow/operators"
)

// Direct solves the Poisson system through a dense Cholesky
// factorization computed once at construction. On gauge-free
// configurations the matrix is singular; pinning one diagonal entry
// makes it definite and, because the projection right-hand sides are
// compatible, leaves the solution exact up to the irrelevant constant.
type Direct struct {
	chol mat.Cholesky
	n    int
	buf  []float64
}

// NewDirect densifies the assembled Poisson matrix and factorizes it.
func NewDirect(op *operators.Operators) (*Direct, error) {
	a := op.Poisson()
	n, _ := a.Dims()
	sym := mat.NewSymDense(n, nil)
	a.DoNonZero(func(i, j int, v float64) {
		if i <= j {
			sym.SetSym(i, j, v)
		}
	})
	if op.GaugeFree() {
		sym.SetSym(0, 0, sym.At(0, 0)+1)
	}

	d := &Direct{n: n, buf: make([]float64, n)}
	if ok := d.chol.Factorize(sym); !ok {
		return nil, fmt.Errorf("pressure: Poisson matrix is not positive definite")
	}
	return d, nil
}

// Solve writes the solution for rhs into dst.
func (d *Direct) Solve(dst, rhs []float64) error {
	copy(d.buf, rhs)
	v := mat.NewVecDense(d.n, dst)
	if err := d.chol.SolveVecTo(v, mat.NewVecDense(d.n, d.buf)); err != nil {
		return fmt.Errorf("pressure: direct solve: %w", err)
	}
	return nil
}
