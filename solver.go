package sparsepce

import (
	"github.com/btracey/sparsepce/bcs"
	"gonum.org/v1/gonum/mat"
)

// Solver finds a sparse solution of psi c ≈ y. The returned Used lists the
// selected columns of psi and Coeffs their coefficients.
type Solver interface {
	Solve(psi mat.Matrix, y []float64, settings *bcs.Settings) (*bcs.Result, error)
}

// BCS is the Bayesian compressive sensing Solver of package bcs.
type BCS struct{}

func (BCS) Solve(psi mat.Matrix, y []float64, settings *bcs.Settings) (*bcs.Result, error) {
	return bcs.Solve(psi, y, settings)
}
