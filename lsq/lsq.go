// Package lsq makes least-squares fits of expansions of the form
//
//	f(x) = β_0 t_0(x) + β_1 t_1(x) + ... + β_n t_n(x)
//
// where the t_i are functions of the input as set by the Termer, and the β_i
// are free parameters that are set by minimizing the least-squares error over
// a set of training samples.
//
// Rank-deficient systems are not an error: Solve returns the minimum-norm
// solution and reports the numerical rank.
package lsq

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrShape = errors.New("lsq: dimension mismatch")
	ErrSVD   = errors.New("lsq: singular value decomposition failed")
)

// eps is the float64 machine epsilon.
const eps = 0x1p-52

// Termer is a type that can set the nonlinear functions from a particular input.
// See the package documentation for more information.
type Termer interface {
	// NumTerms returns the number of terms in the least squares fit as a function
	// of the input dimension of x.
	NumTerms(dim int) int
	// Terms computes the terms given the input, and stores them in-place into
	// terms.
	Terms(terms, x []float64)
}

// Result is the solution of a least-squares problem.
type Result struct {
	Beta []float64
	// Rank is the numerical rank of the system matrix.
	Rank int
	// Degenerate is true when the rank is below the number of unknowns and
	// Beta is the minimum-norm solution.
	Degenerate bool
}

// Solve finds β minimizing ‖A β - b‖₂. Singular values below
// max(m, n) ε σ_max are treated as zero.
func Solve(a mat.Matrix, b []float64) (Result, error) {
	m, n := a.Dims()
	if len(b) != m {
		return Result{}, fmt.Errorf("%d right hand sides for %d rows: %w", len(b), m, ErrShape)
	}
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return Result{}, ErrSVD
	}
	rcond := float64(max(m, n)) * eps
	rank := svd.Rank(rcond)
	beta := make([]float64, n)
	if rank == 0 {
		return Result{Beta: beta, Rank: 0, Degenerate: true}, nil
	}
	dst := mat.NewVecDense(n, beta)
	svd.SolveVecTo(dst, mat.NewVecDense(m, b), rank)
	return Result{
		Beta:       beta,
		Rank:       rank,
		Degenerate: rank < n,
	}, nil
}

// Coeffs finds the optimal coefficients given the input data and the Termer,
// using the rows of xs listed in inds. If weights is non-nil the fit minimizes
// the weighted squared error.
func Coeffs(xs mat.Matrix, fs, weights []float64, inds []int, t Termer) (Result, error) {
	_, nDim := xs.Dims()

	nTerms := t.NumTerms(nDim)
	if len(inds) == 0 {
		return Result{}, fmt.Errorf("no rows selected: %w", ErrShape)
	}
	A := mat.NewDense(len(inds), nTerms, nil)
	row := make([]float64, nDim)
	for i, idx := range inds {
		mat.Row(row, idx, xs)
		t.Terms(A.RawRowView(i), row)
	}

	b := make([]float64, len(inds))
	for i, idx := range inds {
		b[i] = fs[idx]
	}

	if weights != nil {
		// Weighted least squares multiplies both the terms and f by
		// sqrt(weight).
		for i, idx := range inds {
			sw := math.Sqrt(weights[idx])
			row := A.RawRowView(i)
			for j := range row {
				row[j] *= sw
			}
			b[i] *= sw
		}
	}
	return Solve(A, b)
}
