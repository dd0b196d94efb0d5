package pce

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Project computes coefficients by Galerkin projection of the function values
// f, given at the quadrature points with the given weights, onto the basis:
//
//	c_k = Σ_q w_q f(x_q) Ψ_k(x_q) / E[Ψ_k²].
//
// The weights must integrate against the germ probability measure, so they
// sum to one.
func (m *Model) Project(points mat.Matrix, weights, f []float64) ([]float64, error) {
	r, c := points.Dims()
	if c != m.Dim() {
		return nil, fmt.Errorf("points have %d columns for %d dimensions: %w", c, m.Dim(), ErrLength)
	}
	if len(weights) != r {
		return nil, fmt.Errorf("%d weights for %d points: %w", len(weights), r, ErrLength)
	}
	if len(f) != r {
		return nil, fmt.Errorf("%d function values for %d points: %w", len(f), r, ErrLength)
	}
	coeffs := make([]float64, m.Len())
	terms := make([]float64, m.Len())
	row := make([]float64, c)
	for q := 0; q < r; q++ {
		mat.Row(row, q, points)
		m.Terms(terms, row)
		wf := weights[q] * f[q]
		for k, t := range terms {
			coeffs[k] += wf * t
		}
	}
	for k := range coeffs {
		coeffs[k] /= m.norms[k]
	}
	return coeffs, nil
}
