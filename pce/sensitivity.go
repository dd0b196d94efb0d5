package pce

import (
	"gonum.org/v1/gonum/mat"
)

// Sensitivity holds variance-based (Sobol) sensitivity indices of an
// expansion.
type Sensitivity struct {
	// Main is the first order index of each dimension: the fraction of the
	// variance due to terms that depend on that dimension alone.
	Main []float64
	// Total is the fraction of the variance due to all terms that depend on
	// the dimension.
	Total []float64
	// Joint holds the second order indices off the diagonal, the fraction
	// of the variance due to terms depending on exactly the two dimensions,
	// and the main indices on the diagonal.
	Joint *mat.SymDense
}

// Sensitivity computes the Sobol indices of the expansion with the given
// coefficients. If the expansion has zero variance all indices are zero.
func (m *Model) Sensitivity(coeffs []float64) Sensitivity {
	m.checkCoeffs(coeffs)
	dim := m.Dim()
	s := Sensitivity{
		Main:  make([]float64, dim),
		Total: make([]float64, dim),
		Joint: mat.NewSymDense(dim, nil),
	}
	variance := m.Variance(coeffs)
	if variance == 0 {
		return s
	}
	active := make([]int, 0, dim)
	for k, c := range coeffs {
		active = active[:0]
		for d := 0; d < dim; d++ {
			if m.index.Degree(k, d) != 0 {
				active = append(active, d)
			}
		}
		if len(active) == 0 {
			continue
		}
		part := c * c * m.norms[k] / variance
		for _, d := range active {
			s.Total[d] += part
		}
		switch len(active) {
		case 1:
			s.Main[active[0]] += part
		case 2:
			i, j := active[0], active[1]
			s.Joint.SetSym(i, j, s.Joint.At(i, j)+part)
		}
	}
	for d := 0; d < dim; d++ {
		s.Joint.SetSym(d, d, s.Main[d])
	}
	return s
}
