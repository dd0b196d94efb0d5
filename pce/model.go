// Package pce implements polynomial chaos expansions. A Model pairs a set of
// multi-indices with a germ family; the expansion with coefficients c is
//
//	f(ξ) ≈ Σ_k c_k Ψ_k(ξ),   Ψ_k(ξ) = Π_d p_{α_kd}(ξ_d)
//
// where α_k is the k-th multi-index and p_n are the orthogonal polynomials of
// the family. Coefficient vectors are plain slices ordered like the model's
// multi-index set, and are only meaningful together with that model.
package pce

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/btracey/sparsepce/distribution"
	"github.com/btracey/sparsepce/multiindex"
	"github.com/btracey/sparsepce/poly"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyIndex = errors.New("pce: empty multi-index set")
	ErrLength     = errors.New("pce: length mismatch")
)

// Model is an immutable polynomial chaos basis.
type Model struct {
	index  multiindex.Set
	family poly.Family
	params poly.Params

	maxDeg []int     // largest degree per dimension
	norms  []float64 // E[Ψ_k²] per term
}

// New returns a model over the given multi-index set.
func New(index multiindex.Set, family poly.Family, params poly.Params) (*Model, error) {
	if index.Len() == 0 || index.Dim() == 0 {
		return nil, ErrEmptyIndex
	}
	if err := family.Validate(params); err != nil {
		return nil, err
	}
	m := &Model{
		index:  index,
		family: family,
		params: params,
		maxDeg: make([]int, index.Dim()),
		norms:  make([]float64, index.Len()),
	}
	for k := 0; k < index.Len(); k++ {
		for d := 0; d < index.Dim(); d++ {
			if v := index.Degree(k, d); v > m.maxDeg[d] {
				m.maxDeg[d] = v
			}
		}
	}
	var maxAll int
	for _, v := range m.maxDeg {
		if v > maxAll {
			maxAll = v
		}
	}
	norm1 := make([]float64, maxAll+1)
	for n := range norm1 {
		norm1[n] = family.NormSq(n, params)
	}
	for k := range m.norms {
		v := 1.0
		for d := 0; d < index.Dim(); d++ {
			v *= norm1[index.Degree(k, d)]
		}
		m.norms[k] = v
	}
	return m, nil
}

// NewTotalOrder returns a model over the total-order set of the given
// dimension and order.
func NewTotalOrder(dim, order int, family poly.Family, params poly.Params) (*Model, error) {
	if dim < 1 || order < 0 {
		return nil, fmt.Errorf("pce: bad total order dimension %d, order %d", dim, order)
	}
	return New(multiindex.TotalOrder(dim, order), family, params)
}

// NewTensor returns a model over the tensor-product set of the given
// dimension and per-dimension order.
func NewTensor(dim, order int, family poly.Family, params poly.Params) (*Model, error) {
	if dim < 1 || order < 0 {
		return nil, fmt.Errorf("pce: bad tensor dimension %d, order %d", dim, order)
	}
	return New(multiindex.Tensor(dim, order), family, params)
}

// Index returns the multi-index set of the model.
func (m *Model) Index() multiindex.Set { return m.index }

// Family returns the germ family of the model.
func (m *Model) Family() poly.Family { return m.family }

// Params returns the family shape parameters.
func (m *Model) Params() poly.Params { return m.params }

// Dim returns the number of germ dimensions.
func (m *Model) Dim() int { return m.index.Dim() }

// Len returns the number of basis terms.
func (m *Model) Len() int { return m.index.Len() }

// NumTerms returns the number of basis terms. It panics if dim is not the
// dimension of the model.
func (m *Model) NumTerms(dim int) int {
	if dim != m.Dim() {
		panic("pce: dimension mismatch")
	}
	return m.Len()
}

// NormSq returns E[Ψ_k²] for every term k.
func (m *Model) NormSq() []float64 {
	out := make([]float64, len(m.norms))
	copy(out, m.norms)
	return out
}

// Germ returns the joint germ distribution of the model.
func (m *Model) Germ(src rand.Source) distribution.Germ {
	return distribution.NewGerm(m.Dim(), m.family, m.params, src)
}

// WithIndex returns a model of the same family over a different set.
func (m *Model) WithIndex(index multiindex.Set) (*Model, error) {
	return New(index, m.family, m.params)
}

// Sub returns the model made of the terms at the given positions, in the
// given order.
func (m *Model) Sub(idx []int) (*Model, error) {
	return m.WithIndex(m.index.Subset(idx))
}

// Grow returns the model over the grown multi-index set along with the
// growth record. The terms of m keep their positions in the grown model.
func (m *Model) Grow(p multiindex.Policy) (*Model, multiindex.Growth) {
	g := m.index.Grow(p)
	grown, err := m.WithIndex(g.Index)
	if err != nil {
		panic(err)
	}
	return grown, g
}

// Terms evaluates every basis function at the germ point x and stores the
// result in terms.
func (m *Model) Terms(terms, x []float64) {
	dim := m.Dim()
	if len(x) != dim {
		panic("pce: dimension mismatch")
	}
	if len(terms) != m.Len() {
		panic("pce: length mismatch")
	}
	vals := m.univariate(x)
	m.product(terms, vals)
}

func (m *Model) univariate(x []float64) [][]float64 {
	vals := make([][]float64, len(x))
	for d, v := range x {
		vals[d] = m.family.Eval(nil, v, m.maxDeg[d], m.params)
	}
	return vals
}

func (m *Model) product(terms []float64, vals [][]float64) {
	for k := range terms {
		v := 1.0
		for d := range vals {
			v *= vals[d][m.index.Degree(k, d)]
		}
		terms[k] = v
	}
}

// Design returns the basis matrix Ψ with Ψ[i][k] the k-th basis function at
// the i-th row of x.
func (m *Model) Design(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	if c != m.Dim() {
		panic("pce: dimension mismatch")
	}
	psi := mat.NewDense(r, m.Len(), nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, x)
		m.Terms(psi.RawRowView(i), row)
	}
	return psi
}

// Evaluate returns the expansion with the given coefficients at every row of
// x.
func (m *Model) Evaluate(x mat.Matrix, coeffs []float64) ([]float64, error) {
	if len(coeffs) != m.Len() {
		return nil, fmt.Errorf("coeffs has %d entries for %d terms: %w", len(coeffs), m.Len(), ErrLength)
	}
	if _, c := x.Dims(); c != m.Dim() {
		return nil, fmt.Errorf("x has %d columns for %d dimensions: %w", c, m.Dim(), ErrLength)
	}
	r, _ := x.Dims()
	out := make([]float64, r)
	if r == 0 {
		return out, nil
	}
	var f mat.VecDense
	f.MulVec(m.Design(x), mat.NewVecDense(len(coeffs), coeffs))
	for i := range out {
		out[i] = f.AtVec(i)
	}
	return out, nil
}

// Gradient returns the gradient of the expansion with respect to the germ at
// every row of x, one row per sample.
func (m *Model) Gradient(x mat.Matrix, coeffs []float64) (*mat.Dense, error) {
	if len(coeffs) != m.Len() {
		return nil, fmt.Errorf("coeffs has %d entries for %d terms: %w", len(coeffs), m.Len(), ErrLength)
	}
	r, c := x.Dims()
	if c != m.Dim() {
		return nil, fmt.Errorf("x has %d columns for %d dimensions: %w", c, m.Dim(), ErrLength)
	}
	grad := mat.NewDense(r, c, nil)
	row := make([]float64, c)
	derivs := make([][]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, x)
		vals := m.univariate(row)
		for d, v := range row {
			derivs[d] = m.family.Deriv(nil, v, m.maxDeg[d], m.params)
		}
		g := grad.RawRowView(i)
		for k, ck := range coeffs {
			if ck == 0 {
				continue
			}
			for j := 0; j < c; j++ {
				v := derivs[j][m.index.Degree(k, j)]
				if v == 0 {
					continue
				}
				for d := 0; d < c; d++ {
					if d != j {
						v *= vals[d][m.index.Degree(k, d)]
					}
				}
				g[j] += ck * v
			}
		}
	}
	return grad, nil
}

// Mean returns the expected value of the expansion under the germ, the
// coefficient of the constant term.
func (m *Model) Mean(coeffs []float64) float64 {
	m.checkCoeffs(coeffs)
	k := m.index.Index(make([]int, m.Dim()))
	if k < 0 {
		return 0
	}
	return coeffs[k]
}

// Variance returns the variance of the expansion under the germ.
func (m *Model) Variance(coeffs []float64) float64 {
	m.checkCoeffs(coeffs)
	var v float64
	for k, c := range coeffs {
		if m.constant(k) {
			continue
		}
		v += c * c * m.norms[k]
	}
	return v
}

// StdDev returns the standard deviation of the expansion under the germ.
func (m *Model) StdDev(coeffs []float64) float64 {
	return math.Sqrt(m.Variance(coeffs))
}

func (m *Model) constant(k int) bool {
	for d := 0; d < m.Dim(); d++ {
		if m.index.Degree(k, d) != 0 {
			return false
		}
	}
	return true
}

func (m *Model) checkCoeffs(coeffs []float64) {
	if len(coeffs) != m.Len() {
		panic("pce: coefficient length mismatch")
	}
}
