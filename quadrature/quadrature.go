// Package quadrature supplies quadrature rules for integrating against the germ
// distribution of a polynomial chaos expansion. Rules are requested through the
// Provider interface so that an external sparse-grid engine can stand in for
// the tensor Gauss rules implemented here.
package quadrature

import (
	"errors"
	"fmt"
	"math"

	"github.com/btracey/sparsepce/poly"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/combin"
)

var (
	ErrUnsupportedGrid = errors.New("quadrature: unsupported grid type")
	ErrBadSpec         = errors.New("quadrature: bad rule specification")
)

// Grid is the construction used to combine one-dimensional rules.
type Grid int

const (
	// Tensor is the full tensor product of one-dimensional rules.
	Tensor Grid = iota
	// Sparse is a Smolyak sparse grid.
	Sparse
)

func (g Grid) String() string {
	switch g {
	case Tensor:
		return "full"
	case Sparse:
		return "sparse"
	}
	return fmt.Sprintf("Grid(%d)", int(g))
}

// Spec describes a requested rule.
type Spec struct {
	Family poly.Family
	Params poly.Params
	Grid   Grid
	Dim    int
	// Level is the number of points per dimension of a tensor rule.
	Level int
}

// Provider produces quadrature rules. Points are stored one per row, and the
// weights integrate against the germ probability measure so they sum to one.
type Provider interface {
	Rule(spec Spec) (points *mat.Dense, weights []float64, err error)
}

// Gauss provides tensor products of Gauss rules for every germ family.
type Gauss struct{}

// Rule implements Provider. Sparse grids return ErrUnsupportedGrid.
func (Gauss) Rule(spec Spec) (*mat.Dense, []float64, error) {
	if spec.Grid != Tensor {
		return nil, nil, fmt.Errorf("%v: %w", spec.Grid, ErrUnsupportedGrid)
	}
	if spec.Dim < 1 || spec.Level < 1 {
		return nil, nil, fmt.Errorf("dimension %d, level %d: %w", spec.Dim, spec.Level, ErrBadSpec)
	}
	if err := spec.Family.Validate(spec.Params); err != nil {
		return nil, nil, err
	}
	x, w := Rule1D(spec.Family, spec.Params, spec.Level)

	lens := make([]int, spec.Dim)
	for i := range lens {
		lens[i] = spec.Level
	}
	prod := combin.Cartesian(lens)
	points := mat.NewDense(len(prod), spec.Dim, nil)
	weights := make([]float64, len(prod))
	for i, idx := range prod {
		row := points.RawRowView(i)
		weights[i] = 1
		for d, j := range idx {
			row[d] = x[j]
			weights[i] *= w[j]
		}
	}
	return points, weights, nil
}

// Rule1D returns the n-point Gauss rule of the family, exact for polynomials
// of degree up to 2n-1 under the germ probability measure.
func Rule1D(family poly.Family, params poly.Params, n int) (x, w []float64) {
	if n < 1 {
		panic("quadrature: non-positive number of points")
	}
	x = make([]float64, n)
	w = make([]float64, n)
	switch family {
	case poly.Legendre:
		quad.Legendre{}.FixedLocations(x, w, -1, 1)
		for i := range w {
			w[i] /= 2
		}
		return x, w
	case poly.Hermite:
		// gonum integrates against exp(-x²).
		quad.Hermite{}.FixedLocations(x, w, math.Inf(-1), math.Inf(1))
		for i := range x {
			x[i] *= math.Sqrt2
			w[i] /= math.SqrtPi
		}
		return x, w
	}
	golubWelsch(x, w, family, params)
	return x, w
}

// golubWelsch computes the nodes and weights from the eigendecomposition of the
// symmetric tridiagonal Jacobi matrix of the monic recurrence.
func golubWelsch(x, w []float64, family poly.Family, params poly.Params) {
	n := len(x)
	alpha, beta := family.Monic(n, params)
	jac := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		jac.SetSym(i, i, alpha[i])
		if i > 0 {
			jac.SetSym(i-1, i, math.Sqrt(beta[i]))
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(jac, true); !ok {
		panic("quadrature: eigendecomposition failed")
	}
	eig.Values(x)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	for i := range w {
		v := vecs.At(0, i)
		w[i] = beta[0] * v * v
	}
}
