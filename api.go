package sparsepce

import (
	"fmt"

	"github.com/btracey/sparsepce/lsq"
	"github.com/btracey/sparsepce/pce"
	"github.com/btracey/sparsepce/quadrature"
	"gonum.org/v1/gonum/mat"
)

// Evaluate returns the surrogate with the given coefficients at every row of
// x.
func Evaluate(model *pce.Model, coeffs []float64, x mat.Matrix) ([]float64, error) {
	return model.Evaluate(x, coeffs)
}

// Project computes coefficients by Galerkin projection of the function values
// f, one per quadrature point. f must have a single column.
func Project(model *pce.Model, points mat.Matrix, weights []float64, f mat.Matrix) ([]float64, error) {
	nf, c := f.Dims()
	if c != 1 {
		return nil, fmt.Errorf("f has %d columns: %w", c, ErrMultiOutput)
	}
	if np, _ := points.Dims(); np != nf {
		return nil, fmt.Errorf("f has %d rows for %d points: %w", nf, np, ErrLength)
	}
	return model.Project(points, weights, mat.Col(nil, 0, f))
}

// ProjectFunc projects fn onto the basis using the tensor rule of the
// provider with level points per dimension.
func ProjectFunc(model *pce.Model, provider quadrature.Provider, level int, fn func(x []float64) float64) ([]float64, error) {
	points, weights, err := provider.Rule(quadrature.Spec{
		Family: model.Family(),
		Params: model.Params(),
		Grid:   quadrature.Tensor,
		Dim:    model.Dim(),
		Level:  level,
	})
	if err != nil {
		return nil, err
	}
	f := make([]float64, len(weights))
	for i := range f {
		f[i] = fn(points.RawRowView(i))
	}
	return model.Project(points, weights, f)
}

// Regress fits the coefficients of the model to the samples by least
// squares. A rank-deficient design is not an error; the minimum-norm
// coefficients are returned and the result is marked Degenerate.
func Regress(model *pce.Model, x, y mat.Matrix) (lsq.Result, error) {
	return RegressWeighted(model, x, y, nil)
}

// RegressWeighted is Regress minimizing the weighted squared error, with one
// non-negative weight per sample. Nil weights are equal.
func RegressWeighted(model *pce.Model, x, y mat.Matrix, weights []float64) (lsq.Result, error) {
	yv, err := checkData(model, x, y)
	if err != nil {
		return lsq.Result{}, err
	}
	if err := checkSampleWeights(weights, len(yv)); err != nil {
		return lsq.Result{}, err
	}
	return lsq.Coeffs(x, yv, weights, allRows(len(yv)), model)
}

// SensitivityIndices returns the main, total and joint Sobol indices of the
// surrogate.
func SensitivityIndices(model *pce.Model, coeffs []float64) (pce.Sensitivity, error) {
	if len(coeffs) != model.Len() {
		return pce.Sensitivity{}, fmt.Errorf("coeffs has %d entries for %d terms: %w", len(coeffs), model.Len(), ErrLength)
	}
	return model.Sensitivity(coeffs), nil
}
