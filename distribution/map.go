package distribution

import (
	"gonum.org/v1/gonum/mat"
)

// Map transforms the value x of germ from into the value of germ to with the
// same probability, to.Quantile(from.CDF(x)). If the two germs are the same
// distribution x is returned unchanged.
func Map(x float64, from, to Germ1D) float64 {
	if from.Same(to) {
		return x
	}
	return to.Quantile(from.CDF(x))
}

// MapRows applies Map to every element of x and returns the result in a new
// matrix.
func MapRows(x mat.Matrix, from, to Germ1D) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, Map(x.At(i, j), from, to))
		}
	}
	return out
}
