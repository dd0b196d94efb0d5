// Package distribution provides the probability distributions of the germs
// underlying a polynomial chaos expansion, and the map between germs of
// different families.
package distribution

import (
	"math"
	"math/rand/v2"

	"github.com/btracey/sparsepce/poly"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// univariate is the part of the distuv interface used by the germs.
type univariate interface {
	CDF(x float64) float64
	Quantile(p float64) float64
	LogProb(x float64) float64
	Rand() float64
}

// Germ1D is the distribution of a single germ variable of the given family.
type Germ1D struct {
	Family poly.Family
	Params poly.Params
	Src    rand.Source
}

func (g Germ1D) dist() univariate {
	switch g.Family {
	case poly.Legendre:
		return distuv.Uniform{Min: -1, Max: 1, Src: g.Src}
	case poly.Hermite:
		return distuv.Normal{Mu: 0, Sigma: 1, Src: g.Src}
	case poly.Laguerre:
		return distuv.Gamma{Alpha: g.Params.Alpha + 1, Beta: 1, Src: g.Src}
	case poly.Jacobi:
		return shiftedBeta{distuv.Beta{Alpha: g.Params.Beta + 1, Beta: g.Params.Alpha + 1, Src: g.Src}}
	}
	panic("distribution: unknown family")
}

// CDF returns the cumulative distribution function at x.
func (g Germ1D) CDF(x float64) float64 {
	return g.dist().CDF(x)
}

// Quantile returns the inverse of the CDF at p.
func (g Germ1D) Quantile(p float64) float64 {
	return g.dist().Quantile(p)
}

// LogProb returns the log of the density at x.
func (g Germ1D) LogProb(x float64) float64 {
	return g.dist().LogProb(x)
}

// Rand returns a random sample of the germ.
func (g Germ1D) Rand() float64 {
	return g.dist().Rand()
}

// Same returns whether the two germs have the same distribution.
func (g Germ1D) Same(h Germ1D) bool {
	if g.Family != h.Family {
		return false
	}
	switch g.Family {
	case poly.Laguerre:
		return g.Params.Alpha == h.Params.Alpha
	case poly.Jacobi:
		return g.Params == h.Params
	}
	return true
}

// shiftedBeta is a beta distribution stretched from [0, 1] onto [-1, 1].
type shiftedBeta struct {
	b distuv.Beta
}

func (s shiftedBeta) CDF(x float64) float64 {
	return s.b.CDF((x + 1) / 2)
}

func (s shiftedBeta) Quantile(p float64) float64 {
	return 2*s.b.Quantile(p) - 1
}

func (s shiftedBeta) LogProb(x float64) float64 {
	return s.b.LogProb((x+1)/2) - math.Ln2
}

func (s shiftedBeta) Rand() float64 {
	return 2*s.b.Rand() - 1
}

// Germ is the joint distribution of Dim independent germs of the same family.
type Germ struct {
	Germ1D
	Dim int
}

// NewGerm returns the product germ of dimension dim.
func NewGerm(dim int, family poly.Family, params poly.Params, src rand.Source) Germ {
	return Germ{
		Germ1D: Germ1D{Family: family, Params: params, Src: src},
		Dim:    dim,
	}
}

// Rand stores a random sample into x and returns it. If x is nil a new slice
// is allocated.
func (g Germ) Rand(x []float64) []float64 {
	if x == nil {
		x = make([]float64, g.Dim)
	}
	if len(x) != g.Dim {
		panic("distribution: length mismatch")
	}
	d := g.dist()
	for i := range x {
		x[i] = d.Rand()
	}
	return x
}

// LogProb returns the log of the joint density at x.
func (g Germ) LogProb(x []float64) float64 {
	if len(x) != g.Dim {
		panic("distribution: length mismatch")
	}
	d := g.dist()
	var logprob float64
	for _, v := range x {
		logprob += d.LogProb(v)
	}
	return logprob
}

// Prob returns the joint density at x.
func (g Germ) Prob(x []float64) float64 {
	return math.Exp(g.LogProb(x))
}

// Sample fills every row of data with an independent sample.
func (g Germ) Sample(data *mat.Dense) {
	nSamples, dim := data.Dims()
	if dim != g.Dim {
		panic("distribution: dimension mismatch")
	}
	for i := 0; i < nSamples; i++ {
		g.Rand(data.RawRowView(i))
	}
}

// Quantile stores the per-dimension quantiles of p into x and returns it.
func (g Germ) Quantile(x, p []float64) []float64 {
	if x == nil {
		x = make([]float64, len(p))
	}
	if len(x) != len(p) {
		panic("distribution: length mismatch")
	}
	d := g.dist()
	for i, v := range p {
		x[i] = d.Quantile(v)
	}
	return x
}
