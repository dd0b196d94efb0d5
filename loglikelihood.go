package sparsepce

import (
	"fmt"
	"math"

	"github.com/btracey/sparsepce/mcmc"
	"github.com/btracey/sparsepce/pce"
	"gonum.org/v1/gonum/stat/distuv"
)

// LogLikelihood returns the Gaussian log-likelihood of the observations data
// as a function of the germ point x, with the surrogate as the forward model:
// each observation is the surrogate value at x plus independent noise of
// variance sigma2.
func LogLikelihood(model *pce.Model, coeffs, data []float64, sigma2 float64) (mcmc.LogPosterior, error) {
	if len(coeffs) != model.Len() {
		return nil, fmt.Errorf("coeffs has %d entries for %d terms: %w", len(coeffs), model.Len(), ErrLength)
	}
	if !(sigma2 > 0) {
		return nil, fmt.Errorf("noise variance %v: %w", sigma2, ErrSettings)
	}
	c := append([]float64(nil), coeffs...)
	obs := append([]float64(nil), data...)
	sigma := math.Sqrt(sigma2)
	return func(x []float64) float64 {
		terms := make([]float64, model.Len())
		model.Terms(terms, x)
		var f float64
		for k, t := range terms {
			f += c[k] * t
		}
		noise := distuv.Normal{Mu: f, Sigma: sigma}
		var ll float64
		for _, d := range obs {
			ll += noise.LogProb(d)
		}
		return ll
	}, nil
}

// LogPosterior adds the log density of the germ, the prior on x, to the
// log-likelihood of the data.
func LogPosterior(model *pce.Model, coeffs, data []float64, sigma2 float64) (mcmc.LogPosterior, error) {
	ll, err := LogLikelihood(model, coeffs, data, sigma2)
	if err != nil {
		return nil, err
	}
	prior := model.Germ(nil)
	return func(x []float64) float64 {
		lp := prior.LogProb(x)
		if math.IsInf(lp, -1) {
			return lp
		}
		return lp + ll(x)
	}, nil
}
