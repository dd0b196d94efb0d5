package mcmc

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
)

func TestAdaptiveMetropolisGaussian(t *testing.T) {
	mu := []float64{1, -1}
	std := []float64{0.1, 0.8}
	sigma := mat.NewSymDense(2, []float64{std[0] * std[0], 0, 0, std[1] * std[1]})
	target, ok := distmv.NewNormal(mu, sigma, nil)
	require.True(t, ok)

	sampler := AdaptiveMetropolis{
		BurnIn: 2000,
		Window: 500,
		Src:    rand.NewPCG(1, 2),
	}
	start := []float64{0.5, 0}
	cov := mat.NewSymDense(2, []float64{0.01, 0, 0, 0.01})
	samples, err := sampler.Sample(target.LogProb, start, cov, 20000)
	require.NoError(t, err)

	r, c := samples.Dims()
	require.Equal(t, 20000, r)
	require.Equal(t, 2, c)
	col := make([]float64, r)
	for i := range mu {
		mat.Col(col, i, samples)
		mean, sd := stat.MeanStdDev(col, nil)
		if !scalar.EqualWithinAbs(mean, mu[i], 0.1) {
			t.Errorf("dimension %d: mean %v, want %v", i, mean, mu[i])
		}
		if !scalar.EqualWithinRel(sd, std[i], 0.15) {
			t.Errorf("dimension %d: standard deviation %v, want %v", i, sd, std[i])
		}
	}
}

func TestAdaptiveMetropolisDeterministic(t *testing.T) {
	logPost := LogPosterior(func(x []float64) float64 {
		return -0.5 * (x[0]*x[0] + x[1]*x[1])
	})
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	a, err := AdaptiveMetropolis{Window: 100, Src: rand.NewPCG(3, 4)}.Sample(logPost, []float64{0, 0}, cov, 300)
	require.NoError(t, err)
	b, err := AdaptiveMetropolis{Window: 100, Src: rand.NewPCG(3, 4)}.Sample(logPost, []float64{0, 0}, cov, 300)
	require.NoError(t, err)
	require.True(t, mat.Equal(a, b), "equal seeds gave different chains")
}

func TestAdaptiveMetropolisErrors(t *testing.T) {
	logPost := LogPosterior(func(x []float64) float64 { return 0 })
	for _, test := range []struct {
		name  string
		start []float64
		cov   *mat.SymDense
		n     int
		err   error
	}{
		{"Dim", []float64{0}, mat.NewSymDense(2, []float64{1, 0, 0, 1}), 10, ErrDim},
		{"NoSamples", []float64{0, 0}, mat.NewSymDense(2, []float64{1, 0, 0, 1}), 0, ErrDim},
		{"Indefinite", []float64{0, 0}, mat.NewSymDense(2, []float64{1, 2, 2, 1}), 10, ErrCovariance},
	} {
		_, err := AdaptiveMetropolis{}.Sample(logPost, test.start, test.cov, test.n)
		if !errors.Is(err, test.err) {
			t.Errorf("Case %s: got %v, want %v", test.name, err, test.err)
		}
	}
}
