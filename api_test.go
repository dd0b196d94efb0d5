package sparsepce

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/btracey/sparsepce/mcmc"
	"github.com/btracey/sparsepce/pce"
	"github.com/btracey/sparsepce/poly"
	"github.com/btracey/sparsepce/quadrature"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestProjectRoundTrip(t *testing.T) {
	model, err := pce.NewTotalOrder(2, 3, poly.Legendre, poly.Params{})
	require.NoError(t, err)

	coeffs, err := ProjectFunc(model, quadrature.Gauss{}, 4, quadratic)
	require.NoError(t, err)

	points, weights, err := quadrature.Gauss{}.Rule(quadrature.Spec{
		Family: poly.Legendre,
		Grid:   quadrature.Tensor,
		Dim:    2,
		Level:  4,
	})
	require.NoError(t, err)
	f := sampleFunc(points, quadratic)
	direct, err := Project(model, points, weights, f)
	require.NoError(t, err)
	require.True(t, floats.EqualApprox(coeffs, direct, 1e-14))

	pred, err := Evaluate(model, coeffs, points)
	require.NoError(t, err)
	for i, p := range pred {
		if !scalar.EqualWithinAbs(p, f.AtVec(i), 1e-12) {
			t.Errorf("point %d: got %v, want %v", i, p, f.AtVec(i))
		}
	}

	_, err = Project(model, points, weights, mat.NewDense(len(weights), 2, nil))
	require.ErrorIs(t, err, ErrMultiOutput)
	_, err = ProjectFunc(model, quadrature.Gauss{}, 0, quadratic)
	require.ErrorIs(t, err, quadrature.ErrBadSpec)
}

func TestRegress(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 7))
	model, err := pce.NewTotalOrder(2, 2, poly.Legendre, poly.Params{})
	require.NoError(t, err)

	x := uniformSamples(30, 2, rnd)
	res, err := Regress(model, x, sampleFunc(x, quadratic))
	require.NoError(t, err)
	require.False(t, res.Degenerate)
	require.Equal(t, model.Len(), res.Rank)
	want := make([]float64, model.Len())
	want[model.Index().Index([]int{0, 0})] = 2.0 / 3
	want[model.Index().Index([]int{1, 0})] = 2
	want[model.Index().Index([]int{0, 2})] = -2.0 / 3
	require.True(t, floats.EqualApprox(res.Beta, want, 1e-10), "coefficients %v", res.Beta)

	// Every sample at the same point gives a rank one design.
	same := mat.NewDense(5, 2, []float64{0.3, -0.2, 0.3, -0.2, 0.3, -0.2, 0.3, -0.2, 0.3, -0.2})
	res, err = Regress(model, same, sampleFunc(same, quadratic))
	require.NoError(t, err)
	require.True(t, res.Degenerate)
	require.Equal(t, 1, res.Rank)
	for _, v := range res.Beta {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	pred, err := Evaluate(model, res.Beta, same.Slice(0, 1, 0, 2))
	require.NoError(t, err)
	require.InDelta(t, quadratic([]float64{0.3, -0.2}), pred[0], 1e-12)

	_, err = Regress(model, x, mat.NewDense(30, 2, nil))
	require.ErrorIs(t, err, ErrMultiOutput)
}

func TestRegressWeighted(t *testing.T) {
	rnd := rand.New(rand.NewPCG(9, 9))
	model, err := pce.NewTotalOrder(2, 2, poly.Legendre, poly.Params{})
	require.NoError(t, err)

	x := uniformSamples(30, 2, rnd)
	y := sampleFunc(x, quadratic)
	y.SetVec(0, y.AtVec(0)+100)
	w := make([]float64, 30)
	for i := range w {
		w[i] = 1
	}
	w[0] = 0

	res, err := RegressWeighted(model, x, y, w)
	require.NoError(t, err)
	want := make([]float64, model.Len())
	want[model.Index().Index([]int{0, 0})] = 2.0 / 3
	want[model.Index().Index([]int{1, 0})] = 2
	want[model.Index().Index([]int{0, 2})] = -2.0 / 3
	require.True(t, floats.EqualApprox(res.Beta, want, 1e-10), "coefficients %v", res.Beta)

	// Equal weights are ordinary least squares, which the corrupted sample
	// pulls away from the truth.
	plain, err := Regress(model, x, y)
	require.NoError(t, err)
	w[0] = 1
	equal, err := RegressWeighted(model, x, y, w)
	require.NoError(t, err)
	require.True(t, floats.EqualApprox(plain.Beta, equal.Beta, 1e-10))
	require.False(t, floats.EqualApprox(plain.Beta, want, 1e-3))

	_, err = RegressWeighted(model, x, y, w[:29])
	require.ErrorIs(t, err, ErrLength)
	w[4] = math.NaN()
	_, err = RegressWeighted(model, x, y, w)
	require.ErrorIs(t, err, ErrSettings)
}

func TestSensitivityIndices(t *testing.T) {
	model, err := pce.NewTotalOrder(2, 2, poly.Legendre, poly.Params{})
	require.NoError(t, err)
	coeffs := make([]float64, model.Len())
	coeffs[model.Index().Index([]int{0, 0})] = 2.0 / 3
	coeffs[model.Index().Index([]int{1, 0})] = 2
	coeffs[model.Index().Index([]int{0, 2})] = -2.0 / 3

	sens, err := SensitivityIndices(model, coeffs)
	require.NoError(t, err)
	// Var = 4/3 from x0 and 4/45 from x1.
	require.InDelta(t, 60.0/64, sens.Main[0], 1e-12)
	require.InDelta(t, 4.0/64, sens.Main[1], 1e-12)
	require.InDelta(t, sens.Main[0], sens.Total[0], 1e-12)
	require.InDelta(t, sens.Main[1], sens.Total[1], 1e-12)
	require.InDelta(t, 0, sens.Joint.At(0, 1), 1e-12)

	_, err = SensitivityIndices(model, coeffs[:2])
	require.ErrorIs(t, err, ErrLength)
}

func TestLogPosterior(t *testing.T) {
	// f(x) = x on a one-dimensional Legendre germ.
	model, err := pce.NewTotalOrder(1, 1, poly.Legendre, poly.Params{})
	require.NoError(t, err)
	coeffs := make([]float64, 2)
	coeffs[model.Index().Index([]int{1})] = 1
	data := []float64{0.5, 0.5}
	sigma2 := 0.01

	ll, err := LogLikelihood(model, coeffs, data, sigma2)
	require.NoError(t, err)
	peak := -math.Log(2 * math.Pi * sigma2)
	require.InDelta(t, peak, ll([]float64{0.5}), 1e-12)
	require.InDelta(t, peak-2*0.5*0.5*0.5/sigma2, ll([]float64{0}), 1e-12)

	post, err := LogPosterior(model, coeffs, data, sigma2)
	require.NoError(t, err)
	require.True(t, math.IsInf(post([]float64{1.5}), -1))
	require.InDelta(t, peak+math.Log(0.5), post([]float64{0.5}), 1e-12)

	var sampler mcmc.Sampler = mcmc.AdaptiveMetropolis{
		BurnIn: 1000,
		Window: 250,
		Src:    rand.NewPCG(8, 8),
	}
	samples, err := sampler.Sample(post, []float64{0}, mat.NewSymDense(1, []float64{0.01}), 10000)
	require.NoError(t, err)
	mean, std := stat.MeanStdDev(mat.Col(nil, 0, samples), nil)
	require.InDelta(t, 0.5, mean, 0.03)
	require.InDelta(t, math.Sqrt(sigma2/2), std, 0.02)

	_, err = LogLikelihood(model, coeffs[:1], data, sigma2)
	require.True(t, errors.Is(err, ErrLength))
	_, err = LogLikelihood(model, coeffs, data, 0)
	require.True(t, errors.Is(err, ErrSettings))
}
