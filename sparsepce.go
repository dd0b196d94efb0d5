// Package sparsepce builds sparse polynomial chaos surrogates from samples of
// a scalar function.
//
// BuildSurrogate runs the full pipeline. The samples are split into NTry
// training sets, and on each one NIter rounds are made of
//
//	fit sparse coefficients by Bayesian compressive sensing
//	prune the selected terms by magnitude and count
//	grow the multi-index set around the survivors and re-weight the prior
//
// The multi-index sets retained by every trial are intersected and the
// coefficients of the intersected basis are refit by least squares on all of
// the samples. When more than one stopping threshold η is given, the best one
// is first chosen by k-fold cross-validation (OptimizeEta).
//
// The samples are given in germ coordinates: x must already live on the
// support of the germ family of the initial model.
package sparsepce

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/btracey/sparsepce/bcs"
	"github.com/btracey/sparsepce/fold"
	"github.com/btracey/sparsepce/lsq"
	"github.com/btracey/sparsepce/multiindex"
	"github.com/btracey/sparsepce/pce"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrMultiOutput       = errors.New("sparsepce: observations must be a single column")
	ErrLength            = errors.New("sparsepce: length mismatch")
	ErrSettings          = errors.New("sparsepce: invalid settings")
	ErrEmptyIntersection = errors.New("sparsepce: no term is shared by every trial")
	ErrNoEta             = errors.New("sparsepce: no eta candidates")
)

const (
	defaultWeightEpsilon = 1e-3
	defaultEtaFolds      = 5
)

// EmptyPolicy sets what happens when the trials share no term.
type EmptyPolicy int

const (
	// FallbackConstant replaces an empty intersection by the constant term
	// alone and logs a warning.
	FallbackConstant EmptyPolicy = iota
	// FailEmpty returns ErrEmptyIntersection.
	FailEmpty
)

func (p EmptyPolicy) String() string {
	switch p {
	case FallbackConstant:
		return "FallbackConstant"
	case FailEmpty:
		return "FailEmpty"
	}
	return fmt.Sprintf("EmptyPolicy(%d)", int(p))
}

// Settings controls the surrogate construction.
type Settings struct {
	// Eta are the candidate BCS stopping thresholds. A single value is used
	// as is. With several, the one with the lowest cross-validated error is
	// selected by OptimizeEta.
	Eta []float64

	// NIter is the number of fit and growth rounds. If 0, one round is made
	// and the basis is never grown.
	NIter int
	// Growth is the multi-index growth rule between rounds.
	Growth multiindex.Policy

	// NTry is the number of independent training splits. Each trial trains
	// on n/NTry of the samples. If 0, one trial trains on all of them.
	NTry int

	// EtaFolds is the number of cross-validation folds used to select η.
	// If 0, defaults to 5.
	EtaFolds int
	// EtaGrowth runs all NIter rounds for every candidate η. If false each
	// candidate is scored from a single round on the initial basis.
	EtaGrowth bool

	// Weights are the initial Laplace regularization weights. Empty means
	// the solver chooses them as selected by AutoWeights. Otherwise the
	// length is one or the size of the initial basis.
	Weights []float64
	// AutoWeights selects the solver weights of the first round when
	// Weights is empty. The zero value seeds one weight per term.
	AutoWeights bcs.WeightMode
	// Sigma2 is the initial noise variance. If 0, bcs.DefaultSigma2 is used.
	Sigma2 float64
	// MaxIterations bounds every solver call. If 0, the solver default is
	// used.
	MaxIterations int

	// MaxTerms caps the number of terms kept after each round, largest
	// coefficients first. 0 means no cap.
	MaxTerms int
	// SampleWeights weight the squared error of every sample in the final
	// least-squares fit. Nil weights every sample equally.
	SampleWeights []float64

	// CoeffThreshold drops terms whose coefficient magnitude is not above it.
	CoeffThreshold float64
	// WeightEpsilon regularizes the re-weighting 1/(|c|+ε) between rounds.
	// If 0, defaults to 1e-3.
	WeightEpsilon float64

	EmptyIntersection EmptyPolicy

	// Solver finds the sparse coefficients. If nil, BCS is used.
	Solver Solver

	// Concurrent is the number of concurrent workers. If 0, defaults to
	// GOMAXPROCS.
	Concurrent int
	// Seed seeds the random splits. Runs with equal seeds are identical.
	Seed uint64

	// Logger receives progress messages. If nil, slog.Default is used.
	Logger *slog.Logger
}

// DefaultSettings returns the settings used when nil settings are passed.
func DefaultSettings() *Settings {
	return &Settings{
		Eta:           []float64{1e-3},
		NIter:         1,
		NTry:          1,
		EtaFolds:      defaultEtaFolds,
		Sigma2:        bcs.DefaultSigma2,
		WeightEpsilon: defaultWeightEpsilon,
		Seed:          13,
	}
}

// normalize returns a copy of s with the zero-value defaults filled in.
func normalize(s *Settings) (*Settings, error) {
	if s == nil {
		s = DefaultSettings()
	}
	c := *s
	if len(c.Eta) == 0 {
		return nil, ErrNoEta
	}
	for _, eta := range c.Eta {
		if !(eta > 0) {
			return nil, fmt.Errorf("eta %v: %w", eta, ErrSettings)
		}
	}
	if c.NIter < 0 || c.NTry < 0 || c.EtaFolds < 0 || c.MaxTerms < 0 || c.Concurrent < 0 {
		return nil, fmt.Errorf("negative count: %w", ErrSettings)
	}
	if c.Sigma2 < 0 || c.CoeffThreshold < 0 || c.WeightEpsilon < 0 {
		return nil, fmt.Errorf("negative tolerance: %w", ErrSettings)
	}
	if c.NIter == 0 {
		c.NIter = 1
	}
	if c.NTry == 0 {
		c.NTry = 1
	}
	if c.EtaFolds == 0 {
		c.EtaFolds = defaultEtaFolds
	}
	if c.Sigma2 == 0 {
		c.Sigma2 = bcs.DefaultSigma2
	}
	if c.WeightEpsilon == 0 {
		c.WeightEpsilon = defaultWeightEpsilon
	}
	if c.Solver == nil {
		c.Solver = BCS{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return &c, nil
}

// Trial records one training split of the pipeline.
type Trial struct {
	// Train and Validate are the sample rows of the split.
	Train, Validate []int
	// Generations[j] is the model fit in round j.
	Generations []*pce.Model
	// Model is the pruned model of the last round, and Coeffs the solver
	// coefficients of its terms. Model is nil if no term survived.
	Model  *pce.Model
	Coeffs []float64
	// Sigma2 is the noise variance re-estimated by the last round.
	Sigma2 float64
	// Converged is false if any solver call ran out of iterations.
	Converged bool
}

// Result is a fitted surrogate.
type Result struct {
	Model  *pce.Model
	Coeffs []float64
	// Sigma2 is the mean re-estimated noise variance over the trials.
	Sigma2 float64
	// Eta is the stopping threshold used, and EtaSearch the cross-validation
	// record if it was selected among several.
	Eta       float64
	EtaSearch *EtaSearch

	Trials []Trial

	// FullBasisSize is the size of the largest basis the rounds could have
	// reached, for comparison with the retained terms.
	FullBasisSize int
	// Rank is the numerical rank of the final least-squares fit, and
	// Degenerate is true if it is below the number of terms.
	Rank       int
	Degenerate bool
	// Fallback is true if the trials shared no term and the constant term
	// was used instead.
	Fallback bool
}

// BuildSurrogate fits a sparse expansion of y on the samples x starting from
// the initial basis. y must have a single column. A nil settings uses
// DefaultSettings.
func BuildSurrogate(initial *pce.Model, x, y mat.Matrix, settings *Settings) (*Result, error) {
	yv, err := checkData(initial, x, y)
	if err != nil {
		return nil, err
	}
	s, err := normalize(settings)
	if err != nil {
		return nil, err
	}
	if err := checkWeights(initial, s.Weights); err != nil {
		return nil, err
	}
	if err := checkSampleWeights(s.SampleWeights, len(yv)); err != nil {
		return nil, err
	}

	eta := s.Eta[0]
	var search *EtaSearch
	if len(s.Eta) > 1 {
		search, err = optimizeEta(initial, x, yv, s)
		if err != nil {
			return nil, err
		}
		eta = search.Best
	}

	r := &run{initial: initial, x: x, y: yv, settings: s}
	res, err := r.build(allRows(len(yv)), eta, s.NIter, s.NTry)
	if err != nil {
		return nil, err
	}
	res.EtaSearch = search
	s.Logger.Info("surrogate built",
		"terms", res.Model.Len(),
		"fullBasis", res.FullBasisSize,
		"eta", eta,
		"sigma2", res.Sigma2,
		"rank", res.Rank,
	)
	return res, nil
}

// run holds the data shared by every trial of a build.
type run struct {
	initial  *pce.Model
	x        mat.Matrix
	y        []float64
	settings *Settings
}

// build runs the pipeline on the given sample rows: ntry trials of niter
// rounds, the intersection of the trial bases and the final regression on
// all of rows.
func (r *run) build(rows []int, eta float64, niter, ntry int) (*Result, error) {
	s := r.settings
	n := len(rows)
	nTrain := n / ntry
	if nTrain < 1 {
		return nil, fmt.Errorf("%d samples for %d trials: %w", n, ntry, ErrSettings)
	}

	trials := make([]Trial, ntry)
	errs := make([]error, ntry)
	parallel(ntry, s.Concurrent, func(i int) {
		rnd := rand.New(rand.NewPCG(s.Seed, uint64(i)+1))
		split, err := fold.TrainValidation(n, nTrain, n-nTrain, rnd)
		if err != nil {
			errs[i] = err
			return
		}
		train := pick(rows, split.Train)
		trials[i], errs[i] = r.trial(train, eta, niter)
		trials[i].Train = train
		trials[i].Validate = pick(rows, split.Validate)
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	index, fallback, err := merge(trials, r.initial.Dim(), s.EmptyIntersection, s.Logger)
	if err != nil {
		return nil, err
	}
	model, err := r.initial.WithIndex(index)
	if err != nil {
		return nil, err
	}
	fit, err := lsq.Coeffs(r.x, r.y, s.SampleWeights, rows, model)
	if err != nil {
		return nil, err
	}

	sigma2 := make([]float64, len(trials))
	for i, t := range trials {
		sigma2[i] = t.Sigma2
	}
	return &Result{
		Model:         model,
		Coeffs:        fit.Beta,
		Sigma2:        stat.Mean(sigma2, nil),
		Eta:           eta,
		Trials:        trials,
		FullBasisSize: fullBasisSize(r.initial, s.Growth, niter),
		Rank:          fit.Rank,
		Degenerate:    fit.Degenerate,
		Fallback:      fallback,
	}, nil
}

// trial runs niter rounds of fitting, pruning and growth on the training
// rows. The noise variance is carried from round to round.
func (r *run) trial(train []int, eta float64, niter int) (Trial, error) {
	s := r.settings
	t := Trial{Sigma2: s.Sigma2, Converged: true}
	xt := rowsOf(r.x, train)
	yt := make([]float64, len(train))
	for i, v := range train {
		yt[i] = r.y[v]
	}

	model := r.initial
	weights := s.Weights
	for round := 0; round < niter; round++ {
		t.Generations = append(t.Generations, model)
		psi := model.Design(xt)
		res, err := s.Solver.Solve(psi, yt, &bcs.Settings{
			Sigma2:        t.Sigma2,
			Eta:           eta,
			Weights:       weights,
			Auto:          s.AutoWeights,
			MaxIterations: s.MaxIterations,
		})
		if err != nil {
			return t, fmt.Errorf("round %d: %w", round, err)
		}
		if res.Sigma2 > 0 {
			t.Sigma2 = res.Sigma2
		}
		t.Converged = t.Converged && res.Converged

		keep := prune(res.Coeffs, s.MaxTerms, s.CoeffThreshold)
		s.Logger.Debug("round complete",
			"round", round,
			"basis", model.Len(),
			"selected", len(res.Used),
			"kept", len(keep),
		)
		if len(keep) == 0 {
			return t, nil
		}
		cols := make([]int, len(keep))
		coeffs := make([]float64, len(keep))
		for i, k := range keep {
			cols[i] = res.Used[k]
			coeffs[i] = res.Coeffs[k]
		}
		sub, err := model.Sub(cols)
		if err != nil {
			return t, err
		}
		if round == niter-1 {
			t.Model = sub
			t.Coeffs = coeffs
			return t, nil
		}
		model, _ = sub.Grow(s.Growth)
		weights = reweight(coeffs, model.Len(), s.WeightEpsilon)
	}
	return t, nil
}

// reweight returns the Laplace weights for the next round. The first
// len(coeffs) terms are the survivors of the last round; the remaining terms
// were added by growth.
func reweight(coeffs []float64, m int, eps float64) []float64 {
	w := make([]float64, m)
	for i := range w {
		if i < len(coeffs) {
			w[i] = 1 / (math.Abs(coeffs[i]) + eps)
			continue
		}
		w[i] = 1 / eps
	}
	return w
}

// fullBasisSize is the size of the total-order basis whose order is the
// largest single-dimension degree of the initial basis raised by one for
// every round of growth.
func fullBasisSize(initial *pce.Model, p multiindex.Policy, niter int) int {
	if p == multiindex.None || niter == 1 {
		return initial.Len()
	}
	return multiindex.TotalOrderSize(initial.Dim(), initial.Index().MaxDegree()+niter-1)
}

// checkData validates the sample shapes and returns y as a slice.
func checkData(initial *pce.Model, x, y mat.Matrix) ([]float64, error) {
	if initial == nil {
		return nil, errors.New("sparsepce: nil initial model")
	}
	n, dim := x.Dims()
	ny, c := y.Dims()
	if c != 1 {
		return nil, fmt.Errorf("y has %d columns: %w", c, ErrMultiOutput)
	}
	if ny != n {
		return nil, fmt.Errorf("y has %d rows for %d samples in x: %w", ny, n, ErrLength)
	}
	if dim != initial.Dim() {
		return nil, fmt.Errorf("x has %d columns for a %d-dimensional basis: %w", dim, initial.Dim(), ErrLength)
	}
	if n == 0 {
		return nil, fmt.Errorf("x has no samples: %w", ErrLength)
	}
	return mat.Col(nil, 0, y), nil
}

func checkWeights(initial *pce.Model, w []float64) error {
	switch len(w) {
	case 0, 1, initial.Len():
	default:
		return fmt.Errorf("%d weights for %d terms: %w", len(w), initial.Len(), ErrLength)
	}
	for _, v := range w {
		if v < 0 {
			return fmt.Errorf("weight %v: %w", v, ErrSettings)
		}
	}
	return nil
}

// checkSampleWeights requires nil or one non-negative finite weight per
// sample.
func checkSampleWeights(w []float64, n int) error {
	if w == nil {
		return nil
	}
	if len(w) != n {
		return fmt.Errorf("%d sample weights for %d samples: %w", len(w), n, ErrLength)
	}
	for _, v := range w {
		if !(v >= 0) || math.IsInf(v, 1) {
			return fmt.Errorf("sample weight %v: %w", v, ErrSettings)
		}
	}
	return nil
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// pick maps positions into rows to the rows themselves.
func pick(rows, pos []int) []int {
	out := make([]int, len(pos))
	for i, p := range pos {
		out[i] = rows[p]
	}
	return out
}

// rowsOf copies the given rows of x. rows must not be empty.
func rowsOf(x mat.Matrix, rows []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, v := range rows {
		mat.Row(out.RawRowView(i), v, x)
	}
	return out
}
