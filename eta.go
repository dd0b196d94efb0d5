package sparsepce

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/btracey/sparsepce/fold"
	"github.com/btracey/sparsepce/pce"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// EtaScore is the cross-validated error of one stopping threshold.
type EtaScore struct {
	Eta float64
	// ValidationRMSE is the mean over the folds of the root-mean-square
	// error on the held-out samples, and ValidationStd its spread.
	ValidationRMSE float64
	ValidationStd  float64
	// TrainingRMSE is the same on the training samples. It is reported for
	// diagnosis only and plays no part in the selection.
	TrainingRMSE float64
	TrainingStd  float64
}

// EtaSearch is the outcome of OptimizeEta.
type EtaSearch struct {
	// Best is the η with the lowest mean validation error. Ties go to the
	// earlier candidate.
	Best   float64
	Scores []EtaScore
}

// OptimizeEta scores every candidate η by k-fold cross-validation of the
// surrogate pipeline and returns the one with the lowest mean validation
// RMSE. Every (fold, η) pair is an independent job run on the worker pool.
// The Eta field of settings is ignored.
func OptimizeEta(initial *pce.Model, x, y mat.Matrix, etas []float64, settings *Settings) (*EtaSearch, error) {
	if len(etas) == 0 {
		return nil, ErrNoEta
	}
	yv, err := checkData(initial, x, y)
	if err != nil {
		return nil, err
	}
	var s Settings
	if settings != nil {
		s = *settings
	} else {
		s = *DefaultSettings()
	}
	s.Eta = etas
	ns, err := normalize(&s)
	if err != nil {
		return nil, err
	}
	if err := checkWeights(initial, ns.Weights); err != nil {
		return nil, err
	}
	if err := checkSampleWeights(ns.SampleWeights, len(yv)); err != nil {
		return nil, err
	}
	return optimizeEta(initial, x, yv, ns)
}

func optimizeEta(initial *pce.Model, x mat.Matrix, y []float64, s *Settings) (*EtaSearch, error) {
	etas := s.Eta
	folds := fold.KFold(len(y), s.EtaFolds, rand.New(rand.NewPCG(s.Seed, 0)))
	niter := s.NIter
	if !s.EtaGrowth {
		niter = 1
	}

	nFolds := len(folds)
	valid := make([][]float64, len(etas))
	train := make([][]float64, len(etas))
	for i := range etas {
		valid[i] = make([]float64, nFolds)
		train[i] = make([]float64, nFolds)
	}
	errs := make([]error, len(etas)*nFolds)

	r := &run{initial: initial, x: x, y: y, settings: s}
	parallel(len(etas)*nFolds, s.Concurrent, func(job int) {
		e, f := job/nFolds, job%nFolds
		res, err := r.build(folds[f].Train, etas[e], niter, 1)
		if err != nil {
			errs[job] = err
			return
		}
		train[e][f], err = r.rmse(res, folds[f].Train)
		if err != nil {
			errs[job] = err
			return
		}
		valid[e][f], errs[job] = r.rmse(res, folds[f].Validate)
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	search := &EtaSearch{Scores: make([]EtaScore, len(etas))}
	best := math.Inf(1)
	for i, eta := range etas {
		sc := EtaScore{Eta: eta}
		sc.ValidationRMSE, sc.ValidationStd = stat.PopMeanStdDev(valid[i], nil)
		sc.TrainingRMSE, sc.TrainingStd = stat.PopMeanStdDev(train[i], nil)
		search.Scores[i] = sc
		s.Logger.Debug("eta scored",
			"eta", eta,
			"validation", sc.ValidationRMSE,
			"training", sc.TrainingRMSE,
		)
		if sc.ValidationRMSE < best {
			best = sc.ValidationRMSE
			search.Best = eta
		}
	}
	if math.IsInf(best, 1) || math.IsNaN(best) {
		search.Best = etas[0]
	}
	s.Logger.Info("eta selected", "eta", search.Best, "folds", nFolds)
	return search, nil
}

// rmse is the root-mean-square error of the surrogate on the given rows.
func (r *run) rmse(res *Result, rows []int) (float64, error) {
	pred, err := res.Model.Evaluate(rowsOf(r.x, rows), res.Coeffs)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i, v := range rows {
		d := pred[i] - r.y[v]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(rows))), nil
}
