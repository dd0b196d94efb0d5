// Package mcmc draws samples from posterior densities known up to a
// normalizing constant, for calibrating model parameters against data.
package mcmc

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/samplemv"
)

var (
	ErrDim        = errors.New("mcmc: dimension mismatch")
	ErrCovariance = errors.New("mcmc: proposal covariance is not positive definite")
)

// LogPosterior returns the log of an unnormalized posterior density at x.
type LogPosterior func(x []float64) float64

// LogProb implements distmv.LogProber.
func (f LogPosterior) LogProb(x []float64) float64 {
	return f(x)
}

// Sampler draws n samples from a posterior, one per row of the result. The
// chain starts at start and cov is the initial proposal covariance.
type Sampler interface {
	Sample(logPost LogPosterior, start []float64, cov mat.Symmetric, n int) (*mat.Dense, error)
}

const (
	defaultWindow = 500
	defaultJitter = 1e-10
)

// AdaptiveMetropolis is the adaptive Metropolis sampler of Haario, Saksman
// and Tamminen. The chain moves by Metropolis-Hastings with a Gaussian
// proposal, and after every Window steps the proposal covariance is reset to
// Scale times the sample covariance of the whole chain so far, plus Jitter on
// the diagonal.
type AdaptiveMetropolis struct {
	// BurnIn is the number of initial steps that are not returned. They
	// still take part in the adaptation.
	BurnIn int
	// Window is the number of steps between adaptations. If 0, defaults
	// to 500.
	Window int
	// Scale multiplies the adapted covariance. If 0, defaults to 2.4²/dim.
	Scale float64
	// Jitter is added to the diagonal of the adapted covariance. If 0,
	// defaults to 1e-10.
	Jitter float64
	// Src is the source of randomness. If nil the global source is used.
	Src rand.Source
}

// Sample implements Sampler.
func (a AdaptiveMetropolis) Sample(logPost LogPosterior, start []float64, cov mat.Symmetric, n int) (*mat.Dense, error) {
	dim := len(start)
	if dim == 0 || cov.SymmetricDim() != dim {
		return nil, fmt.Errorf("start has length %d, covariance is %d×%d: %w", dim, cov.SymmetricDim(), cov.SymmetricDim(), ErrDim)
	}
	if n < 1 {
		return nil, fmt.Errorf("%d samples requested: %w", n, ErrDim)
	}
	window := a.Window
	if window == 0 {
		window = defaultWindow
	}
	scale := a.Scale
	if scale == 0 {
		scale = 2.4 * 2.4 / float64(dim)
	}
	jitter := a.Jitter
	if jitter == 0 {
		jitter = defaultJitter
	}

	sigma := mat.NewSymDense(dim, nil)
	sigma.CopySym(cov)
	proposal, ok := samplemv.NewProposalNormal(sigma, a.Src)
	if !ok {
		return nil, ErrCovariance
	}

	total := a.BurnIn + n
	chain := mat.NewDense(total, dim, nil)
	current := make([]float64, dim)
	copy(current, start)
	for done := 0; done < total; {
		size := min(window, total-done)
		batch := chain.Slice(done, done+size, 0, dim).(*mat.Dense)
		samplemv.MetropolisHastingser{
			Initial:  current,
			Target:   logPost,
			Proposal: proposal,
			Src:      a.Src,
		}.Sample(batch)
		done += size
		mat.Row(current, done-1, chain)

		if done == total || done <= dim {
			continue
		}
		if p, ok := adapt(chain.Slice(0, done, 0, dim), scale, jitter, a.Src); ok {
			proposal = p
		}
	}
	return mat.DenseCopyOf(chain.Slice(a.BurnIn, total, 0, dim)), nil
}

// adapt returns the normal proposal with the scaled sample covariance of the
// chain. ok is false if that covariance is not positive definite, as happens
// while the chain has not moved in some direction.
func adapt(chain mat.Matrix, scale, jitter float64, src rand.Source) (*samplemv.ProposalNormal, bool) {
	var c mat.SymDense
	stat.CovarianceMatrix(&c, chain, nil)
	c.ScaleSym(scale, &c)
	for i := 0; i < c.SymmetricDim(); i++ {
		c.SetSym(i, i, c.At(i, i)+jitter)
	}
	return samplemv.NewProposalNormal(&c, src)
}
