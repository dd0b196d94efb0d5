// Package bcs implements Bayesian compressive sensing: sparse solutions of
// y ≈ Ψ c found by maximizing the marginal likelihood of a hierarchical model
// with a Laplace prior on the coefficients.
//
// The solver follows the fast marginal-likelihood scheme of Tipping and Faul
// with the Laplace hyperprior of Babacan, Molina and Katsaggelos. A working set
// of basis columns is kept, each with a prior precision α. At every iteration
// the single addition, deletion or re-estimation of α that most increases the
// marginal likelihood is committed. The iteration stops when the best
// available increase is smaller than Eta times the increase accumulated so
// far, or when no admissible update remains.
package bcs

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrShape    = errors.New("bcs: dimension mismatch")
	ErrSettings = errors.New("bcs: invalid settings")
)

const (
	DefaultSigma2        = 1e-8
	DefaultEta           = 1e-8
	DefaultMaxIterations = 1000
)

// WeightMode selects how the Laplace weights are chosen when
// Settings.Weights is empty.
type WeightMode int

const (
	// ColumnWeights seeds one weight per column from its signal-to-noise
	// ratio before the first iteration. The weights then stay fixed.
	ColumnWeights WeightMode = iota
	// ScalarWeight re-estimates a single weight shared by every column at
	// each iteration from the precisions of the working set.
	ScalarWeight
)

// Settings controls the solver. The zero value is valid.
type Settings struct {
	// Sigma2 is the initial noise variance. If 0, DefaultSigma2 is used.
	Sigma2 float64
	// Eta is the relative stopping threshold. Smaller values retain more
	// terms. If 0, DefaultEta is used.
	Eta float64
	// Weights are the Laplace regularization weights λ. If empty they are
	// chosen automatically as selected by Auto. A single value is used for
	// every column, otherwise there must be one value per column.
	Weights []float64
	// Auto selects the automatic weights. It is ignored if Weights is set.
	Auto WeightMode
	// MaxIterations bounds the number of committed updates. If 0,
	// DefaultMaxIterations is used.
	MaxIterations int
}

// Result is the sparse solution.
type Result struct {
	// Coeffs are the coefficients of the selected columns.
	Coeffs []float64
	// Used are the selected columns of the design matrix, in the order they
	// entered the working set.
	Used []int
	// ErrBars are the posterior standard deviations of Coeffs.
	ErrBars []float64
	// Alpha are the prior precisions of the selected columns.
	Alpha []float64
	// Sigma2 is the re-estimated noise variance.
	Sigma2 float64
	// Weights are the Laplace weights of every column of the design matrix
	// at the end of the solve. Columns that can never enter have an infinite
	// weight.
	Weights []float64

	Iterations int
	// Converged is false if the iteration budget ran out before the stopping
	// rule was met. The result is still usable.
	Converged bool
}

// Dense scatters the coefficients into a vector of length m with zeros in the
// unselected columns.
func (r *Result) Dense(m int) []float64 {
	out := make([]float64, m)
	for i, j := range r.Used {
		out[j] = r.Coeffs[i]
	}
	return out
}

type operation int

const (
	opNone operation = iota
	opAdd
	opDelete
	opReestimate
)

// solver holds the working state of one solve.
type solver struct {
	beta float64
	gram *mat.SymDense // Ψᵀ Ψ
	h    []float64     // Ψᵀ y

	active []int     // columns in the working set
	alpha  []float64 // their precisions
	pos    []int     // position of each column in active, or -1
	sig    *mat.SymDense
	mu     []float64
}

// Solve finds a sparse solution of psi c ≈ y. A nil settings uses the
// defaults.
func Solve(psi mat.Matrix, y []float64, settings *Settings) (*Result, error) {
	n, m := psi.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("y has length %d for %d rows: %w", len(y), n, ErrShape)
	}
	if settings == nil {
		settings = &Settings{}
	}
	sigma2 := settings.Sigma2
	if sigma2 == 0 {
		sigma2 = DefaultSigma2
	}
	eta := settings.Eta
	if eta == 0 {
		eta = DefaultEta
	}
	maxIt := settings.MaxIterations
	if maxIt == 0 {
		maxIt = DefaultMaxIterations
	}
	if sigma2 < 0 || eta < 0 || maxIt < 0 {
		return nil, fmt.Errorf("sigma2 %v, eta %v, max iterations %d: %w", sigma2, eta, maxIt, ErrSettings)
	}
	var lambda []float64
	autoLambda := false
	switch len(settings.Weights) {
	case 0:
		switch settings.Auto {
		case ColumnWeights:
		case ScalarWeight:
			autoLambda = true
		default:
			return nil, fmt.Errorf("unknown weight mode %d: %w", settings.Auto, ErrSettings)
		}
		lambda = make([]float64, m)
	case 1:
		lambda = make([]float64, m)
		for i := range lambda {
			lambda[i] = settings.Weights[0]
		}
	case m:
		lambda = make([]float64, m)
		copy(lambda, settings.Weights)
	default:
		return nil, fmt.Errorf("%d weights for %d columns: %w", len(settings.Weights), m, ErrShape)
	}
	for _, v := range lambda {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("negative weight %v: %w", v, ErrSettings)
		}
	}

	s := &solver{
		beta: 1 / sigma2,
		gram: mat.NewSymDense(m, nil),
		h:    make([]float64, m),
		pos:  make([]int, m),
	}
	s.gram.SymOuterK(1, psi.T())
	hv := mat.NewVecDense(m, s.h)
	hv.MulVec(psi.T(), mat.NewVecDense(n, y))
	for i := range s.pos {
		s.pos[i] = -1
	}
	if len(settings.Weights) == 0 && !autoLambda {
		s.columnWeights(lambda)
	}

	// Start from the column best aligned with the data.
	first := -1
	var maxRatio float64
	for j := 0; j < m; j++ {
		g := s.gram.At(j, j)
		if g == 0 || math.IsInf(lambda[j], 1) {
			continue
		}
		if r := s.h[j] * s.h[j] / g; r > maxRatio {
			maxRatio = r
			first = j
		}
	}
	res := &Result{Sigma2: sigma2, Weights: lambda, Converged: true}
	if first < 0 {
		return res, nil
	}
	den := maxRatio - sigma2
	if den <= 0 {
		den = maxRatio
	}
	s.active = []int{first}
	s.alpha = []float64{s.gram.At(first, first) / den}
	s.pos[first] = 0
	if !s.posterior() {
		return res, nil
	}

	deleted := make([]bool, m)
	bigS := make([]float64, m)
	bigQ := make([]float64, m)
	var total float64
	res.Converged = false
	for it := 1; it <= maxIt; it++ {
		res.Iterations = it
		if autoLambda {
			l := s.autoLambda()
			for i := range lambda {
				lambda[i] = l
			}
		}
		s.sparsityQuality(bigS, bigQ)

		var (
			best     float64
			bestCol  = -1
			bestOp   operation
			newAlpha float64
		)
		k := len(s.active)
		for j := 0; j < m; j++ {
			sj, qj := bigS[j], bigQ[j]
			p := s.pos[j]
			if p >= 0 {
				// Leave-one-out sparsity and quality of a column in the set.
				sigjj := s.sig.At(p, p)
				sj = 1/sigjj - s.alpha[p]
				qj = s.mu[p] / sigjj
			}
			theta := qj*qj - sj
			var (
				gain float64
				op   operation
				na   float64
			)
			switch {
			case p >= 0 && theta > lambda[j]:
				na = nextAlpha(sj, qj, lambda[j])
				gain = logML(na, sj, qj, lambda[j]) - logML(s.alpha[p], sj, qj, lambda[j])
				op = opReestimate
			case p >= 0 && k > 1:
				gain = -logML(s.alpha[p], sj, qj, lambda[j])
				op = opDelete
			case p < 0 && !deleted[j] && theta > lambda[j]:
				na = nextAlpha(sj, qj, lambda[j])
				gain = logML(na, sj, qj, lambda[j])
				op = opAdd
			}
			if op != opNone && gain > best && !math.IsInf(gain, 0) {
				best, bestCol, bestOp, newAlpha = gain, j, op, na
			}
		}
		if bestCol < 0 {
			res.Converged = true
			break
		}

		prevActive := append([]int(nil), s.active...)
		prevAlpha := append([]float64(nil), s.alpha...)
		switch bestOp {
		case opAdd:
			s.pos[bestCol] = len(s.active)
			s.active = append(s.active, bestCol)
			s.alpha = append(s.alpha, newAlpha)
		case opReestimate:
			s.alpha[s.pos[bestCol]] = newAlpha
		case opDelete:
			s.remove(bestCol)
			deleted[bestCol] = true
		}
		if !s.posterior() {
			// Numerically singular working set; keep the previous one.
			s.restore(prevActive, prevAlpha)
			res.Converged = true
			break
		}
		total += best
		if it > 1 && best < eta*total {
			res.Converged = true
			break
		}
	}

	k := len(s.active)
	res.Used = append([]int(nil), s.active...)
	res.Coeffs = append([]float64(nil), s.mu...)
	res.Alpha = append([]float64(nil), s.alpha...)
	res.ErrBars = make([]float64, k)
	dof := float64(n - k)
	for i := 0; i < k; i++ {
		v := s.sig.At(i, i)
		res.ErrBars[i] = math.Sqrt(v)
		dof += s.alpha[i] * v
	}
	res.Sigma2 = reestimateNoise(psi, y, res.Used, res.Coeffs, dof, sigma2)
	return res, nil
}

// columnWeights seeds the weight of every column from its sparsity and
// quality with the working set empty. The weight is 2α, where α maximizes the
// marginal likelihood of the column on its own, so weak columns are penalized
// more. A column whose quality does not exceed its sparsity gets an infinite
// weight.
func (s *solver) columnWeights(lambda []float64) {
	for j := range lambda {
		sj := s.beta * s.gram.At(j, j)
		qj := s.beta * s.h[j]
		theta := qj*qj - sj
		if sj == 0 || theta <= 0 {
			lambda[j] = math.Inf(1)
			continue
		}
		lambda[j] = 2 * sj * sj / theta
	}
}

// posterior recomputes the posterior covariance and mean of the working set.
// It returns false if the posterior precision is not positive definite.
func (s *solver) posterior() bool {
	k := len(s.active)
	prec := mat.NewSymDense(k, nil)
	for i, a := range s.active {
		for j := i; j < k; j++ {
			v := s.beta * s.gram.At(a, s.active[j])
			if i == j {
				v += s.alpha[i]
			}
			prec.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(prec); !ok {
		return false
	}
	sig := mat.NewSymDense(k, nil)
	if err := chol.InverseTo(sig); err != nil {
		return false
	}
	hA := make([]float64, k)
	for i, a := range s.active {
		hA[i] = s.h[a]
	}
	mu := mat.NewVecDense(k, nil)
	mu.MulVec(sig, mat.NewVecDense(k, hA))
	mu.ScaleVec(s.beta, mu)
	s.sig = sig
	s.mu = mu.RawVector().Data
	return true
}

// sparsityQuality computes for every column the sparsity S = β φᵀφ - β² φᵀΨ_A Σ Ψ_Aᵀφ
// and the quality Q = β φᵀy - β² φᵀΨ_A Σ Ψ_Aᵀy.
func (s *solver) sparsityQuality(bigS, bigQ []float64) {
	m := len(bigS)
	k := len(s.active)
	b := make([]float64, k)
	t := mat.NewVecDense(k, nil)
	for j := 0; j < m; j++ {
		for i, a := range s.active {
			b[i] = s.gram.At(j, a)
		}
		bv := mat.NewVecDense(k, b)
		t.MulVec(s.sig, bv)
		bigS[j] = s.beta*s.gram.At(j, j) - s.beta*s.beta*mat.Dot(bv, t)
		bigQ[j] = s.beta * (s.h[j] - floats.Dot(b, s.mu))
	}
}

// autoLambda is the Laplace weight maximizing the marginal likelihood given
// the current precisions, 2(k-1) / Σ 1/α.
func (s *solver) autoLambda() float64 {
	k := len(s.alpha)
	if k < 2 {
		return 0
	}
	var sum float64
	for _, a := range s.alpha {
		sum += 1 / a
	}
	return 2 * float64(k-1) / sum
}

func (s *solver) remove(col int) {
	p := s.pos[col]
	s.active = append(s.active[:p], s.active[p+1:]...)
	s.alpha = append(s.alpha[:p], s.alpha[p+1:]...)
	s.pos[col] = -1
	for i := p; i < len(s.active); i++ {
		s.pos[s.active[i]] = i
	}
}

func (s *solver) restore(active []int, alpha []float64) {
	for i := range s.pos {
		s.pos[i] = -1
	}
	s.active = active
	s.alpha = alpha
	for i, a := range active {
		s.pos[a] = i
	}
	if !s.posterior() {
		panic("bcs: previous working set lost positive definiteness")
	}
}

// logML is the contribution of one column with precision alpha to the log
// marginal likelihood, relative to the column being absent.
func logML(alpha, s, q, lambda float64) float64 {
	return 0.5*(math.Log(alpha/(alpha+s))+q*q/(alpha+s)) - lambda/(2*alpha)
}

// nextAlpha is the precision maximizing logML, the positive root of
// (λ + s - q²) α² + (2λs + s²) α + λs² = 0. It requires q² - s > λ.
func nextAlpha(s, q, lambda float64) float64 {
	a := lambda + s - q*q
	b := 2*lambda*s + s*s
	c := lambda * s * s
	if lambda == 0 {
		return s * s / (q*q - s)
	}
	return (-b - math.Sqrt(b*b-4*a*c)) / (2 * a)
}

// reestimateNoise returns ‖y - Ψ_A c‖² / dof, floored relative to the data
// scale so that a later solve keeps a finite noise precision.
func reestimateNoise(psi mat.Matrix, y []float64, used []int, coeffs []float64, dof, prev float64) float64 {
	if dof <= 0 {
		return prev
	}
	var rss, yy float64
	for i, v := range y {
		pred := 0.0
		for j, col := range used {
			pred += psi.At(i, col) * coeffs[j]
		}
		r := v - pred
		rss += r * r
		yy += v * v
	}
	floor := 0x1p-52 * yy / float64(len(y))
	if floor == 0 {
		floor = math.SmallestNonzeroFloat64
	}
	return math.Max(rss/dof, floor)
}
