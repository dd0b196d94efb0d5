// Package poly evaluates the univariate orthogonal polynomial families that
// make up the basis of a polynomial chaos expansion. Each family is orthogonal
// with respect to the probability density of its germ:
//
//	Legendre  uniform on [-1, 1]
//	Hermite   standard normal (probabilists' Hermite polynomials)
//	Laguerre  gamma with density ∝ x^α e^{-x} on [0, ∞)
//	Jacobi    beta on [-1, 1] with density ∝ (1-x)^α (1+x)^β
//
// All families are generated from the three-term recurrence
//
//	p_{n+1}(x) = (a_n x + b_n) p_n(x) - c_n p_{n-1}(x),  p_0 = 1, p_{-1} = 0.
//
// Polynomials are not normalized; NormSq returns E[p_n²] under the germ.
package poly

import (
	"fmt"
	"math"
)

// Family is a germ type: a probability distribution together with the
// polynomials orthogonal under it.
type Family int

const (
	Legendre Family = iota
	Hermite
	Laguerre
	Jacobi
)

// Families lists all supported families.
var Families = []Family{Legendre, Hermite, Laguerre, Jacobi}

func (f Family) String() string {
	switch f {
	case Legendre:
		return "LU"
	case Hermite:
		return "HG"
	case Laguerre:
		return "LG"
	case Jacobi:
		return "JB"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily returns the family with the given two-letter germ code, for
// example "LU" or "HG".
func ParseFamily(s string) (Family, error) {
	for _, f := range Families {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("poly: unknown family %q", s)
}

// Params are the shape parameters of the Laguerre and Jacobi families. They
// are ignored by Legendre and Hermite.
type Params struct {
	Alpha float64
	Beta  float64
}

// Validate checks that the parameters are admissible for the family.
func (f Family) Validate(p Params) error {
	switch f {
	case Legendre, Hermite:
		return nil
	case Laguerre:
		if p.Alpha <= -1 {
			return fmt.Errorf("poly: Laguerre alpha %v must exceed -1", p.Alpha)
		}
		return nil
	case Jacobi:
		if p.Alpha <= -1 || p.Beta <= -1 {
			return fmt.Errorf("poly: Jacobi alpha %v and beta %v must exceed -1", p.Alpha, p.Beta)
		}
		return nil
	}
	return fmt.Errorf("poly: unknown family %d", int(f))
}

// Recurrence returns the coefficients a_n, b_n, c_n that produce p_{n+1}.
func (f Family) Recurrence(n int, p Params) (a, b, c float64) {
	fn := float64(n)
	switch f {
	default:
		panic("poly: unknown family")
	case Legendre:
		return (2*fn + 1) / (fn + 1), 0, fn / (fn + 1)
	case Hermite:
		return 1, 0, fn
	case Laguerre:
		al := p.Alpha
		return -1 / (fn + 1), (2*fn + 1 + al) / (fn + 1), (fn + al) / (fn + 1)
	case Jacobi:
		al, be := p.Alpha, p.Beta
		if n == 0 {
			return (al + be + 2) / 2, (al - be) / 2, 0
		}
		s := 2*fn + al + be
		den := 2 * (fn + 1) * (fn + al + be + 1) * s
		a = (s + 1) * (s + 2) * s / den
		b = (s + 1) * (al*al - be*be) / den
		c = 2 * (fn + al) * (fn + be) * (s + 2) / den
		return a, b, c
	}
}

// Eval stores p_0(x), ..., p_order(x) into dst and returns it. If dst is nil
// a new slice is allocated, otherwise it must have length order+1.
func (f Family) Eval(dst []float64, x float64, order int, p Params) []float64 {
	dst = resize(dst, order)
	dst[0] = 1
	if order == 0 {
		return dst
	}
	prev := 0.0
	for n := 0; n < order; n++ {
		a, b, c := f.Recurrence(n, p)
		dst[n+1] = (a*x+b)*dst[n] - c*prev
		prev = dst[n]
	}
	return dst
}

// Deriv stores p_0'(x), ..., p_order'(x) into dst and returns it. The
// derivatives follow from differentiating the recurrence,
//
//	p'_{n+1} = a_n p_n + (a_n x + b_n) p'_n - c_n p'_{n-1}.
func (f Family) Deriv(dst []float64, x float64, order int, p Params) []float64 {
	dst = resize(dst, order)
	dst[0] = 0
	if order == 0 {
		return dst
	}
	vals := f.Eval(nil, x, order, p)
	prev := 0.0
	for n := 0; n < order; n++ {
		a, b, c := f.Recurrence(n, p)
		dst[n+1] = a*vals[n] + (a*x+b)*dst[n] - c*prev
		prev = dst[n]
	}
	return dst
}

// Monic returns the recurrence coefficients of the monic polynomials
// q_{k+1} = (x - alpha_k) q_k - beta_k q_{k-1} for k = 0, ..., n-1. beta[0]
// is the total mass of the germ, which is one.
func (f Family) Monic(n int, p Params) (alpha, beta []float64) {
	alpha = make([]float64, n)
	beta = make([]float64, n)
	var aPrev float64
	for k := 0; k < n; k++ {
		a, b, c := f.Recurrence(k, p)
		alpha[k] = -b / a
		if k == 0 {
			beta[k] = 1
		} else {
			beta[k] = c / (a * aPrev)
		}
		aPrev = a
	}
	return alpha, beta
}

// NormSq returns E[p_n(ξ)²] for ξ distributed as the germ of the family.
// It is the product of the monic recurrence coefficients times the square of
// the leading coefficient of p_n.
func (f Family) NormSq(n int, p Params) float64 {
	if n == 0 {
		return 1
	}
	// Accumulate in log space; Hermite norms overflow float64 near n = 170.
	var logv float64
	var aPrev float64
	for k := 0; k <= n; k++ {
		a, _, c := f.Recurrence(k, p)
		if k < n {
			logv += 2 * math.Log(math.Abs(a))
		}
		if k > 0 {
			logv += math.Log(c / (a * aPrev))
		}
		aPrev = a
	}
	return math.Exp(logv)
}

// Support returns the interval on which the germ density is positive.
func (f Family) Support() (min, max float64) {
	switch f {
	case Legendre, Jacobi:
		return -1, 1
	case Hermite:
		return math.Inf(-1), math.Inf(1)
	case Laguerre:
		return 0, math.Inf(1)
	}
	panic("poly: unknown family")
}

func resize(dst []float64, order int) []float64 {
	if order < 0 {
		panic("poly: negative order")
	}
	if dst == nil {
		return make([]float64, order+1)
	}
	if len(dst) != order+1 {
		panic("poly: length mismatch")
	}
	return dst
}
