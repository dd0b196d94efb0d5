// Package multiindex implements ordered sets of multi-indices. A multi-index is
// a tuple of per-dimension polynomial degrees identifying one basis function
// of a polynomial chaos expansion, for example (2, 0, 1) is the product of a
// degree-2 polynomial in the first germ and a degree-1 polynomial in the third.
//
// The order of a Set is meaningful: the i-th tuple of a Set is the basis
// function multiplying the i-th coefficient of any expansion built on it.
// Sets are immutable once constructed; operations that change the set of
// tuples, such as Grow and Subset, return a new Set.
package multiindex

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/combin"
)

var (
	ErrDuplicate = errors.New("multiindex: duplicate tuple")
	ErrRagged    = errors.New("multiindex: tuples have differing dimension")
	ErrNegative  = errors.New("multiindex: negative degree")
)

// Set is an ordered collection of unique multi-indices of a common dimension.
// The zero value is an empty set of dimension zero.
type Set struct {
	dim    int
	tuples [][]int
	lookup map[string]int
}

// New returns a Set containing a copy of the given tuples in the given order.
// All tuples must have length dim, contain no negative degrees and be unique.
func New(dim int, tuples [][]int) (Set, error) {
	s := Set{
		dim:    dim,
		tuples: make([][]int, 0, len(tuples)),
		lookup: make(map[string]int, len(tuples)),
	}
	for i, t := range tuples {
		if len(t) != dim {
			return Set{}, fmt.Errorf("tuple %d has length %d, want %d: %w", i, len(t), dim, ErrRagged)
		}
		for _, v := range t {
			if v < 0 {
				return Set{}, fmt.Errorf("tuple %d: %w", i, ErrNegative)
			}
		}
		if s.Contains(t) {
			return Set{}, fmt.Errorf("tuple %v: %w", t, ErrDuplicate)
		}
		s.add(t)
	}
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(dim int, tuples [][]int) Set {
	s, err := New(dim, tuples)
	if err != nil {
		panic(err)
	}
	return s
}

// Zero returns the set containing only the constant term of dimension dim.
func Zero(dim int) Set {
	return MustNew(dim, [][]int{make([]int, dim)})
}

// Tensor returns the tensor-product set of all tuples with every degree at
// most order, in graded order.
func Tensor(dim, order int) Set {
	if dim < 1 || order < 0 {
		panic("multiindex: bad tensor size")
	}
	lens := make([]int, dim)
	for i := range lens {
		lens[i] = order + 1
	}
	tuples := combin.Cartesian(lens)
	sortGraded(tuples)
	return MustNew(dim, tuples)
}

// TotalOrder returns the set of all tuples whose degrees sum to at most order,
// in graded order.
func TotalOrder(dim, order int) Set {
	if dim < 1 || order < 0 {
		panic("multiindex: bad total order size")
	}
	lens := make([]int, dim)
	for i := range lens {
		lens[i] = order + 1
	}
	all := combin.Cartesian(lens)
	tuples := make([][]int, 0, TotalOrderSize(dim, order))
	for _, t := range all {
		if degree(t) <= order {
			tuples = append(tuples, t)
		}
	}
	sortGraded(tuples)
	return MustNew(dim, tuples)
}

// TotalOrderSize returns the number of terms in a total-order set of the given
// dimension and order, (dim+order)! / (dim! order!).
func TotalOrderSize(dim, order int) int {
	return combin.Binomial(dim+order, order)
}

// Dim returns the dimension of the tuples.
func (s Set) Dim() int {
	return s.dim
}

// Len returns the number of tuples.
func (s Set) Len() int {
	return len(s.tuples)
}

// At returns a copy of the i-th tuple.
func (s Set) At(i int) []int {
	t := make([]int, s.dim)
	copy(t, s.tuples[i])
	return t
}

// Degree returns the component of dimension d in the i-th tuple.
func (s Set) Degree(i, d int) int {
	return s.tuples[i][d]
}

// Tuples returns a copy of all of the tuples in order.
func (s Set) Tuples() [][]int {
	out := make([][]int, len(s.tuples))
	for i := range s.tuples {
		out[i] = s.At(i)
	}
	return out
}

// Contains returns whether t is in the set.
func (s Set) Contains(t []int) bool {
	_, ok := s.lookup[key(t)]
	return ok
}

// Index returns the position of t in the set, or -1 if it is not present.
func (s Set) Index(t []int) int {
	i, ok := s.lookup[key(t)]
	if !ok {
		return -1
	}
	return i
}

// MaxOrder returns the largest total degree of any tuple.
func (s Set) MaxOrder() int {
	var max int
	for _, t := range s.tuples {
		if d := degree(t); d > max {
			max = d
		}
	}
	return max
}

// MaxDegree returns the largest degree of any tuple in a single dimension.
func (s Set) MaxDegree() int {
	var max int
	for _, t := range s.tuples {
		for _, d := range t {
			if d > max {
				max = d
			}
		}
	}
	return max
}

// Subset returns the set made of the tuples at the given positions, in the
// order given.
func (s Set) Subset(idx []int) Set {
	tuples := make([][]int, len(idx))
	for i, v := range idx {
		tuples[i] = s.tuples[v]
	}
	sub, err := New(s.dim, tuples)
	if err != nil {
		panic("multiindex: repeated position in subset")
	}
	return sub
}

// Equal returns whether s and t contain the same tuples in the same order.
func (s Set) Equal(t Set) bool {
	if s.dim != t.dim || len(s.tuples) != len(t.tuples) {
		return false
	}
	for i := range s.tuples {
		if key(s.tuples[i]) != key(t.tuples[i]) {
			return false
		}
	}
	return true
}

// IsDownwardClosed returns whether every lower neighbor of every tuple, the
// tuple with one nonzero degree decremented, is also in the set.
func (s Set) IsDownwardClosed() bool {
	for _, t := range s.tuples {
		if !s.lowerNeighborsIn(t) {
			return false
		}
	}
	return true
}

func (s Set) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, t := range s.tuples {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		b.WriteString(key(t))
		b.WriteByte(')')
	}
	b.WriteByte('}')
	return b.String()
}

// Intersect returns the tuples present in every one of the sets, treated as
// unordered collections. The result is sorted lexicographically. All sets must
// share a dimension.
func Intersect(sets ...Set) Set {
	if len(sets) == 0 {
		return Set{}
	}
	dim := sets[0].dim
	var common [][]int
	for _, t := range sets[0].tuples {
		in := true
		for _, other := range sets[1:] {
			if other.dim != dim {
				panic("multiindex: dimension mismatch")
			}
			if !other.Contains(t) {
				in = false
				break
			}
		}
		if in {
			common = append(common, t)
		}
	}
	sort.Slice(common, func(i, j int) bool {
		return lexLess(common[i], common[j])
	})
	return MustNew(dim, common)
}

func (s *Set) add(t []int) {
	c := make([]int, len(t))
	copy(c, t)
	if s.lookup == nil {
		s.lookup = make(map[string]int)
	}
	s.lookup[key(c)] = len(s.tuples)
	s.tuples = append(s.tuples, c)
}

func (s Set) lowerNeighborsIn(t []int) bool {
	low := make([]int, len(t))
	for d, v := range t {
		if v == 0 {
			continue
		}
		copy(low, t)
		low[d]--
		if !s.Contains(low) {
			return false
		}
	}
	return true
}

func key(t []int) string {
	var b strings.Builder
	for i, v := range t {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func degree(t []int) int {
	var d int
	for _, v := range t {
		d += v
	}
	return d
}

// sortGraded orders tuples by total degree, and reverse lexicographically
// within a degree, so (1,0) comes before (0,1).
func sortGraded(tuples [][]int) {
	sort.SliceStable(tuples, func(i, j int) bool {
		di, dj := degree(tuples[i]), degree(tuples[j])
		if di != dj {
			return di < dj
		}
		return lexLess(tuples[j], tuples[i])
	})
}

func lexLess(a, b []int) bool {
	for k := range a {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return false
}
