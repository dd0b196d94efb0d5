package multiindex

// Policy selects how a set is enlarged between basis-growth rounds.
type Policy int

const (
	// None leaves the set unchanged.
	None Policy = iota
	// NonConservative adds every forward neighbor of every tuple.
	NonConservative
	// Conservative adds a forward neighbor only if all of its lower neighbors
	// are already in the set.
	Conservative
)

func (p Policy) String() string {
	switch p {
	case None:
		return "none"
	case NonConservative:
		return "nonconservative"
	case Conservative:
		return "conservative"
	}
	return "unknown"
}

// Growth is the outcome of growing a set.
type Growth struct {
	// Index is the grown set: the input tuples in their original order
	// followed by Added.
	Index Set
	// Added are the tuples that were not in the input set, in the order they
	// were discovered.
	Added [][]int
	// Front are the input tuples that had at least one forward neighbor
	// outside of the input set.
	Front [][]int
	// Rejected are the candidates discarded by conservative growth because a
	// lower neighbor was missing. Always empty for the other policies.
	Rejected [][]int
}

// Grow returns the set enlarged by the front-expansion rule of the policy.
// The forward neighbors of a tuple are the tuples obtained by incrementing a
// single dimension by one. Grow panics if s is empty.
func (s Set) Grow(p Policy) Growth {
	if s.Len() == 0 {
		panic("multiindex: grow on empty set")
	}
	g := Growth{}
	grown := Set{dim: s.dim, lookup: make(map[string]int, 2*s.Len())}
	for _, t := range s.tuples {
		grown.add(t)
	}
	if p == None {
		g.Index = grown
		return g
	}

	rejected := make(map[string]struct{})
	for _, t := range s.tuples {
		onFront := false
		for d := 0; d < s.dim; d++ {
			cand := make([]int, s.dim)
			copy(cand, t)
			cand[d]++
			if s.Contains(cand) {
				continue
			}
			onFront = true
			if grown.Contains(cand) {
				continue
			}
			if p == Conservative && !s.lowerNeighborsIn(cand) {
				k := key(cand)
				if _, ok := rejected[k]; !ok {
					rejected[k] = struct{}{}
					g.Rejected = append(g.Rejected, cand)
				}
				continue
			}
			grown.add(cand)
			g.Added = append(g.Added, cand)
		}
		if onFront {
			front := make([]int, s.dim)
			copy(front, t)
			g.Front = append(g.Front, front)
		}
	}
	g.Index = grown
	return g
}
