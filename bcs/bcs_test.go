package bcs

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// orthogonalDesign returns an n×m matrix with orthonormal columns, taken from
// the QR factorization of a random matrix.
func orthogonalDesign(n, m int, rnd *rand.Rand) *mat.Dense {
	a := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			a.Set(i, j, rnd.NormFloat64())
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	var q mat.Dense
	qr.QTo(&q)
	return mat.DenseCopyOf(q.Slice(0, n, 0, m))
}

func randomDesign(n, m int, rnd *rand.Rand) *mat.Dense {
	a := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			a.Set(i, j, rnd.NormFloat64())
		}
	}
	return a
}

func sparseSignal(psi mat.Matrix, support []int, values []float64) []float64 {
	_, m := psi.Dims()
	w := make([]float64, m)
	for i, j := range support {
		w[j] = values[i]
	}
	var y mat.VecDense
	y.MulVec(psi, mat.NewVecDense(m, w))
	return y.RawVector().Data
}

func TestSolveRecoversSupport(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	psi := randomDesign(80, 40, rnd)
	support := []int{3, 11, 17, 30}
	values := []float64{3, -2, 1.5, 1}
	y := sparseSignal(psi, support, values)

	res, err := Solve(psi, y, &Settings{Eta: 1e-8})
	if err != nil {
		t.Fatal(err)
	}
	dense := res.Dense(40)
	for i, j := range support {
		if math.Abs(dense[j]-values[i]) > 1e-4 {
			t.Errorf("coefficient %d: got %v, want %v", j, dense[j], values[i])
		}
	}
	for j, v := range dense {
		if math.Abs(v) > 1e-4 && sort.SearchInts(support, j) == len(support) {
			t.Errorf("spurious coefficient %d = %v", j, v)
		}
	}
	if len(res.ErrBars) != len(res.Used) || len(res.Alpha) != len(res.Used) {
		t.Errorf("output lengths do not match the selected terms")
	}
	if !res.Converged {
		t.Errorf("solver did not converge in %d iterations", res.Iterations)
	}
	if res.Sigma2 <= 0 {
		t.Errorf("re-estimated noise variance %v is not positive", res.Sigma2)
	}
}

func TestSolveOrthogonalExact(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 4))
	psi := orthogonalDesign(50, 20, rnd)
	support := []int{0, 4, 9, 15, 19}
	values := []float64{5, -4, 3, 2, -1}
	y := sparseSignal(psi, support, values)

	res, err := Solve(psi, y, &Settings{Eta: 1e-12, Weights: []float64{0}})
	if err != nil {
		t.Fatal(err)
	}
	used := append([]int(nil), res.Used...)
	sort.Ints(used)
	if !floats.Equal(intsToFloats(used), intsToFloats(support)) {
		t.Errorf("selected %v, want %v", used, support)
	}
	// Orthogonal columns enter in decreasing order of magnitude.
	if res.Used[0] != 0 || res.Used[len(res.Used)-1] != 19 {
		t.Errorf("unexpected selection order %v", res.Used)
	}
}

func TestSparsityMonotoneInEta(t *testing.T) {
	rnd := rand.New(rand.NewPCG(5, 6))
	psi := orthogonalDesign(60, 30, rnd)
	support := []int{1, 5, 8, 13, 21, 27}
	values := []float64{10, 4, 2, 1, 0.1, 0.01}
	y := sparseSignal(psi, support, values)

	prev := math.MaxInt
	for _, eta := range []float64{1e-12, 1e-8, 1e-4, 1e-2, 1e-1, 0.5} {
		res, err := Solve(psi, y, &Settings{Eta: eta, Weights: []float64{0}})
		if err != nil {
			t.Fatal(err)
		}
		n := len(res.Used)
		if n > prev {
			t.Errorf("eta %v selected %d terms, more than %d at a smaller eta", eta, n, prev)
		}
		prev = n
	}
}

func TestSolveAutoWeights(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 8))
	psi := randomDesign(60, 30, rnd)
	y := sparseSignal(psi, []int{2, 7}, []float64{1, -1})
	noise := make([]float64, len(y))
	for i := range y {
		noise[i] = 1e-3 * rnd.NormFloat64()
		y[i] += noise[i]
	}
	res, err := Solve(psi, y, &Settings{Sigma2: 1e-6, Eta: 1e-6})
	if err != nil {
		t.Fatal(err)
	}
	dense := res.Dense(30)
	if math.Abs(dense[2]-1) > 1e-2 || math.Abs(dense[7]+1) > 1e-2 {
		t.Errorf("coefficients %v, %v, want 1, -1", dense[2], dense[7])
	}
}

func TestSolveColumnWeights(t *testing.T) {
	rnd := rand.New(rand.NewPCG(9, 10))
	psi := orthogonalDesign(50, 3, rnd)
	// With unit noise and orthonormal columns the quality of column j is its
	// coefficient and the sparsity is one.
	y := sparseSignal(psi, []int{0, 1}, []float64{10, math.Sqrt2})

	res, err := Solve(psi, y, &Settings{Sigma2: 1, Eta: 1e-12})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Weights) != 3 {
		t.Fatalf("got %d weights, want 3", len(res.Weights))
	}
	for _, test := range []struct {
		name string
		got  float64
		want float64
	}{
		{"Strong", res.Weights[0], 2.0 / 99},
		{"Weak", res.Weights[1], 2},
	} {
		if math.Abs(test.got-test.want) > 1e-10*test.want {
			t.Errorf("Case %s: weight %v, want %v", test.name, test.got, test.want)
		}
	}
	if !math.IsInf(res.Weights[2], 1) {
		t.Errorf("column without signal has weight %v, want +Inf", res.Weights[2])
	}
	// The weak column clears a zero weight but not its own.
	if len(res.Used) != 1 || res.Used[0] != 0 {
		t.Errorf("column weights selected %v, want [0]", res.Used)
	}
	res, err = Solve(psi, y, &Settings{Sigma2: 1, Eta: 1e-12, Weights: []float64{0}})
	if err != nil {
		t.Fatal(err)
	}
	used := append([]int(nil), res.Used...)
	sort.Ints(used)
	if len(used) != 2 || used[0] != 0 || used[1] != 1 {
		t.Errorf("zero weight selected %v, want [0 1]", used)
	}
}

func TestSolveScalarWeight(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	psi := randomDesign(80, 40, rnd)
	support := []int{3, 11, 17, 30}
	values := []float64{3, -2, 1.5, 1}
	y := sparseSignal(psi, support, values)

	res, err := Solve(psi, y, &Settings{Eta: 1e-8, Auto: ScalarWeight})
	if err != nil {
		t.Fatal(err)
	}
	for j, v := range res.Weights {
		if v != res.Weights[0] {
			t.Errorf("weight %d = %v differs from %v", j, v, res.Weights[0])
		}
	}
	if res.Weights[0] < 0 || math.IsInf(res.Weights[0], 0) {
		t.Errorf("shared weight %v is not finite and non-negative", res.Weights[0])
	}
	dense := res.Dense(40)
	for i, j := range support {
		if math.Abs(dense[j]-values[i]) > 1e-4 {
			t.Errorf("coefficient %d: got %v, want %v", j, dense[j], values[i])
		}
	}
}

func TestSolveErrors(t *testing.T) {
	psi := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1})
	for _, test := range []struct {
		name     string
		y        []float64
		settings *Settings
		err      error
	}{
		{"ShortY", []float64{1, 2}, nil, ErrShape},
		{"Weights", []float64{1, 2, 3}, &Settings{Weights: []float64{1, 2, 3}}, ErrShape},
		{"NegativeWeight", []float64{1, 2, 3}, &Settings{Weights: []float64{-1}}, ErrSettings},
		{"NegativeEta", []float64{1, 2, 3}, &Settings{Eta: -1}, ErrSettings},
		{"WeightMode", []float64{1, 2, 3}, &Settings{Auto: WeightMode(7)}, ErrSettings},
	} {
		_, err := Solve(psi, test.y, test.settings)
		if !errors.Is(err, test.err) {
			t.Errorf("Case %s: got %v, want %v", test.name, err, test.err)
		}
	}
}

func TestSolveZeroData(t *testing.T) {
	psi := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1})
	res, err := Solve(psi, []float64{0, 0, 0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Used) != 0 {
		t.Errorf("zero data selected %v", res.Used)
	}
	if d := res.Dense(2); d[0] != 0 || d[1] != 0 {
		t.Errorf("zero data gave coefficients %v", d)
	}
}

func intsToFloats(s []int) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}
