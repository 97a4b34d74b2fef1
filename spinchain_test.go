package spinchain

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"os"
	"os/exec"
	"testing"

	"spinchain/mat"
)

func TestTransverseFieldIsing(t *testing.T) {
	t.Parallel()
	type matrixSlice struct {
		y [2]int
		x [2]int
		s *mat.COO
	}
	tests := []struct {
		n                int
		h                complex64
		hamiltonianShape [2]int
		hamiltonian      []matrixSlice
	}{
		{
			n:                4,
			h:                1,
			hamiltonianShape: [2]int{16, 16},
			hamiltonian: []matrixSlice{
				{
					y: [2]int{0, 16},
					x: [2]int{0, 16},
					s: mat.M([][]complex64{
						{-3, -1, -1, 0, -1, 0, 0, 0, -1, 0, 0, 0, 0, 0, 0, 0},
						{-1, -1, 0, -1, 0, -1, 0, 0, 0, -1, 0, 0, 0, 0, 0, 0},
						{-1, 0, 1, -1, 0, 0, -1, 0, 0, 0, -1, 0, 0, 0, 0, 0},
						{0, -1, -1, -1, 0, 0, 0, -1, 0, 0, 0, -1, 0, 0, 0, 0},
						{-1, 0, 0, 0, 1, -1, -1, 0, 0, 0, 0, 0, -1, 0, 0, 0},
						{0, -1, 0, 0, -1, 3, 0, -1, 0, 0, 0, 0, 0, -1, 0, 0},
						{0, 0, -1, 0, -1, 0, 1, -1, 0, 0, 0, 0, 0, 0, -1, 0},
						{0, 0, 0, -1, 0, -1, -1, -1, 0, 0, 0, 0, 0, 0, 0, -1},
						{-1, 0, 0, 0, 0, 0, 0, 0, -1, -1, -1, 0, -1, 0, 0, 0},
						{0, -1, 0, 0, 0, 0, 0, 0, -1, 1, 0, -1, 0, -1, 0, 0},
						{0, 0, -1, 0, 0, 0, 0, 0, -1, 0, 3, -1, 0, 0, -1, 0},
						{0, 0, 0, -1, 0, 0, 0, 0, 0, -1, -1, 1, 0, 0, 0, -1},
						{0, 0, 0, 0, -1, 0, 0, 0, -1, 0, 0, 0, -1, -1, -1, 0},
						{0, 0, 0, 0, 0, -1, 0, 0, 0, -1, 0, 0, -1, 1, 0, -1},
						{0, 0, 0, 0, 0, 0, -1, 0, 0, 0, -1, 0, -1, 0, -1, -1},
						{0, 0, 0, 0, 0, 0, 0, -1, 0, 0, 0, -1, 0, -1, -1, -3},
					}),
				},
			},
		},
		{
			n:                8,
			h:                1,
			hamiltonianShape: [2]int{256, 256},
			hamiltonian: []matrixSlice{
				{
					y: [2]int{0, 10},
					x: [2]int{0, 9},
					s: mat.M([][]complex64{
						{-7, -1, -1, 0, -1, 0, 0, 0, -1},
						{-1, -5, 0, -1, 0, -1, 0, 0, 0},
						{-1, 0, -3, -1, 0, 0, -1, 0, 0},
						{0, -1, -1, -5, 0, 0, 0, -1, 0},
						{-1, 0, 0, 0, -3, -1, -1, 0, 0},
						{0, -1, 0, 0, -1, -1, 0, -1, 0},
						{0, 0, -1, 0, -1, 0, -3, -1, 0},
						{0, 0, 0, -1, 0, -1, -1, -5, 0},
						{-1, 0, 0, 0, 0, 0, 0, 0, -3},
						{0, -1, 0, 0, 0, 0, 0, 0, -1},
					}),
				},
				{
					y: [2]int{0, 10},
					x: [2]int{-9, 256},
					s: mat.COOZeros(10, 9),
				},
				{
					y: [2]int{-10, 256},
					x: [2]int{0, 9},
					s: mat.COOZeros(10, 9),
				},
				{
					y: [2]int{-9, 256},
					x: [2]int{-9, 256},
					s: mat.M([][]complex64{
						{-3, 0, 0, 0, 0, 0, 0, 0, -1},
						{0, -5, -1, -1, 0, -1, 0, 0, 0},
						{0, -1, -3, 0, -1, 0, -1, 0, 0},
						{0, -1, 0, -1, -1, 0, 0, -1, 0},
						{0, 0, -1, -1, -3, 0, 0, 0, -1},
						{0, -1, 0, 0, 0, -5, -1, -1, 0},
						{0, 0, -1, 0, 0, -1, -3, 0, -1},
						{0, 0, 0, -1, 0, -1, 0, -5, -1},
						{-1, 0, 0, 0, -1, 0, -1, -1, -7},
					}),
				},
			},
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d %v", test.n, test.h), func(t *testing.T) {
			t.Parallel()
			hamiltonian := mat.M([][]complex64{{0}})
			buf := mat.M([][]complex64{{0}})
			TransverseFieldIsing(hamiltonian, buf, test.n, test.h)
			if !(hamiltonian.Rows() == test.hamiltonianShape[0] && hamiltonian.Cols() == test.hamiltonianShape[1]) {
				t.Fatalf("%d %d, expected %v", hamiltonian.Rows(), hamiltonian.Cols(), test.hamiltonianShape)
			}
			for _, th := range test.hamiltonian {
				s := hamiltonian.COO().Slice(th.y, th.x)
				if !s.Equal(th.s) {
					t.Fatalf("%s, expected %s", s, th.s)
				}
			}
		})
	}
}

func TestHeisenberg(t *testing.T) {
	t.Parallel()
	// H = X X + Y Y + 2 Z Z - 3 (Z_0 + Z_1) on two spins.
	expected := mat.M([][]complex64{
		{-4, 0, 0, 0},
		{0, -2, 2, 0},
		{0, 2, -2, 0},
		{0, 0, 0, 8},
	})

	hamiltonian := mat.M([][]complex64{{0}})
	buf := mat.M([][]complex64{{0}})
	Heisenberg(hamiltonian, buf, 2, 1, 2, 3)
	if !hamiltonian.Equal(expected) {
		t.Fatalf("%s, expected %s", hamiltonian, expected)
	}
}

func TestTransverseFieldIsingExplicit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n int
	}{
		{n: 3},
		{n: 8},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d", test.n), func(t *testing.T) {
			t.Parallel()
			dir, err := os.MkdirTemp("", "")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer os.RemoveAll(dir)

			m := mat.M([][]complex64{{0}})
			buf := mat.M([][]complex64{{0}})
			TransverseFieldIsing(m, buf, test.n, 1)

			if err := TransverseFieldIsingExplicit(dir, test.n, 1); err != nil {
				t.Fatalf("%+v", err)
			}
			mExplicit, err := mat.ReadCOO(dir)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			if !mExplicit.Equal(m) {
				t.Fatalf("\n%s, expected \n\n%s", mExplicit, m)
			}
		})
	}
}

func TestHeisenbergExplicit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n     int
		j     complex64
		delta complex64
		hz    complex64
	}{
		{n: 2, j: 1, delta: 2, hz: 3},
		{n: 6, j: 1, delta: 2, hz: 3},
		{n: 5, j: 2, delta: 1, hz: 0},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d %v %v %v", test.n, test.j, test.delta, test.hz), func(t *testing.T) {
			t.Parallel()
			dir, err := os.MkdirTemp("", "")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer os.RemoveAll(dir)

			m := mat.M([][]complex64{{0}})
			buf := mat.M([][]complex64{{0}})
			Heisenberg(m, buf, test.n, test.j, test.delta, test.hz)

			if err := HeisenbergExplicit(dir, test.n, test.j, test.delta, test.hz); err != nil {
				t.Fatalf("%+v", err)
			}
			mExplicit, err := mat.ReadCOO(dir)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			if !mExplicit.Equal(m) {
				t.Fatalf("\n%s, expected \n\n%s", mExplicit, m)
			}
		})
	}
}

func TestEigen(t *testing.T) {
	t.Parallel()
	h, buf := mat.M([][]complex64{{0}}), mat.M([][]complex64{{0}})
	TransverseFieldIsing(h, buf, 8, 1)
	vvs := h.COO().Eigen()

	// Check eigenvalues.
	// Values are from https://juliaphysics.github.io/PhysicsTutorials.jl/tutorials/general/quantum_ising/quantum_ising.html
	vals := []float64{-9.837951447459426, -9.46887800960621, -8.7432994871710, -8.374226049317867, -8.054998024353266, -7.685924586500063, -7.427412901942416, -7.058339464089192, -6.960346064064927, -6.881915778576785}
	for i, v := range vvs[0:10] {
		if math.Abs(real(v.Val)-vals[i]) > 1e-6 {
			t.Fatalf("%d %v %f", i, v.Val, vals[i])
		}
	}
	vals = []float64{6.960346064064934, 7.0583394640891886, 7.427412901942393, 7.685924586500062, 8.054998024353269, 8.374226049317883, 8.74329948717109, 9.468878009606211, 9.83795144745942}
	for i, v := range vvs[len(vvs)-9:] {
		if math.Abs(real(v.Val)-vals[i]) > 1e-6 {
			t.Fatalf("%d %v %f", i, v.Val, vals[i])
		}
	}

	// Check eigenvectors.
	var probSum float64
	for _, v := range vvs[0].Vec {
		probSum += real(v)*real(v) + imag(v)*imag(v)
	}
	if math.Abs(probSum-1) > 1e-6 {
		t.Fatalf("%f", probSum)
	}
	vec := []float64{0.11623105759942885, 0.030073150814502212, 0.0119388989548912, 0.01836268922781065, 0.010306563749646199, 0.0036432311839576883, 0.005695810419718821, 0.014593393364127294, 0.009913022568277332, 0.002835013679521494}
	for i, v := range vvs[0].Vec[:10] {
		prob := real(v)*real(v) + imag(v)*imag(v)
		if math.Abs(prob-vec[i]) > 1e-6 {
			t.Fatalf("%d %v %f %f", i, v, prob, vec[i])
		}
	}
}

func TestPropagate(t *testing.T) {
	t.Parallel()
	const n = 6
	h, buf := mat.M([][]complex64{{0}}), mat.M([][]complex64{{0}})
	TransverseFieldIsing(h, buf, n, 1)
	coo := h.COO()

	// Quench from the fully polarized state.
	state := make([]complex128, 1<<n)
	state[0] = 1
	e0 := energy(coo, state)

	if err := Propagate(state, coo, 0.7); err != nil {
		t.Fatalf("%+v", err)
	}

	// Unitarity conserves the norm and the energy.
	var norm float64
	for _, v := range state {
		norm += real(v)*real(v) + imag(v)*imag(v)
	}
	if math.Abs(norm-1) > 1e-8 {
		t.Fatalf("%f", norm)
	}
	if e := energy(coo, state); math.Abs(e-e0) > 1e-6 {
		t.Fatalf("%f, expected %f", e, e0)
	}

	// For small time steps, exp(-i*H*dt) = 1 - i*H*dt + O(dt^2).
	const dt = 1e-3
	small := make([]complex128, 1<<n)
	small[0] = 1
	if err := Propagate(small, coo, dt); err != nil {
		t.Fatalf("%+v", err)
	}
	firstOrder := make([]complex128, 1<<n)
	hv := make([]complex128, 1<<n)
	firstOrder[0] = 1
	coo.MulVec(hv, firstOrder)
	for i := range firstOrder {
		firstOrder[i] += complex(0, -dt) * hv[i]
	}
	for i := range small {
		if cmplx.Abs(small[i]-firstOrder[i]) > 1e-4 {
			t.Fatalf("%d %v %v", i, small[i], firstOrder[i])
		}
	}
}

func energy(h *mat.COO, state []complex128) float64 {
	hv := make([]complex128, len(state))
	h.MulVec(hv, state)
	var e complex128
	for i, v := range state {
		e += cmplx.Conj(v) * hv[i]
	}
	return real(e)
}

func TestGetStatistics(t *testing.T) {
	t.Parallel()
	const n = 4
	h, buf := mat.M([][]complex64{{0}}), mat.M([][]complex64{{0}})
	TransverseFieldIsing(h, buf, n, 0.001)
	vvs := h.COO().Eigen()

	stats, err := GetStatistics(n, vvs)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// Deep in the ordered phase, the ground state is nearly fully polarized.
	if math.Abs(stats.EigenValue[0]-(-3)) > 1e-2 {
		t.Fatalf("%f", stats.EigenValue[0])
	}
	if stats.Magnetization < 0.99 {
		t.Fatalf("%f", stats.Magnetization)
	}
	if math.Abs(stats.BinderCumulant-2.0/3) > 1e-2 {
		t.Fatalf("%f", stats.BinderCumulant)
	}
}

func TestEigs(t *testing.T) {
	t.Parallel()
	if err := exec.Command("python", "-c", "import scipy.sparse.linalg").Run(); err != nil {
		t.Skipf("scipy: %v", err)
	}

	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)

	const n = 8
	if err := TransverseFieldIsingExplicit(dir, n, 1); err != nil {
		t.Fatalf("%+v", err)
	}
	vvs := mat.EigsDir(dir)

	h, buf := mat.M([][]complex64{{0}}), mat.M([][]complex64{{0}})
	TransverseFieldIsing(h, buf, n, 1)
	dense := h.COO().Eigen()

	for i := range 3 {
		if cmplx.Abs(vvs[i].Val-dense[i].Val)/cmplx.Abs(dense[i].Val) > 1e-3 {
			t.Fatalf("%d %f %f", i, vvs[i].Val, dense[i].Val)
		}
		for k, v := range vvs[i].Vec {
			vProb := math.Pow(cmplx.Abs(v), 2)
			tProb := math.Pow(cmplx.Abs(dense[i].Vec[k]), 2)
			if math.Abs(vProb-tProb) > 1e-2 {
				t.Fatalf("%d %d %f %f", i, k, vProb, tProb)
			}
		}
	}
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
