package mps

import (
	"github.com/fumin/tensor"

	"spinchain/mat"
)

var (
	zero = [][]complex64{
		{0, 0},
		{0, 0},
	}
	identity = [][]complex64{
		{1, 0},
		{0, 1},
	}
)

// MagnetizationZ returns the MPO of sum Z_i.
func MagnetizationZ(n int) []*tensor.Dense {
	w := tensor.T4([][][][]complex64{
		{identity, zero},
		{mat.PauliZ, identity},
	})
	return newMPO(w, n)
}

// Ising returns the MPO of H = -sum Z_i Z_{i+1} - h sum X_i.
func Ising(n int, h complex64) []*tensor.Dense {
	w := tensor.T4([][][][]complex64{
		{identity, zero, zero},
		{mat.PauliZ, zero, zero},
		{mul(-h, mat.PauliX), mul(-1, mat.PauliZ), identity},
	})
	return newMPO(w, n)
}

// Heisenberg returns the MPO of the XXZ Hamiltonian
// H = j*sum(X_i X_{i+1} + Y_i Y_{i+1} + delta*Z_i Z_{i+1}) - hz sum Z_i.
func Heisenberg(n int, j, delta, hz complex64) []*tensor.Dense {
	w := tensor.T4([][][][]complex64{
		{identity, zero, zero, zero, zero},
		{mat.PauliX, zero, zero, zero, zero},
		{mat.PauliY, zero, zero, zero, zero},
		{mat.PauliZ, zero, zero, zero, zero},
		{mul(-hz, mat.PauliZ), mul(j, mat.PauliX), mul(j, mat.PauliY), mul(j * delta, mat.PauliZ), identity},
	})
	return newMPO(w, n)
}

func mul(c complex64, x [][]complex64) [][]complex64 {
	return tensor.T2(x).Mul(c).ToSlice2()
}

// newMPO repeats the bulk tensor w over the chain,
// with the boundary sites being the last row and first column of w.
func newMPO(w *tensor.Dense, n int) []*tensor.Dense {
	d0, d1, d2, d3 := w.Shape()[0], w.Shape()[1], w.Shape()[2], w.Shape()[3]
	mpo := make([]*tensor.Dense, 0, n)

	// First MPO is w[-1].
	mpo = append(mpo, w.Slice([][2]int{{d0 - 1, d0}, {0, d1}, {0, d2}, {0, d3}}))

	for _ = range n - 2 {
		mpo = append(mpo, w)
	}

	// Last MPO is w[:, 0].
	mpo = append(mpo, w.Slice([][2]int{{0, d0}, {0, 1}, {0, d2}, {0, d3}}))

	return mpo
}
