// Package spinchain simulates small quantum spin chains on the full
// Hilbert space: transverse field Ising and Heisenberg XXZ Hamiltonians,
// exact time evolution, and order parameter statistics.
//
// Site 0 is the most significant bit of a basis state index,
// and chains have open boundary conditions.
package spinchain

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/pkg/errors"

	"spinchain/mat"
)

var (
	identity = mat.COOIdentity(2)
)

// TransverseFieldIsing builds H = -sum Z_i Z_{i+1} - hx sum X_i into hamiltonian.
func TransverseFieldIsing(hamiltonian, buf mat.Matrix, n int, hx complex64) {
	hamiltonian.Zeros(1<<n, 1<<n)

	for i := 0; i < n; i++ {
		if i >= 1 {
			twoSite(hamiltonian, buf, n, -1, mat.PauliZ, i-1, mat.PauliZ, i)
		}
		oneSite(hamiltonian, buf, n, -hx, mat.PauliX, i)
	}
}

// Heisenberg builds the XXZ Hamiltonian
// H = j*sum(X_i X_{i+1} + Y_i Y_{i+1} + delta*Z_i Z_{i+1}) - hz sum Z_i.
func Heisenberg(hamiltonian, buf mat.Matrix, n int, j, delta, hz complex64) {
	hamiltonian.Zeros(1<<n, 1<<n)

	for i := 0; i < n; i++ {
		if i >= 1 {
			twoSite(hamiltonian, buf, n, j, mat.PauliX, i-1, mat.PauliX, i)
			twoSite(hamiltonian, buf, n, j, mat.PauliY, i-1, mat.PauliY, i)
			twoSite(hamiltonian, buf, n, j*delta, mat.PauliZ, i-1, mat.PauliZ, i)
		}
		oneSite(hamiltonian, buf, n, -hz, mat.PauliZ, i)
	}
}

func twoSite(hamiltonian, system mat.Matrix, n int, c complex64, opI [][]complex64, i int, opJ [][]complex64, j int) {
	if c == 0 {
		return
	}
	system.Scalar(1)
	for k := 0; k < n; k++ {
		switch {
		case k == i:
			system.Kron(mat.M(opI))
		case k == j:
			system.Kron(mat.M(opJ))
		default:
			system.Kron(identity)
		}
	}
	hamiltonian.Add(c, system)
}

func oneSite(hamiltonian, system mat.Matrix, n int, c complex64, op [][]complex64, i int) {
	if c == 0 {
		return
	}
	system.Scalar(1)
	for k := 0; k < n; k++ {
		switch {
		case k == i:
			system.Kron(mat.M(op))
		default:
			system.Kron(identity)
		}
	}
	hamiltonian.Add(c, system)
}

// TransverseFieldIsingExplicit streams the Ising Hamiltonian to a COO
// directory without materializing it, row by basis state.
func TransverseFieldIsingExplicit(dir string, n int, hx complex64) error {
	rowFn := func(vrcs []vRowCol, i int, state []byte, flipped []byte) []vRowCol {
		// -sum Z_i Z_{i+1} is diagonal.
		var diag complex64
		for k := 1; k < n; k++ {
			switch {
			case state[k-1] == state[k]:
				diag -= 1
			default:
				diag += 1
			}
		}
		if diag != 0 {
			vrcs = append(vrcs, vRowCol{v: diag, row: i, col: i})
		}

		// -hx X_k flips spin k.
		for k := 0; k < n; k++ {
			copy(flipped, state)
			flipped[k] ^= 1
			vrcs = append(vrcs, vRowCol{v: -hx, row: i, col: bitIndex(flipped)})
		}
		return vrcs
	}
	return writeExplicit(dir, n, rowFn)
}

// HeisenbergExplicit streams the XXZ Hamiltonian to a COO directory.
func HeisenbergExplicit(dir string, n int, j, delta, hz complex64) error {
	rowFn := func(vrcs []vRowCol, i int, state []byte, flipped []byte) []vRowCol {
		// j*delta Z_k Z_{k+1} and -hz Z_k are diagonal.
		var diag complex64
		for k := 1; k < n; k++ {
			switch {
			case state[k-1] == state[k]:
				diag += j * delta
			default:
				diag -= j * delta
			}
		}
		for k := 0; k < n; k++ {
			switch state[k] {
			case 0:
				diag -= hz
			default:
				diag += hz
			}
		}
		if diag != 0 {
			vrcs = append(vrcs, vRowCol{v: diag, row: i, col: i})
		}

		// j(X X + Y Y) exchanges anti-aligned neighbors.
		for k := 1; k < n; k++ {
			if state[k-1] == state[k] {
				continue
			}
			copy(flipped, state)
			flipped[k-1] ^= 1
			flipped[k] ^= 1
			vrcs = append(vrcs, vRowCol{v: 2 * j, row: i, col: bitIndex(flipped)})
		}
		return vrcs
	}
	return writeExplicit(dir, n, rowFn)
}

func writeExplicit(dir string, n int, rowFn func([]vRowCol, int, []byte, []byte) []vRowCol) error {
	shapePath := filepath.Join(dir, mat.FnameShape)
	if err := os.WriteFile(shapePath, []byte(fmt.Sprintf("%d,%d", 1<<n, 1<<n)), 0644); err != nil {
		return errors.Wrap(err, "")
	}

	cooPath := filepath.Join(dir, mat.FnameCOO)
	f, err := os.Create(cooPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)

	// flipped is a reusable buffer for states with flipped spins.
	flipped := make([]byte, n)
	// prev is the previously written record for compression.
	prev := vRowCol{v: complex64(cmplx.NaN()), row: -1, col: -1}
	vrcs := make([]vRowCol, 0)
Loop:
	for i, state := range bits(n) {
		vrcs = rowFn(vrcs[:0], i, state, flipped)
		slices.SortFunc(vrcs, rowMajor)

		for _, v := range vrcs {
			var vStr string
			if v.v != prev.v {
				vStr = mat.FormatNumpy(v.v)
			}
			var rowStr string
			if v.row != prev.row {
				rowStr = strconv.Itoa(v.row)
			}
			colStr := strconv.Itoa(v.col)

			if err1 := w.Write([]string{vStr, rowStr, colStr}); err1 != nil && err == nil {
				err = errors.Wrap(err1, "")
				break Loop
			}
			prev = v
		}
	}

	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

const propagateMaxTerms = 64

// Propagate applies exp(-i*H*t) to state in place, using a Taylor series
// with the time step scaled so that the series converges.
func Propagate(state []complex128, h *mat.COO, t float64) error {
	if len(state) != h.Cols() || h.Rows() != h.Cols() {
		return errors.Errorf("%d %d %d", len(state), h.Rows(), h.Cols())
	}
	if t == 0 {
		return nil
	}

	substeps := int(math.Ceil(math.Abs(t)*h.MaxRowSum())) + 1
	tau := t / float64(substeps)
	term := make([]complex128, len(state))
	buf := make([]complex128, len(state))
	for s := 0; s < substeps; s++ {
		copy(term, state)
		converged := false
		for k := 1; k <= propagateMaxTerms; k++ {
			h.MulVec(buf, term)
			c := complex(0, -tau/float64(k))
			for i := range term {
				term[i] = c * buf[i]
				state[i] += term[i]
			}
			if maxAbs(term) < 1e-14*maxAbs(state) {
				converged = true
				break
			}
		}
		if !converged {
			return errors.Errorf("%d %f", s, tau)
		}
	}
	return nil
}

func maxAbs(v []complex128) float64 {
	var m float64
	for _, x := range v {
		if a := cmplx.Abs(x); a > m {
			m = a
		}
	}
	return m
}

// Statistics are order parameters of an eigenstate.
type Statistics struct {
	EigenValue     []float64
	Magnetization  float64
	BinderCumulant float64
}

// GetStatistics computes the magnetization and Binder cumulant of the
// ground state in vvs, in the basis where the majority of spins are up.
func GetStatistics(n int, vvs []mat.ValVec) (Statistics, error) {
	var stats Statistics
	for _, vv := range vvs {
		stats.EigenValue = append(stats.EigenValue, real(vv.Val))
	}
	ground := vvs[0]
	if len(ground.Vec) != 1<<n {
		return Statistics{}, errors.Errorf("%d %d", len(ground.Vec), 1<<n)
	}
	// spinUpBasis is the basis where the majority of spins are up.
	spinUpBasis := make([]int8, n)
	var totalProb float64
	var m2 float64
	for i, fullBasis := range bits(n) {
		pickSpinUp(spinUpBasis, fullBasis)
		amplitude := ground.Vec[i]
		probability := real(amplitude)*real(amplitude) + imag(amplitude)*imag(amplitude)

		var basisM float64
		for _, spin := range spinUpBasis {
			basisM += float64(spin)
		}

		totalProb += probability
		stats.Magnetization += probability * basisM
		stats.BinderCumulant += probability * math.Pow(basisM, 4)
		m2 += probability * math.Pow(basisM, 2)
	}
	if math.Abs(totalProb-1) > 1e-3 {
		return Statistics{}, errors.Errorf("%f", totalProb)
	}

	stats.Magnetization /= float64(n)
	stats.BinderCumulant /= (m2 * m2)
	stats.BinderCumulant = 1 - stats.BinderCumulant/3
	return stats, nil
}

func pickSpinUp(upState []int8, state []byte) {
	ups := 0
	for _, b := range state {
		if b == 1 {
			ups++
		}
	}

	downs := len(state) - ups
	switch {
	case ups < downs:
		for i, b := range state {
			switch b {
			case 0:
				upState[i] = 1
			default:
				upState[i] = -1
			}
		}
	default:
		for i, b := range state {
			switch b {
			case 0:
				upState[i] = -1
			default:
				upState[i] = 1
			}
		}
	}
}

func indexBit(state []byte, n, i int) {
	stateStr := strconv.FormatInt(int64(i), 2)

	state = state[:0]
	// Pad zeros in front.
	for j := 0; j < n-len(stateStr); j++ {
		state = append(state, 0)
	}
	for _, bit := range []byte(stateStr) {
		state = append(state, bit-'0')
	}
}

// bits iterates over all basis states of an n spin chain.
func bits(n int) func(yield func(int, []byte) bool) {
	state := make([]byte, n)
	return func(yield func(int, []byte) bool) {
		numStates := 1 << n
		for i := range numStates {
			indexBit(state, n, i)
			if !yield(i, state) {
				return
			}
		}
	}
}

func bitIndex(state []byte) int {
	idx := 0
	for i := len(state) - 1; i >= 0; i-- {
		if state[i] == 1 {
			idx += 1 << (len(state) - 1 - i)
		}
	}
	return idx
}

type vRowCol struct {
	v   complex64
	row int
	col int
}

func rowMajor(a, b vRowCol) int {
	if c := cmp.Compare(a.row, b.row); c != 0 {
		return c
	}
	return cmp.Compare(a.col, b.col)
}
