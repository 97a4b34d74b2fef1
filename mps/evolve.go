package mps

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"spinchain/mat"
)

// IsingBonds returns the two site Hamiltonians h_{k,k+1} of the Ising chain,
// with the transverse field split among the bonds adjacent to each site so
// that their sum is H = -sum Z_i Z_{i+1} - h sum X_i.
func IsingBonds(n int, h complex64) []*tensor.Dense {
	bonds := make([]*tensor.Dense, 0, n-1)
	for k := 0; k < n-1; k++ {
		cl, cr := boundaryWeights(k, n)
		b := zeros4()
		addScaled(b, -1, kron2(mat.PauliZ, mat.PauliZ))
		addScaled(b, -h*cl, kron2(mat.PauliX, identity))
		addScaled(b, -h*cr, kron2(identity, mat.PauliX))
		bonds = append(bonds, tensor.T2(b))
	}
	return bonds
}

// HeisenbergBonds returns the two site Hamiltonians of the XXZ chain
// H = j*sum(X_i X_{i+1} + Y_i Y_{i+1} + delta*Z_i Z_{i+1}) - hz sum Z_i.
func HeisenbergBonds(n int, j, delta, hz complex64) []*tensor.Dense {
	bonds := make([]*tensor.Dense, 0, n-1)
	for k := 0; k < n-1; k++ {
		cl, cr := boundaryWeights(k, n)
		b := zeros4()
		addScaled(b, j, kron2(mat.PauliX, mat.PauliX))
		addScaled(b, j, kron2(mat.PauliY, mat.PauliY))
		addScaled(b, j*delta, kron2(mat.PauliZ, mat.PauliZ))
		addScaled(b, -hz*cl, kron2(mat.PauliZ, identity))
		addScaled(b, -hz*cr, kron2(identity, mat.PauliZ))
		bonds = append(bonds, tensor.T2(b))
	}
	return bonds
}

// boundaryWeights splits a single site term among its adjacent bonds.
// Interior sites are shared by two bonds, boundary sites by one.
func boundaryWeights(k, n int) (complex64, complex64) {
	var cl, cr complex64 = 0.5, 0.5
	if k == 0 {
		cl = 1
	}
	if k == n-2 {
		cr = 1
	}
	return cl, cr
}

// TrotterStepper evolves a state by exp(-i*H*dt) using the second order
// decomposition into even and odd bond evolution operators.
type TrotterStepper struct {
	// evenHalf are exp(-i*h_b*dt/2) of the even bonds.
	evenHalf []gate
	// oddFull are exp(-i*h_b*dt) of the odd bonds.
	oddFull []gate
}

type gate struct {
	bond int
	// u is the evolution operator of shape {s1', s2', s1, s2}.
	u *tensor.Dense
}

// NewTrotterStepper computes the bond evolution operators for time step dt.
func NewTrotterStepper(bonds []*tensor.Dense, dt float64) *TrotterStepper {
	st := &TrotterStepper{}
	for k, b := range bonds {
		switch k % 2 {
		case 0:
			u := expGate(b, complex(0, -dt/2))
			st.evenHalf = append(st.evenHalf, gate{bond: k, u: u})
		default:
			u := expGate(b, complex(0, -dt))
			st.oddFull = append(st.oddFull, gate{bond: k, u: u})
		}
	}
	return st
}

// Step advances ms by one Trotter step and compresses it back to bond
// dimension maxD.
func (st *TrotterStepper) Step(ms []*tensor.Dense, maxD int, bufs [6]*tensor.Dense, options ...CompressOptions) error {
	applyGates(ms, st.evenHalf, bufs[:])
	applyGates(ms, st.oddFull, bufs[:])
	applyGates(ms, st.evenHalf, bufs[:])
	if err := Compress(ms, maxD, bufs, options...); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Evolve advances ms by the given number of Trotter steps of size dt under
// the bond Hamiltonians.
func Evolve(ms, bonds []*tensor.Dense, dt float64, steps, maxD int, bufs [6]*tensor.Dense, options ...CompressOptions) error {
	st := NewTrotterStepper(bonds, dt)
	for i := 0; i < steps; i++ {
		if err := st.Step(ms, maxD, bufs, options...); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", i))
		}
	}
	return nil
}

func applyGates(ms []*tensor.Dense, gates []gate, bufs []*tensor.Dense) {
	for _, g := range gates {
		applyGate(ms, g.bond, g.u, bufs)
	}
}

// applyGate applies a two site gate to the sites of bond b,
// splitting the result back into two sites with QR.
func applyGate(ms []*tensor.Dense, b int, u *tensor.Dense, bufs []*tensor.Dense) {
	mi, mj := ms[b], ms[b+1]
	dl, d1 := mi.Shape()[mpsLeftAxis], mi.Shape()[mpsUpAxis]
	d2, dr := mj.Shape()[mpsUpAxis], mj.Shape()[mpsRightAxis]

	// theta is of shape {left, s1, s2, right}.
	theta := tensor.Contract(bufs[0], mi, mj, [][2]int{{mpsRightAxis, mpsLeftAxis}})
	// utheta is of shape {s1', s2', left, right}.
	utheta := tensor.Contract(bufs[1], u, theta, [][2]int{{2, 1}, {3, 2}})
	// theta is of shape {left, s1', s2', right}.
	theta = resetCopy(bufs[0], utheta.Transpose(2, 0, 1, 3))

	// Split theta back into two sites.
	q := bufs[1]
	r := tensor.QR(q, theta.Reshape(dl*d1, d2*dr), [2]*tensor.Dense(bufs[2:4]))
	k := r.Shape()[0]
	ms[b] = resetCopy(ms[b], q).Reshape(dl, d1, k)
	ms[b+1] = resetCopy(ms[b+1], r).Reshape(k, d2, dr)
}

// CompressOptions are options for the variational MPS compression.
type CompressOptions struct {
	maxSweeps int
	tol       float32
}

// NewCompressOptions returns the default compression options.
func NewCompressOptions() CompressOptions {
	opt := CompressOptions{}
	opt.maxSweeps = 24
	opt.tol = 1e-5
	return opt
}

// MaxSweeps sets the maximum number of sweeps.
func (opt CompressOptions) MaxSweeps(n int) CompressOptions {
	opt.maxSweeps = n
	return opt
}

// Tol sets the tolerance on the fidelity change between sweeps.
func (opt CompressOptions) Tol(tol float32) CompressOptions {
	opt.tol = tol
	return opt
}

// Compress reduces the bond dimensions of ms to at most maxD by
// variationally maximizing the overlap with the uncompressed state.
// See Section 4.5.2 The variational compression method, Ulrich Schollwock.
func Compress(ms []*tensor.Dense, maxD int, bufs [6]*tensor.Dense, options ...CompressOptions) error {
	opt := NewCompressOptions()
	if len(options) > 0 {
		opt = options[0]
	}

	over := false
	for _, m := range ms[:len(ms)-1] {
		if m.Shape()[mpsRightAxis] > maxD {
			over = true
		}
	}
	if !over {
		return nil
	}

	// phi is the uncompressed target state.
	phi := make([]*tensor.Dense, len(ms))
	for i, m := range ms {
		phi[i] = resetCopy(tensor.Zeros(1), m)
	}
	phiIP := InnerProduct(phi, phi, [2]*tensor.Dense(bufs[:2]))
	if abs(phiIP) < epsilon {
		return errors.Errorf("%f", phiIP)
	}

	// Initial guess by discarding QR directions beyond maxD.
	truncate(ms, maxD, bufs[:])

	// ls[i] and rs[i] are the left and right environments of <ms|phi>.
	n := len(ms)
	ls := make([]*tensor.Dense, n)
	rs := make([]*tensor.Dense, n)
	for i := range ls {
		ls[i] = tensor.Zeros(1)
		rs[i] = tensor.Zeros(1)
	}
	rightNormalizeAll(ms, bufs[:3])
	rnext := ones(bufs[4], 1, 1)
	for i := n - 1; i >= 1; i-- {
		rnext = overlapREnv(rs[i], rnext, ms[i], phi[i], bufs[:2])
	}

	convergence := struct {
		ok       bool
		fidelity float32
	}{fidelity: -1}
	for sweep := 0; sweep < opt.maxSweeps; sweep++ {
		// Sweep rightwards.
		for l := 0; l < n-1; l++ {
			lPrev := ones(bufs[4], 1, 1)
			if l-1 >= 0 {
				lPrev = ls[l-1]
			}
			updateSite(ms, l, lPrev, rs[l+1], phi[l], bufs[:])
			leftNormalize(ms, l, bufs[:3])
			overlapLEnv(ls[l], lPrev, ms[l], phi[l], bufs[:2])
		}
		// Sweep leftwards.
		for l := n - 1; l >= 1; l-- {
			rNext := ones(bufs[4], 1, 1)
			if l+1 <= n-1 {
				rNext = rs[l+1]
			}
			updateSite(ms, l, ls[l-1], rNext, phi[l], bufs[:])
			rightNormalize(ms, l, bufs[:3])
			overlapREnv(rs[l], rNext, ms[l], phi[l], bufs[:2])
		}

		bufs2 := [2]*tensor.Dense(bufs[:2])
		psiIP := InnerProduct(ms, ms, bufs2)
		if abs(psiIP) < epsilon {
			return errors.Errorf("%f", psiIP)
		}
		overlap := InnerProduct(ms, phi, bufs2)
		fidelity := abs(overlap) * abs(overlap) / abs(psiIP) / abs(phiIP)
		if convergence.fidelity >= 0 && abs32(fidelity-convergence.fidelity) < opt.tol {
			convergence.ok = true
			convergence.fidelity = fidelity
			break
		}
		convergence.fidelity = fidelity
	}
	if !convergence.ok {
		return errors.Errorf("%#v", convergence)
	}
	return nil
}

// updateSite sets ms[l] to the overlap maximizing tensor lPrev @ phi[l] @ rNext.
// See Equation 104, Ulrich Schollwock.
func updateSite(ms []*tensor.Dense, l int, lPrev, rNext, phil *tensor.Dense, bufs []*tensor.Dense) {
	// lp is of shape {psiLeft, up, phiRight}.
	lp := tensor.Contract(bufs[0], lPrev, phil, [][2]int{{1, mpsLeftAxis}})
	// m is of shape {psiLeft, up, psiRight}.
	m := tensor.Contract(bufs[1], lp, rNext, [][2]int{{2, 1}})
	resetCopy(ms[l], m)
}

// overlapREnv contracts site i into the right environment of <psi|phi>.
// The environments are of shape {psiBond, phiBond}.
func overlapREnv(dst, rnext, psi, phi *tensor.Dense, bufs []*tensor.Dense) *tensor.Dense {
	// pr is of shape {phiLeft, up, psiLeft}.
	pr := tensor.Contract(bufs[0], phi, rnext, [][2]int{{mpsRightAxis, 1}})
	return tensor.Contract(dst, psi.Conj(), pr, [][2]int{{mpsUpAxis, 1}, {mpsRightAxis, 2}})
}

// overlapLEnv contracts site i into the left environment of <psi|phi>.
func overlapLEnv(dst, lprev, psi, phi *tensor.Dense, bufs []*tensor.Dense) *tensor.Dense {
	// lp is of shape {psiLeft, up, phiRight}.
	lp := tensor.Contract(bufs[0], lprev, phi, [][2]int{{1, mpsLeftAxis}})
	return tensor.Contract(dst, psi.Conj(), lp, [][2]int{{mpsLeftAxis, 0}, {mpsUpAxis, 1}})
}

// subspaceIters is the number of orthogonal iteration rounds used to seed
// a truncated bond.
const subspaceIters = 16

// truncate chops the bonds of ms to maxD as an initial guess for the
// variational sweeps. Bonds within the QR rank bound are cut exactly.
// Larger bonds keep the dominant subspace of the bond density matrix,
// found by orthogonal iteration, so that no weight is discarded that the
// sweeps cannot recover.
func truncate(ms []*tensor.Dense, maxD int, bufs []*tensor.Dense) {
	rightNormalizeAll(ms, bufs[:3])
	for i := 0; i < len(ms)-1; i++ {
		s := ms[i].Shape()
		dl, du, dr := s[mpsLeftAxis], s[mpsUpAxis], s[mpsRightAxis]

		q := bufs[0]
		var r *tensor.Dense
		var k int
		if min(dl*du, dr) <= maxD {
			r = tensor.QR(q, ms[i].Reshape(dl*du, dr), [2]*tensor.Dense(bufs[1:3]))
			k = r.Shape()[0]
		} else {
			k = maxD
			c := ms[i].Reshape(dl*du, dr)
			cc := resetCopy(bufs[5], c)
			// rho is the bond density matrix c @ c.H.
			rho := tensor.Contract(bufs[3], c, cc.Conj(), [][2]int{{1, 1}})

			tensor.QR(q, randTensor(dl*du, k), [2]*tensor.Dense(bufs[1:3]))
			for range subspaceIters {
				b := tensor.Contract(bufs[4], rho, q, [][2]int{{1, 0}})
				tensor.QR(q, b, [2]*tensor.Dense(bufs[1:3]))
			}

			// r = q.H @ c projects c onto the dominant subspace.
			r = tensor.Contract(bufs[4], q.Conj(), c, [][2]int{{0, 0}})
		}

		// ms[i+1] = r @ ms[i+1].
		next := tensor.Contract(bufs[3], r, ms[i+1], [][2]int{{1, mpsLeftAxis}})
		resetCopy(ms[i+1], next)

		ms[i] = resetCopy(ms[i], q).Reshape(dl, du, k)
	}
}

// expGate returns exp(c*h) of a two site Hamiltonian as a gate of shape
// {s1', s2', s1, s2}, using a scaled and squared series expansion.
func expGate(h *tensor.Dense, c complex128) *tensor.Dense {
	shape := h.Shape()
	if len(shape) != 2 || shape[0] != shape[1] {
		panic(fmt.Sprintf("%#v", shape))
	}
	d := shape[0]

	a := make([][]complex128, d)
	for i := range a {
		a[i] = make([]complex128, d)
		for j := 0; j < d; j++ {
			a[i][j] = c * complex128(h.At(i, j))
		}
	}

	// Scale down so that the series converges rapidly.
	var norm float64
	for i := range a {
		var s float64
		for j := range a[i] {
			s += cmplx.Abs(a[i][j])
		}
		if s > norm {
			norm = s
		}
	}
	squarings := 0
	for f := norm; f > 0.5; f /= 2 {
		squarings++
	}
	scale := complex(math.Pow(2, -float64(squarings)), 0)
	for i := range a {
		for j := range a[i] {
			a[i][j] *= scale
		}
	}

	e := eye128(d)
	term := eye128(d)
	for k := 1; k <= 24; k++ {
		term = matmul128(term, a)
		ck := complex(1/float64(k), 0)
		for i := range term {
			for j := range term[i] {
				term[i][j] *= ck
				e[i][j] += term[i][j]
			}
		}
	}
	for s := 0; s < squarings; s++ {
		e = matmul128(e, e)
	}

	u := tensor.Zeros(d, d)
	for i := range e {
		for j := range e[i] {
			u.SetAt([]int{i, j}, complex64(e[i][j]))
		}
	}
	return u.Reshape(2, d/2, 2, d/2)
}

func eye128(d int) [][]complex128 {
	m := make([][]complex128, d)
	for i := range m {
		m[i] = make([]complex128, d)
		m[i][i] = 1
	}
	return m
}

func matmul128(a, b [][]complex128) [][]complex128 {
	d := len(a)
	m := make([][]complex128, d)
	for i := range m {
		m[i] = make([]complex128, d)
		for j := 0; j < d; j++ {
			var s complex128
			for k := 0; k < d; k++ {
				s += a[i][k] * b[k][j]
			}
			m[i][j] = s
		}
	}
	return m
}

func zeros4() [][]complex64 {
	m := make([][]complex64, 4)
	for i := range m {
		m[i] = make([]complex64, 4)
	}
	return m
}

func kron2(a, b [][]complex64) [][]complex64 {
	m := zeros4()
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				for l := 0; l < 2; l++ {
					m[i*2+k][j*2+l] = a[i][j] * b[k][l]
				}
			}
		}
	}
	return m
}

func addScaled(dst [][]complex64, c complex64, m [][]complex64) {
	for i := range dst {
		for j := range dst[i] {
			dst[i][j] += c * m[i][j]
		}
	}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
