package commands

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"spinchain"
	"spinchain/mat"
	"spinchain/mps"
)

// exactMaxSpins is the largest chain for which the evolve command
// cross-checks against the exact propagator on the full Hilbert space.
const exactMaxSpins = 12

func evolveCmd() *cobra.Command {
	var model string
	var n int
	var h, j, delta float64
	var dt float64
	var steps int
	var bondDim int
	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Quench a product state and evolve it with Trotterized gates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return evolve(model, n, h, j, delta, dt, steps, bondDim)
		},
	}

	cmd.Flags().StringVar(&model, "model", modelIsing, "ising or xxz")
	cmd.Flags().IntVar(&n, "n", 10, "chain length")
	cmd.Flags().Float64Var(&h, "h", 1, "field strength")
	cmd.Flags().Float64Var(&j, "j", 1, "xxz exchange coupling")
	cmd.Flags().Float64Var(&delta, "delta", 1, "xxz anisotropy")
	cmd.Flags().Float64Var(&dt, "dt", 0.02, "time step")
	cmd.Flags().IntVar(&steps, "steps", 100, "number of time steps")
	cmd.Flags().IntVar(&bondDim, "bond-dim", 16, "maximum bond dimension")
	return cmd
}

func evolve(model string, n int, h, j, delta, dt float64, steps, bondDim int) error {
	kets := make([][]complex64, n)
	var bonds, ws []*tensor.Dense
	hamiltonian := mat.M([][]complex64{{0}})
	buf := mat.M([][]complex64{{0}})
	switch model {
	case modelIsing:
		// Quench the fully polarized state.
		for i := range kets {
			kets[i] = []complex64{1, 0}
		}
		bonds = mps.IsingBonds(n, complex(float32(h), 0))
		ws = mps.Ising(n, complex(float32(h), 0))
		if n <= exactMaxSpins {
			spinchain.TransverseFieldIsing(hamiltonian, buf, n, complex(float32(h), 0))
		}
	case modelXXZ:
		// Quench the Neel state.
		for i := range kets {
			if i%2 == 0 {
				kets[i] = []complex64{1, 0}
			} else {
				kets[i] = []complex64{0, 1}
			}
		}
		jc, dc, hc := complex(float32(j), 0), complex(float32(delta), 0), complex(float32(h), 0)
		bonds = mps.HeisenbergBonds(n, jc, dc, hc)
		ws = mps.Heisenberg(n, jc, dc, hc)
		if n <= exactMaxSpins {
			spinchain.Heisenberg(hamiltonian, buf, n, jc, dc, hc)
		}
	default:
		return errors.Errorf("unknown model %q", model)
	}
	ms := mps.ProductMPS(kets)
	mz := mps.MagnetizationZ(n)

	// Exact reference state, propagated alongside the MPS.
	var exact []complex128
	if n <= exactMaxSpins {
		vec := mps.StateVector(tensor.Zeros(1), mps.ProductMPS(kets), tensor.Zeros(1))
		exact = make([]complex128, 1<<n)
		for i := range exact {
			exact[i] = complex128(vec.At(i))
		}
	}

	fs := make([]*tensor.Dense, n)
	for i := range fs {
		fs[i] = tensor.Zeros(1)
	}
	var bufs [6]*tensor.Dense
	for i := range bufs {
		bufs[i] = tensor.Zeros(1)
	}
	bufs2 := [2]*tensor.Dense(bufs[:2])

	st := mps.NewTrotterStepper(bonds, dt)
	fmt.Printf("t,norm,energy,m,overlap\n")
	for step := 1; step <= steps; step++ {
		if err := st.Step(ms, bondDim, bufs); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", step))
		}

		psiIP := mps.InnerProduct(ms, ms, bufs2)
		norm := math.Sqrt(float64(real(psiIP)))
		energy := real(mps.LExpressions(fs, ws, ms, bufs2) / psiIP)
		m := real(mps.LExpressions(fs, mz, ms, bufs2)/psiIP) / float32(n)

		overlap := math.NaN()
		if exact != nil {
			if err := spinchain.Propagate(exact, hamiltonian.COO(), dt); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d", step))
			}
			vec := mps.StateVector(tensor.Zeros(1), ms, tensor.Zeros(1))
			var dot complex128
			for i := range exact {
				dot += cmplx.Conj(exact[i]) * complex128(vec.At(i))
			}
			overlap = cmplx.Abs(dot) / norm
		}

		fmt.Printf("%f,%f,%f,%f,%f\n", float64(step)*dt, norm, energy, m, overlap)
	}
	return nil
}
