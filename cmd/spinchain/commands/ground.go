package commands

import (
	"fmt"
	"log"
	"math/cmplx"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"spinchain/mps"
)

type groundConfig struct {
	model   string
	l       int
	h       float64
	j       float64
	delta   float64
	bondDim int
	tol     float32
}

type groundStatistics struct {
	cfg      groundConfig
	e0       float32
	m        float32
	variance float32
}

func groundCmd() *cobra.Command {
	var model string
	var sizes string
	var fields string
	var bondDims string
	var j, delta float64
	cmd := &cobra.Command{
		Use:   "ground",
		Short: "Scan ground states with the variational MPS eigensolver",
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := parseInts(sizes)
			if err != nil {
				return err
			}
			hs, err := parseFloats(fields)
			if err != nil {
				return err
			}
			bs, err := parseInts(bondDims)
			if err != nil {
				return err
			}

			configs := make([]groundConfig, 0)
			for _, l := range ls {
				for _, h := range hs {
					for _, b := range bs {
						cfg := groundConfig{model: model, l: l, h: h, j: j, delta: delta, bondDim: b}
						switch {
						case b <= 2:
							cfg.tol = 1e-4
						case b <= 4:
							cfg.tol = 1e-5
						default:
							cfg.tol = 1e-6
						}
						configs = append(configs, cfg)
					}
				}
			}

			statistics := make([]groundStatistics, 0, len(configs))
			for _, cfg := range configs {
				stat, err := solveGround(cfg)
				if err != nil {
					return errors.Wrap(err, fmt.Sprintf("%#v", cfg))
				}
				statistics = append(statistics, stat)
				log.Printf("%#v", stat)
			}

			fmt.Printf("model,l,h,b,e0,m,variance\n")
			for _, s := range statistics {
				fmt.Printf("%s,%d,%f,%d,%f,%f,%g\n", s.cfg.model, s.cfg.l, s.cfg.h, s.cfg.bondDim, s.e0, s.m, s.variance)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", modelIsing, "ising or xxz")
	cmd.Flags().StringVar(&sizes, "sizes", "25", "comma separated chain lengths")
	cmd.Flags().StringVar(&fields, "fields", "0.01,0.1,0.5,1,2,10", "comma separated field strengths")
	cmd.Flags().StringVar(&bondDims, "bond-dims", "2,4,8", "comma separated bond dimensions")
	cmd.Flags().Float64Var(&j, "j", 1, "xxz exchange coupling")
	cmd.Flags().Float64Var(&delta, "delta", 1, "xxz anisotropy")
	return cmd
}

func solveGround(cfg groundConfig) (groundStatistics, error) {
	var h []*tensor.Dense
	switch cfg.model {
	case modelIsing:
		h = mps.Ising(cfg.l, complex(float32(cfg.h), 0))
	case modelXXZ:
		h = mps.Heisenberg(cfg.l, complex(float32(cfg.j), 0), complex(float32(cfg.delta), 0), complex(float32(cfg.h), 0))
	default:
		return groundStatistics{}, errors.Errorf("unknown model %q", cfg.model)
	}
	mz := mps.MagnetizationZ(cfg.l)

	// Buffers.
	fs := make([]*tensor.Dense, 0, len(h))
	for _ = range h {
		fs = append(fs, tensor.Zeros(1))
	}
	bufs := make([]*tensor.Dense, 0)
	for _ = range 10 {
		bufs = append(bufs, tensor.Zeros(1))
	}

	// Search for ground state.
	state := mps.RandMPS(h, cfg.bondDim)
	opt := mps.NewSearchGroundStateOptions().Tol(cfg.tol)
	if err := mps.SearchGroundState(fs, h, state, [10]*tensor.Dense(bufs), opt); err != nil {
		return groundStatistics{}, errors.Wrap(err, "")
	}

	// Calculate statistics.
	bufs2 := [2]*tensor.Dense(bufs)
	psiIP := mps.InnerProduct(state, state, bufs2)
	e0 := mps.LExpressions(fs, h, state, bufs2) / psiIP
	variance := mps.EnergyVariance(fs, h, state, bufs2)
	// Calculate magnetization.
	m2 := mps.H2(mz, state, bufs2) / psiIP
	m := sqrt(m2) / complex(float32(len(state)), 0) // per spin

	return groundStatistics{cfg: cfg, e0: real(e0), m: real(m), variance: variance}, nil
}

func sqrt(x complex64) complex64 {
	return complex64(cmplx.Sqrt(complex128(x)))
}
