package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"spinchain"
	"spinchain/mat"
)

const (
	fnameEigen      = "eig.csv"
	fnameDone       = "done.txt"
	fnameStatistics = "statistics.json"
)

type exactStatistics struct {
	model string
	n     int
	h     float64
	spinchain.Statistics
}

func exactCmd() *cobra.Command {
	var model string
	var sizes string
	var fields string
	var j, delta float64
	cmd := &cobra.Command{
		Use:   "exact",
		Short: "Scan ground states by sparse diagonalization on the full Hilbert space",
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := parseInts(sizes)
			if err != nil {
				return err
			}
			hs, err := parseFloats(fields)
			if err != nil {
				return err
			}

			for _, n := range ns {
				for _, h := range hs {
					dir := filepath.Join(runDir, model, strconv.Itoa(n), fmt.Sprintf("%f", h))
					if err := solveExact(dir, model, n, h, j, delta); err != nil {
						return errors.Wrap(err, fmt.Sprintf("%d %f", n, h))
					}
					log.Printf("%s %d %f", model, n, h)
				}
			}

			stats, err := gatherExact(filepath.Join(runDir, model), model)
			if err != nil {
				return err
			}
			fmt.Printf("model,n,h,e0,e1,e2,m,binder\n")
			for _, s := range stats {
				fmt.Printf("%s,%d,%f,%f,%f,%f,%f,%f\n", s.model, s.n, s.h, s.EigenValue[0], s.EigenValue[1], s.EigenValue[2], s.Magnetization, s.BinderCumulant)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", modelIsing, "ising or xxz")
	cmd.Flags().StringVar(&sizes, "sizes", "4,8,12", "comma separated chain lengths")
	cmd.Flags().StringVar(&fields, "fields", "0.01,0.1,0.5,1,2,10", "comma separated field strengths")
	cmd.Flags().Float64Var(&j, "j", 1, "xxz exchange coupling")
	cmd.Flags().Float64Var(&delta, "delta", 1, "xxz anisotropy")
	return cmd
}

func solveExact(dir, model string, n int, h, j, delta float64) error {
	donePath := filepath.Join(dir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	tmpDir, err := os.MkdirTemp("", "")
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer os.RemoveAll(tmpDir)

	switch model {
	case modelIsing:
		err = spinchain.TransverseFieldIsingExplicit(tmpDir, n, complex(float32(h), 0))
	case modelXXZ:
		err = spinchain.HeisenbergExplicit(tmpDir, n, complex(float32(j), 0), complex(float32(delta), 0), complex(float32(h), 0))
	default:
		err = errors.Errorf("unknown model %q", model)
	}
	if err != nil {
		return errors.Wrap(err, "")
	}
	vvs := mat.EigsDir(tmpDir)

	if err := writeEig(dir, vvs); err != nil {
		return errors.Wrap(err, "")
	}

	stats, err := spinchain.GetStatistics(n, vvs)
	if err != nil {
		return errors.Wrap(err, "")
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(filepath.Join(dir, fnameStatistics), b, 0644); err != nil {
		return errors.Wrap(err, "")
	}

	if err := os.WriteFile(donePath, nil, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func gatherExact(dir, model string) ([]exactStatistics, error) {
	stats := make([]exactStatistics, 0)
	nEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	for _, nent := range nEntries {
		n, err := strconv.Atoi(nent.Name())
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", nent))
		}

		ndir := filepath.Join(dir, nent.Name())
		hEntries, err := os.ReadDir(ndir)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", nent))
		}
		for _, hent := range hEntries {
			h, err := strconv.ParseFloat(hent.Name(), 64)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", nent, hent))
			}

			sb, err := os.ReadFile(filepath.Join(ndir, hent.Name(), fnameStatistics))
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", nent, hent))
			}
			s := exactStatistics{model: model, n: n, h: h}
			if err := json.Unmarshal(sb, &s.Statistics); err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", nent, hent))
			}
			stats = append(stats, s)
		}
	}
	return stats, nil
}

func writeEig(dir string, vvs []mat.ValVec) error {
	fpath := filepath.Join(dir, fnameEigen)
	f, err := os.Create(fpath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)

	row := make([]string, len(vvs))
	for j, vv := range vvs {
		row[j] = strconv.FormatComplex(vv.Val, 'f', -1, 128)
	}
	if err1 := w.Write(row); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	for i := range len(vvs[0].Vec) {
		for j, vv := range vvs {
			row[j] = strconv.FormatComplex(vv.Vec[i], 'f', -1, 128)
		}
		if err1 := w.Write(row); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
			break
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
