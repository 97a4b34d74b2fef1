// Package commands implements the spinchain CLI.
package commands

import (
	"log"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	modelIsing = "ising"
	modelXXZ   = "xxz"
)

var (
	runDir   string
	memLimit int64
)

func Execute() error {
	root := &cobra.Command{
		Use:   "spinchain",
		Short: "Quantum spin chain simulations",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)
			if memLimit > 0 {
				debug.SetMemoryLimit(memLimit)
			}
		},
	}

	root.PersistentFlags().StringVar(&runDir, "run-dir", filepath.Join("runs", "spinchain"), "run directory")
	root.PersistentFlags().Int64Var(&memLimit, "mem-limit", -1, "soft memory limit in bytes")

	root.AddCommand(exactCmd(), groundCmd(), evolveCmd())
	return root.Execute()
}

func parseInts(s string) ([]int, error) {
	out := make([]int, 0)
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, errors.Wrap(err, s)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	out := make([]float64, 0)
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrap(err, s)
		}
		out = append(out, v)
	}
	return out, nil
}
