package mat

import (
	"cmp"
	"container/ring"
	"log"
	"math"
	"math/cmplx"
	"math/rand"
	"slices"
	"time"

	"github.com/pkg/errors"

	"spinchain/mat/util"
)

// GroundPairOptions are options for the stochastic gradient eigenpair search.
type GroundPairOptions struct {
	maxEpochs int
	tol       float64
}

// NewGroundPairOptions returns the default search options.
func NewGroundPairOptions() GroundPairOptions {
	opt := GroundPairOptions{}
	opt.maxEpochs = 1 << 16
	opt.tol = 1e-3
	return opt
}

// MaxEpochs sets the epoch budget.
func (opt GroundPairOptions) MaxEpochs(n int) GroundPairOptions {
	opt.maxEpochs = n
	return opt
}

// Tol sets the tolerance on the mean diagonalization residual.
func (opt GroundPairOptions) Tol(tol float64) GroundPairOptions {
	opt.tol = tol
	return opt
}

// GroundPair searches the smallest eigenpair of m by stochastic gradient
// descent on the residual |Av - lambda*v|, starting lambda from the
// Gerschgorin lower bound. It serves as an in-process cross-check on the
// dense gonum and sparse scipy paths.
func GroundPair(m *COO, options ...GroundPairOptions) (float32, []complex64, error) {
	opt := NewGroundPairOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	floor := Gerschgorin(m)
	return groundPair(m, floor, opt)
}

func groundPair(m *COO, floor float32, opt GroundPairOptions) (float32, []complex64, error) {
	var lambda float64 = float64(floor)
	vecRe := make([]float64, m.cols)
	vecIm := make([]float64, m.cols)
	for i := range vecRe {
		vecRe[i] = rand.Float64()
		vecIm[i] = rand.Float64()
	}
	var lambdaGrad float64
	vecReGrad := make([]float64, len(vecRe))
	vecImGrad := make([]float64, len(vecIm))

	byRow := make(map[int][]entry)
	for _, v := range m.Data {
		byRow[v.row] = append(byRow[v.row], v)
	}
	// Sampling a row more than once per batch amplifies its gradient.
	batchSize := min(256, m.cols)
	data := newBatcher(m.cols, batchSize)

	lossFn := func() float64 {
		lambdaGrad = 0
		for i := range vecReGrad {
			vecReGrad[i] = 0
		}
		for i := range vecImGrad {
			vecImGrad[i] = 0
		}

		// L1 residual of (A - lambda*I)v over the sampled rows.
		var loss float64
		iBatch := data.get()
		for _, i := range iBatch {
			reVi, imVi := vecRe[i], vecIm[i]
			var reAvLv, imAvLv float64
			for _, aijV := range byRow[i] {
				j, aij := aijV.col, aijV.v
				reVj, imVj := vecRe[j], vecIm[j]

				reAvLv += float64(real(aij))*reVj - float64(imag(aij))*imVj
				imAvLv += float64(real(aij))*imVj + float64(imag(aij))*reVj
			}
			reAvLv += -lambda * reVi
			imAvLv += -lambda * imVi

			if reAvLv > 0 {
				loss += reAvLv
				lambdaGrad += -reVi
				vecReGrad[i] += -lambda
				for _, aijV := range byRow[i] {
					j, aij := aijV.col, aijV.v
					vecReGrad[j] += float64(real(aij))
					vecImGrad[j] += -float64(imag(aij))
				}
			} else {
				loss += -reAvLv
				lambdaGrad += reVi
				vecReGrad[i] += lambda
				for _, aijV := range byRow[i] {
					j, aij := aijV.col, aijV.v
					vecReGrad[j] += -float64(real(aij))
					vecImGrad[j] += float64(imag(aij))
				}
			}
			if imAvLv > 0 {
				loss += imAvLv
				lambdaGrad += -imVi
				vecImGrad[i] += -lambda
				for _, aijV := range byRow[i] {
					j, aij := aijV.col, aijV.v
					vecReGrad[j] += float64(imag(aij))
					vecImGrad[j] += float64(real(aij))
				}
			} else {
				loss += -imAvLv
				lambdaGrad += imVi
				vecImGrad[i] += lambda
				for _, aijV := range byRow[i] {
					j, aij := aijV.col, aijV.v
					vecReGrad[j] += -float64(imag(aij))
					vecImGrad[j] += -float64(real(aij))
				}
			}
		}

		return loss
	}

	throttler := util.NewSkipThrottler(60 * time.Second)
	epochIters := (m.rows / len(data.batch)) + 1
	step := newStepSize()
	converged := false
	for epoch := 0; epoch < opt.maxEpochs; epoch++ {
		var residual float64
		for i := 0; i < epochIters; i++ {
			loss := lossFn()
			lambda -= step.v * lambdaGrad
			for j := range vecReGrad {
				vecRe[j] -= step.v * vecReGrad[j]
				vecIm[j] -= step.v * vecImGrad[j]
			}

			residual += loss / float64(len(data.batch))
		}

		residual /= float64(epochIters)
		step.adjust(residual)
		lossOK := residual < opt.tol
		if throttler.Ok() || lossOK {
			log.Printf("%d %f %f", epoch, residual, lambda)
		}
		if lossOK {
			converged = true
			break
		}
	}
	if !converged {
		return 0, nil, errors.Errorf("no convergence in %d epochs", opt.maxEpochs)
	}

	vec := make([]complex64, 0, len(vecRe))
	for i, reVi := range vecRe {
		vec = append(vec, complex64(complex(reVi, vecIm[i])))
	}
	// Make the first nonzero entry real.
	var c complex64 = complex(1, 0)
	for _, v := range vec {
		if abs(v) > 1e-6 {
			c = v
			break
		}
	}
	for i := range vec {
		vec[i] /= c
	}
	// Normalize.
	var norm float32
	for _, v := range vec {
		norm += real(v)*real(v) + imag(v)*imag(v)
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= complex(norm, 0)
	}
	return float32(lambda), vec, nil
}

type stepSize struct {
	v    float64
	loss *ring.Ring
}

func newStepSize() *stepSize {
	a := &stepSize{loss: ring.New(100)}
	a.adjust(math.MaxFloat64)

	for i := 0; i < a.loss.Len(); i++ {
		a.loss.Value = math.MaxFloat64 / float64(a.loss.Len()) / 10
		a.loss = a.loss.Next()
	}

	return a
}

func (a *stepSize) adjust(loss float64) {
	a.loss.Value = loss
	a.loss = a.loss.Next()

	switch {
	case loss < 0.0007:
		a.v = 1e-7
	case loss < 0.003:
		a.v = 1e-6
	case loss < 0.007:
		a.v = 7e-6
	case loss < 0.07:
		a.v = 1e-5
	case loss < 0.3:
		a.v = 1e-4
	default:
		a.v = 1e-3
	}
}

type batcher struct {
	indices []int
	ptr     int

	batch []int
}

func newBatcher(n, batchSize int) *batcher {
	b := &batcher{
		indices: make([]int, n),
		batch:   make([]int, batchSize),
	}

	for i := 0; i < n; i++ {
		b.indices[i] = i
	}
	b.shuffle()
	b.ptr = -1

	return b
}

func (b *batcher) get() []int {
	for i := range b.batch {
		b.ptr++
		if b.ptr >= len(b.indices) {
			b.shuffle()
			b.ptr = 0
		}
		b.batch[i] = b.indices[b.ptr]
	}
	return b.batch
}

func (b *batcher) shuffle() {
	rand.Shuffle(len(b.indices), func(i, j int) {
		b.indices[i], b.indices[j] = b.indices[j], b.indices[i]
	})
}

// Gerschgorin returns a lower bound on the eigenvalues of m.
// Theorem A3, Bounds for the eigenvalues of a matrix, Kenneth R. Garren.
func Gerschgorin(m *COO) float32 {
	type circle struct {
		center complex64
		radius float32
	}
	circles := make([]circle, 0, m.rows)

	var curRow int = m.Data[0].row
	var curCenter complex64
	var curRadius float32
	for _, v := range m.Data {
		if v.row != curRow {
			c := circle{center: curCenter, radius: curRadius}
			circles = append(circles, c)

			curRow = v.row
			curCenter = 0
			curRadius = 0
		}

		if v.row == v.col {
			curCenter = v.v
		} else {
			curRadius += abs(v.v)
		}
	}
	// Last current row.
	c := circle{center: curCenter, radius: curRadius}
	circles = append(circles, c)

	cMin := func(c circle) float32 {
		return real(c.center) - c.radius
	}
	slices.SortFunc(circles, func(a, b circle) int {
		return cmp.Compare(cMin(a), cMin(b))
	})
	return cMin(circles[0])
}

func abs(c complex64) float32 {
	return float32(cmplx.Abs(complex128(c)))
}
