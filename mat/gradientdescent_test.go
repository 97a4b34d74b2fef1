package mat

import (
	"math"
	"testing"
)

func TestGerschgorin(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m     *COO
		floor float32
	}{
		{
			m: M([][]complex64{
				{-3, 0, 0},
				{0, 1, 0},
				{0, 0, 2},
			}),
			floor: -3,
		},
		{
			m: M([][]complex64{
				{4, -1, 0},
				{-1, 0, 2},
				{0, 2, 1},
			}),
			floor: -3,
		},
	}
	for _, test := range tests {
		if floor := Gerschgorin(test.m); floor != test.floor {
			t.Fatalf("%f, expected %f", floor, test.floor)
		}
	}
}

func TestGroundPair(t *testing.T) {
	t.Parallel()
	m := M([][]complex64{
		{-3, 0, 0},
		{0, 1, 0},
		{0, 0, 2},
	})
	val, vec, err := GroundPair(m)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if math.Abs(float64(val)-(-3)) > 0.1 {
		t.Fatalf("%f", val)
	}
	// The eigenvector concentrates on the first coordinate.
	prob0 := float64(real(vec[0])*real(vec[0]) + imag(vec[0])*imag(vec[0]))
	if prob0 < 0.95 {
		t.Fatalf("%f %v", prob0, vec)
	}
}
