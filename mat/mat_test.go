package mat

import (
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"testing"
)

func TestSlice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m *COO
		y [2]int
		x [2]int
		s *COO
	}{
		{
			m: M([][]complex64{
				{0, 1, 2, 3},
				{4, 5, 6, 7},
				{8, 9, 10, 11},
				{12, 13, 14, 15},
			}),
			y: [2]int{-3, -1},
			x: [2]int{0, 2},
			s: M([][]complex64{
				{4, 5},
				{8, 9},
			}),
		},
		{
			m: M([][]complex64{
				{0, 1, 2},
				{3, 4, 5},
			}),
			y: [2]int{1, 2},
			x: [2]int{-2, 3},
			s: M([][]complex64{
				{4, 5},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.m), func(t *testing.T) {
			t.Parallel()
			s := test.m.Slice(test.y, test.x)
			if !s.Equal(test.s) {
				t.Fatalf("%s, expected %s", s, test.s)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a          *COO
		c          complex64
		b          *COO
		z          *COO
		numNonZero int
	}{
		{
			a: M([][]complex64{
				{2, 0},
				{1i, 0},
			}),
			c: -2,
			b: M([][]complex64{
				{1, 0},
				{0, 3},
			}),
			z: M([][]complex64{
				{0, 0},
				{1i, -6},
			}),
			numNonZero: 2,
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.a), func(t *testing.T) {
			t.Parallel()
			test.a.Add(test.c, test.b)
			if !test.a.Equal(test.z) {
				t.Fatalf("%s, expected %s", test.a, test.z)
			}
			if len(test.a.Data) != test.numNonZero {
				t.Fatalf("%d, expected %d", len(test.a.Data), test.numNonZero)
			}
		})
	}
}

func TestMul(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a *COO
		b *COO
		c *COO
	}{
		{
			a: M([][]complex64{
				{0, 2},
				{-1, 3},
			}),
			b: M([][]complex64{
				{5, 0},
				{0, 2},
			}),
			c: M([][]complex64{
				{0, 0},
				{0, 6},
			}),
		},
		// Multiply scalar using broadcast.
		{
			a: M([][]complex64{
				{0, 3},
				{-1, 2},
			}),
			b: M([][]complex64{{1i}}),
			c: M([][]complex64{
				{0, 3i},
				{-1i, 2i},
			}),
		},
		// Multiply vector using broadcast.
		{
			a: M([][]complex64{
				{0, 3},
				{-1, 2},
			}),
			b: M([][]complex64{{-1}, {4}}),
			c: M([][]complex64{
				{0, -3},
				{-4, 8},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.a), func(t *testing.T) {
			t.Parallel()
			test.a.Mul(test.b)
			if !test.a.Equal(test.c) {
				t.Fatalf("%s, expected %s", test.a, test.c)
			}
		})
	}
}

func TestKron(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a *COO
		b *COO
		c *COO
	}{
		{
			a: M([][]complex64{
				{1, 2},
				{0, -3},
			}),
			b: M([][]complex64{
				{0, 1},
				{2, 0},
			}),
			c: M([][]complex64{
				{0, 1, 0, 2},
				{2, 0, 4, 0},
				{0, 0, 0, -3},
				{0, 0, -6, 0},
			}),
		},
		{
			a: M([][]complex64{
				{1i, -1},
			}),
			b: M([][]complex64{
				{2},
				{3},
			}),
			c: M([][]complex64{
				{2i, -2},
				{3i, -3},
			}),
		},
		// Scalar kronecker.
		{
			a: M([][]complex64{{1}}),
			b: M([][]complex64{
				{1, 2},
				{3, 4},
			}),
			c: M([][]complex64{
				{1, 2},
				{3, 4},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.a), func(t *testing.T) {
			t.Parallel()
			test.a.Kron(test.b)
			if !test.a.Equal(test.c) {
				t.Fatalf("%s, expected %s", test.a, test.c)
			}
		})
	}
}

func TestMulVec(t *testing.T) {
	t.Parallel()
	m := M([][]complex64{
		{1, 2},
		{3, 4i},
	})
	x := []complex128{1 + 1i, 2}
	dst := make([]complex128, 2)
	m.MulVec(dst, x)

	expected := []complex128{5 + 1i, 3 + 11i}
	for i, v := range dst {
		if cmplx.Abs(v-expected[i]) > 1e-6 {
			t.Fatalf("%d %v, expected %v", i, v, expected[i])
		}
	}
}

func TestMaxRowSum(t *testing.T) {
	t.Parallel()
	m := M([][]complex64{
		{1, -2, 0},
		{3i, 4, 0},
		{0, 0, -5},
	})
	if s := m.MaxRowSum(); math.Abs(s-7) > 1e-6 {
		t.Fatalf("%f", s)
	}
}

func TestWriteReadCOO(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m *COO
	}{
		{m: M([][]complex64{
			{5, 5, 0},
			{0, 5, 7},
		})},
		{m: M([][]complex64{
			{-1, 0, -1},
			{0, 2i, 0},
			{-1, 0, -1},
		})},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.m), func(t *testing.T) {
			t.Parallel()
			dir, err := os.MkdirTemp("", "")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer os.RemoveAll(dir)

			if err := test.m.WriteCOO(dir); err != nil {
				t.Fatalf("%+v", err)
			}
			read, err := ReadCOO(dir)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if !read.Equal(test.m) {
				t.Fatalf("%s, expected %s", read, test.m)
			}
		})
	}
}
