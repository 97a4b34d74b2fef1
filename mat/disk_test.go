package mat

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskAdd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a          [][]complex64
		c          complex64
		b          [][]complex64
		z          *COO
		numNonZero int
	}{
		{
			a: [][]complex64{
				{2, 0},
				{1i, 0},
			},
			c: -2,
			b: [][]complex64{
				{1, 0},
				{0, 3},
			},
			z: M([][]complex64{
				{0, 0},
				{1i, -6},
			}),
			numNonZero: 2,
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.a), func(t *testing.T) {
			t.Parallel()
			dir, err := os.MkdirTemp("", "")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer os.RemoveAll(dir)

			a := DiskM(filepath.Join(dir, "a.db"), test.a)
			b := DiskM(filepath.Join(dir, "b.db"), test.b)

			a.Add(test.c, b)
			if !a.COO().Equal(test.z) {
				t.Fatalf("%s, expected %s", a.COO(), test.z)
			}
			if a.NumNonZero() != test.numNonZero {
				t.Fatalf("%d, expected %d", a.NumNonZero(), test.numNonZero)
			}
		})
	}
}

func TestDiskKron(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a [][]complex64
		b *COO
		c *COO
	}{
		{
			a: [][]complex64{
				{1, 2},
				{0, -3},
			},
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
			a: [][]complex64{{1}},
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
		t.Run(fmt.Sprintf("%v", test.a), func(t *testing.T) {
			t.Parallel()
			dir, err := os.MkdirTemp("", "")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer os.RemoveAll(dir)

			a := DiskM(filepath.Join(dir, "a.db"), test.a)
			a.Kron(test.b)
			if !a.COO().Equal(test.c) {
				t.Fatalf("%s, expected %s", a.COO(), test.c)
			}
		})
	}
}

func TestDiskWriteCOO(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)

	dense := [][]complex64{
		{5, 0, -1},
		{0, 2i, 0},
	}
	a := DiskM(filepath.Join(dir, "a.db"), dense)

	cooDir := filepath.Join(dir, "coo")
	if err := os.MkdirAll(cooDir, os.ModePerm); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := a.WriteCOO(cooDir); err != nil {
		t.Fatalf("%+v", err)
	}
	read, err := ReadCOO(cooDir)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !read.Equal(M(dense)) {
		t.Fatalf("%s, expected %s", read, M(dense))
	}
}
