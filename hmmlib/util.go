package hmmlib

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// normalize the values in x to have a sum of 1.  If the sum is too small
// to divide by, every value is set to z.
func normalizeSum(x []float64, z float64) {
	scale := floats.Sum(x)
	if scale < 1e-300 {
		for j := range x {
			x[j] = z
		}
		return
	}
	floats.Scale(1/scale, x)
}

// argmax returns the index of the first maximum of x.
func argmax(x []float64) int {
	j := 0
	v := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > v {
			v = x[i]
			j = i
		}
	}

	return j
}

// clipLog returns the logarithm of each value of x after raising it to at
// least floor.  x is not modified.
func clipLog(x []float64, floor float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = math.Log(math.Max(v, floor))
	}
	return y
}

// makeIntArray makes a collection of r slices
// of length c, packed contiguously.
func makeIntArray(r, c int) [][]int {

	bka := make([]int, r*c)
	x := make([][]int, r)
	ii := 0
	for j := 0; j < r; j++ {
		x[j] = bka[ii : ii+c]
		ii += c
	}

	return x
}

// makeFloatArray makes a collection of r slices
// of length c, packed contiguously.
func makeFloatArray(r, c int) [][]float64 {

	bka := make([]float64, r*c)
	x := make([][]float64, r)
	ii := 0
	for j := 0; j < r; j++ {
		x[j] = bka[ii : ii+c]
		ii += c
	}

	return x
}
