package tensor

import (
	"fmt"

	"github.com/brice-v/digitnet/internal/parallel"
)

// MatMul computes C = op(A) @ op(B) into c, where op transposes when the
// matching flag is set.
//
//	op(A): [m, k]   op(B): [k, n]   C: [m, n]
//
// With accumulate set the product is added to c instead of overwriting it,
// which is how weight gradients are summed across a batch.
//
// Rows of C are independent, so they are split across the parallel workers.
func MatMul(c, a, b []float32, m, k, n int, transA, transB, accumulate bool) {
	if len(a) < m*k || len(b) < k*n || len(c) < m*n {
		panic(fmt.Sprintf("tensor.MatMul: buffers too small for [%d,%d]x[%d,%d]", m, k, k, n))
	}

	parallel.For(m, func(i int) {
		row := c[i*n : (i+1)*n]
		if !accumulate {
			clear(row)
		}
		for p := 0; p < k; p++ {
			var av float32
			if transA {
				av = a[p*m+i]
			} else {
				av = a[i*k+p]
			}
			if av == 0 {
				continue
			}
			if transB {
				for j := 0; j < n; j++ {
					row[j] += av * b[j*k+p]
				}
			} else {
				br := b[p*n : (p+1)*n]
				for j, bv := range br {
					row[j] += av * bv
				}
			}
		}
	}, parallel.Default())
}
