package tensor

import "sync"

// MatVec computes dst = w * x where x has length w.Cols and dst length
// w.Rows. Rows are split across at most threads goroutines; the per-row
// accumulation order does not depend on the split, so results are
// bit-identical for any thread count.
func MatVec(dst []float32, w *Mat, x []float32, threads int) {
	if w.Rows == 0 || w.Cols == 0 {
		return
	}
	if len(dst) < w.Rows || len(x) < w.Cols {
		panic("tensor: matvec shape mismatch")
	}

	if threads > w.Rows {
		threads = w.Rows
	}
	if threads <= 1 {
		matVecRange(dst, w, x, 0, w.Rows)
		return
	}

	chunk := (w.Rows + threads - 1) / threads
	var wg sync.WaitGroup
	for rs := 0; rs < w.Rows; rs += chunk {
		re := rs + chunk
		if re > w.Rows {
			re = w.Rows
		}
		wg.Add(1)
		go func(rs, re int) {
			defer wg.Done()
			matVecRange(dst, w, x, rs, re)
		}(rs, re)
	}
	wg.Wait()
}

func matVecRange(dst []float32, w *Mat, x []float32, rs, re int) {
	if w.DType == DTypeF32 {
		for r := rs; r < re; r++ {
			dst[r] = Dot(w.Data[r*w.Cols:(r+1)*w.Cols], x[:w.Cols])
		}
		return
	}
	row := make([]float32, w.Cols)
	for r := rs; r < re; r++ {
		w.RowTo(row, r)
		dst[r] = Dot(row, x[:w.Cols])
	}
}
