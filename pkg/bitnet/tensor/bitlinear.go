package tensor

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/internal/math/utils"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/logging"
)

// BitLinear computes Y[b,o] = scale * sum_i X[b,i] * decode(W[o,i]), the
// ternary-weight projection with no bias (§4.2). The streaming host path
// is used for batch==1 and for the accelerator tag when the caller hasn't
// asked for the dequant-cache variant; BitLinearDequantCache below is the
// dense-GEMM path for batch>1 on the accelerator.
func BitLinear(x *DenseTensor, w *PackedTernaryTensor) (*DenseTensor, error) {
	if x == nil || w == nil {
		return nil, ErrNilTensor
	}
	xData, err := x.Data()
	if err != nil {
		return nil, err
	}
	shape := x.Shape()
	if len(shape) != 2 {
		return nil, ErrInvalidShape
	}
	batch, in := shape[0], shape[1]
	out, wIn := w.Shape()
	if in != wIn {
		return nil, ErrDimensionMismatch
	}

	logging.Debugf("BitLinear: batch=%d in=%d out=%d device=%s", batch, in, out, x.Device())

	result, err := Shared.Acquire(x.Dtype(), x.Device(), batch, out)
	if err != nil {
		return nil, err
	}

	numCPU := runtime.NumCPU()
	if numCPU < 1 {
		numCPU = 1
	}
	chunk := (out + numCPU - 1) / numCPU

	var wg sync.WaitGroup
	stride := w.ByteStride()
	codes := w.Codes()
	scale := w.Scale()

	for start := 0; start < out; start += chunk {
		end := int(utils.Min(int32(start+chunk), int32(out)))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for b := 0; b < batch; b++ {
				xb := xData[b*in : (b+1)*in]
				for o := start; o < end; o++ {
					row := codes[o*stride : (o+1)*stride]
					var acc float32
					for byteIdx, c := range row {
						base := byteIdx * 4
						// Branchless: acc += x*(code==+1) - x*(code==-1).
						for lane := 0; lane < 4; lane++ {
							code := (c >> uint(lane*2)) & 0x03
							v := xb[base+lane]
							var isPlus, isMinus float32
							if code == 0b01 {
								isPlus = 1
							} else if code == 0b10 {
								isMinus = 1
							}
							acc += v*isPlus - v*isMinus
						}
					}
					result.data[b*out+o] = acc * scale
				}
			}
		}(start, end)
	}
	wg.Wait()

	return result, nil
}

// BitLinearDequantCache materializes W to a dense float32 tile and runs a
// standard GEMM (gonum's blas32.Gemm) instead of streaming packed bytes.
// This is the accelerator's batch>1 path described in §4.2: it must match
// the streaming kernel's output up to floating reassociation tolerance,
// which the test suite checks directly against BitLinear.
func BitLinearDequantCache(x *DenseTensor, w *PackedTernaryTensor) (*DenseTensor, error) {
	if x == nil || w == nil {
		return nil, ErrNilTensor
	}
	xData, err := x.Data()
	if err != nil {
		return nil, err
	}
	shape := x.Shape()
	if len(shape) != 2 {
		return nil, ErrInvalidShape
	}
	batch, in := shape[0], shape[1]
	out, wIn := w.Shape()
	if in != wIn {
		return nil, ErrDimensionMismatch
	}

	dense, err := w.Dequantize() // already scaled, shape [out, in]
	if err != nil {
		return nil, err
	}

	// Y[batch,out] = X[batch,in] * W^T[in,out]
	wT := make([]float32, in*out)
	for o := 0; o < out; o++ {
		for i := 0; i < in; i++ {
			wT[i*out+o] = dense[o*in+i]
		}
	}

	result, err := Shared.Acquire(x.Dtype(), x.Device(), batch, out)
	if err != nil {
		return nil, err
	}

	A := blas32.General{Rows: batch, Cols: in, Data: xData, Stride: in}
	B := blas32.General{Rows: in, Cols: out, Data: wT, Stride: out}
	C := blas32.General{Rows: batch, Cols: out, Data: result.data, Stride: out}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, A, B, 0, C)

	return result, nil
}

// Dispatch picks the streaming kernel for batch==1 or host residency, and
// the dequant-cache GEMM path for batch>1 accelerator residency, per the
// "Dequant-cache variant" paragraph of §4.2. Callers that cross a
// DeviceMap boundary (an activation resident on one device feeding a
// layer whose weights were placed on another) are responsible for
// migrating x first, via Migrate — see Block.Forward, which does this
// once per layer rather than hiding it inside every kernel call.
func Dispatch(x *DenseTensor, w *PackedTernaryTensor) (*DenseTensor, error) {
	shape := x.Shape()
	if len(shape) == 2 && shape[0] > 1 && x.Device() == Accelerator {
		return BitLinearDequantCache(x, w)
	}
	return BitLinear(x, w)
}
