package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/drbm/internal/parallel"
	"github.com/born-ml/drbm/internal/tensor"
)

// Sum reduces all elements to a scalar tensor (shape []).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := cpu.alloc("sum", tensor.Shape{}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		var s float64
		for _, v := range x.AsFloat32() {
			s += float64(v)
		}
		result.AsFloat32()[0] = float32(s)
	case tensor.Float64:
		var s float64
		for _, v := range x.AsFloat64() {
			s += v
		}
		result.AsFloat64()[0] = s
	case tensor.Int32:
		var s int32
		for _, v := range x.AsInt32() {
			s += v
		}
		result.AsInt32()[0] = s
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}
	return result
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
//
// Example:
//
//	y := backend.SumDim(x, -1, true)   // [2, 3, 4] -> [2, 3, 1]
//	z := backend.SumDim(x, -1, false)  // [2, 3, 4] -> [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	if dim < -len(shape) || dim >= len(shape) {
		panic(fmt.Sprintf("sumdim: dimension %d out of range for %dD tensor", dim, len(shape)))
	}
	dim = shape.NormalizeDim(dim)

	result := cpu.alloc("sumdim", reducedShape(shape, dim, keepDim), x.DType())
	outer, size, inner := splitAt(shape, dim)

	switch x.DType() {
	case tensor.Float32:
		sumDim(view[float32](result), x.AsFloat32(), outer, size, inner, cpu.par)
	case tensor.Float64:
		sumDim(view[float64](result), x.AsFloat64(), outer, size, inner, cpu.par)
	case tensor.Int32:
		sumDim(view[int32](result), x.AsInt32(), outer, size, inner, cpu.par)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s", x.DType()))
	}
	return result
}

// Argmax returns the int32 index of the maximum along dim, with dim removed
// from the shape. The first maximum wins; NaN never wins.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < -len(shape) || dim >= len(shape) {
		panic(fmt.Sprintf("argmax: dimension %d out of range for %dD tensor", dim, len(shape)))
	}
	dim = shape.NormalizeDim(dim)

	result := cpu.alloc("argmax", reducedShape(shape, dim, false), tensor.Int32)
	outer, size, inner := splitAt(shape, dim)
	out := result.AsInt32()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in
			best := int32(0)
			bestVal := x.Float64At(base)
			for s := 1; s < size; s++ {
				v := x.Float64At(base + s*inner)
				if v > bestVal || (math.IsNaN(bestVal) && !math.IsNaN(v)) {
					best, bestVal = int32(s), v
				}
			}
			out[o*inner+in] = best
		}
	}
	return result
}

// splitAt decomposes shape around dim into (outer, size, inner) extents.
func splitAt(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[dim], inner
}

func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	for i, d := range shape {
		if i != dim {
			out = append(out, d)
		}
	}
	return out
}

// sumDim accumulates sequentially along the reduced axis so results do not
// depend on the worker count.
func sumDim[T tensor.DType](out, in []T, outer, size, inner int, cfg parallel.Config) {
	parallel.For(outer, cfg, func(lo, hi int) {
		for o := lo; o < hi; o++ {
			for i := 0; i < inner; i++ {
				var acc T
				base := o*size*inner + i
				for s := 0; s < size; s++ {
					acc += in[base+s*inner]
				}
				out[o*inner+i] = acc
			}
		}
	})
}
