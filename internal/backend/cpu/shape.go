package cpu

import (
	"fmt"

	"github.com/born-ml/drbm/internal/tensor"
)

// Reshape returns a copy of t with a new shape of the same element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	if newShape.NumElements() != t.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}
	return t.Clone().View(newShape).WithDevice(cpu.device)
}

// Transpose permutes dimensions. With no axes, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", ndim, len(axes)))
	}

	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid permutation %v for %dD tensor", axes, ndim))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	result := cpu.alloc("transpose", outShape, t.DType())
	switch t.DType() {
	case tensor.Float32:
		permute(view[float32](result), t.AsFloat32(), shape, outShape, axes)
	case tensor.Float64:
		permute(view[float64](result), t.AsFloat64(), shape, outShape, axes)
	case tensor.Int32:
		permute(view[int32](result), t.AsInt32(), shape, outShape, axes)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}
	return result
}

func permute[T tensor.DType](out, in []T, inShape, outShape tensor.Shape, axes []int) {
	inStrides := inShape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	for flat := range out {
		rem := flat
		src := 0
		for d := range outShape {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			src += coord * inStrides[axes[d]]
		}
		out[flat] = in[src]
	}
}

// Expand broadcasts the tensor to a new shape.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	xShape := x.Shape()
	if len(newShape) < len(xShape) {
		panic(fmt.Sprintf("expand: new shape %v has fewer dimensions than input shape %v", newShape, xShape))
	}

	offset := len(newShape) - len(xShape)
	for i, xDim := range xShape {
		if xDim != 1 && xDim != newShape[offset+i] {
			panic(fmt.Sprintf("expand: cannot expand dimension %d from %d to %d", i, xDim, newShape[offset+i]))
		}
	}

	result := cpu.alloc("expand", newShape, x.DType())
	switch x.DType() {
	case tensor.Float32:
		expand(view[float32](result), x.AsFloat32(), result, x)
	case tensor.Float64:
		expand(view[float64](result), x.AsFloat64(), result, x)
	case tensor.Int32:
		expand(view[int32](result), x.AsInt32(), result, x)
	default:
		panic(fmt.Sprintf("expand: unsupported dtype %s", x.DType()))
	}
	return result
}

func expand[T tensor.DType](out, in []T, result, x *tensor.RawTensor) {
	outShape, outStrides := result.Shape(), result.Strides()
	xShape, xStrides := x.Shape(), x.Strides()
	for i := range out {
		out[i] = in[tensor.BroadcastIndex(i, outShape, outStrides, xShape, xStrides)]
	}
}
