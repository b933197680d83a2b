package cpu

import (
	"fmt"

	"github.com/born-ml/drbm/internal/parallel"
	"github.com/born-ml/drbm/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y },
		func(x, y int32) int32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y },
		func(x, y int32) int32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y },
		func(x, y int32) int32 { return x * y })
}

// Div performs element-wise division with broadcasting.
// Integer division by zero panics.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y },
		func(x, y int32) int32 { return x / y })
}

func (cpu *CPUBackend) binary(
	op string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
	i32 func(x, y int32) int32,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := cpu.alloc(op, outShape, a.DType())
	switch a.DType() {
	case tensor.Float32:
		applyBinary(result, a, b, f32, cpu.par)
	case tensor.Float64:
		applyBinary(result, a, b, f64, cpu.par)
	case tensor.Int32:
		applyBinary(result, a, b, i32, cpu.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
	return result
}

func applyBinary[T tensor.DType](result, a, b *tensor.RawTensor, f func(x, y T) T, cfg parallel.Config) {
	out := view[T](result)
	av, bv := view[T](a), view[T](b)

	if a.Shape().Equal(b.Shape()) {
		parallel.For(len(out), cfg, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				out[i] = f(av[i], bv[i])
			}
		})
		return
	}

	outShape := result.Shape()
	outStrides := result.Strides()
	aShape, aStrides := a.Shape(), a.Strides()
	bShape, bStrides := b.Shape(), b.Strides()
	parallel.For(len(out), cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			ai := tensor.BroadcastIndex(i, outShape, outStrides, aShape, aStrides)
			bi := tensor.BroadcastIndex(i, outShape, outStrides, bShape, bStrides)
			out[i] = f(av[ai], bv[bi])
		}
	})
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.scalar("mulscalar", x, func(v float64) float64 { return v * scalar })
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.scalar("addscalar", x, func(v float64) float64 { return v + scalar })
}

func (cpu *CPUBackend) scalar(op string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := cpu.alloc(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		applyUnary[float32](result, x, f, cpu.par)
	case tensor.Float64:
		applyUnary[float64](result, x, f, cpu.par)
	case tensor.Int32:
		applyUnary[int32](result, x, f, cpu.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}
	return result
}

func applyUnary[T tensor.DType](result, x *tensor.RawTensor, f func(float64) float64, cfg parallel.Config) {
	out := view[T](result)
	in := view[T](x)
	parallel.For(len(out), cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = T(f(float64(in[i])))
		}
	})
}
