package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/drbm/internal/tensor"
)

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.floatUnary("exp", x, math.Exp)
}

// Log computes the natural logarithm element-wise.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.floatUnary("log", x, math.Log)
}

// Sigmoid computes 1 / (1 + e^-x) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.floatUnary("sigmoid", x, Sigmoid)
}

// Softplus computes log(1 + e^x) element-wise.
func (cpu *CPUBackend) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.floatUnary("softplus", x, Softplus)
}

func (cpu *CPUBackend) floatUnary(op string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := cpu.alloc(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		applyUnary[float32](result, x, f, cpu.par)
	case tensor.Float64:
		applyUnary[float64](result, x, f, cpu.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", op, x.DType()))
	}
	return result
}

// Sigmoid is the logistic function, evaluated without overflow for large |x|.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Softplus is log(1 + e^x) computed as max(x, 0) + log1p(e^-|x|).
func Softplus(x float64) float64 {
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}
