// Package cpu implements the CPU backend: pure Go kernels with gonum BLAS for
// matrix multiplication.
package cpu

import (
	"fmt"

	"github.com/born-ml/drbm/internal/parallel"
	"github.com/born-ml/drbm/internal/tensor"
)

// CPUBackend implements tensor operations on the host.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return NewHost(tensor.CPU)
}

// NewHost creates a CPU backend whose results are tagged with device.
// Accelerated backends use it for the operations they run on the host.
func NewHost(device tensor.Device) *CPUBackend {
	return &CPUBackend{
		device: device,
		par:    parallel.DefaultConfig(),
	}
}

// SetParallel replaces the intra-op parallelism settings.
func (cpu *CPUBackend) SetParallel(cfg parallel.Config) {
	cpu.par = cfg
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

// view returns a typed slice over r.
func view[T tensor.DType](r *tensor.RawTensor) []T {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return any(r.AsFloat32()).([]T)
	case float64:
		return any(r.AsFloat64()).([]T)
	case int32:
		return any(r.AsInt32()).([]T)
	default:
		panic("unsupported type")
	}
}
