//go:build windows

package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/born-ml/drbm/internal/backend/cpu"
	"github.com/born-ml/drbm/internal/tensor"
)

// Backend runs matmul and softplus on the GPU and delegates the rest to the
// embedded CPU backend.
type Backend struct {
	*cpu.CPUBackend

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex
}

// New creates a new WebGPU backend.
// Returns ErrUnavailable if WebGPU is not available or initialization fails.
func New() (backend *Backend, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = errors.Wrapf(ErrUnavailable, "native library: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrapf(ErrUnavailable, "request adapter: %v", err)
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrapf(ErrUnavailable, "request device: %v", err)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(ErrUnavailable, "no queue")
	}

	return &Backend{
		CPUBackend: cpu.NewHost(tensor.WebGPU),
		instance:   instance,
		adapter:    adapter,
		device:     device,
		queue:      queue,
		shaders:    make(map[string]*wgpu.ShaderModule),
		pipelines:  make(map[string]*wgpu.ComputePipeline),
	}, nil
}

// IsAvailable reports whether a WebGPU device can be created.
func IsAvailable() bool {
	b, err := New()
	if err != nil {
		return false
	}
	b.Release()
	return true
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return backendName
}

// MatMul multiplies float32 matrices on the GPU. Other dtypes run on the CPU.
func (b *Backend) MatMul(a, other *tensor.RawTensor) *tensor.RawTensor {
	if a.DType() != tensor.Float32 || other.DType() != tensor.Float32 ||
		len(a.Shape()) != 2 || len(other.Shape()) != 2 ||
		a.Shape()[1] != other.Shape()[0] ||
		a.NumElements() == 0 || other.NumElements() == 0 {
		return b.CPUBackend.MatMul(a, other)
	}
	result, err := b.runMatMul(a, other)
	if err != nil {
		panic(fmt.Sprintf("matmul: %v", err))
	}
	return result
}

// Softplus computes log(1 + exp(x)) on the GPU for float32 tensors.
func (b *Backend) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	n := x.NumElements()
	if x.DType() != tensor.Float32 || n == 0 || (n+255)/256 > maxWorkgroups {
		return b.CPUBackend.Softplus(x)
	}
	result, err := b.runUnaryOp(x, "softplus", softplusShader)
	if err != nil {
		panic(fmt.Sprintf("softplus: %v", err))
	}
	return result
}

// Release releases all WebGPU resources.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, p := range b.pipelines {
		p.Release()
		delete(b.pipelines, name)
	}
	for name, s := range b.shaders {
		s.Release()
		delete(b.shaders, name)
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
