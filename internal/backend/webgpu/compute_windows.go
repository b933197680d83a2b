//go:build windows

package webgpu

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/born-ml/drbm/internal/tensor"
)

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	// Auto layout (nil layout)
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()

	return pipeline
}

// createBuffer creates a GPU buffer holding data.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), size), data)
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer padded to 16 bytes.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	alignedSize := (uint64(len(data)) + 15) &^ 15

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), alignedSize), data)
	buffer.Unmap()

	return buffer
}

// createResultBuffer creates an uninitialised storage buffer.
func (b *Backend) createResultBuffer(size uint64) *wgpu.Buffer {
	return b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
}

// readBuffer copies a storage buffer back to host memory through a staging
// buffer.
func (b *Backend) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	b.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, errors.Wrap(err, "failed to map staging buffer")
	}

	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mapped := unsafe.Slice((*byte)(mappedPtr), size)
	out := make([]byte, size)
	copy(out, mapped)
	staging.Unmap()

	return out, nil
}

// dispatch records one compute pass over entries and submits it.
func (b *Backend) dispatch(pipeline *wgpu.ComputePipeline, entries []wgpu.BindGroupEntry, x, y uint32) {
	bindGroup := b.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(x, y, 1)
	pass.End()

	b.queue.Submit(encoder.Finish(nil))
}

// runMatMul multiplies [M, K] by [K, N] float32 matrices on the GPU.
func (b *Backend) runMatMul(a, other *tensor.RawTensor) (*tensor.RawTensor, error) {
	//nolint:gosec // G115: shape dimensions are non-negative
	m, k, n := uint32(a.Shape()[0]), uint32(a.Shape()[1]), uint32(other.Shape()[1])

	pipeline := b.getOrCreatePipeline("matmul", b.compileShader("matmul", matmulShader))

	bufferA := b.createBuffer(a.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferA.Release()
	bufferOther := b.createBuffer(other.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferOther.Release()

	resultSize := uint64(m) * uint64(n) * 4
	bufferResult := b.createResultBuffer(resultSize)
	defer bufferResult.Release()

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], m)
	binary.LittleEndian.PutUint32(params[4:8], k)
	binary.LittleEndian.PutUint32(params[8:12], n)
	bufferParams := b.createUniformBuffer(params)
	defer bufferParams.Release()

	//nolint:gosec // G115: ByteSize() is non-negative
	b.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferA, 0, uint64(a.ByteSize())),
		wgpu.BufferBindingEntry(1, bufferOther, 0, uint64(other.ByteSize())),
		wgpu.BufferBindingEntry(2, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(3, bufferParams, 0, 16),
	}, uint32(math.Ceil(float64(n)/16)), uint32(math.Ceil(float64(m)/16)))

	data, err := b.readBuffer(bufferResult, resultSize)
	if err != nil {
		return nil, err
	}
	result, err := tensor.NewRaw(tensor.Shape{int(m), int(n)}, tensor.Float32, tensor.WebGPU)
	if err != nil {
		return nil, err
	}
	copy(result.Data(), data)
	return result, nil
}

// runUnaryOp applies an element-wise float32 shader to input.
func (b *Backend) runUnaryOp(input *tensor.RawTensor, name, code string) (*tensor.RawTensor, error) {
	pipeline := b.getOrCreatePipeline(name, b.compileShader(name, code))

	//nolint:gosec // G115: ByteSize() is non-negative
	size := uint64(input.ByteSize())
	bufferInput := b.createBuffer(input.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferInput.Release()
	bufferResult := b.createResultBuffer(size)
	defer bufferResult.Release()

	n := uint32(input.NumElements()) //nolint:gosec // G115: bounded by maxWorkgroups*256
	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], n)
	bufferParams := b.createUniformBuffer(params)
	defer bufferParams.Release()

	b.dispatch(pipeline, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferInput, 0, size),
		wgpu.BufferBindingEntry(1, bufferResult, 0, size),
		wgpu.BufferBindingEntry(2, bufferParams, 0, 16),
	}, (n+255)/256, 1)

	data, err := b.readBuffer(bufferResult, size)
	if err != nil {
		return nil, err
	}
	result, err := tensor.NewRaw(input.Shape().Clone(), tensor.Float32, tensor.WebGPU)
	if err != nil {
		return nil, err
	}
	copy(result.Data(), data)
	return result, nil
}
