package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations and panic on
// programmer errors such as shape or dtype mismatches.
//
// Implementations:
//   - cpu: pure Go, gonum BLAS for matrix multiplication
//   - webgpu: GPU matrix multiplication, everything else on the host
//   - autodiff: decorator recording operations for backpropagation
type Backend interface {
	// Element-wise binary operations with broadcasting
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2-D matrices: (M, K) @ (K, N) → (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Expand(t *RawTensor, shape Shape) *RawTensor // broadcast to shape

	// Scalar operations
	MulScalar(x *RawTensor, scalar float64) *RawTensor
	AddScalar(x *RawTensor, scalar float64) *RawTensor

	// Element-wise math
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Softplus(x *RawTensor) *RawTensor // log(1 + exp(x)), numerically stable

	// Reductions
	Sum(x *RawTensor) *RawTensor                           // total sum (scalar result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor // sum along dimension
	Argmax(x *RawTensor, dim int) *RawTensor               // int32 indices, first maximum wins

	// Metadata
	Name() string
	Device() Device
}
