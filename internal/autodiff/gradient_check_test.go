package autodiff_test

import (
	"math"
	"testing"

	"github.com/born-ml/drbm/internal/autodiff"
	"github.com/born-ml/drbm/internal/backend/cpu"
	"github.com/born-ml/drbm/internal/tensor"
	"gonum.org/v1/gonum/diff/fd"
)

type param struct {
	shape tensor.Shape
	data  []float64
}

type forwardFunc func(b adBackend, p []*tensor.Tensor[float64, adBackend]) *tensor.Tensor[float64, adBackend]

// checkGradients compares tape gradients of a scalar function against
// central finite differences.
func checkGradients(t *testing.T, params []param, forward forwardFunc) {
	t.Helper()

	backend := autodiff.New(cpu.New())
	build := func(flat []float64) []*tensor.Tensor[float64, adBackend] {
		out := make([]*tensor.Tensor[float64, adBackend], len(params))
		off := 0
		for i, p := range params {
			n := p.shape.NumElements()
			x, err := tensor.FromSlice(append([]float64(nil), flat[off:off+n]...), p.shape, backend)
			if err != nil {
				t.Fatal(err)
			}
			out[i] = x
			off += n
		}
		return out
	}

	var x0 []float64
	for _, p := range params {
		x0 = append(x0, p.data...)
	}

	backend.Tape().StartRecording()
	inputs := build(x0)
	out := forward(backend, inputs)
	grads := autodiff.Backward(out, backend)
	backend.Tape().StopRecording()
	backend.Tape().Clear()

	var analytic []float64
	for _, in := range inputs {
		g, ok := grads[in.Raw()]
		if !ok {
			analytic = append(analytic, make([]float64, in.NumElements())...)
			continue
		}
		if !g.Shape().Equal(in.Shape()) {
			t.Fatalf("gradient shape %v does not match parameter shape %v", g.Shape(), in.Shape())
		}
		analytic = append(analytic, g.AsFloat64()...)
	}

	f := func(x []float64) float64 {
		return forward(backend, build(x)).Item()
	}
	numeric := fd.Gradient(nil, f, x0, &fd.Settings{Formula: fd.Central})

	for i := range numeric {
		if math.Abs(numeric[i]-analytic[i]) > 1e-5*math.Max(1, math.Abs(numeric[i])) {
			t.Errorf("grad[%d]: tape %.8f, finite difference %.8f", i, analytic[i], numeric[i])
		}
	}
}

func TestGradientCheck_ArithmeticBroadcast(t *testing.T) {
	checkGradients(t, []param{
		{tensor.Shape{2, 3}, []float64{0.5, -1.2, 2.0, 0.3, 0.7, -0.4}},
		{tensor.Shape{3}, []float64{1.5, -2.0, 0.8}},
	}, func(_ adBackend, p []*tensor.Tensor[float64, adBackend]) *tensor.Tensor[float64, adBackend] {
		a, b := p[0], p[1]
		return a.Mul(b).Add(a.Div(b)).Sub(b.MulScalar(0.5).AddScalar(2)).Sum()
	})
}

func TestGradientCheck_LinearSigmoidLog(t *testing.T) {
	// v, W, b
	checkGradients(t, []param{
		{tensor.Shape{2, 3}, []float64{0.1, 0.2, -0.3, 0.4, -0.5, 0.6}},
		{tensor.Shape{4, 3}, []float64{0.1, -0.2, 0.3, 0.05, 0.2, -0.1, 0.3, 0.1, 0.2, -0.4, 0.1, 0.0}},
		{tensor.Shape{4}, []float64{0.1, -0.1, 0.2, 0}},
	}, func(_ adBackend, p []*tensor.Tensor[float64, adBackend]) *tensor.Tensor[float64, adBackend] {
		v, w, b := p[0], p[1], p[2]
		return v.MatMul(w.T()).Add(b).Sigmoid().Log().Sum()
	})
}

func TestGradientCheck_ClassPosteriorCrossEntropy(t *testing.T) {
	const batch, hidden, classes = 2, 3, 2

	// activations, U, c
	checkGradients(t, []param{
		{tensor.Shape{batch, hidden}, []float64{0.2, -0.4, 0.9, -1.1, 0.3, 0.5}},
		{tensor.Shape{classes, hidden}, []float64{0.05, -0.02, 0.1, 0.07, 0.01, -0.08}},
		{tensor.Shape{classes}, []float64{0.1, -0.2}},
	}, func(b adBackend, p []*tensor.Tensor[float64, adBackend]) *tensor.Tensor[float64, adBackend] {
		act, u, c := p[0], p[1], p[2]

		pre := act.Reshape(batch, 1, hidden).Add(u.Reshape(1, classes, hidden))
		score := pre.Softplus().SumDim(2, false).Add(c.Exp().Reshape(1, classes).Expand(batch, classes))
		probs := score.Div(score.SumDim(1, true))

		targets, _ := tensor.FromSlice([]int32{1, 0}, tensor.Shape{batch}, b)
		return tensor.New[float64](b.CrossEntropy(probs.Raw(), targets.Raw()), b)
	})
}

func TestGradientCheck_TransposeReshape(t *testing.T) {
	checkGradients(t, []param{
		{tensor.Shape{2, 3, 2}, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}},
		{tensor.Shape{2, 2, 3}, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 1.1, 1.2}},
	}, func(_ adBackend, p []*tensor.Tensor[float64, adBackend]) *tensor.Tensor[float64, adBackend] {
		x, w := p[0], p[1]
		// [2,3,2] -> [2,2,3] then elementwise with w, reduce over two dims.
		y := x.Transpose(0, 2, 1).Mul(w).Reshape(4, 3).MulScalar(0.1).Exp()
		return y.SumDim(0, false).Sum()
	})
}
