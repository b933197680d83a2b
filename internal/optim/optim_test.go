package optim_test

import (
	"math"
	"testing"

	"github.com/pkg/errors"

	"github.com/born-ml/drbm/internal/backend/cpu"
	"github.com/born-ml/drbm/internal/nn"
	"github.com/born-ml/drbm/internal/optim"
	"github.com/born-ml/drbm/internal/tensor"
)

type Backend = *cpu.CPUBackend

// floatEqual checks if two floats are approximately equal.
func floatEqual(a, b, tolerance float32) bool {
	return math.Abs(float64(a-b)) < float64(tolerance)
}

func newParam(t *testing.T, name string, values []float32, backend Backend) *nn.Parameter[Backend] {
	t.Helper()
	tt, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	return nn.NewParameter(name, tt)
}

func gradOf(values []float32, backend Backend) *tensor.RawTensor {
	tt, _ := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	return tt.Raw()
}

// TestSGDBasic tests basic SGD without momentum.
func TestSGDBasic(t *testing.T) {
	backend := cpu.New()
	p := newParam(t, "w", []float32{1.0, 2.0}, backend)

	opt := optim.NewSGD[Backend](optim.SGDConfig{LR: 0.1})
	if err := opt.AddParamGroup("base", []*nn.Parameter[Backend]{p}); err != nil {
		t.Fatalf("AddParamGroup: %v", err)
	}

	grads := map[*tensor.RawTensor]*tensor.RawTensor{
		p.Tensor().Raw(): gradOf([]float32{0.5, -1.0}, backend),
	}
	opt.Step(grads)

	// param = param - lr * grad
	want := []float32{0.95, 2.1}
	for i, v := range p.Tensor().Data() {
		if !floatEqual(v, want[i], 1e-6) {
			t.Errorf("param[%d] = %f, want %f", i, v, want[i])
		}
	}
	if p.Grad() == nil {
		t.Error("Step should store the applied gradient")
	}
}

// TestSGDMomentum tests velocity accumulation over two steps.
func TestSGDMomentum(t *testing.T) {
	backend := cpu.New()
	p := newParam(t, "w", []float32{1.0}, backend)

	opt := optim.NewSGD[Backend](optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	_ = opt.AddParamGroup("base", []*nn.Parameter[Backend]{p})

	grads := map[*tensor.RawTensor]*tensor.RawTensor{
		p.Tensor().Raw(): gradOf([]float32{1.0}, backend),
	}

	// Step 1: v = 1, p = 1 - 0.1 = 0.9
	opt.Step(grads)
	if got := p.Tensor().Data()[0]; !floatEqual(got, 0.9, 1e-6) {
		t.Errorf("after step 1: got %f, want 0.9", got)
	}

	// Step 2: v = 0.9 + 1 = 1.9, p = 0.9 - 0.19 = 0.71
	opt.Step(grads)
	if got := p.Tensor().Data()[0]; !floatEqual(got, 0.71, 1e-6) {
		t.Errorf("after step 2: got %f, want 0.71", got)
	}
}

// TestSGDWeightDecay tests that the L2 term is folded into the gradient.
func TestSGDWeightDecay(t *testing.T) {
	backend := cpu.New()
	p := newParam(t, "w", []float32{2.0}, backend)

	opt := optim.NewSGD[Backend](optim.SGDConfig{LR: 0.5, WeightDecay: 0.1})
	_ = opt.AddParamGroup("base", []*nn.Parameter[Backend]{p})

	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{
		p.Tensor().Raw(): gradOf([]float32{0}, backend),
	})

	// g = 0 + 0.1*2 = 0.2, p = 2 - 0.5*0.2 = 1.9
	if got := p.Tensor().Data()[0]; !floatEqual(got, 1.9, 1e-6) {
		t.Errorf("got %f, want 1.9", got)
	}
}

// TestSGDSkipsMissingGradients tests that parameters outside the graph are untouched.
func TestSGDSkipsMissingGradients(t *testing.T) {
	backend := cpu.New()
	a := newParam(t, "a", []float32{1.0}, backend)
	b := newParam(t, "b", []float32{3.0}, backend)

	opt := optim.NewSGD[Backend](optim.SGDConfig{LR: 1, Momentum: 0.5, WeightDecay: 0.1})
	_ = opt.AddParamGroup("base", []*nn.Parameter[Backend]{a, b})

	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{
		a.Tensor().Raw(): gradOf([]float32{0.5}, backend),
	})

	if got := b.Tensor().Data()[0]; got != 3.0 {
		t.Errorf("parameter without gradient changed: got %f", got)
	}
	if b.Grad() != nil {
		t.Error("parameter without gradient should have no grad")
	}
}

func TestParamGroups(t *testing.T) {
	backend := cpu.New()
	w := newParam(t, "w", []float32{1}, backend)
	u := newParam(t, "u", []float32{1}, backend)

	opt := optim.NewSGD[Backend](optim.SGDConfig{LR: 0.1})
	if err := opt.AddParamGroup("base", []*nn.Parameter[Backend]{w}); err != nil {
		t.Fatalf("AddParamGroup(base): %v", err)
	}
	if err := opt.AddParamGroup("classes", []*nn.Parameter[Backend]{u}); err != nil {
		t.Fatalf("AddParamGroup(classes): %v", err)
	}

	groups := opt.ParamGroups()
	if len(groups) != 2 || groups[0] != "base" || groups[1] != "classes" {
		t.Errorf("ParamGroups = %v, want [base classes]", groups)
	}

	if err := opt.AddParamGroup("base", nil); !errors.Is(err, optim.ErrDuplicateGroup) {
		t.Errorf("duplicate group: got %v, want ErrDuplicateGroup", err)
	}
	if err := opt.AddParamGroup("extra", []*nn.Parameter[Backend]{w}); !errors.Is(err, optim.ErrSharedParam) {
		t.Errorf("shared parameter: got %v, want ErrSharedParam", err)
	}
	if err := opt.ReplaceParamGroup("missing", nil); !errors.Is(err, optim.ErrUnknownGroup) {
		t.Errorf("unknown group: got %v, want ErrUnknownGroup", err)
	}
}

// TestReplaceParamGroupResetsVelocity tests that replaced parameters start fresh.
func TestReplaceParamGroupResetsVelocity(t *testing.T) {
	backend := cpu.New()
	u := newParam(t, "u", []float32{1.0}, backend)

	opt := optim.NewSGD[Backend](optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	_ = opt.AddParamGroup("classes", []*nn.Parameter[Backend]{u})
	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{
		u.Tensor().Raw(): gradOf([]float32{1.0}, backend),
	})

	fresh := newParam(t, "u", []float32{1.0}, backend)
	if err := opt.ReplaceParamGroup("classes", []*nn.Parameter[Backend]{fresh}); err != nil {
		t.Fatalf("ReplaceParamGroup: %v", err)
	}

	// Old parameter is no longer optimized.
	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{
		u.Tensor().Raw():     gradOf([]float32{1.0}, backend),
		fresh.Tensor().Raw(): gradOf([]float32{1.0}, backend),
	})
	if got := u.Tensor().Data()[0]; !floatEqual(got, 0.9, 1e-6) {
		t.Errorf("replaced parameter changed: got %f, want 0.9", got)
	}
	if got := fresh.Tensor().Data()[0]; !floatEqual(got, 0.9, 1e-6) {
		t.Errorf("fresh parameter: got %f, want 0.9", got)
	}
}

// TestSGDZeroGrad tests ZeroGrad clears gradients.
func TestSGDZeroGrad(t *testing.T) {
	backend := cpu.New()
	p := newParam(t, "w", []float32{1.0}, backend)

	opt := optim.NewSGD[Backend](optim.SGDConfig{LR: 0.1})
	_ = opt.AddParamGroup("base", []*nn.Parameter[Backend]{p})
	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{
		p.Tensor().Raw(): gradOf([]float32{1.0}, backend),
	})
	opt.ZeroGrad()

	if p.Grad() != nil {
		t.Error("ZeroGrad should clear the gradient")
	}
}

func TestSGDLearningRate(t *testing.T) {
	opt := optim.NewSGD[Backend](optim.SGDConfig{LR: 0.1})
	if got := opt.GetLR(); got != 0.1 {
		t.Errorf("GetLR = %f, want 0.1", got)
	}
	opt.SetLR(0.01)
	if got := opt.GetLR(); got != 0.01 {
		t.Errorf("GetLR after SetLR = %f, want 0.01", got)
	}

	var _ optim.Optimizer[Backend] = opt
}
