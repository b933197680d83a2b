package optim

import (
	"fmt"

	"github.com/born-ml/drbm/internal/nn"
	"github.com/born-ml/drbm/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum and
// L2 weight decay.
//
// Update rule:
//
//	g = gradient + weight_decay * param
//	velocity = momentum * velocity + g
//	param = param - lr * velocity
//
// With momentum 0 this reduces to param -= lr * g.
type SGD[B tensor.Backend] struct {
	groups      groups[B]
	lr          float32
	momentum    float32
	weightDecay float32
	velocities  map[*nn.Parameter[B]][]float32
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float32 // Learning rate
	Momentum    float32 // Momentum factor, range [0, 1)
	WeightDecay float32 // L2 penalty
}

// NewSGD creates an SGD optimizer with no parameter groups.
func NewSGD[B tensor.Backend](config SGDConfig) *SGD[B] {
	return &SGD[B]{
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter[B]][]float32),
	}
}

// AddParamGroup registers a new named group of parameters.
func (s *SGD[B]) AddParamGroup(name string, params []*nn.Parameter[B]) error {
	return s.groups.add(name, params)
}

// ReplaceParamGroup swaps the parameters of an existing group.
func (s *SGD[B]) ReplaceParamGroup(name string, params []*nn.Parameter[B]) error {
	old, err := s.groups.replace(name, params)
	if err != nil {
		return err
	}
	kept := make(map[*nn.Parameter[B]]bool, len(params))
	for _, p := range params {
		kept[p] = true
	}
	for _, p := range old {
		if !kept[p] {
			delete(s.velocities, p)
		}
	}
	return nil
}

// ParamGroups returns the group names in registration order.
func (s *SGD[B]) ParamGroups() []string {
	return s.groups.names()
}

// Group returns the parameters of the named group, or nil if it does not exist.
func (s *SGD[B]) Group(name string) []*nn.Parameter[B] {
	return s.groups.get(name)
}

// Step performs a single optimization step.
// Parameters with no gradient (not in the computational graph) are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	s.groups.each(func(p *nn.Parameter[B]) {
		grad, ok := grads[p.Tensor().Raw()]
		if !ok || grad == nil {
			return
		}
		s.update(p, grad)
	})
}

func (s *SGD[B]) update(p *nn.Parameter[B], grad *tensor.RawTensor) {
	if !grad.Shape().Equal(p.Shape()) {
		panic(fmt.Sprintf("sgd: gradient shape %v does not match parameter %q shape %v", grad.Shape(), p.Name(), p.Shape()))
	}

	p.SetGrad(tensor.New[float32, B](grad, p.Tensor().Backend()))
	data := p.Tensor().Data()
	g := grad.AsFloat32()

	if s.momentum == 0 {
		for i := range data {
			data[i] -= s.lr * (g[i] + s.weightDecay*data[i])
		}
		return
	}

	v, ok := s.velocities[p]
	if !ok {
		v = make([]float32, len(data))
		s.velocities[p] = v
	}
	for i := range data {
		v[i] = s.momentum*v[i] + g[i] + s.weightDecay*data[i]
		data[i] -= s.lr * v[i]
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	s.groups.each(func(p *nn.Parameter[B]) {
		p.ZeroGrad()
	})
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}
