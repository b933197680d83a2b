// Package optim implements the gradient-descent optimizer shared by the
// energy models.
//
// Parameters are organised in named groups so that a model extending another
// one can register its own parameters with the optimizer it inherits:
//
//	opt := optim.NewSGD(optim.SGDConfig{LR: 0.01, Momentum: 0.9})
//	_ = opt.AddParamGroup("base", []*nn.Parameter[B]{w, a, b})
//	_ = opt.AddParamGroup("classes", []*nn.Parameter[B]{u, c})
//
//	for batch := range batches {
//	    opt.ZeroGrad()
//	    grads := autodiff.Backward(loss, backend)
//	    opt.Step(grads)
//	}
package optim

import (
	"github.com/pkg/errors"

	"github.com/born-ml/drbm/internal/nn"
	"github.com/born-ml/drbm/internal/tensor"
)

// Group error sentinels.
var (
	ErrDuplicateGroup = errors.New("optim: parameter group already exists")
	ErrUnknownGroup   = errors.New("optim: unknown parameter group")
	ErrSharedParam    = errors.New("optim: parameter already belongs to another group")
)

// Optimizer is the base interface for optimization algorithms.
type Optimizer[B tensor.Backend] interface {
	// Step applies gradient updates to every parameter that has a gradient
	// in grads; parameters absent from the map are left untouched.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// AddParamGroup registers a new named group of parameters.
	AddParamGroup(name string, params []*nn.Parameter[B]) error

	// ReplaceParamGroup swaps the parameters of an existing group and drops
	// any optimizer state kept for the old ones.
	ReplaceParamGroup(name string, params []*nn.Parameter[B]) error

	// ParamGroups returns the group names in registration order.
	ParamGroups() []string
}

// group is a named list of parameters.
type group[B tensor.Backend] struct {
	name   string
	params []*nn.Parameter[B]
}

// groups manages named parameter groups.
type groups[B tensor.Backend] struct {
	list []group[B]
}

func (g *groups[B]) index(name string) int {
	for i := range g.list {
		if g.list[i].name == name {
			return i
		}
	}
	return -1
}

func (g *groups[B]) owner(p *nn.Parameter[B]) string {
	for _, grp := range g.list {
		for _, q := range grp.params {
			if q == p {
				return grp.name
			}
		}
	}
	return ""
}

func (g *groups[B]) add(name string, params []*nn.Parameter[B]) error {
	if g.index(name) >= 0 {
		return errors.Wrapf(ErrDuplicateGroup, "group %q", name)
	}
	if err := g.checkFree(name, params); err != nil {
		return err
	}
	g.list = append(g.list, group[B]{name: name, params: append([]*nn.Parameter[B](nil), params...)})
	return nil
}

func (g *groups[B]) replace(name string, params []*nn.Parameter[B]) ([]*nn.Parameter[B], error) {
	i := g.index(name)
	if i < 0 {
		return nil, errors.Wrapf(ErrUnknownGroup, "group %q", name)
	}
	if err := g.checkFree(name, params); err != nil {
		return nil, err
	}
	old := g.list[i].params
	g.list[i].params = append([]*nn.Parameter[B](nil), params...)
	return old, nil
}

func (g *groups[B]) checkFree(name string, params []*nn.Parameter[B]) error {
	for _, p := range params {
		if p == nil {
			return errors.Errorf("optim: nil parameter in group %q", name)
		}
		if owner := g.owner(p); owner != "" && owner != name {
			return errors.Wrapf(ErrSharedParam, "parameter %q in groups %q and %q", p.Name(), owner, name)
		}
	}
	return nil
}

func (g *groups[B]) get(name string) []*nn.Parameter[B] {
	i := g.index(name)
	if i < 0 {
		return nil
	}
	return append([]*nn.Parameter[B](nil), g.list[i].params...)
}

func (g *groups[B]) names() []string {
	out := make([]string, len(g.list))
	for i, grp := range g.list {
		out[i] = grp.name
	}
	return out
}

func (g *groups[B]) each(f func(p *nn.Parameter[B])) {
	for _, grp := range g.list {
		for _, p := range grp.params {
			f(p)
		}
	}
}
