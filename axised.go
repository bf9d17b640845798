package gufunc

import (
	"k8s.io/klog/v2"
	"pgregory.net/rapid"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gufunc/internal/utils"
	"github.com/gomlx/gufunc/types/tensors"
	"github.com/pkg/errors"
)

// AxisFunc is a function under test that operates along one axis of its
// first argument, numpy style: a nil axis means the first argument is
// flattened to 1-D before the function applies.
type AxisFunc func(axis *int, args ...*tensors.Tensor) ([]*tensors.Tensor, error)

// AxisCase is one drawn axis test case. Args[0] carries the core dimension
// at position Axis plus extra broadcast dimensions; the remaining arguments
// have exactly their core shapes. Fn is the function under test and Axised
// its wrapper that handles any axis by looping Fn over 1-D slices.
//
// A nil Axis (drawn only with Config.WithAllowNone) asks for the flattened
// application. The property to check is that Fn and Axised agree on
// (Axis, Args) for functions that handle axes natively.
type AxisCase struct {
	Fn     AxisFunc
	Axised AxisFunc
	Args   []*tensors.Tensor
	Axis   *int
}

// Axised returns a generator of axis test cases for fn. The signature's
// first input must be 1-D, for instance "(n),(m)->(n)"; it is the argument
// the axis applies to. Each draw generates the first argument with extra
// leading dimensions, moves its core dimension to a drawn axis position, and
// generates every other argument with exactly its core shape.
//
// The wrapper calls fn once per 1-D slice along the drawn axis with the axis
// argument pointing at 0, and places the output core dimensions back at the
// axis position, the way numpy.apply_along_axis does.
func Axised(fn AxisFunc, cfg *Config) (*rapid.Generator[AxisCase], error) {
	n, err := cfg.validate(true)
	if err != nil {
		return nil, err
	}
	if rank := len(n.sig.Inputs[0]); rank != 1 {
		return nil, errors.WithMessagef(ErrInvalidConfiguration,
			"the first input of %s has rank %d, axis generation requires a 1-D first input", n.sig, rank)
	}
	// The axis machinery owns which arguments broadcast: only the first one.
	n.excluded = utils.MakeSet[int](len(n.sig.Inputs) - 1)
	for arg := 1; arg < len(n.sig.Inputs); arg++ {
		n.excluded.Insert(arg)
	}
	gens, err := elementGens(n)
	if err != nil {
		return nil, err
	}
	axised, err := axisedWrapper(fn, n.sig, n.otypes)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("gufunc: building axis case generator for %s (allow none: %v)", n.sig, n.allowNone)
	return rapid.Custom(func(t *rapid.T) AxisCase {
		args := drawTensors(t, n, gens, drawBroadcastShapes(t, n))
		low := 0
		if n.allowNone {
			low = -1 // -1 stands for the nil axis
		}
		axis := rapid.IntRange(low, args[0].Rank()-1).Draw(t, "axis")
		if axis < 0 {
			return AxisCase{Fn: fn, Axised: axised, Args: args}
		}
		args[0] = args[0].MoveAxis(args[0].Rank()-1, axis)
		return AxisCase{Fn: fn, Axised: axised, Args: args, Axis: &axis}
	}), nil
}

// axisedWrapper builds the any-axis version of fn: move the requested axis
// of the first argument last (or flatten on a nil axis), loop fn over the
// leading dimensions, and move each output's core dimensions back to the
// axis position.
func axisedWrapper(fn AxisFunc, sig *Signature, outputDTypes []dtypes.DType) (AxisFunc, error) {
	core := func(args ...*tensors.Tensor) ([]*tensors.Tensor, error) {
		axis := 0
		return fn(&axis, args...)
	}
	excluded := make([]int, 0, len(sig.Inputs)-1)
	for arg := 1; arg < len(sig.Inputs); arg++ {
		excluded = append(excluded, arg)
	}
	vectorized, err := Vectorize(core, sig, excluded, outputDTypes)
	if err != nil {
		return nil, err
	}

	return func(axis *int, args ...*tensors.Tensor) ([]*tensors.Tensor, error) {
		if len(args) == 0 || args[0] == nil {
			return nil, errors.Errorf("missing the first argument")
		}
		x := args[0]
		pos := 0
		if axis == nil {
			x = x.Flatten()
		} else {
			pos = *axis
			if pos < 0 {
				pos += x.Rank()
			}
			if pos < 0 || pos >= x.Rank() {
				return nil, errors.WithMessagef(ErrShapeMismatch,
					"axis %d out of range for the first argument's shape %s", *axis, x.Shape())
			}
			x = x.MoveAxis(pos, x.Rank()-1)
		}
		callArgs := append([]*tensors.Tensor{x}, args[1:]...)
		outs, err := vectorized(callArgs...)
		if err != nil {
			return nil, err
		}
		if axis == nil {
			return outs, nil
		}
		for out, o := range outs {
			coreRank := len(sig.Outputs[out])
			if coreRank == 0 {
				continue
			}
			outs[out] = moveCoreToAxis(o, o.Rank()-coreRank, coreRank, pos)
		}
		return outs, nil
	}, nil
}

// moveCoreToAxis moves the trailing coreRank axes of t to start at position
// axis, keeping the relative order of the other axes.
func moveCoreToAxis(t *tensors.Tensor, extraRank, coreRank, axis int) *tensors.Tensor {
	permutation := make([]int, 0, extraRank+coreRank)
	for extra := 0; extra < axis; extra++ {
		permutation = append(permutation, extra)
	}
	for core := 0; core < coreRank; core++ {
		permutation = append(permutation, extraRank+core)
	}
	for extra := axis; extra < extraRank; extra++ {
		permutation = append(permutation, extra)
	}
	return t.Transpose(permutation...)
}
