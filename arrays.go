package gufunc

import (
	"fmt"
	"reflect"

	"github.com/gomlx/gufunc/types/shapes"
	"github.com/gomlx/gufunc/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"pgregory.net/rapid"
)

// elementGens resolves one element generator per argument, already composed
// with the conversion to the argument's dtype, so every drawn value has the
// final element type. Uniqueness checks then apply to the converted values,
// the ones that end up in the array.
func elementGens(n *normalized) ([]*rapid.Generator[any], error) {
	gens := make([]*rapid.Generator[any], len(n.dtypes))
	for arg := range gens {
		switch {
		case n.choices[arg] != nil:
			// Already converted to the dtype by validate.
			choiceVals := reflect.ValueOf(n.choices[arg])
			values := make([]any, choiceVals.Len())
			for ii := range values {
				values[ii] = choiceVals.Index(ii).Interface()
			}
			gens[arg] = rapid.SampledFrom(values)
		case n.elements[arg] != nil:
			dtype := n.dtypes[arg]
			gens[arg] = rapid.Map(n.elements[arg], func(value any) any {
				return shapes.CastAsDType(value, dtype)
			})
		default:
			gen, err := ElementsForDType(n.dtypes[arg])
			if err != nil {
				return nil, errors.WithMessagef(err, "argument #%d", arg)
			}
			gens[arg] = gen
		}
	}
	return gens, nil
}

// drawTensor fills one tensor of the given shape, drawing each element from
// gen. With unique, the flattened elements are all distinct. A draw that
// cannot satisfy uniqueness (say, more elements than the dtype has values) is
// rejected by the rapid engine.
func drawTensor(t *rapid.T, shape shapes.Shape, gen *rapid.Generator[any], unique bool, label string) *tensors.Tensor {
	size := shape.Size()
	var values []any
	if unique {
		values = rapid.SliceOfNDistinct(gen, size, size, rapid.ID[any]).Draw(t, label)
	} else {
		values = rapid.SliceOfN(gen, size, size).Draw(t, label)
	}
	flat := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size)
	for ii, value := range values {
		flat.Index(ii).Set(reflect.ValueOf(value))
	}
	tensor, err := tensors.FromFlatAnyAndShape(flat.Interface(), shape)
	if err != nil {
		// Unreachable after validate: the flat slice is built from the shape.
		panic(errors.WithMessagef(err, "filling tensor of shape %s", shape))
	}
	return tensor
}

// drawTensors fills one tensor per argument shape.
func drawTensors(t *rapid.T, n *normalized, gens []*rapid.Generator[any], argShapes []shapes.Shape) []*tensors.Tensor {
	args := make([]*tensors.Tensor, len(argShapes))
	for arg, shape := range argShapes {
		args[arg] = drawTensor(t, shape, gens[arg], n.unique[arg], fmt.Sprintf("arg#%d", arg))
	}
	return args
}

// Arrays returns a generator drawing one filled tensor per input argument,
// with the core shapes drawn by Shapes and elements drawn per the configured
// dtypes, elements generators, choices and uniqueness.
func (cfg *Config) Arrays() (_ *rapid.Generator[[]*tensors.Tensor], err error) {
	n, err := cfg.validate(false)
	if err != nil {
		return nil, err
	}
	gens, err := elementGens(n)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("gufunc: building arrays generator for %s", n.sig)
	return rapid.Custom(func(t *rapid.T) []*tensors.Tensor {
		return drawTensors(t, n, gens, drawCoreShapes(t, n))
	}), nil
}

// BroadcastArrays returns a generator like Arrays, with the shapes drawn by
// BroadcastShapes: non-excluded arguments receive up to the configured number
// of extra leading dimensions that broadcast together.
func (cfg *Config) BroadcastArrays() (_ *rapid.Generator[[]*tensors.Tensor], err error) {
	n, err := cfg.validate(true)
	if err != nil {
		return nil, err
	}
	gens, err := elementGens(n)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("gufunc: building broadcast arrays generator for %s", n.sig)
	return rapid.Custom(func(t *rapid.T) []*tensors.Tensor {
		return drawTensors(t, n, gens, drawBroadcastShapes(t, n))
	}), nil
}
