package gufunc

import (
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gufunc/internal/utils"
	"github.com/gomlx/gufunc/types/shapes"
	"github.com/gomlx/gufunc/types/tensors"
	"github.com/pkg/errors"
)

// Func is a function from tensors to tensors, the shape every function under
// test takes. A Func wrapped by Vectorize receives arguments of exactly the
// signature's core shapes; the wrapper built around it accepts arguments with
// extra leading dimensions and loops the core function over them.
type Func func(args ...*tensors.Tensor) ([]*tensors.Tensor, error)

// Vectorize wraps a function that understands only the signature's core
// shapes into one that also accepts leading broadcast dimensions, following
// the same rules as numpy.vectorize with a signature:
//
//   - Each non-excluded argument must carry its core dimensions as its
//     trailing dimensions; every occurrence of a dimension name must resolve
//     to the same size. The leading dimensions of all such arguments are
//     broadcast together (see BroadcastDims).
//   - fn is called once per broadcast index, with core-shaped views of the
//     arguments, and its outputs are assembled into tensors shaped broadcast
//     dimensions plus output core dimensions.
//   - Excluded arguments are passed through whole on every call and do not
//     participate in shape resolution.
//   - Output dimension names that no non-excluded input binds are inferred
//     from the first call's results.
//   - With outputDTypes set (one per output), each output is converted to
//     its dtype. They are required when the broadcast can be empty, since
//     then there is no call to take the output dtypes from.
func Vectorize(fn Func, sig *Signature, excluded []int, outputDTypes []dtypes.DType) (Func, error) {
	if fn == nil {
		return nil, errors.WithMessage(ErrInvalidConfiguration, "nil function")
	}
	if sig == nil {
		return nil, errors.WithMessage(ErrInvalidConfiguration, "nil signature")
	}
	if len(outputDTypes) > 0 && len(outputDTypes) != len(sig.Outputs) {
		return nil, errors.WithMessagef(ErrShapeMismatch,
			"%d output dtypes given, signature %s has %d outputs",
			len(outputDTypes), sig, len(sig.Outputs))
	}
	for out, dtype := range outputDTypes {
		if !dtype.IsSupported() {
			return nil, errors.WithMessagef(ErrInvalidConfiguration,
				"output #%d has unsupported dtype %s", out, dtype)
		}
	}
	v := &vectorizer{
		fn:       fn,
		sig:      sig.Clone(),
		excluded: utils.MakeSet[int](len(excluded)),
		otypes:   outputDTypes,
	}
	for _, arg := range excluded {
		if arg < 0 || arg >= len(sig.Inputs) {
			return nil, errors.WithMessagef(ErrInvalidConfiguration,
				"excluded argument #%d out of range, signature %s has %d input arguments",
				arg, sig, len(sig.Inputs))
		}
		v.excluded.Insert(arg)
	}
	return v.call, nil
}

type vectorizer struct {
	fn       Func
	sig      *Signature
	excluded utils.Set[int]
	otypes   []dtypes.DType
}

// laneArg is one non-excluded argument prepared for lane iteration: strides
// give the flat offset contribution of each broadcast index position, with 0
// where the argument's own dimension is 1 or absent.
type laneArg struct {
	arg      int
	coreDims []int
	strides  []int
}

func (v *vectorizer) call(args ...*tensors.Tensor) ([]*tensors.Tensor, error) {
	if len(args) != len(v.sig.Inputs) {
		return nil, errors.WithMessagef(ErrShapeMismatch,
			"called with %d arguments, signature %s has %d inputs", len(args), v.sig, len(v.sig.Inputs))
	}
	for arg, t := range args {
		if t == nil {
			return nil, errors.Errorf("argument #%d is nil", arg)
		}
	}

	// Bind dimension names from the non-excluded arguments' trailing (core)
	// dimensions and collect their leading (broadcast) dimensions.
	assignment := make(SizeAssignment)
	bcastParts := make([][]int, 0, len(args))
	splits := make([]int, len(args))
	for arg, spec := range v.sig.Inputs {
		if v.excluded.Has(arg) {
			continue
		}
		dims := args[arg].Shape().Dimensions
		if len(dims) < len(spec) {
			return nil, errors.WithMessagef(ErrShapeMismatch,
				"argument #%d has shape %s, it needs at least the %d core dimensions (%s)",
				arg, args[arg].Shape(), len(spec), strings.Join(spec, ","))
		}
		splits[arg] = len(dims) - len(spec)
		if err := bindCoreDims(spec, dims[splits[arg]:], assignment); err != nil {
			return nil, errors.WithMessagef(err, "argument #%d with shape %s", arg, args[arg].Shape())
		}
		bcastParts = append(bcastParts, dims[:splits[arg]])
	}
	bcast, err := BroadcastDims(bcastParts...)
	if err != nil {
		return nil, errors.WithMessage(err, "the arguments' leading dimensions")
	}

	outCore, unresolved := resolveOutputDims(v.sig.Outputs, assignment)
	laneCount := 1
	for _, dim := range bcast {
		laneCount *= dim
	}
	if laneCount == 0 {
		return v.emptyOutputs(bcast, outCore, unresolved)
	}

	// Per-argument strides over the broadcast index, stride 0 broadcasting
	// dimensions of size 1.
	laneArgs := make([]laneArg, 0, len(args))
	coreArgs := make([]*tensors.Tensor, len(args))
	for arg := range v.sig.Inputs {
		if v.excluded.Has(arg) {
			coreArgs[arg] = args[arg]
			continue
		}
		dims := args[arg].Shape().Dimensions
		full := args[arg].LayoutStrides()
		strides := make([]int, len(bcast))
		for depth := range strides {
			pos := depth - (len(bcast) - splits[arg])
			if pos >= 0 && dims[pos] != 1 {
				strides[depth] = full[pos]
			}
		}
		laneArgs = append(laneArgs, laneArg{arg: arg, coreDims: dims[splits[arg]:], strides: strides})
	}

	outputs := make([]*tensors.Tensor, len(v.sig.Outputs))
	laneIdx := make([]int, len(bcast))
	for lane := 0; lane < laneCount; lane++ {
		for _, la := range laneArgs {
			offset := 0
			for depth, idx := range laneIdx {
				offset += idx * la.strides[depth]
			}
			coreArgs[la.arg] = args[la.arg].CoreSlice(offset, la.coreDims...)
		}
		rets, err := v.fn(coreArgs...)
		if err != nil {
			return nil, errors.WithMessagef(err, "vectorized function at broadcast index %v", laneIdx)
		}
		if len(rets) != len(v.sig.Outputs) {
			return nil, errors.WithMessagef(ErrShapeMismatch,
				"function returned %d outputs, signature %s declares %d",
				len(rets), v.sig, len(v.sig.Outputs))
		}
		for out, ret := range rets {
			if ret == nil {
				return nil, errors.Errorf("function returned a nil output #%d at broadcast index %v", out, laneIdx)
			}
		}

		if lane == 0 {
			if unresolved {
				if err := inferOutputSizes(v.sig.Outputs, rets, assignment); err != nil {
					return nil, err
				}
				outCore, _ = resolveOutputDims(v.sig.Outputs, assignment)
			}
			for out, ret := range rets {
				dtype := ret.DType()
				if len(v.otypes) > 0 {
					dtype = v.otypes[out]
				}
				dims := append(append(make([]int, 0, len(bcast)+len(outCore[out])), bcast...), outCore[out]...)
				outputs[out] = tensors.FromShape(shapes.Make(dtype, dims...))
			}
		}

		for out, ret := range rets {
			if err := ret.Shape().CheckDims(outCore[out]...); err != nil {
				return nil, errors.WithMessagef(ErrShapeMismatch,
					"output #%d at broadcast index %v has shape %s, want dimensions %v",
					out, laneIdx, ret.Shape(), outCore[out])
			}
			if len(v.otypes) > 0 {
				ret = ret.ConvertTo(v.otypes[out])
			} else if ret.DType() != outputs[out].DType() {
				return nil, errors.WithMessagef(ErrShapeMismatch,
					"output #%d changed dtype across calls: %s, then %s",
					out, outputs[out].DType(), ret.DType())
			}
			outputs[out].CoreSlice(lane*ret.Size(), outCore[out]...).CopyFrom(ret)
		}

		for depth := len(laneIdx) - 1; depth >= 0; depth-- {
			laneIdx[depth]++
			if laneIdx[depth] < bcast[depth] {
				break
			}
			laneIdx[depth] = 0
		}
	}
	return outputs, nil
}

// emptyOutputs builds the outputs of a broadcast with zero lanes. The
// function is never called, so output dtypes must be configured and every
// output dimension must be resolvable from the inputs.
func (v *vectorizer) emptyOutputs(bcast []int, outCore [][]int, unresolved bool) ([]*tensors.Tensor, error) {
	if unresolved {
		return nil, errors.WithMessagef(ErrShapeMismatch,
			"cannot infer unbound output dimensions of %s: the broadcast is empty, so the function is never called", v.sig)
	}
	if len(v.otypes) == 0 {
		return nil, errors.WithMessagef(ErrInvalidConfiguration,
			"cannot determine output dtypes of an empty broadcast; set output dtypes")
	}
	outputs := make([]*tensors.Tensor, len(v.sig.Outputs))
	for out := range outputs {
		dims := append(append(make([]int, 0, len(bcast)+len(outCore[out])), bcast...), outCore[out]...)
		outputs[out] = tensors.FromShape(shapes.Make(v.otypes[out], dims...))
	}
	return outputs, nil
}

// bindCoreDims checks one argument's core dimensions against its
// specification, binding dimension names on first sight and requiring
// consistency afterwards.
func bindCoreDims(spec ArgSpec, dims []int, assignment SizeAssignment) error {
	for ii, token := range spec {
		if literal, err := strconv.Atoi(token); err == nil {
			if dims[ii] != literal {
				return errors.WithMessagef(ErrShapeMismatch,
					"core dimension #%d is %d, the signature requires the literal %d", ii, dims[ii], literal)
			}
			continue
		}
		if size, found := assignment[token]; found {
			if size != dims[ii] {
				return errors.WithMessagef(ErrShapeMismatch,
					"core dimension #%d (%q) is %d, but %q already resolved to %d", ii, token, dims[ii], token, size)
			}
			continue
		}
		assignment[token] = dims[ii]
	}
	return nil
}

// resolveOutputDims resolves every output specification against the
// assignment. Names not bound by any input resolve to -1 and are inferred
// later from the first call's results.
func resolveOutputDims(outSpecs []ArgSpec, assignment SizeAssignment) (dims [][]int, unresolved bool) {
	dims = make([][]int, len(outSpecs))
	for out, spec := range outSpecs {
		dims[out] = make([]int, len(spec))
		for ii, token := range spec {
			if size, err := strconv.Atoi(token); err == nil {
				dims[out][ii] = size
			} else if size, found := assignment[token]; found {
				dims[out][ii] = size
			} else {
				dims[out][ii] = -1
				unresolved = true
			}
		}
	}
	return
}

// inferOutputSizes binds the output dimension names that no input binds,
// from the shapes the first call returned. Repeated names must resolve
// consistently.
func inferOutputSizes(outSpecs []ArgSpec, rets []*tensors.Tensor, assignment SizeAssignment) error {
	for out, spec := range outSpecs {
		dims := rets[out].Shape().Dimensions
		if len(dims) != len(spec) {
			return errors.WithMessagef(ErrShapeMismatch,
				"output #%d has rank %d, its specification (%s) has rank %d",
				out, len(dims), strings.Join(spec, ","), len(spec))
		}
		for ii, token := range spec {
			if utils.IsDigits(token) {
				continue
			}
			if size, found := assignment[token]; found {
				if size != dims[ii] {
					return errors.WithMessagef(ErrShapeMismatch,
						"output dimension %q resolves to both %d and %d", token, size, dims[ii])
				}
				continue
			}
			assignment[token] = dims[ii]
		}
	}
	return nil
}
