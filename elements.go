package gufunc

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"pgregory.net/rapid"
)

// Largest magnitudes drawn for the reduced precision float dtypes, chosen so
// rounding from float32 never lands on an infinity.
const (
	maxFiniteFloat16  float32 = 65504
	maxFiniteBFloat16 float32 = 3.0e38
)

// ElementsForDType returns the default element generator for dtype. Drawn
// values already have the dtype's Go type (see dtypes.DType.GoType) and are
// finite for the float and complex dtypes, so generated arrays compare
// reliably. Use Config.WithElements or Config.WithChoices to override the
// default for an argument.
func ElementsForDType(dtype dtypes.DType) (*rapid.Generator[any], error) {
	switch dtype {
	case dtypes.Bool:
		return rapid.Bool().AsAny(), nil
	case dtypes.Int8:
		return rapid.Int8().AsAny(), nil
	case dtypes.Int16:
		return rapid.Int16().AsAny(), nil
	case dtypes.Int32:
		return rapid.Int32().AsAny(), nil
	case dtypes.Int64:
		return rapid.Int64().AsAny(), nil
	case dtypes.Uint8:
		return rapid.Byte().AsAny(), nil
	case dtypes.Uint16:
		return rapid.Uint16().AsAny(), nil
	case dtypes.Uint32:
		return rapid.Uint32().AsAny(), nil
	case dtypes.Uint64:
		return rapid.Uint64().AsAny(), nil
	case dtypes.Float16:
		return rapid.Map(
			rapid.Float32Range(-maxFiniteFloat16, maxFiniteFloat16),
			float16.Fromfloat32).AsAny(), nil
	case dtypes.BFloat16:
		return rapid.Map(
			rapid.Float32Range(-maxFiniteBFloat16, maxFiniteBFloat16),
			bfloat16.FromFloat32).AsAny(), nil
	case dtypes.Float32:
		return rapid.Float32().AsAny(), nil
	case dtypes.Float64:
		return rapid.Float64().AsAny(), nil
	case dtypes.Complex64:
		return rapid.Custom(func(t *rapid.T) complex64 {
			return complex(
				rapid.Float32().Draw(t, "real"),
				rapid.Float32().Draw(t, "imag"))
		}).AsAny(), nil
	case dtypes.Complex128:
		return rapid.Custom(func(t *rapid.T) complex128 {
			return complex(
				rapid.Float64().Draw(t, "real"),
				rapid.Float64().Draw(t, "imag"))
		}).AsAny(), nil
	}
	return nil, errors.WithMessagef(ErrInvalidConfiguration,
		"no default element generator for dtype %s", dtype)
}
