package shapes

import (
	"fmt"
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// FromAnyValue attempts to convert a Go "any" value to its expected shape.
// Accepted values are plain-old-data (POD) types (bools, ints, floats,
// complex, Float16, BFloat16) and slices (or multiple levels of slices) of
// POD.
//
// Zero-length slices are valid: every slice level below the first empty one
// contributes a zero dimension, e.g. [][]float64{} has shape (Float64)[0 0].
//
// Example:
//
//	shape, err := shapes.FromAnyValue([][]float64{{0, 0}}) // Shape (Float64)[1 2]
func FromAnyValue(v any) (shape Shape, err error) {
	if v == nil {
		return Invalid(), errors.Errorf("cannot extract a shape from a nil value")
	}
	err = shapeFromAnyRecursive(&shape, reflect.ValueOf(v), reflect.TypeOf(v))
	return
}

func shapeFromAnyRecursive(shape *Shape, v reflect.Value, t reflect.Type) error {
	if t.Kind() != reflect.Slice {
		// If it's not a slice, it must be one of the supported scalar types.
		shape.DType = dtypes.FromGoType(t)
		if shape.DType == dtypes.InvalidDType {
			return errors.Errorf("cannot convert type %q to a shape dtype (type not supported)", t)
		}
		return nil
	}

	// Slice: recurse into its element type (again slices or a supported POD).
	t = t.Elem()
	shape.Dimensions = append(shape.Dimensions, v.Len())
	if v.Len() == 0 {
		// No elements to inspect: remaining slice levels become zero
		// dimensions, and the dtype comes from the static element type.
		for t.Kind() == reflect.Slice {
			shape.Dimensions = append(shape.Dimensions, 0)
			t = t.Elem()
		}
		shape.DType = dtypes.FromGoType(t)
		if shape.DType == dtypes.InvalidDType {
			return errors.Errorf("cannot convert type %q to a shape dtype (type not supported)", t)
		}
		return nil
	}

	// The first element is the reference.
	shapePrefix := shape.Clone()
	if err := shapeFromAnyRecursive(shape, v.Index(0), t); err != nil {
		return err
	}

	// All other elements must have the same shape as the first one.
	for ii := 1; ii < v.Len(); ii++ {
		shapeTest := shapePrefix.Clone()
		if err := shapeFromAnyRecursive(&shapeTest, v.Index(ii), t); err != nil {
			return err
		}
		if !shape.Equal(shapeTest) {
			return fmt.Errorf("sub-slices have irregular shapes, found shapes %q and %q", shape, shapeTest)
		}
	}
	return nil
}
