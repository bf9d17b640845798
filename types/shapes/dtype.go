package shapes

import (
	"fmt"
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

var (
	float16Type  = reflect.TypeOf(float16.Float16(0))
	bfloat16Type = reflect.TypeOf(bfloat16.BFloat16(0))
)

// CastAsDType casts a numeric value to the Go type corresponding to the given
// dtype. If the value is a slice (or nested slices) it converts to a newly
// allocated slice of the corresponding element type. The input value is never
// mutated.
//
// Conversions follow Go's numeric conversion rules, with the extras reflect
// alone cannot do: booleans convert through 0/1, Float16 and BFloat16 convert
// through float32, complex sources keep only their real part for real targets
// and real sources get a zero imaginary part for complex targets.
func CastAsDType(value any, dtype dtypes.DType) any {
	valueOf := reflect.ValueOf(value)
	if valueOf.Kind() != reflect.Slice && valueOf.Kind() != reflect.Array {
		return castScalarAsDType(valueOf, dtype).Interface()
	}
	newType := typeForSliceDType(valueOf.Type(), dtype)
	newValue := reflect.MakeSlice(newType, valueOf.Len(), valueOf.Len())
	for ii := 0; ii < valueOf.Len(); ii++ {
		elem := CastAsDType(valueOf.Index(ii).Interface(), dtype)
		newValue.Index(ii).Set(reflect.ValueOf(elem))
	}
	return newValue.Interface()
}

// typeForSliceDType rebuilds a (nested) slice type with the innermost element
// type replaced by the dtype's Go type.
func typeForSliceDType(valueType reflect.Type, dtype dtypes.DType) reflect.Type {
	if valueType.Kind() != reflect.Slice && valueType.Kind() != reflect.Array {
		return dtype.GoType()
	}
	return reflect.SliceOf(typeForSliceDType(valueType.Elem(), dtype))
}

func castScalarAsDType(v reflect.Value, dtype dtypes.DType) reflect.Value {
	switch dtype {
	case dtypes.Bool:
		return reflect.ValueOf(scalarToFloat64(v) != 0)
	case dtypes.Float16:
		return reflect.ValueOf(float16.Fromfloat32(float32(scalarToFloat64(v))))
	case dtypes.BFloat16:
		return reflect.ValueOf(bfloat16.FromFloat32(float32(scalarToFloat64(v))))
	case dtypes.Complex64, dtypes.Complex128:
		var c complex128
		switch v.Kind() {
		case reflect.Complex64, reflect.Complex128:
			c = v.Complex()
		default:
			c = complex(scalarToFloat64(v), 0)
		}
		return reflect.ValueOf(c).Convert(dtype.GoType())
	}

	// Real numeric targets: sources reflect cannot Convert go through float64.
	switch v.Type() {
	case float16Type, bfloat16Type:
		return reflect.ValueOf(scalarToFloat64(v)).Convert(dtype.GoType())
	}
	switch v.Kind() {
	case reflect.Bool, reflect.Complex64, reflect.Complex128:
		return reflect.ValueOf(scalarToFloat64(v)).Convert(dtype.GoType())
	}
	return v.Convert(dtype.GoType())
}

// scalarToFloat64 reads any supported scalar as a float64. Complex values
// keep only their real part; booleans map to 0 and 1.
func scalarToFloat64(v reflect.Value) float64 {
	switch v.Type() {
	case float16Type:
		return float64(v.Interface().(float16.Float16).Float32())
	case bfloat16Type:
		return float64(v.Interface().(bfloat16.BFloat16).Float32())
	}
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Complex64, reflect.Complex128:
		return real(v.Complex())
	}
	panic(fmt.Sprintf("shapes: cannot read %s value %v as a number", v.Type(), v))
}
