// Package tensors provides a minimal in-memory Tensor: a shapes.Shape plus a
// flat slice of values of the shape's dtype, laid out in row-major order.
//
// Tensors here exist to carry generated test data and the results of
// functions under test. There is no device storage and no aliasing protection:
// the flat data is exposed directly (see Flat and ConstFlatAny) and tensors
// are treated as immutable once handed to a generator pipeline.
//
// Invalid uses (wrong dtype access, out-of-range indices, mismatched sizes in
// constructors) are programming errors and panic. Conversions from arbitrary
// Go values return errors, since those validate external data.
package tensors

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gufunc/types/shapes"
	"github.com/pkg/errors"
)

// Tensor holds a shape and the flat values of an array in row-major order.
type Tensor struct {
	shape shapes.Shape
	// flat is a slice of shape.DType.GoType(), with shape.Size() elements.
	flat any
}

// FromShape returns a zero-initialized Tensor of the given shape. It panics
// on invalid shapes.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		panic(fmt.Sprintf("tensors.FromShape: invalid shape %s", shape))
	}
	size := shape.Size()
	flat := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size)
	return &Tensor{shape: shape.Clone(), flat: flat.Interface()}
}

// FromFlatDataAndDimensions creates a Tensor with the given flat data as its
// values, reshaped to dimensions. The data is used directly, not copied,
// except for `int` data, which is re-typed to the platform's Int32/Int64
// dtype Go type. It panics if len(data) does not match the dimensions.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if len(data) != shape.Size() {
		panic(fmt.Sprintf("tensors.FromFlatDataAndDimensions: data has %d elements, shape %s requires %d",
			len(data), shape, shape.Size()))
	}
	var flat any = data
	if goType := shape.DType.GoType(); reflect.TypeOf(data).Elem() != goType {
		converted := reflect.MakeSlice(reflect.SliceOf(goType), len(data), len(data))
		for ii, value := range data {
			converted.Index(ii).Set(reflect.ValueOf(value).Convert(goType))
		}
		flat = converted.Interface()
	}
	return &Tensor{shape: shape, flat: flat}
}

// FromScalar creates a rank-0 Tensor holding a single value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromFlatDataAndDimensions([]T{value})
}

// FromFlatAnyAndShape creates a Tensor from an untyped flat slice. The slice
// element type must match the shape's dtype, and its length the shape's size.
// It validates external data, so it returns errors instead of panicking.
func FromFlatAnyAndShape(flat any, shape shapes.Shape) (*Tensor, error) {
	if !shape.Ok() {
		return nil, errors.Errorf("cannot build a tensor with invalid shape %s", shape)
	}
	flatValue := reflect.ValueOf(flat)
	if flatValue.Kind() != reflect.Slice {
		return nil, errors.Errorf("flat data must be a slice, got %T", flat)
	}
	if flatValue.Type().Elem() != shape.DType.GoType() {
		return nil, errors.Errorf("flat data is %T, shape %s requires []%s",
			flat, shape, shape.DType.GoType())
	}
	if flatValue.Len() != shape.Size() {
		return nil, errors.Errorf("flat data has %d elements, shape %s requires %d",
			flatValue.Len(), shape, shape.Size())
	}
	return &Tensor{shape: shape.Clone(), flat: flat}, nil
}

// FromValue converts a Go value (a supported scalar or nested slices of one)
// into a Tensor. Nested slices must be regular. See shapes.FromAnyValue for
// the accepted values.
func FromValue(value any) (*Tensor, error) {
	shape, err := shapes.FromAnyValue(value)
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot convert %T to a tensor", value)
	}
	t := FromShape(shape)
	flat := reflect.ValueOf(t.flat)
	next := 0
	copyNestedToFlat(flat, reflect.ValueOf(value), &next)
	return t, nil
}

func copyNestedToFlat(flat, v reflect.Value, next *int) {
	if v.Kind() != reflect.Slice {
		// Convert covers Go `int` values landing in an int64/int32 flat slice.
		flat.Index(*next).Set(v.Convert(flat.Type().Elem()))
		*next++
		return
	}
	for ii := 0; ii < v.Len(); ii++ {
		copyNestedToFlat(flat, v.Index(ii), next)
	}
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor. Scalars have rank 0.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements the tensor holds.
func (t *Tensor) Size() int { return t.shape.Size() }

// LayoutStrides returns the row-major strides of the tensor's layout.
func (t *Tensor) LayoutStrides() []int { return t.shape.Strides() }

// ConstFlatAny returns the underlying flat slice as an `any`. The slice must
// not be mutated.
func (t *Tensor) ConstFlatAny() any { return t.flat }

// Flat returns the underlying flat data of the tensor. It panics if T does
// not match the tensor's dtype. Mutating the slice mutates the tensor.
func Flat[T dtypes.Supported](t *Tensor) []T {
	flat, ok := t.flat.([]T)
	if !ok {
		panic(fmt.Sprintf("tensors.Flat[%T]: tensor has dtype %s", *new(T), t.DType()))
	}
	return flat
}

// flatSlice returns flat[from:to] as an `any`, sharing the underlying array.
func (t *Tensor) flatSlice(from, to int) any {
	return reflect.ValueOf(t.flat).Slice(from, to).Interface()
}

// CoreSlice returns a view of the tensor holding the coreSize elements
// starting at the given flat offset, shaped as coreDims. The data is shared
// with t. Used to hand core-shaped blocks of a larger array to a function
// that only understands core shapes.
func (t *Tensor) CoreSlice(offset int, coreDims ...int) *Tensor {
	core := shapes.Make(t.DType(), coreDims...)
	return &Tensor{
		shape: core,
		flat:  t.flatSlice(offset, offset+core.Size()),
	}
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := FromShape(t.shape)
	reflect.Copy(reflect.ValueOf(c.flat), reflect.ValueOf(t.flat))
	return c
}

// CopyFrom assigns all of other's values to t, in flat order. The tensors
// must have the same dtype and size; dimensions may differ. Combined with
// CoreSlice it writes a core-shaped block into a larger tensor.
func (t *Tensor) CopyFrom(other *Tensor) {
	if t.DType() != other.DType() || t.Size() != other.Size() {
		panic(fmt.Sprintf("tensors.CopyFrom: cannot assign %s values to %s tensor", other.shape, t.shape))
	}
	reflect.Copy(reflect.ValueOf(t.flat), reflect.ValueOf(other.flat))
}

// Equal compares shape and values. Values are compared with Go's ==, so NaNs
// never compare equal.
func (t *Tensor) Equal(other *Tensor) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	return reflect.DeepEqual(t.flat, other.flat)
}

// ConvertTo returns a new tensor with the same dimensions and the values
// converted to the given dtype, following shapes.CastAsDType rules.
func (t *Tensor) ConvertTo(dtype dtypes.DType) *Tensor {
	if dtype == t.DType() {
		return t.Clone()
	}
	return &Tensor{
		shape: shapes.Make(dtype, t.shape.Dimensions...),
		flat:  shapes.CastAsDType(t.flat, dtype),
	}
}

// Reshape returns a tensor with the same flat data and new dimensions. The
// new dimensions must keep the size unchanged. The data is shared with t.
func (t *Tensor) Reshape(dimensions ...int) *Tensor {
	shape := shapes.Make(t.DType(), dimensions...)
	if shape.Size() != t.Size() {
		panic(fmt.Sprintf("tensors.Reshape: cannot reshape %s to %v, sizes differ", t.shape, dimensions))
	}
	return &Tensor{shape: shape, flat: t.flat}
}

// Flatten returns a rank-1 view of the tensor, sharing its data.
func (t *Tensor) Flatten() *Tensor {
	return t.Reshape(t.Size())
}

// flatOffset converts a multi-dimensional index into a flat offset. It panics
// on rank or range violations.
func (t *Tensor) flatOffset(indices ...int) int {
	if len(indices) != t.Rank() {
		panic(fmt.Sprintf("tensors: got %d indices for rank-%d tensor %s", len(indices), t.Rank(), t.shape))
	}
	offset := 0
	for axis, idx := range indices {
		if idx < 0 || idx >= t.shape.Dimensions[axis] {
			panic(fmt.Sprintf("tensors: index %d out of range for axis %d of %s", idx, axis, t.shape))
		}
		offset = offset*t.shape.Dimensions[axis] + idx
	}
	return offset
}

// At returns the element at the given indices, one index per axis.
func (t *Tensor) At(indices ...int) any {
	return reflect.ValueOf(t.flat).Index(t.flatOffset(indices...)).Interface()
}

// SetAt sets the element at the given indices. The value must be of the
// tensor's dtype Go type.
func (t *Tensor) SetAt(value any, indices ...int) {
	reflect.ValueOf(t.flat).Index(t.flatOffset(indices...)).Set(reflect.ValueOf(value))
}

// Transpose returns a new tensor with axes permuted: axis i of the result is
// axis permutation[i] of t. The permutation must have exactly one entry per
// axis. The result has freshly allocated data.
func (t *Tensor) Transpose(permutation ...int) *Tensor {
	rank := t.Rank()
	if len(permutation) != rank {
		panic(fmt.Sprintf("tensors.Transpose: permutation %v does not match rank %d", permutation, rank))
	}
	seen := make([]bool, rank)
	newDims := make([]int, rank)
	for axis, src := range permutation {
		if src < 0 || src >= rank || seen[src] {
			panic(fmt.Sprintf("tensors.Transpose: %v is not a permutation of the %d axes", permutation, rank))
		}
		seen[src] = true
		newDims[axis] = t.shape.Dimensions[src]
	}

	result := FromShape(shapes.Make(t.DType(), newDims...))
	size := t.Size()
	if size == 0 {
		return result
	}
	srcStrides := t.LayoutStrides()
	srcFlat := reflect.ValueOf(t.flat)
	dstFlat := reflect.ValueOf(result.flat)
	indices := make([]int, rank)
	for dst := 0; dst < size; dst++ {
		src := 0
		for axis := range indices {
			src += indices[axis] * srcStrides[permutation[axis]]
		}
		dstFlat.Index(dst).Set(srcFlat.Index(src))
		for axis := rank - 1; axis >= 0; axis-- {
			indices[axis]++
			if indices[axis] < newDims[axis] {
				break
			}
			indices[axis] = 0
		}
	}
	return result
}

// MoveAxis returns a new tensor with the given axis moved to a new position,
// the other axes keeping their order (numpy's moveaxis). Negative positions
// count from the end.
func (t *Tensor) MoveAxis(from, to int) *Tensor {
	rank := t.Rank()
	if from < 0 {
		from += rank
	}
	if to < 0 {
		to += rank
	}
	if from < 0 || from >= rank || to < 0 || to >= rank {
		panic(fmt.Sprintf("tensors.MoveAxis(%d, %d): out of range for rank %d", from, to, rank))
	}
	if from == to {
		return t.Clone()
	}
	permutation := make([]int, 0, rank)
	for axis := 0; axis < rank; axis++ {
		if axis != from {
			permutation = append(permutation, axis)
		}
	}
	permutation = append(permutation[:to], append([]int{from}, permutation[to:]...)...)
	return t.Transpose(permutation...)
}

// maxElementsForString caps how many elements String prints.
const maxElementsForString = 100

// String prints the shape and up to maxElementsForString elements of the
// flat data.
func (t *Tensor) String() string {
	if t == nil {
		return "(nil tensor)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: ", t.shape)
	flat := reflect.ValueOf(t.flat)
	n := flat.Len()
	if n > maxElementsForString {
		fmt.Fprintf(&b, "%v...", flat.Slice(0, maxElementsForString).Interface())
	} else {
		fmt.Fprintf(&b, "%v", t.flat)
	}
	return b.String()
}
