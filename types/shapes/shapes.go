// Package shapes defines Shape, the combination of a data type (dtypes.DType)
// and dimensions, used to describe the arrays handled by the gufunc
// generators.
//
// Glossary:
//   - Rank: the number of axes of a shape. A scalar has rank 0.
//   - Axis: the index of a dimension. A shape of rank 2 has axes 0 and 1.
//   - Dimension: the size along an axis. Zero-sized dimensions are valid,
//     they describe arrays with no elements.
//
// Shapes are cheap value types: pass them by value, use Clone when holding on
// to the Dimensions slice.
package shapes

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"golang.org/x/exp/slices"
)

// Shape describes the type and dimensions of an array: a DType and one
// dimension size per axis. A rank-0 shape (no dimensions) is a scalar.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape with the given dtype and dimensions. Dimensions of
// size zero are valid; negative dimensions are a programming error and panic.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	for _, dim := range dimensions {
		if dim < 0 {
			panic(fmt.Sprintf("shapes.Make: invalid negative dimension %d in %v", dim, dimensions))
		}
	}
	return Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
}

// Invalid returns an invalid Shape, for which Ok returns false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether the shape is valid: a valid dtype and no negative
// dimensions.
func (s Shape) Ok() bool {
	if s.DType == dtypes.InvalidDType {
		return false
	}
	for _, dim := range s.Dimensions {
		if dim < 0 {
			return false
		}
	}
	return true
}

// Rank returns the number of axes of the shape. Scalars have rank 0.
func (s Shape) Rank() int {
	return len(s.Dimensions)
}

// IsScalar returns whether the shape is valid and has rank 0.
func (s Shape) IsScalar() bool {
	return s.Ok() && s.Rank() == 0
}

// Dim returns the dimension of the given axis. Negative axes count from the
// end, so Dim(-1) is the dimension of the last axis. It panics if axis is out
// of range.
func (s Shape) Dim(axis int) int {
	adjusted := axis
	if adjusted < 0 {
		adjusted += s.Rank()
	}
	if adjusted < 0 || adjusted >= s.Rank() {
		panic(fmt.Sprintf("shapes.Dim: axis %d out of range for rank %d shape", axis, s.Rank()))
	}
	return s.Dimensions[adjusted]
}

// Size returns the number of elements an array of this shape holds: the
// product of all dimensions, 1 for scalars and 0 if any dimension is 0.
func (s Shape) Size() int {
	size := 1
	for _, dim := range s.Dimensions {
		size *= dim
	}
	return size
}

// Memory returns the number of bytes needed to store an array of this shape.
func (s Shape) Memory() uintptr {
	return uintptr(s.Size()) * s.DType.Memory()
}

// Clone makes a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// Equal compares dtype and dimensions.
func (s Shape) Equal(other Shape) bool {
	return s.DType == other.DType && slices.Equal(s.Dimensions, other.Dimensions)
}

// Strides returns the row-major strides of the shape, in number of elements
// per axis. Empty for scalars.
func (s Shape) Strides() []int {
	rank := s.Rank()
	if rank == 0 {
		return nil
	}
	strides := make([]int, rank)
	stride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= s.Dimensions[axis]
	}
	return strides
}

// CheckDims checks that the shape has the given dimensions and rank. A -1
// for a dimension means any value is accepted for that axis.
func (s Shape) CheckDims(dimensions ...int) error {
	if s.Rank() != len(dimensions) {
		return fmt.Errorf("shape %s has rank %d, wanted rank %d", s, s.Rank(), len(dimensions))
	}
	for axis, want := range dimensions {
		if want != -1 && s.Dimensions[axis] != want {
			return fmt.Errorf("shape %s has dimension %d on axis %d, wanted %d", s, s.Dimensions[axis], axis, want)
		}
	}
	return nil
}

// Check checks that the shape has the given dtype, dimensions and rank. A -1
// for a dimension means any value is accepted for that axis.
func (s Shape) Check(dtype dtypes.DType, dimensions ...int) error {
	if s.DType != dtype {
		return fmt.Errorf("shape %s has dtype %s, wanted %s", s, s.DType, dtype)
	}
	return s.CheckDims(dimensions...)
}

// String implements fmt.Stringer, printing as "(DType)[dim0 dim1 ...]".
func (s Shape) String() string {
	if !s.Ok() {
		return "(invalid shape)"
	}
	if s.IsScalar() {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, 0, s.Rank())
	for _, dim := range s.Dimensions {
		parts = append(parts, fmt.Sprintf("%d", dim))
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}
