package tensors_test

import (
	"reflect"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gufunc/types/shapes"
	"github.com/gomlx/gufunc/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFromValue(t *testing.T) {
	t.Run("nested slices", func(t *testing.T) {
		x, err := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
		require.NoError(t, err)
		assert.Equal(t, dtypes.Float32, x.DType())
		assert.Equal(t, []int{2, 3}, x.Shape().Dimensions)
		assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, tensors.Flat[float32](x))
	})

	t.Run("scalar", func(t *testing.T) {
		x, err := tensors.FromValue(int32(7))
		require.NoError(t, err)
		assert.Equal(t, 0, x.Rank())
		assert.Equal(t, 1, x.Size())
		assert.Equal(t, int32(7), x.At())
	})

	t.Run("empty slice", func(t *testing.T) {
		x, err := tensors.FromValue([][]float64{})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 0}, x.Shape().Dimensions)
		assert.Equal(t, 0, x.Size())
	})

	t.Run("irregular slices fail", func(t *testing.T) {
		_, err := tensors.FromValue([][]int32{{1, 2}, {3}})
		require.Error(t, err)
	})

	t.Run("unsupported type fails", func(t *testing.T) {
		_, err := tensors.FromValue("not a tensor")
		require.Error(t, err)
	})
}

func TestFromFlatDataAndDimensions(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	assert.Equal(t, dtypes.Float64, x.DType())
	assert.Equal(t, []int{2, 3}, x.Shape().Dimensions)
	assert.Equal(t, float64(6), x.At(1, 2))

	t.Run("go int is re-typed", func(t *testing.T) {
		x := tensors.FromFlatDataAndDimensions([]int{1, 2, 3}, 3)
		assert.Equal(t, dtypes.FromGenericsType[int](), x.DType())
		// The flat data is stored as the dtype's Go type, not as []int.
		assert.Equal(t, x.DType().GoType(), reflect.TypeOf(x.ConstFlatAny()).Elem())
	})

	t.Run("size mismatch panics", func(t *testing.T) {
		assert.Panics(t, func() {
			tensors.FromFlatDataAndDimensions([]float32{1, 2, 3}, 2, 2)
		})
	})
}

func TestFromFlatAnyAndShape(t *testing.T) {
	shape := shapes.Make(dtypes.Int64, 2, 2)
	x, err := tensors.FromFlatAnyAndShape([]int64{1, 2, 3, 4}, shape)
	require.NoError(t, err)
	assert.Equal(t, int64(4), x.At(1, 1))

	_, err = tensors.FromFlatAnyAndShape([]int32{1, 2, 3, 4}, shape)
	assert.Error(t, err, "dtype mismatch")
	_, err = tensors.FromFlatAnyAndShape([]int64{1, 2}, shape)
	assert.Error(t, err, "size mismatch")
	_, err = tensors.FromFlatAnyAndShape(int64(3), shape)
	assert.Error(t, err, "not a slice")
	_, err = tensors.FromFlatAnyAndShape([]int64{}, shapes.Invalid())
	assert.Error(t, err, "invalid shape")
}

func TestFlat(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 2, 2)
	flat := tensors.Flat[float32](x)
	flat[0] = 100
	assert.Equal(t, float32(100), x.At(0, 0), "Flat aliases the tensor data")
	assert.Panics(t, func() { tensors.Flat[float64](x) }, "wrong dtype")
}

func TestCoreSliceAndCopyFrom(t *testing.T) {
	// Two (2, 2) cores stored back to back in a (2, 2, 2) tensor.
	x := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2)
	core := x.CoreSlice(4, 2, 2)
	assert.Equal(t, []int{2, 2}, core.Shape().Dimensions)
	assert.Equal(t, []float64{5, 6, 7, 8}, tensors.Flat[float64](core))

	// Writing through the view mutates the parent.
	core.CopyFrom(tensors.FromFlatDataAndDimensions([]float64{50, 60, 70, 80}, 4))
	assert.Equal(t, []float64{1, 2, 3, 4, 50, 60, 70, 80}, tensors.Flat[float64](x))

	assert.Panics(t, func() {
		core.CopyFrom(tensors.FromFlatDataAndDimensions([]float64{1}, 1))
	}, "size mismatch")
	assert.Panics(t, func() {
		core.CopyFrom(tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 4))
	}, "dtype mismatch")
}

func TestClone(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]int32{1, 2, 3}, 3)
	y := x.Clone()
	tensors.Flat[int32](y)[0] = 100
	assert.Equal(t, int32(1), x.At(0), "clone does not alias")
	assert.Equal(t, int32(100), y.At(0))
}

func TestEqual(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]float64{1, 2}, 2)
	assert.True(t, x.Equal(x.Clone()))
	assert.False(t, x.Equal(tensors.FromFlatDataAndDimensions([]float64{1, 3}, 2)), "different values")
	assert.False(t, x.Equal(tensors.FromFlatDataAndDimensions([]float64{1, 2}, 2, 1)), "different dimensions")
	assert.False(t, x.Equal(tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)), "different dtype")
	assert.False(t, x.Equal(nil))
	var nilTensor *tensors.Tensor
	assert.True(t, nilTensor.Equal(nil))
}

func TestConvertTo(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]float64{1.7, -2.3, 3.0}, 3)
	y := x.ConvertTo(dtypes.Int32)
	assert.Equal(t, dtypes.Int32, y.DType())
	assert.Equal(t, []int32{1, -2, 3}, tensors.Flat[int32](y), "conversion truncates")

	same := x.ConvertTo(dtypes.Float64)
	tensors.Flat[float64](same)[0] = 100
	assert.Equal(t, float64(1.7), x.At(0), "identity conversion still copies")
}

func TestReshape(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]int64{1, 2, 3, 4, 5, 6}, 2, 3)
	y := x.Reshape(3, 2)
	assert.Equal(t, []int{3, 2}, y.Shape().Dimensions)
	assert.Equal(t, int64(4), y.At(1, 1), "row-major data is preserved")

	tensors.Flat[int64](y)[0] = 100
	assert.Equal(t, int64(100), x.At(0, 0), "reshape aliases the data")

	flat := x.Flatten()
	assert.Equal(t, 1, flat.Rank())
	assert.Equal(t, 6, flat.Size())

	assert.Panics(t, func() { x.Reshape(4, 2) }, "size change")
}

func TestAtSetAt(t *testing.T) {
	x := tensors.FromShape(shapes.Make(dtypes.Float32, 2, 3))
	x.SetAt(float32(42), 1, 2)
	assert.Equal(t, float32(42), x.At(1, 2))
	assert.Equal(t, float32(0), x.At(0, 0), "FromShape zero-initializes")

	assert.Panics(t, func() { x.At(2, 0) }, "index out of range")
	assert.Panics(t, func() { x.At(0) }, "wrong number of indices")
}

func TestTranspose(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]int32{1, 2, 3, 4, 5, 6}, 2, 3)
	y := x.Transpose(1, 0)
	assert.Equal(t, []int{3, 2}, y.Shape().Dimensions)
	assert.Equal(t, []int32{1, 4, 2, 5, 3, 6}, tensors.Flat[int32](y))

	assert.Panics(t, func() { x.Transpose(0) }, "wrong permutation length")
	assert.Panics(t, func() { x.Transpose(0, 0) }, "repeated axis")
	assert.Panics(t, func() { x.Transpose(0, 2) }, "axis out of range")
}

func TestMoveAxis(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4, 5, 6}, 1, 2, 3)
	y := x.MoveAxis(2, 0)
	assert.Equal(t, []int{3, 1, 2}, y.Shape().Dimensions)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, tensors.Flat[float64](y))

	z := x.MoveAxis(-1, 0)
	assert.True(t, y.Equal(z), "negative axes count from the end")

	t.Run("round trip", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			dims := rapid.SliceOfN(rapid.IntRange(1, 4), 1, 4).Draw(rt, "dims")
			x := tensors.FromShape(shapes.Make(dtypes.Int32, dims...))
			flat := tensors.Flat[int32](x)
			for ii := range flat {
				flat[ii] = int32(ii)
			}
			from := rapid.IntRange(0, len(dims)-1).Draw(rt, "from")
			to := rapid.IntRange(0, len(dims)-1).Draw(rt, "to")
			moved := x.MoveAxis(from, to)
			assert.Equal(rt, dims[from], moved.Shape().Dimensions[to])
			assert.True(rt, x.Equal(moved.MoveAxis(to, from)))
		})
	})
}

func TestString(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]int32{1, 2, 3}, 3)
	assert.Equal(t, "(Int32)[3]: [1 2 3]", x.String())
	var nilTensor *tensors.Tensor
	assert.Equal(t, "(nil tensor)", nilTensor.String())

	big := tensors.FromShape(shapes.Make(dtypes.Int8, 20, 20))
	assert.Contains(t, big.String(), "...", "long tensors are elided")
}
