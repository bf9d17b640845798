package gufunc

import (
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gufunc/types/tensors"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
	"pgregory.net/rapid"
)

func TestArrays(t *testing.T) {
	gen := must(NewConfig("(n,m),(m,p)->(n,p)").WithDType(dtypes.Float32).Arrays())
	rapid.Check(t, func(t *rapid.T) {
		args := gen.Draw(t, "args")
		require.Len(t, args, 2)
		require.Equal(t, dtypes.Float32, args[0].DType())
		require.Equal(t, dtypes.Float32, args[1].DType())
		require.Equal(t, 2, args[0].Rank())
		require.Equal(t, args[0].Shape().Dim(1), args[1].Shape().Dim(0), "shared dimension m")
		flat := tensors.Flat[float32](args[0])
		require.Len(t, flat, args[0].Size())
	})
}

func TestArrays_Choices(t *testing.T) {
	// Choices are given as float64 and converted to the argument dtype when
	// the generator is built.
	gen := must(NewConfig("(n)->(n)").
		WithMinSide(1).
		WithChoices([]float64{0, 1, 2}).
		WithDType(dtypes.Int32).
		Arrays())
	rapid.Check(t, func(t *rapid.T) {
		args := gen.Draw(t, "args")
		for _, value := range tensors.Flat[int32](args[0]) {
			require.Contains(t, []int32{0, 1, 2}, value)
		}
	})
}

func TestArrays_ChoicesPerArg(t *testing.T) {
	gen := must(NewConfig("(n),(n)->(n)").
		WithMinSide(1).
		WithChoicesPerArg([]int32{7}, nil).
		WithDTypes(dtypes.Int32, dtypes.Float64).
		Arrays())
	rapid.Check(t, func(t *rapid.T) {
		args := gen.Draw(t, "args")
		for _, value := range tensors.Flat[int32](args[0]) {
			require.Equal(t, int32(7), value)
		}
		require.Equal(t, dtypes.Float64, args[1].DType(), "nil choices keeps the default generator")
	})
}

func TestArrays_Unique(t *testing.T) {
	gen := must(NewConfig("(n)->(n)").
		WithDType(dtypes.Int64).
		WithUnique(true).
		Arrays())
	rapid.Check(t, func(t *rapid.T) {
		args := gen.Draw(t, "args")
		flat := tensors.Flat[int64](args[0])
		seen := make(map[int64]bool, len(flat))
		for _, value := range flat {
			require.False(t, seen[value], "duplicate element %d", value)
			seen[value] = true
		}
	})
}

func TestArrays_UniqueAfterConversion(t *testing.T) {
	// Elements are drawn as float64 and converted to Int32; uniqueness has to
	// hold for the converted values, not the drawn ones, otherwise 1.2 and
	// 1.7 would both land as 1.
	gen := must(NewConfig("(n)->(n)").
		WithMinSide(2).
		WithDType(dtypes.Int32).
		WithElements(rapid.Float64Range(0, 1000).AsAny()).
		WithUnique(true).
		Arrays())
	rapid.Check(t, func(t *rapid.T) {
		args := gen.Draw(t, "args")
		flat := tensors.Flat[int32](args[0])
		seen := make(map[int32]bool, len(flat))
		for _, value := range flat {
			require.False(t, seen[value], "duplicate element %d after conversion", value)
			seen[value] = true
		}
	})
}

func TestArrays_CustomElements(t *testing.T) {
	gen := must(NewConfig("(n)->(n)").
		WithElements(rapid.Float64Range(0, 1).AsAny()).
		Arrays())
	rapid.Check(t, func(t *rapid.T) {
		args := gen.Draw(t, "args")
		for _, value := range tensors.Flat[float64](args[0]) {
			require.GreaterOrEqual(t, value, 0.0)
			require.LessOrEqual(t, value, 1.0)
		}
	})
}

func TestArrays_HalfPrecision(t *testing.T) {
	gen := must(NewConfig("(n)->(n)").WithDType(dtypes.Float16).Arrays())
	rapid.Check(t, func(t *rapid.T) {
		args := gen.Draw(t, "args")
		for _, value := range tensors.Flat[float16.Float16](args[0]) {
			asFloat := float64(value.Float32())
			require.False(t, math.IsNaN(asFloat) || math.IsInf(asFloat, 0),
				"default float16 elements are finite, got %v", value)
		}
	})
}

func TestBroadcastArrays(t *testing.T) {
	gen := must(NewConfig("(n,m),(m,p)->(n,p)").
		WithMaxExtraDims(3).
		BroadcastArrays())
	rapid.Check(t, func(t *rapid.T) {
		args := gen.Draw(t, "args")
		require.Len(t, args, 2)
		extras := make([][]int, len(args))
		for arg, tensor := range args {
			require.GreaterOrEqual(t, tensor.Rank(), 2)
			require.LessOrEqual(t, tensor.Rank(), 2+3)
			extras[arg] = tensor.Shape().Dimensions[:tensor.Rank()-2]
		}
		_, err := BroadcastDims(extras...)
		require.NoError(t, err, "drawn extra dimensions must broadcast")
	})
}

func TestBroadcastArrays_Excluded(t *testing.T) {
	gen := must(NewConfig("(n),()->(n)").
		WithMaxExtraDims(2).
		WithExcluded(1).
		BroadcastArrays())
	rapid.Check(t, func(t *rapid.T) {
		args := gen.Draw(t, "args")
		require.True(t, args[1].Shape().IsScalar(), "excluded argument keeps its core shape")
	})
}
