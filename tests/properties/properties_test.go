package properties

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	. "github.com/gomlx/gufunc"
	"github.com/gomlx/gufunc/types/shapes"
	"github.com/gomlx/gufunc/types/tensors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func must1[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}

// matMulCore multiplies one (m, n) by one (n, p) matrix.
func matMulCore(args ...*tensors.Tensor) ([]*tensors.Tensor, error) {
	lhs, rhs := args[0], args[1]
	m, n := lhs.Shape().Dim(0), lhs.Shape().Dim(1)
	p := rhs.Shape().Dim(1)
	if rhs.Shape().Dim(0) != n {
		return nil, errors.Errorf("cannot multiply %s by %s", lhs.Shape(), rhs.Shape())
	}
	out := tensors.FromShape(shapes.Make(dtypes.Float64, m, p))
	lhsFlat := tensors.Flat[float64](lhs)
	rhsFlat := tensors.Flat[float64](rhs)
	outFlat := tensors.Flat[float64](out)
	for i := 0; i < m; i++ {
		for j := 0; j < p; j++ {
			for k := 0; k < n; k++ {
				outFlat[i*p+j] += lhsFlat[i*n+k] * rhsFlat[k*p+j]
			}
		}
	}
	return []*tensors.Tensor{out}, nil
}

// batchAt reads one element given the broadcast batch index and core indices,
// right-aligning the batch index and clamping size-1 batch axes to 0.
func batchAt(x *tensors.Tensor, batchIdx []int, core ...int) float64 {
	dims := x.Shape().Dimensions
	extra := len(dims) - len(core)
	indices := make([]int, 0, len(dims))
	for axis := 0; axis < extra; axis++ {
		idx := batchIdx[len(batchIdx)-extra+axis]
		if dims[axis] == 1 {
			idx = 0
		}
		indices = append(indices, idx)
	}
	indices = append(indices, core...)
	return x.At(indices...).(float64)
}

// referenceMatMul computes the batched matrix product with plain indexing,
// independently of the lane machinery under test.
func referenceMatMul(lhs, rhs *tensors.Tensor) *tensors.Tensor {
	lhsDims, rhsDims := lhs.Shape().Dimensions, rhs.Shape().Dimensions
	m, n := lhsDims[len(lhsDims)-2], lhsDims[len(lhsDims)-1]
	p := rhsDims[len(rhsDims)-1]
	batch := must1(BroadcastDims(lhsDims[:len(lhsDims)-2], rhsDims[:len(rhsDims)-2]))
	outDims := append(append([]int{}, batch...), m, p)
	out := tensors.FromShape(shapes.Make(dtypes.Float64, outDims...))
	if out.Size() == 0 {
		return out
	}
	batchIdx := make([]int, len(batch))
	for {
		for i := 0; i < m; i++ {
			for j := 0; j < p; j++ {
				sum := 0.0
				for k := 0; k < n; k++ {
					sum += batchAt(lhs, batchIdx, i, k) * batchAt(rhs, batchIdx, k, j)
				}
				out.SetAt(sum, append(append([]int{}, batchIdx...), i, j)...)
			}
		}
		axis := len(batch) - 1
		for ; axis >= 0; axis-- {
			batchIdx[axis]++
			if batchIdx[axis] < batch[axis] {
				break
			}
			batchIdx[axis] = 0
		}
		if axis < 0 {
			return out
		}
	}
}

func TestMatMul(t *testing.T) {
	cfg := NewConfig("(m,n),(n,p)->(m,p)").
		WithMaxExtraDims(2).
		WithOutputDTypes(dtypes.Float64)
	gen := must1(Broadcasted(matMulCore, cfg))
	rapid.Check(t, func(t *rapid.T) {
		tc := gen.Draw(t, "case")
		got := must1(tc.Vectorized(tc.Args...))
		require.Len(t, got, 1)
		want := referenceMatMul(tc.Args[0], tc.Args[1])
		require.True(t, want.Equal(got[0]), "want %s, got %s", want, got[0])
	})
}

func TestMatMulDrawnShapes(t *testing.T) {
	cfg := NewConfig("(m,n),(n,p)->(m,p)").WithMaxExtraDims(3)
	gen := must1(cfg.BroadcastShapes())
	rapid.Check(t, func(t *rapid.T) {
		drawn := gen.Draw(t, "shapes")
		require.Len(t, drawn, 2)
		lhs, rhs := drawn[0].Dimensions, drawn[1].Dimensions
		require.GreaterOrEqual(t, len(lhs), 2)
		require.GreaterOrEqual(t, len(rhs), 2)
		require.Equal(t, lhs[len(lhs)-1], rhs[len(rhs)-2], "n must be shared")
		_, err := BroadcastDims(lhs[:len(lhs)-2], rhs[:len(rhs)-2])
		require.NoError(t, err, "extra dimensions must broadcast together")
	})
}

func TestImpossibleBounds(t *testing.T) {
	cfg := NewConfig("(n)->()").
		WithMinSides(map[string]int{"n": 5}).
		WithMaxSides(map[string]int{"n": 2})
	_, err := cfg.Arrays()
	require.ErrorIs(t, err, ErrInvalidBound)

	// Sentinel bounds only matter when broadcast dimensions are drawn.
	cfg = NewConfig("(n)->()").
		WithMinSides(map[string]int{BroadcastDim: 3}).
		WithMaxSides(map[string]int{BroadcastDim: 1}).
		WithMaxExtraDims(1)
	_, err = cfg.Shapes()
	require.NoError(t, err)
	_, err = cfg.BroadcastShapes()
	require.ErrorIs(t, err, ErrInvalidBound)
}
