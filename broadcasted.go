package gufunc

import (
	"k8s.io/klog/v2"
	"pgregory.net/rapid"

	"github.com/gomlx/gufunc/internal/utils"
	"github.com/gomlx/gufunc/types/tensors"
)

// BroadcastCase is one drawn broadcasting test case. Args carry extra leading
// broadcast dimensions (within the configured limits), Fn is the function
// under test and Vectorized is its broadcasting wrapper built by Vectorize.
//
// For a function that broadcasts natively, the property to check is that Fn
// and Vectorized agree on Args. For a function that only understands core
// shapes, Vectorized serves as the broadcasting reference to compare an
// independent implementation against.
type BroadcastCase struct {
	Fn         Func
	Vectorized Func
	Args       []*tensors.Tensor
}

// Broadcasted returns a generator of broadcasting test cases for fn: each
// draw generates fresh input tensors with broadcast dimensions via
// BroadcastArrays and pairs them with fn and its Vectorize wrapper. Excluded
// arguments are generated with exactly their core shape and passed through
// whole.
//
// Output dtypes (Config.WithOutputDTypes) are handed to the wrapper; they are
// required if drawn broadcasts can be empty, since then the wrapper has no
// call results to take dtypes from.
func Broadcasted(fn Func, cfg *Config) (*rapid.Generator[BroadcastCase], error) {
	n, err := cfg.validate(true)
	if err != nil {
		return nil, err
	}
	gens, err := elementGens(n)
	if err != nil {
		return nil, err
	}
	vectorized, err := Vectorize(fn, n.sig, utils.SortedKeys(n.excluded), n.otypes)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("gufunc: building broadcast case generator for %s", n.sig)
	return rapid.Custom(func(t *rapid.T) BroadcastCase {
		return BroadcastCase{
			Fn:         fn,
			Vectorized: vectorized,
			Args:       drawTensors(t, n, gens, drawBroadcastShapes(t, n)),
		}
	}), nil
}
