package gufunc

import (
	"fmt"
	"strconv"

	"github.com/gomlx/gufunc/types/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"pgregory.net/rapid"
)

// coreDims resolves one argument specification to concrete dimensions, using
// the drawn size assignment for named tokens and the literal value for digit
// tokens.
func coreDims(spec ArgSpec, assignment SizeAssignment) []int {
	dims := make([]int, len(spec))
	for ii, token := range spec {
		if size, err := strconv.Atoi(token); err == nil {
			dims[ii] = size
		} else {
			dims[ii] = assignment[token]
		}
	}
	return dims
}

// drawCoreShapes draws one size assignment and resolves every input argument
// to its core shape.
func drawCoreShapes(t *rapid.T, n *normalized) []shapes.Shape {
	assignment := drawAssignment(t, n)
	argShapes := make([]shapes.Shape, len(n.sig.Inputs))
	for arg, spec := range n.sig.Inputs {
		argShapes[arg] = shapes.Make(n.dtypes[arg], coreDims(spec, assignment)...)
	}
	return argShapes
}

// drawBroadcastShapes draws core shapes plus leading broadcast dimensions.
//
// At each broadcast depth one shared size is drawn, and each argument that
// reaches that depth either uses it or flips to 1, so the drawn shapes always
// broadcast together. Excluded arguments keep exactly their core shape.
func drawBroadcastShapes(t *rapid.T, n *normalized) []shapes.Shape {
	assignment := drawAssignment(t, n)
	numArgs := len(n.sig.Inputs)
	core := make([][]int, numArgs)
	for arg, spec := range n.sig.Inputs {
		core[arg] = coreDims(spec, assignment)
	}

	extras := make([]int, numArgs)
	maxDepth := 0
	for arg := range extras {
		if n.excluded.Has(arg) {
			continue
		}
		budget := min(n.maxExtraDims, MaxSupportedRank-len(core[arg]))
		extras[arg] = rapid.IntRange(0, budget).Draw(t, fmt.Sprintf("extras#%d", arg))
		maxDepth = max(maxDepth, extras[arg])
	}

	shared := make([]int, maxDepth)
	for depth := range shared {
		shared[depth] = rapid.IntRange(n.bcastMin, n.bcastMax).Draw(t, fmt.Sprintf("bcast@%d", depth))
	}

	argShapes := make([]shapes.Shape, numArgs)
	for arg := range argShapes {
		dims := make([]int, 0, extras[arg]+len(core[arg]))
		for jj := range extras[arg] {
			depth := maxDepth - extras[arg] + jj
			size := shared[depth]
			if size != 1 && rapid.Bool().Draw(t, fmt.Sprintf("one#%d@%d", arg, depth)) {
				size = 1
			}
			dims = append(dims, size)
		}
		dims = append(dims, core[arg]...)
		argShapes[arg] = shapes.Make(n.dtypes[arg], dims...)
	}
	return argShapes
}

// Shapes returns a generator drawing one core shape per input argument of
// the signature: each argument's rank is exactly its specification's rank,
// and every occurrence of a dimension name resolves to the same drawn size.
func (cfg *Config) Shapes() (_ *rapid.Generator[[]shapes.Shape], err error) {
	n, err := cfg.validate(false)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("gufunc: building shapes generator for %s", n.sig)
	return rapid.Custom(func(t *rapid.T) []shapes.Shape {
		return drawCoreShapes(t, n)
	}), nil
}

// BroadcastShapes returns a generator like Shapes, except each non-excluded
// argument also receives up to the configured number of extra leading
// dimensions, drawn so that all the extra dimensions broadcast together.
// Bounds for the extra dimensions are set with the BroadcastDim sentinel in
// WithMinSides and WithMaxSides.
func (cfg *Config) BroadcastShapes() (_ *rapid.Generator[[]shapes.Shape], err error) {
	n, err := cfg.validate(true)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("gufunc: building broadcast shapes generator for %s (max extra dims %d)",
		n.sig, n.maxExtraDims)
	return rapid.Custom(func(t *rapid.T) []shapes.Shape {
		return drawBroadcastShapes(t, n)
	}), nil
}

// BroadcastDims computes the dimensions resulting from broadcasting all the
// given dimension lists together: lists are right-aligned, missing leading
// dimensions count as 1, and at each position all sizes must be either 1 or
// one common value. It returns an ErrShapeMismatch error if the lists do not
// broadcast together.
func BroadcastDims(dimsList ...[]int) ([]int, error) {
	rank := 0
	for _, dims := range dimsList {
		rank = max(rank, len(dims))
	}
	result := make([]int, rank)
	for depth := range result {
		common := 1
		for _, dims := range dimsList {
			pos := depth - (rank - len(dims))
			if pos < 0 {
				continue
			}
			size := dims[pos]
			if size == 1 {
				continue
			}
			if common == 1 {
				common = size
			} else if size != common {
				return nil, errors.WithMessagef(ErrShapeMismatch,
					"dimensions %v do not broadcast together at position %d from the right",
					dimsList, rank-depth)
			}
		}
		result[depth] = common
	}
	return result, nil
}
