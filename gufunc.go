// Package gufunc generates test data driven by generalized-universal-function
// (gufunc) shape signatures, in the format used by numpy.vectorize and
// numpy's generalized ufuncs: `"(n,m),(m,p)->(n,p)"`.
//
// Given a signature and size bounds, it builds shrinkable pgregory.net/rapid
// generators of:
//
//   - per-argument shapes satisfying the signature, where equal dimension
//     names get equal sizes within one draw (Config.Shapes);
//   - the same with extra leading broadcast dimensions, jointly legal under
//     numpy broadcasting rules (Config.BroadcastShapes);
//   - tensors filled according to dtype/elements/uniqueness configuration
//     (Config.Arrays, Config.BroadcastArrays);
//   - ready-made equivalence test cases pairing a function with a
//     mechanically broadcast-aware (Broadcasted) or axis-generalized (Axised)
//     version of itself, plus compatible generated arguments.
//
// Everything is validated eagerly when the generator is constructed, so a bad
// signature or configuration fails deterministically, never mid-sampling.
//
// Example, inside a rapid property:
//
//	gen := must.M1(gufunc.NewConfig("(n,m),(m,p)->(n,p)").
//		WithMinSide(1).WithMaxSide(3).
//		Shapes())
//	rapid.Check(t, func(t *rapid.T) {
//		shapes := gen.Draw(t, "shapes")
//		// shapes[0] is (n,m), shapes[1] is (m,p), with the same m.
//	})
package gufunc

// DefaultMaxSide is the maximum size drawn for a dimension whose upper bound
// was not set explicitly.
const DefaultMaxSide = 5

// MaxSupportedRank caps the total rank (core plus broadcast dimensions) of
// any generated shape. It matches numpy's maximum number of dimensions.
const MaxSupportedRank = 32

// BroadcastDim is the pseudo-name accepted as a key in the per-name bound
// maps (Config.WithMinSides, Config.WithMaxSides) to bound the sizes of the
// synthesized leading broadcast dimensions. It is deliberately not a valid
// dimension name, so it can never collide with a name used in a signature.
const BroadcastDim = "..."
