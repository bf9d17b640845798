package gufunc

import "github.com/pkg/errors"

// Error kinds reported by this package. Test with errors.Is; the returned
// errors carry messages with the offending detail.
var (
	// ErrMalformedSignature is returned when a signature string (or a remap
	// target) violates the gufunc signature grammar, or when a signature has
	// no input or no output arguments.
	ErrMalformedSignature = errors.New("malformed gufunc signature")

	// ErrInvalidBound is returned when the effective minimum side of a
	// dimension (or of the broadcast sentinel) exceeds its effective maximum,
	// or when a bound is negative.
	ErrInvalidBound = errors.New("invalid dimension size bound")

	// ErrShapeMismatch is returned when a per-argument configuration (dtypes,
	// elements, choices, unique) does not have exactly one entry per input
	// argument of the signature, and by vectorized calls whose actual shapes
	// contradict the signature: core dimensions that disagree with a literal
	// or with another occurrence of the same name, leading dimensions that do
	// not broadcast together, or a wrapped function returning outputs of the
	// wrong count or shape.
	ErrShapeMismatch = errors.New("shapes do not match signature")

	// ErrInvalidConfiguration is returned for configurations that can never
	// generate: an Axised first argument whose spec is not rank 1, conflicting
	// element sources, a negative extra-dimension count, or a vectorized call
	// over zero broadcast lanes without output dtypes to build the empty
	// results from.
	ErrInvalidConfiguration = errors.New("invalid generator configuration")
)
