package gufunc

import (
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gufunc/internal/utils"
	"github.com/gomlx/gufunc/types/shapes"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"pgregory.net/rapid"
)

// Config configures the generators for one signature. Build it with
// NewConfig, chain the With* setters, and finish with one of the terminal
// methods (Shapes, BroadcastShapes, Arrays, BroadcastArrays, SizeAssignments)
// or pass it to Broadcasted or Axised.
//
// Options with scalar-or-per-argument forms (dtype, elements, choices,
// unique) apply their scalar form to every input argument; the per-argument
// form must list exactly one entry per input argument. All validation happens
// when the terminal method is called, and every problem found is reported at
// once.
type Config struct {
	sig *Signature
	err error

	minSide      sideBound
	maxSide      sideBound
	maxExtraDims int
	excluded     []int
	allowNone    bool

	dtypes   option[dtypes.DType]
	elements option[*rapid.Generator[any]]
	choices  option[any]
	unique   option[bool]
	otypes   []dtypes.DType
}

// sideBound is a normalized SizeBound: either one uniform value for every
// dimension name, or per-name values with a default for absent names. The
// broadcast sentinel BroadcastDim is looked up like any other name.
type sideBound struct {
	isSet   bool
	uniform int
	byName  map[string]int // nil when the uniform form was given
}

// effective resolves the bound for one name. fallback applies when the bound
// was never set, or when the name is absent from a per-name map.
func (b sideBound) effective(name string, fallback int) int {
	if !b.isSet {
		return fallback
	}
	if b.byName == nil {
		return b.uniform
	}
	if value, found := b.byName[name]; found {
		return value
	}
	return fallback
}

// option holds a scalar-or-per-argument configuration value before
// normalization.
type option[T any] struct {
	isSet   bool
	perArg  bool
	uniform T
	values  []T
}

// normalize resolves the option into exactly one value per argument.
func (o option[T]) normalize(numArgs int, fallback T) ([]T, error) {
	values := make([]T, numArgs)
	switch {
	case !o.isSet:
		for ii := range values {
			values[ii] = fallback
		}
	case o.perArg:
		if len(o.values) != numArgs {
			return nil, errors.WithMessagef(ErrShapeMismatch,
				"%d per-argument values given, signature has %d input arguments",
				len(o.values), numArgs)
		}
		copy(values, o.values)
	default:
		for ii := range values {
			values[ii] = o.uniform
		}
	}
	return values, nil
}

// NewConfig creates a Config for the given signature string. Parse errors are
// reported by the terminal methods.
func NewConfig(signature string) *Config {
	cfg := &Config{maxExtraDims: 0}
	cfg.sig, cfg.err = ParseSignature(signature)
	return cfg
}

// NewParsedConfig creates a Config from an already parsed signature, for
// instance one produced by Signature.Remap. The signature is cloned.
func NewParsedConfig(sig *Signature) *Config {
	if sig == nil {
		return &Config{err: errors.WithMessage(ErrInvalidConfiguration, "nil signature")}
	}
	return &Config{sig: sig.Clone()}
}

// WithMinSide sets one minimum size for every dimension name and for the
// broadcast dimensions. The default minimum is 0.
func (cfg *Config) WithMinSide(side int) *Config {
	cfg.minSide = sideBound{isSet: true, uniform: side}
	return cfg
}

// WithMinSides sets per-name minimum sizes. Names absent from the map keep
// the default minimum of 0. The BroadcastDim sentinel may be used as a key to
// bound the synthesized broadcast dimensions. Unknown names are ignored.
func (cfg *Config) WithMinSides(sides map[string]int) *Config {
	cfg.minSide = sideBound{isSet: true, byName: sides}
	return cfg
}

// WithMaxSide sets one maximum size for every dimension name and for the
// broadcast dimensions. The default maximum is DefaultMaxSide.
func (cfg *Config) WithMaxSide(side int) *Config {
	cfg.maxSide = sideBound{isSet: true, uniform: side}
	return cfg
}

// WithMaxSides sets per-name maximum sizes. Names absent from the map keep
// the default maximum of DefaultMaxSide. The BroadcastDim sentinel may be
// used as a key. Unknown names are ignored.
func (cfg *Config) WithMaxSides(sides map[string]int) *Config {
	cfg.maxSide = sideBound{isSet: true, byName: sides}
	return cfg
}

// WithMaxExtraDims sets how many leading broadcast dimensions each
// non-excluded argument may receive, at most. It only affects the Broadcast*
// generators and Axised. The default is 0.
func (cfg *Config) WithMaxExtraDims(count int) *Config {
	cfg.maxExtraDims = count
	return cfg
}

// WithExcluded sets the input argument indices that never receive broadcast
// dimensions: their generated shape is exactly their core shape, and
// Vectorize passes them whole to the wrapped function. It replaces any
// previously set indices.
func (cfg *Config) WithExcluded(argIndices ...int) *Config {
	cfg.excluded = argIndices
	return cfg
}

// WithDType sets the dtype used for every generated argument. The default is
// dtypes.Float64.
func (cfg *Config) WithDType(dtype dtypes.DType) *Config {
	cfg.dtypes = option[dtypes.DType]{isSet: true, uniform: dtype}
	return cfg
}

// WithDTypes sets one dtype per input argument.
func (cfg *Config) WithDTypes(argDTypes ...dtypes.DType) *Config {
	cfg.dtypes = option[dtypes.DType]{isSet: true, perArg: true, values: argDTypes}
	return cfg
}

// WithElements sets the element generator used for every argument. Drawn
// values are converted to the argument's dtype. When neither elements nor
// choices are set, ElementsForDType provides the defaults.
func (cfg *Config) WithElements(gen *rapid.Generator[any]) *Config {
	cfg.elements = option[*rapid.Generator[any]]{isSet: true, uniform: gen}
	return cfg
}

// WithElementsPerArg sets one element generator per input argument. A nil
// entry keeps the default for that argument.
func (cfg *Config) WithElementsPerArg(gens ...*rapid.Generator[any]) *Config {
	cfg.elements = option[*rapid.Generator[any]]{isSet: true, perArg: true, values: gens}
	return cfg
}

// WithChoices restricts every argument's elements to the given fixed set of
// values, a slice of a supported scalar type (e.g. []float64{0, 1, 2}). The
// values are converted to each argument's dtype eagerly, when the generator
// is built. Setting both elements and choices for the same argument is an
// error.
func (cfg *Config) WithChoices(values any) *Config {
	cfg.choices = option[any]{isSet: true, uniform: values}
	return cfg
}

// WithChoicesPerArg sets one fixed choice set per input argument. A nil entry
// keeps the default element generator for that argument.
func (cfg *Config) WithChoicesPerArg(values ...any) *Config {
	cfg.choices = option[any]{isSet: true, perArg: true, values: values}
	return cfg
}

// WithUnique requires every element of every generated argument to be
// distinct (within that argument's flattened values). The default is false.
func (cfg *Config) WithUnique(unique bool) *Config {
	cfg.unique = option[bool]{isSet: true, uniform: unique}
	return cfg
}

// WithUniquePerArg sets the uniqueness requirement per input argument.
func (cfg *Config) WithUniquePerArg(unique ...bool) *Config {
	cfg.unique = option[bool]{isSet: true, perArg: true, values: unique}
	return cfg
}

// WithOutputDTypes sets the dtype each output of the vectorized function is
// cast to, one per output argument of the signature. Used by Broadcasted.
func (cfg *Config) WithOutputDTypes(outputDTypes ...dtypes.DType) *Config {
	cfg.otypes = outputDTypes
	return cfg
}

// WithAllowNone allows Axised to also draw the "no axis" case, in which the
// first argument is flattened before the wrapped function is applied. The
// default is false.
func (cfg *Config) WithAllowNone(allow bool) *Config {
	cfg.allowNone = allow
	return cfg
}

// Signature returns the parsed signature, or nil if parsing failed.
func (cfg *Config) Signature() *Signature {
	return cfg.sig
}

// normalized is a Config resolved to one explicit value per argument, with
// all bounds checked. Everything downstream of validate works only with this.
type normalized struct {
	sig   *Signature
	names []string // sorted distinct non-literal names of the inputs

	minByName map[string]int
	maxByName map[string]int
	bcastMin  int
	bcastMax  int

	maxExtraDims int
	excluded     utils.Set[int]
	allowNone    bool

	dtypes   []dtypes.DType
	elements []*rapid.Generator[any]
	choices  []any // converted to the argument dtype; nil when unset
	unique   []bool
	otypes   []dtypes.DType
}

// validate resolves and checks the whole configuration, reporting every
// problem found. With forBroadcast the broadcast sentinel's bounds are
// checked too.
func (cfg *Config) validate(forBroadcast bool) (n *normalized, err error) {
	if cfg.err != nil {
		return nil, cfg.err
	}
	numArgs := len(cfg.sig.Inputs)
	n = &normalized{
		sig:          cfg.sig,
		names:        cfg.sig.DimNames(),
		maxExtraDims: cfg.maxExtraDims,
		allowNone:    cfg.allowNone,
		otypes:       cfg.otypes,
	}

	for arg, spec := range cfg.sig.Inputs {
		if spec.Rank() > MaxSupportedRank {
			err = multierr.Append(err, errors.WithMessagef(ErrInvalidConfiguration,
				"argument #%d has rank %d, the maximum supported rank is %d",
				arg, spec.Rank(), MaxSupportedRank))
		}
	}

	// Dimension name bounds.
	n.minByName = make(map[string]int, len(n.names))
	n.maxByName = make(map[string]int, len(n.names))
	for _, name := range n.names {
		minSide := cfg.minSide.effective(name, 0)
		maxSide := cfg.maxSide.effective(name, DefaultMaxSide)
		if minSide < 0 {
			err = multierr.Append(err, errors.WithMessagef(ErrInvalidBound,
				"dimension %q has negative minimum side %d", name, minSide))
		}
		if minSide > maxSide {
			err = multierr.Append(err, errors.WithMessagef(ErrInvalidBound,
				"dimension %q has minimum side %d > maximum side %d", name, minSide, maxSide))
		}
		n.minByName[name] = minSide
		n.maxByName[name] = maxSide
	}

	// Broadcast dimension bounds, only checked when they will be drawn.
	n.bcastMin = cfg.minSide.effective(BroadcastDim, 0)
	n.bcastMax = cfg.maxSide.effective(BroadcastDim, DefaultMaxSide)
	if forBroadcast {
		if cfg.maxExtraDims < 0 {
			err = multierr.Append(err, errors.WithMessagef(ErrInvalidConfiguration,
				"negative maximum of extra broadcast dimensions %d", cfg.maxExtraDims))
		}
		if cfg.maxExtraDims > 0 {
			if n.bcastMin < 0 {
				err = multierr.Append(err, errors.WithMessagef(ErrInvalidBound,
					"broadcast dimensions have negative minimum side %d", n.bcastMin))
			}
			if n.bcastMin > n.bcastMax {
				err = multierr.Append(err, errors.WithMessagef(ErrInvalidBound,
					"broadcast dimensions have minimum side %d > maximum side %d", n.bcastMin, n.bcastMax))
			}
		}
	}

	// Excluded argument indices.
	n.excluded = utils.MakeSet[int](len(cfg.excluded))
	for _, arg := range cfg.excluded {
		if arg < 0 || arg >= numArgs {
			err = multierr.Append(err, errors.WithMessagef(ErrInvalidConfiguration,
				"excluded argument #%d out of range, signature %s has %d input arguments",
				arg, cfg.sig, numArgs))
			continue
		}
		n.excluded.Insert(arg)
	}

	// Scalar-or-per-argument options.
	var optErr error
	if n.dtypes, optErr = cfg.dtypes.normalize(numArgs, dtypes.Float64); optErr != nil {
		err = multierr.Append(err, errors.WithMessage(optErr, "dtypes"))
	}
	if n.elements, optErr = cfg.elements.normalize(numArgs, nil); optErr != nil {
		err = multierr.Append(err, errors.WithMessage(optErr, "elements"))
	}
	if n.choices, optErr = cfg.choices.normalize(numArgs, nil); optErr != nil {
		err = multierr.Append(err, errors.WithMessage(optErr, "choices"))
	}
	if n.unique, optErr = cfg.unique.normalize(numArgs, false); optErr != nil {
		err = multierr.Append(err, errors.WithMessage(optErr, "unique"))
	}
	if err != nil {
		return nil, err
	}

	for arg, dtype := range n.dtypes {
		if !dtype.IsSupported() {
			err = multierr.Append(err, errors.WithMessagef(ErrInvalidConfiguration,
				"argument #%d has unsupported dtype %s", arg, dtype))
		}
	}
	for arg := range n.choices {
		if n.choices[arg] == nil {
			continue
		}
		if n.elements[arg] != nil {
			err = multierr.Append(err, errors.WithMessagef(ErrInvalidConfiguration,
				"argument #%d has both an elements generator and a choices set", arg))
			continue
		}
		converted, choiceErr := convertChoices(n.choices[arg], n.dtypes[arg])
		if choiceErr != nil {
			err = multierr.Append(err, errors.WithMessagef(choiceErr, "choices of argument #%d", arg))
			continue
		}
		n.choices[arg] = converted
	}
	if len(n.otypes) > 0 && len(n.otypes) != len(cfg.sig.Outputs) {
		err = multierr.Append(err, errors.WithMessagef(ErrShapeMismatch,
			"%d output dtypes given, signature %s has %d outputs",
			len(n.otypes), cfg.sig, len(cfg.sig.Outputs)))
	}
	for out, otype := range n.otypes {
		if !otype.IsSupported() {
			err = multierr.Append(err, errors.WithMessagef(ErrInvalidConfiguration,
				"output #%d has unsupported dtype %s", out, otype))
		}
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// convertChoices validates a fixed choice set and converts its values to the
// argument's dtype.
func convertChoices(choices any, dtype dtypes.DType) (any, error) {
	v := reflect.ValueOf(choices)
	if v.Kind() != reflect.Slice {
		return nil, errors.WithMessagef(ErrInvalidConfiguration,
			"choices must be a slice of scalars, got %T", choices)
	}
	if v.Len() == 0 {
		return nil, errors.WithMessagef(ErrInvalidConfiguration, "choices set is empty")
	}
	if elemDType := dtypes.FromGoType(v.Type().Elem()); elemDType == dtypes.InvalidDType {
		return nil, errors.WithMessagef(ErrInvalidConfiguration,
			"choices element type %s is not a supported scalar type", v.Type().Elem())
	}
	return shapes.CastAsDType(choices, dtype), nil
}
