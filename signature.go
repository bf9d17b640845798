package gufunc

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/gomlx/gufunc/internal/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// ArgSpec is the dimension spec of one argument in a gufunc signature: one
// token per axis, each token either a dimension name (`n`, `m_2`) or a
// decimal literal (`3`). An empty ArgSpec denotes a scalar argument.
type ArgSpec []string

// Rank is the number of axes the spec requires.
func (spec ArgSpec) Rank() int { return len(spec) }

// Signature is a parsed gufunc shape signature: the dimension specs of the
// input arguments and of the outputs. Build it with ParseSignature.
type Signature struct {
	Inputs  []ArgSpec
	Outputs []ArgSpec
}

// ParseSignature parses a gufunc signature of the form
// `"(n,m),(m,p)->(n,p)"`: comma-separated dimension tokens inside
// parentheses, comma-separated argument lists, and a single `->` separating
// inputs from outputs. Scalars are written `()`. Whitespace is ignored.
//
// Tokens starting with a letter or underscore are dimension names; tokens of
// decimal digits are fixed-size literals. At least one input and one output
// argument are required. Violations return ErrMalformedSignature.
func ParseSignature(signature string) (*Signature, error) {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, signature)

	inputsPart, outputsPart, found := strings.Cut(stripped, "->")
	if !found {
		return nil, errors.WithMessagef(ErrMalformedSignature,
			"%q is missing the \"->\" separating inputs from outputs", signature)
	}
	if strings.Contains(outputsPart, "->") {
		return nil, errors.WithMessagef(ErrMalformedSignature,
			"%q has more than one \"->\"", signature)
	}
	inputs, err := parseArgSpecs(inputsPart)
	if err != nil {
		return nil, errors.WithMessagef(err, "in the inputs of %q", signature)
	}
	outputs, err := parseArgSpecs(outputsPart)
	if err != nil {
		return nil, errors.WithMessagef(err, "in the outputs of %q", signature)
	}
	return &Signature{Inputs: inputs, Outputs: outputs}, nil
}

// parseArgSpecs parses one side of a signature: `"(n,m),(),(3,p)"`.
func parseArgSpecs(side string) ([]ArgSpec, error) {
	if side == "" {
		return nil, errors.WithMessage(ErrMalformedSignature, "at least one argument is required")
	}
	var specs []ArgSpec
	rest := side
	for {
		if !strings.HasPrefix(rest, "(") {
			return nil, errors.WithMessagef(ErrMalformedSignature,
				"expected '(' at %q", rest)
		}
		closing := strings.IndexByte(rest, ')')
		if closing < 0 {
			return nil, errors.WithMessagef(ErrMalformedSignature,
				"unbalanced parenthesis at %q", rest)
		}
		spec, err := parseArgSpec(rest[1:closing])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
		rest = rest[closing+1:]
		if rest == "" {
			return specs, nil
		}
		if !strings.HasPrefix(rest, ",") {
			return nil, errors.WithMessagef(ErrMalformedSignature,
				"expected ',' between argument lists at %q", rest)
		}
		rest = rest[1:]
	}
}

// parseArgSpec parses the contents of one parenthesized group, e.g. "n,m".
func parseArgSpec(group string) (ArgSpec, error) {
	if group == "" {
		return ArgSpec{}, nil // scalar argument
	}
	tokens := strings.Split(group, ",")
	spec := make(ArgSpec, 0, len(tokens))
	for _, token := range tokens {
		if utils.IsDigits(token) {
			if _, err := strconv.Atoi(token); err != nil {
				return nil, errors.WithMessagef(ErrMalformedSignature,
					"dimension literal %q overflows int", token)
			}
		} else if !utils.IsIdentifier(token) {
			return nil, errors.WithMessagef(ErrMalformedSignature,
				"invalid dimension token %q in %q", token, "("+group+")")
		}
		spec = append(spec, token)
	}
	return spec, nil
}

// Unparse formats the signature back into its textual form. It is the exact
// inverse of ParseSignature. It fails with ErrMalformedSignature if the
// signature has no input or no output arguments, or if any token violates
// the grammar.
func (sig *Signature) Unparse() (string, error) {
	if len(sig.Inputs) == 0 {
		return "", errors.WithMessage(ErrMalformedSignature, "signature has no input arguments")
	}
	if len(sig.Outputs) == 0 {
		return "", errors.WithMessage(ErrMalformedSignature, "signature has no output arguments")
	}
	inputs, err := unparseArgSpecs(sig.Inputs)
	if err != nil {
		return "", err
	}
	outputs, err := unparseArgSpecs(sig.Outputs)
	if err != nil {
		return "", err
	}
	return inputs + "->" + outputs, nil
}

func unparseArgSpecs(specs []ArgSpec) (string, error) {
	parts := make([]string, 0, len(specs))
	for _, spec := range specs {
		for _, token := range spec {
			if !utils.IsIdentifier(token) && !utils.IsDigits(token) {
				return "", errors.WithMessagef(ErrMalformedSignature,
					"invalid dimension token %q", token)
			}
		}
		parts = append(parts, "("+strings.Join(spec, ",")+")")
	}
	return strings.Join(parts, ","), nil
}

// String implements fmt.Stringer. Invalid signatures print a placeholder.
func (sig *Signature) String() string {
	s, err := sig.Unparse()
	if err != nil {
		return "<invalid gufunc signature>"
	}
	return s
}

// Clone returns a deep copy of the signature.
func (sig *Signature) Clone() *Signature {
	cloneSide := func(specs []ArgSpec) []ArgSpec {
		out := make([]ArgSpec, len(specs))
		for ii, spec := range specs {
			out[ii] = slices.Clone(spec)
		}
		return out
	}
	return &Signature{Inputs: cloneSide(sig.Inputs), Outputs: cloneSide(sig.Outputs)}
}

// Remap returns a new Signature with every non-literal dimension name
// replaced according to renames, over inputs and outputs alike. Names absent
// from the map and literal tokens pass through unchanged. A replacement may
// be another name or a decimal literal (fixing the dimension's size), and
// must itself be a valid token, otherwise Remap fails with
// ErrMalformedSignature. The receiver is never mutated, and the order of
// arguments and axes is preserved.
func (sig *Signature) Remap(renames map[string]string) (*Signature, error) {
	for from, to := range renames {
		if !utils.IsIdentifier(to) && !utils.IsDigits(to) {
			return nil, errors.WithMessagef(ErrMalformedSignature,
				"cannot remap %q to invalid token %q", from, to)
		}
	}
	remapped := sig.Clone()
	for _, side := range [][]ArgSpec{remapped.Inputs, remapped.Outputs} {
		for _, spec := range side {
			for ii, token := range spec {
				if utils.IsDigits(token) {
					continue
				}
				if to, found := renames[token]; found {
					spec[ii] = to
				}
			}
		}
	}
	return remapped, nil
}

// DimNames returns the sorted distinct non-literal dimension names appearing
// in the signature's input specs. These are the names the size resolver must
// assign.
func (sig *Signature) DimNames() []string {
	names := utils.MakeSet[string]()
	for _, spec := range sig.Inputs {
		for _, token := range spec {
			if !utils.IsDigits(token) {
				names.Insert(token)
			}
		}
	}
	return utils.SortedKeys(names)
}
