package gufunc

import (
	"pgregory.net/rapid"
)

// SizeAssignment maps each dimension name of a signature to the size drawn
// for it in one example. Literal (digit) tokens never appear in it, their
// size is fixed by the signature.
type SizeAssignment map[string]int

// drawAssignment draws one size per dimension name, within the resolved
// bounds. Names are visited in sorted order so draw labels are stable.
func drawAssignment(t *rapid.T, n *normalized) SizeAssignment {
	assignment := make(SizeAssignment, len(n.names))
	for _, name := range n.names {
		assignment[name] = rapid.IntRange(n.minByName[name], n.maxByName[name]).Draw(t, "dim:"+name)
	}
	return assignment
}

// SizeAssignments returns a generator of size assignments for the configured
// signature: every draw binds each dimension name to one size within its
// bounds. The same assignment is used for every occurrence of a name, across
// all input and output arguments of a draw.
func (cfg *Config) SizeAssignments() (*rapid.Generator[SizeAssignment], error) {
	n, err := cfg.validate(false)
	if err != nil {
		return nil, err
	}
	return rapid.Custom(func(t *rapid.T) SizeAssignment {
		return drawAssignment(t, n)
	}), nil
}
