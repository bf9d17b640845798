// Command sigtool inspects gufunc shape signatures from the command line:
// it parses and normalizes a signature, optionally remaps dimension names,
// and prints sample shape sets drawn from the signature's generators.
//
// Examples:
//
//	sigtool -signature "(m,n),(n,p)->(m,p)"
//	sigtool -signature "(m,n),(n,p)->(m,p)" -remap "m=3,p=k"
//	sigtool -signature "(n)->()" -samples 5 -broadcast -max_extra_dims 2
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/gomlx/gufunc"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagSignature = flag.String("signature", "", "gufunc shape signature to inspect, e.g. \"(m,n),(n,p)->(m,p)\"")
	flagRemap     = flag.String("remap", "", "comma-separated dimension renames, e.g. \"m=3,n=k\"")
	flagSamples   = flag.Int("samples", 0, "number of sample shape sets to draw")
	flagBroadcast = flag.Bool("broadcast", false, "draw broadcast shapes instead of plain core shapes")
	flagMinSide   = flag.Int("min_side", 0, "minimum size of every drawn dimension")
	flagMaxSide   = flag.Int("max_side", gufunc.DefaultMaxSide, "maximum size of every drawn dimension")
	flagExtraDims = flag.Int("max_extra_dims", 2, "maximum broadcast dimensions per argument (with -broadcast)")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagSignature == "" {
		flag.Usage()
		log.Fatal("Failed: -signature is required")
	}

	sig := must.M1(gufunc.ParseSignature(*flagSignature))
	fmt.Printf("signature: %s\n", must.M1(sig.Unparse()))
	fmt.Printf("inputs:    %d, ranks %v\n", len(sig.Inputs), ranks(sig.Inputs))
	fmt.Printf("outputs:   %d, ranks %v\n", len(sig.Outputs), ranks(sig.Outputs))
	fmt.Printf("dim names: %v\n", sig.DimNames())

	if *flagRemap != "" {
		remapped := must.M1(sig.Remap(must.M1(parseRenames(*flagRemap))))
		fmt.Printf("remapped:  %s\n", must.M1(remapped.Unparse()))
		sig = remapped
	}

	if *flagSamples <= 0 {
		return
	}
	cfg := gufunc.NewParsedConfig(sig).
		WithMinSide(*flagMinSide).
		WithMaxSide(*flagMaxSide).
		WithMaxExtraDims(*flagExtraDims)
	terminal := cfg.Shapes
	if *flagBroadcast {
		terminal = cfg.BroadcastShapes
	}
	gen := must.M1(terminal())
	for ii := 0; ii < *flagSamples; ii++ {
		shapeSet := gen.Example()
		parts := make([]string, len(shapeSet))
		for jj, shape := range shapeSet {
			parts[jj] = fmt.Sprintf("%v", shape.Dimensions)
		}
		fmt.Printf("sample %d:  %s\n", ii, strings.Join(parts, " "))
	}
}

func ranks(specs []gufunc.ArgSpec) []int {
	result := make([]int, len(specs))
	for ii, spec := range specs {
		result[ii] = spec.Rank()
	}
	return result
}

// parseRenames parses "old=new" pairs separated by commas.
func parseRenames(value string) (map[string]string, error) {
	renames := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		from, to, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || from == "" || to == "" {
			return nil, fmt.Errorf("invalid rename %q, want \"old=new\"", pair)
		}
		renames[from] = to
	}
	return renames, nil
}
