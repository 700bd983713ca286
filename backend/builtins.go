package backend

import (
	"fmt"
	"io"
)

// registerHostFunctions installs the functions programs reach via
// "extern putchard(x)" and "extern printd(x)". Both return 0.
func registerHostFunctions(e *Engine, out io.Writer) {
	e.RegisterBuiltin("putchard", 1, func(args []float64) float64 {
		out.Write([]byte{byte(int(args[0]))})
		return 0
	})
	e.RegisterBuiltin("printd", 1, func(args []float64) float64 {
		fmt.Fprintf(out, "%f\n", args[0])
		return 0
	})
}
