// bornlite converts an ONNX model into a quantized flat artifact.
package main

import (
	"os"

	"github.com/born-ml/bornlite/cmd/bornlite/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
