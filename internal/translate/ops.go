package translate

import (
	"sort"
	"strings"

	"github.com/born-ml/bornlite/internal/onnx"
)

// opSpec describes how one ONNX op maps onto a native op.
type opSpec struct {
	// symbol is the kernel name the translator resolves. The unary ops that
	// predate the qualified namespace still use their legacy top-level names.
	symbol string
	// inputs bounds the ONNX input count; max < 0 means unbounded.
	minInputs, maxInputs int
	// attrs lists the ONNX attributes copied onto the native node.
	attrs []string
}

var opTable = map[string]opSpec{
	"Add": {symbol: "math.add", minInputs: 2, maxInputs: 2},
	"Sub": {symbol: "math.subtract", minInputs: 2, maxInputs: 2},
	"Mul": {symbol: "math.multiply", minInputs: 2, maxInputs: 2},
	"Div": {symbol: "math.divide", minInputs: 2, maxInputs: 2},
	"Pow": {symbol: "math.pow", minInputs: 2, maxInputs: 2},

	"MatMul": {symbol: "linalg.matmul", minInputs: 2, maxInputs: 2},
	"Gemm":   {symbol: "linalg.gemm", minInputs: 2, maxInputs: 3, attrs: []string{"alpha", "beta", "transA", "transB"}},

	"Neg":     {symbol: "math.negative", minInputs: 1, maxInputs: 1},
	"Abs":     {symbol: "abs", minInputs: 1, maxInputs: 1},
	"Ceil":    {symbol: "ceil", minInputs: 1, maxInputs: 1},
	"Floor":   {symbol: "floor", minInputs: 1, maxInputs: 1},
	"Sin":     {symbol: "sin", minInputs: 1, maxInputs: 1},
	"Cos":     {symbol: "cos", minInputs: 1, maxInputs: 1},
	"Sqrt":    {symbol: "math.sqrt", minInputs: 1, maxInputs: 1},
	"Exp":     {symbol: "math.exp", minInputs: 1, maxInputs: 1},
	"Log":     {symbol: "math.log", minInputs: 1, maxInputs: 1},
	"Tanh":    {symbol: "math.tanh", minInputs: 1, maxInputs: 1},
	"Sigmoid": {symbol: "math.sigmoid", minInputs: 1, maxInputs: 1},

	"Relu":      {symbol: "nn.relu", minInputs: 1, maxInputs: 1},
	"LeakyRelu": {symbol: "nn.leaky_relu", minInputs: 1, maxInputs: 1, attrs: []string{"alpha"}},
	"Softmax":   {symbol: "nn.softmax", minInputs: 1, maxInputs: 1, attrs: []string{"axis"}},

	"Identity":  {symbol: "array.identity", minInputs: 1, maxInputs: 1},
	"Dropout":   {symbol: "array.identity", minInputs: 1, maxInputs: 3},
	"Reshape":   {symbol: "array.reshape", minInputs: 2, maxInputs: 2},
	"Transpose": {symbol: "array.transpose", minInputs: 1, maxInputs: 1, attrs: []string{"perm"}},
	"Flatten":   {symbol: "array.flatten", minInputs: 1, maxInputs: 1, attrs: []string{"axis"}},
}

// SupportedOps returns every ONNX op type the translator handles, sorted.
func SupportedOps() []string {
	ops := make([]string, 0, len(opTable)+1)
	for op := range opTable {
		ops = append(ops, op)
	}
	ops = append(ops, "Constant")
	sort.Strings(ops)
	return ops
}

// LegacySymbols returns the ONNX ops bound to legacy top-level kernel names,
// keyed by op type.
func LegacySymbols() map[string]string {
	out := make(map[string]string)
	for op, spec := range opTable {
		if !isQualified(spec.symbol) {
			out[op] = spec.symbol
		}
	}
	return out
}

func isQualified(name string) bool {
	return strings.Contains(name, ".")
}

// nodeAttrs copies the listed attributes into a plain map.
func nodeAttrs(node *onnx.NodeProto, names []string) map[string]any {
	if len(names) == 0 {
		return nil
	}
	var out map[string]any
	for i := range node.Attributes {
		attr := &node.Attributes[i]
		for _, name := range names {
			if attr.Name != name {
				continue
			}
			if out == nil {
				out = make(map[string]any)
			}
			out[name] = onnx.AttributeValue(attr)
		}
	}
	return out
}
