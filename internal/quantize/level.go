// Package quantize implements the weight quantization schemes applied by the
// flat model converter.
//
// Two schemes exist:
//
//   - int8: symmetric per-tensor quantization with one float32 scale.
//     x = scale * q, q in [-127, 127].
//   - q8_0: 32-element blocks, each stored as a float16 scale followed by 32
//     int8 values (34 bytes per block). x[i] = d * q[i].
//
// Only float32 tensors with at least MinElements elements are quantized.
package quantize

import (
	"fmt"
	"strings"
)

// Level selects how aggressively the converter quantizes constants.
type Level string

// Optimization levels.
const (
	LevelNone    Level = "none"
	LevelDefault Level = "default"
	LevelQ8_0    Level = "q8_0"
)

// DefaultMinElements is the smallest tensor the converter quantizes.
const DefaultMinElements = 1024

// Levels returns every accepted level name.
func Levels() []string {
	return []string{string(LevelNone), string(LevelDefault), string(LevelQ8_0)}
}

// ParseLevel converts a configuration string to a Level.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelNone, LevelDefault, LevelQ8_0:
		return l, nil
	case "":
		return LevelDefault, nil
	default:
		return "", fmt.Errorf("unknown optimization level %q (want one of %s)", s, strings.Join(Levels(), ", "))
	}
}

// Scheme identifies the storage encoding of one tensor.
type Scheme uint8

// Storage schemes.
const (
	SchemeNone Scheme = iota
	SchemeInt8
	SchemeQ8_0
)

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeNone:
		return "none"
	case SchemeInt8:
		return "int8"
	case SchemeQ8_0:
		return "q8_0"
	default:
		return fmt.Sprintf("scheme(%d)", uint8(s))
	}
}

// Scheme returns the storage scheme a level applies to eligible tensors.
func (l Level) Scheme() Scheme {
	switch l {
	case LevelDefault:
		return SchemeInt8
	case LevelQ8_0:
		return SchemeQ8_0
	default:
		return SchemeNone
	}
}
