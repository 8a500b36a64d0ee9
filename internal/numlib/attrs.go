package numlib

// Attrs carries kernel attributes. Values arrive from several decoders (ONNX,
// JSON, msgpack), so numeric accessors accept any Go numeric type.
type Attrs map[string]any

// Float returns a float attribute or def.
func (a Attrs) Float(name string, def float32) float32 {
	v, ok := a[name]
	if !ok {
		return def
	}
	if f, ok := toFloat(v); ok {
		return float32(f)
	}
	return def
}

// Int returns an integer attribute or def.
func (a Attrs) Int(name string, def int64) int64 {
	v, ok := a[name]
	if !ok {
		return def
	}
	if f, ok := toFloat(v); ok {
		return int64(f)
	}
	return def
}

// Ints returns an integer list attribute, or nil when absent.
func (a Attrs) Ints(name string) []int64 {
	v, ok := a[name]
	if !ok {
		return nil
	}
	switch xs := v.(type) {
	case []int64:
		return xs
	case []int:
		out := make([]int64, len(xs))
		for i, x := range xs {
			out[i] = int64(x)
		}
		return out
	case []any:
		out := make([]int64, 0, len(xs))
		for _, x := range xs {
			f, ok := toFloat(x)
			if !ok {
				return nil
			}
			out = append(out, int64(f))
		}
		return out
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
