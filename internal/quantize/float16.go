package quantize

import "math"

// float16ToFloat32 converts IEEE 754 half precision to float32.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF

	var bits uint32
	switch exp {
	case 0:
		if mant == 0 {
			bits = sign << 31
			break
		}
		// Subnormal: normalize.
		e := int32(1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3FF
		bits = sign<<31 | uint32(e+127-15)<<23 | mant<<13 //nolint:gosec // G115: e+112 is positive.
	case 0x1F:
		bits = sign<<31 | 0x7F800000 | mant<<13
	default:
		bits = sign<<31 | (exp+127-15)<<23 | mant<<13
	}
	return math.Float32frombits(bits)
}

// float32ToFloat16 converts float32 to half precision, rounding to nearest
// even. Values beyond the half range saturate to infinity.
func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23) & 0xFF
	mant := bits & 0x7FFFFF

	if exp == 0xFF {
		if mant != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	}

	e := exp - 127 + 15
	switch {
	case e >= 0x1F:
		return sign | 0x7C00
	case e <= 0:
		if e < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - e) //nolint:gosec // G115: 14 <= shift <= 24.
		half := uint32(1) << (shift - 1)
		rounded := mant + half - 1 + ((mant >> shift) & 1)
		return sign | uint16(rounded>>shift) //nolint:gosec // G115: fits in 11 bits.
	default:
		rounded := mant + 0xFFF + ((mant >> 13) & 1)
		if rounded&0x800000 != 0 {
			rounded = 0
			e++
			if e >= 0x1F {
				return sign | 0x7C00
			}
		}
		return sign | uint16(e)<<10 | uint16(rounded>>13) //nolint:gosec // G115: e in [1, 30].
	}
}
