// Package fixedpoint implements the deterministic fixed-point math kernel:
// quantization, integer 2D/3D vectors, collision primitives, and CORDIC
// trigonometry. Every operation here must produce bit-identical results
// across servers, replays, and clients — this is the wire contract the rest
// of the sync engine is built on.
package fixedpoint

import "math"

// S is the fixed-point scale factor: 1.0 maps to 1000.
const S = 1000

// WorldMax guarantees dx²+dy² fits in an i64 for any two world points.
const WorldMax int32 = math.MaxInt32 / 2

// MaxCircleRadius guarantees center ± radius fits in an i32.
const MaxCircleRadius int32 = math.MaxInt32

// maxSafeI32Deprecated ≈ sqrt(i32::MAX). No longer enforced anywhere: every
// dot/cross/distance operation below widens to i64 before multiplying, so
// this bound is not needed for overflow safety. Nothing in this module,
// tests included, references it; new code must use WorldMax.
const maxSafeI32Deprecated int32 = 46340

// Quantize converts a float32 world value to its fixed-point i32
// representation: multiply by S and round to-nearest, ties away from zero.
// This rounding rule is part of the wire contract — every peer must produce
// the identical i32 for the same f32 input.
func Quantize(v float32) int32 {
	scaled := float64(v) * S
	return int32(roundTiesAway(scaled))
}

// Dequantize converts a fixed-point i32 back to a float32 world value.
func Dequantize(v int32) float32 {
	return float32(v) / float32(S)
}

func roundTiesAway(v float64) float64 {
	if v >= 0 {
		return math.Floor(v + 0.5)
	}
	return math.Ceil(v - 0.5)
}

// ClampI32 clamps v into [lo, hi].
func ClampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampWorld clamps a coordinate into [-WorldMax, WorldMax].
func ClampWorld(v int32) int32 {
	return ClampI32(v, -WorldMax, WorldMax)
}

// ClampCircleRadius clamps a radius into [0, MaxCircleRadius].
func ClampCircleRadius(r int32) int32 {
	return ClampI32(r, 0, MaxCircleRadius)
}

// MultiplySafe multiplies two i32 values, widening to i64 and saturating to
// the i32 range instead of wrapping.
func MultiplySafe(a, b int32) int32 {
	r := int64(a) * int64(b)
	if r > math.MaxInt32 {
		return math.MaxInt32
	}
	if r < math.MinInt32 {
		return math.MinInt32
	}
	return int32(r)
}

// SqrtI64 is an integer square root using the classic bit-by-bit algorithm;
// no floating point is involved so the result is identical on every peer.
// sqrt_i64(v<0) = 0; sqrt_i64(0) = 0.
func SqrtI64(v int64) int64 {
	if v <= 0 {
		return 0
	}
	var result int64
	// bit starts at the highest power of 4 <= v
	var bit int64 = 1 << 62
	for bit > v {
		bit >>= 2
	}
	x := v
	for bit != 0 {
		if x >= result+bit {
			x -= result + bit
			result = (result >> 1) + bit
		} else {
			result >>= 1
		}
		bit >>= 2
	}
	return result
}
