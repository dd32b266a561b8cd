package fixedpoint

// CORDIC deterministic trigonometry. Inputs/outputs are fixed-point degrees
// at scale S (so 90 degrees is passed as 90_000). trigScale is the internal
// working scale used while iterating the rotation table; results are
// rescaled back down to S before returning.
const (
	cordicIterations = 24
	trigScale        = 1_000_000
	// cordicGain is the tabulated CORDIC gain K for 24 iterations, scaled by
	// trigScale.
	cordicGain = 607_253
)

// cordicAngleTable holds atan(2^-i) in degrees, scaled by trigScale, for
// i = 0..cordicIterations-1.
var cordicAngleTable = buildCordicAngleTable()

func buildCordicAngleTable() [cordicIterations]int64 {
	// Precomputed atan(2^-i) in degrees * 1_000_000, i = 0..23.
	return [cordicIterations]int64{
		45_000_000, 26_565_051, 14_036_243, 7_125_016,
		3_576_334, 1_789_911, 895_174, 447_635,
		223_835, 111_922, 55_961, 27_980,
		13_990, 6_995, 3_498, 1_749,
		874, 437, 219, 109,
		55, 27, 14, 7,
	}
}

// SinCosDegrees computes (sin, cos) for an angle given in fixed-point
// degrees (scale S), returning results scaled by S (so 1.0 is 1000). It
// uses the CORDIC rotation algorithm with 24 iterations and gain K =
// 607253, matching the deterministic contract every peer must reproduce
// bit-for-bit.
func SinCosDegrees(angleDegScaled int64) (sin, cos int64) {
	// Normalize angle into [-180, 180) degrees (scale S) so the rotation
	// table (valid for [-90, 90]) can be driven via quadrant flips.
	angle := normalizeDegrees180(angleDegScaled)

	negate := false
	if angle > 90*S {
		angle = 180*S - angle
		negate = true
	} else if angle < -90*S {
		angle = -180*S - angle
		negate = true
	}

	// Work in trigScale-degrees internally.
	x := int64(cordicGain) // cos accumulator, pre-scaled by gain so the final
	y := int64(0)          // vector has unit magnitude after iterations.
	z := angle * (trigScale / S)

	for i := 0; i < cordicIterations; i++ {
		shift := uint(i)
		var dx, dy int64
		dx = y >> shift
		dy = x >> shift
		if z >= 0 {
			x, y = x-dx, y+dy
			z -= cordicAngleTable[i]
		} else {
			x, y = x+dx, y-dy
			z += cordicAngleTable[i]
		}
	}

	cos = x * S / trigScale
	sin = y * S / trigScale

	if negate {
		cos = -cos
	}
	return sin, cos
}

func normalizeDegrees180(angle int64) int64 {
	const full = 360 * S
	angle = angle % full
	if angle >= 180*S {
		angle -= full
	} else if angle < -180*S {
		angle += full
	}
	return angle
}

// Atan2Degrees returns atan2(y, x) in fixed-point degrees (scale S),
// handling all four quadrants with explicit sign branches. atan2(0,0) = 0.
func Atan2Degrees(y, x int64) int64 {
	if x == 0 && y == 0 {
		return 0
	}
	if x == 0 {
		if y > 0 {
			return 90 * S
		}
		return -90 * S
	}

	angle := cordicAtan(y, x)

	if x < 0 {
		if y >= 0 {
			angle = 180*S - angle
		} else {
			angle = -180*S - angle
		}
	}
	return normalizeDegrees180(angle)
}

// cordicAtan computes atan(y/x) in fixed-point degrees for x > 0 using the
// vectoring-mode CORDIC rotation (rotate (x,y) towards the x-axis,
// accumulating the angle needed).
func cordicAtan(y, x int64) int64 {
	// Work with |x| since the caller folds the sign of x back in.
	cx := x
	if cx < 0 {
		cx = -cx
	}
	cy := y
	// Scale small inputs up so the shifted terms keep their precision.
	for cx < 1<<40 && cy < 1<<40 && cy > -(1<<40) {
		cx <<= 1
		cy <<= 1
	}
	z := int64(0)

	for i := 0; i < cordicIterations; i++ {
		shift := uint(i)
		dx := cy >> shift
		dy := cx >> shift
		if cy >= 0 {
			cx, cy = cx+dx, cy-dy
			z += cordicAngleTable[i]
		} else {
			cx, cy = cx-dx, cy+dy
			z -= cordicAngleTable[i]
		}
	}
	return z * S / trigScale
}
