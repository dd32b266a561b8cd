package fixedpoint

// IVec2 is a fixed-point 2D vector. Addition, subtraction, and scalar
// multiplication wrap deterministically (two's complement), which for Go's
// native int32 arithmetic is simply the default — Go never panics or
// saturates on signed integer overflow.
type IVec2 struct {
	X, Y int32
}

func NewIVec2(x, y int32) IVec2 { return IVec2{X: x, Y: y} }

func (a IVec2) Add(b IVec2) IVec2 { return IVec2{X: a.X + b.X, Y: a.Y + b.Y} }
func (a IVec2) Sub(b IVec2) IVec2 { return IVec2{X: a.X - b.X, Y: a.Y - b.Y} }
func (a IVec2) Scale(s int32) IVec2 { return IVec2{X: a.X * s, Y: a.Y * s} }
func (a IVec2) Neg() IVec2 { return IVec2{X: -a.X, Y: -a.Y} }

// Dot widens both operands to i64 before multiplying.
func (a IVec2) Dot(b IVec2) int64 {
	return int64(a.X)*int64(b.X) + int64(a.Y)*int64(b.Y)
}

// Cross is the 2D scalar cross product (z-component of the 3D cross).
func (a IVec2) Cross(b IVec2) int64 {
	return int64(a.X)*int64(b.Y) - int64(a.Y)*int64(b.X)
}

// DistanceSquared between two points, guaranteed to fit in i64 for any two
// points within [-WorldMax, WorldMax].
func (a IVec2) DistanceSquared(b IVec2) int64 {
	dx := int64(a.X) - int64(b.X)
	dy := int64(a.Y) - int64(b.Y)
	return dx*dx + dy*dy
}

// MagnitudeSquared is DistanceSquared from the origin.
func (a IVec2) MagnitudeSquared() int64 {
	return int64(a.X)*int64(a.X) + int64(a.Y)*int64(a.Y)
}

// Magnitude is the integer square root of MagnitudeSquared, scaled back
// into fixed-point units.
func (a IVec2) Magnitude() int64 {
	return SqrtI64(a.MagnitudeSquared())
}

// Distance is the integer square root of DistanceSquared.
func (a IVec2) Distance(b IVec2) int64 {
	return SqrtI64(a.DistanceSquared(b))
}

// IVec3 is the 3D counterpart. Sums of three squared i32 terms still fit in
// i64 because 3·(i32::MAX)² < i64::MAX.
type IVec3 struct {
	X, Y, Z int32
}

func NewIVec3(x, y, z int32) IVec3 { return IVec3{X: x, Y: y, Z: z} }

func (a IVec3) Add(b IVec3) IVec3 { return IVec3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z} }
func (a IVec3) Sub(b IVec3) IVec3 { return IVec3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z} }
func (a IVec3) Scale(s int32) IVec3 {
	return IVec3{X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}
func (a IVec3) Neg() IVec3 { return IVec3{X: -a.X, Y: -a.Y, Z: -a.Z} }

func (a IVec3) Dot(b IVec3) int64 {
	return int64(a.X)*int64(b.X) + int64(a.Y)*int64(b.Y) + int64(a.Z)*int64(b.Z)
}

func (a IVec3) Cross(b IVec3) IVec3 {
	return IVec3{
		X: int32(int64(a.Y)*int64(b.Z) - int64(a.Z)*int64(b.Y)),
		Y: int32(int64(a.Z)*int64(b.X) - int64(a.X)*int64(b.Z)),
		Z: int32(int64(a.X)*int64(b.Y) - int64(a.Y)*int64(b.X)),
	}
}

func (a IVec3) DistanceSquared(b IVec3) int64 {
	dx := int64(a.X) - int64(b.X)
	dy := int64(a.Y) - int64(b.Y)
	dz := int64(a.Z) - int64(b.Z)
	return dx*dx + dy*dy + dz*dz
}

func (a IVec3) MagnitudeSquared() int64 {
	return int64(a.X)*int64(a.X) + int64(a.Y)*int64(a.Y) + int64(a.Z)*int64(a.Z)
}

func (a IVec3) Magnitude() int64 { return SqrtI64(a.MagnitudeSquared()) }

func (a IVec3) Distance(b IVec3) int64 { return SqrtI64(a.DistanceSquared(b)) }
