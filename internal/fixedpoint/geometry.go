package fixedpoint

// IAABB2 is an axis-aligned bounding box in fixed-point world coordinates,
// stored as inclusive min/max corners.
type IAABB2 struct {
	Min, Max IVec2
}

func NewIAABB2(min, max IVec2) IAABB2 { return IAABB2{Min: min, Max: max} }

// Intersects reports whether two AABBs overlap (touching edges count).
func (a IAABB2) Intersects(b IAABB2) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y
}

// Contains reports whether p lies within a, inclusive of the boundary.
func (a IAABB2) Contains(p IVec2) bool {
	return p.X >= a.Min.X && p.X <= a.Max.X && p.Y >= a.Min.Y && p.Y <= a.Max.Y
}

// Expanded returns a grown by amount on every side.
func (a IAABB2) Expanded(amount int32) IAABB2 {
	return IAABB2{
		Min: IVec2{X: a.Min.X - amount, Y: a.Min.Y - amount},
		Max: IVec2{X: a.Max.X + amount, Y: a.Max.Y + amount},
	}
}

// Clamp restricts p to lie within a.
func (a IAABB2) Clamp(p IVec2) IVec2 {
	return IVec2{
		X: ClampI32(p.X, a.Min.X, a.Max.X),
		Y: ClampI32(p.Y, a.Min.Y, a.Max.Y),
	}
}

// Area is computed in i64 to avoid overflow for world-sized boxes.
func (a IAABB2) Area() int64 {
	w := int64(a.Max.X) - int64(a.Min.X)
	h := int64(a.Max.Y) - int64(a.Min.Y)
	if w < 0 || h < 0 {
		return 0
	}
	return w * h
}

// ICircle is a fixed-point circle.
type ICircle struct {
	Center IVec2
	Radius int32
}

func NewICircle(center IVec2, radius int32) ICircle {
	return ICircle{Center: center, Radius: ClampCircleRadius(radius)}
}

func (c ICircle) IntersectsCircle(o ICircle) bool {
	rsum := int64(c.Radius) + int64(o.Radius)
	return c.Center.DistanceSquared(o.Center) <= rsum*rsum
}

func (c ICircle) IntersectsAABB(b IAABB2) bool {
	closest := b.Clamp(c.Center)
	return c.Center.DistanceSquared(closest) <= int64(c.Radius)*int64(c.Radius)
}

func (c ICircle) Contains(p IVec2) bool {
	return c.Center.DistanceSquared(p) <= int64(c.Radius)*int64(c.Radius)
}

// BoundingAABB returns the smallest AABB enclosing c.
func (c ICircle) BoundingAABB() IAABB2 {
	return IAABB2{
		Min: IVec2{X: c.Center.X - c.Radius, Y: c.Center.Y - c.Radius},
		Max: IVec2{X: c.Center.X + c.Radius, Y: c.Center.Y + c.Radius},
	}
}

// ILineSegment is a fixed-point line segment between two points.
type ILineSegment struct {
	A, B IVec2
}

func NewILineSegment(a, b IVec2) ILineSegment { return ILineSegment{A: a, B: b} }

// ClosestPoint returns the closest point on the segment to p.
func (s ILineSegment) ClosestPoint(p IVec2) IVec2 {
	ab := s.B.Sub(s.A)
	abLenSq := ab.MagnitudeSquared()
	if abLenSq == 0 {
		return s.A
	}
	ap := p.Sub(s.A)
	// t = clamp(dot(ap, ab) / |ab|^2, 0, 1), computed in fixed-point units
	// by scaling the numerator by S before dividing, then clamping to [0,S].
	num := ap.Dot(ab)
	tScaled := num * S / abLenSq
	if tScaled < 0 {
		tScaled = 0
	} else if tScaled > S {
		tScaled = S
	}
	offset := IVec2{
		X: int32(int64(ab.X) * tScaled / S),
		Y: int32(int64(ab.Y) * tScaled / S),
	}
	return s.A.Add(offset)
}

// DistanceSquaredToPoint is the squared distance from p to the nearest
// point on the segment.
func (s ILineSegment) DistanceSquaredToPoint(p IVec2) int64 {
	closest := s.ClosestPoint(p)
	return p.DistanceSquared(closest)
}

func (s ILineSegment) IntersectsCircle(c ICircle) bool {
	return s.DistanceSquaredToPoint(c.Center) <= int64(c.Radius)*int64(c.Radius)
}

// IntersectsSegment reports whether two segments cross, using the standard
// orientation test; all intermediate products are i64.
func (s ILineSegment) IntersectsSegment(o ILineSegment) bool {
	o1 := orientation(s.A, s.B, o.A)
	o2 := orientation(s.A, s.B, o.B)
	o3 := orientation(o.A, o.B, s.A)
	o4 := orientation(o.A, o.B, s.B)

	if o1 != o2 && o3 != o4 {
		return true
	}

	if o1 == 0 && onSegment(s.A, o.A, s.B) {
		return true
	}
	if o2 == 0 && onSegment(s.A, o.B, s.B) {
		return true
	}
	if o3 == 0 && onSegment(o.A, s.A, o.B) {
		return true
	}
	if o4 == 0 && onSegment(o.A, s.B, o.B) {
		return true
	}
	return false
}

// orientation returns 0 if p,q,r are collinear, 1 for clockwise, 2 for
// counter-clockwise.
func orientation(p, q, r IVec2) int {
	val := int64(q.Y-p.Y)*int64(r.X-q.X) - int64(q.X-p.X)*int64(r.Y-q.Y)
	if val == 0 {
		return 0
	}
	if val > 0 {
		return 1
	}
	return 2
}

// onSegment assumes p,q,r are collinear and checks whether q lies on
// segment pr.
func onSegment(p, q, r IVec2) bool {
	return q.X <= max32(p.X, r.X) && q.X >= min32(p.X, r.X) &&
		q.Y <= max32(p.Y, r.Y) && q.Y >= min32(p.Y, r.Y)
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// IRay is a fixed-point ray: an origin and a normalized-ish direction (the
// direction does not need to be unit length; t is expressed relative to
// |direction|).
type IRay struct {
	Origin    IVec2
	Direction IVec2
}

func NewIRay(origin, direction IVec2) IRay { return IRay{Origin: origin, Direction: direction} }

// RayHit is the result of a ray/shape intersection: the point hit, and the
// fixed-point scaled parameter t along the ray's direction.
type RayHit struct {
	Point IVec2
	T     int64
}

// IntersectsAABB implements the slab method in i64 throughout. When the
// intermediate t·S product would overflow i64, we fall back to recomputing
// the hit coordinate directly from the original (unscaled) representation
// instead of producing an imprecise approximation.
func (r IRay) IntersectsAABB(b IAABB2) (RayHit, bool) {
	var tMin, tMax int64 = minInt64(), maxInt64()

	if r.Direction.X == 0 {
		if r.Origin.X < b.Min.X || r.Origin.X > b.Max.X {
			return RayHit{}, false
		}
	} else {
		t1 := safeDivScaled(int64(b.Min.X-r.Origin.X), int64(r.Direction.X))
		t2 := safeDivScaled(int64(b.Max.X-r.Origin.X), int64(r.Direction.X))
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = maxI64(tMin, t1)
		tMax = minI64(tMax, t2)
	}

	if r.Direction.Y == 0 {
		if r.Origin.Y < b.Min.Y || r.Origin.Y > b.Max.Y {
			return RayHit{}, false
		}
	} else {
		t1 := safeDivScaled(int64(b.Min.Y-r.Origin.Y), int64(r.Direction.Y))
		t2 := safeDivScaled(int64(b.Max.Y-r.Origin.Y), int64(r.Direction.Y))
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = maxI64(tMin, t1)
		tMax = minI64(tMax, t2)
	}

	if tMin > tMax || tMax < 0 {
		return RayHit{}, false
	}
	t := tMin
	if t < 0 {
		t = 0
	}
	point := pointAtScaledT(r, t)
	return RayHit{Point: point, T: t}, true
}

// IntersectsCircle solves the quadratic |O + t*D - C|^2 = R^2 in i64.
func (r IRay) IntersectsCircle(c ICircle) (RayHit, bool) {
	oc := r.Origin.Sub(c.Center)
	a := r.Direction.Dot(r.Direction)
	if a == 0 {
		return RayHit{}, false
	}
	bHalf := oc.Dot(r.Direction)
	cc := oc.Dot(oc) - int64(c.Radius)*int64(c.Radius)
	disc := bHalf*bHalf - a*cc
	if disc < 0 {
		return RayHit{}, false
	}
	sqrtDisc := SqrtI64(disc)
	t := (-bHalf - sqrtDisc)
	// t is currently in "distance*a" units (a = |D|^2); safeDivScaled turns
	// it into a proper S-scaled t by dividing by a and scaling by S in one
	// overflow-checked step.
	tScaled := safeDivScaled(t, a)
	if t < 0 {
		t2 := (-bHalf + sqrtDisc)
		if t2 < 0 {
			return RayHit{}, false
		}
		tScaled = safeDivScaled(t2, a)
	}
	point := pointAtScaledT(r, tScaled)
	return RayHit{Point: point, T: tScaled}, true
}

// safeDivScaled computes (num * S) / den, falling back to an overflow-safe
// two-step division when num*S would not fit in i64.
func safeDivScaled(num, den int64) int64 {
	if den == 0 {
		if num >= 0 {
			return maxInt64()
		}
		return minInt64()
	}
	const i64Max = 1<<63 - 1
	if num != 0 && (num > i64Max/S || num < -(i64Max/S)) {
		// num*S would overflow: divide first, losing sub-unit precision
		// only in the extreme-magnitude case this guards against.
		return (num / den) * S
	}
	return num * S / den
}

// pointAtScaledT recomputes the hit coordinate directly from the ray's
// original (unscaled) representation rather than trusting a possibly
// imprecise t·S intermediate, per the overflow-fallback requirement.
func pointAtScaledT(r IRay, tScaled int64) IVec2 {
	x := int64(r.Origin.X) + int64(r.Direction.X)*tScaled/S
	y := int64(r.Origin.Y) + int64(r.Direction.Y)*tScaled/S
	return IVec2{X: int32(ClampI64ToI32(x)), Y: int32(ClampI64ToI32(y))}
}

func ClampI64ToI32(v int64) int64 {
	if v > int64(^uint32(0)>>1) {
		return int64(^uint32(0) >> 1)
	}
	if v < -int64(^uint32(0)>>1)-1 {
		return -int64(^uint32(0)>>1) - 1
	}
	return v
}

func minInt64() int64 { return -1 << 63 }
func maxInt64() int64 { return 1<<63 - 1 }

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
