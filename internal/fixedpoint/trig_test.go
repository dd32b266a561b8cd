package fixedpoint

import "testing"

func within(a, b, tol int64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestSinCos90Degrees(t *testing.T) {
	sin, cos := SinCosDegrees(90_000)
	if !within(sin, 1_000, 5) {
		t.Errorf("sin(90) = %d, want ~1000", sin)
	}
	if !within(cos, 0, 5) {
		t.Errorf("cos(90) = %d, want ~0", cos)
	}
}

func TestSinCos0Degrees(t *testing.T) {
	sin, cos := SinCosDegrees(0)
	if !within(sin, 0, 5) {
		t.Errorf("sin(0) = %d, want ~0", sin)
	}
	if !within(cos, 1_000, 5) {
		t.Errorf("cos(0) = %d, want ~1000", cos)
	}
}

func TestSinCos180Degrees(t *testing.T) {
	sin, cos := SinCosDegrees(180_000)
	if !within(sin, 0, 5) {
		t.Errorf("sin(180) = %d, want ~0", sin)
	}
	if !within(cos, -1_000, 5) {
		t.Errorf("cos(180) = %d, want ~-1000", cos)
	}
}

func TestSinCosNegative45(t *testing.T) {
	sin, cos := SinCosDegrees(-45_000)
	if !within(sin, -707, 5) {
		t.Errorf("sin(-45) = %d, want ~-707", sin)
	}
	if !within(cos, 707, 5) {
		t.Errorf("cos(-45) = %d, want ~707", cos)
	}
}

func TestAtan2ZeroZero(t *testing.T) {
	if got := Atan2Degrees(0, 0); got != 0 {
		t.Errorf("Atan2Degrees(0,0) = %d, want 0", got)
	}
}

func TestAtan2Quadrants(t *testing.T) {
	cases := []struct {
		y, x int64
		want int64
	}{
		{1, 1, 45_000},
		{1, -1, 135_000},
		{-1, -1, -135_000},
		{-1, 1, -45_000},
		{1, 0, 90_000},
		{-1, 0, -90_000},
	}
	for _, c := range cases {
		got := Atan2Degrees(c.y, c.x)
		if !within(got, c.want, 5) {
			t.Errorf("Atan2Degrees(%d,%d) = %d, want ~%d", c.y, c.x, got, c.want)
		}
	}
}
