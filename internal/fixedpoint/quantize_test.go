package fixedpoint

import "testing"

func TestQuantizeTies(t *testing.T) {
	cases := []struct {
		in   float32
		want int32
	}{
		{1.5, 1500},
		{-1.5, -1500},
		{1.4, 1400},
	}
	for _, c := range cases {
		if got := Quantize(c.in); got != c.want {
			t.Errorf("Quantize(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDequantize(t *testing.T) {
	if got := Dequantize(1500); got != 1.5 {
		t.Errorf("Dequantize(1500) = %v, want 1.5", got)
	}
}

func TestQuantizeDequantizeRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 1, -1, 123.456, -999.999, 0.001} {
		q := Quantize(v)
		back := Dequantize(q)
		diff := float64(back) - float64(v)
		if diff < 0 {
			diff = -diff
		}
		if diff > 1.0/S+1e-6 {
			t.Errorf("round trip for %v diverged: got %v (diff %v)", v, back, diff)
		}
	}
}

func TestSqrtI64(t *testing.T) {
	cases := []struct {
		in   int64
		want int64
	}{
		{25_000_000, 5000},
		{0, 0},
		{-1, 0},
		{1, 1},
		{4, 2},
	}
	for _, c := range cases {
		if got := SqrtI64(c.in); got != c.want {
			t.Errorf("SqrtI64(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestMultiplySafeSaturates(t *testing.T) {
	got := MultiplySafe(1<<30, 1<<30)
	if got != 1<<31-1 {
		t.Errorf("MultiplySafe overflow = %d, want saturated max i32", got)
	}
}
