package geo

import (
	"math"
	"testing"
)

func TestDistanceIdentity(t *testing.T) {
	pts := []Point{
		{0, 0},
		{30.0, 31.0},
		{-45.5, 170.2},
		{89.9, -179.9},
	}
	for _, p := range pts {
		if d := Distance(p, p); d != 0 {
			t.Errorf("Distance(%v, %v) = %v, want 0", p, p, d)
		}
	}
}

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][2]Point{
		{{0, 0}, {0, 0.00045}},
		{{30.0, 31.0}, {30.0003, 31.0001}},
		{{-10, 100}, {12, -80}},
	}
	for _, pair := range pairs {
		ab := Distance(pair[0], pair[1])
		ba := Distance(pair[1], pair[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("Distance not symmetric: d(a,b)=%v d(b,a)=%v", ab, ba)
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	// 0.00045 degrees of longitude at the equator is very close to 50m.
	d := Distance(Point{0, 0}, Point{0, 0.00045})
	if d < 49.5 || d > 50.5 {
		t.Errorf("equator 0.00045deg = %vm, want ~50m", d)
	}

	// One degree of latitude is about 111.2 km anywhere.
	d = Distance(Point{30, 31}, Point{31, 31})
	if d < 110000 || d > 112500 {
		t.Errorf("1 degree latitude = %vm, want ~111.2km", d)
	}
}

func TestWithinRadius(t *testing.T) {
	center := Point{0, 0}

	inside, d := WithinRadius(Point{0, 0.0004}, center, 50)
	if !inside {
		t.Errorf("point ~44m away rejected by 50m fence (d=%v)", d)
	}

	inside, d = WithinRadius(Point{0, 0.0006}, center, 50)
	if inside {
		t.Errorf("point ~67m away accepted by 50m fence (d=%v)", d)
	}
	if d <= 50 {
		t.Errorf("rejected point should report distance beyond radius, got %v", d)
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		p    Point
		want bool
	}{
		{Point{0, 0}, true},
		{Point{90, 180}, true},
		{Point{-90, -180}, true},
		{Point{90.1, 0}, false},
		{Point{0, 180.1}, false},
		{Point{-91, 20}, false},
	}
	for _, c := range cases {
		if got := Valid(c.p); got != c.want {
			t.Errorf("Valid(%v) = %v, want %v", c.p, got, c.want)
		}
	}
}
