package sdfx

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestHollowSphereEvaluate(t *testing.T) {
	e, err := HollowSphere(1, 2)
	if err != nil {
		t.Fatalf("HollowSphere failed: %v", err)
	}
	tests := []struct {
		name   string
		p      r3.Vec
		inside bool
	}{
		{"center is hollow", r3.Vec{}, false},
		{"in the shell", r3.Vec{X: 1.5}, true},
		{"on the outer surface", r3.Vec{Y: 2}, true},
		{"beyond the shell", r3.Vec{Z: 2.5}, false},
		{"inside the cavity", r3.Vec{X: 0.5, Y: 0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Inside(tt.p); got != tt.inside {
				t.Errorf("Inside(%v) = %v, want %v (sdf %g)", tt.p, got, tt.inside, e.Evaluate(tt.p))
			}
		})
	}
}

func TestHollowSphereRejectsBadRadii(t *testing.T) {
	for _, radii := range [][2]float64{{0, 1}, {2, 1}, {1, 1}, {-1, 2}} {
		if _, err := HollowSphere(radii[0], radii[1]); err == nil {
			t.Errorf("HollowSphere(%g, %g) succeeded, want error", radii[0], radii[1])
		}
	}
}

func TestBoundingBox(t *testing.T) {
	e, err := HollowSphere(1, 2)
	if err != nil {
		t.Fatalf("HollowSphere failed: %v", err)
	}
	e = e.Translate(r3.Vec{X: 10})
	min, max := e.BoundingBox()
	if math.Abs(min.X-8) > 1e-9 || math.Abs(max.X-12) > 1e-9 {
		t.Errorf("bounding box x = [%g, %g], want [8, 12]", min.X, max.X)
	}
	if math.Abs(min.Y+2) > 1e-9 || math.Abs(max.Z-2) > 1e-9 {
		t.Errorf("bounding box = %v..%v", min, max)
	}
	if got, want := e.Extent(), 4*math.Sqrt(3); math.Abs(got-want) > 1e-9 {
		t.Errorf("Extent() = %g, want %g", got, want)
	}
	if got, want := e.Reach(r3.Vec{X: 10}), 2*math.Sqrt(3); math.Abs(got-want) > 1e-9 {
		t.Errorf("Reach() = %g, want %g", got, want)
	}
}

func TestRadialCrossings(t *testing.T) {
	e, err := HollowSphere(1, 2)
	if err != nil {
		t.Fatalf("HollowSphere failed: %v", err)
	}
	dirs := []r3.Vec{{X: 1}, {Y: -1}, {X: 1, Y: 1, Z: 1}, {X: -0.3, Z: 0.7}}
	for _, d := range dirs {
		got, err := e.RadialCrossings(r3.Vec{}, d, 4, 0.01)
		if err != nil {
			t.Fatalf("RadialCrossings(%v) failed: %v", d, err)
		}
		if len(got) != 2 {
			t.Fatalf("RadialCrossings(%v) = %v, want 2 crossings", d, got)
		}
		if math.Abs(got[0]-1) > 1e-9 || math.Abs(got[1]-2) > 1e-9 {
			t.Errorf("RadialCrossings(%v) = %v, want [1 2]", d, got)
		}
	}
}

func TestRadialCrossingsTranslated(t *testing.T) {
	e, err := HollowSphere(1, 3)
	if err != nil {
		t.Fatalf("HollowSphere failed: %v", err)
	}
	center := r3.Vec{X: 5, Y: -2, Z: 1}
	e = e.Translate(center)
	got, err := e.RadialCrossings(center, r3.Vec{Z: -1}, e.Reach(center), 0.05)
	if err != nil {
		t.Fatalf("RadialCrossings failed: %v", err)
	}
	if len(got) != 2 || math.Abs(got[0]-1) > 1e-9 || math.Abs(got[1]-3) > 1e-9 {
		t.Errorf("RadialCrossings = %v, want [1 3]", got)
	}
}

func TestRadialCrossingsBadInput(t *testing.T) {
	e, err := Sphere(1)
	if err != nil {
		t.Fatalf("Sphere failed: %v", err)
	}
	if _, err := e.RadialCrossings(r3.Vec{}, r3.Vec{X: 1}, 2, 0); err == nil {
		t.Error("zero step succeeded, want error")
	}
	if _, err := e.RadialCrossings(r3.Vec{}, r3.Vec{}, 2, 0.1); err == nil {
		t.Error("zero direction succeeded, want error")
	}
}

func TestBooleans(t *testing.T) {
	box, err := Box(r3.Vec{X: 2, Y: 2, Z: 2})
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	ball, err := Sphere(1.2)
	if err != nil {
		t.Fatalf("Sphere failed: %v", err)
	}
	corner := r3.Vec{X: 0.95, Y: 0.95, Z: 0.95}
	if !box.Inside(corner) {
		t.Error("box should contain its near-corner")
	}
	if box.Intersection(ball).Inside(corner) {
		t.Error("intersection should exclude the corner outside the ball")
	}
	if !box.Union(ball).Inside(r3.Vec{X: 1.1}) {
		t.Error("union should contain points of the ball outside the box")
	}
	if box.Difference(ball).Inside(r3.Vec{}) {
		t.Error("difference should exclude the ball center")
	}
}

func TestRotate(t *testing.T) {
	slab, err := Box(r3.Vec{X: 4, Y: 1, Z: 1})
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	rot := slab.Rotate(0, 0, 90)
	if !rot.Inside(r3.Vec{Y: 1.8}) {
		t.Error("rotated slab should extend along y")
	}
	if rot.Inside(r3.Vec{X: 1.8}) {
		t.Error("rotated slab should no longer extend along x")
	}
}
