package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineKmSamePointAndSymmetry(t *testing.T) {
	if d := HaversineKm(14.6, 74.8, 14.6, 74.8); d != 0 {
		t.Fatalf("expected zero distance, got %v", d)
	}
	a := HaversineKm(14.539, 74.730, 14.640, 74.963)
	b := HaversineKm(14.640, 74.963, 14.539, 74.730)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("expected symmetric distance: %v vs %v", a, b)
	}
}

func TestHaversineKmAntipodes(t *testing.T) {
	d := HaversineKm(0, 0, 0, 180)
	if math.Abs(d-math.Pi*EarthRadiusKm) > 1e-6 {
		t.Fatalf("unexpected antipodal distance: %v", d)
	}
}

func TestBoundingBox(t *testing.T) {
	box := BoundingBox{North: 14.640, South: 14.539, East: 74.963, West: 74.730}
	if !box.Contains(14.6, 74.8) {
		t.Fatalf("expected point inside box")
	}
	if box.Contains(14.7, 74.8) || box.Contains(14.6, 75.0) {
		t.Fatalf("expected point outside box")
	}
	if !World.Contains(-90, 180) {
		t.Fatalf("world should contain its corners")
	}

	pacific := BoundingBox{North: 10, South: -20, East: -170, West: 170}
	if !pacific.Contains(0, 175) || !pacific.Contains(0, -175) || pacific.Contains(0, 0) {
		t.Fatalf("unexpected antimeridian containment")
	}
}

func TestValidLatLng(t *testing.T) {
	if !ValidLatLng(90, -180) || ValidLatLng(91, 0) || ValidLatLng(0, 181) {
		t.Fatalf("unexpected validity")
	}
	if ValidLatLng(math.NaN(), 0) || ValidLatLng(0, math.Inf(1)) || ValidLat(math.Inf(-1)) {
		t.Fatalf("non-finite coordinates must be invalid")
	}
}

func TestBoundingBoxSanitize(t *testing.T) {
	got := BoundingBox{North: math.NaN(), South: 10, East: math.Inf(1), West: 170}.Sanitize(World)
	want := BoundingBox{North: 90, South: 10, East: 180, West: 170}
	if got != want {
		t.Fatalf("Sanitize = %+v, want %+v", got, want)
	}
}
