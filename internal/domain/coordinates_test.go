package domain

import (
	"math"
	"testing"
)

func TestDistanceKmZeroForSamePoint(t *testing.T) {
	c := Coordinates{Lat: 14.5995, Lon: 120.9842}
	if d := c.DistanceKm(c); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := Coordinates{Lat: 14.5995, Lon: 120.9842}
	b := Coordinates{Lat: 14.6227, Lon: 120.9830}

	if ab, ba := a.DistanceKm(b), b.DistanceKm(a); math.Abs(ab-ba) > 1e-12 {
		t.Fatalf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestDistanceMetersKnownPair(t *testing.T) {
	// Two points 0.0035 degrees of latitude apart on the same meridian:
	// about 389 m.
	a := Coordinates{Lat: 14.5995, Lon: 120.9842}
	b := Coordinates{Lat: 14.6030, Lon: 120.9842}

	d := a.DistanceMeters(b)
	if d < 380 || d > 400 {
		t.Fatalf("distance = %v m, want ~389 m", d)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		c    Coordinates
		want bool
	}{
		{"manila", Coordinates{Lat: 14.5995, Lon: 120.9842}, true},
		{"equator meridian", Coordinates{}, true},
		{"lat bounds", Coordinates{Lat: 90, Lon: -180}, true},
		{"lat too big", Coordinates{Lat: 90.1, Lon: 0}, false},
		{"lon too small", Coordinates{Lat: 0, Lon: -180.1}, false},
		{"nan", Coordinates{Lat: math.NaN(), Lon: 0}, false},
		{"inf", Coordinates{Lat: 0, Lon: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Valid(); got != tt.want {
				t.Fatalf("Valid(%+v) = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}

func TestLonLatAndLatLon(t *testing.T) {
	c := Coordinates{Lat: 14.5995, Lon: 120.9842}
	if got := c.LonLat(); got[0] != c.Lon || got[1] != c.Lat {
		t.Fatalf("LonLat() = %v", got)
	}
	if got := c.LatLon(); got[0] != c.Lat || got[1] != c.Lon {
		t.Fatalf("LatLon() = %v", got)
	}
}
