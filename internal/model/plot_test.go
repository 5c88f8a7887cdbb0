package model

import (
	"testing"
	"time"
)

func TestReservationExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name string
		plot Plot
		want bool
	}{
		{"reserved past expiry", Plot{Status: PlotReserved, HoldExpiresAt: &past}, true},
		{"reserved at exactly expiry", Plot{Status: PlotReserved, HoldExpiresAt: &now}, true},
		{"reserved before expiry", Plot{Status: PlotReserved, HoldExpiresAt: &future}, false},
		{"reserved without expiry", Plot{Status: PlotReserved}, false},
		{"hold never expires", Plot{Status: PlotHold, HoldExpiresAt: &past}, false},
		{"sold never expires", Plot{Status: PlotSold, HoldExpiresAt: &past}, false},
		{"available", Plot{Status: PlotAvailable}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.plot.ReservationExpired(now); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEffectiveStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	p := Plot{Status: PlotReserved, HoldExpiresAt: &past}
	if got := p.EffectiveStatus(now); got != PlotAvailable {
		t.Fatalf("expected available for a lapsed reservation, got %s", got)
	}

	p = Plot{Status: PlotHold, HoldExpiresAt: &past}
	if got := p.EffectiveStatus(now); got != PlotHold {
		t.Fatalf("expected hold to stick, got %s", got)
	}
}
