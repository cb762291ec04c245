package updatepolicy

import (
	"testing"
	"time"

	"github.com/resinat/locationd/internal/measurement"
)

func pos(lat, lon float64, horizAcc *float64) measurement.Position {
	p, err := measurement.NewPosition(lat, lon, nil, measurement.Accuracy{Horizontal: horizAcc})
	if err != nil {
		panic(err)
	}
	return p
}

func f(v float64) *float64 { return &v }

func TestTimePolicy_Idempotent(t *testing.T) {
	pol := NewTimePolicy(0)
	now := time.Now()
	x := Tagged{Update: measurement.NewUpdate(pos(1, 1, f(10)), now), Source: "a"}
	got := pol.Select(x, x)
	if got != x {
		t.Fatalf("expected idempotence, got %+v want %+v", got, x)
	}
}

func TestTimePolicy_StaleRejected(t *testing.T) {
	pol := NewTimePolicy(2 * time.Minute)
	now := time.Now()
	prev := Tagged{Update: measurement.NewUpdate(pos(1, 1, f(5)), now), Source: "a"}
	next := Tagged{Update: measurement.NewUpdate(pos(2, 2, f(1)), now.Add(-5*time.Minute)), Source: "b"}

	got := pol.Select(prev, next)
	if got != prev {
		t.Fatalf("expected stale update rejected, got %+v", got)
	}
}

func TestTimePolicy_MuchNewerAcceptedRegardlessOfAccuracy(t *testing.T) {
	pol := NewTimePolicy(2 * time.Minute)
	now := time.Now()
	prev := Tagged{Update: measurement.NewUpdate(pos(1, 1, f(1)), now), Source: "a"}
	next := Tagged{Update: measurement.NewUpdate(pos(2, 2, f(500)), now.Add(5*time.Minute)), Source: "b"}

	got := pol.Select(prev, next)
	if got != next {
		t.Fatalf("expected newer update accepted, got %+v", got)
	}
}

func TestTimePolicy_WithinWindowPrefersMoreAccurate(t *testing.T) {
	pol := NewTimePolicy(2 * time.Minute)
	now := time.Now()
	prev := Tagged{Update: measurement.NewUpdate(pos(1, 1, f(10)), now), Source: "a"}
	// 30s later, within the 2-minute window, but less accurate.
	next := Tagged{Update: measurement.NewUpdate(pos(2, 2, f(50)), now.Add(30*time.Second)), Source: "b"}

	got := pol.Select(prev, next)
	if got != prev {
		t.Fatalf("expected less-accurate in-window update rejected, got %+v", got)
	}
}

func TestTimePolicy_ExactTieSameSourceContinues(t *testing.T) {
	pol := NewTimePolicy(2 * time.Minute)
	now := time.Now()
	prev := Tagged{Update: measurement.NewUpdate(pos(1, 1, f(10)), now), Source: "a"}
	next := Tagged{Update: measurement.NewUpdate(pos(2, 2, f(10)), now), Source: "a"}

	got := pol.Select(prev, next)
	if got != next {
		t.Fatalf("expected same-source exact tie to continue with next, got %+v", got)
	}
}

func TestTimePolicy_ExactTieDifferentSourceKeepsPrev(t *testing.T) {
	pol := NewTimePolicy(2 * time.Minute)
	now := time.Now()
	prev := Tagged{Update: measurement.NewUpdate(pos(1, 1, f(10)), now), Source: "a"}
	next := Tagged{Update: measurement.NewUpdate(pos(2, 2, f(10)), now), Source: "b"}

	got := pol.Select(prev, next)
	if got != prev {
		t.Fatalf("expected exact tie from a different source to keep prev's source, got %+v", got)
	}
}

func TestTimePolicy_BothUnknownAccuracyPrefersNewer(t *testing.T) {
	pol := NewTimePolicy(2 * time.Minute)
	now := time.Now()
	prev := Tagged{Update: measurement.NewUpdate(pos(1, 1, nil), now), Source: "a"}
	next := Tagged{Update: measurement.NewUpdate(pos(2, 2, nil), now.Add(30*time.Second)), Source: "b"}

	got := pol.Select(prev, next)
	if got != next {
		t.Fatalf("expected the newer update preferred when both lack accuracy, got %+v", got)
	}
}

func TestTimePolicy_MalformedRejectedSilently(t *testing.T) {
	pol := NewTimePolicy(2 * time.Minute)
	now := time.Now()
	prev := Tagged{Update: measurement.NewUpdate(pos(1, 1, f(10)), now), Source: "a"}
	bad := Tagged{Update: measurement.Update[measurement.Position]{
		Value: measurement.Position{Latitude: 9999, Longitude: 9999},
		When:  now.Add(time.Second),
	}, Source: "b"}

	got := pol.Select(prev, bad)
	if got != prev {
		t.Fatalf("expected malformed update rejected, got %+v", got)
	}
}
