// Package updatepolicy implements the update-selection policy (spec.md
// §4.1): deciding which of two competing position fixes to retain.
package updatepolicy

import (
	"time"

	"github.com/resinat/locationd/internal/measurement"
)

// Tagged couples a position update with the identity of the provider
// (source) that produced it, needed for the same-source tie-break rule.
type Tagged struct {
	Update measurement.Update[measurement.Position]
	Source string
}

// Policy selects which of two competing fixes to retain.
type Policy interface {
	Select(prev, next Tagged) Tagged
}

// TimePolicy is the default time-based policy described in spec.md §4.1.
type TimePolicy struct {
	// Cutoff is the staleness/freshness window; default 2 minutes.
	Cutoff time.Duration
}

// NewTimePolicy builds a TimePolicy with the given cutoff, defaulting to
// 2 minutes when cutoff <= 0.
func NewTimePolicy(cutoff time.Duration) *TimePolicy {
	if cutoff <= 0 {
		cutoff = 2 * time.Minute
	}
	return &TimePolicy{Cutoff: cutoff}
}

// Select implements Policy. Malformed updates (NaN coordinates) are
// rejected silently; prev is retained.
func (tp *TimePolicy) Select(prev, next Tagged) Tagged {
	if !next.Update.Value.IsValid() {
		return prev
	}

	age := next.Update.When.Sub(prev.Update.When)

	switch {
	case age < -tp.Cutoff:
		// next is older than prev by more than the cutoff: keep prev.
		return prev
	case age > tp.Cutoff:
		// next is newer than prev by more than the cutoff: accept
		// regardless of accuracy.
		return next
	default:
		// Within the cutoff window: accept next only if it is at least
		// as accurate (missing accuracy treated as worst).
		prevAcc := horizontalOrWorst(prev.Update.Value.Accuracy.Horizontal)
		nextAcc := horizontalOrWorst(next.Update.Value.Accuracy.Horizontal)

		if nextAcc < prevAcc {
			return next
		}
		if nextAcc > prevAcc {
			return prev
		}
		// Exact accuracy tie: when neither update carries accuracy,
		// prefer the newer one (SPEC_FULL.md §4.1's "prefer newer"
		// resolution of the open question, which applies only to this
		// both-unknown case).
		if prevAcc == worstAccuracy && nextAcc == worstAccuracy {
			if age > 0 {
				return next
			}
			if age < 0 {
				return prev
			}
		}
		// Tie-break on exact equality lets prev's source continue with
		// next; a different source never displaces prev on a mere tie.
		if next.Source == prev.Source {
			return next
		}
		return prev
	}
}

// horizontalOrWorst returns the horizontal accuracy in meters, or
// worstAccuracy (1e18) when unknown, so missing accuracy always loses a comparison.
func horizontalOrWorst(h *float64) float64 {
	if h == nil {
		return worstAccuracy
	}
	return *h
}

const worstAccuracy = 1e18
