// Package selection implements the provider-selection policy (spec.md
// §4.5): choosing, per stream, which registered provider serves a
// client's Criteria.
package selection

import (
	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/provider"
)

// Triple holds the resolved provider for each of the three streams. Any
// field may be a NullProvider when nothing matched.
type Triple struct {
	Position provider.Provider
	Heading  provider.Provider
	Velocity provider.Provider
}

// Policy picks a Triple given Criteria and the engine's current provider
// set.
type Policy interface {
	Select(c criteria.Criteria, providers []provider.Provider) Triple
}

// Default is the default provider-selection policy (spec.md §4.5): for
// each requested stream, collect matching providers, prefer one whose
// relevant stream is already active (warm-path preference), and among
// ties pick the first encountered — grounded on the teacher's P2C-style
// "prefer the already-warm candidate" scoring in
// internal/routing/latency_eval.go.
type Default struct {
	NullProvider provider.Provider
}

// NewDefault builds a Default policy, falling back to a fresh
// NullProvider when one is not supplied.
func NewDefault(null provider.Provider) *Default {
	if null == nil {
		null = provider.NewNullProvider()
	}
	return &Default{NullProvider: null}
}

func (d *Default) Select(c criteria.Criteria, providers []provider.Provider) Triple {
	return Triple{
		Position: d.pick(c, providers, criteria.FeaturePosition),
		Heading:  d.pick(c, providers, criteria.FeatureHeading),
		Velocity: d.pick(c, providers, criteria.FeatureVelocity),
	}
}

func (d *Default) pick(c criteria.Criteria, providers []provider.Provider, stream criteria.Feature) provider.Provider {
	var best provider.Provider
	for _, p := range providers {
		if !p.Features().Has(stream) {
			continue
		}
		if !p.Matches(c) {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		// Warm-path preference: an already-active candidate beats a
		// cold one; otherwise keep the first encountered.
		if best.State() != provider.StateActive && p.State() == provider.StateActive {
			best = p
		}
	}
	if best == nil {
		return d.NullProvider
	}
	return best
}
