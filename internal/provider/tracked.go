package provider

import (
	"sync/atomic"

	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/observe"
)

// TrackedProvider wraps any Provider to add reference-counted activation:
// Activate only calls through to the wrapped provider on a 0→1 transition
// of the demand counter, Deactivate only on 1→0. Multiple sessions may
// independently activate the same provider; the backend starts exactly
// once (spec.md §4.3). The counter is an atomic.Int32 updated with Add,
// matching the teacher's node.NodeEntry atomic-field style.
type TrackedProvider struct {
	inner  Provider
	demand atomic.Int32
}

// NewTrackedProvider wraps inner.
func NewTrackedProvider(inner Provider) *TrackedProvider {
	return &TrackedProvider{inner: inner}
}

// Unwrap returns the wrapped provider.
func (t *TrackedProvider) Unwrap() Provider { return t.inner }

// Activate increments the demand counter. On a 0→1 edge it calls through
// to the wrapped provider's Activate. While the wrapped provider is
// disabled, the counter is not touched and no call is dispatched
// (spec.md §9's "disabled sentinel" note).
func (t *TrackedProvider) Activate() error {
	if t.inner.State() == StateDisabled {
		return nil
	}
	if t.demand.Add(1) == 1 {
		if err := t.inner.Activate(); err != nil {
			t.demand.Add(-1)
			return err
		}
	}
	return nil
}

// Deactivate decrements the demand counter. On a 1→0 edge it calls
// through to the wrapped provider's Deactivate.
func (t *TrackedProvider) Deactivate() error {
	if t.inner.State() == StateDisabled {
		return nil
	}
	if t.demand.Add(-1) == 0 {
		return t.inner.Deactivate()
	}
	return nil
}

// Demand returns the current reference count, for tests and diagnostics.
func (t *TrackedProvider) Demand() int32 { return t.demand.Load() }

// The remaining Provider methods pass straight through to the wrapped
// provider; only Activate/Deactivate carry ref-counting semantics.

func (t *TrackedProvider) ID() string                          { return t.inner.ID() }
func (t *TrackedProvider) Features() criteria.FeatureSet        { return t.inner.Features() }
func (t *TrackedProvider) Requirements() criteria.RequirementSet {
	return t.inner.Requirements()
}
func (t *TrackedProvider) Matches(c criteria.Criteria) bool { return t.inner.Matches(c) }
func (t *TrackedProvider) OnEvent(e Event)                  { t.inner.OnEvent(e) }
func (t *TrackedProvider) Enable() error                    { return t.inner.Enable() }
func (t *TrackedProvider) Disable() error                   { return t.inner.Disable() }
func (t *TrackedProvider) State() LifecycleState             { return t.inner.State() }

func (t *TrackedProvider) PositionUpdates() *observe.Signal[measurement.Update[measurement.Position]] {
	return t.inner.PositionUpdates()
}
func (t *TrackedProvider) HeadingUpdates() *observe.Signal[measurement.Update[measurement.Heading]] {
	return t.inner.HeadingUpdates()
}
func (t *TrackedProvider) VelocityUpdates() *observe.Signal[measurement.Update[measurement.Velocity]] {
	return t.inner.VelocityUpdates()
}
