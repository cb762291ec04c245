package provider

import (
	"sync"

	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/observe"
)

// Base provides the lifecycle FSM and the three update signals that every
// concrete provider needs. Concrete providers embed Base and implement
// Features/Requirements/Matches/OnEvent/ID themselves.
type Base struct {
	mu    sync.Mutex
	state LifecycleState

	position *observe.Signal[measurement.Update[measurement.Position]]
	heading  *observe.Signal[measurement.Update[measurement.Heading]]
	velocity *observe.Signal[measurement.Update[measurement.Velocity]]
}

// NewBase constructs a Base in the disabled state.
func NewBase() Base {
	return Base{
		state:    StateDisabled,
		position: observe.NewSignal[measurement.Update[measurement.Position]](),
		heading:  observe.NewSignal[measurement.Update[measurement.Heading]](),
		velocity: observe.NewSignal[measurement.Update[measurement.Velocity]](),
	}
}

func (b *Base) State() LifecycleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base) Enable() error  { return b.doTransition("enable") }
func (b *Base) Disable() error { return b.doTransition("disable") }

// Activate/Deactivate are exposed for providers with no external side
// effects to start/stop; providers with real backends override these and
// call b.SetState directly once their own start/stop succeeds.
func (b *Base) Activate() error   { return b.doTransition("activate") }
func (b *Base) Deactivate() error { return b.doTransition("deactivate") }

func (b *Base) doTransition(action string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, err := transition(b.state, action)
	if err != nil {
		return err
	}
	b.state = next
	return nil
}

// SetState forces the state, bypassing transition validation. Used by
// concrete providers that must reflect an external backend's own failure
// (e.g. falling back to enabled if Activate's I/O failed after the FSM
// already advanced).
func (b *Base) SetState(s LifecycleState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

func (b *Base) PositionUpdates() *observe.Signal[measurement.Update[measurement.Position]] {
	return b.position
}
func (b *Base) HeadingUpdates() *observe.Signal[measurement.Update[measurement.Heading]] {
	return b.heading
}
func (b *Base) VelocityUpdates() *observe.Signal[measurement.Update[measurement.Velocity]] {
	return b.velocity
}

// EmitPosition/EmitHeading/EmitVelocity let a concrete provider push an
// update to subscribers (the engine, or a fusion parent).
func (b *Base) EmitPosition(u measurement.Update[measurement.Position]) { b.position.Emit(u) }
func (b *Base) EmitHeading(u measurement.Update[measurement.Heading])   { b.heading.Emit(u) }
func (b *Base) EmitVelocity(u measurement.Update[measurement.Velocity]) { b.velocity.Emit(u) }

// NullProvider is the canonical zero-valued Provider: matches nothing,
// advertises no features or requirements, and its lifecycle calls are
// no-ops (spec.md §4.5).
type NullProvider struct {
	Base
	id string
}

// NewNullProvider returns a NullProvider with a stable identity.
func NewNullProvider() *NullProvider {
	return &NullProvider{Base: NewBase(), id: "null-provider"}
}

func (n *NullProvider) ID() string                            { return n.id }
func (n *NullProvider) Features() criteria.FeatureSet          { return criteria.FeatureSet{} }
func (n *NullProvider) Requirements() criteria.RequirementSet   { return criteria.RequirementSet{} }
func (n *NullProvider) Matches(criteria.Criteria) bool          { return false }
func (n *NullProvider) OnEvent(Event)                          {}

// Activate/Deactivate/Enable/Disable on NullProvider always succeed
// without changing observable behavior; it never emits.
func (n *NullProvider) Activate() error   { return nil }
func (n *NullProvider) Deactivate() error { return nil }
func (n *NullProvider) Enable() error     { return nil }
func (n *NullProvider) Disable() error    { return nil }
