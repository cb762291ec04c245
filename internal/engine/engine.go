// Package engine implements the central registry of providers and
// reference state (spec.md §4.6): owns a dynamic set of providers,
// maintains reference position/heading/velocity and visible space
// vehicles, tracks the freshest last-known location, and delegates
// provider selection to internal/selection.
//
// Grounded on internal/topology/pool.go's split between an xsync.Map for
// hot-path concurrent reads and a coarse sync.Mutex held only across
// structural mutation (add/remove); iteration ranges the xsync.Map
// without taking it.
package engine

import (
	"log"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/observe"
	"github.com/resinat/locationd/internal/provider"
	"github.com/resinat/locationd/internal/selection"
	"github.com/resinat/locationd/internal/updatepolicy"
)

// State is the engine's global on/off/active mode (spec.md §3).
type State int

const (
	StateOff State = iota
	StateOn
	StateActive
)

// Toggle is a simple on/off flag Property value.
type Toggle bool

// Config mirrors spec.md §3's engine config block, each field observable.
type Config struct {
	EngineState          *observe.Property[State]
	SatellitePositioning *observe.Property[Toggle]
	WifiCellReporting    *observe.Property[Toggle]
}

func newConfig() Config {
	return Config{
		EngineState:          observe.NewProperty(StateOff, equalState),
		SatellitePositioning: observe.NewProperty(Toggle(true), equalToggle),
		WifiCellReporting:    observe.NewProperty(Toggle(false), equalToggle),
	}
}

func equalState(a, b State) bool   { return a == b }
func equalToggle(a, b Toggle) bool { return a == b }

// Updates mirrors spec.md §3's reference-state block.
type Updates struct {
	Position *observe.Property[*measurement.Update[measurement.Position]]
	Heading  *observe.Property[*measurement.Update[measurement.Heading]]
	Velocity *observe.Property[*measurement.Update[measurement.Velocity]]

	visibleSVs *xsync.Map[measurement.SVKey, measurement.SpaceVehicle]
}

func newUpdates() Updates {
	return Updates{
		Position:   observe.NewProperty[*measurement.Update[measurement.Position]](nil, nil),
		Heading:    observe.NewProperty[*measurement.Update[measurement.Heading]](nil, nil),
		Velocity:   observe.NewProperty[*measurement.Update[measurement.Velocity]](nil, nil),
		visibleSVs: xsync.NewMap[measurement.SVKey, measurement.SpaceVehicle](),
	}
}

// VisibleSpaceVehicles returns a snapshot of the currently visible SV map.
func (u Updates) VisibleSpaceVehicles() map[measurement.SVKey]measurement.SpaceVehicle {
	out := make(map[measurement.SVKey]measurement.SpaceVehicle, u.visibleSVs.Size())
	u.visibleSVs.Range(func(k measurement.SVKey, v measurement.SpaceVehicle) bool {
		out[k] = v
		return true
	})
	return out
}

// SetVisibleSpaceVehicle records/updates one visible SV entry. The engine
// does not call it itself; AddProvider wires no provider to it, so
// entries appear only when a caller sets them directly.
func (u Updates) SetVisibleSpaceVehicle(sv measurement.SpaceVehicle) {
	u.visibleSVs.Store(sv.Key, sv)
}

// registration bundles the live subscriptions an added provider holds, so
// RemoveProvider can sever them all before releasing ownership.
type registration struct {
	tracked *provider.TrackedProvider
	subs    []observe.Subscription
}

// Engine is the central registry described in spec.md §4.6.
type Engine struct {
	mu        sync.Mutex // guards structural changes only, never held across callbacks
	providers *xsync.Map[string, *registration]

	Config  Config
	Updates Updates

	selectionPolicy selection.Policy
	updatePolicy    updatepolicy.Policy

	lastKnown     *observe.Property[*measurement.Update[measurement.Position]]
	lastKnownTag  updatepolicy.Tagged
	hasLastKnown  bool
	lastKnownLock sync.Mutex

	// OnLastKnownPersist, if set, is called synchronously whenever
	// last_known_location advances — the engine's hook for
	// internal/persist to mirror the value durably.
	OnLastKnownPersist func(measurement.Update[measurement.Position])
}

// New constructs an Engine with the default provider-selection and
// update-selection policies.
func New(selPolicy selection.Policy, updPolicy updatepolicy.Policy) *Engine {
	if selPolicy == nil {
		selPolicy = selection.NewDefault(nil)
	}
	if updPolicy == nil {
		updPolicy = updatepolicy.NewTimePolicy(0)
	}
	e := &Engine{
		providers:       xsync.NewMap[string, *registration](),
		Config:          newConfig(),
		Updates:         newUpdates(),
		selectionPolicy: selPolicy,
		updatePolicy:    updPolicy,
	}
	e.lastKnown = observe.NewProperty[*measurement.Update[measurement.Position]](nil, nil)

	e.Config.EngineState.Subscribe(func(s State) {
		if s == StateOff {
			e.ForEachProvider(func(p provider.Provider) {
				_ = p.Deactivate()
			})
		}
	})
	e.Config.WifiCellReporting.Subscribe(func(t Toggle) {
		e.ForEachProvider(func(p provider.Provider) {
			p.OnEvent(provider.Event{Kind: provider.EventWifiCellReportingStateChanged, WifiCellReportingOn: bool(t)})
		})
	})
	return e
}

// LastKnownLocation returns the freshest accepted position update, or nil
// if none has been accepted yet.
func (e *Engine) LastKnownLocation() *measurement.Update[measurement.Position] {
	return e.lastKnown.Get()
}

// LastKnownLocationProperty exposes the Property for subscription (used
// by internal/harvester).
func (e *Engine) LastKnownLocationProperty() *observe.Property[*measurement.Update[measurement.Position]] {
	return e.lastKnown
}

// AddProvider registers p with the engine (idempotent by p.ID()).
// Subscribes to p's three streams, wiring them into reference state and
// last_known_location, and subscribes p to wifi/cell reporting changes.
func (e *Engine) AddProvider(p provider.Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.providers.Load(p.ID()); exists {
		return
	}

	tracked := provider.NewTrackedProvider(p)

	var subs []observe.Subscription
	subs = append(subs, p.PositionUpdates().Subscribe(func(u measurement.Update[measurement.Position]) {
		e.onPosition(p.ID(), u)
	}))
	subs = append(subs, p.HeadingUpdates().Subscribe(func(u measurement.Update[measurement.Heading]) {
		e.Updates.Heading.Set(&u)
		e.broadcastReferenceEvent(p.ID(), provider.Event{Kind: provider.EventReferenceHeadingUpdated, ReferenceHeading: u})
	}))
	subs = append(subs, p.VelocityUpdates().Subscribe(func(u measurement.Update[measurement.Velocity]) {
		e.Updates.Velocity.Set(&u)
		e.broadcastReferenceEvent(p.ID(), provider.Event{Kind: provider.EventReferenceVelocityUpdated, ReferenceVelocity: u})
	}))

	e.providers.Store(p.ID(), &registration{tracked: tracked, subs: subs})

	p.OnEvent(provider.Event{
		Kind:                provider.EventWifiCellReportingStateChanged,
		WifiCellReportingOn: bool(e.Config.WifiCellReporting.Get()),
	})
}

// SeedLastKnownLocation primes last_known_location from a persisted value
// at startup (SPEC_FULL.md §3's persistence exception), without invoking
// OnLastKnownPersist — the value is already durable, re-saving it would be
// a no-op write. A later provider update still competes with it normally
// through the configured update-selection policy.
func (e *Engine) SeedLastKnownLocation(u measurement.Update[measurement.Position]) {
	e.lastKnownLock.Lock()
	e.lastKnownTag = updatepolicy.Tagged{Update: u, Source: "persisted"}
	e.hasLastKnown = true
	e.lastKnownLock.Unlock()
	e.lastKnown.Set(&u)
}

// onPosition is the shared update path for reference state + last-known
// tracking (used both by direct providers and by a fusion provider added
// to the engine like any other provider).
func (e *Engine) onPosition(sourceID string, u measurement.Update[measurement.Position]) {
	e.Updates.Position.Set(&u)

	event := provider.Event{Kind: provider.EventReferencePositionUpdated, ReferencePosition: u}
	if reg, ok := e.providers.Load(sourceID); ok {
		if hinter, ok := reg.tracked.Unwrap().(provider.TimeHintSource); ok {
			event.TimeHintValid, event.TimeHintSkewNanos = hinter.TimeHint()
		}
	}
	e.broadcastReferenceEvent(sourceID, event)

	e.lastKnownLock.Lock()
	next := updatepolicy.Tagged{Update: u, Source: sourceID}
	var best updatepolicy.Tagged
	if !e.hasLastKnown {
		best = next
		e.hasLastKnown = true
	} else {
		best = e.safeSelect(e.lastKnownTag, next)
	}
	changed := !e.hasLastKnown || best != e.lastKnownTag
	e.lastKnownTag = best
	e.lastKnownLock.Unlock()

	if changed {
		e.lastKnown.Set(&best.Update)
		if e.OnLastKnownPersist != nil {
			e.OnLastKnownPersist(best.Update)
		}
	}
}

func (e *Engine) safeSelect(prev, next updatepolicy.Tagged) (result updatepolicy.Tagged) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: update-selection policy panicked, dropping update: %v", r)
			result = prev
		}
	}()
	return e.updatePolicy.Select(prev, next)
}

// RemoveProvider unsubscribes all connections and releases ownership.
// Non-fatal if unknown.
func (e *Engine) RemoveProvider(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, ok := e.providers.Load(id)
	if !ok {
		return
	}
	for _, s := range reg.subs {
		s.Close()
	}
	e.providers.Delete(id)
}

// HasProvider reports whether a provider with id is currently registered.
func (e *Engine) HasProvider(id string) bool {
	_, ok := e.providers.Load(id)
	return ok
}

// broadcastReferenceEvent forwards a reference position/heading/velocity
// event to every registered provider except the one that produced it
// (SPEC_FULL.md §4.11's supplement: a GNSS-style provider can consume
// another provider's reference fix for assisted positioning, e.g. a time
// hint alongside a reference position).
func (e *Engine) broadcastReferenceEvent(sourceID string, evt provider.Event) {
	e.providers.Range(func(id string, reg *registration) bool {
		if id == sourceID {
			return true
		}
		reg.tracked.OnEvent(evt)
		return true
	})
}

// ForEachProvider iterates every registered provider's tracked wrapper.
// f must not mutate the provider set.
func (e *Engine) ForEachProvider(f func(p provider.Provider)) {
	e.providers.Range(func(_ string, reg *registration) bool {
		f(reg.tracked)
		return true
	})
}

// TrackedProvider returns the TrackedProvider wrapper for id, or nil.
func (e *Engine) TrackedProvider(id string) *provider.TrackedProvider {
	reg, ok := e.providers.Load(id)
	if !ok {
		return nil
	}
	return reg.tracked
}

// DetermineProviderSelectionForCriteria delegates to the configured
// provider-selection policy (spec.md §4.6), filtering out providers that
// require satellites when satellite_positioning is off.
func (e *Engine) DetermineProviderSelectionForCriteria(c criteria.Criteria) selection.Triple {
	var all []provider.Provider
	satOff := e.Config.SatellitePositioning.Get() == Toggle(false)
	e.providers.Range(func(_ string, reg *registration) bool {
		if satOff && reg.tracked.Requirements().Has(criteria.RequirementSatellites) {
			return true
		}
		all = append(all, reg.tracked)
		return true
	})
	return e.selectionPolicy.Select(c, all)
}
