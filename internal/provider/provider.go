// Package provider defines the uniform capability and lifecycle contract
// that every positioning backend — GNSS, network, fusion, or external
// vendor — is normalized behind.
package provider

import (
	"fmt"

	"github.com/resinat/locationd/internal/apperr"
	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/observe"
)

// LifecycleState is one of the three states in the provider state machine
// described in spec.md §4.2.
type LifecycleState int

const (
	StateDisabled LifecycleState = iota
	StateEnabled
	StateActive
)

func (s LifecycleState) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateEnabled:
		return "enabled"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Event is the union of notifications the engine forwards to providers.
type Event struct {
	Kind                EventKind
	ReferencePosition   measurement.Update[measurement.Position]
	ReferenceVelocity   measurement.Update[measurement.Velocity]
	ReferenceHeading    measurement.Update[measurement.Heading]
	WifiCellReportingOn bool

	// TimeHintValid/TimeHintSkewNanos accompany
	// EventReferencePositionUpdated when the accepted update's source
	// provider implements TimeHintSource (SPEC_FULL.md §4.11's supplement).
	TimeHintValid     bool
	TimeHintSkewNanos int64
}

// EventKind discriminates the Event union.
type EventKind int

const (
	EventReferencePositionUpdated EventKind = iota
	EventReferenceVelocityUpdated
	EventReferenceHeadingUpdated
	EventWifiCellReportingStateChanged
)

// Provider is the contract every positioning backend implements.
type Provider interface {
	// Identity distinguishes this provider instance for engine bookkeeping
	// (add_provider idempotence, removal, activation tracking).
	ID() string

	Features() criteria.FeatureSet
	Requirements() criteria.RequirementSet
	Matches(c criteria.Criteria) bool

	OnEvent(e Event)

	Enable() error
	Disable() error
	Activate() error
	Deactivate() error
	State() LifecycleState

	PositionUpdates() *observe.Signal[measurement.Update[measurement.Position]]
	HeadingUpdates() *observe.Signal[measurement.Update[measurement.Heading]]
	VelocityUpdates() *observe.Signal[measurement.Update[measurement.Velocity]]
}

// TimeHintSource is an optional capability a provider may additionally
// implement: a time-assistance hint analogous to the original
// implementation's SNTP-derived correction (spec.md supplement, see
// SPEC_FULL.md §4.11). The engine checks for this via a type assertion and
// never requires it.
type TimeHintSource interface {
	TimeHint() (valid bool, skewNanos int64)
}

// DefaultMatches implements the default matching rule shared by concrete
// providers: the provider's Requirements must be a subset of what the
// criteria allows, and — when the criteria names specific features — the
// provider must supply at least one of them.
func DefaultMatches(p Provider, c criteria.Criteria) bool {
	for req := range p.Requirements() {
		if !c.Allows(req) {
			return false
		}
	}
	if len(c.Features) == 0 {
		return true
	}
	for f := range c.Features {
		if p.Features().Has(f) {
			return true
		}
	}
	return false
}

// transition validates a lifecycle edge and returns the new state, or
// ErrInvalidState if the edge is illegal.
func transition(from LifecycleState, action string) (LifecycleState, error) {
	switch action {
	case "enable":
		if from == StateDisabled {
			return StateEnabled, nil
		}
	case "disable":
		if from == StateEnabled {
			return StateDisabled, nil
		}
	case "activate":
		if from == StateEnabled {
			return StateActive, nil
		}
	case "deactivate":
		if from == StateActive {
			return StateEnabled, nil
		}
	}
	return from, fmt.Errorf("%s from %s: %w", action, from, apperr.ErrInvalidState)
}
