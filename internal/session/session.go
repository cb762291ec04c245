// Package session implements the per-client session (spec.md §4.7): three
// independently toggleable streams bound to engine-resolved providers.
package session

import (
	"github.com/resinat/locationd/internal/engine"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/observe"
	"github.com/resinat/locationd/internal/provider"
	"github.com/resinat/locationd/internal/selection"
)

// Status is an enable/disable flag for one stream.
type Status int

const (
	StatusDisabled Status = iota
	StatusEnabled
)

// Session is a client's per-request handle to position/heading/velocity
// streams (spec.md §4.7). All three status/update Property pairs start
// disabled/nil; no update reaches the client until the respective status
// is set to enabled.
type Session struct {
	ObjectPath string

	PositionStatus *observe.Property[Status]
	HeadingStatus  *observe.Property[Status]
	VelocityStatus *observe.Property[Status]

	PositionUpdate *observe.Property[*measurement.Update[measurement.Position]]
	HeadingUpdate  *observe.Property[*measurement.Update[measurement.Heading]]
	VelocityUpdate *observe.Property[*measurement.Update[measurement.Velocity]]

	eng     *engine.Engine
	triple  selection.Triple
	posSub  observe.Subscription
	headSub observe.Subscription
	velSub  observe.Subscription
}

// New builds a Session bound to eng, resolved against triple (the
// provider-selection result for this session's Criteria).
func New(objectPath string, eng *engine.Engine, triple selection.Triple) *Session {
	return &Session{
		ObjectPath:     objectPath,
		PositionStatus: observe.NewProperty(StatusDisabled, equalStatus),
		HeadingStatus:  observe.NewProperty(StatusDisabled, equalStatus),
		VelocityStatus: observe.NewProperty(StatusDisabled, equalStatus),
		PositionUpdate: observe.NewProperty[*measurement.Update[measurement.Position]](nil, nil),
		HeadingUpdate:  observe.NewProperty[*measurement.Update[measurement.Heading]](nil, nil),
		VelocityUpdate: observe.NewProperty[*measurement.Update[measurement.Velocity]](nil, nil),
		eng:            eng,
		triple:         triple,
	}
}

func equalStatus(a, b Status) bool { return a == b }

// StartPositionUpdates transitions disabled→enabled for the position
// stream: idempotent on an already-enabled stream (same→same is a no-op,
// spec.md §4.7's table).
func (s *Session) StartPositionUpdates() error {
	if s.PositionStatus.Get() == StatusEnabled {
		return nil
	}
	tracked := s.eng.TrackedProvider(s.triple.Position.ID())
	if tracked == nil {
		tracked = provider.NewTrackedProvider(s.triple.Position)
	}
	if err := tracked.Activate(); err != nil {
		return err
	}

	// Immediate last-known population (spec.md §4.7, scenario S7): read
	// synchronously before installing the listener so it happens-before
	// any new emission reaches this session.
	if lk := s.eng.LastKnownLocation(); lk != nil {
		s.PositionUpdate.Set(lk)
	}

	s.posSub = s.triple.Position.PositionUpdates().Subscribe(func(u measurement.Update[measurement.Position]) {
		s.PositionUpdate.Set(&u)
	})
	s.PositionStatus.Set(StatusEnabled)
	return nil
}

// StopPositionUpdates transitions enabled→disabled.
func (s *Session) StopPositionUpdates() error {
	if s.PositionStatus.Get() == StatusDisabled {
		return nil
	}
	if s.posSub != nil {
		s.posSub.Close()
		s.posSub = nil
	}
	_ = s.trackedFor(s.triple.Position).Deactivate()
	s.PositionStatus.Set(StatusDisabled)
	return nil
}

func (s *Session) trackedFor(p provider.Provider) *provider.TrackedProvider {
	if tp := s.eng.TrackedProvider(p.ID()); tp != nil {
		return tp
	}
	return provider.NewTrackedProvider(p)
}

// StartHeadingUpdates transitions disabled→enabled for the heading stream.
func (s *Session) StartHeadingUpdates() error {
	if s.HeadingStatus.Get() == StatusEnabled {
		return nil
	}
	if err := s.trackedFor(s.triple.Heading).Activate(); err != nil {
		return err
	}
	s.headSub = s.triple.Heading.HeadingUpdates().Subscribe(func(u measurement.Update[measurement.Heading]) {
		s.HeadingUpdate.Set(&u)
	})
	s.HeadingStatus.Set(StatusEnabled)
	return nil
}

// StopHeadingUpdates transitions enabled→disabled.
func (s *Session) StopHeadingUpdates() error {
	if s.HeadingStatus.Get() == StatusDisabled {
		return nil
	}
	if s.headSub != nil {
		s.headSub.Close()
		s.headSub = nil
	}
	_ = s.trackedFor(s.triple.Heading).Deactivate()
	s.HeadingStatus.Set(StatusDisabled)
	return nil
}

// StartVelocityUpdates transitions disabled→enabled for the velocity
// stream.
func (s *Session) StartVelocityUpdates() error {
	if s.VelocityStatus.Get() == StatusEnabled {
		return nil
	}
	if err := s.trackedFor(s.triple.Velocity).Activate(); err != nil {
		return err
	}
	s.velSub = s.triple.Velocity.VelocityUpdates().Subscribe(func(u measurement.Update[measurement.Velocity]) {
		s.VelocityUpdate.Set(&u)
	})
	s.VelocityStatus.Set(StatusEnabled)
	return nil
}

// StopVelocityUpdates transitions enabled→disabled.
func (s *Session) StopVelocityUpdates() error {
	if s.VelocityStatus.Get() == StatusDisabled {
		return nil
	}
	if s.velSub != nil {
		s.velSub.Close()
		s.velSub = nil
	}
	_ = s.trackedFor(s.triple.Velocity).Deactivate()
	s.VelocityStatus.Set(StatusDisabled)
	return nil
}

// Close tears down every active stream, decrementing any outstanding
// activation counts (spec.md §3's Session destruction invariant). Safe to
// call multiple times.
func (s *Session) Close() {
	_ = s.StopPositionUpdates()
	_ = s.StopHeadingUpdates()
	_ = s.StopVelocityUpdates()
}
