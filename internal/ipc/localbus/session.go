package localbus

import (
	"context"

	"github.com/resinat/locationd/internal/ipc"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/observe"
	"github.com/resinat/locationd/internal/session"
)

// sessionHandle adapts a *session.Session to ipc.SessionHandle: it
// subscribes to the session's three update Properties and fans each
// change out to the attached client under ClientCallbackTimeout.
type sessionHandle struct {
	sess  *session.Session
	state attachState
}

func newSessionHandle(sess *session.Session) *sessionHandle {
	return &sessionHandle{sess: sess}
}

func (h *sessionHandle) ObjectPath() string { return h.sess.ObjectPath }

func (h *sessionHandle) StartPositionUpdates() error { return h.sess.StartPositionUpdates() }
func (h *sessionHandle) StopPositionUpdates() error  { return h.sess.StopPositionUpdates() }
func (h *sessionHandle) StartHeadingUpdates() error  { return h.sess.StartHeadingUpdates() }
func (h *sessionHandle) StopHeadingUpdates() error   { return h.sess.StopHeadingUpdates() }
func (h *sessionHandle) StartVelocityUpdates() error { return h.sess.StartVelocityUpdates() }
func (h *sessionHandle) StopVelocityUpdates() error  { return h.sess.StopVelocityUpdates() }

// Attach registers client as the recipient of this session's stream
// callbacks. Only one client may be attached at a time (spec.md §6: one
// session per connected client); a failed delivery — timeout or
// returned error — marks the session unreachable and invokes
// onUnreachable exactly once, then stops delivering further updates.
//
// A Property.Subscribe never replays the current value (only future
// changes), but a client that calls StartPositionUpdates (or the
// heading/velocity equivalents) before Attach expects the
// already-current value immediately (spec.md §6/§8 S7) — so each stream
// is delivered once synchronously here if already populated, in addition
// to being subscribed for future changes.
func (h *sessionHandle) Attach(client ipc.SessionClient, onUnreachable func()) {
	h.state.mu.Lock()
	h.state.client = client
	h.state.onUnreachable = onUnreachable
	h.state.unreachable = false
	h.state.mu.Unlock()

	deliverPosition := func(u *measurement.Update[measurement.Position]) {
		if u == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), ipc.ClientCallbackTimeout)
		defer cancel()
		deliver(ctx, &h.state, func(c ipc.SessionClient) error {
			return c.UpdatePosition(ctx, positionUpdateDTO(*u))
		})
	}
	deliverHeading := func(u *measurement.Update[measurement.Heading]) {
		if u == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), ipc.ClientCallbackTimeout)
		defer cancel()
		deliver(ctx, &h.state, func(c ipc.SessionClient) error {
			return c.UpdateHeading(ctx, ipc.UpdateDTO[float64]{Value: float64(u.Value), When: u.When.UnixNano()})
		})
	}
	deliverVelocity := func(u *measurement.Update[measurement.Velocity]) {
		if u == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), ipc.ClientCallbackTimeout)
		defer cancel()
		deliver(ctx, &h.state, func(c ipc.SessionClient) error {
			return c.UpdateVelocity(ctx, ipc.UpdateDTO[float64]{Value: float64(u.Value), When: u.When.UnixNano()})
		})
	}

	posSub := h.sess.PositionUpdate.Subscribe(deliverPosition)
	headSub := h.sess.HeadingUpdate.Subscribe(deliverHeading)
	velSub := h.sess.VelocityUpdate.Subscribe(deliverVelocity)

	subs := []observe.Subscription{posSub, headSub, velSub}
	h.state.mu.Lock()
	h.state.closeSubs = func() {
		for _, s := range subs {
			s.Close()
		}
	}
	h.state.mu.Unlock()

	deliverPosition(h.sess.PositionUpdate.Get())
	deliverHeading(h.sess.HeadingUpdate.Get())
	deliverVelocity(h.sess.VelocityUpdate.Get())
}

func positionUpdateDTO(u measurement.Update[measurement.Position]) ipc.UpdateDTO[ipc.PositionDTO] {
	return ipc.UpdateDTO[ipc.PositionDTO]{
		Value: ipc.PositionDTO{
			Lat: u.Value.Latitude,
			Lon: u.Value.Longitude,
			Alt: u.Value.Altitude,
			Acc: ipc.AccuracyDTO{Horizontal: u.Value.Accuracy.Horizontal, Vertical: u.Value.Accuracy.Vertical},
		},
		When: u.When.UnixNano(),
	}
}

var _ ipc.SessionHandle = (*sessionHandle)(nil)
