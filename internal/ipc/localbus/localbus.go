// Package localbus is a minimal in-process transport implementing
// internal/ipc.Bus (spec.md §6): channels-and-callbacks only, peer-gone
// simulated by an explicit method call rather than a real bus watch. It
// is good enough to drive the seed-suite scenarios (S1-S7) end-to-end;
// it is explicitly a test/demo transport, not a production IPC stack.
//
// Grounded on the teacher's internal/api (handler/DTO split) translated
// from HTTP+JSON request/response into in-process method calls.
package localbus

import (
	"context"
	"errors"
	"sync"

	"github.com/resinat/locationd/internal/apperr"
	"github.com/resinat/locationd/internal/engine"
	"github.com/resinat/locationd/internal/identity"
	"github.com/resinat/locationd/internal/ipc"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/sessionmanager"
)

// Bus is the in-process ipc.Bus implementation.
type Bus struct {
	svc *serviceHandle
}

// New builds a Bus fronting mgr (the session manager / facade, C9).
func New(mgr *sessionmanager.Manager) *Bus {
	return &Bus{svc: &serviceHandle{mgr: mgr}}
}

func (b *Bus) Service() ipc.ServiceHandle { return b.svc }

// Close tears down every registered session.
func (b *Bus) Close() error {
	b.svc.mgr.Close()
	return nil
}

type serviceHandle struct {
	mgr *sessionmanager.Manager
}

func (s *serviceHandle) CreateSessionForCriteria(ctx context.Context, creds ipc.Credentials, c ipc.CriteriaDTO) (ipc.SessionHandle, error) {
	sess, err := s.mgr.CreateSession(ctx, c.ToCriteria(), identity.Credentials{PID: creds.PID, UID: creds.UID})
	if err != nil {
		return nil, toServiceError(err)
	}
	return newSessionHandle(sess), nil
}

func (s *serviceHandle) AddProvider(ctx context.Context, objectPath string, agent ipc.ProviderAgent) error {
	if objectPath == "" || agent == nil {
		return &ipc.ServiceErrorDTO{Code: ipc.ErrCodeAddingProvider, Message: "object path and agent are required"}
	}
	s.mgr.Engine.AddProvider(newRemoteProvider(objectPath, agent))
	return nil
}

func (s *serviceHandle) State() ipc.ServiceStateDTO {
	switch s.mgr.State() {
	case engine.StateOn:
		return ipc.ServiceStateEnabled
	case engine.StateActive:
		return ipc.ServiceStateActive
	default:
		return ipc.ServiceStateDisabled
	}
}

func (s *serviceHandle) DoesSatelliteBasedPositioning() bool { return s.mgr.DoesSatelliteBasedPositioning() }
func (s *serviceHandle) SetDoesSatelliteBasedPositioning(v bool) {
	s.mgr.SetDoesSatelliteBasedPositioning(v)
}
func (s *serviceHandle) DoesReportCellAndWifiIds() bool { return s.mgr.DoesReportCellAndWifiIds() }
func (s *serviceHandle) SetDoesReportCellAndWifiIds(v bool) {
	s.mgr.SetDoesReportCellAndWifiIds(v)
}
func (s *serviceHandle) IsOnline() bool     { return s.mgr.IsOnline() }
func (s *serviceHandle) SetIsOnline(v bool) { s.mgr.SetIsOnline(v) }

func (s *serviceHandle) VisibleSpaceVehicles() []measurement.SpaceVehicle {
	svs := s.mgr.Engine.Updates.VisibleSpaceVehicles()
	out := make([]measurement.SpaceVehicle, 0, len(svs))
	for _, sv := range svs {
		out = append(out, sv)
	}
	return out
}

func (s *serviceHandle) PeerGone(path string) { s.mgr.PeerGone(path) }

// toServiceError maps the session manager's internal errors to the
// generic wire error codes of spec.md §6/§7: only
// InsufficientPermissions and DuplicateSession are named distinctly,
// everything else collapses to CreatingSession to avoid leaking
// internal details to an untrusted caller.
func toServiceError(err error) error {
	switch {
	case errors.Is(err, apperr.ErrInsufficientPermissions):
		return &ipc.ServiceErrorDTO{Code: ipc.ErrCodeInsufficientPermissions, Message: "permission denied"}
	case errors.Is(err, apperr.ErrDuplicateSession):
		return &ipc.ServiceErrorDTO{Code: ipc.ErrCodeDuplicateSession, Message: "session already registered for this caller"}
	default:
		return &ipc.ServiceErrorDTO{Code: ipc.ErrCodeCreatingSession, Message: "could not create session"}
	}
}

// attachState tracks the single callback client this session delivers
// updates to, if any.
type attachState struct {
	mu            sync.Mutex
	client        ipc.SessionClient
	onUnreachable func()
	unreachable   bool
	closeSubs     func()
}

func (a *attachState) markUnreachableOnce() {
	a.mu.Lock()
	already := a.unreachable
	a.unreachable = true
	cb := a.onUnreachable
	closeSubs := a.closeSubs
	a.mu.Unlock()
	if already {
		return
	}
	if closeSubs != nil {
		closeSubs()
	}
	if cb != nil {
		cb()
	}
}

func deliver(ctx context.Context, a *attachState, send func(ipc.SessionClient) error) {
	a.mu.Lock()
	client := a.client
	unreachable := a.unreachable
	a.mu.Unlock()
	if client == nil || unreachable {
		return
	}

	done := make(chan error, 1)
	go func() { done <- send(client) }()

	select {
	case err := <-done:
		if err != nil {
			a.markUnreachableOnce()
		}
	case <-ctx.Done():
		a.markUnreachableOnce()
	}
}
