// Package sessionmanager implements the session manager / service facade
// (spec.md §4.8): authorizes, creates, registers, and reaps sessions, and
// mirrors the engine's global config as facade observables.
package sessionmanager

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/resinat/locationd/internal/apperr"
	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/engine"
	"github.com/resinat/locationd/internal/identity"
	"github.com/resinat/locationd/internal/observe"
	"github.com/resinat/locationd/internal/permission"
	"github.com/resinat/locationd/internal/selection"
	"github.com/resinat/locationd/internal/session"
)

// FacadeState mirrors engine.State for the service-facade's derived
// `state` property (spec.md §4.8).
type FacadeState = engine.State

// Manager is the session manager / service facade (C9).
type Manager struct {
	Engine   *engine.Engine
	Checker  permission.Checker
	Resolver identity.ProfileResolver
	Paths    *identity.PathAssigner
	sessions *xsync.Map[string, *session.Session]
}

// New builds a Manager wired to eng, checker, and a credentials resolver.
func New(eng *engine.Engine, checker permission.Checker, resolver identity.ProfileResolver, paths *identity.PathAssigner) *Manager {
	return &Manager{
		Engine:   eng,
		Checker:  checker,
		Resolver: resolver,
		Paths:    paths,
		sessions: xsync.NewMap[string, *session.Session](),
	}
}

// CreateSession implements spec.md §4.8's six-step sequence.
func (m *Manager) CreateSession(ctx context.Context, c criteria.Criteria, creds identity.Credentials) (*session.Session, error) {
	// Step 2: permission check (step 1, credential resolution, happens
	// inside the checker itself).
	if m.Checker.Check(ctx, c, creds) != permission.Granted {
		return nil, apperr.ErrInsufficientPermissions
	}

	// Step 3: mint an object path for this caller's confinement profile.
	profile, err := m.Resolver(creds.PID)
	if err != nil {
		return nil, apperr.ErrCreatingSession("could not resolve caller credentials")
	}
	path := m.Paths.PathFor(profile)

	// Step 4: resolve a provider triple for the criteria and build the
	// session.
	triple := m.resolveTriple(c)
	sess := session.New(path, m.Engine, triple)

	// Step 5: register transactionally; a session already present at this
	// path is a DuplicateSession.
	if _, loaded := m.sessions.LoadOrStore(path, sess); loaded {
		return nil, apperr.ErrDuplicateSession
	}

	return sess, nil
}

func (m *Manager) resolveTriple(c criteria.Criteria) selection.Triple {
	return m.Engine.DetermineProviderSelectionForCriteria(c)
}

// Lookup returns the session registered at path, if any.
func (m *Manager) Lookup(path string) (*session.Session, bool) {
	return m.sessions.Load(path)
}

// Count returns the number of currently registered sessions (tests and
// diagnostics).
func (m *Manager) Count() int {
	return m.sessions.Size()
}

// PeerGone is step 6's watcher: called by the IPC boundary when the
// caller disappears from the bus. It removes and destroys the session at
// path. Non-fatal if path is not registered.
func (m *Manager) PeerGone(path string) {
	sess, ok := m.sessions.LoadAndDelete(path)
	if !ok {
		return
	}
	sess.Close()
}

// Close tears down every registered session (engine teardown path).
func (m *Manager) Close() {
	m.sessions.Range(func(path string, sess *session.Session) bool {
		sess.Close()
		m.sessions.Delete(path)
		return true
	})
}

// --- Facade observables (spec.md §4.8) ---

// IsOnline mirrors engine.Config.EngineState != off, bidirectionally.
func (m *Manager) IsOnline() bool {
	return m.Engine.Config.EngineState.Get() != engine.StateOff
}

// SetIsOnline propagates to the engine's EngineState.
func (m *Manager) SetIsOnline(on bool) {
	if on {
		m.Engine.Config.EngineState.Set(engine.StateOn)
	} else {
		m.Engine.Config.EngineState.Set(engine.StateOff)
	}
}

// DoesSatelliteBasedPositioning mirrors the engine's SatellitePositioning.
func (m *Manager) DoesSatelliteBasedPositioning() bool {
	return bool(m.Engine.Config.SatellitePositioning.Get())
}

func (m *Manager) SetDoesSatelliteBasedPositioning(v bool) {
	m.Engine.Config.SatellitePositioning.Set(engine.Toggle(v))
}

// DoesReportCellAndWifiIds mirrors the engine's WifiCellReporting.
func (m *Manager) DoesReportCellAndWifiIds() bool {
	return bool(m.Engine.Config.WifiCellReporting.Get())
}

func (m *Manager) SetDoesReportCellAndWifiIds(v bool) {
	m.Engine.Config.WifiCellReporting.Set(engine.Toggle(v))
}

// State derives the facade's disabled/enabled/active tri-state from the
// engine's engine_state.
func (m *Manager) State() FacadeState {
	return m.Engine.Config.EngineState.Get()
}

// SubscribeIsOnline is a convenience for wiring an IPC property change
// notification.
func (m *Manager) SubscribeIsOnline(fn func(bool)) observe.Subscription {
	return m.Engine.Config.EngineState.Subscribe(func(s engine.State) { fn(s != engine.StateOff) })
}
