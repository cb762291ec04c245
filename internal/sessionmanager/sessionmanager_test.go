package sessionmanager

import (
	"context"
	"errors"
	"testing"

	"github.com/resinat/locationd/internal/apperr"
	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/engine"
	"github.com/resinat/locationd/internal/identity"
	"github.com/resinat/locationd/internal/permission"
	"github.com/resinat/locationd/internal/provider"
)

// fakeProvider is a minimal position-only Provider, mirroring the fake used
// in internal/provider's own tests.
type fakeProvider struct {
	provider.Base
	id string
}

func newFakeProvider(id string) *fakeProvider {
	return &fakeProvider{Base: provider.NewBase(), id: id}
}

func (f *fakeProvider) ID() string { return f.id }
func (f *fakeProvider) Features() criteria.FeatureSet {
	return criteria.NewFeatureSet(criteria.FeaturePosition)
}
func (f *fakeProvider) Requirements() criteria.RequirementSet { return criteria.RequirementSet{} }
func (f *fakeProvider) Matches(c criteria.Criteria) bool      { return provider.DefaultMatches(f, c) }
func (f *fakeProvider) OnEvent(provider.Event)                {}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng := engine.New(nil, nil)
	eng.AddProvider(newFakeProvider("gps"))
	return eng
}

func alwaysResolve(profile string) identity.ProfileResolver {
	return func(int32) (string, error) { return profile, nil }
}

func TestCreateSession_PermissionDeniedRegistersNoSession(t *testing.T) {
	eng := newTestEngine(t)
	mgr := New(eng, permission.TestingChecker{}, alwaysResolve("caller"), identity.NewPathAssigner("/org/location/Service/Session"))

	denier := denyingChecker{}
	mgr.Checker = denier

	_, err := mgr.CreateSession(context.Background(), criteria.Empty(), identity.Credentials{PID: 1})
	if !errors.Is(err, apperr.ErrInsufficientPermissions) {
		t.Fatalf("expected ErrInsufficientPermissions, got %v", err)
	}
	if mgr.Count() != 0 {
		t.Fatalf("expected no session registered on denial, got %d", mgr.Count())
	}
}

type denyingChecker struct{}

func (denyingChecker) Check(context.Context, criteria.Criteria, identity.Credentials) permission.Decision {
	return permission.Rejected
}

func TestCreateSession_GrantedRegistersStablePathPerCredentials(t *testing.T) {
	eng := newTestEngine(t)
	mgr := New(eng, permission.TestingChecker{}, alwaysResolve("caller-profile"), identity.NewPathAssigner("/org/location/Service/Session"))

	s1, err := mgr.CreateSession(context.Background(), criteria.Empty(), identity.Credentials{PID: 1})
	if err != nil {
		t.Fatalf("first CreateSession: %v", err)
	}
	if mgr.Count() != 1 {
		t.Fatalf("expected 1 registered session, got %d", mgr.Count())
	}

	// A second CreateSession for the same confinement profile resolves to
	// the same object path (invariant 6), and since that path is already
	// registered, it fails as a duplicate.
	_, err = mgr.CreateSession(context.Background(), criteria.Empty(), identity.Credentials{PID: 1})
	if !errors.Is(err, apperr.ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}

	got, ok := mgr.Lookup(s1.ObjectPath)
	if !ok || got != s1 {
		t.Fatal("expected the original session registered at its path")
	}
}

func TestPeerGone_ReapsSessionAndRestoresActivationBaseline(t *testing.T) {
	eng := newTestEngine(t)
	mgr := New(eng, permission.TestingChecker{}, alwaysResolve("caller-profile"), identity.NewPathAssigner("/org/location/Service/Session"))
	if err := eng.TrackedProvider("gps").Enable(); err != nil {
		t.Fatalf("enable: %v", err)
	}

	sess, err := mgr.CreateSession(context.Background(), criteria.Empty(), identity.Credentials{PID: 1})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := sess.StartPositionUpdates(); err != nil {
		t.Fatalf("StartPositionUpdates: %v", err)
	}
	if tp := eng.TrackedProvider("gps"); tp == nil || tp.Demand() != 1 {
		t.Fatalf("expected demand 1 after start, got provider=%v", tp)
	}

	mgr.PeerGone(sess.ObjectPath)

	if mgr.Count() != 0 {
		t.Fatalf("expected session reaped, got count %d", mgr.Count())
	}
	if tp := eng.TrackedProvider("gps"); tp == nil || tp.Demand() != 0 {
		t.Fatalf("expected demand to return to baseline 0 after reaping, got provider=%v", tp)
	}

	// Reaping an unknown path is a non-fatal no-op.
	mgr.PeerGone("/org/location/Service/Session/does-not-exist")
}

func TestFacadeObservables_MirrorEngineConfig(t *testing.T) {
	eng := newTestEngine(t)
	mgr := New(eng, permission.TestingChecker{}, alwaysResolve("caller"), identity.NewPathAssigner("/org/location/Service/Session"))

	if mgr.IsOnline() {
		t.Fatal("expected offline by default")
	}
	mgr.SetIsOnline(true)
	if !mgr.IsOnline() || mgr.State() != engine.StateOn {
		t.Fatalf("expected online/StateOn after SetIsOnline(true), got online=%v state=%v", mgr.IsOnline(), mgr.State())
	}

	if !mgr.DoesSatelliteBasedPositioning() {
		t.Fatal("expected satellite positioning on by default")
	}
	mgr.SetDoesSatelliteBasedPositioning(false)
	if mgr.DoesSatelliteBasedPositioning() {
		t.Fatal("expected satellite positioning off after Set(false)")
	}

	if mgr.DoesReportCellAndWifiIds() {
		t.Fatal("expected wifi/cell reporting off by default")
	}
	mgr.SetDoesReportCellAndWifiIds(true)
	if !mgr.DoesReportCellAndWifiIds() {
		t.Fatal("expected wifi/cell reporting on after Set(true)")
	}
}
