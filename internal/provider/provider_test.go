package provider

import (
	"errors"
	"testing"

	"github.com/resinat/locationd/internal/apperr"
	"github.com/resinat/locationd/internal/criteria"
)

// fakeProvider is a minimal concrete Provider used across this package's
// tests; it records how many times the underlying backend actually
// started/stopped so TrackedProvider's ref-counting can be asserted.
type fakeProvider struct {
	Base
	id          string
	starts      int
	stops       int
	activateErr error
}

func newFakeProvider(id string) *fakeProvider {
	return &fakeProvider{Base: NewBase(), id: id}
}

func (f *fakeProvider) ID() string { return f.id }
func (f *fakeProvider) Features() criteria.FeatureSet {
	return criteria.NewFeatureSet(criteria.FeaturePosition)
}
func (f *fakeProvider) Requirements() criteria.RequirementSet { return criteria.RequirementSet{} }
func (f *fakeProvider) Matches(c criteria.Criteria) bool      { return DefaultMatches(f, c) }
func (f *fakeProvider) OnEvent(Event)                         {}

func (f *fakeProvider) Activate() error {
	if f.activateErr != nil {
		return f.activateErr
	}
	if err := f.Base.Activate(); err != nil {
		return err
	}
	f.starts++
	return nil
}

func (f *fakeProvider) Deactivate() error {
	if err := f.Base.Deactivate(); err != nil {
		return err
	}
	f.stops++
	return nil
}

func TestLifecycle_IllegalTransitionFails(t *testing.T) {
	p := newFakeProvider("p1")
	// disabled -> activate is illegal.
	if err := p.Activate(); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
	if err := p.Enable(); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := p.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	// active -> enable is illegal.
	if err := p.Enable(); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestTrackedProvider_RefCountsOneStartOneStop(t *testing.T) {
	inner := newFakeProvider("p1")
	inner.Enable()
	tp := NewTrackedProvider(inner)

	const n = 5
	for i := 0; i < n; i++ {
		if err := tp.Activate(); err != nil {
			t.Fatalf("activate %d: %v", i, err)
		}
	}
	if inner.starts != 1 {
		t.Fatalf("expected exactly 1 underlying start, got %d", inner.starts)
	}
	for i := 0; i < n; i++ {
		if err := tp.Deactivate(); err != nil {
			t.Fatalf("deactivate %d: %v", i, err)
		}
	}
	if inner.stops != 1 {
		t.Fatalf("expected exactly 1 underlying stop, got %d", inner.stops)
	}
	if tp.Demand() != 0 {
		t.Fatalf("expected demand 0, got %d", tp.Demand())
	}
}

func TestTrackedProvider_DisabledIsNoOp(t *testing.T) {
	inner := newFakeProvider("p1") // never enabled
	tp := NewTrackedProvider(inner)
	if err := tp.Activate(); err != nil {
		t.Fatalf("expected no-op success, got %v", err)
	}
	if inner.starts != 0 {
		t.Fatalf("expected no underlying start while disabled, got %d", inner.starts)
	}
	if tp.Demand() != 0 {
		t.Fatalf("expected demand to stay 0 while disabled, got %d", tp.Demand())
	}
}

func TestNullProvider_MatchesNothing(t *testing.T) {
	n := NewNullProvider()
	if n.Matches(criteria.Empty()) {
		t.Fatal("null provider must never match")
	}
	if len(n.Features()) != 0 || len(n.Requirements()) != 0 {
		t.Fatal("null provider must advertise no features or requirements")
	}
}

func TestDefaultMatches_FeatureIntersection(t *testing.T) {
	p := newFakeProvider("p1") // Features: position, Requirements: none
	headingOnly := criteria.Criteria{
		Features:     criteria.NewFeatureSet(criteria.FeatureHeading),
		Requirements: criteria.NewRequirementSet(),
	}
	if p.Matches(headingOnly) {
		t.Fatal("provider offering only position should not match a heading-only request")
	}
	allowsPosition := criteria.Criteria{Features: criteria.NewFeatureSet(criteria.FeaturePosition)}
	if !p.Matches(allowsPosition) {
		t.Fatal("provider offering position should match a position request")
	}
}
