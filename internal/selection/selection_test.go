package selection

import (
	"testing"

	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/provider"
)

type fakeProvider struct {
	provider.Base
	id       string
	features criteria.FeatureSet
}

func newFake(id string, features ...criteria.Feature) *fakeProvider {
	return &fakeProvider{Base: provider.NewBase(), id: id, features: criteria.NewFeatureSet(features...)}
}

func (f *fakeProvider) ID() string                           { return f.id }
func (f *fakeProvider) Features() criteria.FeatureSet        { return f.features }
func (f *fakeProvider) Requirements() criteria.RequirementSet { return criteria.RequirementSet{} }
func (f *fakeProvider) Matches(c criteria.Criteria) bool      { return provider.DefaultMatches(f, c) }
func (f *fakeProvider) OnEvent(provider.Event)                {}

func TestDefault_PrefersWarmProvider(t *testing.T) {
	cold := newFake("cold", criteria.FeaturePosition)
	warm := newFake("warm", criteria.FeaturePosition)
	warm.Enable()
	warm.Activate()

	pol := NewDefault(nil)
	triple := pol.Select(criteria.Empty(), []provider.Provider{cold, warm})
	if triple.Position.(*fakeProvider).id != "warm" {
		t.Fatalf("expected warm provider selected, got %s", triple.Position.(*fakeProvider).id)
	}
}

func TestDefault_NoMatchReturnsNullProvider(t *testing.T) {
	pol := NewDefault(nil)
	triple := pol.Select(criteria.Empty(), nil)
	if triple.Position.Matches(criteria.Empty()) {
		t.Fatal("expected null provider for unmatched stream")
	}
}

func TestDefault_FirstEncounteredAmongTies(t *testing.T) {
	first := newFake("first", criteria.FeatureHeading)
	second := newFake("second", criteria.FeatureHeading)

	pol := NewDefault(nil)
	triple := pol.Select(criteria.Empty(), []provider.Provider{first, second})
	if triple.Heading.(*fakeProvider).id != "first" {
		t.Fatalf("expected first provider among ties, got %s", triple.Heading.(*fakeProvider).id)
	}
}
