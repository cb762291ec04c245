package criteria

import "testing"

func TestEmpty_MatchesAnyRequirement(t *testing.T) {
	c := Empty()
	if !c.Allows(RequirementSatellites) {
		t.Fatal("empty criteria should allow any requirement")
	}
}

func TestAllows_RestrictsToDeclaredSet(t *testing.T) {
	c := Criteria{Requirements: NewRequirementSet(RequirementCellNetwork)}
	if c.Allows(RequirementSatellites) {
		t.Fatal("should not allow undeclared requirement")
	}
	if !c.Allows(RequirementCellNetwork) {
		t.Fatal("should allow declared requirement")
	}
}

func TestFeatureSet_Has(t *testing.T) {
	fs := NewFeatureSet(FeaturePosition, FeatureHeading)
	if !fs.Has(FeaturePosition) || !fs.Has(FeatureHeading) {
		t.Fatal("expected both features present")
	}
	if fs.Has(FeatureVelocity) {
		t.Fatal("velocity should not be present")
	}
}
