package localbus

import (
	"log"

	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/ipc"
	"github.com/resinat/locationd/internal/provider"
)

// remoteProvider adapts a bus-registered ipc.ProviderAgent (spec.md §6's
// AddProvider(object_path)) into a provider.Provider the engine can add
// like any in-process backend. Lifecycle calls are forwarded to the
// agent; failures are logged and never propagated, matching spec.md §7's
// ProviderTransient policy — the FSM still advances on the local side
// even if the remote agent's own call fails, since a crashed/unreachable
// agent simply stops emitting rather than aborting the engine.
type remoteProvider struct {
	provider.Base
	objectPath string
	agent      ipc.ProviderAgent
}

func newRemoteProvider(objectPath string, agent ipc.ProviderAgent) *remoteProvider {
	return &remoteProvider{Base: provider.NewBase(), objectPath: objectPath, agent: agent}
}

func (r *remoteProvider) ID() string { return r.objectPath }

func (r *remoteProvider) Features() criteria.FeatureSet {
	return bitsetToFeatures(r.agent.FeaturesBitset())
}

func (r *remoteProvider) Requirements() criteria.RequirementSet {
	return bitsetToRequirements(r.agent.RequirementsBitset())
}

func (r *remoteProvider) Matches(c criteria.Criteria) bool { return provider.DefaultMatches(r, c) }

func (r *remoteProvider) OnEvent(provider.Event) {}

func (r *remoteProvider) Enable() error {
	if err := r.Base.Enable(); err != nil {
		return err
	}
	if err := r.agent.Enable(); err != nil {
		log.Printf("[localbus] provider %s: Enable: %v", r.objectPath, err)
	}
	return nil
}

func (r *remoteProvider) Disable() error {
	if err := r.Base.Disable(); err != nil {
		return err
	}
	if err := r.agent.Disable(); err != nil {
		log.Printf("[localbus] provider %s: Disable: %v", r.objectPath, err)
	}
	return nil
}

func (r *remoteProvider) Activate() error {
	if err := r.Base.Activate(); err != nil {
		return err
	}
	if err := r.agent.Activate(); err != nil {
		log.Printf("[localbus] provider %s: Activate: %v", r.objectPath, err)
	}
	return nil
}

func (r *remoteProvider) Deactivate() error {
	if err := r.Base.Deactivate(); err != nil {
		return err
	}
	if err := r.agent.Deactivate(); err != nil {
		log.Printf("[localbus] provider %s: Deactivate: %v", r.objectPath, err)
	}
	return nil
}

var _ provider.Provider = (*remoteProvider)(nil)

func bitsetToFeatures(bitset uint64) criteria.FeatureSet {
	var fs []criteria.Feature
	for _, f := range []criteria.Feature{criteria.FeaturePosition, criteria.FeatureHeading, criteria.FeatureVelocity} {
		if bitset&(1<<uint(f)) != 0 {
			fs = append(fs, f)
		}
	}
	return criteria.NewFeatureSet(fs...)
}

func bitsetToRequirements(bitset uint64) criteria.RequirementSet {
	var rs []criteria.Requirement
	for _, r := range []criteria.Requirement{
		criteria.RequirementSatellites, criteria.RequirementCellNetwork,
		criteria.RequirementDataNetwork, criteria.RequirementMonetarySpending,
	} {
		if bitset&(1<<uint(r)) != 0 {
			rs = append(rs, r)
		}
	}
	return criteria.NewRequirementSet(rs...)
}
