// Package fusion implements the fusion provider (spec.md §4.4): combines
// N child providers into one via an update-selection policy.
package fusion

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/observe"
	"github.com/resinat/locationd/internal/provider"
	"github.com/resinat/locationd/internal/updatepolicy"
)

// Provider merges concurrent position streams from a fixed set of
// children using an updatepolicy.Policy; heading and velocity are
// forwarded last-writer-wins.
type Provider struct {
	provider.Base
	id       string
	children []provider.Provider
	policy   updatepolicy.Policy

	mu      sync.Mutex
	lastTag updatepolicy.Tagged
	hasLast bool

	// self is a non-owning back-reference cell: child-stream subscription
	// closures capture self, not p, so a torn-down fusion provider's
	// pending callbacks become no-ops (spec.md §4.4's self-reference
	// hazard; DESIGN.md's cyclic-weak-reference note).
	self *atomic.Pointer[Provider]
	subs []observe.Subscription
}

// New constructs a fusion Provider over children using policy to arbitrate
// competing position updates.
func New(id string, children []provider.Provider, policy updatepolicy.Policy) *Provider {
	p := &Provider{
		Base:     provider.NewBase(),
		id:       id,
		children: children,
		policy:   policy,
		self:     &atomic.Pointer[Provider]{},
	}
	p.self.Store(p)
	p.wireChildren()
	return p
}

// Close tears down the fusion provider: subsequent child emissions are
// no-ops because the weak self-reference is cleared first.
func (p *Provider) Close() {
	p.self.Store(nil)
	for _, s := range p.subs {
		s.Close()
	}
	p.subs = nil
}

func (p *Provider) wireChildren() {
	weakSelf := p.self
	for _, child := range p.children {
		s1 := child.PositionUpdates().Subscribe(func(u measurement.Update[measurement.Position]) {
			if fp := weakSelf.Load(); fp != nil {
				fp.onChildPosition(child.ID(), u)
			}
		})
		s2 := child.HeadingUpdates().Subscribe(func(u measurement.Update[measurement.Heading]) {
			if fp := weakSelf.Load(); fp != nil {
				fp.EmitHeading(u)
			}
		})
		s3 := child.VelocityUpdates().Subscribe(func(u measurement.Update[measurement.Velocity]) {
			if fp := weakSelf.Load(); fp != nil {
				fp.EmitVelocity(u)
			}
		})
		p.subs = append(p.subs, s1, s2, s3)
	}
}

func (p *Provider) onChildPosition(sourceID string, u measurement.Update[measurement.Position]) {
	next := updatepolicy.Tagged{Update: u, Source: sourceID}

	p.mu.Lock()
	if !p.hasLast {
		p.lastTag = next
		p.hasLast = true
		p.mu.Unlock()
		p.EmitPosition(u)
		return
	}
	prev := p.lastTag
	best := p.selectSafely(prev, next)
	changed := best != prev
	if changed {
		p.lastTag = best
	}
	p.mu.Unlock()

	if changed {
		p.EmitPosition(best.Update)
	}
}

// selectSafely calls the policy, converting a panic into a dropped update
// (prev preserved) plus a log line — the policy boundary is absorbed the
// way the engine absorbs provider-backend faults (spec.md §7).
func (p *Provider) selectSafely(prev, next updatepolicy.Tagged) (result updatepolicy.Tagged) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("fusion: update-selection policy panicked, dropping update: %v", r)
			result = prev
		}
	}()
	return p.policy.Select(prev, next)
}

func (p *Provider) ID() string { return p.id }

func (p *Provider) Features() criteria.FeatureSet {
	fs := criteria.FeatureSet{}
	for _, c := range p.children {
		for f := range c.Features() {
			fs[f] = struct{}{}
		}
	}
	return fs
}

func (p *Provider) Requirements() criteria.RequirementSet {
	rs := criteria.RequirementSet{}
	for _, c := range p.children {
		for r := range c.Requirements() {
			rs[r] = struct{}{}
		}
	}
	return rs
}

func (p *Provider) Matches(c criteria.Criteria) bool {
	return provider.DefaultMatches(p, c)
}

// OnEvent forwards strictly: every event reaches every child.
func (p *Provider) OnEvent(e provider.Event) {
	for _, c := range p.children {
		c.OnEvent(e)
	}
}

// Enable/Disable/Activate/Deactivate forward to every child in addition
// to updating the fusion provider's own FSM state, matching spec.md
// §4.4's strict lifecycle forwarding.
func (p *Provider) Enable() error {
	if err := p.Base.Enable(); err != nil {
		return err
	}
	for _, c := range p.children {
		_ = c.Enable()
	}
	return nil
}

func (p *Provider) Disable() error {
	if err := p.Base.Disable(); err != nil {
		return err
	}
	for _, c := range p.children {
		_ = c.Disable()
	}
	return nil
}

func (p *Provider) Activate() error {
	if err := p.Base.Activate(); err != nil {
		return err
	}
	for _, c := range p.children {
		_ = c.Activate()
	}
	return nil
}

func (p *Provider) Deactivate() error {
	if err := p.Base.Deactivate(); err != nil {
		return err
	}
	for _, c := range p.children {
		_ = c.Deactivate()
	}
	return nil
}

var _ provider.Provider = (*Provider)(nil)
