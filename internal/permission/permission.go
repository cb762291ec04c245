// Package permission implements the permission manager (spec.md §4.9): a
// trust-prompt facade gating session creation on the caller's confinement
// profile. It caches nothing — every CreateSession call re-checks.
package permission

import (
	"context"
	"time"

	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/identity"
)

// Decision is the outcome of a permission check.
type Decision int

const (
	Rejected Decision = iota
	Granted
)

// PromptParams is handed to the external trust agent.
type PromptParams struct {
	UID         uint32
	PID         int32
	Profile     string
	FeatureID   int
	Description string
}

// Agent is the external trust-prompt collaborator (out of scope per
// spec.md §1): it prompts the user and returns granted/denied, honoring
// ctx's deadline.
type Agent interface {
	Prompt(ctx context.Context, params PromptParams) (granted bool, err error)
}

// Checker is the permission-manager contract.
type Checker interface {
	Check(ctx context.Context, c criteria.Criteria, creds identity.Credentials) Decision
}

// TrustAgentChecker is the default Checker: resolves credentials to a
// profile, builds prompt parameters, and invokes the external Agent under
// Timeout. Any resolution failure, agent error, or timeout collapses to
// Rejected (spec.md §4.9's AgentUnavailable-to-Rejected collapse;
// apperr.ErrAgentUnavailable never escapes this package).
type TrustAgentChecker struct {
	Resolve identity.ProfileResolver
	Agent   Agent
	Timeout time.Duration
}

// NewTrustAgentChecker builds a TrustAgentChecker with a 1-second default
// timeout when timeout <= 0, grounded on the teacher's external-call
// timeout defaults (internal/netutil.DirectDownloader.Timeout).
func NewTrustAgentChecker(resolve identity.ProfileResolver, agent Agent, timeout time.Duration) *TrustAgentChecker {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &TrustAgentChecker{Resolve: resolve, Agent: agent, Timeout: timeout}
}

func (t *TrustAgentChecker) Check(ctx context.Context, c criteria.Criteria, creds identity.Credentials) Decision {
	profile, err := t.Resolve(creds.PID)
	if err != nil {
		return Rejected
	}

	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	params := PromptParams{
		UID:         creds.UID,
		PID:         creds.PID,
		Profile:     profile,
		FeatureID:   0,
		Description: describeCriteria(c),
	}

	granted, err := t.Agent.Prompt(callCtx, params)
	if err != nil || !granted {
		return Rejected
	}
	return Granted
}

func describeCriteria(c criteria.Criteria) string {
	if len(c.Features) == 0 {
		return "requests location access"
	}
	return "requests location access for a subset of position/heading/velocity"
}

// TestingChecker grants unconditionally. Selected at bootstrap when
// LOCATIOND_IS_RUNNING_UNDER_TESTING=1 is set (spec.md §6) — the only
// bypass.
type TestingChecker struct{}

func (TestingChecker) Check(context.Context, criteria.Criteria, identity.Credentials) Decision {
	return Granted
}
