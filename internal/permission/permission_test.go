package permission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/identity"
)

type fakeAgent struct {
	granted bool
	err     error
	delay   time.Duration
}

func (f fakeAgent) Prompt(ctx context.Context, _ PromptParams) (bool, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return f.granted, f.err
}

func resolverFor(profile string, err error) identity.ProfileResolver {
	return func(int32) (string, error) { return profile, err }
}

func TestTrustAgentChecker_GrantedPassesThrough(t *testing.T) {
	c := NewTrustAgentChecker(resolverFor("profile", nil), fakeAgent{granted: true}, 0)
	got := c.Check(context.Background(), criteria.Empty(), identity.Credentials{PID: 1, UID: 1})
	if got != Granted {
		t.Fatalf("expected Granted, got %v", got)
	}
}

func TestTrustAgentChecker_DeniedCollapsesToRejected(t *testing.T) {
	c := NewTrustAgentChecker(resolverFor("profile", nil), fakeAgent{granted: false}, 0)
	got := c.Check(context.Background(), criteria.Empty(), identity.Credentials{})
	if got != Rejected {
		t.Fatalf("expected Rejected, got %v", got)
	}
}

func TestTrustAgentChecker_AgentErrorCollapsesToRejected(t *testing.T) {
	c := NewTrustAgentChecker(resolverFor("profile", nil), fakeAgent{err: errors.New("boom")}, 0)
	got := c.Check(context.Background(), criteria.Empty(), identity.Credentials{})
	if got != Rejected {
		t.Fatalf("expected Rejected, got %v", got)
	}
}

func TestTrustAgentChecker_ResolveFailureCollapsesToRejected(t *testing.T) {
	c := NewTrustAgentChecker(resolverFor("", errors.New("no such process")), fakeAgent{granted: true}, 0)
	got := c.Check(context.Background(), criteria.Empty(), identity.Credentials{})
	if got != Rejected {
		t.Fatalf("expected Rejected, got %v", got)
	}
}

func TestTrustAgentChecker_TimeoutCollapsesToRejected(t *testing.T) {
	c := NewTrustAgentChecker(resolverFor("profile", nil), fakeAgent{granted: true, delay: 50 * time.Millisecond}, 5*time.Millisecond)
	got := c.Check(context.Background(), criteria.Empty(), identity.Credentials{})
	if got != Rejected {
		t.Fatalf("expected Rejected on timeout, got %v", got)
	}
}

func TestTestingChecker_AlwaysGrants(t *testing.T) {
	var c TestingChecker
	if got := c.Check(context.Background(), criteria.Empty(), identity.Credentials{}); got != Granted {
		t.Fatalf("expected Granted, got %v", got)
	}
}
