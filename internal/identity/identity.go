// Package identity resolves caller credentials to a confinement profile
// and mints stable object paths for session registration (spec.md §4.10).
package identity

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"
)

// Credentials identifies the calling process.
type Credentials struct {
	PID int32
	UID uint32
}

// ProfileResolver maps a PID to its confinement-profile string (e.g. an
// apparmor profile). This is an injected external collaborator — the
// profile resolver itself is out of scope (spec.md §1).
type ProfileResolver func(pid int32) (profile string, err error)

// PathAssigner mints a stable object path per confinement profile. Per
// SPEC_FULL.md §4.10/§9's resolved Open Question, the assignment is
// stable-per-process: the same profile always resolves to the same path
// for the lifetime of the daemon. Unconfined callers (empty profile) get
// a unique path suffixed with a uuid, since there is no stable identity to
// key on.
//
// Grounded on internal/node's xxh3-derived fixed-size Hash key.
type PathAssigner struct {
	basePath string
	assigned *xsync.Map[string, string]
}

// NewPathAssigner builds a PathAssigner that mints paths under basePath
// (e.g. "/org/location/Service/Session").
func NewPathAssigner(basePath string) *PathAssigner {
	return &PathAssigner{basePath: basePath, assigned: xsync.NewMap[string, string]()}
}

// PathFor returns the stable path for profile, minting one on first use.
// An empty profile (unconfined caller) always mints a fresh unique path.
func (a *PathAssigner) PathFor(profile string) string {
	if profile == "" {
		return fmt.Sprintf("%s/unconfined_%s", a.basePath, uuid.NewString())
	}
	if existing, ok := a.assigned.Load(profile); ok {
		return existing
	}
	path := fmt.Sprintf("%s/%016x", a.basePath, hashProfile(profile))
	actual, _ := a.assigned.LoadOrStore(profile, path)
	return actual
}

func hashProfile(profile string) uint64 {
	return xxh3.HashString(profile)
}
