package ipc

import (
	"context"
	"time"

	"github.com/resinat/locationd/internal/measurement"
)

// ClientCallbackTimeout is the default reply timeout for server→client
// callback delivery (spec.md §6): a delivery that does not complete
// within this window marks the client unreachable.
const ClientCallbackTimeout = time.Second

// Credentials identifies the calling process to the bus, in wire terms
// (spec.md §6 leaves credential transport to the real IPC mechanism;
// on a real D-Bus transport these come from the SO_PEERCRED-equivalent
// connection credentials, not the message body).
type Credentials struct {
	PID int32
	UID uint32
}

// SessionClient is the server→client callback surface (spec.md §6):
// delivery of a stream update, with a bounded deadline. A non-nil error
// means the client is presumed unreachable.
type SessionClient interface {
	UpdatePosition(ctx context.Context, u UpdateDTO[PositionDTO]) error
	UpdateHeading(ctx context.Context, u UpdateDTO[float64]) error
	UpdateVelocity(ctx context.Context, u UpdateDTO[float64]) error
}

// SessionHandle is the per-session method surface exposed to a connected
// client (spec.md §6's Session object).
type SessionHandle interface {
	ObjectPath() string

	StartPositionUpdates() error
	StopPositionUpdates() error
	StartHeadingUpdates() error
	StopHeadingUpdates() error
	StartVelocityUpdates() error
	StopVelocityUpdates() error

	// Attach registers client as the recipient of this session's stream
	// callbacks; delivery failures (timeout or returned error) invoke
	// onUnreachable exactly once.
	Attach(client SessionClient, onUnreachable func())
}

// ProviderAgent is the callback surface a registered external provider
// exposes back across the bus (spec.md §6's AddProvider): the minimal
// lifecycle and capability surface the engine needs to drive it, mirrored
// from provider.Provider but expressed as bus-callable methods rather
// than a Go interface a same-process provider would implement directly.
type ProviderAgent interface {
	FeaturesBitset() uint64
	RequirementsBitset() uint64
	Enable() error
	Disable() error
	Activate() error
	Deactivate() error
}

// ServiceHandle is the well-known service object's method/property
// surface (spec.md §6).
type ServiceHandle interface {
	CreateSessionForCriteria(ctx context.Context, creds Credentials, c CriteriaDTO) (SessionHandle, error)
	AddProvider(ctx context.Context, objectPath string, agent ProviderAgent) error

	State() ServiceStateDTO
	DoesSatelliteBasedPositioning() bool
	SetDoesSatelliteBasedPositioning(bool)
	DoesReportCellAndWifiIds() bool
	SetDoesReportCellAndWifiIds(bool)
	IsOnline() bool
	SetIsOnline(bool)
	VisibleSpaceVehicles() []measurement.SpaceVehicle

	// PeerGone simulates the transport noticing that the caller who owns
	// path has disappeared from the bus (spec.md §4.8 step 6 / invariant
	// 7). A real D-Bus transport calls this from its NameOwnerChanged
	// watch; here it is exposed directly for tests and local callers.
	PeerGone(path string)
}

// Bus is the transport-agnostic entry point: acquire the well-known
// service object.
type Bus interface {
	Service() ServiceHandle
	Close() error
}
