// Package harvester implements the wifi/cell-ID harvester (spec.md §4.11):
// on every accepted last-known-location update, while wifi/cell reporting
// is enabled, it snapshots nearby wifi/cell visibility and reports the
// triple upstream.
//
// Grounded on internal/probe/manager.go's bounded, per-attempt-isolated
// collection loop, but event-driven here (triggered by a Property
// subscription) instead of a scan timer — with an additional
// cron-scheduled health tick mirroring the teacher's GeoIPUpdateSchedule
// convention in internal/config/env.go.
package harvester

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/resinat/locationd/internal/engine"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/observe"
)

// WifiAccessPoint is one observed wifi access point.
type WifiAccessPoint struct {
	BSSID             string
	SignalStrengthDBM int
}

// CellTower is one observed cell tower.
type CellTower struct {
	MCC, MNC          int
	CellID            uint64
	SignalStrengthDBM int
}

// Connectivity is the injected collaborator that snapshots current
// wifi/cell visibility (out of scope implementation, cf. spec.md §1's
// Connectivity manager).
type Connectivity interface {
	VisibleWifiAccessPoints(ctx context.Context) ([]WifiAccessPoint, error)
	VisibleCellTowers(ctx context.Context) ([]CellTower, error)
}

// Reporter is the injected upstream sink for harvested snapshots.
type Reporter interface {
	Report(ctx context.Context, pos measurement.Update[measurement.Position], wifis []WifiAccessPoint, cells []CellTower) error
}

// Config configures a Harvester.
type Config struct {
	Engine       *engine.Engine
	Connectivity Connectivity
	Reporter     Reporter

	// HealthCheckSchedule is a cron expression for the periodic health
	// tick; default "*/5 * * * *" (every 5 minutes) when empty.
	HealthCheckSchedule string

	// ReportTimeout bounds each harvest attempt; default 5s when <= 0.
	ReportTimeout time.Duration
}

// Harvester snapshots and reports wifi/cell visibility whenever the
// engine accepts a new last-known-location update, gated on
// WifiCellReporting.
type Harvester struct {
	eng          *engine.Engine
	connectivity Connectivity
	reporter     Reporter
	timeout      time.Duration

	cron        *cron.Cron
	cronEntryID cron.EntryID

	posSub observe.Subscription

	mu       sync.Mutex // guards stopped and lastTick
	stopped  bool
	lastTick time.Time
}

// New builds a Harvester. Start must be called to begin subscribing.
func New(cfg Config) *Harvester {
	schedule := cfg.HealthCheckSchedule
	if schedule == "" {
		schedule = "*/5 * * * *"
	}
	timeout := cfg.ReportTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	h := &Harvester{
		eng:          cfg.Engine,
		connectivity: cfg.Connectivity,
		reporter:     cfg.Reporter,
		timeout:      timeout,
		cron:         cron.New(),
	}

	entryID, err := h.cron.AddFunc(schedule, h.healthTick)
	if err != nil {
		log.Printf("[harvester] invalid health-check schedule %q: %v", schedule, err)
	} else {
		h.cronEntryID = entryID
	}

	return h
}

// Start subscribes to the engine's last-known-location Property and
// starts the health-check cron scheduler. Safe to call once.
func (h *Harvester) Start() {
	h.posSub = h.eng.LastKnownLocationProperty().Subscribe(func(u *measurement.Update[measurement.Position]) {
		if u == nil {
			return
		}
		if !bool(h.eng.Config.WifiCellReporting.Get()) {
			return
		}
		h.harvestOnce(*u)
	})
	h.cron.Start()
}

// Stop unsubscribes and stops the cron scheduler, waiting for any
// in-flight jobs to finish.
func (h *Harvester) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	if h.posSub != nil {
		h.posSub.Close()
		h.posSub = nil
	}
	<-h.cron.Stop().Done()
}

// harvestOnce performs a single snapshot-and-report cycle, bounding it
// with Timeout and containing any failure to a log line — a harvest
// failure never propagates to the engine or to session clients.
func (h *Harvester) harvestOnce(pos measurement.Update[measurement.Position]) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	if h.connectivity == nil || h.reporter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	wifis, err := h.connectivity.VisibleWifiAccessPoints(ctx)
	if err != nil {
		log.Printf("[harvester] wifi snapshot failed: %v", err)
	}
	cells, err := h.connectivity.VisibleCellTowers(ctx)
	if err != nil {
		log.Printf("[harvester] cell snapshot failed: %v", err)
	}

	if err := h.reporter.Report(ctx, pos, wifis, cells); err != nil {
		log.Printf("[harvester] report failed: %v", err)
	}
}

// healthTick is the scheduled supplemental tick: re-reports the current
// last-known location (if any) regardless of recency, giving upstream a
// periodic liveness signal even when the position hasn't changed.
func (h *Harvester) healthTick() {
	h.mu.Lock()
	h.lastTick = time.Now()
	h.mu.Unlock()

	if !bool(h.eng.Config.WifiCellReporting.Get()) {
		return
	}
	lk := h.eng.LastKnownLocation()
	if lk == nil {
		return
	}
	h.harvestOnce(*lk)
}

// LastHealthTick returns the time of the most recent health tick, or the
// zero value if none has fired yet.
func (h *Harvester) LastHealthTick() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastTick
}

// NextScheduledHealthTick returns the next cron-scheduled health-tick
// time, or the zero value if the schedule failed to parse.
func (h *Harvester) NextScheduledHealthTick() time.Time {
	if h.cronEntryID == 0 {
		return time.Time{}
	}
	return h.cron.Entry(h.cronEntryID).Next
}
