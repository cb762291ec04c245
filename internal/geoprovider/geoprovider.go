// Package geoprovider implements a network-positioning provider
// (domain-stack addition, SPEC_FULL.md §1/§2): it resolves a coarse
// position from the caller's current IP address via a MaxMind-format GeoIP
// database, refreshed on a cron schedule.
//
// Grounded on the teacher's internal/geoip.Service: same GeoReader
// interface, same OpenFunc/MMDBOpen split for testability, same
// cron-scheduled refresh with a staleness check on startup.
package geoprovider

import (
	"fmt"
	"log"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
	"github.com/robfig/cron/v3"

	"github.com/resinat/locationd/internal/criteria"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/provider"
)

// GeoReader abstracts the GeoIP database reader for testability.
type GeoReader interface {
	Lookup(ip netip.Addr) (lat, lon float64, ok bool)
	Close() error
}

// OpenFunc opens a GeoIP database file and returns a GeoReader.
type OpenFunc func(path string) (GeoReader, error)

type mmdbReader struct {
	reader *maxminddb.Reader
}

type mmdbCityRecord struct {
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

func (m *mmdbReader) Lookup(ip netip.Addr) (float64, float64, bool) {
	if m == nil || m.reader == nil || !ip.IsValid() {
		return 0, 0, false
	}
	ip = ip.Unmap()
	var record mmdbCityRecord
	if err := m.reader.Lookup(net.IP(ip.AsSlice()), &record); err != nil {
		return 0, 0, false
	}
	if record.Location.Latitude == 0 && record.Location.Longitude == 0 {
		return 0, 0, false
	}
	return record.Location.Latitude, record.Location.Longitude, true
}

func (m *mmdbReader) Close() error {
	if m == nil || m.reader == nil {
		return nil
	}
	return m.reader.Close()
}

// MMDBOpen opens a MaxMind City-format mmdb database.
func MMDBOpen(path string) (GeoReader, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &mmdbReader{reader: reader}, nil
}

// AddressSource supplies the current caller-observed IP address to
// resolve (out of scope implementation — typically derived from the
// active network interface).
type AddressSource func() (netip.Addr, bool)

// Config configures a Provider.
type Config struct {
	CacheDir        string   // directory holding the city.mmdb file
	DBFilename      string   // default "city.mmdb"
	RefreshSchedule string   // cron expression, default "0 7 * * *"
	OpenDB          OpenFunc // default MMDBOpen
	Address         AddressSource
}

// Provider is a network-positioning provider.Provider backed by a
// cron-refreshed MaxMind database.
type Provider struct {
	provider.Base

	id      string
	mu      sync.RWMutex
	reader  GeoReader
	address AddressSource

	cacheDir    string
	dbFilename  string
	openDB      OpenFunc
	cron        *cron.Cron
	cronEntryID cron.EntryID
	refreshMu   sync.Mutex

	lastReload time.Time
}

// New builds a Provider from cfg.
func New(id string, cfg Config) *Provider {
	if cfg.DBFilename == "" {
		cfg.DBFilename = "city.mmdb"
	}
	if cfg.RefreshSchedule == "" {
		cfg.RefreshSchedule = "0 7 * * *"
	}
	if cfg.OpenDB == nil {
		cfg.OpenDB = MMDBOpen
	}

	p := &Provider{
		Base:       provider.NewBase(),
		id:         id,
		address:    cfg.Address,
		cacheDir:   cfg.CacheDir,
		dbFilename: cfg.DBFilename,
		openDB:     cfg.OpenDB,
		cron:       cron.New(),
	}

	entryID, err := p.cron.AddFunc(cfg.RefreshSchedule, func() {
		if err := p.RefreshNow(); err != nil {
			log.Printf("[geoprovider] scheduled refresh failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("[geoprovider] invalid refresh schedule %q: %v", cfg.RefreshSchedule, err)
	} else {
		p.cronEntryID = entryID
	}

	return p
}

func (p *Provider) ID() string { return p.id }

func (p *Provider) Features() criteria.FeatureSet {
	return criteria.NewFeatureSet(criteria.FeaturePosition)
}

func (p *Provider) Requirements() criteria.RequirementSet {
	return criteria.NewRequirementSet(criteria.RequirementDataNetwork)
}

func (p *Provider) Matches(c criteria.Criteria) bool { return provider.DefaultMatches(p, c) }

func (p *Provider) OnEvent(provider.Event) {}

// Activate loads the database if not yet loaded, checks staleness, and
// starts the cron scheduler, then resolves an initial position.
func (p *Provider) Activate() error {
	if err := p.Base.Activate(); err != nil {
		return err
	}

	dbPath := filepath.Join(p.cacheDir, p.dbFilename)
	if info, err := os.Stat(dbPath); err == nil {
		if err := p.reload(dbPath); err != nil {
			log.Printf("[geoprovider] failed to load db: %v", err)
		}
		if p.isStale(info.ModTime()) {
			go func() {
				if err := p.RefreshNow(); err != nil {
					log.Printf("[geoprovider] startup refresh failed: %v", err)
				}
			}()
		}
	}
	p.cron.Start()
	p.emitCurrent()
	return nil
}

func (p *Provider) Deactivate() error {
	return p.Base.Deactivate()
}

// Close stops the cron scheduler and releases the reader. Not part of
// provider.Provider; called by owners that constructed this Provider
// directly (e.g. cmd/locationd at shutdown).
func (p *Provider) Close() {
	<-p.cron.Stop().Done()
	p.mu.Lock()
	r := p.reader
	p.reader = nil
	p.mu.Unlock()
	if r != nil {
		r.Close()
	}
}

func (p *Provider) isStale(modTime time.Time) bool {
	entry := p.cron.Entry(p.cronEntryID)
	if entry.ID == 0 || entry.Schedule == nil {
		return time.Since(modTime) > 32*24*time.Hour
	}
	now := time.Now()
	next := entry.Schedule.Next(now)
	nextNext := entry.Schedule.Next(next)
	interval := nextNext.Sub(next)
	if interval <= 0 {
		interval = 32 * 24 * time.Hour
	}
	return time.Since(modTime) > 2*interval
}

// RefreshNow reloads the database from disk. Fetching a new database file
// over the network is outside this provider's scope (no concrete release
// source is specified by SPEC_FULL.md) — callers that wire a downloader
// should replace the file at CacheDir/DBFilename before calling RefreshNow.
func (p *Provider) RefreshNow() error {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	dbPath := filepath.Join(p.cacheDir, p.dbFilename)
	if err := p.reload(dbPath); err != nil {
		return fmt.Errorf("geoprovider: refresh: %w", err)
	}
	p.emitCurrent()
	return nil
}

func (p *Provider) reload(path string) error {
	newReader, err := p.openDB(path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	old := p.reader
	p.reader = newReader
	p.lastReload = time.Now()
	p.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// TimeHint implements provider.TimeHintSource (SPEC_FULL.md §4.11's
// supplement): loading a fresh database file is this provider's only
// network touchpoint, so it carries no clock-skew measurement of its own
// (skewNanos is always 0) — it only reports whether that touchpoint has
// happened at least once, as a coarse "network time is reachable" signal.
func (p *Provider) TimeHint() (valid bool, skewNanos int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.lastReload.IsZero(), 0
}

// emitCurrent resolves the caller's current address (if AddressSource is
// configured) and emits a position update if a lookup succeeds.
func (p *Provider) emitCurrent() {
	if p.State() != provider.StateActive || p.address == nil {
		return
	}
	addr, ok := p.address()
	if !ok {
		return
	}

	p.mu.RLock()
	reader := p.reader
	p.mu.RUnlock()
	if reader == nil {
		return
	}

	lat, lon, ok := reader.Lookup(addr)
	if !ok {
		return
	}
	// Network-positioning resolution is city-granularity; report a
	// conservative fixed horizontal accuracy rather than claiming none.
	acc := 25000.0
	pos, err := measurement.NewPosition(lat, lon, nil, measurement.Accuracy{Horizontal: &acc})
	if err != nil {
		return
	}
	p.EmitPosition(measurement.NewUpdate(pos, time.Now()))
}

// NextScheduledRefresh returns the next cron-scheduled refresh time.
func (p *Provider) NextScheduledRefresh() time.Time {
	if p.cronEntryID == 0 {
		return time.Time{}
	}
	return p.cron.Entry(p.cronEntryID).Next
}

var _ provider.Provider = (*Provider)(nil)
var _ provider.TimeHintSource = (*Provider)(nil)
