// Command locationd is the location-service daemon (spec.md §1): a bus
// service that arbitrates among position/heading/velocity providers on
// behalf of confined session clients.
//
// Grounded on cmd/resin/main.go's phased-construction bootstrap: load
// config, build the persistence layer, construct components in dependency
// order with a log marker per phase, start background workers, then
// block on SIGINT/SIGTERM before an ordered shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/resinat/locationd/internal/buildinfo"
	"github.com/resinat/locationd/internal/config"
	"github.com/resinat/locationd/internal/engine"
	"github.com/resinat/locationd/internal/geoprovider"
	"github.com/resinat/locationd/internal/harvester"
	"github.com/resinat/locationd/internal/identity"
	"github.com/resinat/locationd/internal/ipc/localbus"
	"github.com/resinat/locationd/internal/measurement"
	"github.com/resinat/locationd/internal/permission"
	"github.com/resinat/locationd/internal/persist"
	"github.com/resinat/locationd/internal/sessionmanager"
	"github.com/resinat/locationd/internal/updatepolicy"
)

func main() {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}
	if overridePath := os.Getenv("LOCATIOND_CONFIG_FILE"); overridePath != "" {
		if err := config.LoadFileOverrides(overridePath, envCfg); err != nil {
			fatalf("config file: %v", err)
		}
	}
	log.Printf("locationd %s (commit %s, built %s) starting", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	// Phase 0: persistence bootstrap.
	db, err := persist.OpenDB(dbPath(envCfg.StateDir))
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := persist.Migrate(db); err != nil {
		fatalf("migrate database: %v", err)
	}
	store := persist.NewStore(db)
	log.Println("Persistence bootstrap complete")

	// Phase 1: engine with the default selection policy and the
	// operator-configured update-selection cutoff.
	eng := engine.New(nil, updatepolicy.NewTimePolicy(envCfg.UpdateSelectionCutoff))
	if last, ok, err := store.Load(); err != nil {
		log.Printf("loading persisted last known location: %v", err)
	} else if ok {
		eng.SeedLastKnownLocation(last)
		log.Printf("restored last known location from %s (observed %s)", dbPath(envCfg.StateDir), last.When)
	}
	eng.OnLastKnownPersist = func(u measurement.Update[measurement.Position]) {
		if err := store.Save(u, "engine"); err != nil {
			log.Printf("persisting last known location: %v", err)
		}
	}
	log.Println("Engine constructed")

	// Phase 2: register providers.
	geo := geoprovider.New("/org/location/Provider/GeoIP", geoprovider.Config{
		CacheDir:        envCfg.CacheDir,
		DBFilename:      envCfg.GeoIPDBFilename,
		RefreshSchedule: envCfg.GeoIPUpdateSchedule,
		Address:         noAddressSource,
	})
	eng.AddProvider(geo)
	log.Println("GeoIP network-positioning provider registered")

	// Phase 3: permission manager.
	resolver := func(pid int32) (string, error) { return fmt.Sprintf("unconfined-%d", pid), nil }
	checker := buildChecker(envCfg, resolver)
	paths := identity.NewPathAssigner("/org/location/Service/Session")
	log.Println("Permission manager constructed")

	// Phase 4: session manager / service facade.
	mgr := sessionmanager.New(eng, checker, resolver, paths)
	log.Println("Session manager constructed")

	// Phase 5: harvester.
	hv := harvester.New(harvester.Config{
		Engine:              eng,
		Connectivity:        noopConnectivity{},
		Reporter:            noopReporter{},
		HealthCheckSchedule: envCfg.HarvesterHealthSchedule,
		ReportTimeout:       envCfg.HarvesterReportTimeout,
	})
	hv.Start()
	log.Println("Harvester started")

	// Phase 6: bus transport.
	bus := localbus.New(mgr)
	log.Printf("Bus service listening (in-process transport, address %s)", envCfg.BusAddress)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	sig := <-quit
	log.Printf("Received signal %s, shutting down...", sig)

	// Stop in order: event sources first, then sinks, then persistence.
	hv.Stop()
	log.Println("Harvester stopped")

	geo.Close()
	log.Println("GeoIP provider stopped")

	if err := bus.Close(); err != nil {
		log.Printf("Bus close error: %v", err)
	}
	log.Println("Bus stopped")

	log.Println("locationd stopped")
}

func dbPath(stateDir string) string {
	return stateDir + "/locationd.db"
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}

// buildChecker picks the permission checker per spec.md §6's testing
// bypass: LOCATIOND_IS_RUNNING_UNDER_TESTING grants unconditionally,
// otherwise the real trust-prompt path is wired to denyAgent until a
// platform-specific trust agent (out of scope, spec.md §1) is plugged in.
func buildChecker(envCfg *config.EnvConfig, resolver identity.ProfileResolver) permission.Checker {
	if envCfg.IsRunningUnderTesting {
		log.Println("LOCATIOND_IS_RUNNING_UNDER_TESTING set, using TestingChecker (all sessions granted)")
		return permission.TestingChecker{}
	}
	return permission.NewTrustAgentChecker(resolver, denyAgent{}, envCfg.PermissionAgentTimeout)
}

// denyAgent is the safe default trust-prompt Agent: absent a real
// platform trust-agent integration (out of scope per spec.md §1), every
// request is denied rather than silently granted.
type denyAgent struct{}

func (denyAgent) Prompt(ctx context.Context, params permission.PromptParams) (bool, error) {
	log.Printf("[permission] no trust agent wired, denying request for profile %q", params.Profile)
	return false, nil
}

// noopConnectivity reports no visible wifi/cell hardware. Real visibility
// snapshotting is a HAL-level concern out of scope per spec.md §1.
type noopConnectivity struct{}

func (noopConnectivity) VisibleWifiAccessPoints(ctx context.Context) ([]harvester.WifiAccessPoint, error) {
	return nil, nil
}
func (noopConnectivity) VisibleCellTowers(ctx context.Context) ([]harvester.CellTower, error) {
	return nil, nil
}

// noopReporter discards harvested snapshots. The upstream report sink is
// an external collaborator out of scope per spec.md §1.
type noopReporter struct{}

func (noopReporter) Report(ctx context.Context, pos measurement.Update[measurement.Position], wifis []harvester.WifiAccessPoint, cells []harvester.CellTower) error {
	return nil
}

// noAddressSource never resolves a caller address; real address
// resolution is transport-level and out of scope per spec.md §1.
func noAddressSource() (netip.Addr, bool) { return netip.Addr{}, false }
