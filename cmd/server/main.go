package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"golang.org/x/time/rate"

	"voxelforge.dev/internal/persistence/indexdb"
	"voxelforge.dev/internal/sim/behaviour"
	"voxelforge.dev/internal/sim/level"
	"voxelforge.dev/internal/sim/levels"
	"voxelforge.dev/internal/sim/tuning"
	"voxelforge.dev/internal/transport/admin"
	"voxelforge.dev/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		levelsPath = flag.String("levels", "", "path to levels.yaml (default: <configs>/levels.yaml)")
		tuningPath = flag.String("tuning", "", "path to physics.yaml (default: <configs>/physics.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite tick/event index")
		disableLog = flag.Bool("disable_log", false, "disable the compressed tick/event logs")
		statsAddr  = flag.String("statsview", "", "serve runtime charts on this address (empty to disable)")
		traceLevel = flag.String("trace_checks", "", "log every dispatched check of this level (rate limited)")

		loadSnaps = flag.Bool("load_latest_snapshot", true, "restore each level from its latest snapshot if present")
		snapEvery = flag.Duration("snapshot_every", 5*time.Minute, "periodic level snapshot interval (0 to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	if dsn := strings.TrimSpace(os.Getenv("VC_SENTRY_DSN")); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: strings.TrimSpace(os.Getenv("DEPLOY_ENV")),
		}); err != nil {
			logger.Printf("sentry init: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "physics.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	lp := strings.TrimSpace(*levelsPath)
	if lp == "" {
		lp = filepath.Join(*configDir, "levels.yaml")
	}
	lcfg, err := levels.Load(lp)
	if err != nil {
		logger.Fatalf("load levels: %v", err)
	}

	reg, err := behaviour.Registry()
	if err != nil {
		logger.Fatalf("build handler registry: %v", err)
	}

	// Optional read-model index (does not affect the simulation).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "physics.sqlite"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index db upsert tuning: %v", err)
		}
	}

	var files *levelLogs
	if !*disableLog {
		files = newLevelLogs(filepath.Join(*dataDir, "levels"))
		defer files.Close()
	}

	hub := observer.NewHub(log.New(os.Stdout, "[physics] ", log.LstdFlags|log.Lmicroseconds))
	opts := []level.Option{
		level.WithBroadcaster(hub),
		level.WithNotifier(hub),
	}
	if tl := fanoutTicks(files, idx); tl != nil {
		opts = append(opts, level.WithTickLogger(tl))
	}
	if el := fanoutEvents(files, idx); el != nil {
		opts = append(opts, level.WithEventLogger(el))
	}

	mgr, err := levels.NewManager(lcfg, tune, reg, opts...)
	if err != nil {
		logger.Fatalf("levels: %v", err)
	}
	defer mgr.Close()
	hub.SetLevels(mgr)
	levelsDir := filepath.Join(*dataDir, "levels")
	for _, name := range mgr.Names() {
		l, _ := mgr.Get(name)
		l.OnStateChange(reportShutdown)
		if name == strings.TrimSpace(*traceLevel) {
			l.SetCheckHook(traceChecks(log.New(os.Stdout, "[trace] ", log.LstdFlags|log.Lmicroseconds), 50))
		}
		if *loadSnaps {
			restoreLatest(l, levelsDir, logger)
		}
		logger.Printf("level %s mode=%s interval=%s overload=%s", name, l.Mode(), l.Config().Interval, l.Config().Overload)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if *snapEvery > 0 {
		go func() {
			ticker := time.NewTicker(*snapEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					saveSnapshots(mgr, levelsDir, logger)
				}
			}
		}()
	}

	if sa := strings.TrimSpace(*statsAddr); sa != "" {
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr(sa))
		sv := statsview.New()
		go sv.Start()
		defer sv.Stop()
		logger.Printf("statsview on http://%s/debug/statsview", sa)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, mgr.Metrics(), hub, idx)
	})

	enableAdminHTTP := envBool("VC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("VC_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		ah := admin.Handler(mgr)
		mux.Handle("/admin/v1/levels", ah)
		mux.Handle("/admin/v1/levels/", ah)
		mux.HandleFunc("/admin/v1/observer/bootstrap", hub.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", hub.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (VC_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (VC_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s levels=%v default=%s", *addr, mgr.Names(), mgr.DefaultName())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Stop every level (reverting transient blocks) before the final save.
	mgr.Close()
	saveSnapshots(mgr, levelsDir, logger)
}

// traceChecks returns a hook that logs dispatched checks, at most perSec a
// second.
func traceChecks(logger *log.Logger, perSec int) level.CheckHook {
	lim := rate.NewLimiter(rate.Limit(perSec), perSec)
	return func(l *level.Level, p level.Pos, c level.Check) {
		if !lim.Allow() {
			return
		}
		logger.Printf("%s check %v time=%d payload=%q", l.Name(), p, c.Time, c.Payload.String())
	}
}

// reportShutdown raises overload shutdowns to sentry. Observers already get
// the notice through the hub.
func reportShutdown(l *level.Level, st level.PhysicsState) {
	if st != level.StateStopped {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("level", l.Name())
		sentry.CaptureMessage("physics shutdown on " + l.Name())
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func writeMetrics(w io.Writer, all []level.Metrics, hub *observer.Hub, idx *indexdb.SQLiteIndex) {
	fmt.Fprintf(w, "# HELP voxelforge_physics_ticks_total Physics passes run.\n")
	fmt.Fprintf(w, "# TYPE voxelforge_physics_ticks_total counter\n")
	for _, m := range all {
		fmt.Fprintf(w, "voxelforge_physics_ticks_total{level=%q} %d\n", m.Name, m.Ticks)
	}

	fmt.Fprintf(w, "# HELP voxelforge_physics_pending Pending work per queue.\n")
	fmt.Fprintf(w, "# TYPE voxelforge_physics_pending gauge\n")
	for _, m := range all {
		fmt.Fprintf(w, "voxelforge_physics_pending{level=%q,queue=%q} %d\n", m.Name, "checks", m.PendingChecks)
		fmt.Fprintf(w, "voxelforge_physics_pending{level=%q,queue=%q} %d\n", m.Name, "updates", m.PendingUpdates)
	}

	fmt.Fprintf(w, "# HELP voxelforge_physics_tick_ms Last pass duration in milliseconds.\n")
	fmt.Fprintf(w, "# TYPE voxelforge_physics_tick_ms gauge\n")
	for _, m := range all {
		fmt.Fprintf(w, "voxelforge_physics_tick_ms{level=%q} %.3f\n", m.Name, m.LastTickMS)
	}

	fmt.Fprintf(w, "# HELP voxelforge_physics_running Whether the level loop is running.\n")
	fmt.Fprintf(w, "# TYPE voxelforge_physics_running gauge\n")
	for _, m := range all {
		fmt.Fprintf(w, "voxelforge_physics_running{level=%q,mode=%q,state=%q} %d\n", m.Name, m.Mode, m.State, boolInt(m.Running))
	}

	fmt.Fprintf(w, "# HELP voxelforge_physics_events_total Engine counters.\n")
	fmt.Fprintf(w, "# TYPE voxelforge_physics_events_total counter\n")
	for _, m := range all {
		fmt.Fprintf(w, "voxelforge_physics_events_total{level=%q,kind=%q} %d\n", m.Name, "checks_processed", m.ChecksProcessed)
		fmt.Fprintf(w, "voxelforge_physics_events_total{level=%q,kind=%q} %d\n", m.Name, "updates_applied", m.UpdatesApplied)
		fmt.Fprintf(w, "voxelforge_physics_events_total{level=%q,kind=%q} %d\n", m.Name, "handler_failures", m.HandlerFailures)
		fmt.Fprintf(w, "voxelforge_physics_events_total{level=%q,kind=%q} %d\n", m.Name, "suppressed_logs", m.SuppressedLogs)
		fmt.Fprintf(w, "voxelforge_physics_events_total{level=%q,kind=%q} %d\n", m.Name, "revert_failures", m.RevertFailures)
		fmt.Fprintf(w, "voxelforge_physics_events_total{level=%q,kind=%q} %d\n", m.Name, "warnings", m.Warnings)
		fmt.Fprintf(w, "voxelforge_physics_events_total{level=%q,kind=%q} %d\n", m.Name, "shutdowns", m.Shutdowns)
	}

	if hub != nil {
		sent, dropped := hub.Counts()
		fmt.Fprintf(w, "# HELP voxelforge_observer_messages_total Observer messages by result.\n")
		fmt.Fprintf(w, "# TYPE voxelforge_observer_messages_total counter\n")
		fmt.Fprintf(w, "voxelforge_observer_messages_total{result=%q} %d\n", "sent", sent)
		fmt.Fprintf(w, "voxelforge_observer_messages_total{result=%q} %d\n", "dropped", dropped)
		fmt.Fprintf(w, "# HELP voxelforge_observer_sessions Connected observers.\n")
		fmt.Fprintf(w, "# TYPE voxelforge_observer_sessions gauge\n")
		fmt.Fprintf(w, "voxelforge_observer_sessions %d\n", hub.Sessions())
	}

	if idx != nil {
		st := idx.Stats()
		fmt.Fprintf(w, "# HELP voxelforge_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(w, "# TYPE voxelforge_index_queue_depth gauge\n")
		fmt.Fprintf(w, "voxelforge_index_queue_depth %d\n", st.QueueDepth)
		fmt.Fprintf(w, "# HELP voxelforge_index_dropped_total Index entries dropped because the queue was full.\n")
		fmt.Fprintf(w, "# TYPE voxelforge_index_dropped_total counter\n")
		fmt.Fprintf(w, "voxelforge_index_dropped_total{kind=%q} %d\n", "tick", st.DropTickTotal)
		fmt.Fprintf(w, "voxelforge_index_dropped_total{kind=%q} %d\n", "event", st.DropEventTotal)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
