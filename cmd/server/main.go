package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"machinecraft.ai/internal/persistence/indexdb"
	persistlog "machinecraft.ai/internal/persistence/log"
	"machinecraft.ai/internal/persistence/snapshot"
	"machinecraft.ai/internal/sim/tuning"
	"machinecraft.ai/internal/sim/world"
	"machinecraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the durable machine index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	w, err := world.New(world.WorldConfig{
		ID:                 *worldID,
		TickRateHz:         tune.TickRateHz,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		Tuning:             tune,
	})
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetLogger(logger)

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(worldDir)
	}
	switch {
	case snapshotToLoad != "":
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	case idx != nil:
		// No snapshot: fall back to the last durable machine states.
		recs, err := idx.LoadMachines(context.Background())
		if err != nil {
			logger.Fatalf("load machines: %v", err)
		}
		for _, rec := range recs {
			if err := w.LoadMachine(rec); err != nil {
				logger.Printf("skip machine: %v", err)
			}
		}
		if len(recs) > 0 {
			logger.Printf("restored %d machines from index tick=%d", len(recs), w.CurrentTick())
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	syncLog := persistlog.NewSyncLogger(worldDir)
	defer syncLog.Close()
	w.SetSyncLogger(syncLog)
	if idx != nil {
		w.SetPersister(idx)
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	writeSnap := func(snap snapshot.SnapshotV1) {
		path := snapshot.PathForTick(worldDir, snap.Header.Tick)
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			logger.Printf("snapshot write: %v", err)
			return
		}
		if idx != nil {
			idx.RecordSnapshot(path, snap)
		}
	}
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				writeSnap(snap)
			}
		}
	}()

	replicas := ws.NewServer(w, logger)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, *worldID, w.Metrics(), replicas, idx, syncLog.Stats())
	})
	if envBool("MC_ENABLE_ADMIN_HTTP", true) {
		registerAdmin(mux, w, *worldID)
	} else {
		logger.Printf("admin endpoints disabled (MC_ENABLE_ADMIN_HTTP=false)")
	}
	mux.HandleFunc("/v1/replica", replicas.Handler())

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

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The loop has stopped; a final snapshot keeps restarts lossless.
	cancel()
	<-runDone
	<-snapDone
	if t := w.CurrentTick(); t > 0 {
		writeSnap(w.ExportSnapshot(t - 1))
		logger.Printf("final snapshot tick=%d", t-1)
	}
}

func writeMetrics(rw http.ResponseWriter, worldID string, m world.WorldMetrics, replicas *ws.Server, idx *indexdb.SQLiteIndex, logStats persistlog.WriterStats) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %v\n", name, worldID, v)
	}
	gauge("machinecraft_world_tick", "Current world tick.", m.Tick)
	gauge("machinecraft_world_machines", "Placed machines.", m.Machines)
	gauge("machinecraft_world_levers", "Active signal sources.", m.Levers)
	gauge("machinecraft_world_queue_depth", "Command inbox backlog.", m.QueueDepth)
	gauge("machinecraft_world_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))
	gauge("machinecraft_world_synced", "Machines synced in the last tick.", m.Synced)
	gauge("machinecraft_world_task_errors", "Task failures in the last tick.", m.TaskErrors)
	gauge("machinecraft_replica_clients", "Connected replicas.", replicas.Clients())
	gauge("machinecraft_replica_dropped_total", "Messages dropped for slow replicas.", replicas.DroppedTotal())
	gauge("machinecraft_sync_log_lines_total", "Sync events written to the event log.", logStats.Lines)
	gauge("machinecraft_sync_log_errors_total", "Sync event log write failures.", logStats.Errors)
	if idx != nil {
		st := idx.Stats()
		gauge("machinecraft_index_queue_depth", "Index writer backlog.", st.QueueDepth)
		gauge("machinecraft_index_dropped_total", "Index writes dropped on backpressure.", st.DropPersistTotal+st.DropDeleteTotal+st.DropSnapshotTotal)
	}
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

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
