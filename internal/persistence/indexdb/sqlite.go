package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"machinecraft.ai/internal/persistence/snapshot"
	"machinecraft.ai/internal/sim/world"
)

// SQLiteIndex is the durable machine store. Writes are queued and applied by a
// single writer goroutine in batched transactions, so callers on the sim loop
// never block on disk.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropPersistTotal  atomic.Uint64
	dropDeleteTotal   atomic.Uint64
	dropSnapshotTotal atomic.Uint64
}

type reqKind int

const (
	reqPersist reqKind = iota + 1
	reqDelete
	reqSnapshot
)

type req struct {
	kind reqKind

	machine  world.MachineRecord
	id       string
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	WorldID  string
	Machines int
	Levers   int
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropPersistTotal  uint64 `json:"drop_persist_total"`
	DropDeleteTotal   uint64 `json:"drop_delete_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

// MachineRow is a machines table row as listed by admin tooling.
type MachineRow struct {
	world.MachineRecord
	UpdatedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS machines (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			tier INTEGER NOT NULL,
			energy REAL NOT NULL,
			gate_mode INTEGER NOT NULL,
			facing INTEGER NOT NULL,
			state_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_machines_pos ON machines(x, y, z);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			world_id TEXT NOT NULL,
			machines INTEGER NOT NULL,
			levers INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue, commits and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropPersistTotal:  s.dropPersistTotal.Load(),
		DropDeleteTotal:   s.dropDeleteTotal.Load(),
		DropSnapshotTotal: s.dropSnapshotTotal.Load(),
	}
}

// PersistMachine queues an upsert of the machine's latest state.
func (s *SQLiteIndex) PersistMachine(rec world.MachineRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqPersist, machine: rec}:
	default:
		s.dropPersistTotal.Add(1)
	}
}

func (s *SQLiteIndex) DeleteMachine(id string) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqDelete, id: id}:
	default:
		s.dropDeleteTotal.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		WorldID:  snap.Header.WorldID,
		Machines: len(snap.Machines),
		Levers:   len(snap.Levers),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshotTotal.Add(1)
	}
}

// LoadMachines returns every durable machine in id order. Only committed rows
// are visible; call it before the world starts writing.
func (s *SQLiteIndex) LoadMachines(ctx context.Context) ([]world.MachineRecord, error) {
	rows, err := s.ListMachines(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]world.MachineRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.MachineRecord)
	}
	return out, nil
}

func (s *SQLiteIndex) ListMachines(ctx context.Context) ([]MachineRow, error) {
	return ListMachines(ctx, s.db)
}

// ListMachines reads the machines table from any handle on the index
// database, e.g. a read-only connection opened by admin tooling.
func ListMachines(ctx context.Context, db *sql.DB) ([]MachineRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT id,kind,x,y,z,tick,tier,energy,gate_mode,facing,state_json,updated_at FROM machines ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MachineRow
	for rows.Next() {
		var (
			r     MachineRow
			tick  int64
			state string
		)
		if err := rows.Scan(&r.ID, &r.Kind, &r.Pos.X, &r.Pos.Y, &r.Pos.Z, &tick, &r.Tier, &r.Energy, &r.GateMode, &r.Facing, &state, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.State = []byte(state)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	upsertMachine, _ := s.db.Prepare(`INSERT OR REPLACE INTO machines(id,kind,x,y,z,tick,tier,energy,gate_mode,facing,state_json,updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	deleteMachine, _ := s.db.Prepare(`DELETE FROM machines WHERE id=?`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,world_id,machines,levers,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{upsertMachine, deleteMachine, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()

	for {
		var r req
		var ok bool
		select {
		case r, ok = <-s.ch:
			if !ok {
				commit()
				return
			}
		case <-idle.C:
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		switch r.kind {
		case reqPersist:
			m := r.machine
			exec(upsertMachine, m.ID, m.Kind, m.Pos.X, m.Pos.Y, m.Pos.Z, int64(m.Tick), m.Tier, m.Energy, m.GateMode, m.Facing, string(m.State), now)
		case reqDelete:
			exec(deleteMachine, r.id)
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.WorldID, sn.Machines, sn.Levers, now)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
}
