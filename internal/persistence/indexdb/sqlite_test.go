package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"machinecraft.ai/internal/persistence/snapshot"
	"machinecraft.ai/internal/sim/world"
)

func TestSQLiteIndex_PersistAndLoadMachines(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")

	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.PersistMachine(world.MachineRecord{Tick: 1, ID: "A", Kind: "SMELTER", Pos: world.Vec3i{X: 1}, Energy: 10, State: []byte(`{"storedEnergy":10}`)})
	idx.PersistMachine(world.MachineRecord{Tick: 2, ID: "B", Kind: "SMELTER", Pos: world.Vec3i{X: 2}})
	// Later writes for the same id win.
	idx.PersistMachine(world.MachineRecord{Tick: 5, ID: "A", Kind: "SMELTER", Pos: world.Vec3i{X: 1}, Tier: 2, Energy: 75, GateMode: 1, Facing: 4, State: []byte(`{"storedEnergy":75}`)})
	idx.DeleteMachine("B")
	idx.RecordSnapshot("/data/snapshots/5.snap.zst", snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: 5},
		Machines: []snapshot.MachineV1{{ID: "A"}},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	got, err := idx.LoadMachines(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("machines=%d, want 1", len(got))
	}
	m := got[0]
	if m.ID != "A" || m.Tick != 5 || m.Tier != 2 || m.Energy != 75 || m.GateMode != 1 || m.Facing != 4 || m.Pos != (world.Vec3i{X: 1}) {
		t.Fatalf("row=%+v", m)
	}
	if string(m.State) != `{"storedEnergy":75}` {
		t.Fatalf("state=%s", m.State)
	}

	var path string
	var machines int
	if err := idx.db.QueryRow(`SELECT path, machines FROM snapshots WHERE tick=5`).Scan(&path, &machines); err != nil {
		t.Fatalf("snapshot row: %v", err)
	}
	if path != "/data/snapshots/5.snap.zst" || machines != 1 {
		t.Fatalf("snapshot row path=%s machines=%d", path, machines)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqDelete, id: "X"}

	s.PersistMachine(world.MachineRecord{ID: "A"})
	s.DeleteMachine("A")
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropPersistTotal != 1 || st.DropDeleteTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("drops=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	s.PersistMachine(world.MachineRecord{ID: "A"})
	s.DeleteMachine("A")
	s.RecordSnapshot("", snapshot.SnapshotV1{})
	if st := s.Stats(); st != (Stats{}) {
		t.Fatalf("stats=%+v", st)
	}
}
