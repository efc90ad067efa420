package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := PathForTick(dir, 120)

	in := SnapshotV1{
		Header:   Header{Version: Version, WorldID: "w1", Tick: 120},
		TickRate: 20,
		Machines: []MachineV1{
			{ID: "M1", Kind: "SMELTER", Pos: [3]int{1, 2, 3}, State: []byte(`{"facing":0,"storedEnergy":12.5}`)},
			{ID: "M2", Kind: "SMELTER", Pos: [3]int{-4, 0, 9}, State: []byte(`{}`)},
		},
		Levers: []LeverV1{{Pos: [3]int{1, 2, 4}, Level: 15}},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "120.snap.zst" {
		t.Fatalf("path=%s", path)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Header != in.Header || out.TickRate != 20 {
		t.Fatalf("header=%+v tick_rate=%d", out.Header, out.TickRate)
	}
	if len(out.Machines) != 2 || out.Machines[1].Pos != [3]int{-4, 0, 9} {
		t.Fatalf("machines=%+v", out.Machines)
	}
	if !bytes.Equal(out.Machines[0].State, in.Machines[0].State) {
		t.Fatalf("state blob changed: %s", out.Machines[0].State)
	}
	if len(out.Levers) != 1 || out.Levers[0].Level != 15 {
		t.Fatalf("levers=%+v", out.Levers)
	}

	h, err := ReadHeader(path)
	if err != nil || h.Tick != 120 || h.WorldID != "w1" {
		t.Fatalf("header=%+v err=%v", h, err)
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "none.snap.zst")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLatest_PicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	if got := Latest(dir); got != "" {
		t.Fatalf("empty dir: got %q", got)
	}
	for _, tick := range []uint64{9, 120, 30} {
		snap := SnapshotV1{Header: Header{Version: Version, WorldID: "w1", Tick: tick}, TickRate: 20}
		if err := WriteSnapshot(PathForTick(dir, tick), snap); err != nil {
			t.Fatalf("write %d: %v", tick, err)
		}
	}
	if got, want := Latest(dir), PathForTick(dir, 120); got != want {
		t.Fatalf("Latest=%q want %q", got, want)
	}
}
