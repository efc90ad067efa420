package world

import (
	"fmt"
	"sync"
	"testing"

	"machinecraft.ai/internal/protocol"
	"machinecraft.ai/internal/sim/tuning"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	tune := tuning.Defaults()
	tune.Smelter.EnergyPerItem = 20
	w, err := New(WorldConfig{ID: "w1", TickRateHz: 200, Tuning: tune})
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	n := 0
	w.newID = func() string {
		n++
		return fmt.Sprintf("M%d", n)
	}
	return w
}

type recordingSink struct {
	mu      sync.Mutex
	syncs   []protocol.MachineSyncMsg
	removes []protocol.MachineRemoveMsg
}

func (s *recordingSink) MachineSynced(msg protocol.MachineSyncMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncs = append(s.syncs, msg)
}

func (s *recordingSink) MachineRemoved(msg protocol.MachineRemoveMsg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes = append(s.removes, msg)
}

func (s *recordingSink) syncCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.syncs)
}

type recordingPersister struct {
	records []MachineRecord
	deleted []string
}

func (p *recordingPersister) PersistMachine(rec MachineRecord) { p.records = append(p.records, rec) }
func (p *recordingPersister) DeleteMachine(id string)          { p.deleted = append(p.deleted, id) }

type recordingSyncLog struct{ entries []SyncLogEntry }

func (l *recordingSyncLog) WriteSync(e SyncLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

func place(t *testing.T, w *World, pos Vec3i) string {
	t.Helper()
	_, res := w.StepOnce(Command{Kind: CmdPlace, Pos: pos, MachineKind: "SMELTER"})
	if res[0].Err != nil {
		t.Fatalf("place: %v", res[0].Err)
	}
	return res[0].MachineID
}
