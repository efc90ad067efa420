package world

import (
	"fmt"

	"machinecraft.ai/internal/persistence/snapshot"
	"machinecraft.ai/internal/sim/machine"
)

// ImportSnapshot replaces the world state with snap. It must run before Run.
// Machines with an unknown kind fail the import; damaged state fields fall back
// to their defaults and are logged.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if s.Header.WorldID != "" && s.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot world id mismatch: world=%s snap=%s", w.cfg.ID, s.Header.WorldID)
	}

	machines := map[Vec3i]*placed{}
	byID := map[string]Vec3i{}
	for _, mv := range s.Machines {
		pos := Vec3iFromArray(mv.Pos)
		if _, dup := machines[pos]; dup {
			return fmt.Errorf("snapshot: two machines at %v", pos)
		}
		p, err := w.newMachine(mv.ID, mv.Kind, pos)
		if err != nil {
			return fmt.Errorf("snapshot: machine %s: %w", mv.ID, err)
		}
		w.restoreState(p.m, mv.State)
		machines[pos] = p
		byID[mv.ID] = pos
	}

	levers := map[Vec3i]int{}
	for _, l := range s.Levers {
		if lvl := clampLevel(l.Level); lvl > 0 {
			levers[Vec3iFromArray(l.Pos)] = lvl
		}
	}

	w.machines = machines
	w.byID = byID
	w.levers = levers
	w.tick.Store(s.Header.Tick + 1)
	return nil
}

// LoadMachine places a machine restored from durable storage. Used when no
// snapshot is available.
func (w *World) LoadMachine(rec MachineRecord) error {
	if w.machines[rec.Pos] != nil {
		return fmt.Errorf("load %s at %v: %w", rec.ID, rec.Pos, ErrOccupied)
	}
	p, err := w.newMachine(rec.ID, rec.Kind, rec.Pos)
	if err != nil {
		return fmt.Errorf("load %s: %w", rec.ID, err)
	}
	w.restoreState(p.m, rec.State)
	w.insert(p)
	if rec.Tick >= w.tick.Load() {
		w.tick.Store(rec.Tick + 1)
	}
	return nil
}

func (w *World) restoreState(m *machine.Machine, blob []byte) {
	st, err := machine.DecodeState(blob)
	if err != nil {
		w.logger.Printf("machine %s: unreadable state, using defaults: %v", m.ID(), err)
		st = machine.State{}
	}
	if rep := m.Deserialize(st); !rep.Clean() {
		w.logger.Printf("machine %s: state repaired on load: %+v", m.ID(), rep)
	}
}
