package world

import (
	"machinecraft.ai/internal/persistence/snapshot"
	"machinecraft.ai/internal/sim/machine"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		TickRate: w.cfg.TickRateHz,
	}
	for _, pos := range w.sortedPositions() {
		p := w.machines[pos]
		state, err := machine.EncodeState(p.m.Serialize())
		if err != nil {
			w.logger.Printf("snapshot: machine %s: %v", p.m.ID(), err)
			continue
		}
		snap.Machines = append(snap.Machines, snapshot.MachineV1{
			ID:    p.m.ID(),
			Kind:  p.m.Kind(),
			Pos:   pos.ToArray(),
			State: state,
		})
	}

	levers := make([]Vec3i, 0, len(w.levers))
	for pos := range w.levers {
		levers = append(levers, pos)
	}
	sortVecs(levers)
	for _, pos := range levers {
		snap.Levers = append(snap.Levers, snapshot.LeverV1{Pos: pos.ToArray(), Level: w.levers[pos]})
	}
	return snap
}
