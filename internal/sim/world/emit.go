package world

import (
	"machinecraft.ai/internal/protocol"
	"machinecraft.ai/internal/sim/machine"
)

// progressReporter is implemented by device logics with a visible work bar.
type progressReporter interface {
	Progress() float64
}

// hostEmitter binds a machine's sync and persist triggers to its position.
type hostEmitter struct {
	w   *World
	pos Vec3i
}

func (e hostEmitter) Sync(m *machine.Machine)    { e.w.emitSync(m, e.pos) }
func (e hostEmitter) Persist(m *machine.Machine) { e.w.emitPersist(m, e.pos) }

func machineProgress(m *machine.Machine) float64 {
	if pr, ok := m.Logic().(progressReporter); ok {
		return pr.Progress()
	}
	return 0
}

func (w *World) syncMsg(m *machine.Machine, pos Vec3i) (protocol.MachineSyncMsg, error) {
	state, err := machine.EncodeState(m.Serialize())
	if err != nil {
		return protocol.MachineSyncMsg{}, err
	}
	return protocol.MachineSyncMsg{
		Type:            protocol.TypeMachineSync,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		MachineID:       m.ID(),
		Kind:            m.Kind(),
		Pos:             pos.ToArray(),
		Active:          m.Active(),
		Progress:        machineProgress(m),
		State:           state,
	}, nil
}

func (w *World) emitSync(m *machine.Machine, pos Vec3i) {
	w.stepSynced++
	msg, err := w.syncMsg(m, pos)
	if err != nil {
		w.logger.Printf("machine %s: encode state: %v", m.ID(), err)
		return
	}
	for _, s := range w.sinks {
		s.MachineSynced(msg)
	}
	if w.syncLogger != nil {
		_ = w.syncLogger.WriteSync(SyncLogEntry{
			Tick:       msg.Tick,
			MachineID:  msg.MachineID,
			Kind:       msg.Kind,
			Pos:        msg.Pos,
			Energy:     m.Energy().Stored(),
			MaxStored:  m.Tier().MaxStored,
			Active:     msg.Active,
			Progress:   msg.Progress,
			GateMode:   m.GateMode().String(),
			GatePassed: m.GatePassed(),
		})
	}
}

func (w *World) emitPersist(m *machine.Machine, pos Vec3i) {
	if w.persister == nil {
		return
	}
	state, err := machine.EncodeState(m.Serialize())
	if err != nil {
		w.logger.Printf("machine %s: encode state: %v", m.ID(), err)
		return
	}
	w.persister.PersistMachine(MachineRecord{
		Tick:     w.tick.Load(),
		ID:       m.ID(),
		Kind:     m.Kind(),
		Pos:      pos,
		Tier:     m.Tier().ID,
		Energy:   m.Energy().Stored(),
		GateMode: int(m.GateMode()),
		Facing:   int(m.Facing()),
		State:    state,
	})
}

func (w *World) emitRemove(id, kind string, pos Vec3i) {
	msg := protocol.MachineRemoveMsg{
		Type:            protocol.TypeMachineRemove,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		MachineID:       id,
	}
	for _, s := range w.sinks {
		s.MachineRemoved(msg)
	}
	if w.syncLogger != nil {
		_ = w.syncLogger.WriteSync(SyncLogEntry{Tick: msg.Tick, MachineID: id, Kind: kind, Pos: pos.ToArray(), Removed: true})
	}
	if w.persister != nil {
		w.persister.DeleteMachine(id)
	}
}
