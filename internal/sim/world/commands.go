package world

import (
	"context"
	"fmt"

	"machinecraft.ai/internal/sim/machine"
)

type CommandKind string

const (
	CmdPlace       CommandKind = "PLACE"
	CmdRemove      CommandKind = "REMOVE"
	CmdSetLever    CommandKind = "SET_LEVER"
	CmdSetSlot     CommandKind = "SET_SLOT"
	CmdTakeSlot    CommandKind = "TAKE_SLOT"
	CmdSetGateMode CommandKind = "SET_GATE_MODE"
	CmdSetFacing   CommandKind = "SET_FACING"
	CmdCharge      CommandKind = "CHARGE"
)

// Command is one external mutation. Only the fields relevant to Kind are read.
type Command struct {
	Kind CommandKind
	Pos  Vec3i

	MachineKind string             // PLACE
	Level       int                // SET_LEVER
	Slot        int                // SET_SLOT, TAKE_SLOT
	Stack       *machine.ItemStack // SET_SLOT; nil clears
	Count       int                // TAKE_SLOT
	GateMode    machine.GateMode   // SET_GATE_MODE
	Facing      machine.Facing     // SET_FACING
	Amount      float64            // CHARGE
}

type CommandResult struct {
	MachineID string
	Stack     *machine.ItemStack
	Accepted  float64
	Err       error
}

type cmdEnvelope struct {
	cmd  Command
	resp chan CommandResult
}

// Submit queues cmd for the next tick boundary and waits for its result.
func (w *World) Submit(ctx context.Context, cmd Command) (CommandResult, error) {
	resp := make(chan CommandResult, 1)
	select {
	case w.inbox <- cmdEnvelope{cmd: cmd, resp: resp}:
	case <-w.stop:
		return CommandResult{}, ErrWorldStopped
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, r.Err
	case <-w.stop:
		return CommandResult{}, ErrWorldStopped
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

func (w *World) PlaceMachine(ctx context.Context, kind string, pos Vec3i) (string, error) {
	r, err := w.Submit(ctx, Command{Kind: CmdPlace, Pos: pos, MachineKind: kind})
	return r.MachineID, err
}

func (w *World) RemoveMachine(ctx context.Context, pos Vec3i) error {
	_, err := w.Submit(ctx, Command{Kind: CmdRemove, Pos: pos})
	return err
}

func (w *World) SetLever(ctx context.Context, pos Vec3i, level int) error {
	_, err := w.Submit(ctx, Command{Kind: CmdSetLever, Pos: pos, Level: level})
	return err
}

func (w *World) apply(cmd Command) CommandResult {
	if cmd.Kind == CmdSetLever {
		return CommandResult{Err: w.setLever(cmd.Pos, cmd.Level)}
	}
	if cmd.Kind == CmdPlace {
		return w.applyPlace(cmd)
	}

	p := w.machines[cmd.Pos]
	if p == nil {
		return CommandResult{Err: fmt.Errorf("%s at %v: %w", cmd.Kind, cmd.Pos, ErrNoMachine)}
	}
	m := p.m
	res := CommandResult{MachineID: m.ID()}

	switch cmd.Kind {
	case CmdRemove:
		delete(w.machines, p.pos)
		delete(w.byID, m.ID())
		w.emitRemove(m.ID(), m.Kind(), p.pos)
	case CmdSetSlot:
		if cmd.Stack != nil && !cmd.Stack.Empty() && !m.IsValidForSlot(cmd.Slot, *cmd.Stack) {
			res.Err = fmt.Errorf("slot %d: %w", cmd.Slot, ErrInvalidItem)
			return res
		}
		m.SetSlot(cmd.Slot, cmd.Stack)
		m.RequestSync()
	case CmdTakeSlot:
		res.Stack = m.TakeFromSlot(cmd.Slot, cmd.Count)
		if res.Stack != nil {
			m.RequestSync()
		}
	case CmdSetGateMode:
		if _, ok := machine.DecodeGateMode(int(cmd.GateMode)); !ok {
			res.Err = fmt.Errorf("gate mode %d out of range", cmd.GateMode)
			return res
		}
		m.SetGateMode(cmd.GateMode)
	case CmdSetFacing:
		if _, ok := machine.DecodeFacing(int(cmd.Facing)); !ok {
			res.Err = fmt.Errorf("facing %d out of range", cmd.Facing)
			return res
		}
		m.SetFacing(cmd.Facing)
	case CmdCharge:
		res.Accepted = m.Energy().Add(cmd.Amount)
	default:
		res.Err = fmt.Errorf("%q: %w", cmd.Kind, ErrBadCommand)
	}
	return res
}

func (w *World) applyPlace(cmd Command) CommandResult {
	if w.machines[cmd.Pos] != nil {
		return CommandResult{Err: fmt.Errorf("place at %v: %w", cmd.Pos, ErrOccupied)}
	}
	p, err := w.newMachine(w.newID(), cmd.MachineKind, cmd.Pos)
	if err != nil {
		return CommandResult{Err: err}
	}
	w.insert(p)
	return CommandResult{MachineID: p.m.ID()}
}
