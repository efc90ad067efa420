package world

import (
	"context"
	"time"

	"machinecraft.ai/internal/protocol"
)

type attachReq struct {
	sink SyncSink
	done chan struct{}
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []cmdEnvelope
	var pendingAdmin []snapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.attach:
			w.handleAttach(req)
		case s := <-w.detach:
			w.handleDetach(s)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case env := <-w.inbox:
			pending = append(pending, env)
		case <-ticker.C:
			w.stepInternal(pending)
			w.serveSnapshotRequests(pendingAdmin)
			pending = pending[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { w.once.Do(func() { close(w.stop) }) }

// StepOnce applies cmds and advances the world by a single tick using the same
// ordering as Run. It must not be called while Run is active.
func (w *World) StepOnce(cmds ...Command) (tick uint64, results []CommandResult) {
	tick = w.tick.Load()
	envs := make([]cmdEnvelope, len(cmds))
	resps := make([]chan CommandResult, len(cmds))
	for i, c := range cmds {
		resps[i] = make(chan CommandResult, 1)
		envs[i] = cmdEnvelope{cmd: c, resp: resps[i]}
	}
	w.stepInternal(envs)
	results = make([]CommandResult, len(cmds))
	for i := range resps {
		results[i] = <-resps[i]
	}
	return tick, results
}

func (w *World) stepInternal(cmds []cmdEnvelope) {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	w.stepSynced = 0
	w.stepTaskErrs = 0

	// Commands apply at the tick boundary, in arrival order.
	for _, env := range cmds {
		res := w.apply(env.cmd)
		if env.resp != nil {
			env.resp <- res
		}
	}

	for _, pos := range w.sortedPositions() {
		p := w.machines[pos]
		res := p.m.TickAuthoritative(func() int { return w.SignalAt(pos) })
		if res.TaskErr != nil {
			w.stepTaskErrs++
			w.logger.Printf("tick %d: %v", nowTick, res.TaskErr)
		}
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	w.tick.Add(1)
	w.metrics.Store(WorldMetrics{
		Tick:       nowTick,
		Machines:   len(w.machines),
		Levers:     len(w.levers),
		Sinks:      len(w.sinks),
		QueueDepth: len(w.inbox),
		StepMS:     stepMS,
		Synced:     w.stepSynced,
		TaskErrors: w.stepTaskErrs,
	})
}

// Attach registers sink and sends it the current state of every machine
// before any later sync, so a new replica starts from a complete view.
func (w *World) Attach(ctx context.Context, sink SyncSink) error {
	done := make(chan struct{})
	select {
	case w.attach <- attachReq{sink: sink, done: done}:
	case <-w.stop:
		return ErrWorldStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-w.stop:
		return ErrWorldStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detach unregisters sink; it is a no-op for unknown sinks.
func (w *World) Detach(sink SyncSink) {
	select {
	case w.detach <- sink:
	case <-w.stop:
	}
}

func (w *World) handleAttach(req attachReq) {
	defer close(req.done)
	for _, msg := range w.StateBurst() {
		req.sink.MachineSynced(msg)
	}
	w.sinks = append(w.sinks, req.sink)
}

func (w *World) handleDetach(s SyncSink) {
	for i, cur := range w.sinks {
		if cur == s {
			w.sinks = append(w.sinks[:i], w.sinks[i+1:]...)
			return
		}
	}
}

// StateBurst renders every machine as a sync message, in position order.
func (w *World) StateBurst() []protocol.MachineSyncMsg {
	out := make([]protocol.MachineSyncMsg, 0, len(w.machines))
	for _, pos := range w.sortedPositions() {
		p := w.machines[pos]
		msg, err := w.syncMsg(p.m, pos)
		if err != nil {
			w.logger.Printf("machine %s: encode state: %v", p.m.ID(), err)
			continue
		}
		out = append(out, msg)
	}
	return out
}
