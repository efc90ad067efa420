package world

import "context"

// SnapshotInfo describes a snapshot exported on request.
type SnapshotInfo struct {
	Tick     uint64 `json:"tick"`
	Machines int    `json:"machines"`
	Levers   int    `json:"levers"`
}

type snapshotReq struct {
	resp chan snapshotResult
}

type snapshotResult struct {
	info SnapshotInfo
	err  error
}

// RequestSnapshot asks the world loop to export the last completed tick to the
// snapshot sink. Requests arriving during the same tick share one export.
func (w *World) RequestSnapshot(ctx context.Context) (SnapshotInfo, error) {
	resp := make(chan snapshotResult, 1)
	select {
	case w.admin <- snapshotReq{resp: resp}:
	case <-w.stop:
		return SnapshotInfo{}, ErrWorldStopped
	case <-ctx.Done():
		return SnapshotInfo{}, ctx.Err()
	}

	select {
	case r := <-resp:
		return r.info, r.err
	case <-w.stop:
		return SnapshotInfo{}, ErrWorldStopped
	case <-ctx.Done():
		return SnapshotInfo{}, ctx.Err()
	}
}

func (w *World) serveSnapshotRequests(reqs []snapshotReq) {
	if len(reqs) == 0 {
		return
	}
	res := w.requestedSnapshot()
	for _, r := range reqs {
		// Buffered with room for exactly this reply.
		r.resp <- res
	}
}

func (w *World) requestedSnapshot() snapshotResult {
	if w.snapshotSink == nil {
		return snapshotResult{err: ErrNoSnapshotSink}
	}
	var tick uint64
	if cur := w.tick.Load(); cur > 0 {
		tick = cur - 1
	}
	snap := w.ExportSnapshot(tick)
	info := SnapshotInfo{Tick: tick, Machines: len(snap.Machines), Levers: len(snap.Levers)}
	select {
	case w.snapshotSink <- snap:
		return snapshotResult{info: info}
	default:
		return snapshotResult{info: info, err: ErrSnapshotBusy}
	}
}
