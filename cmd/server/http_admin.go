package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"machinecraft.ai/internal/sim/machine"
	"machinecraft.ai/internal/sim/world"
)

// adminWorld is the world surface the local admin endpoints drive.
type adminWorld interface {
	CurrentTick() uint64
	Metrics() world.WorldMetrics
	RequestSnapshot(ctx context.Context) (world.SnapshotInfo, error)
	Submit(ctx context.Context, cmd world.Command) (world.CommandResult, error)
}

type snapshotResp struct {
	world.SnapshotInfo

	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type commandReq struct {
	Kind        string  `json:"kind"`
	Pos         [3]int  `json:"pos"`
	MachineKind string  `json:"machine_kind,omitempty"`
	Level       int     `json:"level,omitempty"`
	Slot        int     `json:"slot,omitempty"`
	Item        string  `json:"item,omitempty"`
	Count       int     `json:"count,omitempty"`
	Damage      int     `json:"damage,omitempty"`
	GateMode    string  `json:"gate_mode,omitempty"`
	Facing      string  `json:"facing,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
}

type stackResp struct {
	Item   string `json:"item"`
	Count  int    `json:"count"`
	Damage int    `json:"damage,omitempty"`
}

type commandResp struct {
	OK        bool       `json:"ok"`
	MachineID string     `json:"machine_id,omitempty"`
	Stack     *stackResp `json:"stack,omitempty"`
	Accepted  float64    `json:"accepted,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func (r commandReq) toCommand() (world.Command, error) {
	cmd := world.Command{
		Kind:        world.CommandKind(strings.ToUpper(strings.TrimSpace(r.Kind))),
		Pos:         world.Vec3iFromArray(r.Pos),
		MachineKind: r.MachineKind,
		Level:       r.Level,
		Slot:        r.Slot,
		Count:       r.Count,
		Amount:      r.Amount,
	}
	switch cmd.Kind {
	case world.CmdSetSlot:
		if r.Item != "" {
			cmd.Stack = &machine.ItemStack{Item: r.Item, Count: r.Count, Damage: r.Damage}
		}
	case world.CmdSetGateMode:
		g, ok := machine.ParseGateMode(strings.ToUpper(r.GateMode))
		if !ok {
			return cmd, fmt.Errorf("bad gate_mode %q", r.GateMode)
		}
		cmd.GateMode = g
	case world.CmdSetFacing:
		f, ok := machine.ParseFacing(strings.ToUpper(r.Facing))
		if !ok {
			return cmd, fmt.Errorf("bad facing %q", r.Facing)
		}
		cmd.Facing = f
	case world.CmdPlace, world.CmdRemove, world.CmdSetLever, world.CmdTakeSlot, world.CmdCharge:
	default:
		return cmd, fmt.Errorf("unknown command kind %q", r.Kind)
	}
	return cmd, nil
}

func registerAdmin(mux *http.ServeMux, w adminWorld, worldID string) {
	loopbackOnly := func(h http.HandlerFunc) http.HandlerFunc {
		return func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			h(rw, r)
		}
	}

	mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{WorldID: worldID, Tick: w.CurrentTick(), Metrics: w.Metrics()})
	}))

	mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		info, err := w.RequestSnapshot(ctx)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, snapshotResp{SnapshotInfo: info, Error: err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, snapshotResp{OK: true, SnapshotInfo: info})
	}))

	mux.HandleFunc("/admin/v1/command", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req commandReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(rw, http.StatusBadRequest, commandResp{Error: "bad json: " + err.Error()})
			return
		}
		cmd, err := req.toCommand()
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, commandResp{Error: err.Error()})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		res, err := w.Submit(ctx, cmd)
		if err != nil {
			writeJSON(rw, commandStatus(err), commandResp{MachineID: res.MachineID, Error: err.Error()})
			return
		}
		out := commandResp{OK: true, MachineID: res.MachineID, Accepted: res.Accepted}
		if res.Stack != nil {
			out.Stack = &stackResp{Item: res.Stack.Item, Count: res.Stack.Count, Damage: res.Stack.Damage}
		}
		writeJSON(rw, http.StatusOK, out)
	}))
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, world.ErrNoMachine):
		return http.StatusNotFound
	case errors.Is(err, world.ErrOccupied):
		return http.StatusConflict
	case errors.Is(err, world.ErrWorldStopped), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
