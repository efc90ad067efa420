package replica

import (
	"encoding/json"
	"testing"

	"machinecraft.ai/internal/protocol"
	"machinecraft.ai/internal/sim/machine"
	"machinecraft.ai/internal/sim/tuning"
)

func syncMsg(t *testing.T, tick uint64, id string, active bool, energy float64) protocol.MachineSyncMsg {
	t.Helper()
	tier := 1
	mode := int(machine.GateRequireSignal)
	state, err := machine.EncodeState(machine.State{StoredEnergy: &energy, CapacitorTier: &tier, RedstoneControlMode: &mode})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return protocol.MachineSyncMsg{
		Type:            protocol.TypeMachineSync,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		MachineID:       id,
		Kind:            "SMELTER",
		Pos:             [3]int{1, 2, 3},
		Active:          active,
		Progress:        0.5,
		State:           state,
	}
}

func TestHost_RefreshOnlyWhenActiveFlips(t *testing.T) {
	var refreshed []View
	h := NewHost(tuning.Defaults(), func(v View) { refreshed = append(refreshed, v) }, nil)

	if err := h.ApplySync(syncMsg(t, 1, "M1", true, 500)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n := h.Tick(); n != 1 {
		t.Fatalf("first tick refreshed=%d, want 1", n)
	}
	if n := h.Tick(); n != 0 {
		t.Fatalf("steady tick refreshed=%d, want 0", n)
	}
	if err := h.ApplySync(syncMsg(t, 2, "M1", false, 400)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n := h.Tick(); n != 1 {
		t.Fatalf("flip tick refreshed=%d, want 1", n)
	}
	if len(refreshed) != 2 || !refreshed[0].Active || refreshed[1].Active {
		t.Fatalf("refreshed=%+v", refreshed)
	}

	v, ok := h.Get("M1")
	if !ok {
		t.Fatalf("missing replica")
	}
	if v.Energy != 400 || v.Tier != "ACTIVATED" || v.GateMode != machine.GateRequireSignal || v.Pos != [3]int{1, 2, 3} {
		t.Fatalf("view=%+v", v)
	}
}

func TestHost_DropsStaleSync(t *testing.T) {
	h := NewHost(tuning.Defaults(), nil, nil)
	_ = h.ApplySync(syncMsg(t, 10, "M1", false, 900))
	_ = h.ApplySync(syncMsg(t, 9, "M1", true, 100))

	v, _ := h.Get("M1")
	if v.Tick != 10 || v.Energy != 900 || v.Active {
		t.Fatalf("stale message applied: %+v", v)
	}
}

func TestHost_ApplyRoutesRawMessages(t *testing.T) {
	h := NewHost(tuning.Defaults(), nil, nil)

	welcome, _ := json.Marshal(protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		WorldID:         "w1",
		Tiers: []protocol.TierInfo{
			{ID: 0, Name: "SMALL", MaxStored: 100, MaxExtractPerTick: 1},
			{ID: 1, Name: "LARGE", MaxStored: 1000, MaxExtractPerTick: 10},
		},
	})
	if err := h.Apply(welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if h.WorldID() != "w1" {
		t.Fatalf("world id=%q", h.WorldID())
	}

	b, _ := json.Marshal(syncMsg(t, 1, "M1", true, 50))
	if err := h.Apply(b); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if v, _ := h.Get("M1"); v.Tier != "LARGE" || v.MaxStored != 1000 {
		t.Fatalf("welcome tiers not used: %+v", v)
	}

	rm, _ := json.Marshal(protocol.MachineRemoveMsg{Type: protocol.TypeMachineRemove, ProtocolVersion: protocol.Version, Tick: 2, MachineID: "M1"})
	if err := h.Apply(rm); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(h.Views()) != 0 {
		t.Fatalf("replica not removed")
	}

	errMsg, _ := json.Marshal(protocol.NewError(protocol.ErrBusy, "full"))
	if err := h.Apply(errMsg); err == nil {
		t.Fatalf("expected error from ERROR message")
	}
}

func TestHost_UnknownKind(t *testing.T) {
	h := NewHost(tuning.Defaults(), nil, nil)
	msg := syncMsg(t, 1, "M1", false, 0)
	msg.Kind = "TELEPORTER"
	if err := h.ApplySync(msg); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestHost_WelcomeRebuildsExistingReplicas(t *testing.T) {
	h := NewHost(tuning.Defaults(), nil, nil)
	if err := h.ApplySync(syncMsg(t, 1, "M1", true, 500)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	h.ApplyWelcome(protocol.WelcomeMsg{
		Type:    protocol.TypeWelcome,
		WorldID: "w2",
		Tiers: []protocol.TierInfo{
			{Name: "SMALL", MaxStored: 100, MaxExtractPerTick: 1},
			{Name: "MEDIUM", MaxStored: 300, MaxExtractPerTick: 3},
		},
	})

	v, ok := h.Get("M1")
	if !ok {
		t.Fatalf("replica lost on WELCOME")
	}
	if v.Tier != "MEDIUM" || v.MaxStored != 300 || v.Energy != 300 {
		t.Fatalf("view=%+v", v)
	}
	if v.GateMode != machine.GateRequireSignal || !v.Active {
		t.Fatalf("state not carried over: %+v", v)
	}
	if h.WorldID() != "w2" {
		t.Fatalf("world=%q", h.WorldID())
	}
}
