package machine

import "testing"

func TestMachine_FirstAuthoritativeTickSyncs(t *testing.T) {
	for _, mode := range []GateMode{GateIgnore, GateRequireSignal, GateRequireNoSignal} {
		l := &fakeLogic{slots: 1}
		m := newTestMachine(l)
		m.SetGateMode(mode)
		em := &recordingEmitter{}
		m.SetEmitter(em)

		res := m.TickAuthoritative(func() int { return 7 })
		if !res.Synced {
			t.Fatalf("mode %v: first tick did not sync", mode)
		}
		if len(em.events) != 2 || em.events[0] != "sync:m1" || em.events[1] != "persist:m1" {
			t.Fatalf("mode %v: events=%v", mode, em.events)
		}
	}
}

func TestMachine_IdleTicksDoNotSync(t *testing.T) {
	m := newTestMachine(&fakeLogic{slots: 1})
	em := &recordingEmitter{}
	m.SetEmitter(em)
	m.TickAuthoritative(nil)
	for i := 0; i < 5; i++ {
		if res := m.TickAuthoritative(nil); res.Synced {
			t.Fatalf("idle tick %d synced", i)
		}
	}
	if len(em.events) != 2 {
		t.Fatalf("events=%v", em.events)
	}
}

func TestMachine_GateFailureStillRunsTasks(t *testing.T) {
	l := &fakeLogic{slots: 1, changed: true}
	m := newTestMachine(l)
	m.SetGateMode(GateRequireSignal)

	res := m.TickAuthoritative(func() int { return 0 })
	if res.GatePassed || m.GatePassed() {
		t.Fatalf("gate passed with no signal")
	}
	if l.calls != 1 || l.lastPassed {
		t.Fatalf("task callback calls=%d passed=%v", l.calls, l.lastPassed)
	}
	if !res.Changed {
		t.Fatalf("changed report suppressed by gate failure")
	}

	res = m.TickAuthoritative(func() int { return 15 })
	if !res.GatePassed || !l.lastPassed {
		t.Fatalf("gate did not pass at signal 15")
	}
}

func TestMachine_SignalOnlyReadWhenNeeded(t *testing.T) {
	m := newTestMachine(&fakeLogic{slots: 1})
	reads := 0
	m.TickAuthoritative(func() int { reads++; return 0 })
	if reads != 0 {
		t.Fatalf("IGNORE mode read the signal %d times", reads)
	}
	m.SetGateMode(GateRequireNoSignal)
	m.TickAuthoritative(func() int { reads++; return 0 })
	if reads != 1 {
		t.Fatalf("reads=%d, want 1", reads)
	}
}

func TestMachine_PanickingTaskIsNoop(t *testing.T) {
	l := &fakeLogic{slots: 1, panics: true, changed: true}
	m := newTestMachine(l)
	m.TickAuthoritative(nil)

	res := m.TickAuthoritative(nil)
	if res.TaskErr == nil {
		t.Fatalf("expected task error")
	}
	if res.Changed || res.Synced {
		t.Fatalf("panicking task reported changed=%v synced=%v", res.Changed, res.Synced)
	}

	m.RequestSync()
	if res := m.TickAuthoritative(nil); !res.Synced {
		t.Fatalf("sync decision skipped after a panicking task")
	}
}

func TestMachine_EnergyDriftSyncs(t *testing.T) {
	l := &fakeLogic{slots: 1, draw: 10}
	m := newTestMachine(l)
	m.Energy().Add(1000)
	m.TickAuthoritative(nil)

	// 10 per tick against a 1% threshold of 10: the second draw crosses it.
	if res := m.TickAuthoritative(nil); res.Synced {
		t.Fatalf("synced at exactly 1%% drift")
	}
	if res := m.TickAuthoritative(nil); !res.Synced {
		t.Fatalf("did not sync after 2%% drift")
	}
}

func TestMachine_TierChangeForcesSync(t *testing.T) {
	m := newTestMachine(&fakeLogic{slots: 1})
	m.TickAuthoritative(nil)
	m.SetSlot(m.SlotCount()-1, capacitor(1))
	if res := m.TickAuthoritative(nil); !res.Synced {
		t.Fatalf("tier change did not sync")
	}
}

func TestMachine_TickReplica(t *testing.T) {
	l := &fakeLogic{slots: 1}
	m := newTestMachine(l)
	if m.TickReplica() {
		t.Fatalf("refresh requested without change")
	}
	l.active = true
	if !m.TickReplica() {
		t.Fatalf("activation not detected")
	}
	if m.TickReplica() {
		t.Fatalf("refresh requested twice")
	}
	if l.calls != 0 {
		t.Fatalf("replica tick ran task logic")
	}
}

func TestMachine_EnergyFraction(t *testing.T) {
	m := newTestMachine(&fakeLogic{slots: 1})
	m.Energy().Add(505)
	if got := m.EnergyFraction(100); got != 50 {
		t.Fatalf("EnergyFraction(100)=%d", got)
	}
	m.Energy().Add(1000)
	if got := m.EnergyFraction(13); got != 13 {
		t.Fatalf("EnergyFraction(13) full=%d", got)
	}
	if got := m.EnergyFraction(0); got != 0 {
		t.Fatalf("EnergyFraction(0)=%d", got)
	}
	if m.PowerRequest() != 0 || !m.HasPower() {
		t.Fatalf("full machine: request=%v hasPower=%v", m.PowerRequest(), m.HasPower())
	}
}

func TestMachine_SetFacingForcesSync(t *testing.T) {
	m := newTestMachine(&fakeLogic{slots: 1})
	m.TickAuthoritative(nil)
	if m.Facing() != FacingSouth {
		t.Fatalf("default facing=%v", m.Facing())
	}

	m.SetFacing(FacingSouth)
	if res := m.TickAuthoritative(nil); res.Synced {
		t.Fatalf("unchanged facing synced")
	}
	m.SetFacing(Facing(9))
	if m.Facing() != FacingSouth {
		t.Fatalf("out-of-range facing applied: %v", m.Facing())
	}
	m.SetFacing(FacingEast)
	if res := m.TickAuthoritative(nil); !res.Synced {
		t.Fatalf("facing change did not sync")
	}
}

func TestMachine_ReservoirTierSwapForcesSync(t *testing.T) {
	m := newTestMachine(&fakeLogic{slots: 1})
	em := &recordingEmitter{}
	m.SetEmitter(em)
	m.TickAuthoritative(nil)

	m.Energy().SetTier(m.Config().Tiers[2])
	if !m.Scheduler().Pending() {
		t.Fatalf("tier swap through the reservoir left no pending sync")
	}
	res := m.TickAuthoritative(nil)
	if !res.Synced {
		t.Fatalf("tier swap did not sync")
	}
	if m.Tier().ID != 2 || len(em.events) != 4 || em.events[3] != "persist:m1" {
		t.Fatalf("tier=%d events=%v", m.Tier().ID, em.events)
	}
}
