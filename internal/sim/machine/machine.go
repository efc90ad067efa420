package machine

import "fmt"

// Logic is the device-specific behaviour plugged into a Machine.
type Logic interface {
	Kind() string
	// SlotCount is the number of machine slots, excluding the reserved capacitor slot.
	SlotCount() int
	ValidForSlot(i int, s ItemStack) bool
	// ProcessTasks runs once per authoritative tick, gated or not, and reports
	// whether a discrete state change happened that replicas must see.
	ProcessTasks(m *Machine, gatePassed bool) bool
	Active() bool
}

// Emitter receives the sync and persistence triggers of a machine. Both are
// always fired together, in that order, within the same tick.
type Emitter interface {
	Sync(m *Machine)
	Persist(m *Machine)
}

// TickResult describes one authoritative tick.
type TickResult struct {
	GatePassed bool
	Changed    bool
	Synced     bool
	// TaskErr is set when ProcessTasks panicked; the tick then counts as a no-op.
	TaskErr error
}

type Machine struct {
	id    string
	cfg   Config
	logic Logic
	emit  Emitter

	facing Facing
	gate   GateMode

	energy *Reservoir
	inv    *Inventory
	sync   *SyncScheduler

	gatePassed bool
	// Replica-side cache of the last rendered active state.
	lastActive bool
}

func New(id string, cfg Config, logic Logic) *Machine {
	cfg.applyDefaults()
	m := &Machine{
		id:     id,
		cfg:    cfg,
		logic:  logic,
		facing: cfg.DefaultFacing,
		gate:   GateIgnore,
		energy: NewReservoir(cfg.DefaultTier()),
		sync:   NewSyncScheduler(cfg.SyncEnergyDivisor),
	}
	m.energy.onTierChange = m.sync.Force
	m.inv = newInventory(logic.SlotCount(), cfg.StackLimit)
	m.inv.isCapacitor = cfg.IsCapacitor
	m.inv.validFor = logic.ValidForSlot
	m.inv.onReserved = func(s *ItemStack) { m.setTier(m.cfg.TierForItem(s)) }
	return m
}

func (m *Machine) ID() string            { return m.id }
func (m *Machine) Kind() string          { return m.logic.Kind() }
func (m *Machine) Logic() Logic          { return m.logic }
func (m *Machine) Config() Config        { return m.cfg }
func (m *Machine) Energy() *Reservoir    { return m.energy }
func (m *Machine) Inventory() *Inventory { return m.inv }
func (m *Machine) Scheduler() *SyncScheduler {
	return m.sync
}

func (m *Machine) SetEmitter(e Emitter) { m.emit = e }

func (m *Machine) Facing() Facing { return m.facing }

func (m *Machine) SetFacing(f Facing) {
	if _, ok := DecodeFacing(int(f)); !ok || f == m.facing {
		return
	}
	m.facing = f
	m.sync.Force()
}

func (m *Machine) GateMode() GateMode { return m.gate }

func (m *Machine) SetGateMode(g GateMode) {
	if _, ok := DecodeGateMode(int(g)); !ok || g == m.gate {
		return
	}
	m.gate = g
	m.sync.Force()
}

// GatePassed is the gate result of the most recent authoritative tick.
func (m *Machine) GatePassed() bool { return m.gatePassed }

func (m *Machine) Active() bool { return m.logic.Active() }

// RequestSync forces a sync on the next authoritative tick.
func (m *Machine) RequestSync() { m.sync.Force() }

func (m *Machine) Tier() Tier { return m.energy.Tier() }

// setTier swaps the capacitor tier. The reservoir hook forces the sync a
// capacity change always needs.
func (m *Machine) setTier(t Tier) { m.energy.SetTier(t) }

func (m *Machine) HasPower() bool { return m.energy.Stored() > 0 }

// PowerRequest is how much energy the machine would accept right now.
func (m *Machine) PowerRequest() float64 { return m.energy.Headroom() }

// EnergyFraction scales the fill level into [0, scale] for display.
func (m *Machine) EnergyFraction(scale int) int {
	if scale <= 0 {
		return 0
	}
	v := int(float64(scale) * m.energy.FractionFull())
	if v > scale {
		v = scale
	}
	return v
}

// Slot access for external collaborators.

func (m *Machine) SlotCount() int                   { return m.inv.Len() }
func (m *Machine) StackLimit() int                  { return m.inv.StackLimit() }
func (m *Machine) Slot(i int) *ItemStack            { return m.inv.Get(i) }
func (m *Machine) SetSlot(i int, s *ItemStack)      { m.inv.Set(i, s) }
func (m *Machine) TakeFromSlot(i, n int) *ItemStack { return m.inv.Take(i, n) }
func (m *Machine) IsValidForSlot(i int, s ItemStack) bool {
	return m.inv.IsValidForSlot(i, s)
}

// TickReplica runs on the display side. It only tracks whether the visible
// active state flipped and reports that a visual refresh is needed.
func (m *Machine) TickReplica() bool {
	active := m.logic.Active()
	refresh := active != m.lastActive
	m.lastActive = active
	return refresh
}

// TickAuthoritative runs gating, task logic and the sync decision. signal is
// only consulted when the gate mode depends on it.
func (m *Machine) TickAuthoritative(signal func() int) TickResult {
	var res TickResult

	level := 0
	if m.gate != GateIgnore && signal != nil {
		level = signal()
	}
	m.gatePassed = m.gate.Evaluate(level)
	res.GatePassed = m.gatePassed

	res.Changed, res.TaskErr = m.runTasks(m.gatePassed)

	res.Synced = m.sync.ShouldSync(Snapshot{
		Energy:      m.energy.Stored(),
		MaxStored:   m.energy.Tier().MaxStored,
		TaskChanged: res.Changed,
	})
	if res.Synced && m.emit != nil {
		m.emit.Sync(m)
		m.emit.Persist(m)
	}
	return res
}

func (m *Machine) runTasks(passed bool) (changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			changed = false
			err = fmt.Errorf("%s %s: process tasks: %v", m.logic.Kind(), m.id, r)
		}
	}()
	return m.logic.ProcessTasks(m, passed), nil
}
