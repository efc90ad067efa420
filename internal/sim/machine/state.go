package machine

import (
	"encoding/json"
	"math"
)

// State is the persisted form of a machine. Pointer fields distinguish a
// missing key from a zero value so loading can apply per-field defaults.
type State struct {
	Facing              *int        `json:"facing,omitempty"`
	CapacitorTier       *int        `json:"capacitorTier,omitempty"`
	StoredEnergy        *float64    `json:"storedEnergy,omitempty"`
	RedstoneControlMode *int        `json:"redstoneControlMode,omitempty"`
	Slots               []SlotState `json:"slots,omitempty"`

	// Device is the task state of logic implementing DeviceState.
	Device json.RawMessage `json:"device,omitempty"`
}

// SlotState is one non-empty slot of the sparse slot list.
type SlotState struct {
	Slot   int               `json:"slot"`
	Item   string            `json:"item"`
	Count  int               `json:"count"`
	Damage int               `json:"damage,omitempty"`
	Tag    map[string]string `json:"tag,omitempty"`
}

// DeviceState is implemented by logic whose multi-tick work must survive a
// reload. LoadState receives nil when the blob carries no device state and
// reports false when it had to reset.
type DeviceState interface {
	SaveState() json.RawMessage
	LoadState(raw json.RawMessage) bool
}

// LoadReport lists the fields Deserialize had to default or repair.
type LoadReport struct {
	FacingDefaulted   bool
	TierDefaulted     bool
	EnergyDefaulted   bool
	GateModeDefaulted bool
	DeviceDefaulted   bool

	// DroppedSlots counts out-of-range indices, DuplicateSlots repeated
	// indices (the last one wins) and ClampedSlots counts cut to the stack limit.
	DroppedSlots   int
	DuplicateSlots int
	ClampedSlots   int
}

func (r LoadReport) Clean() bool {
	return !r.FacingDefaulted && !r.TierDefaulted && !r.EnergyDefaulted && !r.GateModeDefaulted && !r.DeviceDefaulted &&
		r.DroppedSlots == 0 && r.DuplicateSlots == 0 && r.ClampedSlots == 0
}

func EncodeState(s State) ([]byte, error) { return json.Marshal(s) }

func DecodeState(b []byte) (State, error) {
	var s State
	err := json.Unmarshal(b, &s)
	return s, err
}

func (m *Machine) Serialize() State {
	facing := int(m.facing)
	tier := m.energy.Tier().ID
	energy := m.energy.Stored()
	mode := int(m.gate)

	st := State{
		Facing:              &facing,
		CapacitorTier:       &tier,
		StoredEnergy:        &energy,
		RedstoneControlMode: &mode,
	}
	for i, s := range m.inv.slots {
		if s.Empty() {
			continue
		}
		c := s.Clone()
		st.Slots = append(st.Slots, SlotState{Slot: i, Item: c.Item, Count: c.Count, Damage: c.Damage, Tag: c.Tag})
	}
	if ds, ok := m.logic.(DeviceState); ok {
		st.Device = ds.SaveState()
	}
	return st
}

// Deserialize replaces the machine's persisted state. It never fails: every
// missing or out-of-range field falls back to its default. The pending first
// sync is left untouched; the tier swap forces one regardless.
func (m *Machine) Deserialize(st State) LoadReport {
	var rep LoadReport

	m.facing = m.cfg.DefaultFacing
	if st.Facing != nil {
		f, ok := DecodeFacing(*st.Facing)
		if ok {
			m.facing = f
		} else {
			rep.FacingDefaulted = true
		}
	}

	tier := m.cfg.DefaultTier()
	if st.CapacitorTier != nil {
		t, ok := DecodeTier(m.cfg.Tiers, *st.CapacitorTier)
		tier = t
		rep.TierDefaulted = !ok
	}
	m.setTier(tier)

	energy := 0.0
	if st.StoredEnergy != nil {
		energy = *st.StoredEnergy
		if math.IsNaN(energy) || math.IsInf(energy, 0) || energy < 0 {
			energy = 0
			rep.EnergyDefaulted = true
		}
	}
	m.energy.set(energy)

	// The tier key wins over the reserved slot content, so slots are restored
	// without firing the reserved-slot hook.
	for i := range m.inv.slots {
		m.inv.slots[i] = nil
	}
	seen := make(map[int]bool, len(st.Slots))
	for _, s := range st.Slots {
		if !m.inv.inRange(s.Slot) {
			rep.DroppedSlots++
			continue
		}
		if seen[s.Slot] {
			rep.DuplicateSlots++
		}
		seen[s.Slot] = true
		if s.Count > m.inv.limit {
			rep.ClampedSlots++
		}
		m.inv.put(s.Slot, &ItemStack{Item: s.Item, Count: s.Count, Damage: s.Damage, Tag: s.Tag})
	}

	m.gate = GateIgnore
	if st.RedstoneControlMode != nil {
		g, ok := DecodeGateMode(*st.RedstoneControlMode)
		m.gate = g
		rep.GateModeDefaulted = !ok
	}

	if ds, ok := m.logic.(DeviceState); ok {
		rep.DeviceDefaulted = !ds.LoadState(st.Device)
	}
	return rep
}
