package machine

// ItemStack is an item identity plus count. Damage selects the item's variant;
// Tag carries free-form metadata.
type ItemStack struct {
	Item   string
	Count  int
	Damage int
	Tag    map[string]string
}

// Clone returns a deep copy; nil stays nil.
func (s *ItemStack) Clone() *ItemStack {
	if s == nil {
		return nil
	}
	out := *s
	if s.Tag != nil {
		out.Tag = make(map[string]string, len(s.Tag))
		for k, v := range s.Tag {
			out.Tag[k] = v
		}
	}
	return &out
}

func (s *ItemStack) Empty() bool { return s == nil || s.Item == "" || s.Count <= 0 }

// Inventory is a fixed-length slot array whose last slot is reserved for the
// capacitor. It never hands out references to its own stacks.
type Inventory struct {
	slots []*ItemStack
	limit int

	isCapacitor func(*ItemStack) bool
	validFor    func(int, ItemStack) bool
	// onReserved fires whenever the reserved slot's content changes.
	onReserved func(*ItemStack)
}

func newInventory(machineSlots, limit int) *Inventory {
	if machineSlots < 0 {
		machineSlots = 0
	}
	return &Inventory{
		slots: make([]*ItemStack, machineSlots+1),
		limit: limit,
	}
}

func (inv *Inventory) Len() int           { return len(inv.slots) }
func (inv *Inventory) ReservedIndex() int { return len(inv.slots) - 1 }
func (inv *Inventory) StackLimit() int    { return inv.limit }

func (inv *Inventory) inRange(i int) bool { return i >= 0 && i < len(inv.slots) }

// Get returns a copy of the stack in slot i, or nil.
func (inv *Inventory) Get(i int) *ItemStack {
	if !inv.inRange(i) {
		return nil
	}
	return inv.slots[i].Clone()
}

// Set stores a copy of s, clamping its count to the stack limit. A nil or empty
// stack clears the slot. Validity is not enforced here; see IsValidForSlot.
func (inv *Inventory) Set(i int, s *ItemStack) {
	if !inv.inRange(i) {
		return
	}
	inv.put(i, s)
	if i == inv.ReservedIndex() && inv.onReserved != nil {
		inv.onReserved(inv.slots[i])
	}
}

func (inv *Inventory) put(i int, s *ItemStack) {
	if s.Empty() {
		inv.slots[i] = nil
		return
	}
	c := s.Clone()
	if c.Count > inv.limit {
		c.Count = inv.limit
	}
	inv.slots[i] = c
}

// Take withdraws up to amount units from slot i. Taking the whole stack
// empties the slot; otherwise a new stack with the same identity is split off.
func (inv *Inventory) Take(i, amount int) *ItemStack {
	if !inv.inRange(i) || amount <= 0 {
		return nil
	}
	cur := inv.slots[i]
	if cur == nil {
		return nil
	}
	if amount >= cur.Count {
		inv.slots[i] = nil
		if i == inv.ReservedIndex() && inv.onReserved != nil {
			inv.onReserved(nil)
		}
		return cur
	}
	out := cur.Clone()
	out.Count = amount
	cur.Count -= amount
	return out
}

// IsValidForSlot is advisory: transports consult it before calling Set.
func (inv *Inventory) IsValidForSlot(i int, s ItemStack) bool {
	if !inv.inRange(i) {
		return false
	}
	if i == inv.ReservedIndex() {
		return inv.isCapacitor != nil && inv.isCapacitor(&s)
	}
	if inv.validFor == nil {
		return false
	}
	return inv.validFor(i, s)
}

// Add merges n units of item into slot i if it is empty or holds the same
// item and variant. It returns how many units were accepted.
func (inv *Inventory) Add(i int, item string, damage, n int) int {
	if !inv.inRange(i) || i == inv.ReservedIndex() || item == "" || n <= 0 {
		return 0
	}
	cur := inv.slots[i]
	if cur == nil {
		if n > inv.limit {
			n = inv.limit
		}
		inv.slots[i] = &ItemStack{Item: item, Count: n, Damage: damage}
		return n
	}
	if cur.Item != item || cur.Damage != damage || cur.Tag != nil {
		return 0
	}
	room := inv.limit - cur.Count
	if room <= 0 {
		return 0
	}
	if n > room {
		n = room
	}
	cur.Count += n
	return n
}
