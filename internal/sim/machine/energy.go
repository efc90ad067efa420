package machine

// Tier is a capacity class of the energy reservoir. Tier ids index Config.Tiers;
// id 0 is the default tier and doubles as the "no capacitor" placeholder.
type Tier struct {
	ID                int
	Name              string
	MaxStored         float64
	MaxExtractPerTick float64
}

// Reservoir is a bounded energy store. Inputs are clamped, never rejected.
type Reservoir struct {
	stored float64
	tier   Tier

	// onTierChange fires after every SetTier; the owning machine binds it to
	// its sync scheduler.
	onTierChange func()
}

func NewReservoir(t Tier) *Reservoir {
	return &Reservoir{tier: t}
}

func (r *Reservoir) Stored() float64 { return r.stored }
func (r *Reservoir) Tier() Tier      { return r.tier }

// SetTier swaps the tier. Stored energy is clamped down to the new cap, never raised.
func (r *Reservoir) SetTier(t Tier) {
	r.tier = t
	if r.stored > t.MaxStored {
		r.stored = t.MaxStored
	}
	if r.stored < 0 {
		r.stored = 0
	}
	if r.onTierChange != nil {
		r.onTierChange()
	}
}

// Add stores up to amount and returns what was accepted.
func (r *Reservoir) Add(amount float64) float64 {
	if !(amount > 0) {
		return 0
	}
	room := r.tier.MaxStored - r.stored
	if room <= 0 {
		return 0
	}
	if amount > room {
		amount = room
	}
	r.stored += amount
	return amount
}

// Extract removes up to amount, limited by what is stored and by the tier's
// per-tick extraction rate. It returns what was removed.
func (r *Reservoir) Extract(amount float64) float64 {
	if !(amount > 0) {
		return 0
	}
	if amount > r.stored {
		amount = r.stored
	}
	if amount > r.tier.MaxExtractPerTick {
		amount = r.tier.MaxExtractPerTick
	}
	if amount <= 0 {
		return 0
	}
	r.stored -= amount
	if r.stored < 0 {
		r.stored = 0
	}
	return amount
}

// Headroom is how much more energy the reservoir can accept.
func (r *Reservoir) Headroom() float64 {
	h := r.tier.MaxStored - r.stored
	if h < 0 {
		return 0
	}
	return h
}

func (r *Reservoir) FractionFull() float64 {
	if r.tier.MaxStored <= 0 {
		return 0
	}
	f := r.stored / r.tier.MaxStored
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// set is used by state loading; the value is clamped into [0, MaxStored].
func (r *Reservoir) set(v float64) {
	if !(v > 0) {
		r.stored = 0
		return
	}
	if v > r.tier.MaxStored {
		v = r.tier.MaxStored
	}
	r.stored = v
}
