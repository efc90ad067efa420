package machine

// Config holds the tunables a machine is built with. It is treated as immutable
// once handed to New.
type Config struct {
	StackLimit int
	// Energy must drift by more than MaxStored/SyncEnergyDivisor since the last
	// sync before the drift alone triggers a new one.
	SyncEnergyDivisor float64
	DefaultFacing     Facing
	// CapacitorItem is the item id accepted in the reserved slot; its Damage
	// selects the tier.
	CapacitorItem string
	// Tiers is indexed by tier id. Tiers[0] is the default tier.
	Tiers []Tier
}

const (
	DefaultStackLimit        = 64
	DefaultSyncEnergyDivisor = 100
	DefaultCapacitorItem     = "CAPACITOR"
)

func DefaultConfig() Config {
	return Config{
		StackLimit:        DefaultStackLimit,
		SyncEnergyDivisor: DefaultSyncEnergyDivisor,
		DefaultFacing:     FacingSouth,
		CapacitorItem:     DefaultCapacitorItem,
		Tiers: []Tier{
			{ID: 0, Name: "BASIC", MaxStored: 10000, MaxExtractPerTick: 10},
			{ID: 1, Name: "ACTIVATED", MaxStored: 25000, MaxExtractPerTick: 25},
			{ID: 2, Name: "ENDER", MaxStored: 100000, MaxExtractPerTick: 100},
		},
	}
}

func (c *Config) applyDefaults() {
	if c.StackLimit <= 0 {
		c.StackLimit = DefaultStackLimit
	}
	if c.SyncEnergyDivisor <= 0 {
		c.SyncEnergyDivisor = DefaultSyncEnergyDivisor
	}
	if _, ok := DecodeFacing(int(c.DefaultFacing)); !ok {
		c.DefaultFacing = FacingSouth
	}
	if c.CapacitorItem == "" {
		c.CapacitorItem = DefaultCapacitorItem
	}
	if len(c.Tiers) == 0 {
		c.Tiers = DefaultConfig().Tiers
	}
	tiers := make([]Tier, len(c.Tiers))
	for i, t := range c.Tiers {
		t.ID = i
		tiers[i] = t
	}
	c.Tiers = tiers
}

func (c Config) DefaultTier() Tier { return c.Tiers[0] }

// TierForItem maps the reserved-slot content to a tier. Empty slots, foreign
// items and unknown variants all select the default tier.
func (c Config) TierForItem(s *ItemStack) Tier {
	if s == nil || s.Item != c.CapacitorItem {
		return c.DefaultTier()
	}
	t, _ := DecodeTier(c.Tiers, s.Damage)
	return t
}

// IsCapacitor reports whether s may sit in the reserved slot: a capacitor item
// whose variant names a real tier (id 0 is the placeholder and is refused).
func (c Config) IsCapacitor(s *ItemStack) bool {
	if s == nil || s.Item != c.CapacitorItem {
		return false
	}
	return s.Damage > 0 && s.Damage < len(c.Tiers)
}
