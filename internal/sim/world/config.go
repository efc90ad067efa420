package world

import "machinecraft.ai/internal/sim/tuning"

type WorldConfig struct {
	ID         string
	TickRateHz int

	// SnapshotEveryTicks <= 0 disables periodic snapshots.
	SnapshotEveryTicks int

	// Tuning supplies the machine config and device parameters.
	Tuning tuning.Tuning
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if len(c.Tuning.Tiers) == 0 {
		c.Tuning = tuning.Defaults()
	}
}
