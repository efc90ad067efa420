package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"machinecraft.ai/internal/sim/machine"
)

type Tuning struct {
	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	StackLimit        int     `yaml:"stack_limit"`
	SyncEnergyDivisor float64 `yaml:"sync_energy_divisor"`
	DefaultFacing     int     `yaml:"default_facing"`
	CapacitorItem     string  `yaml:"capacitor_item"`

	// Index in this list is the tier id; entry 0 is the default tier.
	Tiers []TierSpec `yaml:"tiers"`

	Smelter SmelterSpec `yaml:"smelter"`
}

type TierSpec struct {
	Name              string  `yaml:"name"`
	MaxStored         float64 `yaml:"max_stored"`
	MaxExtractPerTick float64 `yaml:"max_extract_per_tick"`
}

type SmelterSpec struct {
	EnergyPerItem float64           `yaml:"energy_per_item"`
	Recipes       map[string]string `yaml:"recipes"`
}

func Defaults() Tuning {
	cfg := machine.DefaultConfig()
	t := Tuning{
		TickRateHz:         20,
		SnapshotEveryTicks: 6000,
		StackLimit:         cfg.StackLimit,
		SyncEnergyDivisor:  cfg.SyncEnergyDivisor,
		DefaultFacing:      int(cfg.DefaultFacing),
		CapacitorItem:      cfg.CapacitorItem,
		Smelter: SmelterSpec{
			EnergyPerItem: 200,
			Recipes: map[string]string{
				"IRON_ORE": "IRON_INGOT",
				"GOLD_ORE": "GOLD_INGOT",
				"SAND":     "GLASS",
			},
		},
	}
	for _, tr := range cfg.Tiers {
		t.Tiers = append(t.Tiers, TierSpec{Name: tr.Name, MaxStored: tr.MaxStored, MaxExtractPerTick: tr.MaxExtractPerTick})
	}
	return t
}

// Load reads a tuning file on top of Defaults; keys absent from the file keep
// their default values. A recipes map in the file replaces the default one.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	defRecipes := t.Smelter.Recipes
	t.Smelter.Recipes = nil
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.Smelter.Recipes == nil {
		t.Smelter.Recipes = defRecipes
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if len(t.Tiers) == 0 {
		return fmt.Errorf("tiers must not be empty")
	}
	for i, tr := range t.Tiers {
		if tr.MaxStored <= 0 || tr.MaxExtractPerTick <= 0 {
			return fmt.Errorf("tier %d (%s): capacities must be > 0", i, tr.Name)
		}
	}
	if t.StackLimit <= 0 {
		return fmt.Errorf("stack_limit must be > 0")
	}
	return nil
}

// MachineConfig is the immutable per-machine view of the tuning.
func (t Tuning) MachineConfig() machine.Config {
	cfg := machine.Config{
		StackLimit:        t.StackLimit,
		SyncEnergyDivisor: t.SyncEnergyDivisor,
		DefaultFacing:     machine.Facing(t.DefaultFacing),
		CapacitorItem:     t.CapacitorItem,
	}
	for i, tr := range t.Tiers {
		cfg.Tiers = append(cfg.Tiers, machine.Tier{
			ID:                i,
			Name:              tr.Name,
			MaxStored:         tr.MaxStored,
			MaxExtractPerTick: tr.MaxExtractPerTick,
		})
	}
	return cfg
}
