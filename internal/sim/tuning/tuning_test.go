package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RepoConfig(t *testing.T) {
	tune, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tune.Tiers) != 3 || tune.Tiers[2].Name != "ENDER" {
		t.Fatalf("tiers=%+v", tune.Tiers)
	}
	cfg := tune.MachineConfig()
	if cfg.StackLimit != 64 || cfg.Tiers[1].ID != 1 || cfg.Tiers[1].MaxStored != 25000 {
		t.Fatalf("machine config=%+v", cfg)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_rate_hz: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tune, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.TickRateHz != 5 {
		t.Fatalf("tick rate=%d", tune.TickRateHz)
	}
	if len(tune.Tiers) != len(Defaults().Tiers) || tune.StackLimit != 64 {
		t.Fatalf("defaults lost: %+v", tune)
	}
}

func TestLoad_RejectsBadTier(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "tiers:\n  - name: BROKEN\n    max_stored: 0\n    max_extract_per_tick: 1\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err=%v, want not-exist", err)
	}
}

func TestLoad_RecipesReplaceDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	body := "smelter:\n  recipes:\n    COPPER_ORE: COPPER_INGOT\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	tune, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tune.Smelter.Recipes) != 1 || tune.Smelter.Recipes["COPPER_ORE"] != "COPPER_INGOT" {
		t.Fatalf("recipes=%v", tune.Smelter.Recipes)
	}
	if tune.Smelter.EnergyPerItem != Defaults().Smelter.EnergyPerItem {
		t.Fatalf("energy per item=%v", tune.Smelter.EnergyPerItem)
	}
}

func TestLoad_SmelterWithoutRecipesKeepsDefaultRecipes(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("smelter:\n  energy_per_item: 50\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tune, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.Smelter.EnergyPerItem != 50 || len(tune.Smelter.Recipes) != len(Defaults().Smelter.Recipes) {
		t.Fatalf("smelter=%+v", tune.Smelter)
	}
}
