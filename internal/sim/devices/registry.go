package devices

import (
	"fmt"
	"strings"

	"machinecraft.ai/internal/sim/machine"
	"machinecraft.ai/internal/sim/tuning"
)

// Kinds lists every machine kind New can build.
func Kinds() []string { return []string{KindSmelter} }

// New builds the device logic for kind using the given tuning.
func New(kind string, t tuning.Tuning) (machine.Logic, error) {
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case KindSmelter:
		return NewSmelter(t.Smelter.EnergyPerItem, t.Smelter.Recipes), nil
	default:
		return nil, fmt.Errorf("unknown machine kind %q", kind)
	}
}
