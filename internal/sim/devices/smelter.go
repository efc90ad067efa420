package devices

import (
	"encoding/json"
	"math"
	"sort"

	"machinecraft.ai/internal/sim/machine"
)

const KindSmelter = "SMELTER"

const (
	SmelterInput  = 0
	SmelterOutput = 1
)

// Smelter turns one input item into its recipe output once it has drawn
// EnergyPerItem energy. Energy is drawn only while the gate passes; otherwise
// progress is frozen.
type Smelter struct {
	EnergyPerItem float64
	Recipes       map[string]string

	progress float64
	active   bool
}

func NewSmelter(energyPerItem float64, recipes map[string]string) *Smelter {
	if energyPerItem <= 0 {
		energyPerItem = 1
	}
	r := make(map[string]string, len(recipes))
	for in, out := range recipes {
		if in != "" && out != "" {
			r[in] = out
		}
	}
	return &Smelter{EnergyPerItem: energyPerItem, Recipes: r}
}

func (s *Smelter) Kind() string   { return KindSmelter }
func (s *Smelter) SlotCount() int { return 2 }
func (s *Smelter) Active() bool   { return s.active }

func (s *Smelter) ValidForSlot(i int, st machine.ItemStack) bool {
	if i != SmelterInput {
		return false
	}
	_, ok := s.Recipes[st.Item]
	return ok
}

// Progress is the fraction of the current item already paid for.
func (s *Smelter) Progress() float64 {
	return TimedProgress(s.progress, s.EnergyPerItem)
}

func (s *Smelter) ProgressScaled(scale int) int {
	return int(s.Progress() * float64(scale))
}

// Inputs lists the accepted input items in stable order.
func (s *Smelter) Inputs() []string {
	out := make([]string, 0, len(s.Recipes))
	for in := range s.Recipes {
		out = append(out, in)
	}
	sort.Strings(out)
	return out
}

func (s *Smelter) ProcessTasks(m *machine.Machine, gatePassed bool) bool {
	wasActive := s.active
	inv := m.Inventory()

	in := inv.Get(SmelterInput)
	if in == nil {
		s.progress = 0
	}
	output := ""
	if in != nil {
		output = s.Recipes[in.Item]
	}
	if !gatePassed || output == "" || !s.outputHasRoom(inv, output) {
		s.active = false
		return wasActive != s.active
	}

	got := m.Energy().Extract(s.EnergyPerItem - s.progress)
	s.progress += got
	s.active = got > 0
	changed := wasActive != s.active

	if s.progress >= s.EnergyPerItem {
		inv.Take(SmelterInput, 1)
		inv.Add(SmelterOutput, output, 0, 1)
		s.progress = 0
		changed = true
	}
	return changed
}

func (s *Smelter) outputHasRoom(inv *machine.Inventory, item string) bool {
	cur := inv.Get(SmelterOutput)
	if cur == nil {
		return true
	}
	return cur.Item == item && cur.Damage == 0 && cur.Tag == nil && cur.Count < inv.StackLimit()
}

type smelterState struct {
	Progress float64 `json:"progress"`
	Active   bool    `json:"active"`
}

// SaveState carries the energy already paid into the current item, so a
// reload resumes the smelt instead of restarting it.
func (s *Smelter) SaveState() json.RawMessage {
	b, _ := json.Marshal(smelterState{Progress: s.progress, Active: s.active})
	return b
}

func (s *Smelter) LoadState(raw json.RawMessage) bool {
	s.progress, s.active = 0, false
	if len(raw) == 0 {
		return true
	}
	var st smelterState
	if err := json.Unmarshal(raw, &st); err != nil {
		return false
	}
	ok := true
	p := st.Progress
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		p, ok = 0, false
	}
	if p > s.EnergyPerItem {
		p, ok = s.EnergyPerItem, false
	}
	s.progress = p
	s.active = st.Active
	return ok
}

// TimedProgress clamps done/total into [0,1].
func TimedProgress(done, total float64) float64 {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 1
	}
	return done / total
}
