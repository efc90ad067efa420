// Package replica mirrors machines on the display side from the sync stream.
package replica

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"machinecraft.ai/internal/protocol"
	"machinecraft.ai/internal/sim/devices"
	"machinecraft.ai/internal/sim/machine"
	"machinecraft.ai/internal/sim/tuning"
)

// syncedLogic wraps the device logic so a replica reports the active flag it
// was told about and never runs work of its own.
type syncedLogic struct {
	machine.Logic
	active bool
}

func (l *syncedLogic) Active() bool                             { return l.active }
func (l *syncedLogic) ProcessTasks(*machine.Machine, bool) bool { return false }

type entry struct {
	kind     string
	pos      [3]int
	tick     uint64
	progress float64
	logic    *syncedLogic
	m        *machine.Machine
}

// View is a read-only copy of a replica machine.
type View struct {
	ID        string
	Kind      string
	Pos       [3]int
	Tick      uint64
	Active    bool
	Progress  float64
	Energy    float64
	MaxStored float64
	Tier      string
	GateMode  machine.GateMode
	Facing    machine.Facing
}

// Host holds every replica machine. Apply and Tick may be called from
// different goroutines.
type Host struct {
	mu       sync.Mutex
	tune     tuning.Tuning
	cfg      machine.Config
	machines map[string]*entry

	worldID   string
	onRefresh func(View)
	logger    *log.Logger
}

func NewHost(tune tuning.Tuning, onRefresh func(View), logger *log.Logger) *Host {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Host{
		tune:      tune,
		cfg:       tune.MachineConfig(),
		machines:  map[string]*entry{},
		onRefresh: onRefresh,
		logger:    logger,
	}
}

func (h *Host) WorldID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.worldID
}

// Apply routes one raw server message.
func (h *Host) Apply(raw []byte) error {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return err
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var msg protocol.WelcomeMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		h.ApplyWelcome(msg)
	case protocol.TypeMachineSync:
		var msg protocol.MachineSyncMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		return h.ApplySync(msg)
	case protocol.TypeMachineRemove:
		var msg protocol.MachineRemoveMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		h.ApplyRemove(msg)
	case protocol.TypeError:
		var msg protocol.ErrorMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		return fmt.Errorf("server error %s: %s", msg.Code, msg.Message)
	default:
		h.logger.Printf("ignoring message type %q", base.Type)
	}
	return nil
}

// ApplyWelcome adopts the server's tier table. Existing replicas are rebuilt
// against it from their current state; a rebuilt active machine refreshes on
// the next Tick.
func (h *Host) ApplyWelcome(msg protocol.WelcomeMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.worldID = msg.WorldID
	if len(msg.Tiers) == 0 {
		return
	}
	tiers := make([]machine.Tier, 0, len(msg.Tiers))
	for i, t := range msg.Tiers {
		tiers = append(tiers, machine.Tier{ID: i, Name: t.Name, MaxStored: t.MaxStored, MaxExtractPerTick: t.MaxExtractPerTick})
	}
	h.cfg.Tiers = tiers

	for id, e := range h.machines {
		st := e.m.Serialize()
		e.m = machine.New(id, h.cfg, e.logic)
		if rep := e.m.Deserialize(st); !rep.Clean() {
			h.logger.Printf("machine %s: state repaired for new tier table: %+v", id, rep)
		}
	}
}

// ApplySync replaces a replica's state with the synced state. Messages older
// than the last applied one for the same machine are dropped.
func (h *Host) ApplySync(msg protocol.MachineSyncMsg) error {
	st, err := machine.DecodeState(msg.State)
	if err != nil {
		return fmt.Errorf("machine %s: %w", msg.MachineID, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	e := h.machines[msg.MachineID]
	if e != nil && msg.Tick < e.tick {
		return nil
	}
	if e == nil || e.kind != msg.Kind {
		logic, err := devices.New(msg.Kind, h.tune)
		if err != nil {
			return fmt.Errorf("machine %s: %w", msg.MachineID, err)
		}
		sl := &syncedLogic{Logic: logic}
		e = &entry{kind: msg.Kind, logic: sl, m: machine.New(msg.MachineID, h.cfg, sl)}
		h.machines[msg.MachineID] = e
	}
	if rep := e.m.Deserialize(st); !rep.Clean() {
		h.logger.Printf("machine %s: synced state repaired: %+v", msg.MachineID, rep)
	}
	e.pos = msg.Pos
	e.tick = msg.Tick
	e.progress = msg.Progress
	e.logic.active = msg.Active
	return nil
}

func (h *Host) ApplyRemove(msg protocol.MachineRemoveMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.machines, msg.MachineID)
}

// Tick runs one display-side tick on every replica and reports the machines
// whose visible active state flipped. It returns how many were refreshed.
func (h *Host) Tick() int {
	h.mu.Lock()
	var refreshed []View
	for _, id := range h.sortedIDsLocked() {
		e := h.machines[id]
		if e.m.TickReplica() {
			refreshed = append(refreshed, h.viewLocked(id, e))
		}
	}
	h.mu.Unlock()

	if h.onRefresh != nil {
		for _, v := range refreshed {
			h.onRefresh(v)
		}
	}
	return len(refreshed)
}

func (h *Host) Get(id string) (View, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.machines[id]
	if e == nil {
		return View{}, false
	}
	return h.viewLocked(id, e), true
}

// Views lists every replica in id order.
func (h *Host) Views() []View {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := h.sortedIDsLocked()
	out := make([]View, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.viewLocked(id, h.machines[id]))
	}
	return out
}

func (h *Host) sortedIDsLocked() []string {
	ids := make([]string, 0, len(h.machines))
	for id := range h.machines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Host) viewLocked(id string, e *entry) View {
	return View{
		ID:        id,
		Kind:      e.kind,
		Pos:       e.pos,
		Tick:      e.tick,
		Active:    e.m.Active(),
		Progress:  e.progress,
		Energy:    e.m.Energy().Stored(),
		MaxStored: e.m.Tier().MaxStored,
		Tier:      e.m.Tier().Name,
		GateMode:  e.m.GateMode(),
		Facing:    e.m.Facing(),
	}
}
