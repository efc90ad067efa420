package world

import (
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"machinecraft.ai/internal/persistence/snapshot"
	"machinecraft.ai/internal/sim/devices"
	"machinecraft.ai/internal/sim/machine"
)

// placed is a machine bound to its world position.
type placed struct {
	pos Vec3i
	m   *machine.Machine
}

// World is the authoritative host. All machine state is owned by the loop
// goroutine; other goroutines talk to it through channels.
type World struct {
	cfg  WorldConfig
	mcfg machine.Config

	tick atomic.Uint64

	machines map[Vec3i]*placed
	byID     map[string]Vec3i
	levers   map[Vec3i]int

	inbox  chan cmdEnvelope
	attach chan attachReq
	detach chan SyncSink
	admin  chan snapshotReq
	stop   chan struct{}
	once   sync.Once

	sinks        []SyncSink
	syncLogger   SyncLogger
	persister    Persister
	snapshotSink chan<- snapshot.SnapshotV1

	logger  *log.Logger
	newID   func() string
	metrics atomic.Value // WorldMetrics

	// per-step counters
	stepSynced   int
	stepTaskErrs int
}

func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	w := &World{
		cfg:      cfg,
		mcfg:     cfg.Tuning.MachineConfig(),
		machines: map[Vec3i]*placed{},
		byID:     map[string]Vec3i{},
		levers:   map[Vec3i]int{},
		inbox:    make(chan cmdEnvelope, 1024),
		attach:   make(chan attachReq, 64),
		detach:   make(chan SyncSink, 64),
		admin:    make(chan snapshotReq, 16),
		stop:     make(chan struct{}),
		logger:   log.New(io.Discard, "", 0),
		newID:    uuid.NewString,
	}
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) TickRateHz() int     { return w.cfg.TickRateHz }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Tiers lists the capacitor tiers in id order.
func (w *World) Tiers() []machine.Tier {
	out := make([]machine.Tier, len(w.mcfg.Tiers))
	copy(out, w.mcfg.Tiers)
	return out
}

// Setters below are not goroutine safe; call them before Run.

func (w *World) SetLogger(l *log.Logger) {
	if l != nil {
		w.logger = l
	}
}
func (w *World) SetSyncLogger(l SyncLogger)                    { w.syncLogger = l }
func (w *World) SetPersister(p Persister)                      { w.persister = p }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }
func (w *World) AddSyncSink(s SyncSink)                        { w.sinks = append(w.sinks, s) }

func (w *World) newMachine(id, kind string, pos Vec3i) (*placed, error) {
	logic, err := devices.New(kind, w.cfg.Tuning)
	if err != nil {
		return nil, err
	}
	p := &placed{pos: pos, m: machine.New(id, w.mcfg, logic)}
	p.m.SetEmitter(hostEmitter{w: w, pos: pos})
	return p, nil
}

func (w *World) insert(p *placed) {
	w.machines[p.pos] = p
	w.byID[p.m.ID()] = p.pos
}

// Machine returns the machine at pos. Only safe on the loop goroutine or
// while the world is not running.
func (w *World) Machine(pos Vec3i) (*machine.Machine, bool) {
	p := w.machines[pos]
	if p == nil {
		return nil, false
	}
	return p.m, true
}

// MachineByID is Machine keyed by id.
func (w *World) MachineByID(id string) (*machine.Machine, Vec3i, bool) {
	pos, ok := w.byID[id]
	if !ok {
		return nil, Vec3i{}, false
	}
	return w.machines[pos].m, pos, true
}

func (w *World) sortedPositions() []Vec3i {
	out := make([]Vec3i, 0, len(w.machines))
	for pos := range w.machines {
		out = append(out, pos)
	}
	sortVecs(out)
	return out
}
