package machine

type fakeLogic struct {
	slots   int
	active  bool
	changed bool
	panics  bool
	draw    float64

	calls      int
	lastPassed bool
}

func (f *fakeLogic) Kind() string   { return "FAKE" }
func (f *fakeLogic) SlotCount() int { return f.slots }
func (f *fakeLogic) Active() bool   { return f.active }

func (f *fakeLogic) ValidForSlot(i int, s ItemStack) bool { return s.Item == "ORE" }

func (f *fakeLogic) ProcessTasks(m *Machine, gatePassed bool) bool {
	f.calls++
	f.lastPassed = gatePassed
	if f.panics {
		panic("boom")
	}
	if gatePassed && f.draw > 0 {
		m.Energy().Extract(f.draw)
	}
	return f.changed
}

type recordingEmitter struct {
	events []string
}

func (r *recordingEmitter) Sync(m *Machine)    { r.events = append(r.events, "sync:"+m.ID()) }
func (r *recordingEmitter) Persist(m *Machine) { r.events = append(r.events, "persist:"+m.ID()) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Tiers = []Tier{
		{Name: "BASIC", MaxStored: 1000, MaxExtractPerTick: 10},
		{Name: "ACTIVATED", MaxStored: 2000, MaxExtractPerTick: 20},
		{Name: "ENDER", MaxStored: 5000, MaxExtractPerTick: 50},
	}
	return cfg
}

func newTestMachine(l *fakeLogic) *Machine {
	return New("m1", testConfig(), l)
}

func capacitor(tier int) *ItemStack {
	return &ItemStack{Item: DefaultCapacitorItem, Count: 1, Damage: tier}
}
