package session

// fakePort is a synchronous in-memory Port. Writes land in the peer's rx
// immediately, so two ports polled from one goroutine behave like a
// lossless link with zero latency.
type fakePort struct {
	rx       []byte
	tx       []byte
	writable bool
	peer     *fakePort
}

func newWire() (a, b *fakePort) {
	a = &fakePort{writable: true}
	b = &fakePort{writable: true}
	a.peer, b.peer = b, a
	return a, b
}

func (p *fakePort) IsAvailable() bool { return len(p.rx) > 0 }

func (p *fakePort) Peek() byte {
	if len(p.rx) == 0 {
		return 0
	}
	return p.rx[0]
}

func (p *fakePort) Read() byte {
	if len(p.rx) == 0 {
		return 0
	}
	b := p.rx[0]
	p.rx = p.rx[1:]
	return b
}

func (p *fakePort) IsAvailableForWrite() bool { return p.writable }

func (p *fakePort) Write(b byte) {
	p.tx = append(p.tx, b)
	if p.peer != nil {
		p.peer.rx = append(p.peer.rx, b)
	}
}

// recActor records every input it is ticked with. exitAfter and dieAfter
// count ticks since the last StartLevel; zero disables them.
type recActor struct {
	inputs     []byte
	levelTicks int
	exitAfter  int
	dieAfter   int
}

func (a *recActor) Tick(in byte) {
	a.inputs = append(a.inputs, in)
	a.levelTicks++
}

func (a *recActor) Dead() bool   { return a.dieAfter > 0 && a.levelTicks >= a.dieAfter }
func (a *recActor) AtExit() bool { return a.exitAfter > 0 && a.levelTicks >= a.exitAfter }

type recWorld struct {
	actors  [2]*recActor
	updates int
	resets  int
	levels  []int
}

func newRecWorld() *recWorld {
	return &recWorld{actors: [2]*recActor{{}, {}}}
}

func (w *recWorld) Update()            { w.updates++ }
func (w *recWorld) Actor(r Role) Actor { return w.actors[r] }

func (w *recWorld) Reset() {
	w.resets++
	for _, a := range w.actors {
		a.inputs = nil
		a.levelTicks = 0
	}
}

func (w *recWorld) StartLevel(floor int) {
	w.levels = append(w.levels, floor)
	for _, a := range w.actors {
		a.levelTicks = 0
	}
}

// seqInput yields base, base+1, ... and remembers what it handed out.
type seqInput struct {
	next    byte
	sampled []byte
}

func (s *seqInput) Sample() byte {
	b := s.next
	s.next++
	s.sampled = append(s.sampled, b)
	return b
}
