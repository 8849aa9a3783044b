package session

// Outcome is the end condition raised by a completed lockstep round.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeGameOver
	OutcomeNextLevel
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGameOver:
		return "game over"
	case OutcomeNextLevel:
		return "next level"
	default:
		return "none"
	}
}

// Driver exchanges one input byte per peer per tick.
//
// waitingForRead and localInput are the only state carried between polls:
// once the local input of a round has been written, later polls of the same
// round only try to read, so a round sends and consumes exactly one byte each
// way no matter how many polls it takes.
type Driver struct {
	waitingForRead bool
	localInput     byte
}

// Waiting reports whether the local input of the current round is already
// on the wire.
func (d *Driver) Waiting() bool { return d.waitingForRead }

// AdvanceTick polls one lockstep round. It returns true when the round
// completed and the world advanced by one tick, together with the first end
// condition any actor raised.
func (d *Driver) AdvanceTick(p Port, in InputSource, w World, local Role) (Outcome, bool) {
	if !p.IsAvailableForWrite() {
		return OutcomeNone, false
	}

	if !d.waitingForRead {
		d.localInput = in.Sample()
		p.Write(d.localInput)
	}

	if !p.IsAvailable() {
		d.waitingForRead = true
		return OutcomeNone, false
	}
	remoteInput := p.Read()
	d.waitingForRead = false

	w.Update()

	for _, r := range [...]Role{Primary, Secondary} {
		input := remoteInput
		if r == local {
			input = d.localInput
		}

		a := w.Actor(r)
		a.Tick(input)

		if a.Dead() {
			return OutcomeGameOver, true
		}
		if a.AtExit() {
			return OutcomeNextLevel, true
		}
	}

	return OutcomeNone, true
}
