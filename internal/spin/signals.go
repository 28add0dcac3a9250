package spin

// Cue is an audio event kind.
type Cue string

const (
	CueSpinStarted Cue = "spinStarted"
	CueTick        Cue = "tick"
	CueWon         Cue = "won"
)

// AudioSignaler receives fire-and-forget audio cues. Muting happens on the
// implementation side and never changes engine behaviour.
type AudioSignaler interface {
	Signal(cue Cue)
}

// MuteAudio discards every cue.
type MuteAudio struct{}

func (MuteAudio) Signal(Cue) {}

// Observer is the presentation side of the engine. Calls arrive on the
// goroutine driving the clock, one at a time.
type Observer interface {
	// SpinStarted carries the target rotation the presentation should
	// animate to over the spin duration.
	SpinStarted(s Spin)

	// Tick fires when the eased rotation crosses a slice boundary.
	// rotation is the eased rotation of the frame that crossed it.
	Tick(s Spin, tickIndex int, rotation float64)

	// FinalApproach fires once, part way through the spin.
	FinalApproach(s Spin)

	// Resolved fires exactly once per spin.
	Resolved(r Result)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) SpinStarted(Spin)         {}
func (NopObserver) Tick(Spin, int, float64) {}
func (NopObserver) FinalApproach(Spin)       {}
func (NopObserver) Resolved(Result)          {}
