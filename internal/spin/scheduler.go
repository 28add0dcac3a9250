// Package spin implements the wheel's spin engine: choosing a target
// rotation, driving the eased per-frame progress loop with slice-boundary
// ticks, and resolving the winner from the final rotation.
package spin

import (
	"log/slog"
	"math"
	"time"

	"github.com/D371L/asmodeus/internal/clock"
)

// State is the spin lifecycle state.
type State string

const (
	StateIdle     State = "IDLE"
	StateSpinning State = "SPINNING"
	StateResolved State = "RESOLVED"
)

// Config holds the engine tuning. Duration must be the same value the
// presentation layer animates its transform over.
type Config struct {
	Duration           time.Duration
	SpinCount          int
	FinalApproachRatio float64
	TickCutoff         float64
	WholeDegrees       bool
}

// DefaultConfig returns the stock tuning: a 10s spin over 8 full turns.
func DefaultConfig() Config {
	return Config{
		Duration:           10 * time.Second,
		SpinCount:          8,
		FinalApproachRatio: 0.7,
		TickCutoff:         0.98,
		WholeDegrees:       true,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Duration <= 0 {
		c.Duration = def.Duration
	}
	if c.SpinCount < 1 {
		c.SpinCount = def.SpinCount
	}
	if c.FinalApproachRatio <= 0 || c.FinalApproachRatio > 1 {
		c.FinalApproachRatio = def.FinalApproachRatio
	}
	if c.TickCutoff <= 0 || c.TickCutoff > 1 {
		c.TickCutoff = def.TickCutoff
	}
	return c
}

// Spin is a snapshot of the scheduler.
type Spin struct {
	Epoch            uint64        `json:"epoch"`
	State            State         `json:"state"`
	StartRotation    float64       `json:"startRotation"`
	TargetRotation   float64       `json:"targetRotation"`
	StartTime        time.Time     `json:"startTime"`
	Duration         time.Duration `json:"duration"`
	ParticipantCount int           `json:"participantCount"`
	LastTick         int           `json:"lastTick"`
}

// Result is the outcome of one spin.
type Result struct {
	Epoch            uint64  `json:"epoch"`
	FinalRotation    float64 `json:"finalRotation"`
	WinnerIndex      int     `json:"winnerIndex"`
	ParticipantCount int     `json:"participantCount"`
}

// Scheduler runs one spin at a time from request to resolution.
//
// It is not safe for concurrent use: every method and every clock callback
// must be serialized by the owner, typically by handing the owner's lock to
// the clock.
type Scheduler struct {
	cfg      Config
	clock    clock.Clock
	rng      RandomSource
	audio    AudioSignaler
	observer Observer
	logger   *slog.Logger

	state     State
	epoch     uint64
	count     int
	start     float64
	target    float64
	startTime time.Time
	ticks     TickTracker

	frame    clock.Handle
	approach clock.Handle
}

// NewScheduler creates an idle scheduler. Nil collaborators fall back to
// the default random source, muted audio, a no-op observer and the
// default logger.
func NewScheduler(cfg Config, clk clock.Clock, rng RandomSource, audio AudioSignaler, observer Observer, logger *slog.Logger) *Scheduler {
	if rng == nil {
		rng = DefaultRNG()
	}
	if audio == nil {
		audio = MuteAudio{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cfg:      cfg.normalize(),
		clock:    clk,
		rng:      rng,
		audio:    audio,
		observer: observer,
		logger:   logger,
		state:    StateIdle,
	}
}

// Config returns the effective tuning.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	return s.state
}

// Current returns a snapshot of the current or last spin.
func (s *Scheduler) Current() Spin {
	return Spin{
		Epoch:            s.epoch,
		State:            s.state,
		StartRotation:    s.start,
		TargetRotation:   s.target,
		StartTime:        s.startTime,
		Duration:         s.cfg.Duration,
		ParticipantCount: s.count,
		LastTick:         s.ticks.Last(),
	}
}

// VisualRotation returns where the wheel is drawn right now: the eased
// position while spinning, the final rotation otherwise.
func (s *Scheduler) VisualRotation() float64 {
	if s.state != StateSpinning {
		return s.target
	}
	progress := Progress(s.clock.Now().Sub(s.startTime), s.cfg.Duration)
	return RotationAt(s.start, s.target, EaseOutQuart(progress))
}

// RequestSpin starts a spin from currentRotation over participantCount
// slices. A request while a spin is running, or with fewer than two
// participants, is dropped and reported with false.
func (s *Scheduler) RequestSpin(currentRotation float64, participantCount int) (Spin, bool) {
	if s.state == StateSpinning || participantCount < 2 {
		s.logger.Debug("spin request ignored",
			"state", s.state,
			"participants", participantCount,
		)
		return s.Current(), false
	}
	if math.IsNaN(currentRotation) || math.IsInf(currentRotation, 0) {
		s.logger.Warn("spin request ignored: rotation is not finite")
		return s.Current(), false
	}

	s.release()

	offset := Uniform(s.rng, 0, 360)
	if s.cfg.WholeDegrees {
		offset = math.Floor(offset)
	}

	s.epoch++
	s.state = StateSpinning
	s.count = participantCount
	s.start = currentRotation
	s.target = currentRotation + 360*float64(s.cfg.SpinCount) + offset
	s.startTime = s.clock.Now()
	s.ticks = NewTickTracker(currentRotation, participantCount)

	epoch := s.epoch
	snapshot := s.Current()

	s.logger.Debug("spin started",
		"epoch", epoch,
		"from", s.start,
		"to", s.target,
		"participants", participantCount,
	)

	s.audio.Signal(CueSpinStarted)
	s.observer.SpinStarted(snapshot)

	approachDelay := time.Duration(float64(s.cfg.Duration) * s.cfg.FinalApproachRatio)
	s.approach = s.clock.SetTimer(func() { s.onFinalApproach(epoch) }, approachDelay)
	s.frame = s.clock.Schedule(func() { s.onFrame(epoch) })

	return snapshot, true
}

// Settle moves a resolved spin back to idle once its result has been
// acknowledged.
func (s *Scheduler) Settle() bool {
	if s.state != StateResolved {
		return false
	}
	s.state = StateIdle
	return true
}

// Cancel releases the pending frame callback and final-approach timer.
// A running spin is abandoned without a result.
func (s *Scheduler) Cancel() {
	s.release()
	s.epoch++
	if s.state == StateSpinning {
		s.state = StateIdle
	}
}

// onFrame is one display refresh of the progress loop.
func (s *Scheduler) onFrame(epoch uint64) {
	if epoch != s.epoch || s.state != StateSpinning {
		return
	}
	s.frame = 0

	progress := Progress(s.clock.Now().Sub(s.startTime), s.cfg.Duration)
	rotation := RotationAt(s.start, s.target, EaseOutQuart(progress))

	// At most one tick per frame; silent during the final creep.
	if idx, crossed := s.ticks.Advance(rotation); crossed && progress < s.cfg.TickCutoff {
		s.audio.Signal(CueTick)
		s.observer.Tick(s.Current(), idx, rotation)
	}

	if progress < 1 {
		s.frame = s.clock.Schedule(func() { s.onFrame(epoch) })
		return
	}
	s.complete(epoch)
}

func (s *Scheduler) onFinalApproach(epoch uint64) {
	if epoch != s.epoch || s.state != StateSpinning {
		return
	}
	s.approach = 0
	s.observer.FinalApproach(s.Current())
}

// complete resolves the spin; later calls for the same epoch do nothing.
func (s *Scheduler) complete(epoch uint64) {
	if epoch != s.epoch || s.state != StateSpinning {
		return
	}

	s.state = StateResolved
	s.release()

	result := Result{
		Epoch:            epoch,
		FinalRotation:    s.target,
		WinnerIndex:      WinnerIndex(s.target, s.count),
		ParticipantCount: s.count,
	}

	s.logger.Debug("spin resolved",
		"epoch", epoch,
		"rotation", result.FinalRotation,
		"winnerIndex", result.WinnerIndex,
	)

	s.observer.Resolved(result)
	s.audio.Signal(CueWon)
}

func (s *Scheduler) release() {
	s.clock.Cancel(s.frame)
	s.clock.ClearTimer(s.approach)
	s.frame = 0
	s.approach = 0
}
