package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/D371L/asmodeus/internal/clock"
	"github.com/D371L/asmodeus/internal/domain"
	"github.com/D371L/asmodeus/internal/spin"
	"github.com/D371L/asmodeus/internal/storage"
)

const eventBufferSize = 256

// ClientConnection represents a connected client
type ClientConnection interface {
	Send(message interface{}) error
	GetClientID() string
	Close() error
}

// ClockFactory builds the clock a session's engine runs on. Callbacks must
// run holding locker.
type ClockFactory func(locker sync.Locker) clock.Clock

// SessionOptions configures a wheel session
type SessionOptions struct {
	Spin     spin.Config
	NewClock ClockFactory
	RNG      spin.RandomSource
	Messages []string
}

// WheelSession wraps a wheel and its spin engine with concurrency control
// and client management.
//
// mu guards the wheel and the scheduler. The engine's clock runs every
// callback with mu held, so engine notifications arrive already locked.
type WheelSession struct {
	wheel     *domain.Wheel
	scheduler *spin.Scheduler
	clock     clock.Clock
	messages  *messagePicker
	mu        sync.RWMutex
	clients   map[string]ClientConnection // clientID -> client
	clientsMu sync.RWMutex
	logger    *slog.Logger

	version      uint64 // bumped on every persisted change
	savedVersion uint64
	lastActivity time.Time

	// Event channel for broadcasting
	events chan *domain.WheelEvent
	done   chan struct{}
}

// NewWheelSession creates a new wheel session
func NewWheelSession(wheel *domain.Wheel, opts SessionOptions, logger *slog.Logger) *WheelSession {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Messages == nil {
		opts.Messages = VictoryMessages
	}

	session := &WheelSession{
		wheel:        wheel,
		clients:      make(map[string]ClientConnection),
		logger:       logger.With("wheelId", wheel.ID),
		lastActivity: time.Now(),
		events:       make(chan *domain.WheelEvent, eventBufferSize),
		done:         make(chan struct{}),
	}

	if opts.NewClock == nil {
		opts.NewClock = func(l sync.Locker) clock.Clock {
			return clock.NewFrameClock(clock.DefaultFrameRate, l)
		}
	}
	session.clock = opts.NewClock(&session.mu)
	session.messages = newMessagePicker(opts.Messages, opts.RNG)
	session.scheduler = spin.NewScheduler(
		opts.Spin,
		session.clock,
		opts.RNG,
		audioBridge{s: session},
		engineBridge{s: session},
		session.logger,
	)

	// Start event broadcaster
	go session.eventLoop()

	return session
}

// GetWheelID returns the wheel ID
func (s *WheelSession) GetWheelID() string {
	return s.wheel.ID
}

// GetCreatedAt returns when the wheel was created
func (s *WheelSession) GetCreatedAt() time.Time {
	return s.wheel.CreatedAt
}

// GetLastActivity returns when the wheel was last used
func (s *WheelSession) GetLastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// GetParticipantCount returns the number of participants
func (s *WheelSession) GetParticipantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wheel.Participants)
}

// GetPhase returns the current spin phase
func (s *WheelSession) GetPhase() domain.SpinPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wheel.Phase
}

// RegisterClient registers a client connection. A previous connection
// with the same ID is closed.
func (s *WheelSession) RegisterClient(clientID string, client ClientConnection) {
	s.clientsMu.Lock()
	old, replaced := s.clients[clientID]
	s.clients[clientID] = client
	s.clientsMu.Unlock()

	if replaced && old != client {
		old.Close()
	}

	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// UnregisterClient removes a client connection if it is still the one
// registered under clientID
func (s *WheelSession) UnregisterClient(clientID string, client ClientConnection) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if current, ok := s.clients[clientID]; ok && current == client {
		delete(s.clients, clientID)
	}
}

// GetClientCount returns the number of connected clients
func (s *WheelSession) GetClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// AddParticipant adds a participant to the wheel
func (s *WheelSession) AddParticipant(name string) (*domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.wheel.AddParticipant(name)
	if err != nil {
		return nil, err
	}

	s.changedUnlocked()
	s.queueParticipantsUnlocked()
	return p, nil
}

// RemoveParticipant removes a participant from the wheel
func (s *WheelSession) RemoveParticipant(participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.wheel.RemoveParticipant(participantID); err != nil {
		return err
	}

	s.changedUnlocked()
	s.queueParticipantsUnlocked()
	return nil
}

// ReorderParticipants moves the participant at from to position to
func (s *WheelSession) ReorderParticipants(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wheel.ReorderParticipant(from, to); err != nil {
		return err
	}

	s.changedUnlocked()
	s.queueParticipantsUnlocked()
	return nil
}

// AddPreset appends the demo roster names that are missing
func (s *WheelSession) AddPreset() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.wheel.AddPreset()
	if err != nil {
		return 0, err
	}

	if added > 0 {
		s.changedUnlocked()
		s.queueParticipantsUnlocked()
	}
	return added, nil
}

// Reset restores the starting roster and clears history
func (s *WheelSession) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wheel.Reset(); err != nil {
		return err
	}
	s.scheduler.Settle()

	s.changedUnlocked()
	s.queueEvent(domain.NewEvent(domain.EventWheelReset, s.wheel.ID, s.wheel.State()))
	return nil
}

// UpdateSettings applies a settings patch. Allowed at any time.
func (s *WheelSession) UpdateSettings(patch domain.SettingsPatch) domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.wheel.UpdateSettings(patch)

	s.changedUnlocked()
	s.queueEvent(domain.NewEvent(domain.EventSettingsUpdated, s.wheel.ID, &domain.SettingsPayload{
		Settings: settings,
	}))
	return settings
}

// Spin starts a spin. A request that cannot start (already spinning, a
// result still shown, fewer than two participants) does nothing and
// returns false.
func (s *WheelSession) Spin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = time.Now()

	if err := s.wheel.BeginSpin(); err != nil {
		s.logger.Debug("spin request ignored",
			"phase", s.wheel.Phase,
			"participants", len(s.wheel.Participants),
		)
		return false
	}

	if _, ok := s.scheduler.RequestSpin(s.wheel.Rotation, len(s.wheel.SpinRoster())); !ok {
		s.wheel.AbortSpin()
		return false
	}
	return true
}

// Acknowledge dismisses the shown winner, eliminating it when elimination
// mode is on
func (s *WheelSession) Acknowledge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	winner, eliminated, err := s.wheel.Acknowledge()
	if err != nil {
		return err
	}
	s.scheduler.Settle()

	if eliminated {
		s.logger.Info("winner eliminated", "participant", winner.Name)
	}

	s.changedUnlocked()
	s.queueEvent(domain.NewEvent(domain.EventResultAcknowledged, s.wheel.ID, &domain.ResultAcknowledgedPayload{
		Winner:       winner,
		Eliminated:   eliminated,
		Participants: domain.Copy(s.wheel.Participants),
		CanSpin:      s.wheel.CanSpin(),
	}))
	return nil
}

// TransformFinished records that a client's presentation transform ended.
// Resolution never waits for it.
func (s *WheelSession) TransformFinished(clientID string, epoch uint64) {
	s.mu.RLock()
	current := s.scheduler.Current()
	s.mu.RUnlock()

	s.logger.Debug("presentation transform finished",
		"clientId", clientID,
		"epoch", epoch,
		"currentEpoch", current.Epoch,
		"state", current.State,
	)
}

// GetState returns the current wheel state. While spinning the rotation
// is the eased position at this instant.
func (s *WheelSession) GetState() *domain.WheelState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.wheel.State()
	if s.wheel.Phase == domain.PhaseSpinning {
		state.Rotation = s.scheduler.VisualRotation()
		state.Spin = s.spinPayloadUnlocked(s.scheduler.Current())
	}
	return state
}

// GetHistory returns recent winners, most recent first
func (s *WheelSession) GetHistory() domain.History {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(domain.History{}, s.wheel.History...)
}

// Snapshot returns the persistable state and its version
func (s *WheelSession) Snapshot() (*storage.Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &storage.Snapshot{
		WheelID:      s.wheel.ID,
		Participants: domain.Copy(s.wheel.Participants),
		History:      append(domain.History{}, s.wheel.History...),
		Settings:     s.wheel.Settings,
		Rotation:     s.wheel.Rotation,
	}, s.version
}

// MarkClean records that the snapshot at version has been saved
func (s *WheelSession) MarkClean(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.savedVersion {
		s.savedVersion = version
	}
}

// IsDirty reports whether there are unsaved changes
func (s *WheelSession) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.savedVersion
}

// changedUnlocked marks a persisted change. Caller must hold s.mu.
func (s *WheelSession) changedUnlocked() {
	s.version++
	s.lastActivity = time.Now()
}

func (s *WheelSession) queueParticipantsUnlocked() {
	s.queueEvent(domain.NewEvent(domain.EventParticipantsUpdated, s.wheel.ID, &domain.ParticipantsPayload{
		Participants: domain.Copy(s.wheel.Participants),
		CanSpin:      s.wheel.CanSpin(),
	}))
}

func (s *WheelSession) spinPayloadUnlocked(sp spin.Spin) *domain.SpinPayload {
	return &domain.SpinPayload{
		Epoch:         sp.Epoch,
		Rotation:      sp.TargetRotation,
		StartRotation: sp.StartRotation,
		IsSpinning:    sp.State == spin.StateSpinning,
		StartTime:     sp.StartTime,
		DurationMs:    sp.Duration.Milliseconds(),
		Participants:  domain.Copy(s.wheel.SpinRoster()),
	}
}

// queueEvent adds an event to the broadcast queue
func (s *WheelSession) queueEvent(event *domain.WheelEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("event queue full, dropping event", "type", event.Type)
	}
}

// eventLoop processes events and broadcasts to clients
func (s *WheelSession) eventLoop() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.events:
			s.broadcastEvent(event)
		}
	}
}

// broadcastEvent sends an event to every client
func (s *WheelSession) broadcastEvent(event *domain.WheelEvent) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for clientID, client := range s.clients {
		if err := client.Send(event); err != nil {
			s.logger.Debug("failed to send to client", "clientId", clientID, "error", err)
		}
	}
}

// Close stops the engine and shuts down the session
func (s *WheelSession) Close() {
	select {
	case <-s.done:
		return // Already closed
	default:
		close(s.done)
	}

	s.mu.Lock()
	s.scheduler.Cancel()
	if s.wheel.AbortSpin() {
		s.logger.Info("spin abandoned on close")
	}
	s.mu.Unlock()

	if stopper, ok := s.clock.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	// Close all client connections
	s.clientsMu.Lock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clients = make(map[string]ClientConnection)
	s.clientsMu.Unlock()
}

// engineBridge forwards engine notifications into the wheel and out to
// clients. Every method runs with the session lock held.
type engineBridge struct {
	s *WheelSession
}

func (b engineBridge) SpinStarted(sp spin.Spin) {
	s := b.s
	s.queueEvent(domain.NewEvent(domain.EventSpinStarted, s.wheel.ID, s.spinPayloadUnlocked(sp)))
}

func (b engineBridge) Tick(sp spin.Spin, tickIndex int, rotation float64) {
	s := b.s
	s.queueEvent(domain.NewEvent(domain.EventTick, s.wheel.ID, &domain.TickPayload{
		Epoch:     sp.Epoch,
		TickIndex: tickIndex,
		Rotation:  rotation,
	}))
}

func (b engineBridge) FinalApproach(sp spin.Spin) {
	s := b.s
	s.queueEvent(domain.NewEvent(domain.EventFinalApproach, s.wheel.ID, &domain.FinalApproachPayload{
		Epoch: sp.Epoch,
	}))
}

func (b engineBridge) Resolved(r spin.Result) {
	s := b.s

	entry, err := s.wheel.Resolve(r.FinalRotation, r.WinnerIndex)
	if err != nil {
		s.logger.Error("failed to resolve spin", "epoch", r.Epoch, "winnerIndex", r.WinnerIndex, "error", err)
		s.wheel.AbortSpin()
		return
	}

	s.changedUnlocked()
	s.logger.Info("spin resolved",
		"winner", entry.Participant.Name,
		"rotation", r.FinalRotation,
		"spin", entry.Spin,
	)

	s.queueEvent(domain.NewEvent(domain.EventSpinResolved, s.wheel.ID, &domain.SpinResolvedPayload{
		Epoch:       r.Epoch,
		WinnerID:    entry.Participant.ID,
		Winner:      entry.Participant,
		WinnerIndex: r.WinnerIndex,
		Rotation:    r.FinalRotation,
		IsSpinning:  false,
		Message:     s.messages.Pick(),
		History:     append(domain.History{}, s.wheel.History...),
	}))
}
