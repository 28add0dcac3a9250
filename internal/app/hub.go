package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/D371L/asmodeus/internal/clock"
	"github.com/D371L/asmodeus/internal/config"
	"github.com/D371L/asmodeus/internal/domain"
	"github.com/D371L/asmodeus/internal/spin"
	"github.com/D371L/asmodeus/internal/storage"
)

// WheelCodeChars are characters used for wheel codes (no ambiguous chars)
const WheelCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// HubOption customizes a WheelHub
type HubOption func(*WheelHub)

// WithClockFactory replaces the real-time frame clock, mostly for tests
func WithClockFactory(f ClockFactory) HubOption {
	return func(h *WheelHub) {
		h.newClock = f
	}
}

// WithRandomSource makes every wheel draw from rng. rng must be safe to
// share if more than one wheel spins at a time.
func WithRandomSource(rng spin.RandomSource) HubOption {
	return func(h *WheelHub) {
		h.rng = rng
	}
}

// WheelHub manages all active wheel sessions
type WheelHub struct {
	sessions map[string]*WheelSession
	mu       sync.RWMutex
	cfg      *config.Config
	repo     *storage.Repository
	logger   *slog.Logger

	newClock ClockFactory
	rng      spin.RandomSource

	cron      *cron.Cron
	closeOnce sync.Once
}

// NewWheelHub creates a new wheel hub. repo may be nil, in which case
// nothing is persisted.
func NewWheelHub(cfg *config.Config, repo *storage.Repository, logger *slog.Logger, opts ...HubOption) *WheelHub {
	if logger == nil {
		logger = slog.Default()
	}

	hub := &WheelHub{
		sessions: make(map[string]*WheelSession),
		cfg:      cfg,
		repo:     repo,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(hub)
	}

	if hub.newClock == nil {
		frameRate := cfg.Wheel.FrameRate
		hub.newClock = func(l sync.Locker) clock.Clock {
			return clock.NewFrameClock(frameRate, l)
		}
	}

	return hub
}

// StartJobs schedules the periodic persistence flush and stale wheel cleanup
func (h *WheelHub) StartJobs() error {
	c := cron.New()

	if h.repo != nil && h.cfg.Storage.PersistSchedule != "" {
		if _, err := c.AddFunc(h.cfg.Storage.PersistSchedule, func() {
			h.FlushDirty(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule persistence: %w", err)
		}
	}

	if h.cfg.Maintenance.CleanupSchedule != "" {
		if _, err := c.AddFunc(h.cfg.Maintenance.CleanupSchedule, func() {
			h.CleanupStaleWheels(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule cleanup: %w", err)
		}
	}

	c.Start()
	h.mu.Lock()
	h.cron = c
	h.mu.Unlock()

	h.logger.Info("background jobs started",
		"persist", h.cfg.Storage.PersistSchedule,
		"cleanup", h.cfg.Maintenance.CleanupSchedule,
	)
	return nil
}

func (h *WheelHub) sessionOptions(wheelID string) SessionOptions {
	rng := h.rng
	if rng == nil && h.cfg.Wheel.RNGSeed != 0 {
		hash := fnv.New64a()
		hash.Write([]byte(wheelID))
		rng = spin.NewSeededRNG(h.cfg.Wheel.RNGSeed ^ hash.Sum64())
	}

	return SessionOptions{
		Spin:     h.cfg.SpinConfig(),
		NewClock: h.newClock,
		RNG:      rng,
	}
}

// CreateWheel creates a new wheel and returns its session
func (h *WheelHub) CreateWheel(ctx context.Context, settings *domain.SettingsPatch) (*WheelSession, error) {
	// Evicted wheels keep their codes
	var stored []string
	if h.repo != nil {
		if err := h.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			stored, err = h.repo.WheelIDs(ctx)
			return err
		}); err != nil {
			return nil, fmt.Errorf("list wheels: %w", err)
		}
	}
	taken := func(id string) bool {
		_, exists := h.sessions[id]
		return exists || slices.Contains(stored, id)
	}

	h.mu.Lock()

	// Generate unique wheel code
	var wheelID string
	for attempts := 0; attempts < 10; attempts++ {
		wheelID = h.generateWheelCode()
		if !taken(wheelID) {
			break
		}
	}

	// Check if we found a unique code
	if taken(wheelID) {
		h.mu.Unlock()
		return nil, fmt.Errorf("failed to generate unique wheel code")
	}

	initial := domain.DefaultSettings()
	if settings != nil {
		initial = initial.Apply(*settings)
	}

	wheel := domain.NewWheel(wheelID, h.cfg.Limits(), initial)
	session := NewWheelSession(wheel, h.sessionOptions(wheelID), h.logger)
	h.sessions[wheelID] = session
	h.mu.Unlock()

	h.logger.Info("wheel created", "wheelId", wheelID, "participants", len(wheel.Participants))

	if h.repo != nil {
		if err := h.save(ctx, session); err != nil {
			h.logger.Error("failed to persist new wheel", "wheelId", wheelID, "error", err)
		} else if err := h.withTimeout(ctx, func(ctx context.Context) error {
			return h.repo.AddWheelID(ctx, wheelID)
		}); err != nil {
			h.logger.Error("failed to index new wheel", "wheelId", wheelID, "error", err)
		}
	}

	return session, nil
}

// GetSession returns a wheel session by ID. A wheel evicted from memory
// is loaded back from storage.
func (h *WheelHub) GetSession(wheelID string) (*WheelSession, error) {
	h.mu.RLock()
	session, ok := h.sessions[wheelID]
	h.mu.RUnlock()

	if ok {
		return session, nil
	}
	return h.loadSession(context.Background(), wheelID)
}

// loadSession brings an indexed wheel back from storage
func (h *WheelHub) loadSession(ctx context.Context, wheelID string) (*WheelSession, error) {
	if h.repo == nil {
		return nil, domain.ErrWheelNotFound
	}

	var snap *storage.Snapshot
	err := h.withTimeout(ctx, func(ctx context.Context) error {
		ids, err := h.repo.WheelIDs(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(ids, wheelID) {
			return domain.ErrWheelNotFound
		}
		snap, err = h.repo.LoadWheel(ctx, wheelID)
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrWheelNotFound) {
			h.logger.Error("failed to load wheel", "wheelId", wheelID, "error", err)
		}
		return nil, domain.ErrWheelNotFound
	}

	session := h.newRestoredSession(snap)

	h.mu.Lock()
	if existing, ok := h.sessions[wheelID]; ok {
		// Loaded concurrently by another request
		h.mu.Unlock()
		session.Close()
		return existing, nil
	}
	h.sessions[wheelID] = session
	h.mu.Unlock()

	h.logger.Info("wheel loaded from storage", "wheelId", wheelID)
	return session, nil
}

// DeleteWheel removes a wheel session and its persisted records
func (h *WheelHub) DeleteWheel(ctx context.Context, wheelID string) error {
	h.mu.Lock()
	session, ok := h.sessions[wheelID]
	if ok {
		delete(h.sessions, wheelID)
	}
	h.mu.Unlock()

	if !ok {
		return domain.ErrWheelNotFound
	}

	session.Close()
	h.logger.Info("wheel deleted", "wheelId", wheelID)

	if h.repo != nil {
		return h.withTimeout(ctx, func(ctx context.Context) error {
			return h.repo.DeleteWheel(ctx, wheelID)
		})
	}
	return nil
}

// GetSessionCount returns the number of active sessions
func (h *WheelHub) GetSessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// GetTotalClientCount returns the number of connected clients across all wheels
func (h *WheelHub) GetTotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, session := range h.sessions {
		total += session.GetClientCount()
	}
	return total
}

// GetSpinningCount returns how many wheels are spinning right now
func (h *WheelHub) GetSpinningCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, session := range h.sessions {
		if session.GetPhase() == domain.PhaseSpinning {
			total++
		}
	}
	return total
}

// Restore loads every indexed wheel from storage. A wheel whose records
// cannot be read is skipped; missing or malformed records use defaults.
func (h *WheelHub) Restore(ctx context.Context) (int, error) {
	if h.repo == nil {
		return 0, nil
	}

	var ids []string
	err := h.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		ids, err = h.repo.WheelIDs(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list wheels: %w", err)
	}

	restored := 0
	for _, id := range ids {
		var snap *storage.Snapshot
		err := h.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			snap, err = h.repo.LoadWheel(ctx, id)
			return err
		})
		if err != nil {
			h.logger.Error("failed to restore wheel", "wheelId", id, "error", err)
			continue
		}

		h.restoreSnapshot(snap)
		restored++
	}

	h.logger.Info("wheels restored", "count", restored)
	return restored, nil
}

func (h *WheelHub) restoreSnapshot(snap *storage.Snapshot) *WheelSession {
	session := h.newRestoredSession(snap)

	h.mu.Lock()
	if old, ok := h.sessions[snap.WheelID]; ok {
		old.Close()
	}
	h.sessions[snap.WheelID] = session
	h.mu.Unlock()

	return session
}

func (h *WheelHub) newRestoredSession(snap *storage.Snapshot) *WheelSession {
	wheel := domain.NewWheel(snap.WheelID, h.cfg.Limits(), snap.Settings)

	// No participants record: keep the roster NewWheel seeded
	participants := snap.Participants
	if participants == nil {
		participants = domain.Copy(wheel.Participants)
	}
	wheel.Restore(participants, snap.History, snap.Settings, snap.Rotation)

	return NewWheelSession(wheel, h.sessionOptions(snap.WheelID), h.logger)
}

// FlushDirty saves every session with unsaved changes
func (h *WheelHub) FlushDirty(ctx context.Context) int {
	if h.repo == nil {
		return 0
	}

	h.mu.RLock()
	sessions := make([]*WheelSession, 0, len(h.sessions))
	for _, session := range h.sessions {
		if session.IsDirty() {
			sessions = append(sessions, session)
		}
	}
	h.mu.RUnlock()

	saved := 0
	for _, session := range sessions {
		if err := h.save(ctx, session); err != nil {
			h.logger.Error("failed to persist wheel", "wheelId", session.GetWheelID(), "error", err)
			continue
		}
		saved++
	}

	if saved > 0 {
		h.logger.Debug("wheels persisted", "count", saved)
	}
	return saved
}

func (h *WheelHub) save(ctx context.Context, session *WheelSession) error {
	snap, version := session.Snapshot()
	err := h.withTimeout(ctx, func(ctx context.Context) error {
		return h.repo.SaveWheel(ctx, snap)
	})
	if err != nil {
		return err
	}
	session.MarkClean(version)
	return nil
}

func (h *WheelHub) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	timeout := h.cfg.Storage.Timeout
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// CleanupStaleWheels evicts wheels nobody is connected to that have been
// idle for longer than the stale timeout. Their records stay in storage,
// so GetSession and Restore can bring them back.
func (h *WheelHub) CleanupStaleWheels(ctx context.Context) int {
	timeout := h.cfg.Maintenance.StaleWheelTimeout
	if timeout <= 0 {
		return 0
	}

	h.mu.RLock()
	now := time.Now()
	stale := make([]string, 0)
	for wheelID, session := range h.sessions {
		if session.GetClientCount() == 0 && now.Sub(session.GetLastActivity()) > timeout {
			stale = append(stale, wheelID)
		}
	}
	h.mu.RUnlock()

	evicted := 0
	for _, wheelID := range stale {
		if err := h.evict(ctx, wheelID); err != nil {
			h.logger.Error("failed to evict stale wheel", "wheelId", wheelID, "error", err)
			continue
		}
		h.logger.Info("stale wheel evicted", "wheelId", wheelID)
		evicted++
	}
	return evicted
}

// evict saves a session's pending changes, then drops it from memory.
// A session that cannot be saved stays loaded.
func (h *WheelHub) evict(ctx context.Context, wheelID string) error {
	h.mu.RLock()
	session, ok := h.sessions[wheelID]
	h.mu.RUnlock()
	if !ok {
		return domain.ErrWheelNotFound
	}

	if h.repo != nil && session.IsDirty() {
		if err := h.save(ctx, session); err != nil {
			return err
		}
	}

	h.mu.Lock()
	if h.sessions[wheelID] != session {
		h.mu.Unlock()
		return domain.ErrWheelNotFound
	}
	delete(h.sessions, wheelID)
	h.mu.Unlock()

	session.Close()
	return nil
}

// Close stops background jobs, saves pending changes and shuts down all
// sessions
func (h *WheelHub) Close(ctx context.Context) {
	h.closeOnce.Do(func() {
		h.mu.RLock()
		c := h.cron
		h.mu.RUnlock()
		if c != nil {
			<-c.Stop().Done()
		}

		h.FlushDirty(ctx)

		h.mu.Lock()
		for _, session := range h.sessions {
			session.Close()
		}
		h.sessions = make(map[string]*WheelSession)
		h.mu.Unlock()

		if h.repo != nil {
			if err := h.repo.Close(); err != nil {
				h.logger.Error("failed to close storage", "error", err)
			}
		}
	})
}

// generateWheelCode generates a random wheel code
func (h *WheelHub) generateWheelCode() string {
	length := h.cfg.Wheel.WheelCodeLength
	if length <= 0 {
		length = 6
	}

	b := make([]byte, length)
	rand.Read(b)

	code := make([]byte, length)
	for i := range code {
		code[i] = WheelCodeChars[int(b[i])%len(WheelCodeChars)]
	}

	return string(code)
}
