package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/D371L/asmodeus/internal/domain"
)

// Snapshot is everything persisted for one wheel. Participants is nil when
// no participants record exists, so the caller can seed its own roster.
type Snapshot struct {
	WheelID      string
	Participants []domain.Participant
	History      domain.History
	Settings     domain.Settings
	Rotation     float64
}

// Repository maps wheels onto Store records. Each record loads on its own:
// a missing or malformed record falls back to its default without
// affecting the others.
type Repository struct {
	store  Store
	logger *slog.Logger

	indexMu sync.Mutex
}

// NewRepository creates a repository over store
func NewRepository(store Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// Store returns the underlying store
func (r *Repository) Store() Store {
	return r.store
}

// LoadWheel reads a wheel's records. It only fails when the backend does.
func (r *Repository) LoadWheel(ctx context.Context, wheelID string) (*Snapshot, error) {
	snap := &Snapshot{
		WheelID:  wheelID,
		History:  make(domain.History, 0),
		Settings: domain.DefaultSettings(),
	}

	var participants []domain.Participant
	found, err := r.load(ctx, WheelKey(wheelID, RecordParticipants), &participants)
	if err != nil {
		return nil, err
	}
	if found {
		snap.Participants = validParticipants(participants)
	}

	var history domain.History
	found, err = r.load(ctx, WheelKey(wheelID, RecordHistory), &history)
	if err != nil {
		return nil, err
	}
	if found {
		snap.History = validHistory(history)
	}

	settings := domain.DefaultSettings()
	found, err = r.load(ctx, WheelKey(wheelID, RecordSettings), &settings)
	if err != nil {
		return nil, err
	}
	if found {
		snap.Settings = settings
	}

	var rotation float64
	found, err = r.load(ctx, WheelKey(wheelID, RecordRotation), &rotation)
	if err != nil {
		return nil, err
	}
	if found && !math.IsNaN(rotation) && !math.IsInf(rotation, 0) {
		snap.Rotation = rotation
	}

	return snap, nil
}

// load decodes one record into v. It reports false for absent or
// malformed records and returns an error only for backend failures.
func (r *Repository) load(ctx context.Context, key string, v any) (bool, error) {
	b, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		r.logger.Warn("ignoring persisted record",
			"key", key,
			"error", fmt.Errorf("%w: %v", ErrMalformedRecord, err),
		)
		return false, nil
	}
	return true, nil
}

func validParticipants(list []domain.Participant) []domain.Participant {
	out := make([]domain.Participant, 0, len(list))
	for _, p := range list {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func validHistory(h domain.History) domain.History {
	out := make(domain.History, 0, len(h))
	for _, e := range h {
		if strings.TrimSpace(e.Participant.Name) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// SaveWheel writes all of a wheel's records
func (r *Repository) SaveWheel(ctx context.Context, snap *Snapshot) error {
	participants := snap.Participants
	if participants == nil {
		participants = []domain.Participant{}
	}
	history := snap.History
	if history == nil {
		history = domain.History{}
	}

	records := map[string]any{
		RecordParticipants: participants,
		RecordHistory:      history,
		RecordSettings:     snap.Settings,
		RecordRotation:     snap.Rotation,
	}

	for _, name := range wheelRecords {
		b, err := json.Marshal(records[name])
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if err := r.store.Put(ctx, WheelKey(snap.WheelID, name), b); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}

// DeleteWheel removes a wheel's records and its index entry
func (r *Repository) DeleteWheel(ctx context.Context, wheelID string) error {
	for _, name := range wheelRecords {
		if err := r.store.Delete(ctx, WheelKey(wheelID, name)); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	return r.RemoveWheelID(ctx, wheelID)
}

// WheelIDs returns the indexed wheel ids
func (r *Repository) WheelIDs(ctx context.Context) ([]string, error) {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	return r.wheelIDs(ctx)
}

func (r *Repository) wheelIDs(ctx context.Context) ([]string, error) {
	var ids []string
	found, err := r.load(ctx, WheelIndexKey, &ids)
	if err != nil {
		return nil, err
	}
	if !found {
		return []string{}, nil
	}
	return ids, nil
}

// AddWheelID adds id to the index
func (r *Repository) AddWheelID(ctx context.Context, wheelID string) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	ids, err := r.wheelIDs(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, wheelID) {
		return nil
	}
	return r.putIndex(ctx, append(ids, wheelID))
}

// RemoveWheelID drops id from the index
func (r *Repository) RemoveWheelID(ctx context.Context, wheelID string) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	ids, err := r.wheelIDs(ctx)
	if err != nil {
		return err
	}
	i := slices.Index(ids, wheelID)
	if i < 0 {
		return nil
	}
	return r.putIndex(ctx, slices.Delete(ids, i, i+1))
}

func (r *Repository) putIndex(ctx context.Context, ids []string) error {
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, WheelIndexKey, b)
}

// Close closes the underlying store
func (r *Repository) Close() error {
	return r.store.Close()
}
