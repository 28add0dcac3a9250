package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/D371L/asmodeus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore(), nil)

	snap := &Snapshot{
		WheelID: "ABC123",
		Participants: []domain.Participant{
			{ID: "1", Name: "Lilith", Color: "#dc2626"},
			{ID: "2", Name: "Belial", Color: "#7c3aed"},
		},
		History: domain.History{
			{Participant: domain.Participant{ID: "9", Name: "Gone"}, Spin: 3},
		},
		Settings: domain.Settings{SoundEnabled: false, EliminationMode: true},
		Rotation: 3100,
	}
	require.NoError(t, repo.SaveWheel(ctx, snap))

	got, err := repo.LoadWheel(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, snap.Participants, got.Participants)
	assert.Equal(t, "Gone", got.History[0].Participant.Name)
	assert.Equal(t, snap.Settings, got.Settings)
	assert.Equal(t, 3100.0, got.Rotation)
}

func TestRepository_MissingRecordsUseDefaults(t *testing.T) {
	repo := NewRepository(NewMemoryStore(), nil)

	got, err := repo.LoadWheel(context.Background(), "NOPE")
	require.NoError(t, err)

	assert.Nil(t, got.Participants)
	assert.Empty(t, got.History)
	assert.Equal(t, domain.DefaultSettings(), got.Settings)
	assert.Zero(t, got.Rotation)
}

func TestRepository_MalformedRecordsFallBackIndependently(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store, nil)

	require.NoError(t, store.Put(ctx, WheelKey("W", RecordParticipants), []byte(`[{"id":"1","name":"A"},{"id":"2","name":"  "}]`)))
	require.NoError(t, store.Put(ctx, WheelKey("W", RecordHistory), []byte(`{not json`)))
	require.NoError(t, store.Put(ctx, WheelKey("W", RecordSettings), []byte(`"loud"`)))
	require.NoError(t, store.Put(ctx, WheelKey("W", RecordRotation), []byte(`"fast"`)))

	got, err := repo.LoadWheel(ctx, "W")
	require.NoError(t, err)

	require.Len(t, got.Participants, 1)
	assert.Equal(t, "A", got.Participants[0].Name)
	assert.Empty(t, got.History)
	assert.Equal(t, domain.DefaultSettings(), got.Settings)
	assert.Zero(t, got.Rotation)
}

func TestRepository_PartialSettingsKeepDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store, nil)
	require.NoError(t, store.Put(ctx, WheelKey("W", RecordSettings), []byte(`{"eliminationMode":true}`)))

	got, err := repo.LoadWheel(ctx, "W")
	require.NoError(t, err)

	assert.True(t, got.Settings.EliminationMode)
	assert.True(t, got.Settings.SoundEnabled)
	assert.True(t, got.Settings.DemoMode)
}

type failingStore struct {
	*MemoryStore
}

var errBackend = errors.New("backend down")

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errBackend
}

func TestRepository_BackendFailure(t *testing.T) {
	repo := NewRepository(failingStore{NewMemoryStore()}, nil)

	_, err := repo.LoadWheel(context.Background(), "W")
	assert.ErrorIs(t, err, errBackend)

	_, err = repo.WheelIDs(context.Background())
	assert.ErrorIs(t, err, errBackend)
}

func TestRepository_WheelIndex(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore(), nil)

	ids, err := repo.WheelIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, repo.AddWheelID(ctx, "A"))
	require.NoError(t, repo.AddWheelID(ctx, "B"))
	require.NoError(t, repo.AddWheelID(ctx, "A"))

	ids, err = repo.WheelIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids)

	require.NoError(t, repo.RemoveWheelID(ctx, "A"))
	require.NoError(t, repo.RemoveWheelID(ctx, "missing"))
	ids, err = repo.WheelIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, ids)
}

func TestRepository_DeleteWheel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store, nil)

	require.NoError(t, repo.SaveWheel(ctx, &Snapshot{WheelID: "W", Settings: domain.DefaultSettings()}))
	require.NoError(t, repo.AddWheelID(ctx, "W"))
	assert.Equal(t, 5, store.Len())

	require.NoError(t, repo.DeleteWheel(ctx, "W"))

	ids, err := repo.WheelIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 1, store.Len(), "only the index remains")
}
