// Package storage persists wheel records (participants, history, settings
// and rotation) as plain JSON values under fixed string keys.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key has no record
	ErrNotFound = errors.New("record not found")
	// ErrMalformedRecord marks a record that exists but cannot be decoded
	ErrMalformedRecord = errors.New("malformed record")
)

// Store is a byte-oriented key/value store
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keys
const (
	keyPrefix     = "asmodeus:"
	WheelIndexKey = keyPrefix + "wheels"
)

// Record names stored per wheel
const (
	RecordParticipants = "participants"
	RecordHistory      = "history"
	RecordSettings     = "settings"
	RecordRotation     = "rotation"
)

var wheelRecords = []string{RecordParticipants, RecordHistory, RecordSettings, RecordRotation}

// WheelKey returns the key of one record of a wheel
func WheelKey(wheelID, record string) string {
	return keyPrefix + "wheel:" + wheelID + ":" + record
}
