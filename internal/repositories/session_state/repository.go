// Package sessionstate provides the storage for serialized session state
// snapshots. Every backend is a small key/value store holding one opaque
// snapshot per key.
package sessionstate

import (
	"context"
	"strings"
	"time"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=sessionstatemock github.com/KirkDiggler/rpg-sheet/internal/repositories/session_state Repository

const (
	// DefaultKey is the storage key the session state lives under
	DefaultKey = "velsirion-character-state"

	errKeyEmpty   = "key cannot be empty"
	errValueEmpty = "value cannot be empty"
	errInputNil   = "input is required"
)

// Record is a stored snapshot
type Record struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// GetInput contains parameters for reading a snapshot
type GetInput struct {
	Key string
}

// GetOutput contains the stored snapshot
type GetOutput struct {
	Record *Record
}

// PutInput contains parameters for writing a snapshot
type PutInput struct {
	Key   string
	Value []byte
}

// PutOutput contains the result of writing a snapshot
type PutOutput struct {
	Record *Record
}

// DeleteInput contains parameters for removing a snapshot
type DeleteInput struct {
	Key string
}

// DeleteOutput contains the result of removing a snapshot
type DeleteOutput struct {
	Deleted bool
}

// Repository defines snapshot storage operations
type Repository interface {
	// Get returns the snapshot under the key, or a NotFound error
	Get(ctx context.Context, input *GetInput) (*GetOutput, error)

	// Put replaces the snapshot under the key
	Put(ctx context.Context, input *PutInput) (*PutOutput, error)

	// Delete removes the snapshot under the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error)

	// Close releases backend resources
	Close() error
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.InvalidArgument(errKeyEmpty)
	}
	return nil
}

func validatePut(input *PutInput) error {
	if input == nil {
		return errors.InvalidArgument(errInputNil)
	}
	if err := validateKey(input.Key); err != nil {
		return err
	}
	if len(input.Value) == 0 {
		return errors.InvalidArgument(errValueEmpty)
	}
	return nil
}

func notFound(key string) error {
	return errors.NotFoundf("session state %q not found", key).WithMeta("key", key)
}
