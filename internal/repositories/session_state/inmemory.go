package sessionstate

import (
	"context"
	"sync"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
)

// InMemoryRepository implements Repository using in-memory storage.
// Snapshots do not survive the process.
type InMemoryRepository struct {
	mu    sync.RWMutex
	clock clock.Clock
	store map[string]*Record
}

// NewInMemory creates a new in-memory repository
func NewInMemory(c clock.Clock) *InMemoryRepository {
	if c == nil {
		c = clock.New()
	}
	return &InMemoryRepository{
		clock: c,
		store: make(map[string]*Record),
	}
}

var _ Repository = (*InMemoryRepository)(nil)

// Get retrieves a snapshot by key
func (r *InMemoryRepository) Get(_ context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument(errInputNil)
	}
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.store[input.Key]
	if !exists {
		return nil, notFound(input.Key)
	}

	// Return a copy to prevent external modification
	return &GetOutput{Record: copyRecord(record)}, nil
}

// Put stores a snapshot
func (r *InMemoryRepository) Put(_ context.Context, input *PutInput) (*PutOutput, error) {
	if err := validatePut(input); err != nil {
		return nil, err
	}

	record := &Record{
		Key:       input.Key,
		Value:     append([]byte(nil), input.Value...),
		UpdatedAt: r.clock.Now(),
	}

	r.mu.Lock()
	r.store[input.Key] = record
	r.mu.Unlock()

	return &PutOutput{Record: copyRecord(record)}, nil
}

// Delete removes a snapshot
func (r *InMemoryRepository) Delete(_ context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument(errInputNil)
	}
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.store[input.Key]
	delete(r.store, input.Key)

	return &DeleteOutput{Deleted: exists}, nil
}

// Close implements Repository
func (r *InMemoryRepository) Close() error {
	return nil
}

func copyRecord(record *Record) *Record {
	return &Record{
		Key:       record.Key,
		Value:     append([]byte(nil), record.Value...),
		UpdatedAt: record.UpdatedAt,
	}
}
