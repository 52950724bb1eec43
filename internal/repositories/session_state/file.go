package sessionstate

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
)

const (
	fileExtension  = ".json"
	dirPermissions = 0o750
	filePermission = 0o600
)

// FileConfig holds the configuration for the file repository
type FileConfig struct {
	// Dir is created on first write if it does not exist
	Dir   string
	Clock clock.Clock
}

// Validate ensures all required fields are provided
func (c *FileConfig) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}
	if strings.TrimSpace(c.Dir) == "" {
		return errors.InvalidArgument("state directory is required")
	}
	if c.Clock == nil {
		return errors.InvalidArgument("clock is required")
	}
	return nil
}

// fileRepository keeps one file per key. Writes go to a temp file in the
// same directory and are renamed into place so readers never see a
// partial snapshot.
type fileRepository struct {
	dir   string
	clock clock.Clock
}

// NewFileRepository creates a repository storing snapshots as files
func NewFileRepository(cfg *FileConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &fileRepository{
		dir:   filepath.Clean(cfg.Dir),
		clock: cfg.Clock,
	}, nil
}

var _ Repository = (*fileRepository)(nil)

// Get reads the snapshot file
func (r *fileRepository) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument(errInputNil)
	}
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "get cancelled")
	}

	path := r.path(input.Key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(input.Key)
		}
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to read session state %q", input.Key).
			WithMeta("path", path)
	}

	record := &Record{
		Key:   input.Key,
		Value: data,
	}
	if info, err := os.Stat(path); err == nil {
		record.UpdatedAt = info.ModTime()
	}

	return &GetOutput{Record: record}, nil
}

// Put atomically replaces the snapshot file
func (r *fileRepository) Put(ctx context.Context, input *PutInput) (*PutOutput, error) {
	if err := validatePut(input); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "put cancelled")
	}

	if err := os.MkdirAll(r.dir, dirPermissions); err != nil {
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to create state directory %s", r.dir)
	}

	path := r.path(input.Key)
	if err := writeFileAtomic(path, input.Value); err != nil {
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to write session state %q", input.Key).
			WithMeta("path", path)
	}

	now := r.clock.Now()
	// Keep the file time in step with the injected clock
	_ = os.Chtimes(path, now, now)

	return &PutOutput{
		Record: &Record{
			Key:       input.Key,
			Value:     append([]byte(nil), input.Value...),
			UpdatedAt: now,
		},
	}, nil
}

// Delete removes the snapshot file
func (r *fileRepository) Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument(errInputNil)
	}
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "delete cancelled")
	}

	err := os.Remove(r.path(input.Key))
	if err != nil {
		if os.IsNotExist(err) {
			return &DeleteOutput{Deleted: false}, nil
		}
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to delete session state %q", input.Key)
	}

	return &DeleteOutput{Deleted: true}, nil
}

// Close implements Repository
func (r *fileRepository) Close() error {
	return nil
}

// path escapes the key so any key maps to a single file inside dir
func (r *fileRepository) path(key string) string {
	return filepath.Join(r.dir, url.PathEscape(key)+fileExtension)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, filePermission); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, dirPermissions)
}
