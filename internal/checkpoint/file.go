package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
	"github.com/akindolabs/akindo/internal/state"
)

// FileStore writes one JSON snapshot per thread under a directory guarded by
// a flock, so two daemon instances cannot checkpoint into the same tree.
// Writes go through an atomic rename; a crash mid-write leaves the previous
// snapshot intact.
type FileStore struct {
	dir  string
	lock *flock.Flock
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.State("CHECKPOINT_DIR_FAILED", "create checkpoint dir").WithCause(err)
	}

	lock := flock.New(filepath.Join(dir, "checkpoints.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.State("CHECKPOINT_LOCK_FAILED", "acquire checkpoint lock").WithCause(err)
	}
	if !locked {
		return nil, errors.Conflict("CHECKPOINT_DIR_BUSY", "checkpoint dir locked by another instance").
			WithRetryable(false)
	}

	logger.Component("checkpoint").Info("Checkpoint store ready", "dir", dir)
	return &FileStore{dir: dir, lock: lock}, nil
}

func (fs *FileStore) Close() error {
	if fs.lock == nil {
		return nil
	}
	err := fs.lock.Unlock()
	fs.lock = nil
	return err
}

func (fs *FileStore) Get(ctx context.Context, threadID string) (*state.Session, error) {
	data, err := os.ReadFile(fs.path(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.State("CHECKPOINT_READ_FAILED", "read checkpoint").WithCause(err)
	}

	var s state.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.DataIntegrity("CHECKPOINT_CORRUPT", "parse checkpoint for "+threadID).WithCause(err)
	}
	return &s, nil
}

func (fs *FileStore) Put(ctx context.Context, s *state.Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.State("CHECKPOINT_ENCODE_FAILED", "encode checkpoint").WithCause(err)
	}
	if err := atomic.WriteFile(fs.path(s.ThreadID), bytes.NewReader(data)); err != nil {
		return errors.State("CHECKPOINT_WRITE_FAILED", "write checkpoint").WithCause(err)
	}
	return nil
}

func (fs *FileStore) Delete(ctx context.Context, threadID string) error {
	if err := os.Remove(fs.path(threadID)); err != nil && !os.IsNotExist(err) {
		return errors.State("CHECKPOINT_DELETE_FAILED", "delete checkpoint").WithCause(err)
	}
	return nil
}

func (fs *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, errors.State("CHECKPOINT_LIST_FAILED", "list checkpoints").WithCause(err)
	}

	var threads []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		threads = append(threads, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return threads, nil
}

func (fs *FileStore) path(threadID string) string {
	// Thread ids come from adapters; keep them filesystem-safe.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, threadID)
	return filepath.Join(fs.dir, safe+".json")
}
