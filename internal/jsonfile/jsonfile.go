// Package jsonfile persists a JSON object of keyed records in a single file.
//
// Readers see a consistent document because writes go to a temporary file that
// is renamed over the original. Writers serialise on an exclusive lock file
// (<path>.lock) shared across processes, re-read the document under the lock and
// change only the keys they own, so concurrent writers never clobber each other.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
	"github.com/gofrs/flock"
)

// DefaultLockTimeout is the maximum time to wait for the file lock.
const DefaultLockTimeout = 2 * time.Second

// Document is a JSON object on disk mapping keys to raw records.
type Document struct {
	path        string
	lock        *flock.Flock
	mu          sync.Mutex // flock does not exclude goroutines sharing one handle
	lockTimeout time.Duration
	log         *slog.Logger
}

// New returns a Document stored at path. The file and its directory are created on first write.
func New(logger *slog.Logger, path string) *Document {
	return &Document{
		path:        path,
		lock:        flock.New(path + ".lock"),
		lockTimeout: DefaultLockTimeout,
		log:         logutil.OrDiscard(logger),
	}
}

// Path returns the location of the document.
func (d *Document) Path() string {
	return d.path
}

// SetLockTimeout changes how long Update waits for the file lock.
func (d *Document) SetLockTimeout(timeout time.Duration) {
	d.lockTimeout = timeout
}

// Load reads the whole document. A missing or empty file is an empty document;
// anything unreadable is a models.DatabaseError so it is never mistaken for "no records".
func (d *Document) Load() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)

	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, models.NewDatabaseError(err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, models.NewDatabaseError(fmt.Errorf("decode %s: %w", d.path, err))
	}
	return doc, nil
}

// Update runs fn against the current document while holding the process mutex
// and the file lock. The document is written back only when fn reports a change.
// An error returned by fn is passed through unchanged.
func (d *Document) Update(ctx context.Context, fn func(doc map[string]json.RawMessage) (bool, error)) error {
	defer logutil.NewTimingLogger(d.log, time.Now(), "updated json document", "path", d.path)()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0o750); err != nil {
		return logutil.LogAndWrapErr(d.log, "failed to create document directory", models.NewDatabaseError(err), "path", d.path)
	}

	lockCtx, cancel := context.WithTimeout(ctx, d.lockTimeout)
	defer cancel()

	locked, err := d.lock.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil {
		return logutil.LogAndWrapErr(d.log, "failed to acquire document lock", models.NewDatabaseError(err), "path", d.path)
	}
	if !locked {
		return logutil.LogAndWrapErr(d.log, "failed to acquire document lock",
			models.NewDatabaseError(fmt.Errorf("timeout after %v", d.lockTimeout)), "path", d.path)
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.log.Warn("failed to release document lock", "path", d.path, "err", err)
		}
	}()

	doc, err := d.Load()
	if err != nil {
		return logutil.LogAndWrapErr(d.log, "failed to read document", err, "path", d.path)
	}

	changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}

	if err := d.save(doc); err != nil {
		return logutil.LogAndWrapErr(d.log, "failed to write document", err, "path", d.path)
	}
	return nil
}

// Close releases the lock file handle.
func (d *Document) Close() error {
	return d.lock.Close()
}

func (d *Document) save(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return models.NewTransformationError(err.Error())
	}
	if err := writeFileAtomic(d.path, append(data, '\n'), 0o600); err != nil {
		return models.NewDatabaseError(err)
	}
	return nil
}

// writeFileAtomic writes data to a temporary file in the target directory and
// renames it over path, so readers see either the old or the new document.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
