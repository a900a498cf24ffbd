package tokenstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// DefaultFileName is the credentials file created inside the data folder
const DefaultFileName = "credentials.json"

var _ Store = (*File)(nil)

// File keeps the credentials in a JSON document on disk so they survive
// restarts of the console. Writes go to a temporary file that is renamed over
// the document; readers never observe a partially written pair.
type File struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// OpenFile loads (or prepares) the credentials file at path
func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "tokenstore.OpenFile MkdirAll")
	}
	f := &File{path: path, entries: make(map[string]string)}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the location of the credentials document
func (f *File) Path() string {
	return f.path
}

func (f *File) Save(_ context.Context, access string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.copyEntries()
	setEntry(next, AccessKey, access)
	return f.commit(next)
}

func (f *File) SaveAll(_ context.Context, access, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.copyEntries()
	setEntry(next, AccessKey, access)
	setEntry(next, RefreshKey, refresh)
	return f.commit(next)
}

func (f *File) GetAccess(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[AccessKey], nil
}

func (f *File) GetRefresh(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[RefreshKey], nil
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commit(make(map[string]string))
}

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "tokenstore.File load")
	}
	if len(data) == 0 {
		return nil
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return errors.Wrapf(err, "tokenstore.File decode %s", f.path)
	}
	for _, key := range []string{AccessKey, RefreshKey} {
		setEntry(f.entries, key, entries[key])
	}
	return nil
}

// commit persists entries and only then makes them visible to readers
func (f *File) commit(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "tokenstore.File encode")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*")
	if err != nil {
		return errors.Wrap(err, "tokenstore.File CreateTemp")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "tokenstore.File Chmod")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "tokenstore.File Write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "tokenstore.File Close")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Wrap(err, "tokenstore.File Rename")
	}

	f.entries = entries
	return nil
}

func (f *File) copyEntries() map[string]string {
	next := make(map[string]string, len(f.entries))
	for k, v := range f.entries {
		next[k] = v
	}
	return next
}
