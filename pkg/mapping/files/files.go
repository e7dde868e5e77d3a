// Package files implements a mapping.Store backed by a single YAML document.
//
// The whole document is rewritten atomically on every change. Archive
// renames the document to "<path>.old", mirroring the table rename the
// Postgres backend performs.
package files

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	pkgerrors "github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
)

const documentVersion = 1

// ArchiveSuffix is appended to the document path when archiving.
const ArchiveSuffix = ".old"

type document struct {
	Version int             `yaml:"version"`
	Entries []mapping.Entry `yaml:"entries"`
}

// Store is a YAML-file mapping store.
type Store struct {
	mu   sync.Mutex
	path string
	mem  *mapping.Memory
}

var _ mapping.Store = (*Store)(nil)

// Open loads the document at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, pkgerrors.WrapIO("create", filepath.Dir(path), err)
	}
	entries, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, mem: mapping.NewMemory(entries...)}, nil
}

// Path returns the location of the live document.
func (s *Store) Path() string { return s.path }

// Get implements mapping.Reader.
func (s *Store) Get(ctx context.Context, key string, entity directory.EntityType) (mapping.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.Get(ctx, key, entity)
}

// All implements mapping.Reader.
func (s *Store) All(ctx context.Context, entity directory.EntityType) ([]mapping.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.All(ctx, entity)
}

// Put implements mapping.Store. Memory changes only after the document
// was written.
func (s *Store) Put(ctx context.Context, entry mapping.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, func(next *mapping.Memory) error {
		return next.Put(ctx, entry)
	})
}

// Delete implements mapping.Store.
func (s *Store) Delete(ctx context.Context, key string, entity directory.EntityType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, func(next *mapping.Memory) error {
		return next.Delete(ctx, key, entity)
	})
}

// Archive implements mapping.Store.
func (s *Store) Archive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(ctx, s.mem); err != nil {
		return err
	}
	if err := os.Rename(s.path, s.path+ArchiveSuffix); err != nil {
		return pkgerrors.WrapIO("rename", s.path, err)
	}
	s.mem = mapping.NewMemory()
	return s.save(ctx, s.mem)
}

// Restore implements mapping.Store.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	archived := s.path + ArchiveSuffix
	if _, err := os.Stat(archived); errors.Is(err, fs.ErrNotExist) {
		return mapping.ErrNoArchive
	}
	entries, err := load(archived)
	if err != nil {
		return err
	}
	mem := mapping.NewMemory(entries...)
	if err := s.save(ctx, mem); err != nil {
		return err
	}
	s.mem = mem
	return nil
}

// commit applies change to a copy of the live entries, writes the copy and
// swaps it in.
func (s *Store) commit(ctx context.Context, change func(*mapping.Memory) error) error {
	entries, err := snapshot(ctx, s.mem)
	if err != nil {
		return err
	}
	next := mapping.NewMemory(entries...)
	if err := change(next); err != nil {
		return err
	}
	if err := s.save(ctx, next); err != nil {
		return err
	}
	s.mem = next
	return nil
}

func snapshot(ctx context.Context, mem *mapping.Memory) ([]mapping.Entry, error) {
	var entries []mapping.Entry
	for _, entity := range []directory.EntityType{directory.EntityPerson, directory.EntityGroup} {
		all, err := mem.All(ctx, entity)
		if err != nil {
			return nil, err
		}
		entries = append(entries, all...)
	}
	return entries, nil
}

func (s *Store) save(ctx context.Context, mem *mapping.Memory) error {
	entries, err := snapshot(ctx, mem)
	if err != nil {
		return err
	}

	data, err := yaml.MarshalWithOptions(document{Version: documentVersion, Entries: entries},
		yaml.Indent(2), yaml.IndentSequence(false))
	if err != nil {
		return pkgerrors.WrapParse("yaml", s.path, err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return pkgerrors.WrapIO("write", s.path, err)
	}
	return nil
}

func load(path string) ([]mapping.Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.WrapIO("read", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.WrapParse("yaml", path, err)
	}
	if doc.Version > documentVersion {
		return nil, pkgerrors.NewParseError("yaml", path, "unsupported mapping document version", nil)
	}
	return doc.Entries, nil
}
