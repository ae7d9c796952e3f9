// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"log/slog"
	"sync"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/docstore"
	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/lock"
	"github.com/akihiro/secure-storage/internal/log"
)

// DocumentOptions configures a Document adapter.
type DocumentOptions struct {
	// Slot is the backend target holding the JSON document.
	Slot string
	// LockPath, when set, names a file locked around every load/store so
	// processes sharing it do not lose each other's updates.
	LockPath string
	Logger   *slog.Logger
}

// Document stores the whole map in one slot. Each mutation is one load and
// one store. Without LockPath, concurrent writers in different processes
// race and the last store wins.
type Document struct {
	codec    *docstore.Codec
	lockPath string
	log      *slog.Logger

	mu sync.Mutex
}

// NewDocument returns a Document adapter over store.
func NewDocument(store backend.Backend, opts DocumentOptions) *Document {
	return &Document{
		codec:    docstore.New(store, opts.Slot),
		lockPath: opts.LockPath,
		log:      log.OrDiscard(opts.Logger),
	}
}

func (d *Document) exclusive(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lockPath == "" {
		return fn()
	}
	l, err := lock.Acquire(d.lockPath)
	if err != nil {
		return errors.Wrap(errors.KindUnavailable, "lock document", map[string]any{"path": d.lockPath}, err)
	}
	defer func() {
		if err := l.Close(); err != nil {
			d.log.Warn("release document lock", "path", d.lockPath, "err", err)
		}
	}()
	return fn()
}

func (d *Document) Write(key string, value *string) error {
	if value == nil {
		return d.Delete(key)
	}
	if err := validateKey(key); err != nil {
		return err
	}
	return d.exclusive(func() error {
		return d.codec.Put(key, *value)
	})
}

func (d *Document) Read(key string) (value string, ok bool, err error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	err = d.exclusive(func() error {
		value, ok, err = d.codec.Get(key)
		return err
	})
	return value, ok, err
}

func (d *Document) ReadAll() (map[string]string, error) {
	var doc docstore.Document
	err := d.exclusive(func() error {
		var err error
		doc, err = d.codec.Load()
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return d.exclusive(func() error {
		return d.codec.Remove(key)
	})
}

func (d *Document) DeleteAll() error {
	return d.exclusive(d.codec.Clear)
}

func (d *Document) ContainsKey(key string) (bool, error) {
	_, ok, err := d.Read(key)
	return ok, err
}
