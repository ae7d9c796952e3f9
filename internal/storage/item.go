// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"encoding/base64"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/log"
	"github.com/akihiro/secure-storage/internal/seal"
)

// ItemOptions configures an Item adapter.
type ItemOptions struct {
	// Prefix namespaces native targets.
	Prefix string
	// Keys, when set, encrypts values before they reach the store. The
	// stored text is the base64 of the sealed envelope.
	Keys   *seal.KeyManager
	Logger *slog.Logger
}

// Item stores each entry as its own native item named prefix+key.
type Item struct {
	store  backend.Backend
	prefix string
	keys   *seal.KeyManager
	log    *slog.Logger

	mu sync.Mutex
}

// NewItem returns an Item adapter over store.
func NewItem(store backend.Backend, opts ItemOptions) *Item {
	return &Item{
		store:  store,
		prefix: opts.Prefix,
		keys:   opts.Keys,
		log:    log.OrDiscard(opts.Logger),
	}
}

// check validates key and keeps it off the symmetric key slot, which may
// share the entries' store.
func (it *Item) check(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return reserved(key, it.prefix+key, it.keys)
}

func (it *Item) Write(key string, value *string) error {
	if value == nil {
		return it.Delete(key)
	}
	if err := it.check(key); err != nil {
		return err
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.write(it.prefix+key, []byte(*value))
}

func (it *Item) write(target string, value []byte) error {
	if it.keys != nil {
		sealed, err := it.keys.Seal(value)
		if err != nil {
			return err
		}
		value = []byte(base64.StdEncoding.EncodeToString(sealed))
	}
	return it.store.Set(target, value)
}

func (it *Item) Read(key string) (string, bool, error) {
	if err := it.check(key); err != nil {
		return "", false, err
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.read(it.prefix + key)
}

func (it *Item) read(target string) (string, bool, error) {
	raw, err := it.store.Get(target)
	if err != nil {
		if backend.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if it.keys == nil {
		return string(raw), true, nil
	}
	sealed, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return "", false, errors.Wrap(errors.KindCorrupt, "stored item is not base64", map[string]any{"target": target}, err)
	}
	pt, format, err := it.keys.Decode(sealed)
	if err != nil {
		if seal.IsUnreadable(err) {
			it.log.Warn("item unreadable, treating as absent", "target", target)
			return "", false, nil
		}
		return "", false, err
	}
	if format != seal.FormatV1 {
		if err := it.write(target, pt); err != nil {
			it.log.Warn("item migration failed", "target", target, "from", format.String(), "err", err)
		} else {
			it.log.Info("item migrated", "target", target, "from", format.String())
		}
	}
	return string(pt), true, nil
}

// targets lists the namespace, leaving out the symmetric key slot.
func (it *Item) targets() ([]string, error) {
	targets, err := it.store.List(it.prefix)
	if err != nil {
		if stderrors.Is(err, backend.ErrUnsupported) {
			return nil, errors.Wrap(errors.KindUnavailable, "backend cannot enumerate entries", nil, err)
		}
		return nil, err
	}
	out := targets[:0]
	for _, t := range targets {
		if it.keys != nil && t == it.keys.Label() {
			continue
		}
		if t == it.prefix {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (it *Item) ReadAll() (map[string]string, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	targets, err := it.targets()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(targets))
	for _, t := range targets {
		v, ok, err := it.read(t)
		if err != nil {
			return nil, err
		}
		if ok {
			out[strings.TrimPrefix(t, it.prefix)] = v
		}
	}
	return out, nil
}

func (it *Item) Delete(key string) error {
	if err := it.check(key); err != nil {
		return err
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	return backend.DeleteQuiet(it.store, it.prefix+key)
}

func (it *Item) DeleteAll() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	targets, err := it.targets()
	if err != nil {
		return err
	}
	for _, t := range targets {
		if err := backend.DeleteQuiet(it.store, t); err != nil {
			return err
		}
	}
	return nil
}

func (it *Item) ContainsKey(key string) (bool, error) {
	_, ok, err := it.Read(key)
	return ok, err
}
