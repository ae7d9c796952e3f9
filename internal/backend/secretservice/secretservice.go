// SPDX-License-Identifier: Apache-2.0

// Package secretservice implements backend.Backend on the Freedesktop
// Secret Service (gnome-keyring, KWallet, KeePassXC and friends).
//
// Every target becomes one item in the default collection, scoped by the
// schema attribute and an account attribute holding the target name. Before
// the first scoped lookup the backend stores an unscoped control item, which
// forces a cold or locked keyring to unlock.
package secretservice

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/akihiro/secure-storage/internal/attrs"
	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/log"
	"github.com/akihiro/secure-storage/internal/warmup"
)

// Options configures a Backend.
type Options struct {
	// Schema names the schema and labels stored items.
	Schema string
	// Attributes are added to every scoped lookup and stored item.
	Attributes attrs.Set
	// PromptTimeout bounds how long an unlock prompt may stay open.
	PromptTimeout time.Duration
	Logger        *slog.Logger
}

// Backend stores secrets as Secret Service items.
type Backend struct {
	client client
	schema string
	base   attrs.Set
	gate   *warmup.Gate
	log    *slog.Logger

	mu      sync.Mutex
	session dbus.ObjectPath
}

// New connects to the session bus and returns a Backend.
func New(opts Options) (*Backend, error) {
	if opts.PromptTimeout <= 0 {
		opts.PromptTimeout = 2 * time.Minute
	}
	c, err := dial(opts.PromptTimeout)
	if err != nil {
		return nil, err
	}
	return newBackend(c, opts), nil
}

func newBackend(c client, opts Options) *Backend {
	b := &Backend{
		client: c,
		schema: opts.Schema,
		base:   opts.Attributes.With(SchemaAttr, opts.Schema),
		log:    log.OrDiscard(opts.Logger),
	}
	b.gate = warmup.New(b.warmup)
	return b
}

// Close releases the bus connection.
func (b *Backend) Close() error { return b.client.Close() }

// warmup stores the unscoped control item. It carries no schema attribute
// so it never shows up in scoped searches.
func (b *Backend) warmup() error {
	session, err := b.openSession()
	if err != nil {
		return err
	}
	control := map[string]string{ExplanationAttr: "Unlock check for " + b.schema}
	if err := b.client.CreateItem(session, b.schema+" Control", control, []byte("awake")); err != nil {
		return err
	}
	b.log.Debug("secret service warmed up", "schema", b.schema)
	return nil
}

func (b *Backend) openSession() (dbus.ObjectPath, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != "" {
		return b.session, nil
	}
	s, err := b.client.OpenSession()
	if err != nil {
		return "", err
	}
	b.session = s
	return s, nil
}

// scoped returns the lookup attributes, adding the account when target is
// non-empty.
func (b *Backend) scoped(target string) map[string]string {
	if target == "" {
		return b.base.Map()
	}
	return b.base.With(AccountAttr, target).Map()
}

// find returns the unlocked items matching query, unlocking locked ones.
func (b *Backend) find(query map[string]string) ([]dbus.ObjectPath, error) {
	if err := b.gate.Ensure(); err != nil {
		return nil, err
	}
	unlocked, locked, err := b.client.SearchItems(query)
	if err != nil {
		return nil, err
	}
	if len(locked) > 0 {
		b.log.Debug("unlocking items", "count", len(locked))
		opened, err := b.client.Unlock(locked)
		if err != nil {
			return nil, err
		}
		unlocked = append(unlocked, opened...)
	}
	return unlocked, nil
}

func (b *Backend) Get(target string) ([]byte, error) {
	items, err := b.find(b.scoped(target))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &backend.ErrNotFound{Target: target}
	}
	session, err := b.openSession()
	if err != nil {
		return nil, err
	}
	secret, err := b.client.GetSecret(items[0], session)
	if err != nil {
		if isNoSuchObject(err) {
			return nil, &backend.ErrNotFound{Target: target}
		}
		return nil, err
	}
	return secret, nil
}

func (b *Backend) Set(target string, secret []byte) error {
	if err := b.gate.Ensure(); err != nil {
		return err
	}
	session, err := b.openSession()
	if err != nil {
		return err
	}
	return b.client.CreateItem(session, b.schema, b.scoped(target), secret)
}

func (b *Backend) Delete(target string) error {
	items, err := b.find(b.scoped(target))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return &backend.ErrNotFound{Target: target}
	}
	for _, item := range items {
		if err := b.client.Delete(item); err != nil && !isNoSuchObject(err) {
			return err
		}
	}
	return nil
}

func (b *Backend) List(prefix string) ([]string, error) {
	items, err := b.find(b.scoped(""))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(items))
	var targets []string
	for _, item := range items {
		a, err := b.client.Attributes(item)
		if err != nil {
			if isNoSuchObject(err) {
				continue
			}
			return nil, err
		}
		// Some services match attributes loosely; keep only exact scope.
		if !attrs.Matches(a, b.base) {
			continue
		}
		t, ok := a[AccountAttr]
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		targets = append(targets, t)
	}
	return backend.FilterPrefix(targets, prefix), nil
}

// String describes the backend for diagnostics.
func (b *Backend) String() string {
	return fmt.Sprintf("secret-service(schema=%s)", b.schema)
}

var _ backend.Backend = (*Backend)(nil)

