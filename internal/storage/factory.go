// SPDX-License-Identifier: Apache-2.0

package storage

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/akihiro/secure-storage/internal/attrs"
	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/backend/keychain"
	"github.com/akihiro/secure-storage/internal/backend/keyring"
	"github.com/akihiro/secure-storage/internal/backend/memory"
	"github.com/akihiro/secure-storage/internal/backend/secretservice"
	"github.com/akihiro/secure-storage/internal/backend/wincred"
	"github.com/akihiro/secure-storage/internal/config"
	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/filestore"
	"github.com/akihiro/secure-storage/internal/log"
	"github.com/akihiro/secure-storage/internal/seal"
)

// Handle is an opened Storage together with the connections behind it.
type Handle struct {
	Storage

	Strategy string
	Backend  string
	// Location is the support directory for the file strategy and the
	// slot name for the document strategy.
	Location string

	closers []io.Closer
}

// Close releases backend connections.
func (h *Handle) Close() error {
	var errs []error
	for _, c := range h.closers {
		errs = append(errs, c.Close())
	}
	h.closers = nil
	return stderrors.Join(errs...)
}

// opener builds each named backend at most once, so the data and key
// stores share one connection (and one warmup) when they are the same.
type opener struct {
	cfg    config.Config
	log    *slog.Logger
	opened map[string]backend.Backend
	h      *Handle
}

func (o *opener) backend(name string) (backend.Backend, error) {
	if b, ok := o.opened[name]; ok {
		return b, nil
	}
	var (
		b   backend.Backend
		err error
	)
	switch name {
	case config.BackendSecretService:
		var (
			ss    *secretservice.Backend
			extra attrs.Set
		)
		if extra, err = o.cfg.ItemAttributes(); err != nil {
			break
		}
		ss, err = secretservice.New(secretservice.Options{
			Schema:        o.cfg.Schema(),
			Attributes:    extra,
			PromptTimeout: o.cfg.PromptTimeout,
			Logger:        o.log.With("backend", name),
		})
		if err == nil {
			o.h.closers = append(o.h.closers, ss)
			b = ss
		}
	case config.BackendWincred:
		b, err = openNativeWincred(o.cfg.AppID)
	case config.BackendWincredHelper:
		b, err = wincred.New(o.cfg.HelperPath)
	case config.BackendKeychain:
		b, err = keychain.Open(o.cfg.AppID)
	case config.BackendKeyring:
		b = keyring.New(o.cfg.AppID)
	case config.BackendMemory:
		b = memory.New()
	default:
		err = errors.BadArgument("unknown backend %q", name)
	}
	if err != nil {
		return nil, err
	}
	o.log.Debug("backend opened", "backend", name)
	o.opened[name] = b
	return b, nil
}

// Open builds the Storage cfg describes.
func Open(cfg config.Config, logger *slog.Logger) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = log.OrDiscard(logger)
	h := &Handle{Strategy: cfg.Strategy, Backend: cfg.Backend}
	o := &opener{cfg: cfg, log: logger, opened: map[string]backend.Backend{}, h: h}

	s, err := build(o, h)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	h.Storage = s
	return h, nil
}

func build(o *opener, h *Handle) (Storage, error) {
	cfg, logger := o.cfg, o.log.With("strategy", o.cfg.Strategy)

	data, err := o.backend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case config.StrategyDocument:
		h.Location = cfg.Slot()
		return NewDocument(data, DocumentOptions{
			Slot:     cfg.Slot(),
			LockPath: cfg.LockFile,
			Logger:   logger,
		}), nil

	case config.StrategyFile:
		path := cfg.SupportDir
		if path == "" {
			path, err = filestore.SupportDir(cfg.Company, firstNonEmpty(cfg.Product, cfg.AppID))
			if err != nil {
				return nil, err
			}
		}
		dir, err := filestore.Open(path)
		if err != nil {
			return nil, err
		}
		h.Location = dir.Path()
		keyStore, err := o.backend(cfg.KeyStore())
		if err != nil {
			return nil, err
		}
		opts := FileOptions{Prefix: cfg.Prefix, Logger: logger}
		if cfg.LegacyBackend != "" {
			if opts.Legacy, err = o.backend(cfg.LegacyBackend); err != nil {
				return nil, err
			}
		}
		return NewFile(dir, seal.NewKeyManager(keyStore, cfg.Prefix, logger), opts), nil

	case config.StrategyItem:
		opts := ItemOptions{Prefix: cfg.Prefix, Logger: logger}
		if cfg.EncryptItems {
			keyStore, err := o.backend(cfg.KeyStore())
			if err != nil {
				return nil, err
			}
			opts.Keys = seal.NewKeyManager(keyStore, cfg.Prefix, logger)
		}
		return NewItem(data, opts), nil
	}
	return nil, errors.BadArgument("unknown strategy %q", cfg.Strategy)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// String describes the handle for diagnostics.
func (h *Handle) String() string {
	return fmt.Sprintf("%s over %s (%s)", h.Strategy, h.Backend, h.Location)
}
