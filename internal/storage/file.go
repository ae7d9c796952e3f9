// SPDX-License-Identifier: Apache-2.0

package storage

import (
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/akihiro/secure-storage/internal/backend"
	"github.com/akihiro/secure-storage/internal/filestore"
	"github.com/akihiro/secure-storage/internal/log"
	"github.com/akihiro/secure-storage/internal/seal"
)

// FileOptions configures a File adapter.
type FileOptions struct {
	// Prefix namespaces file names and legacy credential targets.
	Prefix string
	// Legacy, when set, is the credential store older releases wrote
	// values to directly. A value found there is moved into an entry file
	// on first read. Delete cleans it too.
	Legacy backend.Backend
	Logger *slog.Logger
}

// File stores each entry as <prefix><escaped key>.secure in dir, encrypted
// with the key keys manages.
type File struct {
	dir    *filestore.Dir
	keys   *seal.KeyManager
	legacy backend.Backend
	prefix string
	log    *slog.Logger

	mu sync.Mutex
}

// NewFile returns a File adapter.
func NewFile(dir *filestore.Dir, keys *seal.KeyManager, opts FileOptions) *File {
	return &File{
		dir:    dir,
		keys:   keys,
		legacy: opts.Legacy,
		prefix: opts.Prefix,
		log:    log.OrDiscard(opts.Logger),
	}
}

// name returns the entry file name for key.
func (f *File) name(key string) string { return f.prefix + filestore.Escape(key) }

// check validates key and keeps it off the symmetric key slot, which may
// share the legacy credential store.
func (f *File) check(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return reserved(key, f.prefix+key, f.keys)
}

func (f *File) Write(key string, value *string) error {
	if value == nil {
		return f.Delete(key)
	}
	if err := f.check(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sealed, err := f.keys.Seal([]byte(*value))
	if err != nil {
		return err
	}
	return f.dir.Write(f.name(key), sealed)
}

func (f *File) Read(key string) (string, bool, error) {
	if err := f.check(key); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok, found, err := f.readFile(f.name(key))
	if err != nil || found {
		return v, ok, err
	}
	v, ok, err = f.readLegacy(f.prefix + key)
	if err == nil && ok {
		f.migrateLegacy(key, v)
	}
	return v, ok, err
}

// readFile decrypts the entry file. found reports whether the file exists;
// ok is false for an existing file that cannot be decrypted. Files in a
// legacy envelope are rewritten in the current one.
func (f *File) readFile(name string) (value string, ok, found bool, err error) {
	data, found, err := f.dir.Read(name)
	if err != nil || !found {
		return "", false, found, err
	}
	pt, format, err := f.keys.Decode(data)
	if err != nil {
		if seal.IsUnreadable(err) {
			f.log.Warn("entry unreadable, treating as absent", "entry", name)
			return "", false, true, nil
		}
		return "", false, true, err
	}
	if format != seal.FormatV1 {
		f.reseal(name, pt, format.String())
	}
	return string(pt), true, true, nil
}

// reseal writes pt to the entry file in the current envelope. A failure is
// logged; the value read is still returned to the caller.
func (f *File) reseal(name string, pt []byte, from string) bool {
	sealed, err := f.keys.Seal(pt)
	if err == nil {
		err = f.dir.Write(name, sealed)
	}
	if err != nil {
		f.log.Warn("entry migration failed", "entry", name, "from", from, "err", err)
		return false
	}
	f.log.Info("entry migrated", "entry", name, "from", from)
	return true
}

// migrateLegacy moves a legacy credential into an entry file.
func (f *File) migrateLegacy(key, value string) {
	if !f.reseal(f.name(key), []byte(value), "legacy-credential") {
		return
	}
	if err := backend.DeleteQuiet(f.legacy, f.prefix+key); err != nil {
		f.log.Warn("remove migrated legacy credential", "target", f.prefix+key, "err", err)
	}
}

func (f *File) readLegacy(target string) (string, bool, error) {
	if f.legacy == nil {
		return "", false, nil
	}
	raw, err := f.legacy.Get(target)
	if err != nil {
		if backend.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSuffix(string(raw), "\x00"), true, nil
}

func (f *File) ReadAll() (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	names, err := f.dir.List(f.prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(names))
	files := make(map[string]bool, len(names))
	for _, name := range names {
		files[name] = true
		v, ok, _, err := f.readFile(name)
		if err != nil {
			return nil, err
		}
		if ok {
			out[filestore.Unescape(strings.TrimPrefix(name, f.prefix))] = v
		}
	}

	legacy, err := f.legacyTargets()
	if err != nil {
		return nil, err
	}
	for _, target := range legacy {
		key := strings.TrimPrefix(target, f.prefix)
		if files[f.name(key)] {
			continue
		}
		v, ok, err := f.readLegacy(target)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = v
			f.migrateLegacy(key, v)
		}
	}
	return out, nil
}

// legacyTargets lists legacy credentials in the namespace, leaving out the
// symmetric key slot.
func (f *File) legacyTargets() ([]string, error) {
	if f.legacy == nil {
		return nil, nil
	}
	targets, err := f.legacy.List(f.prefix)
	if err != nil {
		if stderrors.Is(err, backend.ErrUnsupported) {
			return nil, nil
		}
		return nil, err
	}
	out := targets[:0]
	for _, t := range targets {
		if t != f.keys.Label() && t != f.prefix {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *File) Delete(key string) error {
	if err := f.check(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.dir.Remove(f.name(key)); err != nil {
		return err
	}
	if f.legacy != nil {
		return backend.DeleteQuiet(f.legacy, f.prefix+key)
	}
	return nil
}

func (f *File) DeleteAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	names, err := f.dir.List(f.prefix)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := f.dir.Remove(name); err != nil {
			return err
		}
	}
	legacy, err := f.legacyTargets()
	if err != nil {
		return err
	}
	for _, name := range legacy {
		if err := backend.DeleteQuiet(f.legacy, name); err != nil {
			return err
		}
	}
	return nil
}

// ContainsKey checks for the entry file without decrypting it, then the
// legacy store.
func (f *File) ContainsKey(key string) (bool, error) {
	if err := f.check(key); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ok, err := f.dir.Exists(f.name(key))
	if err != nil || ok {
		return ok, err
	}
	_, ok, err = f.readLegacy(f.prefix + key)
	return ok, err
}
