// SPDX-License-Identifier: Apache-2.0

// Package filestore manages the per-application support directory that holds
// one encrypted file per entry.
package filestore

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/akihiro/secure-storage/internal/errors"
)

// Suffix is appended to every entry file name.
const Suffix = ".secure"

// Placeholders used when application metadata sanitizes to nothing.
const (
	PlaceholderCompany = "placeholder_company"
	PlaceholderProduct = "placeholder_product"
)

// Dir is an existing support directory.
type Dir struct {
	path string
}

// SupportDir returns the default support directory for company/product under
// the user's configuration root (RoamingAppData on Windows, XDG_CONFIG_HOME
// on Linux, Application Support on macOS).
func SupportDir(company, product string) (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(errors.KindUnavailable, "locate user config dir", nil, err)
	}
	return filepath.Join(root, SanitizeOr(company, PlaceholderCompany), SanitizeOr(product, PlaceholderProduct)), nil
}

// Sanitize makes s usable as a single path segment: characters illegal in
// Windows file names and control characters become '_', trailing spaces and
// dots are trimmed.
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20, r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(`\/:*?"<>|`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " .")
}

// SanitizeOr is Sanitize with a fallback for empty results.
func SanitizeOr(s, fallback string) string {
	if out := Sanitize(s); out != "" {
		return out
	}
	return fallback
}

// Escape makes key usable inside an entry file name. '%', path separators,
// characters Windows forbids and control characters become %XX.
func Escape(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c < 0x20 || c == 0x7f || strings.IndexByte(`%\/:*?"<>|`, c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Unescape reverses Escape. A name that is not a valid escape, such as one
// written before escaping existed, is returned unchanged.
func Unescape(name string) string {
	key, err := url.PathUnescape(name)
	if err != nil {
		return name
	}
	return key
}

// Open creates path and its parents if needed and returns the directory.
// An existing non-directory at path is an error.
func Open(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, errors.Wrap(errors.KindUnavailable, "create support dir", map[string]any{"path": path}, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindUnavailable, "stat support dir", map[string]any{"path": path}, err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.KindUnavailable, "support dir is not a directory", map[string]any{"path": path})
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// FileName returns the file name for a namespaced key.
func FileName(name string) string { return name + Suffix }

// Read returns the contents of the entry file for name. A missing file is
// reported with ok=false and no error.
func (d *Dir) Read(name string) (data []byte, ok bool, err error) {
	data, err = os.ReadFile(d.file(name))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, ioError("read", name, err)
	}
	return data, true, nil
}

// Write replaces the entry file for name atomically.
func (d *Dir) Write(name string, data []byte) error {
	dst := d.file(name)
	tmp := filepath.Join(d.path, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return ioError("write", name, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return ioError("rename", name, err)
	}
	return nil
}

// Exists reports whether the entry file for name exists without reading it.
func (d *Dir) Exists(name string) (bool, error) {
	_, err := os.Stat(d.file(name))
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, ioError("stat", name, err)
}

// Remove deletes the entry file for name. A missing file is not an error.
func (d *Dir) Remove(name string) error {
	if err := os.Remove(d.file(name)); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return ioError("remove", name, err)
	}
	return nil
}

// List returns the names (without Suffix) of entry files starting with
// prefix, sorted.
func (d *Dir) List(prefix string) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ioError("list", d.path, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if !strings.HasSuffix(n, Suffix) || !strings.HasPrefix(n, prefix) {
			continue
		}
		names = append(names, strings.TrimSuffix(n, Suffix))
	}
	sort.Strings(names)
	return names, nil
}

func (d *Dir) file(name string) string {
	return filepath.Join(d.path, FileName(name))
}

func ioError(op, name string, err error) error {
	return errors.Wrap(errors.KindUnavailable, fmt.Sprintf("%s entry file %q", op, name), nil, err).WithCode(errnoName(err))
}
