// SPDX-License-Identifier: Apache-2.0

// Package config resolves securekv settings. Precedence is
// CLI > ENV (SECUREKV_*) > securekv.yaml > build defaults.
package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/akihiro/secure-storage/internal/attrs"
	"github.com/akihiro/secure-storage/internal/errors"
)

// Strategies.
const (
	StrategyDocument = "document"
	StrategyFile     = "file"
	StrategyItem     = "item"
)

// Backends.
const (
	BackendSecretService = "secret-service"
	BackendWincred       = "wincred"
	BackendWincredHelper = "wincred-helper"
	BackendKeychain      = "keychain"
	BackendKeyring       = "keyring"
	BackendMemory        = "memory"
)

// Error codes reported in errors.Error.Code.
const (
	CodeNotFound = "CONFIG_NOT_FOUND"
	CodeInvalid  = "CONFIG_INVALID"
)

const (
	// EnvPrefix prefixes the environment variable of every field, e.g.
	// SECUREKV_APP_ID.
	EnvPrefix = "SECUREKV_"

	DefaultAppID = "securekv"
	// DefaultPrefix namespaces per-entry files and native items.
	DefaultPrefix = "VGhpcyBpcyB0aGUgcHJlZml4IGZvciBhIHNlY3VyZSBzdG9yYWdlCg_"
)

var (
	strategies = []string{StrategyDocument, StrategyFile, StrategyItem}
	backends   = []string{BackendSecretService, BackendWincred, BackendWincredHelper, BackendKeychain, BackendKeyring, BackendMemory}
)

// Config is the resolved configuration.
type Config struct {
	AppID   string `yaml:"app_id" json:"app_id"`
	Company string `yaml:"company" json:"company,omitempty"`
	Product string `yaml:"product" json:"product,omitempty"`
	Prefix  string `yaml:"prefix" json:"prefix"`

	Strategy string `yaml:"strategy" json:"strategy"`
	Backend  string `yaml:"backend" json:"backend"`
	// KeyBackend holds the symmetric key; empty means Backend.
	KeyBackend string `yaml:"key_backend" json:"key_backend,omitempty"`
	// LegacyBackend is read for values older releases stored directly in
	// the credential store. Empty disables the fallback.
	LegacyBackend string `yaml:"legacy_backend" json:"legacy_backend,omitempty"`
	// Attributes are extra "name=value" pairs, comma separated, added to
	// every Secret Service item and lookup.
	Attributes string `yaml:"attributes" json:"attributes,omitempty"`

	SupportDir    string        `yaml:"support_dir" json:"support_dir,omitempty"`
	HelperPath    string        `yaml:"helper_path" json:"helper_path,omitempty"`
	LockFile      string        `yaml:"lock_file" json:"lock_file,omitempty"`
	EncryptItems  bool          `yaml:"encrypt_items" json:"encrypt_items"`
	PromptTimeout time.Duration `yaml:"prompt_timeout" json:"prompt_timeout,omitempty"`
	LogLevel      string        `yaml:"log_level" json:"log_level"`
}

// Default returns the build defaults for the current platform.
func Default() Config {
	return Config{
		AppID:         DefaultAppID,
		Prefix:        DefaultPrefix,
		Strategy:      defaultStrategy,
		Backend:       defaultBackend,
		LegacyBackend: defaultLegacyBackend,
		LogLevel:      "warn",
	}
}

// Schema is the Secret Service schema, also used as the item label.
func (c Config) Schema() string { return c.AppID + "/SecureStorage" }

// Slot is the target holding the whole-store document.
func (c Config) Slot() string { return c.AppID + ".secureStorage" }

// KeyStore returns the backend name that holds the symmetric key.
func (c Config) KeyStore() string {
	if c.KeyBackend != "" {
		return c.KeyBackend
	}
	return c.Backend
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	if c.AppID == "" {
		return invalid("app_id is required")
	}
	if !slices.Contains(strategies, c.Strategy) {
		return invalid("unknown strategy %q (want one of %s)", c.Strategy, strings.Join(strategies, ", "))
	}
	for _, b := range []struct{ field, value string }{
		{"backend", c.Backend},
		{"key_backend", c.KeyBackend},
		{"legacy_backend", c.LegacyBackend},
	} {
		if b.value == "" && b.field != "backend" {
			continue
		}
		if !slices.Contains(backends, b.value) {
			return invalid("unknown %s %q (want one of %s)", b.field, b.value, strings.Join(backends, ", "))
		}
	}
	if c.PromptTimeout < 0 {
		return invalid("prompt_timeout must not be negative")
	}
	if _, err := c.ItemAttributes(); err != nil {
		return err
	}
	return nil
}

// ItemAttributes parses Attributes in order.
func (c Config) ItemAttributes() (attrs.Set, error) {
	var pairs []string
	for _, kv := range strings.Split(c.Attributes, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return attrs.Set{}, invalid("attributes: %q is not name=value", kv)
		}
		pairs = append(pairs, strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return attrs.New(pairs...), nil
}

// Fields lists the settable field names, in file order.
func Fields() []string {
	return []string{
		"app_id", "company", "product", "prefix",
		"strategy", "backend", "key_backend", "legacy_backend", "attributes",
		"support_dir", "helper_path", "lock_file",
		"encrypt_items", "prompt_timeout", "log_level",
	}
}

// Set assigns one field by its yaml name.
func (c *Config) Set(field, value string) error {
	switch field {
	case "app_id":
		c.AppID = value
	case "company":
		c.Company = value
	case "product":
		c.Product = value
	case "prefix":
		c.Prefix = value
	case "strategy":
		c.Strategy = value
	case "backend":
		c.Backend = value
	case "key_backend":
		c.KeyBackend = value
	case "legacy_backend":
		c.LegacyBackend = value
	case "attributes":
		c.Attributes = value
	case "support_dir":
		c.SupportDir = value
	case "helper_path":
		c.HelperPath = value
	case "lock_file":
		c.LockFile = value
	case "encrypt_items":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return invalid("encrypt_items: %v", err)
		}
		c.EncryptItems = b
	case "prompt_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return invalid("prompt_timeout: %v", err)
		}
		c.PromptTimeout = d
	case "log_level":
		c.LogLevel = value
	default:
		return invalid("unknown setting %q", field)
	}
	return nil
}

// EnvName returns the environment variable for field.
func EnvName(field string) string {
	return EnvPrefix + strings.ToUpper(field)
}

func invalid(format string, args ...any) error {
	return errors.New(errors.KindBadArgument, fmt.Sprintf(format, args...), nil).WithCode(CodeInvalid)
}
