// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/akihiro/secure-storage/internal/errors"
)

// FileName is the config file looked up in the search paths.
const FileName = "securekv.yaml"

// Options drive Resolve. Environment and CLI values are injected so tests
// do not depend on the process.
type Options struct {
	// ConfigPath, when set, is the only file read; it must exist.
	ConfigPath string
	// WorkDir defaults to the process working directory.
	WorkDir string
	// ConfigHome defaults to os.UserConfigDir().
	ConfigHome string

	// Env looks up environment variables. Nil disables ENV overrides.
	Env func(string) (string, bool)
	// CLI holds flag overrides by field name, only for flags the user set.
	CLI map[string]string
}

func searchPaths(workDir, configHome string) []string {
	paths := make([]string, 0, 2)
	if workDir != "" {
		paths = append(paths, filepath.Join(workDir, FileName))
	}
	if configHome != "" {
		paths = append(paths, filepath.Join(configHome, "securekv", FileName))
	}
	return paths
}

// readFile decodes path over base. Unknown fields are rejected.
func readFile(path string, base Config) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.New(errors.KindBadArgument, "config file not found", map[string]any{"path": path}).WithCode(CodeNotFound)
		}
		return Config{}, errors.Wrap(errors.KindUnavailable, "failed to read config file", map[string]any{"path": path}, err).WithCode(CodeInvalid)
	}
	cfg := base
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(errors.KindBadArgument, "invalid config file", map[string]any{"path": path}, err).WithCode(CodeInvalid)
	}
	return cfg, nil
}

// Resolve merges defaults, the config file, ENV and CLI, then validates.
// It returns the path of the file that was read, or "".
func Resolve(opts Options) (Config, string, error) {
	workDir := opts.WorkDir
	if workDir == "" {
		wd, _ := os.Getwd()
		workDir = wd
	}
	if opts.ConfigHome == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			opts.ConfigHome = dir
		}
	}

	cfg := Default()
	var cfgPath string
	if opts.ConfigPath != "" {
		abs := opts.ConfigPath
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(workDir, abs)
		}
		c, err := readFile(abs, cfg)
		if err != nil {
			return Config{}, "", err
		}
		cfg, cfgPath = c, abs
	} else {
		for _, p := range searchPaths(workDir, opts.ConfigHome) {
			c, err := readFile(p, cfg)
			if err != nil {
				if e, ok := errors.As(err); ok && e.Code == CodeNotFound {
					continue
				}
				return Config{}, "", err
			}
			cfg, cfgPath = c, p
			break
		}
	}

	if opts.Env != nil {
		for _, field := range Fields() {
			if v, ok := opts.Env(EnvName(field)); ok && v != "" {
				if err := cfg.Set(field, v); err != nil {
					return Config{}, "", err
				}
			}
		}
	}
	for _, field := range Fields() {
		if v, ok := opts.CLI[field]; ok {
			if err := cfg.Set(field, v); err != nil {
				return Config{}, "", err
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, cfgPath, nil
}
