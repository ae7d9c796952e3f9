// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/output"
	"github.com/akihiro/secure-storage/internal/storage"
)

func exactArgs(n int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return errors.BadArgument("expected %d argument(s), got %d", n, len(args))
		}
		return nil
	}
}

func (a *cli) writeCommand() *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "write KEY [VALUE]",
		Short: "Store a value",
		Args: func(_ *cobra.Command, args []string) error {
			switch {
			case len(args) == 2 && !fromStdin, len(args) == 1 && fromStdin:
				return nil
			case fromStdin:
				return errors.BadArgument("VALUE and --stdin are exclusive")
			}
			return errors.BadArgument("usage: write KEY VALUE, or write KEY --stdin")
		},
		RunE: func(_ *cobra.Command, args []string) error {
			value := ""
			if fromStdin {
				b, err := io.ReadAll(a.stdin)
				if err != nil {
					return errors.Wrap(errors.KindInternal, "read stdin", nil, err)
				}
				value = strings.TrimSuffix(strings.TrimSuffix(string(b), "\n"), "\r")
			} else {
				value = args[1]
			}
			return a.withStorage(func(h *storage.Handle) error {
				if err := h.Write(args[0], &value); err != nil {
					return err
				}
				return a.w.WriteOK(a.format, nil)
			})
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the value from stdin (one trailing newline is dropped)")
	return cmd
}

func (a *cli) readCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read KEY",
		Short: "Print a value",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withStorage(func(h *storage.Handle) error {
				v, ok, err := h.Read(args[0])
				if err != nil {
					return err
				}
				res := output.Value{Key: args[0], Found: ok}
				if ok {
					res.Value = &v
				}
				return a.w.WriteOK(a.format, res)
			})
		},
	}
}

func (a *cli) readAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Print every entry",
		Args:  exactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.withStorage(func(h *storage.Handle) error {
				all, err := h.ReadAll()
				if err != nil {
					return err
				}
				return a.w.WriteOK(a.format, all)
			})
		},
	}
}

func (a *cli) containsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contains KEY",
		Short: "Report whether a key is present",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withStorage(func(h *storage.Handle) error {
				ok, err := h.ContainsKey(args[0])
				if err != nil {
					return err
				}
				return a.w.WriteOK(a.format, output.Presence{Key: args[0], Found: ok})
			})
		},
	}
}

func (a *cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove a key",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withStorage(func(h *storage.Handle) error {
				if err := h.Delete(args[0]); err != nil {
					return err
				}
				return a.w.WriteOK(a.format, nil)
			})
		},
	}
}

func (a *cli) deleteAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-all",
		Short: "Remove every entry",
		Args:  exactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.withStorage(func(h *storage.Handle) error {
				if err := h.DeleteAll(); err != nil {
					return err
				}
				return a.w.WriteOK(a.format, nil)
			})
		},
	}
}

type info struct {
	Strategy   string `json:"strategy" yaml:"strategy"`
	Backend    string `json:"backend" yaml:"backend"`
	KeyBackend string `json:"key_backend,omitempty" yaml:"key_backend,omitempty"`
	Legacy     string `json:"legacy_backend,omitempty" yaml:"legacy_backend,omitempty"`
	Location   string `json:"location" yaml:"location"`
	ConfigPath string `json:"config_path,omitempty" yaml:"config_path,omitempty"`
}

func (a *cli) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the resolved strategy, backend and location",
		Args:  exactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.withStorage(func(h *storage.Handle) error {
				res := info{
					Strategy:   h.Strategy,
					Backend:    h.Backend,
					Legacy:     a.cfg.LegacyBackend,
					Location:   h.Location,
					ConfigPath: a.cfgPath,
				}
				if a.cfg.KeyStore() != a.cfg.Backend {
					res.KeyBackend = a.cfg.KeyStore()
				}
				return a.w.WriteOK(a.format, res)
			})
		},
	}
}
