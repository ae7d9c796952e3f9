// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akihiro/secure-storage/internal/config"
	"github.com/akihiro/secure-storage/internal/errors"
	"github.com/akihiro/secure-storage/internal/log"
	"github.com/akihiro/secure-storage/internal/memprotect"
	"github.com/akihiro/secure-storage/internal/output"
	"github.com/akihiro/secure-storage/internal/storage"
)

// cli holds the state shared by the commands of one invocation.
type cli struct {
	env    func(string) (string, bool)
	stdin  io.Reader
	stderr io.Writer
	w      output.Writer

	configPath string
	formatStr  string
	harden     bool
	settings   map[string]*string
	encrypt    bool

	format  output.Format
	cfg     config.Config
	cfgPath string
	log     *slog.Logger

	// open is storage.Open outside tests.
	open func(config.Config, *slog.Logger) (*storage.Handle, error)
}

func newCLI(env func(string) (string, bool), stdin io.Reader, stdout, stderr io.Writer) *cli {
	return &cli{
		env:      env,
		stdin:    stdin,
		stderr:   stderr,
		w:        output.New(stdout, stderr),
		settings: map[string]*string{},
		log:      log.Discard(),
		open:     storage.Open,
	}
}

func (a *cli) execute(args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.w.Out)
	root.SetErr(a.stderr)
	return root.Execute()
}

func flagName(field string) string { return strings.ReplaceAll(field, "_", "-") }

func (a *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "securekv",
		Short:         "Per-user secure key-value storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Wrap(errors.KindBadArgument, "invalid flag", nil, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file path (YAML); default: ./securekv.yaml or $XDG_CONFIG_HOME/securekv/securekv.yaml")
	pf.StringVarP(&a.formatStr, "format", "f", string(output.FormatAuto), "Output format: json|yaml|text|auto")
	pf.BoolVar(&a.harden, "harden", false, "Disable core dumps and lock memory before touching keys")
	for _, field := range config.Fields() {
		if field == "encrypt_items" {
			pf.BoolVar(&a.encrypt, flagName(field), false, "Encrypt values of the item strategy")
			continue
		}
		a.settings[field] = pf.String(flagName(field), "", "Override the "+field+" setting")
	}

	root.AddCommand(
		a.writeCommand(),
		a.readCommand(),
		a.readAllCommand(),
		a.containsCommand(),
		a.deleteCommand(),
		a.deleteAllCommand(),
		a.infoCommand(),
	)
	return root
}

// setup resolves the configuration (CLI > ENV > file > defaults), the
// logger and the output format.
func (a *cli) setup(cmd *cobra.Command) error {
	a.format = output.Format(a.formatStr)
	if !output.IsValid(a.format) {
		a.format = output.FormatAuto
		return errors.BadArgument("invalid output format %q", a.formatStr)
	}
	a.format = output.Resolve(a.format, a.w.Out)

	if cmd.Flags().Changed("config") && a.configPath == "" {
		return errors.BadArgument("config path is empty")
	}
	overrides := map[string]string{}
	for field, v := range a.settings {
		if cmd.Flags().Changed(flagName(field)) {
			overrides[field] = *v
		}
	}
	if cmd.Flags().Changed("encrypt-items") {
		overrides["encrypt_items"] = strconv.FormatBool(a.encrypt)
	}

	cfg, path, err := config.Resolve(config.Options{
		ConfigPath: a.configPath,
		Env:        a.env,
		CLI:        overrides,
	})
	if err != nil {
		return err
	}
	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		return errors.BadArgument("invalid log level %q", cfg.LogLevel)
	}
	a.cfg, a.cfgPath = cfg, path
	a.log = log.New(a.stderr, level)
	if path != "" {
		a.log.Debug("config loaded", "path", path)
	}

	if a.harden {
		if err := memprotect.HardenProcess(a.log); err != nil {
			return err
		}
	}
	return nil
}

func (a *cli) errorFormat() output.Format {
	if a.format == "" || !output.IsValid(a.format) {
		return output.Resolve(output.FormatAuto, a.w.Out)
	}
	return a.format
}

// withStorage opens the configured storage for the duration of fn.
func (a *cli) withStorage(fn func(h *storage.Handle) error) error {
	h, err := a.open(a.cfg, a.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			a.log.Warn("close storage", "err", err)
		}
	}()
	return fn(h)
}
