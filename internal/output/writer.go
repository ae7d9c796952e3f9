// SPDX-License-Identifier: Apache-2.0

// Package output renders command results as a versioned envelope.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/akihiro/secure-storage/internal/errors"
)

const SchemaVersion = 1

type ErrorObject struct {
	Kind    errors.Kind    `json:"kind" yaml:"kind"`
	Code    string         `json:"code,omitempty" yaml:"code,omitempty"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

type Envelope struct {
	OK            bool         `json:"ok" yaml:"ok"`
	SchemaVersion int          `json:"schema_version" yaml:"schema_version"`
	Error         *ErrorObject `json:"error,omitempty" yaml:"error,omitempty"`
	Data          any          `json:"data,omitempty" yaml:"data,omitempty"`
}

// Value is the data of read. Value is nil when the key is absent.
type Value struct {
	Key   string  `json:"key" yaml:"key"`
	Found bool    `json:"found" yaml:"found"`
	Value *string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Presence is the data of contains.
type Presence struct {
	Key   string `json:"key" yaml:"key"`
	Found bool   `json:"found" yaml:"found"`
}

type Writer struct {
	Out io.Writer
	Err io.Writer
}

func New(out, err io.Writer) Writer {
	return Writer{Out: out, Err: err}
}

func (w Writer) WriteOK(format Format, data any) error {
	return w.write(format, Envelope{OK: true, SchemaVersion: SchemaVersion, Data: data})
}

func (w Writer) WriteError(format Format, e *errors.Error) error {
	obj := &ErrorObject{Kind: e.Kind, Code: e.Code, Message: e.Message, Details: e.Details}
	if cause := e.Unwrap(); cause != nil {
		obj.Message = e.Message + ": " + cause.Error()
	}
	return w.write(format, Envelope{OK: false, SchemaVersion: SchemaVersion, Error: obj})
}

func (w Writer) write(format Format, env Envelope) error {
	switch format {
	case FormatJSON, FormatAuto:
		enc := json.NewEncoder(w.Out)
		enc.SetEscapeHTML(false)
		return enc.Encode(env)
	case FormatYAML:
		b, err := yaml.Marshal(env)
		if err != nil {
			return err
		}
		_, err = w.Out.Write(b)
		return err
	case FormatText:
		return writeText(w.Out, w.Err, env)
	default:
		return errors.BadArgument("invalid output format %q", format)
	}
}

// writeText prints bare values so the output can be used in scripts.
// Errors go to errOut.
func writeText(out, errOut io.Writer, env Envelope) error {
	if !env.OK {
		if env.Error == nil {
			return nil
		}
		msg := string(env.Error.Kind)
		if env.Error.Code != "" {
			msg += " (" + env.Error.Code + ")"
		}
		_, err := fmt.Fprintf(errOut, "error: %s: %s\n", msg, env.Error.Message)
		return err
	}
	switch d := env.Data.(type) {
	case nil:
		return nil
	case Value:
		if d.Value == nil {
			return nil
		}
		_, err := fmt.Fprintln(out, *d.Value)
		return err
	case Presence:
		_, err := fmt.Fprintln(out, d.Found)
		return err
	case map[string]string:
		tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", k, strings.ReplaceAll(d[k], "\n", `\n`))
		}
		return tw.Flush()
	default:
		b, err := yaml.Marshal(d)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	}
}
