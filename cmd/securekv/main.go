// SPDX-License-Identifier: Apache-2.0

// securekv reads and writes the per-user secure key-value store from the
// command line.
//
// Usage:
//
//	securekv write KEY [VALUE | --stdin]
//	securekv read KEY
//	securekv read-all
//	securekv contains KEY
//	securekv delete KEY
//	securekv delete-all
//	securekv info
//
// The exit status is 0 on success, 2 for bad arguments, 3 when the secret
// store is unavailable, 4 for corrupt or undecryptable data and 10 for
// anything else.
package main

import (
	"io"
	"os"

	"github.com/akihiro/secure-storage/internal/errors"
)

func main() {
	os.Exit(run(os.Args[1:], os.LookupEnv, os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, env func(string) (string, bool), stdin io.Reader, stdout, stderr io.Writer) int {
	return newCLI(env, stdin, stdout, stderr).run(args)
}

// run executes args and reports the error envelope, returning the exit code.
func (a *cli) run(args []string) int {
	if err := a.execute(args); err != nil {
		e := errors.AsOrWrap(err)
		_ = a.w.WriteError(a.errorFormat(), e)
		return int(errors.ExitCodeFor(e.Kind))
	}
	return int(errors.ExitOK)
}
