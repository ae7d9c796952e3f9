// SPDX-License-Identifier: Apache-2.0

package errors

// ExitCode is the process exit status for the command line tools.
type ExitCode int

const (
	ExitOK          ExitCode = 0
	ExitBadArgument ExitCode = 2
	ExitUnavailable ExitCode = 3
	ExitCorrupt     ExitCode = 4
	ExitInternal    ExitCode = 10
)

// ExitCodeFor maps a Kind to its exit status.
func ExitCodeFor(kind Kind) ExitCode {
	switch kind {
	case KindBadArgument:
		return ExitBadArgument
	case KindUnavailable:
		return ExitUnavailable
	case KindCorrupt, KindCrypto:
		return ExitCorrupt
	default:
		return ExitInternal
	}
}
