// Package cli holds the flag-parsing and exit-code conventions shared
// by the blockfs-mv, blockfs-cp, and blockfs-rebase command-line tools.
package cli

import (
	"fmt"
	"os"

	"github.com/chunglabmit/blockfs/errors"
)

// Exit codes shared across every blockfs command-line tool.
const (
	ExitOK             = 0
	ExitIOError        = 1
	ExitBadArgs        = 2
	ExitFormatMismatch = 3
)

// Usage prints msg to stderr and exits with ExitBadArgs.
func Usage(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(ExitBadArgs)
}

// ExitFor prints err to stderr and exits with the code its Kind
// implies. It does nothing if err is nil.
func ExitFor(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(codeFor(err))
}

func codeFor(err error) int {
	switch {
	case errors.Is(errors.Integrity, err):
		return ExitFormatMismatch
	case errors.Is(errors.Invalid, err), errors.Is(errors.NotSupported, err):
		return ExitBadArgs
	default:
		return ExitIOError
	}
}
