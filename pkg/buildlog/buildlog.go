// Package buildlog provides log sinks for template build streams.
package buildlog

import (
	"fmt"
	"io"
	"os"

	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

// Logger receives build log entries as the build service emits them.
type Logger func(types.BuildLogEntry)

// Default returns a logger that writes build output to stdout and build
// errors to stderr, one line per entry, in the order received.
func Default() Logger {
	return Writer(os.Stdout, os.Stderr)
}

// Writer returns a logger that writes entries to the given streams.
func Writer(out, errOut io.Writer) Logger {
	return func(e types.BuildLogEntry) {
		switch e.Type {
		case types.LogEntryResult:
			if e.Error != "" {
				fmt.Fprintf(errOut, "[build] %s build %s: %s\n", e.Timestamp.Format("15:04:05"), e.Status, e.Error)
			} else {
				fmt.Fprintf(out, "[build] %s build %s\n", e.Timestamp.Format("15:04:05"), e.Status)
			}
		case types.LogEntryStderr:
			fmt.Fprintf(errOut, "[build] %s %s\n", e.Timestamp.Format("15:04:05"), e.Line)
		default:
			fmt.Fprintf(out, "[build] %s %s\n", e.Timestamp.Format("15:04:05"), e.Line)
		}
	}
}

// Discard returns a logger that drops all entries.
func Discard() Logger {
	return func(types.BuildLogEntry) {}
}
