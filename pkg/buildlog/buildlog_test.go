package buildlog

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

func TestWriter_OnePerEntryInOrder(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := Writer(&out, &errOut)

	ts := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	for _, line := range []string{"step 1", "step 2", "step 3"} {
		logger(types.BuildLogEntry{Type: types.LogEntryStdout, Line: line, Timestamp: ts})
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 output lines, got %d: %q", len(lines), out.String())
	}
	for i, want := range []string{"step 1", "step 2", "step 3"} {
		if !strings.HasSuffix(lines[i], want) {
			t.Errorf("line %d: expected suffix %q, got %q", i, want, lines[i])
		}
	}
	if errOut.Len() != 0 {
		t.Errorf("expected no stderr output, got %q", errOut.String())
	}
}

func TestWriter_ErrorsToErrStream(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := Writer(&out, &errOut)

	logger(types.BuildLogEntry{Type: types.LogEntryStderr, Line: "boom", Timestamp: time.Now()})
	logger(types.BuildLogEntry{
		Type:      types.LogEntryResult,
		Status:    types.BuildStatusFailed,
		Error:     "exit 1",
		Timestamp: time.Now(),
	})

	if out.Len() != 0 {
		t.Errorf("expected no stdout output, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "boom") || !strings.Contains(errOut.String(), "exit 1") {
		t.Errorf("expected stderr to carry error lines, got %q", errOut.String())
	}
}
