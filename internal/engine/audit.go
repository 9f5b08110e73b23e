package engine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gorichard/scalpel/internal/coverage"
)

// AuditWriter emits the tab-separated audit log: one line per
// physical fragment of every terminally closed CarveTask.
type AuditWriter struct {
	f   *os.File
	w   *bufio.Writer
	img string
}

// OpenAudit creates <outputDir>/audit.txt for imageBase, or opens it
// for appending if an earlier image of the same run already wrote it;
// an existing file is never truncated.
func OpenAudit(outputDir, imageBase string) (*AuditWriter, error) {
	path := filepath.Join(outputDir, "audit.txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("engine: open audit log %s: %w", path, err)
	}
	return &AuditWriter{f: f, w: bufio.NewWriter(f), img: imageBase}, nil
}

// Emit expands task's logical span into its physical fragments and
// writes one audit line per fragment.
func (a *AuditWriter) Emit(facade *coverage.Facade, task *CarveTask) error {
	base := filepath.Base(task.Filename)
	choppedTag := "NO"
	if task.Chopped {
		choppedTag = "YES"
	}

	frags := facade.Fragments(task.Start, task.Stop-task.Start+1)
	for _, frag := range frags {
		line := fmt.Sprintf("%s\t%d\t%s\t%d\t%s\n", base, frag.Start, choppedTag, frag.Length, a.img)
		if _, err := a.w.WriteString(line); err != nil {
			return fmt.Errorf("engine: write audit line: %w", err)
		}
	}
	return nil
}

// Note records a human-readable diagnostic line for a per-image
// failure, so the audit file carries a matching entry for failures
// surfaced mid-image (spec §7 user-visible failure behaviour).
func (a *AuditWriter) Note(msg string) error {
	_, err := a.w.WriteString("# " + msg + "\n")
	return err
}

// Close flushes buffered audit lines and closes the underlying file.
func (a *AuditWriter) Close() error {
	if err := a.w.Flush(); err != nil {
		a.f.Close()
		return fmt.Errorf("engine: flush audit log: %w", err)
	}
	return a.f.Close()
}
