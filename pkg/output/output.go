// Package output serializes scan results for the result file.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"domain-hunter/pkg/resolver"
)

// FormatLine renders one outcome as "<candidate> -> <a1>, <a2> <seconds>"
func FormatLine(o resolver.Outcome) string {
	return fmt.Sprintf("%s -> %s %.2f", o.Candidate, strings.Join(o.Addresses, ", "), o.ElapsedSeconds())
}

// Write writes one newline-terminated line per outcome, in the given order.
// Outcomes without addresses are skipped.
func Write(w io.Writer, outcomes []resolver.Outcome) error {
	bw := bufio.NewWriter(w)
	for _, o := range outcomes {
		if !o.Resolved() {
			continue
		}
		if _, err := bw.WriteString(FormatLine(o) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile creates or truncates path and writes outcomes to it
func SaveFile(path string, outcomes []resolver.Outcome) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", closeErr)
		}
	}()

	if err := Write(f, outcomes); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}
