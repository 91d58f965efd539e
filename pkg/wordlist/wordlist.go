// Package wordlist reads candidate labels from a file, one per line.
package wordlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrUnreadable is returned when the wordlist cannot be opened or read
var ErrUnreadable = errors.New("wordlist unreadable")

// maxLineLength bounds a single wordlist line
const maxLineLength = 1024 * 1024

// Load reads the wordlist at path. Lines are trimmed, blank lines dropped,
// order and duplicates kept.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	words, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	return words, nil
}

// Read parses a wordlist from r
func Read(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var words []string
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		words = append(words, word)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
