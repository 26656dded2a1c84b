package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const maxLineBytes = 1024 * 1024

// Tail returns the last n lines read from r. n <= 0 returns every line.
func Tail(r io.Reader, n int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > 2*n {
			// Compact so memory stays bounded by the window.
			lines = append(lines[:0], lines[len(lines)-n:]...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// ReadFile returns the last n lines of the file at path. A missing file has
// no lines.
func ReadFile(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()
	return Tail(file, n)
}

// Print writes lines to w. JSON log events are formatted with zerolog's
// console writer; anything else is copied through unchanged.
func Print(w io.Writer, lines []string, color bool) error {
	console := zerolog.ConsoleWriter{Out: w, NoColor: !color, TimeFormat: "2006-01-02 15:04:05"}
	for _, line := range lines {
		if _, err := console.Write([]byte(line)); err == nil {
			continue
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
