// Package sink persists banner records as gzip-compressed,
// newline-delimited JSON files.
package sink

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/user/netlens/internal/model"
)

// WriteError is returned when a record cannot be persisted. It identifies
// the file so the failure is actionable.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Writer is an append-capable compressed record writer. One banner becomes
// one line of compact JSON.
type Writer struct {
	path string
	f    *os.File
	gz   *gzip.Writer
}

// Open opens a record file for writing. Mode "a" appends (creating the
// file if absent), mode "w" truncates. The compression level follows
// gzip's 0-9 range.
func Open(path, mode string, level int) (*Writer, error) {
	flags := os.O_CREATE | os.O_WRONLY
	switch mode {
	case "a", "":
		flags |= os.O_APPEND
	case "w":
		flags |= os.O_TRUNC
	default:
		return nil, fmt.Errorf("invalid sink mode %q", mode)
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}

	gz, err := gzip.NewWriterLevel(f, level)
	if err != nil {
		f.Close()
		return nil, &WriteError{Path: path, Err: err}
	}

	return &Writer{path: path, f: f, gz: gz}, nil
}

// Path returns the file the writer appends to.
func (w *Writer) Path() string {
	return w.path
}

// Write serializes one banner as a line of compact JSON. Placeholder
// banners are skipped silently.
func (w *Writer) Write(b model.Banner) error {
	if b.Placeholder() {
		return nil
	}

	data, err := json.Marshal(b)
	if err != nil {
		return &WriteError{Path: w.path, Err: err}
	}
	data = append(data, '\n')

	if _, err := w.gz.Write(data); err != nil {
		return &WriteError{Path: w.path, Err: err}
	}
	return nil
}

// Close flushes the compressor and releases the file handle.
func (w *Writer) Close() error {
	if err := w.gz.Close(); err != nil {
		w.f.Close()
		return &WriteError{Path: w.path, Err: err}
	}
	if err := w.f.Close(); err != nil {
		return &WriteError{Path: w.path, Err: err}
	}
	return nil
}

// EnsureExt appends the canonical ".json.gz" extension if missing.
func EnsureExt(name string) string {
	if strings.HasSuffix(name, ".json.gz") {
		return name
	}
	return name + ".json.gz"
}

// ReadFile iterates the banners stored in a .json.gz (or plain .json)
// file, invoking fn for each. Iteration stops on the first fn error.
func ReadFile(path string, fn func(model.Banner) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var b model.Banner
		if err := json.Unmarshal([]byte(line), &b); err != nil {
			return fmt.Errorf("malformed record in %s: %w", path, err)
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return scanner.Err()
}
