// Package logging provides the rotating file writer used to capture each
// service's stdout, trimmed to the single stream the Output capture
// component (SPEC_FULL.md) needs.
package logging

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// defaultMaxSize bounds a single capture file before it is rotated.
const defaultMaxSize = 10 * 1024 * 1024

// defaultMaxFiles is how many rotated backups are kept alongside the
// active file.
const defaultMaxFiles = 5

// Writer is an append-only, size-rotated io.Writer backing one service's
// captured stdout.
type Writer struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	path     string
	maxSize  int64
	maxFiles int
	size     int64
}

// NewWriter opens (creating if needed) the capture file at path.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating capture directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat capture file: %w", err)
	}

	return &Writer{
		file:     file,
		writer:   bufio.NewWriter(file),
		path:     path,
		maxSize:  defaultMaxSize,
		maxFiles: defaultMaxFiles,
		size:     info.Size(),
	}, nil
}

// Write implements io.Writer, rotating the underlying file first if the
// write would exceed maxSize.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxSize > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating capture file: %w", err)
		}
	}

	n, err := w.writer.Write(p)
	if err != nil {
		return n, err
	}
	w.size += int64(n)

	if err := w.writer.Flush(); err != nil {
		return n, err
	}
	return n, nil
}

func (w *Writer) rotate() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}

	oldest := fmt.Sprintf("%s.%d", w.path, w.maxFiles)
	os.Remove(oldest)
	for i := w.maxFiles - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", w.path, i), fmt.Sprintf("%s.%d", w.path, i+1))
	}
	if err := os.Rename(w.path, w.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = file
	w.writer = bufio.NewWriter(file)
	w.size = 0
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}

// Path returns the capture file's path.
func (w *Writer) Path() string {
	return w.path
}
