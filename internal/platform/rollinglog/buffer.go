// Package rollinglog keeps the last N log lines of a background loop in memory
// and optionally mirrors them to a size-capped file.
package rollinglog

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/valyala/bytebufferpool"
)

const DefaultMaxLines = 200

// Buffer is a bounded ring of log lines. It implements zapcore.WriteSyncer so a
// logger can tee into it directly.
type Buffer struct {
	mu       sync.Mutex
	lines    []string
	start    int
	count    int
	partial  []byte
	file     *os.File
	path     string
	maxBytes int64
	written  int64
}

func New(maxLines int) *Buffer {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Buffer{lines: make([]string, maxLines)}
}

// NewWithFile restores the tail of an existing log file and keeps appending to it.
// The file is rewritten to the in-memory tail whenever it grows past maxBytes.
func NewWithFile(maxLines int, path string, maxBytes int64) (*Buffer, error) {
	b := New(maxLines)
	path = strings.TrimSpace(path)
	if path == "" {
		return b, nil
	}
	if maxBytes <= 0 {
		maxBytes = 20000
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if err := b.restore(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}

	b.file = f
	b.path = path
	b.maxBytes = maxBytes
	b.written = info.Size()
	return b, nil
}

func (b *Buffer) restore(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		b.appendLocked(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	return nil
}

// Write splits p on newlines; a trailing fragment is held until its newline arrives.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := p
	if len(b.partial) > 0 {
		data = append(b.partial, p...)
		b.partial = nil
	}

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(data[:idx]), "\r")
		data = data[idx+1:]
		if line == "" {
			continue
		}
		b.appendLocked(line)
		if err := b.persistLocked(line); err != nil {
			return len(p), err
		}
	}
	if len(data) > 0 {
		b.partial = append([]byte(nil), data...)
	}

	return len(p), nil
}

func (b *Buffer) Sync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return nil
	}
	return b.file.Sync()
}

// Append adds a single line.
func (b *Buffer) Append(line string) {
	_, _ = b.Write([]byte(strings.TrimRight(line, "\n") + "\n"))
}

func (b *Buffer) appendLocked(line string) {
	capacity := len(b.lines)
	if b.count < capacity {
		b.lines[(b.start+b.count)%capacity] = line
		b.count++
		return
	}
	b.lines[b.start] = line
	b.start = (b.start + 1) % capacity
}

func (b *Buffer) persistLocked(line string) error {
	if b.file == nil {
		return nil
	}
	n, err := b.file.WriteString(line + "\n")
	b.written += int64(n)
	if err != nil {
		return fmt.Errorf("append log file: %w", err)
	}
	if b.written <= b.maxBytes {
		return nil
	}
	return b.compactLocked()
}

func (b *Buffer) compactLocked() error {
	tail := b.renderLocked(0)
	if int64(len(tail)) > b.maxBytes {
		tail = tail[int64(len(tail))-b.maxBytes:]
		if idx := strings.IndexByte(tail, '\n'); idx >= 0 {
			tail = tail[idx+1:]
		}
	}

	if err := b.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate log file: %w", err)
	}
	if _, err := b.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}
	n, err := b.file.WriteString(tail)
	b.written = int64(n)
	if err != nil {
		return fmt.Errorf("rewrite log file: %w", err)
	}
	return nil
}

// Lines returns the buffered lines, oldest first.
func (b *Buffer) Lines() []string {
	return b.Tail(0)
}

// Tail returns up to n most recent lines, oldest first. n <= 0 means all.
func (b *Buffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > b.count {
		n = b.count
	}
	out := make([]string, 0, n)
	capacity := len(b.lines)
	for i := b.count - n; i < b.count; i++ {
		out = append(out, b.lines[(b.start+i)%capacity])
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// String renders the tail as newline separated text.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renderLocked(0)
}

func (b *Buffer) renderLocked(n int) string {
	if n <= 0 || n > b.count {
		n = b.count
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	capacity := len(b.lines)
	for i := b.count - n; i < b.count; i++ {
		_, _ = buf.WriteString(b.lines[(b.start+i)%capacity])
		_ = buf.WriteByte('\n')
	}
	return buf.String()
}

// Clear drops every buffered line and truncates the mirror file.
func (b *Buffer) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.lines {
		b.lines[i] = ""
	}
	b.start = 0
	b.count = 0
	b.partial = nil

	if b.file == nil {
		return nil
	}
	if err := b.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate log file: %w", err)
	}
	if _, err := b.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}
	b.written = 0
	return nil
}

func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	return err
}
