// Package buffer keeps the recent tail of the process log in memory.
package buffer

import (
	"bytes"
	"sync"
)

// DefaultLogTailSize is the number of log bytes kept when no size is given.
const DefaultLogTailSize = 64 * 1024

// LogTail is a fixed-size circular byte buffer holding the most recent log
// output. It implements io.Writer so it can be teed behind the standard
// logger.
type LogTail struct {
	mu    sync.RWMutex
	buf   []byte
	start int
	size  int

	// wrapped is set once any byte has been overwritten.
	wrapped bool
}

// NewLogTail creates a LogTail keeping the last capacity bytes.
func NewLogTail(capacity int) *LogTail {
	if capacity <= 0 {
		capacity = DefaultLogTailSize
	}
	return &LogTail{buf: make([]byte, capacity)}
}

// Write appends p, overwriting the oldest bytes once full.
func (t *LogTail) Write(p []byte) (int, error) {
	n := len(p)
	if n == 0 {
		return 0, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	capacity := len(t.buf)
	if n >= capacity {
		t.wrapped = t.wrapped || n > capacity || t.size > 0
		copy(t.buf, p[n-capacity:])
		t.start, t.size = 0, capacity
		return n, nil
	}

	end := (t.start + t.size) % capacity
	copied := copy(t.buf[end:], p)
	copy(t.buf, p[copied:])

	t.size += n
	if t.size > capacity {
		t.wrapped = true
		t.start = (t.start + t.size - capacity) % capacity
		t.size = capacity
	}
	return n, nil
}

// Bytes returns a copy of the retained output, oldest first.
func (t *LogTail) Bytes() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.size == 0 {
		return nil
	}
	out := make([]byte, t.size)
	copied := copy(out, t.buf[t.start:min(t.start+t.size, len(t.buf))])
	copy(out[copied:], t.buf[:t.size-copied])
	return out
}

// Lines returns up to n of the most recent complete lines. A leading partial
// line left over from overwriting is dropped.
func (t *LogTail) Lines(n int) []string {
	data := t.Bytes()
	if len(data) == 0 || n <= 0 {
		return []string{}
	}

	t.mu.RLock()
	wrapped := t.wrapped
	t.mu.RUnlock()
	if wrapped {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		}
	}

	data = bytes.TrimRight(data, "\n")
	if len(data) == 0 {
		return []string{}
	}
	lines := bytes.Split(data, []byte{'\n'})
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = string(line)
	}
	return out
}

// Len returns the number of bytes retained.
func (t *LogTail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Cap returns the capacity in bytes.
func (t *LogTail) Cap() int {
	return len(t.buf)
}

// Reset discards all retained output.
func (t *LogTail) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start, t.size = 0, 0
	t.wrapped = false
}
