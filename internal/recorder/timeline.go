package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Event kinds.
const (
	KindArtifact = "a"
	KindPage     = "p"
)

// Header is the first line of a timeline file.
type Header struct {
	Version   int    `json:"version"`
	SessionID string `json:"sessionId"`
	FileName  string `json:"fileName,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Event is one timed entry, encoded as [offset, kind, data].
type Event struct {
	Offset float64
	Kind   string
	Data   string
}

// MarshalJSON implements custom JSON marshaling for Event.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Offset, e.Kind, e.Data})
}

// UnmarshalJSON implements custom JSON unmarshaling for Event.
func (e *Event) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event: expected 3 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &e.Offset); err != nil {
		return fmt.Errorf("invalid event offset: %w", err)
	}
	if err := json.Unmarshal(arr[1], &e.Kind); err != nil {
		return fmt.Errorf("invalid event kind: %w", err)
	}
	if err := json.Unmarshal(arr[2], &e.Data); err != nil {
		return fmt.Errorf("invalid event data: %w", err)
	}
	return nil
}

// Timeline appends the navigation history of one session as JSON lines.
type Timeline struct {
	writer    io.Writer
	file      *os.File // only set if we own the file
	startTime time.Time
	timeNow   func() time.Time
	mu        sync.Mutex
}

// NewTimeline creates a timeline file at path.
func NewTimeline(path string, start time.Time) (*Timeline, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create timeline file: %w", err)
	}
	return &Timeline{
		writer:    file,
		file:      file,
		startTime: start,
		timeNow:   time.Now,
	}, nil
}

// NewTimelineWithWriter creates a timeline over w.
func NewTimelineWithWriter(w io.Writer, start time.Time) *Timeline {
	return &Timeline{
		writer:    w,
		startTime: start,
		timeNow:   time.Now,
	}
}

// WriteHeader writes the header line. Call it once, first.
func (t *Timeline) WriteHeader(sessionID, fileName string) error {
	return t.writeLine(Header{
		Version:   1,
		SessionID: sessionID,
		FileName:  fileName,
		Timestamp: t.startTime.Unix(),
	})
}

// Artifact records an upload by its digest.
func (t *Timeline) Artifact(digest string) error {
	return t.writeEvent(KindArtifact, digest)
}

// Page records a position change.
func (t *Timeline) Page(page int) error {
	return t.writeEvent(KindPage, fmt.Sprint(page))
}

func (t *Timeline) writeEvent(kind, data string) error {
	return t.writeLine(Event{
		Offset: t.timeNow().Sub(t.startTime).Seconds(),
		Kind:   kind,
		Data:   data,
	})
}

func (t *Timeline) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline line: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write timeline line: %w", err)
	}
	return nil
}

// Close closes the file if the timeline owns one.
func (t *Timeline) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file != nil {
		err := t.file.Close()
		t.file = nil
		return err
	}
	return nil
}

// ReadTimeline parses a timeline written by Timeline.
func ReadTimeline(r io.Reader) (Header, []Event, error) {
	var header Header
	var events []Event

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return header, nil, err
		}
		return header, nil, io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return header, nil, fmt.Errorf("invalid header: %w", err)
	}

	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return header, events, err
		}
		events = append(events, e)
	}
	return header, events, scanner.Err()
}
