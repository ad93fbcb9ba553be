package recorder

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/pdf-share-relay/backend/internal/model"
	"github.com/pdf-share-relay/backend/internal/session"
)

var _ session.Observer = (*Recorder)(nil)

func TestTimeline_WriteAndRead(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	timeline := NewTimelineWithWriter(&buf, start)
	timeline.timeNow = func() time.Time { return start.Add(1500 * time.Millisecond) }

	if err := timeline.WriteHeader("s1", "deck.pdf"); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	timeline.Artifact("digest")
	timeline.Page(3)

	header, events, err := ReadTimeline(&buf)
	if err != nil {
		t.Fatalf("ReadTimeline: %v", err)
	}
	if header.Version != 1 || header.SessionID != "s1" || header.FileName != "deck.pdf" || header.Timestamp != start.Unix() {
		t.Errorf("unexpected header %+v", header)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != KindArtifact || events[0].Data != "digest" || events[0].Offset != 1.5 {
		t.Errorf("unexpected artifact event %+v", events[0])
	}
	if events[1].Kind != KindPage || events[1].Data != "3" {
		t.Errorf("unexpected page event %+v", events[1])
	}
}

func TestEvent_UnmarshalRejectsBadShape(t *testing.T) {
	for _, input := range []string{`[1, "p"]`, `{"a":1}`, `["x", "p", "1"]`, `[1, 2, "1"]`} {
		var e Event
		if err := e.UnmarshalJSON([]byte(input)); err == nil {
			t.Errorf("expected error for %s", input)
		}
	}
}

func TestReadTimeline_Empty(t *testing.T) {
	if _, _, err := ReadTimeline(bytes.NewReader(nil)); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestRecorder_FollowsSessionManager(t *testing.T) {
	dir := t.TempDir()
	rec, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rec.Close()

	manager := session.NewManager(nil, session.Config{Observers: []session.Observer{rec}})
	defer manager.Close()

	id, _, err := manager.CreateSession("host", model.SessionMeta{FileName: "talk.pdf"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := manager.SetArtifact(id, []byte("%PDF-1.4 data")); err != nil {
		t.Fatalf("SetArtifact: %v", err)
	}
	manager.SetPosition(id, 2)
	manager.SetPosition(id, 5)

	info, _ := manager.Get(id)
	manager.DetachHost("host")
	if reaped := manager.Reap(time.Now().Add(3 * time.Hour)); len(reaped) != 1 {
		t.Fatalf("expected session reaped, got %d", len(reaped))
	}
	manager.Flush()
	if rec.get(id) != nil {
		t.Error("timeline should be closed and dropped after reap")
	}

	file, err := os.Open(rec.Path(info))
	if err != nil {
		t.Fatalf("open timeline: %v", err)
	}
	defer file.Close()

	header, events, err := ReadTimeline(file)
	if err != nil {
		t.Fatalf("ReadTimeline: %v", err)
	}
	if header.SessionID != id || header.FileName != "talk.pdf" {
		t.Errorf("unexpected header %+v", header)
	}
	kinds := ""
	for _, e := range events {
		kinds += e.Kind
	}
	if kinds != "app" {
		t.Errorf("expected events a,p,p got %q", kinds)
	}
	if events[0].Data != info.ArtifactDigest || events[2].Data != "5" {
		t.Errorf("unexpected event data %+v", events)
	}
}

func TestRecorder_BadDir(t *testing.T) {
	file, err := os.CreateTemp(t.TempDir(), "not-a-dir")
	if err != nil {
		t.Fatal(err)
	}
	file.Close()
	if _, err := New(file.Name()); err == nil {
		t.Error("expected error when dir is a file")
	}
}
