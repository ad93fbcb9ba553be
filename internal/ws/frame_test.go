package ws

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pdf-share-relay/backend/internal/model"
)

func TestClassifyFrame(t *testing.T) {
	tests := []struct {
		name        string
		messageType int
		data        string
		kind        FrameKind
		msgType     MessageType
		wantErr     bool
	}{
		{"text control", websocket.TextMessage, `{"type":"ping","timestamp":1}`, FrameControl, MessageTypePing, false},
		{"text garbage", websocket.TextMessage, `not json`, 0, "", true},
		{"text without type", websocket.TextMessage, `{"page":3}`, 0, "", true},
		{"binary json", websocket.BinaryMessage, `{"type":"register","role":"guest"}`, FrameControl, MessageTypeRegister, false},
		{"binary broken json", websocket.BinaryMessage, `{"type":`, 0, "", true},
		{"binary artifact", websocket.BinaryMessage, "%PDF-1.4 body", FrameArtifact, "", false},
		{"exact magic", websocket.BinaryMessage, "%PDF-", FrameArtifact, "", false},
		{"three bytes", websocket.BinaryMessage, "%PD", 0, "", true},
		{"empty binary", websocket.BinaryMessage, "", 0, "", true},
		{"other binary", websocket.BinaryMessage, "\x89PNG\r\n", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ClassifyFrame(tt.messageType, []byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, model.ErrProtocol) {
					t.Fatalf("Expected ErrProtocol, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if frame.Kind != tt.kind {
				t.Errorf("Expected kind %d, got %d", tt.kind, frame.Kind)
			}
			if tt.kind == FrameControl && frame.Message.Type != tt.msgType {
				t.Errorf("Expected type %s, got %s", tt.msgType, frame.Message.Type)
			}
			if tt.kind == FrameArtifact && !bytes.Equal(frame.Data, []byte(tt.data)) {
				t.Error("Artifact data should be passed through unchanged")
			}
		})
	}
}

func TestClassifyFrameProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("binary frames are artifacts only when signed", prop.ForAll(
		func(data []byte) bool {
			frame, err := ClassifyFrame(websocket.BinaryMessage, data)
			if err != nil {
				return errors.Is(err, model.ErrProtocol) && !model.IsArtifact(data)
			}
			if frame.Kind == FrameArtifact {
				return model.IsArtifact(data)
			}
			return frame.Kind == FrameControl && data[0] == '{'
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("signed payloads are always artifacts", prop.ForAll(
		func(tail []byte) bool {
			data := append([]byte("%PDF-"), tail...)
			frame, err := ClassifyFrame(websocket.BinaryMessage, data)
			return err == nil && frame.Kind == FrameArtifact
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("short frames are rejected", prop.ForAll(
		func(data []byte) bool {
			if len(data) > 4 {
				data = data[:4]
			}
			if len(data) > 0 && data[0] == '{' {
				data[0] = '['
			}
			_, err := ClassifyFrame(websocket.BinaryMessage, data)
			return errors.Is(err, model.ErrProtocol)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
