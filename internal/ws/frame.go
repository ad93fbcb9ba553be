package ws

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/pdf-share-relay/backend/internal/model"
)

// FrameKind tells the router what an inbound frame carries.
type FrameKind int

const (
	FrameControl FrameKind = iota + 1
	FrameArtifact
)

// Frame is a classified inbound frame. Message is set for control frames,
// Data for artifacts.
type Frame struct {
	Kind    FrameKind
	Message *Message
	Data    []byte
}

// ClassifyFrame decides whether a frame is a JSON control message or an
// artifact upload. Binary frames that look like JSON are parsed first and
// only fall back to the artifact signature check if parsing fails.
func ClassifyFrame(messageType int, data []byte) (Frame, error) {
	switch messageType {
	case websocket.TextMessage:
		msg, err := parseControl(data)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Kind: FrameControl, Message: msg}, nil

	case websocket.BinaryMessage:
		if len(data) > 0 && data[0] == '{' {
			if msg, err := parseControl(data); err == nil {
				return Frame{Kind: FrameControl, Message: msg}, nil
			}
		}
		if model.IsArtifact(data) {
			return Frame{Kind: FrameArtifact, Data: data}, nil
		}
		return Frame{}, fmt.Errorf("%w: %d byte binary frame without signature", model.ErrProtocol, len(data))
	}

	return Frame{}, fmt.Errorf("%w: unexpected frame type %d", model.ErrProtocol, messageType)
}

func parseControl(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrProtocol, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: message without type", model.ErrProtocol)
	}
	return &msg, nil
}
