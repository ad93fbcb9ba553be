package model

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConnectionNotFound is returned when a connection id has no registry record.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrInvalidArtifact is returned when uploaded bytes do not carry the PDF signature.
	ErrInvalidArtifact = errors.New("invalid artifact: missing %PDF- signature")

	// ErrProtocol is returned for frames that are neither JSON control messages
	// nor signed artifacts.
	ErrProtocol = errors.New("protocol error")

	// ErrDelivery is returned when a frame cannot be handed to a recipient.
	ErrDelivery = errors.New("delivery failed")
)
