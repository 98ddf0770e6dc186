package rtc

import (
	"context"
	"fmt"
)

// EventKind names a transport lifecycle or data event
type EventKind string

const (
	EventConnectionStateChanged EventKind = "connection_state_changed"
	EventDisconnected           EventKind = "disconnected"
	EventDataReceived           EventKind = "data_received"
	EventParticipantConnected   EventKind = "participant_connected"
	EventParticipantLeft        EventKind = "participant_disconnected"
	EventTrackPublished         EventKind = "track_published"
	EventTrackUnpublished       EventKind = "track_unpublished"
	EventTrackMuted             EventKind = "track_muted"
	EventTrackUnmuted           EventKind = "track_unmuted"
)

// ConnectionState mirrors the room connection state reported by the provider
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// TrackKind is the media kind of a published track
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Participant identifies someone in the room
type Participant struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	Local    bool   `json:"local,omitempty"`
}

// Track describes a published track
type Track struct {
	SID        string    `json:"sid"`
	Kind       TrackKind `json:"kind"`
	Subscribed bool      `json:"subscribed"`
}

// Event is a single callback from the transport. Only the fields relevant to Kind are set
type Event struct {
	Kind        EventKind
	State       ConnectionState // EventConnectionStateChanged
	Reason      string          // EventDisconnected
	Payload     []byte          // EventDataReceived
	Reliable    bool            // EventDataReceived
	Topic       string          // EventDataReceived
	Participant Participant
	Track       Track
}

// Handler receives transport events. Events from one room arrive in emission order
type Handler func(Event)

// Transport is the real-time room connection. Implementations own media and signalling
type Transport interface {
	// Connect joins the room the token grants and delivers every event to handler until
	// Disconnect is called
	Connect(ctx context.Context, url, token string, handler Handler) error

	// SetMicrophoneEnabled publishes the local audio track on first enable and mutes or
	// unmutes it afterwards
	SetMicrophoneEnabled(ctx context.Context, enabled bool) error

	// RoomName is the name the provider reports for the joined room
	RoomName() string

	// RemoteParticipants lists everyone else currently in the room
	RemoteParticipants() []Participant

	// SubscribeAudio subscribes every audio track the participant has published
	SubscribeAudio(identity string) error

	// Disconnect leaves the room. It is safe to call when not connected
	Disconnect() error
}

// TransportError is returned when a transport operation fails
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, e.URL, e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
