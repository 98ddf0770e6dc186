package session

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/ethanbaker/avatar-client/internal/rtc"
)

// dataMessage is the shape of transcript messages pushed over the data channel
type dataMessage struct {
	Type    string `json:"type,omitempty"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// decodeDataMessage parses a data packet. Both the typed {"type":"transcript",...} and
// the bare {role, message} shapes are accepted
func decodeDataMessage(payload []byte) (*dataMessage, error) {
	var msg dataMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	if msg.Role == "" || msg.Message == "" {
		return nil, fmt.Errorf("data message is missing role or message")
	}
	return &msg, nil
}

// handleEvent applies one transport event
func (c *Controller) handleEvent(env envelope) {
	gen, ev := env.generation, env.event

	c.mu.Lock()
	stale := c.generation != gen
	c.mu.Unlock()
	if stale {
		return
	}

	switch ev.Kind {
	case rtc.EventConnectionStateChanged:
		switch ev.State {
		case rtc.StateConnected:
			c.activate(gen)
		case rtc.StateReconnecting:
			log.Println("[SESSION]: Connection lost, reconnecting...")
		}

	case rtc.EventDisconnected:
		c.handleDisconnect(gen, ev.Reason)

	case rtc.EventDataReceived:
		c.handleData(gen, ev)

	case rtc.EventParticipantConnected:
		log.Printf("[SESSION]: Participant connected: %s", ev.Participant.Identity)
		c.subscribeAudio(ev.Participant)
		c.refreshAgent(gen, "")

	case rtc.EventParticipantLeft:
		log.Printf("[SESSION]: Participant disconnected: %s", ev.Participant.Identity)
		c.refreshAgent(gen, ev.Participant.Identity)

	case rtc.EventTrackPublished:
		if ev.Track.Kind == rtc.TrackAudio && !ev.Participant.Local {
			c.subscribeAudio(ev.Participant)
		}

	case rtc.EventTrackUnpublished:
		log.Printf("[SESSION]: Track %s unpublished by %s", ev.Track.SID, ev.Participant.Identity)

	case rtc.EventTrackMuted, rtc.EventTrackUnmuted:
		if !ev.Participant.Local || ev.Track.Kind != rtc.TrackAudio {
			return
		}
		c.mu.Lock()
		if c.generation == gen {
			c.micEnabled = ev.Kind == rtc.EventTrackUnmuted
		}
		c.mu.Unlock()
		c.notify()
	}
}

// activate moves Connecting to Active and subscribes to everyone already in the room
func (c *Controller) activate(gen uint64) {
	room := c.transport.RoomName()
	participants := c.transport.RemoteParticipants()

	c.mu.Lock()
	if c.generation != gen || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateActive
	if room != "" {
		c.room = room
	}
	c.agentPresent = c.hasAgent(participants, "")
	c.startReconcileLocked()
	c.mu.Unlock()

	log.Printf("[SESSION]: Connected to room '%s'", room)
	c.notify()

	for _, p := range participants {
		c.subscribeAudio(p)
	}
}

// handleDisconnect reacts to a disconnect the user did not ask for
func (c *Controller) handleDisconnect(gen uint64, reason string) {
	if reason == "" {
		reason = "unknown"
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}

	switch c.state {
	case StateConnecting:
		c.state = StateError
		c.errMsg = fmt.Sprintf("Disconnected while connecting: %s", reason)
		c.reason = reason
		c.mu.Unlock()

		log.Printf("[SESSION]: Disconnected while connecting: %s", reason)
		c.disconnectTransport()
		c.notify()

	case StateActive:
		c.reason = reason
		c.beginEvaluationLocked()
		c.mu.Unlock()

		log.Printf("[SESSION]: Disconnected from room: %s", reason)
		c.disconnectTransport()
		c.notify()

	default:
		// Already leaving
		c.mu.Unlock()
	}
}

// handleData appends a transcript message from the data channel
func (c *Controller) handleData(gen uint64, ev rtc.Event) {
	if !ev.Reliable {
		return
	}

	msg, err := decodeDataMessage(ev.Payload)
	if err != nil {
		log.Printf("[SESSION]: Could not parse data message: %v", err)
		return
	}

	c.transcriptMu.Lock()
	defer c.transcriptMu.Unlock()

	if !c.isCurrent(gen, StateConnecting, StateActive) {
		return
	}
	c.store.Append(msg.Role, msg.Message)
}

// refreshAgent recomputes agent presence, ignoring a participant that just left
func (c *Controller) refreshAgent(gen uint64, leaving string) {
	participants := c.transport.RemoteParticipants()

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	present := c.hasAgent(participants, leaving)
	changed := present != c.agentPresent
	c.agentPresent = present
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

func (c *Controller) hasAgent(participants []rtc.Participant, leaving string) bool {
	for _, p := range participants {
		if leaving != "" && p.Identity == leaving {
			continue
		}
		if c.isAgent(p) {
			return true
		}
	}
	return false
}

func (c *Controller) subscribeAudio(p rtc.Participant) {
	if err := c.transport.SubscribeAudio(p.Identity); err != nil {
		log.Printf("[SESSION]: Failed to subscribe to audio of %s: %v", p.Identity, err)
	}
}
