package rtc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
)

// microphoneTrackName is the publication name of the local audio track
const microphoneTrackName = "microphone"

var _ Transport = (*LiveKit)(nil)

// LiveKit is a Transport backed by a LiveKit room
type LiveKit struct {
	mu      sync.Mutex
	room    *lksdk.Room
	handler Handler
	mic     *lksdk.LocalTrackPublication
}

// NewLiveKit creates a disconnected LiveKit transport
func NewLiveKit() *LiveKit {
	return &LiveKit{}
}

// Connect joins the room with the token. Remote tracks are not auto-subscribed; callers
// subscribe audio explicitly via SubscribeAudio
func (l *LiveKit) Connect(ctx context.Context, url, token string, handler Handler) error {
	if url == "" {
		return &TransportError{Op: "connect", Err: errors.New("livekit url is empty")}
	}

	l.mu.Lock()
	if l.room != nil {
		l.mu.Unlock()
		return &TransportError{Op: "connect", URL: url, Err: errors.New("already connected")}
	}
	l.handler = handler
	l.mu.Unlock()

	type result struct {
		room *lksdk.Room
		err  error
	}
	done := make(chan result, 1)

	go func() {
		room, err := lksdk.ConnectToRoomWithToken(url, token, l.callback(), lksdk.WithAutoSubscribe(false))
		done <- result{room, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return &TransportError{Op: "connect", URL: url, Err: res.err}
		}

		l.mu.Lock()
		l.room = res.room
		l.mu.Unlock()

		log.Printf("[RTC]: Connected to room '%s'", res.room.Name())
		l.emit(Event{Kind: EventConnectionStateChanged, State: StateConnected})
		return nil

	case <-ctx.Done():
		// The join may still finish; leave as soon as it does
		go func() {
			if res := <-done; res.err == nil {
				res.room.Disconnect()
			}
		}()
		return &TransportError{Op: "connect", URL: url, Err: ctx.Err()}
	}
}

// SetMicrophoneEnabled publishes an Opus track for the local participant on first enable,
// then toggles its mute state. Nothing captures audio into the track, so it carries silence;
// the agent only sees the participant's mute state
func (l *LiveKit) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.room == nil {
		return &TransportError{Op: "enable microphone", Err: errors.New("not connected")}
	}

	if l.mic != nil {
		l.mic.SetMuted(!enabled)
		return nil
	}
	if !enabled {
		return nil
	}

	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	})
	if err != nil {
		return &TransportError{Op: "enable microphone", Err: err}
	}

	pub, err := l.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{Name: microphoneTrackName})
	if err != nil {
		return &TransportError{Op: "enable microphone", Err: err}
	}

	l.mic = pub
	log.Printf("[RTC]: Published '%s' track without an audio source, sending silence", microphoneTrackName)
	return nil
}

// RoomName returns the provider's name for the joined room, or "" when not connected
func (l *LiveKit) RoomName() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.room == nil {
		return ""
	}
	return l.room.Name()
}

// RemoteParticipants lists the remote participants of the joined room
func (l *LiveKit) RemoteParticipants() []Participant {
	l.mu.Lock()
	room := l.room
	l.mu.Unlock()

	if room == nil {
		return nil
	}

	remotes := room.GetRemoteParticipants()
	out := make([]Participant, 0, len(remotes))
	for _, rp := range remotes {
		out = append(out, Participant{Identity: rp.Identity(), Name: rp.Name()})
	}
	return out
}

// SubscribeAudio subscribes every unsubscribed audio publication of the participant
func (l *LiveKit) SubscribeAudio(identity string) error {
	l.mu.Lock()
	room := l.room
	l.mu.Unlock()

	if room == nil {
		return &TransportError{Op: "subscribe", Err: errors.New("not connected")}
	}

	rp := room.GetParticipantByIdentity(identity)
	if rp == nil {
		return &TransportError{Op: "subscribe", Err: fmt.Errorf("participant '%s' not in room", identity)}
	}

	var errs []error
	for _, pub := range rp.TrackPublications() {
		remote, ok := pub.(*lksdk.RemoteTrackPublication)
		if !ok || pub.Kind() != lksdk.TrackKindAudio || remote.IsSubscribed() {
			continue
		}
		if err := remote.SetSubscribed(true); err != nil {
			errs = append(errs, fmt.Errorf("track %s: %w", pub.SID(), err))
		}
	}

	if len(errs) > 0 {
		return &TransportError{Op: "subscribe", Err: errors.Join(errs...)}
	}
	return nil
}

// Disconnect leaves the room and drops the event handler
func (l *LiveKit) Disconnect() error {
	l.mu.Lock()
	room := l.room
	l.room = nil
	l.mic = nil
	l.handler = nil
	l.mu.Unlock()

	if room != nil {
		room.Disconnect()
	}
	return nil
}

// emit forwards an event to the current handler, if any
func (l *LiveKit) emit(ev Event) {
	l.mu.Lock()
	handler := l.handler
	l.mu.Unlock()

	if handler != nil {
		handler(ev)
	}
}

// isLocal reports whether the identity belongs to the local participant
func (l *LiveKit) isLocal(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.room != nil && l.room.LocalParticipant != nil && l.room.LocalParticipant.Identity() == identity
}

// callback maps LiveKit room callbacks onto transport events
func (l *LiveKit) callback() *lksdk.RoomCallback {
	cb := lksdk.NewRoomCallback()

	cb.OnDisconnectedWithReason = func(reason lksdk.DisconnectionReason) {
		l.emit(Event{Kind: EventDisconnected, Reason: fmt.Sprint(reason)})
	}
	cb.OnReconnecting = func() {
		l.emit(Event{Kind: EventConnectionStateChanged, State: StateReconnecting})
	}
	cb.OnReconnected = func() {
		l.emit(Event{Kind: EventConnectionStateChanged, State: StateConnected})
	}
	cb.OnParticipantConnected = func(rp *lksdk.RemoteParticipant) {
		l.emit(Event{Kind: EventParticipantConnected, Participant: Participant{Identity: rp.Identity(), Name: rp.Name()}})
	}
	cb.OnParticipantDisconnected = func(rp *lksdk.RemoteParticipant) {
		l.emit(Event{Kind: EventParticipantLeft, Participant: Participant{Identity: rp.Identity(), Name: rp.Name()}})
	}

	cb.ParticipantCallback.OnDataPacket = func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
		packet, ok := data.(*lksdk.UserDataPacket)
		if !ok {
			return
		}

		sender := Participant{Identity: params.SenderIdentity}
		if params.Sender != nil {
			sender.Name = params.Sender.Name()
		}

		// User packets from agents are sent on the reliable channel
		l.emit(Event{
			Kind:        EventDataReceived,
			Payload:     packet.Payload,
			Reliable:    true,
			Topic:       packet.Topic,
			Participant: sender,
		})
	}
	cb.ParticipantCallback.OnTrackPublished = func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		l.emit(Event{Kind: EventTrackPublished, Participant: Participant{Identity: rp.Identity(), Name: rp.Name()}, Track: trackOf(pub)})
	}
	cb.ParticipantCallback.OnTrackUnpublished = func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		l.emit(Event{Kind: EventTrackUnpublished, Participant: Participant{Identity: rp.Identity(), Name: rp.Name()}, Track: trackOf(pub)})
	}
	cb.ParticipantCallback.OnTrackMuted = func(pub lksdk.TrackPublication, p lksdk.Participant) {
		l.emit(Event{Kind: EventTrackMuted, Participant: Participant{Identity: p.Identity(), Name: p.Name(), Local: l.isLocal(p.Identity())}, Track: Track{SID: pub.SID(), Kind: TrackKind(pub.Kind())}})
	}
	cb.ParticipantCallback.OnTrackUnmuted = func(pub lksdk.TrackPublication, p lksdk.Participant) {
		l.emit(Event{Kind: EventTrackUnmuted, Participant: Participant{Identity: p.Identity(), Name: p.Name(), Local: l.isLocal(p.Identity())}, Track: Track{SID: pub.SID(), Kind: TrackKind(pub.Kind())}})
	}

	return cb
}

func trackOf(pub *lksdk.RemoteTrackPublication) Track {
	return Track{SID: pub.SID(), Kind: TrackKind(pub.Kind()), Subscribed: pub.IsSubscribed()}
}
