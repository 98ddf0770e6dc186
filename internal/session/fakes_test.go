package session

import (
	"context"
	"errors"
	"sync"

	"github.com/ethanbaker/avatar-client/internal/provision"
	"github.com/ethanbaker/avatar-client/internal/rtc"
	"github.com/ethanbaker/avatar-client/pkg/evaluation"
	"github.com/ethanbaker/avatar-client/pkg/sdk"
	"github.com/ethanbaker/avatar-client/pkg/transcript"
)

// fakeTransport records calls and lets tests emit events by hand
type fakeTransport struct {
	mu           sync.Mutex
	handler      rtc.Handler
	roomName     string
	participants []rtc.Participant
	connectErr   error
	micErr       error
	connects     int
	disconnects  int
	micCalls     []bool
	subscribed   []string
}

func (f *fakeTransport) Connect(ctx context.Context, url, token string, handler rtc.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connectErr != nil {
		return &rtc.TransportError{Op: "connect", URL: url, Err: f.connectErr}
	}
	f.handler = handler
	f.connects++
	return nil
}

func (f *fakeTransport) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.micErr != nil {
		return &rtc.TransportError{Op: "enable microphone", Err: f.micErr}
	}
	f.micCalls = append(f.micCalls, enabled)
	return nil
}

func (f *fakeTransport) RoomName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomName
}

func (f *fakeTransport) RemoteParticipants() []rtc.Participant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rtc.Participant(nil), f.participants...)
}

func (f *fakeTransport) SubscribeAudio(identity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, identity)
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeTransport) emit(ev rtc.Event) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()

	if handler != nil {
		handler(ev)
	}
}

func (f *fakeTransport) join(p rtc.Participant) {
	f.mu.Lock()
	f.participants = append(f.participants, p)
	f.mu.Unlock()
	f.emit(rtc.Event{Kind: rtc.EventParticipantConnected, Participant: p})
}

func (f *fakeTransport) set(fn func(f *fakeTransport)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type transportStats struct {
	connects    int
	disconnects int
	micCalls    []bool
	subscribed  []string
}

func (f *fakeTransport) stats() transportStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return transportStats{
		connects:    f.connects,
		disconnects: f.disconnects,
		micCalls:    append([]bool(nil), f.micCalls...),
		subscribed:  append([]string(nil), f.subscribed...),
	}
}

func connected() rtc.Event {
	return rtc.Event{Kind: rtc.EventConnectionStateChanged, State: rtc.StateConnected}
}

func data(payload string) rtc.Event {
	return rtc.Event{Kind: rtc.EventDataReceived, Payload: []byte(payload), Reliable: true}
}

// fakeProvisioner returns a fixed credential, optionally running a hook first
type fakeProvisioner struct {
	mu    sync.Mutex
	err   error
	calls int
	hook  func()
}

func (f *fakeProvisioner) Provision(ctx context.Context) (*provision.Credential, error) {
	f.mu.Lock()
	hook, err := f.hook, f.err
	f.calls++
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, &provision.ProvisionError{Room: "room-requested", Err: err}
	}
	return &provision.Credential{Token: "t1", Room: "room-requested", Name: "user-1"}, nil
}

// fakeHistory serves a fixed transcript
type fakeHistory struct {
	mu      sync.Mutex
	entries []transcript.Entry
	err     error
	rooms   []string
}

func (f *fakeHistory) FetchHistory(ctx context.Context, room string) (*sdk.HistoryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rooms = append(f.rooms, room)
	if f.err != nil {
		return nil, f.err
	}
	return &sdk.HistoryResponse{Room: room, Transcript: append([]transcript.Entry(nil), f.entries...)}, nil
}

func (f *fakeHistory) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rooms...)
}

// fakeEvaluator records what it was asked to evaluate
type fakeEvaluator struct {
	mu      sync.Mutex
	outcome evaluation.Outcome
	block   bool
	seen    [][]transcript.Entry
}

func (f *fakeEvaluator) Resolve(ctx context.Context, entries []transcript.Entry) (evaluation.Outcome, error) {
	f.mu.Lock()
	f.seen = append(f.seen, entries)
	outcome, block := f.outcome, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return evaluation.Outcome{}, ctx.Err()
	}
	if outcome.Kind == "" {
		if len(entries) == 0 {
			return evaluation.NoTranscript(), nil
		}
		return evaluation.Report(&evaluation.Result{Text: "Nice work"}, nil), nil
	}
	return outcome, nil
}

func (f *fakeEvaluator) calls() [][]transcript.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]transcript.Entry(nil), f.seen...)
}

var errBackendDown = errors.New("backend down")
