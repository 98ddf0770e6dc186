package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ethanbaker/avatar-client/internal/archive"
	"github.com/ethanbaker/avatar-client/internal/provision"
	"github.com/ethanbaker/avatar-client/internal/rtc"
	"github.com/ethanbaker/avatar-client/pkg/evaluation"
	"github.com/ethanbaker/avatar-client/pkg/sdk"
	"github.com/ethanbaker/avatar-client/pkg/transcript"
	"github.com/robfig/cron/v3"
)

const (
	DefaultAgentIdentity     = "tavus-avatar-agent"
	DefaultSettleDelay       = 3 * time.Second
	DefaultReconcileSchedule = "@every 10s"
	DefaultRequestTimeout    = 10 * time.Second

	// ReconcileOff disables the periodic transcript reconciliation
	ReconcileOff = "off"

	eventBuffer = 256
)

// Provisioner hands out a credential for each connection attempt
type Provisioner interface {
	Provision(ctx context.Context) (*provision.Credential, error)
}

// HistoryFetcher reads the backend's stored transcript for a room
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, room string) (*sdk.HistoryResponse, error)
}

// Evaluator resolves a finished session into an outcome
type Evaluator interface {
	Resolve(ctx context.Context, entries []transcript.Entry) (evaluation.Outcome, error)
}

// Options configures a Controller
type Options struct {
	LiveKitURL        string        `json:"livekit_url" yaml:"livekit_url"`
	AgentIdentity     string        `json:"agent_identity" yaml:"agent_identity"`
	SettleDelay       time.Duration `json:"settle_delay" yaml:"settle_delay"`
	ReconcileSchedule string        `json:"reconcile_schedule" yaml:"reconcile_schedule"`
	RequestTimeout    time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// Dependencies are the collaborators of a Controller. Archive is optional
type Dependencies struct {
	Provisioner Provisioner
	Transport   rtc.Transport
	History     HistoryFetcher
	Evaluator   Evaluator
	Archive     archive.Store
}

// envelope tags a transport event with the connection attempt that produced it
type envelope struct {
	generation uint64
	event      rtc.Event
}

// Controller drives one avatar session at a time through its lifecycle
type Controller struct {
	opts        Options
	provisioner Provisioner
	transport   rtc.Transport
	history     HistoryFetcher
	evaluator   Evaluator
	archive     archive.Store

	store            *transcript.Store
	unsubscribeStore func()

	// transcriptMu serializes transcript writes against the reset of a new attempt
	transcriptMu sync.Mutex

	// Session state
	mu             sync.Mutex
	state          State
	generation     uint64
	room           string
	participant    string
	errMsg         string
	reason         string
	agentPresent   bool
	micEnabled     bool
	outcome        *evaluation.Outcome
	startedAt      time.Time
	endedAt        time.Time
	pipelineCancel context.CancelFunc
	reconcileID    cron.EntryID
	reconciling    bool
	closed         bool

	// Observers
	notifyMu     sync.Mutex // held while a view is built and delivered
	obsMu        sync.RWMutex
	observers    map[int]func(View)
	nextObserver int

	// Concurrency
	events chan envelope
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates an idle controller and starts its event loop
func NewController(opts *Options, deps Dependencies) (*Controller, error) {
	if deps.Provisioner == nil || deps.Transport == nil || deps.History == nil || deps.Evaluator == nil {
		return nil, fmt.Errorf("provisioner, transport, history and evaluator are required")
	}

	o := Options{
		AgentIdentity:     DefaultAgentIdentity,
		SettleDelay:       DefaultSettleDelay,
		ReconcileSchedule: DefaultReconcileSchedule,
		RequestTimeout:    DefaultRequestTimeout,
	}
	if opts != nil {
		o.LiveKitURL = opts.LiveKitURL
		if opts.AgentIdentity != "" {
			o.AgentIdentity = opts.AgentIdentity
		}
		if opts.SettleDelay > 0 {
			o.SettleDelay = opts.SettleDelay
		}
		if opts.ReconcileSchedule != "" {
			o.ReconcileSchedule = opts.ReconcileSchedule
		}
		if opts.RequestTimeout > 0 {
			o.RequestTimeout = opts.RequestTimeout
		}
	}

	if o.ReconcileSchedule != ReconcileOff {
		if _, err := cron.ParseStandard(o.ReconcileSchedule); err != nil {
			return nil, fmt.Errorf("invalid reconcile schedule '%s': %w", o.ReconcileSchedule, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		opts:        o,
		provisioner: deps.Provisioner,
		transport:   deps.Transport,
		history:     deps.History,
		evaluator:   deps.Evaluator,
		archive:     deps.Archive,
		store:       transcript.NewStore(),
		state:       StateIdle,
		observers:   make(map[int]func(View)),
		events:      make(chan envelope, eventBuffer),
		cron:        cron.New(),
		ctx:         ctx,
		cancel:      cancel,
	}
	c.unsubscribeStore = c.store.Subscribe(func([]transcript.Entry) { c.notify() })

	c.cron.Start()
	c.wg.Add(1)
	go c.run()

	return c, nil
}

// Connect resets all per-session state, provisions a credential and joins the room.
// Allowed from Idle, Error and EvaluationReady
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.state {
	case StateIdle, StateError, StateEvaluationReady:
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot connect while %s", ErrInvalidState, state)
	}

	c.stopPipelineLocked()
	c.stopReconcileLocked()
	c.generation++
	gen := c.generation
	c.state = StateConnecting
	c.room, c.participant, c.errMsg, c.reason = "", "", "", ""
	c.agentPresent, c.micEnabled = false, false
	c.outcome = nil
	c.startedAt, c.endedAt = time.Time{}, time.Time{}
	c.mu.Unlock()

	c.transcriptMu.Lock()
	c.store.Reset()
	c.transcriptMu.Unlock()
	c.notify()

	log.Println("[SESSION]: Requesting session token...")
	cred, err := c.provisioner.Provision(ctx)
	if err != nil {
		c.fail(gen, err)
		return err
	}

	if err := c.transport.Connect(ctx, c.opts.LiveKitURL, cred.Token, c.handler(gen)); err != nil {
		c.fail(gen, err)
		return err
	}

	// The provider's room name is authoritative from here on
	room := c.transport.RoomName()
	if room == "" {
		log.Printf("[SESSION]: Transport did not report a room name, using requested room '%s'", cred.Room)
		room = cred.Room
	} else if room != cred.Room {
		log.Printf("[SESSION]: Requested room '%s' but joined '%s'", cred.Room, room)
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		c.disconnectTransport()
		return fmt.Errorf("%w: closed while connecting", ErrClosed)
	}
	c.room = room
	c.participant = cred.Name
	c.startedAt = time.Now().UTC()
	live := c.state == StateConnecting || c.state == StateActive
	c.mu.Unlock()
	c.notify()

	if live {
		if err := c.SetMicrophoneEnabled(ctx, true); err != nil {
			log.Printf("[SESSION]: Failed to enable microphone, continuing without audio input: %v", err)
		}
	}

	return nil
}

// StartNew begins a fresh session from the evaluation report
func (c *Controller) StartNew(ctx context.Context) error {
	return c.Connect(ctx)
}

// Leave closes the transport and starts evaluating the session. Calling it again while
// the evaluation is running is a no-op
func (c *Controller) Leave() error {
	c.mu.Lock()
	switch c.state {
	case StateEvaluationProcessing:
		c.mu.Unlock()
		return nil
	case StateActive:
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot leave while %s", ErrInvalidState, state)
	}

	c.reason = ReasonClientInitiated
	c.beginEvaluationLocked()
	c.mu.Unlock()

	log.Println("[SESSION]: Leaving room...")
	c.disconnectTransport()
	c.notify()
	return nil
}

// Dismiss closes the evaluation report or acknowledges an error
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
		c.mu.Unlock()
		return nil
	case StateEvaluationReady, StateError:
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot dismiss while %s", ErrInvalidState, state)
	}

	c.state = StateIdle
	c.outcome = nil
	c.errMsg = ""
	c.mu.Unlock()

	c.notify()
	return nil
}

// SetMicrophoneEnabled turns the local microphone on or off during a call
func (c *Controller) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	if c.state != StateConnecting && c.state != StateActive {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: no call in progress (%s)", ErrInvalidState, state)
	}
	gen := c.generation
	c.mu.Unlock()

	if err := c.transport.SetMicrophoneEnabled(ctx, enabled); err != nil {
		return err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.micEnabled = enabled
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

// ToggleMicrophone flips the local microphone state
func (c *Controller) ToggleMicrophone(ctx context.Context) error {
	c.mu.Lock()
	enabled := !c.micEnabled
	c.mu.Unlock()

	return c.SetMicrophoneEnabled(ctx, enabled)
}

// View returns a snapshot of the session
func (c *Controller) View() View {
	entries := c.store.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()

	view := View{
		State:             c.state,
		Screen:            screenOf(c.state, c.agentPresent),
		Room:              c.room,
		Participant:       c.participant,
		Error:             c.errMsg,
		DisconnectReason:  c.reason,
		AgentPresent:      c.agentPresent,
		MicrophoneEnabled: c.micEnabled,
		Transcript:        entries,
		StartedAt:         c.startedAt,
		EndedAt:           c.endedAt,
	}
	if c.outcome != nil {
		outcome := *c.outcome
		view.Evaluation = &outcome
	}
	return view
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn and calls it with the current view, then again after every change.
// Views reach observers one at a time and never older than one already delivered. fn must
// not call back into the controller. It returns an unsubscribe func
func (c *Controller) Subscribe(fn func(View)) func() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.obsMu.Lock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = fn
	c.obsMu.Unlock()

	fn(c.View())

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

// Close cancels any running evaluation, leaves the room if connected and stops all
// background work. It is safe to call more than once
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	state := c.state
	c.stopPipelineLocked()
	c.stopReconcileLocked()
	c.generation++
	c.mu.Unlock()

	if state == StateConnecting || state == StateActive {
		c.disconnectTransport()
	}

	c.cancel()
	<-c.cron.Stop().Done()
	c.wg.Wait()
	c.unsubscribeStore()

	log.Println("[SESSION]: Controller closed")
	return nil
}

// handler returns the transport callback for one connection attempt
func (c *Controller) handler(gen uint64) rtc.Handler {
	return func(ev rtc.Event) {
		select {
		case c.events <- envelope{generation: gen, event: ev}:
		case <-c.ctx.Done():
		}
	}
}

// run drains transport events one at a time
func (c *Controller) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case env := <-c.events:
			c.handleEvent(env)
		}
	}
}

// fail moves a connection attempt into the Error state
func (c *Controller) fail(gen uint64, err error) {
	c.mu.Lock()
	if c.generation != gen || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateError
	c.errMsg = fmt.Sprintf("Failed to connect: %v", err)
	c.mu.Unlock()

	log.Printf("[SESSION]: Error connecting to room: %v", err)
	c.disconnectTransport()
	c.notify()
}

// beginEvaluationLocked enters EvaluationProcessing and starts the evaluation pipeline
func (c *Controller) beginEvaluationLocked() {
	c.state = StateEvaluationProcessing
	c.endedAt = time.Now().UTC()
	c.stopReconcileLocked()

	ctx, cancel := context.WithCancel(c.ctx)
	c.pipelineCancel = cancel

	c.wg.Add(1)
	go c.evaluate(ctx, c.generation, c.room)
}

func (c *Controller) stopPipelineLocked() {
	if c.pipelineCancel != nil {
		c.pipelineCancel()
		c.pipelineCancel = nil
	}
}

func (c *Controller) startReconcileLocked() {
	if c.opts.ReconcileSchedule == ReconcileOff || c.reconciling {
		return
	}

	id, err := c.cron.AddFunc(c.opts.ReconcileSchedule, c.reconcile)
	if err != nil {
		log.Printf("[SESSION]: Failed to schedule transcript reconciliation: %v", err)
		return
	}
	c.reconcileID = id
	c.reconciling = true
}

func (c *Controller) stopReconcileLocked() {
	if c.reconciling {
		c.cron.Remove(c.reconcileID)
		c.reconciling = false
	}
}

// isCurrent reports whether gen is still the live attempt and the state is one of states
func (c *Controller) isCurrent(gen uint64, states ...State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return false
	}
	for _, s := range states {
		if c.state == s {
			return true
		}
	}
	return false
}

func (c *Controller) disconnectTransport() {
	if err := c.transport.Disconnect(); err != nil {
		log.Printf("[SESSION]: Error disconnecting from room: %v", err)
	}
}

// isAgent reports whether the participant is the avatar agent
func (c *Controller) isAgent(p rtc.Participant) bool {
	return strings.Contains(p.Identity, c.opts.AgentIdentity) || strings.Contains(p.Name, c.opts.AgentIdentity)
}

// notify sends the current view to every observer. Building the view under notifyMu keeps
// deliveries in state order across the goroutines that call it
func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	view := c.View()

	c.obsMu.RLock()
	observers := make([]func(View), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.obsMu.RUnlock()

	for _, fn := range observers {
		fn(view)
	}
}
