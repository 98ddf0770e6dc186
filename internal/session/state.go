package session

import (
	"errors"
	"time"

	"github.com/ethanbaker/avatar-client/pkg/evaluation"
	"github.com/ethanbaker/avatar-client/pkg/transcript"
)

// State is the single active lifecycle state of a session
type State string

const (
	StateIdle                 State = "idle"
	StateConnecting           State = "connecting"
	StateActive               State = "active"
	StateEvaluationProcessing State = "evaluation_processing"
	StateEvaluationReady      State = "evaluation_ready"
	StateError                State = "error"
)

// Screen is what a presentation layer should show for a view
type Screen string

const (
	ScreenIdle            Screen = "idle"
	ScreenConnecting      Screen = "connecting"
	ScreenWaitingForAgent Screen = "waiting_for_agent"
	ScreenCall            Screen = "call"
	ScreenEvaluating      Screen = "evaluating"
	ScreenReport          Screen = "report"
	ScreenError           Screen = "error"
)

// ReasonClientInitiated is the disconnect reason recorded when the user leaves
const ReasonClientInitiated = "CLIENT_INITIATED"

var (
	// ErrInvalidState is returned when an action is not allowed in the current state
	ErrInvalidState = errors.New("invalid session state")

	// ErrClosed is returned once the controller has been closed
	ErrClosed = errors.New("session controller closed")
)

// View is a read-only snapshot of the session for presentation
type View struct {
	State             State               `json:"state"`
	Screen            Screen              `json:"screen"`
	Room              string              `json:"room,omitempty"`
	Participant       string              `json:"participant,omitempty"`
	Error             string              `json:"error,omitempty"`
	DisconnectReason  string              `json:"disconnect_reason,omitempty"`
	AgentPresent      bool                `json:"agent_present"`
	MicrophoneEnabled bool                `json:"microphone_enabled"`
	Transcript        []transcript.Entry  `json:"transcript"`
	Evaluation        *evaluation.Outcome `json:"evaluation,omitempty"`
	StartedAt         time.Time           `json:"started_at,omitzero"`
	EndedAt           time.Time           `json:"ended_at,omitzero"`
}

// EvaluationProcessing reports whether the evaluation spinner should be shown
func (v View) EvaluationProcessing() bool {
	return v.State == StateEvaluationProcessing
}

// EvaluationReady reports whether the report should be shown
func (v View) EvaluationReady() bool {
	return v.State == StateEvaluationReady
}

func screenOf(state State, agentPresent bool) Screen {
	switch state {
	case StateConnecting:
		return ScreenConnecting
	case StateActive:
		if !agentPresent {
			return ScreenWaitingForAgent
		}
		return ScreenCall
	case StateEvaluationProcessing:
		return ScreenEvaluating
	case StateEvaluationReady:
		return ScreenReport
	case StateError:
		return ScreenError
	default:
		return ScreenIdle
	}
}
