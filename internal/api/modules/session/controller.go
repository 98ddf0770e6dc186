package session

import (
	"errors"
	"io"
	"net/http"

	"github.com/ethanbaker/avatar-client/internal/api/render"
	"github.com/ethanbaker/avatar-client/internal/report"
	lifecycle "github.com/ethanbaker/avatar-client/internal/session"
	"github.com/ethanbaker/avatar-client/pkg/sdk"
	"github.com/gin-gonic/gin"
)

// MicrophoneRequest sets the microphone. An empty body toggles it
type MicrophoneRequest struct {
	Enabled *bool `json:"enabled"`
}

// GetView handles GET requests for the current session view
func (m *module) GetView(c *gin.Context) {
	c.JSON(sdk.NewSuccessResponse("Session retrieved successfully", m.ctrl.View()).AsGinResponse())
}

// Connect handles POST requests to start a session
func (m *module) Connect(c *gin.Context) {
	if err := m.ctrl.Connect(c.Request.Context()); err != nil {
		c.JSON(sdk.NewErrorResponse(statusOf(err), "Failed to connect", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Connecting to room", m.ctrl.View()).AsGinResponse())
}

// StartNew handles POST requests to start another session from the report
func (m *module) StartNew(c *gin.Context) {
	if err := m.ctrl.StartNew(c.Request.Context()); err != nil {
		c.JSON(sdk.NewErrorResponse(statusOf(err), "Failed to start a new session", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Connecting to room", m.ctrl.View()).AsGinResponse())
}

// Leave handles POST requests to leave the call
func (m *module) Leave(c *gin.Context) {
	if err := m.ctrl.Leave(); err != nil {
		c.JSON(sdk.NewErrorResponse(statusOf(err), "Failed to leave session", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Left session, evaluating conversation", m.ctrl.View()).AsGinResponse())
}

// Dismiss handles POST requests to close the report or error screen
func (m *module) Dismiss(c *gin.Context) {
	if err := m.ctrl.Dismiss(); err != nil {
		c.JSON(sdk.NewErrorResponse(statusOf(err), "Failed to dismiss session", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Session dismissed", m.ctrl.View()).AsGinResponse())
}

// SetMicrophone handles POST requests to toggle or set the microphone
func (m *module) SetMicrophone(c *gin.Context) {
	var req MicrophoneRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err).AsGinResponse())
		return
	}

	var err error
	if req.Enabled == nil {
		err = m.ctrl.ToggleMicrophone(c.Request.Context())
	} else {
		err = m.ctrl.SetMicrophoneEnabled(c.Request.Context(), *req.Enabled)
	}
	if err != nil {
		c.JSON(sdk.NewErrorResponse(statusOf(err), "Failed to change microphone", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Microphone updated", m.ctrl.View()).AsGinResponse())
}

// GetTranscript handles GET requests for the transcript so far
func (m *module) GetTranscript(c *gin.Context) {
	c.JSON(sdk.NewSuccessResponse("Transcript retrieved successfully", m.ctrl.View().Transcript).AsGinResponse())
}

// GetEvaluation handles GET requests for the evaluation report. The format query picks
// json (default), markdown, html or text
func (m *module) GetEvaluation(c *gin.Context) {
	view := m.ctrl.View()

	switch {
	case view.EvaluationProcessing():
		res := sdk.NewSuccessResponse("Evaluation in progress", view)
		res.Code = http.StatusAccepted
		c.JSON(res.AsGinResponse())
		return
	case !view.EvaluationReady() || view.Evaluation == nil:
		c.JSON(sdk.NewErrorResponse(http.StatusNotFound, "No evaluation available", nil).AsGinResponse())
		return
	}

	render.Document(c, report.Build(*view.Evaluation, view.Transcript))
}

// statusOf maps controller errors onto HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
