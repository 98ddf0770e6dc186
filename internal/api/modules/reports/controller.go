package reports

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethanbaker/avatar-client/internal/api/render"
	"github.com/ethanbaker/avatar-client/internal/archive"
	"github.com/ethanbaker/avatar-client/internal/report"
	"github.com/ethanbaker/avatar-client/pkg/sdk"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListReports handles GET requests for archived session summaries
func (m *module) ListReports(c *gin.Context) {
	var (
		records []*archive.Record
		err     error
	)

	if query := c.Query("q"); query != "" {
		records, err = m.store.Search(c.Request.Context(), query)
	} else {
		limit, _ := strconv.Atoi(c.Query("limit"))
		records, err = m.store.List(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to list reports", err).AsGinResponse())
		return
	}

	summaries := make([]archive.Summary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, record.Summarize())
	}

	c.JSON(sdk.NewSuccessResponse("Reports retrieved successfully", summaries).AsGinResponse())
}

// GetReport handles GET requests for one archived session. ?format= renders the report
// instead of returning the raw record
func (m *module) GetReport(c *gin.Context) {
	record, ok := m.find(c)
	if !ok {
		return
	}

	if c.Query("format") == "" {
		c.JSON(sdk.NewSuccessResponse("Report retrieved successfully", record).AsGinResponse())
		return
	}

	render.Document(c, report.Build(record.Outcome, record.Transcript))
}

// DeleteReport handles DELETE requests to remove an archived session
func (m *module) DeleteReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Invalid report id", err).AsGinResponse())
		return
	}

	if err := m.store.Delete(c.Request.Context(), id); err != nil {
		c.JSON(sdk.NewErrorResponse(statusOf(err), "Failed to delete report", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Report deleted successfully", id.String()).AsGinResponse())
}

// find loads the record named by the id parameter, answering the request on failure
func (m *module) find(c *gin.Context) (*archive.Record, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Invalid report id", err).AsGinResponse())
		return nil, false
	}

	record, err := m.store.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(statusOf(err), "Report not found", err).AsGinResponse())
		return nil, false
	}

	return record, true
}

func statusOf(err error) int {
	if errors.Is(err, archive.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
