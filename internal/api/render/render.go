package render

import (
	"net/http"
	"strings"

	"github.com/ethanbaker/avatar-client/internal/report"
	"github.com/ethanbaker/avatar-client/pkg/sdk"
	"github.com/gin-gonic/gin"
)

// Document answers with a report document in the format asked for by the query:
// json (default), markdown, html or text
func Document(c *gin.Context, doc *report.Document) {
	switch strings.ToLower(c.Query("format")) {
	case "", "json":
		c.JSON(sdk.NewSuccessResponse("Evaluation retrieved successfully", doc).AsGinResponse())

	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(doc.Markdown()))

	case "html":
		html, err := doc.HTML()
		if err != nil {
			c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to render report", err).AsGinResponse())
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))

	case "text":
		var b strings.Builder
		if err := doc.WriteTerminal(&b, report.DefaultWidth); err != nil {
			c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to render report", err).AsGinResponse())
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(b.String()))

	default:
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Unknown report format", nil).AsGinResponse())
	}
}
