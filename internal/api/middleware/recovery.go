package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/reporting"
)

// ReporterSource labels handler panics in the unexpected error sink.
const ReporterSource = "http"

// Recovery turns a handler panic into a 500 and reports it.
func Recovery(reporter reporting.Reporter) gin.HandlerFunc {
	if reporter == nil {
		reporter = reporting.Default()
	}
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := fmt.Errorf("%s %s: %w", c.Request.Method, c.FullPath(), reporting.Recover(recovered))
		reporter.Report(reporting.WithSource(ReporterSource, err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal server error",
		})
	})
}
