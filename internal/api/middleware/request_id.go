package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/id"
)

const (
	HeaderRequestID  = "X-Request-ID"
	ContextRequestID = "request_id"
)

// RequestID tags every request with an ID, keeping a valid one sent by the
// client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" || !id.IsValid(rid) {
			rid = id.NewRequestID().String()
		}
		c.Set(ContextRequestID, rid)
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}
