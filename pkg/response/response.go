package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Verification is the body returned by the bot verification endpoint.
// Error is always a list, empty on success.
type Verification struct {
	Success bool     `json:"success"`
	Error   []string `json:"error"`
}

// Verified sends a successful verification result.
func Verified(c *gin.Context) {
	c.JSON(http.StatusOK, Verification{Success: true, Error: []string{}})
}

// NotVerified sends a failed verification result with the given codes.
func NotVerified(c *gin.Context, statusCode int, codes ...string) {
	if codes == nil {
		codes = []string{}
	}
	c.JSON(statusCode, Verification{Success: false, Error: codes})
}

// Status sends a small status document, used by health probes.
func Status(c *gin.Context, statusCode int, status string, extra gin.H) {
	body := gin.H{"status": status}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(statusCode, body)
}
