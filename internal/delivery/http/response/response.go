package response

import (
	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key the RequestID middleware stores the id under.
const RequestIDKey = "RequestID"

// Response is the success body
type Response struct {
	Message   string      `json:"message"`
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
}

// ErrorResponse is the failure body. ValidationErrors is only present for
// rejected form submissions.
type ErrorResponse struct {
	Error            string            `json:"error"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
	RequestID        string            `json:"requestId,omitempty"`
}

// Success sends a success response
func Success(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Message:   message,
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
	})
}

// Error sends an error response
func Error(c *gin.Context, code int, message string, fields map[string]string) {
	c.JSON(code, ErrorResponse{
		Error:            message,
		ValidationErrors: fields,
		RequestID:        requestID(c),
	})
}

func requestID(c *gin.Context) string {
	reqID, _ := c.Get(RequestIDKey)
	idStr, _ := reqID.(string)
	return idStr
}
