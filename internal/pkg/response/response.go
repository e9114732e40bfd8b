package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Body struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
	Code       int         `json:"code,omitempty"`
	RetryAfter int         `json:"retry_after,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Message: message, Data: data})
}

func Error(c *gin.Context, status int, code int, message string) {
	c.JSON(status, Body{Success: false, Code: code, Error: message})
}

// Throttled answers 429 and mirrors the wait in the Retry-After header.
func Throttled(c *gin.Context, code int, retryAfter int, message string) {
	ErrorRetry(c, http.StatusTooManyRequests, code, retryAfter, message)
}

// ErrorRetry is Error with a retry hint, for failures after which the
// caller still has to wait (a code was issued but its mail was lost).
func ErrorRetry(c *gin.Context, status int, code int, retryAfter int, message string) {
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(retryAfter))
	}
	c.JSON(status, Body{Success: false, Code: code, Error: message, RetryAfter: retryAfter})
}
