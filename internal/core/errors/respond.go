package errors

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Respond writes the response for err. Server side failures are logged.
func Respond(c *gin.Context, err error, message string) {
	status, body := FromError(err, message)
	if status >= http.StatusInternalServerError {
		slog.Error("[API] Request failed",
			"path", c.FullPath(),
			"status", status,
			"error", err,
		)
	}
	c.JSON(status, body)
}

// BadQuery writes a 400 for query parameters that failed to bind.
func BadQuery(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		ErrorType: HttpInvalidSpecification,
		Message:   "Invalid query parameters",
		Details:   err.Error(),
	})
}
