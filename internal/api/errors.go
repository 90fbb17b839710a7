package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the uniform error body for all API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DeleteResponse confirms a successful delete or state mutation
type DeleteResponse struct {
	Message string `json:"message"`
}

// parseTimezone resolves the tz query parameter, defaulting to UTC. An
// unknown zone name writes the 400 response and returns false.
func parseTimezone(c *gin.Context) (*time.Location, bool) {
	name := c.Query("tz")
	if name == "" {
		return time.UTC, true
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_timezone",
			Message: "Unknown timezone: " + name,
		})
		return nil, false
	}
	return loc, true
}
