// Package handlers implements the REST surface: workflow catalog CRUD,
// execution lifecycle and node registry metadata.
package handlers

import (
	"github.com/labstack/echo/v4"
)

// errorJSON writes a uniform error body.
func errorJSON(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"error": err.Error()})
}
