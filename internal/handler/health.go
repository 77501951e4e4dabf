package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is used by load balancers to verify that the process is up.  It
// does not touch the canonical store.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
