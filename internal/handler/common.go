package handler // handler defines the HTTP handlers of the lot API

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/lot-map/internal/repository"
)

// user visible messages; raw errors never reach the client
const (
	msgNotFound    = "lote no encontrado"
	msgListFailed  = "no se pudieron cargar los lotes"
	msgSaveFailed  = "no se pudo guardar el lote"
	msgBadRequest  = "solicitud inválida"
	msgUnavailable = "servicio no disponible"
)

var allMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodConnect, http.MethodTrace,
}

// OtherMethods lists every method except allowed; the router binds them
// to MethodNotAllowed.
func OtherMethods(allowed string) []string {
	out := make([]string, 0, len(allMethods))
	for _, m := range allMethods {
		if m != allowed {
			out = append(out, m)
		}
	}
	return out
}

// MethodNotAllowed answers 405 with an Allow header naming the one
// permitted method.
func MethodNotAllowed(allowed string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderAllow, allowed)
		return c.JSON(http.StatusMethodNotAllowed, map[string]string{"error": "método no permitido"})
	}
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// storeError maps store errors to a status code: not found is 404 and
// anything else, storage failures included, is a logged 500.
func storeError(c echo.Context, log *zap.Logger, err error, failMsg string) error {
	if errors.Is(err, repository.ErrLotNotFound) {
		return errorJSON(c, http.StatusNotFound, msgNotFound)
	}
	log.Error("store failure",
		zap.String("path", c.Request().URL.Path),
		zap.Bool("storage", errors.Is(err, repository.ErrStorage)),
		zap.Error(err),
	)
	return errorJSON(c, http.StatusInternalServerError, failMsg)
}

func lotID(c echo.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
