package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/lot-map/internal/model"
	"github.com/iliyamo/lot-map/internal/normalize"
	"github.com/iliyamo/lot-map/internal/override"
	"github.com/iliyamo/lot-map/internal/service"
)

// OverrideHandler exposes the legacy display-layer overrides.
type OverrideHandler struct {
	Session *override.Session
	Lots    *service.LotService // used to reject ids that are not lots
	Format  normalize.NumberFormat
	Log     *zap.Logger
}

// NewOverrideHandler constructs an OverrideHandler.
func NewOverrideHandler(session *override.Session, lots *service.LotService, format normalize.NumberFormat, log *zap.Logger) *OverrideHandler {
	if session == nil {
		panic("nil session passed to NewOverrideHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OverrideHandler{Session: session, Lots: lots, Format: format, Log: log}
}

// OverrideRequest is the PUT /api/overrides/:id body.
type OverrideRequest struct {
	Price     model.PriceInput `json:"price"`
	Condicion model.TextInput  `json:"condicion"`
	Cliente   model.TextInput  `json:"cliente"`
}

// List handles GET /api/overrides.
func (h *OverrideHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"items": h.Session.Snapshot()})
}

// Set handles PUT /api/overrides/:id.
func (h *OverrideHandler) Set(c echo.Context) error {
	id := normalize.NormalizeID(lotID(c))
	var req OverrideRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, msgBadRequest)
	}
	ctx := c.Request().Context()
	if h.Lots != nil {
		if _, err := h.Lots.Get(ctx, id); err != nil {
			return storeError(c, h.Log, err, msgListFailed)
		}
	}

	var p override.Patch
	_, p.Price = normalize.PriceInput(req.Price, h.Format)
	if req.Condicion.Set {
		st := model.Status(req.Condicion.Text)
		p.Condicion = &st
	}
	p.Cliente = req.Cliente.Ptr()

	merged, err := h.Session.Set(ctx, id, p)
	if err != nil {
		h.Log.Error("override write failed", zap.String("lot_id", id), zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "no se pudo guardar el ajuste")
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "override": merged})
}

// Clear handles DELETE /api/overrides/:id.
func (h *OverrideHandler) Clear(c echo.Context) error {
	id := lotID(c)
	if err := h.Session.Clear(c.Request().Context(), id); err != nil {
		h.Log.Error("override clear failed", zap.String("lot_id", id), zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "no se pudo borrar el ajuste")
	}
	return c.NoContent(http.StatusNoContent)
}

// Audit handles GET /api/overrides/audit, newest line first.
func (h *OverrideHandler) Audit(c echo.Context) error {
	lines, err := h.Session.Audit(c.Request().Context())
	if err != nil {
		h.Log.Warn("override audit read failed", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, msgUnavailable)
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": lines})
}
