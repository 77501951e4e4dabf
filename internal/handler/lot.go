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

// LotHandler serves the canonical lot list and lot updates.
type LotHandler struct {
	Lots      *service.LotService    // canonical store access
	Overrides *override.Session      // legacy display overrides, nil when disabled
	Format    normalize.NumberFormat // rule for string prices
	Log       *zap.Logger
}

// NewLotHandler constructs a LotHandler and panics on a nil service.
func NewLotHandler(lots *service.LotService, overrides *override.Session, format normalize.NumberFormat, log *zap.Logger) *LotHandler {
	if lots == nil {
		panic("nil service passed to NewLotHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LotHandler{Lots: lots, Overrides: overrides, Format: format, Log: log}
}

// UpdateLotRequest is the PUT body.  Every key is optional and nothing is
// rejected for its type: price also accepts a string or null, text fields
// take numbers and booleans literally and ignore null or nested values.
type UpdateLotRequest struct {
	Price      model.PriceInput `json:"price"`
	Estado     model.TextInput  `json:"estado"`
	Asesor     model.TextInput  `json:"asesor"`
	Cliente    model.TextInput  `json:"cliente"`
	Comentario model.TextInput  `json:"comentario"`
}

// Patch normalizes the request into a store patch.  Unparsable or
// negative prices clear the price.
func (r UpdateLotRequest) Patch(f normalize.NumberFormat) model.LotPatch {
	var p model.LotPatch
	p.PriceSet, p.Price = normalize.PriceInput(r.Price, f)
	if r.Estado.Set {
		st := normalize.NormalizeStatus(r.Estado.Text)
		p.Condicion = &st
	}
	p.Asesor = trimmed(r.Asesor)
	p.Cliente = trimmed(r.Cliente)
	p.Comentario = trimmed(r.Comentario)
	return p
}

func trimmed(v model.TextInput) *string {
	if !v.Set {
		return nil
	}
	return model.String(normalize.NormalizeText(v.Text))
}

// List handles GET /api/lotes.  With ?view=merged the current overrides
// are applied on top of the canonical rows.
func (h *LotHandler) List(c echo.Context) error {
	res, err := h.Lots.List(c.Request().Context())
	if err != nil {
		return storeError(c, h.Log, err, msgListFailed)
	}
	if c.QueryParam("view") == "merged" && h.Overrides != nil {
		res.Items = h.Overrides.Merge(res.Items)
	}
	return c.JSON(http.StatusOK, res)
}

// Update handles PUT /api/lotes/:id.
func (h *LotHandler) Update(c echo.Context) error {
	id := lotID(c)
	if id == "" {
		return errorJSON(c, http.StatusNotFound, msgNotFound)
	}
	var req UpdateLotRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, msgBadRequest)
	}
	res, err := h.Lots.Update(c.Request().Context(), id, req.Patch(h.Format))
	if err != nil {
		return storeError(c, h.Log, err, msgSaveFailed)
	}
	return c.JSON(http.StatusOK, res)
}
