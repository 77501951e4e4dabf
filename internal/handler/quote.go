package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/lot-map/internal/model"
	"github.com/iliyamo/lot-map/internal/pricing"
	"github.com/iliyamo/lot-map/internal/service"
)

// QuoteHandler builds proformas.  It never persists anything.
type QuoteHandler struct {
	Lots   *service.LotService
	Policy pricing.Policy
	Log    *zap.Logger
	Now    func() time.Time
}

// NewQuoteHandler constructs a QuoteHandler.
func NewQuoteHandler(lots *service.LotService, policy pricing.Policy, log *zap.Logger) *QuoteHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuoteHandler{Lots: lots, Policy: policy, Log: log, Now: time.Now}
}

// QuoteRequest is the POST /api/cotizaciones body.  When loteId is given
// the regular price defaults to the lot's list price.
type QuoteRequest struct {
	LoteID            string   `json:"loteId"`
	PrecioRegular     *float64 `json:"precioRegular"`
	DescuentoSoles    *float64 `json:"descuentoSoles"`
	DescuentoPct      *float64 `json:"descuentoPct"`
	PrecioPromocional *float64 `json:"precioPromocional"`
	Editado           string   `json:"editado"` // field the seller touched last
	Inicial           *float64 `json:"inicial"`
	Cuotas            int      `json:"cuotas"`
	InteresAnual      *float64 `json:"interesAnual"`
	DiasPromocion     int      `json:"diasPromocion"`
}

// QuoteResponse is the proforma plus the quoted lot, if any.
type QuoteResponse struct {
	Lote *model.Lot `json:"lote,omitempty"`
	pricing.Proforma
}

func dec(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

// Create handles POST /api/cotizaciones.
func (h *QuoteHandler) Create(c echo.Context) error {
	var req QuoteRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, msgBadRequest)
	}

	var lot *model.Lot
	regular := req.PrecioRegular
	if req.LoteID != "" {
		if h.Lots == nil {
			return errorJSON(c, http.StatusServiceUnavailable, msgUnavailable)
		}
		l, err := h.Lots.Get(c.Request().Context(), req.LoteID)
		if err != nil {
			return storeError(c, h.Log, err, msgListFailed)
		}
		lot = l
		if regular == nil {
			regular = l.Price
		}
	}
	if regular == nil || *regular < 0 {
		return errorJSON(c, http.StatusBadRequest, "precio regular requerido")
	}

	pr := pricing.Request{
		Regular:      dec(regular),
		Soles:        dec(req.DescuentoSoles),
		Pct:          dec(req.DescuentoPct),
		LastEdited:   pricing.ParseField(req.Editado),
		DownPayment:  dec(req.Inicial),
		Installments: req.Cuotas,
		PromoDays:    req.DiasPromocion,
	}
	if req.PrecioPromocional != nil {
		v := dec(req.PrecioPromocional)
		pr.Promo = &v
	}
	if req.InteresAnual != nil {
		v := dec(req.InteresAnual)
		pr.AnnualPct = &v
	}

	p := pricing.BuildProforma(pr, h.Policy, h.Now())
	return c.JSON(http.StatusOK, QuoteResponse{Lote: lot, Proforma: p})
}
