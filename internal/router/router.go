// Package router registers the HTTP routes of the lot API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lot-map/internal/handler"
)

// Routes bundles the handlers and route middleware.  Optional handlers
// left nil are not registered.
type Routes struct {
	Lots      *handler.LotHandler
	Quotes    *handler.QuoteHandler
	Overrides *handler.OverrideHandler
	Events    *handler.EventsHandler

	Cache     echo.MiddlewareFunc // applied to GET /api/lotes
	RateLimit echo.MiddlewareFunc // applied to write routes
}

func chain(mw ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	var out []echo.MiddlewareFunc
	for _, m := range mw {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// RegisterRoutes registers every route on e.
func RegisterRoutes(e *echo.Echo, r Routes) {
	e.GET("/healthz", handler.Health)

	api := e.Group("/api")
	writes := chain(r.RateLimit)

	// each lot route accepts exactly one method; anything else is a 405
	// naming it in Allow
	api.GET("/lotes", r.Lots.List, chain(r.Cache)...)
	api.Match(handler.OtherMethods(http.MethodGet), "/lotes", handler.MethodNotAllowed(http.MethodGet))
	api.PUT("/lotes/:id", r.Lots.Update, writes...)
	api.Match(handler.OtherMethods(http.MethodPut), "/lotes/:id", handler.MethodNotAllowed(http.MethodPut))

	if r.Quotes != nil {
		api.POST("/cotizaciones", r.Quotes.Create, writes...)
	}
	if r.Overrides != nil {
		api.GET("/overrides", r.Overrides.List)
		api.GET("/overrides/audit", r.Overrides.Audit)
		api.PUT("/overrides/:id", r.Overrides.Set, writes...)
		api.DELETE("/overrides/:id", r.Overrides.Clear, writes...)
	}
	if r.Events != nil {
		api.GET("/events", r.Events.Stream)
	}
}
