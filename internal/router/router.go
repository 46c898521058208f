// Package router registers the HTTP routes of the back-office API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/soundrent-backoffice/internal/handler"
	"github.com/iliyamo/soundrent-backoffice/internal/middleware"
	"github.com/iliyamo/soundrent-backoffice/internal/model"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Reservations *handler.ReservationHandler
	Drafts       *handler.DraftHandler
	Payments     *handler.PaymentHandler
	Deliveries   *handler.DeliveryHandler
	Catalog      *handler.CatalogHandler
	Calendar     *handler.CalendarHandler
	Events       *handler.EventsHandler
}

// RegisterRoutes registers the unauthenticated routes.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Live)
	e.GET("/readyz", h.Health.Ready)
	// the provider redirects the browser here without our bearer token
	e.GET("/v1/calendar/callback", h.Calendar.Callback)
}

// RegisterAuth registers session routes. Register checks the bearer itself
// since the first account is created anonymously.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin, model.RoleStaff))
}

// RegisterBackOffice registers the staff routes. cache wraps read-only
// listings; limit is applied to the whole group.
func RegisterBackOffice(e *echo.Echo, h Handlers, jwtSecret string, cache, limit echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleStaff),
		limit,
	)
	admin := middleware.RequireRole(model.RoleAdmin)

	r := h.Reservations
	g.GET("/reservations", r.List, cache)
	g.GET("/reservations/:id", r.Get)
	g.POST("/reservations", r.Create)
	g.PUT("/reservations/:id", r.Update)
	g.DELETE("/reservations/:id", r.Delete, admin)
	g.POST("/reservations/quote", r.Quote)
	g.POST("/reservations/:id/actions/:action", r.QuickAction)
	g.POST("/reservations/fix-refs", r.FixRefs, admin)

	d := h.Drafts
	g.PUT("/drafts/autosave", d.Schedule)
	g.POST("/drafts/autosave/flush", d.Flush)
	g.DELETE("/drafts/autosave", d.Close)
	g.GET("/drafts", d.List)
	g.GET("/drafts/latest", d.Latest)
	g.DELETE("/drafts/:id", d.Discard)

	p := h.Payments
	g.GET("/payments", p.List, cache)
	g.POST("/payments", p.Create)
	g.DELETE("/payments/:id", p.Delete, admin)
	g.GET("/payments/:id/receipt", p.Receipt)
	g.POST("/payments/:id/receipt/archive", p.Archive)

	l := h.Deliveries
	g.GET("/deliveries", l.List, cache)
	g.PATCH("/deliveries/:id/statut", l.UpdateStatus)
	g.POST("/deliveries/sync", l.SyncAll)

	c := h.Catalog
	g.GET("/clients", c.ListClients, cache)
	g.GET("/clients/:id", c.GetClient)
	g.POST("/clients", c.CreateClient)
	g.PUT("/clients/:id", c.UpdateClient)
	g.GET("/packs", c.ListPacks, cache)
	g.GET("/packs/:id", c.GetPack)
	g.POST("/packs", c.CreatePack, admin)
	g.PUT("/packs/:id", c.UpdatePack, admin)

	cal := h.Calendar
	g.GET("/calendar", cal.Status)
	g.PUT("/calendar/settings", cal.UpdateSettings, admin)
	g.GET("/calendar/:provider/connect", cal.Connect, admin)
	g.DELETE("/calendar/:provider", cal.Disconnect, admin)
	g.POST("/calendar/sync", cal.Sync)
	g.GET("/calendar/export.ics", cal.ICS)

	g.GET("/events/stream", h.Events.Stream)
}
