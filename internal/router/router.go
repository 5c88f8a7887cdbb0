// Package router wires the HTTP handlers onto their routes.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/veridia/plot-reservation/internal/handler"
	"github.com/veridia/plot-reservation/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Plots        *handler.PlotHandler
	Booking      *handler.BookingHandler
	Transactions *handler.TransactionHandler
	Health       *handler.HealthHandler
}

// Register mounts all routes on e.  Public reads under /v1 need no
// token; booking and ledger routes require a verified identity.  The
// internal status RPC is mounted outside /v1 and is expected to be
// reachable only inside the deployment network.
func Register(e *echo.Echo, h Handlers, jwtSecret string) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	e.GET("/healthz", h.Health.Check)

	// Plot reads are public so prospective buyers can browse without
	// an account.
	pub := e.Group("/v1")
	pub.GET("/locations/:location/plots", h.Plots.ListPlots)
	pub.GET("/locations/:location/plots/:id", h.Plots.GetPlot)
	pub.GET("/locations/:location/stats", h.Plots.LocationStats)

	auth := e.Group("/v1", middleware.Identity(jwtSecret))
	auth.POST("/plots/:id/reserve", h.Booking.Reserve)
	auth.POST("/plots/:id/buy", h.Booking.Buy)
	auth.POST("/transactions/:id/verify-payment", h.Booking.VerifyPayment)
	auth.GET("/transactions", h.Transactions.List)
	auth.GET("/transactions/:id", h.Transactions.Get)

	internal := e.Group("/internal/v1")
	internal.PUT("/plots/:id/status", h.Plots.UpdateStatus)
}
