package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"slotbook/internal/admin"
	"slotbook/internal/booking"
	"slotbook/internal/models"
)

// BookingService is the reservation engine surface the handlers call.
type BookingService interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
	Cancel(ctx context.Context, signupID, slotID int64, contact string) (*booking.Result, error)
	ActiveBookings(ctx context.Context, contact string) ([]models.Signup, error)
}

// CatalogService is the read-only slot view.
type CatalogService interface {
	ListAvailableSlots(ctx context.Context) (map[string][]models.Slot, error)
	ListAllSlots(ctx context.Context) ([]models.Slot, error)
}

// AdminService manages the slot table.
type AdminService interface {
	AddSlots(ctx context.Context, batch []admin.NewSlot) ([]models.Slot, error)
	DeleteSlots(ctx context.Context, slotIDs []int64) error
}

// Sessions gates the admin surface.
type Sessions interface {
	Login(ctx context.Context, password string) (string, error)
	Authenticate(ctx context.Context, token string) bool
	Logout(ctx context.Context, token string)
}

// Exporter produces the xlsx audit dump.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
}

type RouterConfig struct {
	Booking  BookingService
	Catalog  CatalogService
	Admin    AdminService
	Sessions Sessions
	Exporter Exporter
	// Ready reports backend readiness; nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	s := &server{cfg: cfg, log: cfg.Logger}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)

	r.Get("/slots", s.handleSlots)
	r.Post("/book", s.handleBook)
	r.Patch("/book", s.handleCancel)

	r.Post("/admin/login", s.handleLogin)
	r.Post("/admin/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(adminAuth(cfg.Sessions))
		r.Get("/admin/slots", s.handleAdminSlots)
		r.Post("/admin/slots", s.handleAdminMutateSlots)
		r.Delete("/admin/slots", s.handleAdminMutateSlots)
		r.Get("/admin/export", s.handleExport)
	})

	return r
}

type server struct {
	cfg RouterConfig
	log *zerolog.Logger
}
