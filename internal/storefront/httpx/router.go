package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/orderium/internal/storefront/httpx/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.PropagateRequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", handler.GetCart)
			r.Delete("/", handler.ClearCart)
			r.Post("/items", handler.AddItem)
			r.Put("/items/{productID}", handler.UpdateQuantity)
			r.Delete("/items/{productID}", handler.RemoveItem)
			r.Get("/items/{productID}/quantity", handler.ItemQuantity)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/status", handler.NotificationStatus)
			r.Post("/enable", handler.EnableNotifications)
			r.Post("/disable", handler.DisableNotifications)
		})

		r.Get("/alerts", handler.RecentAlerts)
		r.Get("/queries/versions", handler.QueryVersions)
	})
	return r
}
