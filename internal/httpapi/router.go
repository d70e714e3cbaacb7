package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// API groups the storefront handlers and mounts them under /v1.
type API struct {
	Sessions SessionMiddleware
	Products *ProductsHandler
	Cart     *CartHandler
	Wishlist *ListsHandler
	Compare  *ListsHandler
	Login    LoginHandler
	Orders   *OrdersHandler
	Slots    SlotsHandler

	// Authenticate decorates every route so a bearer token, when present,
	// attaches the user id. RequireAuth guards identity-bound routes.
	Authenticate func(http.Handler) http.Handler
	RequireAuth  func(http.Handler) http.Handler
}

// Mount attaches all storefront routes to the router.
func (a API) Mount(r chi.Router) {
	r.Route("/v1", func(v chi.Router) {
		v.Use(a.Sessions.Handler)
		if a.Authenticate != nil {
			v.Use(a.Authenticate)
		}

		v.Get("/products", a.Products.List)
		v.Get("/products/{id}", a.Products.Detail)
		v.Get("/categories", a.Products.Categories)

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", a.Cart.Get)
			c.Post("/items", a.Cart.AddItem)
			c.Delete("/items/{id}", a.Cart.RemoveItem)
			c.Delete("/", a.Cart.Clear)
			c.Put("/shipping", a.Cart.SetShipping)
			c.Put("/payment-method", a.Cart.SetPaymentMethod)
		})

		mountList := func(path string, h *ListsHandler) {
			v.Route(path, func(l chi.Router) {
				l.Get("/", h.Get)
				l.Post("/toggle", h.Toggle)
				l.Delete("/items/{id}", h.RemoveItem)
				l.Delete("/", h.Clear)
			})
		}
		mountList("/wishlist", a.Wishlist)
		mountList("/compare", a.Compare)

		v.Route("/session", func(s chi.Router) {
			if a.RequireAuth != nil {
				s.With(a.RequireAuth).Post("/login", a.Login.Login)
			} else {
				s.Post("/login", a.Login.Login)
			}
			s.Post("/logout", a.Login.Logout)
		})

		v.Route("/orders", func(o chi.Router) {
			if a.RequireAuth != nil {
				o.Use(a.RequireAuth)
			}
			o.Post("/", a.Orders.Place)
			o.Get("/", a.Orders.List)
			o.Get("/{id}", a.Orders.Get)
		})

		v.Get("/toast", a.Slots.Toast)
		v.Get("/error", a.Slots.Error)
	})
}
