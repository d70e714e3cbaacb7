package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nfauzi/storefront/internal/auth"
	"github.com/nfauzi/storefront/internal/blob"
	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/discount"
	"github.com/nfauzi/storefront/internal/events"
	"github.com/nfauzi/storefront/internal/httpapi"
	"github.com/nfauzi/storefront/internal/list"
	"github.com/nfauzi/storefront/internal/order"
	"github.com/nfauzi/storefront/internal/resilience"
	"github.com/nfauzi/storefront/internal/sched"
	"github.com/nfauzi/storefront/internal/session"
	"github.com/nfauzi/storefront/internal/view"
	"golang.org/x/text/language"
)

var fakeProducts = []map[string]any{
	{"id": 1, "title": "Gold Ring", "price": 20.5, "category": "jewelery", "rating": map[string]any{"rate": 4.1, "count": 120}},
	{"id": 2, "title": "Cotton Shirt", "price": 9.99, "category": "men's clothing", "rating": map[string]any{"rate": 3.2, "count": 40}},
	{"id": 3, "title": "Silver Ring", "price": 12.0, "category": "jewelery", "rating": map[string]any{"rate": 4.9, "count": 500}},
}

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products/categories", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{"jewelery", "men's clothing"})
	})
	mux.HandleFunc("/products/", func(w http.ResponseWriter, r *http.Request) {
		idPart := strings.TrimPrefix(r.URL.Path, "/products/")
		for _, p := range fakeProducts {
			if fmt.Sprintf("%v", p["id"]) == idPart {
				_ = json.NewEncoder(w).Encode(p)
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(fakeProducts)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	t         *testing.T
	handler   http.Handler
	clock     *sched.ManualClock
	scheduler *sched.ManualScheduler
	blobs     blob.Store
	auth      *auth.Service
	discounts *discount.Allocator
	sessionID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := sched.NewManualClock(time.Unix(1_700_000_000, 0))
	scheduler := sched.NewManualScheduler(clock)
	blobs := blob.NewMemoryStore()
	bus := events.NewBus(32)
	mgr := session.NewManager(blobs, clock, scheduler, bus, zerolog.Nop())

	srv := newCatalogServer(t)
	client := catalog.NewClient(srv.URL, resilience.HTTPClient{Client: srv.Client()}, catalog.NewCache(nil, 0))

	discounts := discount.New(discount.Config{Scheduler: scheduler})

	users := auth.NewUserStore()
	_, err := users.Add("Demo User", "demo@example.com", "correct horse battery")
	require.NoError(t, err)
	svc, err := auth.NewService(auth.Config{
		Users:          users,
		Secret:         "test-secret",
		AccessTokenTTL: 15 * time.Minute,
		Issuer:         "storefront",
		Audience:       "storefront-api",
	})
	require.NoError(t, err)
	mw := auth.Middleware{Service: svc}

	api := httpapi.API{
		Sessions:     httpapi.SessionMiddleware{Manager: mgr},
		Products:     &httpapi.ProductsHandler{Catalog: client, Discounts: discounts, Engine: view.NewEngine(language.English)},
		Cart:         &httpapi.CartHandler{Catalog: client, Discounts: discounts},
		Wishlist:     &httpapi.ListsHandler{Kind: list.KindWishlist, Catalog: client, Discounts: discounts},
		Compare:      &httpapi.ListsHandler{Kind: list.KindCompare, Catalog: client, Discounts: discounts},
		Orders:       &httpapi.OrdersHandler{Book: &order.Book{Blobs: blobs, Now: clock.Now}},
		Authenticate: mw.Authenticate,
		RequireAuth:  mw.RequireAuth,
	}
	r := chi.NewRouter()
	api.Mount(r)

	return &fixture{t: t, handler: r, clock: clock, scheduler: scheduler, blobs: blobs, auth: svc, discounts: discounts}
}

// do issues a request, pinning all calls of one test to the same session.
func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if f.sessionID != "" {
		req.Header.Set("X-Session-ID", f.sessionID)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if id := rec.Header().Get("X-Session-ID"); id != "" {
		f.sessionID = id
	}
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func TestProductsListSearchAndSort(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/products?q=ring&sort=low", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var products []catalog.Product
	decodeData(t, rec, &products)
	require.Len(t, products, 2)
	require.Equal(t, "Silver Ring", products[0].Title)
	require.Equal(t, "Gold Ring", products[1].Title)
}

func TestProductsListCategoryFilter(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/products?category=jewelery", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var products []catalog.Product
	decodeData(t, rec, &products)
	require.Len(t, products, 2)
	for _, p := range products {
		require.Equal(t, "jewelery", p.Category)
	}
}

func TestProductsInvalidSortFillsErrorSlot(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/products?sort=bogus", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid sortingTerm: 'bogus'")

	rec = f.do(http.MethodGet, "/v1/error", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var slot struct {
		Present bool `json:"present"`
		Error   struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeData(t, rec, &slot)
	require.True(t, slot.Present)
	require.Equal(t, "sorting", slot.Error.Type)
	require.Contains(t, slot.Error.Message, "bogus")
}

func TestCategoriesPrependAllCategories(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var categories []string
	decodeData(t, rec, &categories)
	require.Equal(t, []string{"All categories", "jewelery", "men's clothing"}, categories)
}

func TestCartAddAndTotals(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/v1/cart/items", "", map[string]any{"productId": 2, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	var snap struct {
		TotalItems int    `json:"totalItems"`
		SubTotal   string `json:"subTotal"`
		Total      string `json:"total"`
	}
	decodeData(t, rec, &snap)
	require.Equal(t, 2, snap.TotalItems)
	// 2 x 9.99 = 19.98; tax 15% = 3.00 (half-up); shipping 5.00
	require.Equal(t, "19.98", snap.SubTotal)
	require.Equal(t, "27.98", snap.Total)

	rec = f.do(http.MethodGet, "/v1/toast", "", nil)
	require.Contains(t, rec.Body.String(), "Product added to cart!")
}

func TestCartTwoPhaseRemoval(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/v1/cart/items", "", map[string]any{"productId": 1})

	rec := f.do(http.MethodDelete, "/v1/cart/items/1", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var snap struct {
		LineItems map[string]struct {
			MarkedForRemoval bool `json:"markedForRemoval"`
		} `json:"lineItems"`
	}
	decodeData(t, rec, &snap)
	require.True(t, snap.LineItems["1"].MarkedForRemoval)

	// a second delete while pending conflicts
	rec = f.do(http.MethodDelete, "/v1/cart/items/1", "", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "REMOVAL_PENDING")

	f.scheduler.Advance(2 * time.Second)

	rec = f.do(http.MethodGet, "/v1/cart", "", nil)
	var after struct {
		TotalItems int `json:"totalItems"`
	}
	decodeData(t, rec, &after)
	require.Zero(t, after.TotalItems)
}

func TestCartClearNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/v1/cart/items", "", map[string]any{"productId": 1})

	rec := f.do(http.MethodDelete, "/v1/cart", "", map[string]any{"confirm": false})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"cleared":false`)

	rec = f.do(http.MethodDelete, "/v1/cart", "", map[string]any{"confirm": true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"cleared":true`)

	rec = f.do(http.MethodGet, "/v1/cart", "", nil)
	var snap struct {
		TotalItems int `json:"totalItems"`
	}
	decodeData(t, rec, &snap)
	require.Zero(t, snap.TotalItems)
}

func TestCartShippingAndPaymentMethod(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/v1/cart/items", "", map[string]any{"productId": 3})

	rec := f.do(http.MethodPut, "/v1/cart/shipping", "", map[string]any{"method": "express"})
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		ShippingRate string `json:"shippingRate"`
	}
	decodeData(t, rec, &snap)
	require.True(t, decimal.RequireFromString(snap.ShippingRate).Equal(decimal.NewFromInt(16)))

	rec = f.do(http.MethodPut, "/v1/cart/shipping", "", map[string]any{"method": "overnight"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/v1/cart/payment-method", "", map[string]any{"method": "credit-card"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPut, "/v1/cart/payment-method", "", map[string]any{"method": "cash"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWishlistToggleAndResolve(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/v1/wishlist/toggle", "", map[string]any{"productId": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v1/wishlist", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		TotalItems int               `json:"totalItems"`
		Products   []catalog.Product `json:"products"`
	}
	decodeData(t, rec, &snap)
	require.Equal(t, 1, snap.TotalItems)
	require.Len(t, snap.Products, 1)
	require.Equal(t, "Gold Ring", snap.Products[0].Title)

	// toggling again removes membership
	f.do(http.MethodPost, "/v1/wishlist/toggle", "", map[string]any{"productId": 1})
	rec = f.do(http.MethodGet, "/v1/wishlist", "", nil)
	decodeData(t, rec, &snap)
	require.Zero(t, snap.TotalItems)
}

func TestCompareDelayedRemovalToast(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/v1/compare/toggle", "", map[string]any{"productId": 2})

	rec := f.do(http.MethodDelete, "/v1/compare/items/2", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	f.scheduler.Advance(2 * time.Second)

	rec = f.do(http.MethodGet, "/v1/toast", "", nil)
	require.Contains(t, rec.Body.String(), "Item removed successfully!")
}

func TestCompareToggleRemovalShowsErrorToast(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/v1/compare/toggle", "", map[string]any{"productId": 2})
	f.do(http.MethodPost, "/v1/compare/toggle", "", map[string]any{"productId": 2})

	rec := f.do(http.MethodGet, "/v1/toast", "", nil)
	require.Contains(t, rec.Body.String(), "Product removed to compare list!")
}

func TestLoginRequiresToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/v1/session/login", "", map[string]any{"merge": true})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginMergesGuestCart(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/v1/cart/items", "", map[string]any{"productId": 1})

	token, _, err := f.auth.SignAccessToken("user-1")
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/v1/session/login", token, map[string]any{"merge": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Cart struct {
			TotalItems int `json:"totalItems"`
		} `json:"cart"`
	}
	decodeData(t, rec, &body)
	require.Equal(t, 1, body.Cart.TotalItems)
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/v1/cart/items", "", map[string]any{"productId": 3, "quantity": 2})

	token, _, err := f.auth.SignAccessToken("user-9")
	require.NoError(t, err)
	rec := f.do(http.MethodPost, "/v1/session/login", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := map[string]any{
		"payment": map[string]any{"id": "pay-1", "method": "paypal"},
		"shippingAddress": map[string]any{
			"name": "Demo", "street": "Main St 1", "city": "Springfield",
			"postalCode": "12345", "country": "US",
		},
	}
	rec = f.do(http.MethodPost, "/v1/orders", token, payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	// cart was reset by placement
	rec = f.do(http.MethodGet, "/v1/cart", "", nil)
	var snap struct {
		TotalItems int `json:"totalItems"`
	}
	decodeData(t, rec, &snap)
	require.Zero(t, snap.TotalItems)

	rec = f.do(http.MethodGet, "/v1/orders/pay-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var placed order.Order
	decodeData(t, rec, &placed)
	require.Equal(t, "pay-1", placed.Payment.ID)

	// the payment id is now taken
	f.do(http.MethodPost, "/v1/cart/items", "", map[string]any{"productId": 1})
	rec = f.do(http.MethodPost, "/v1/orders", token, payload)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrderRejectsEmptyCart(t *testing.T) {
	f := newFixture(t)

	token, _, err := f.auth.SignAccessToken("user-2")
	require.NoError(t, err)
	rec := f.do(http.MethodPost, "/v1/session/login", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := map[string]any{
		"payment": map[string]any{"id": "pay-2", "method": "paypal"},
		"shippingAddress": map[string]any{
			"name": "Demo", "street": "Main St 1", "city": "Springfield",
			"postalCode": "12345", "country": "US",
		},
	}
	rec = f.do(http.MethodPost, "/v1/orders", token, payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "EMPTY_CART")
}

func TestDiscountedPriceWinsOnAdd(t *testing.T) {
	f := newFixture(t)

	// force product 1 into the discount selection
	f.discounts.SetCatalog([]catalog.Product{
		{ID: 1, Title: "Gold Ring", Price: decimal.NewFromFloat(20.5), Category: "jewelery"},
	})
	f.discounts.Refresh()

	rec := f.do(http.MethodPost, "/v1/cart/items", "", map[string]any{"productId": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		SubTotal string `json:"subTotal"`
	}
	decodeData(t, rec, &snap)
	// 10% off 20.50
	require.Equal(t, "18.45", snap.SubTotal)
}
