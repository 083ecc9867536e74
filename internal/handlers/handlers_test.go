package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"velora_back_end/internal/cart"
	"velora_back_end/internal/checkout"
	"velora_back_end/internal/gateway"
	"velora_back_end/internal/ledger"
	"velora_back_end/internal/models"
	"velora_back_end/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	status  string
	created int
}

func (f *fakeProvider) CreateIntent(_ context.Context, amount int64, orderID, email string) (*checkout.Intent, error) {
	f.created++
	return &checkout.Intent{ID: "pi_abc", ClientSecret: "pi_abc_secret", Status: "requires_payment_method"}, nil
}

func (f *fakeProvider) RetrieveIntent(context.Context, string) (*checkout.Intent, error) {
	return &checkout.Intent{ID: "pi_abc", ClientSecret: "pi_abc_secret", Status: f.status}, nil
}

type fakeOrders struct {
	orders        map[string]*models.Order
	statusUpdates int
	failUpdates   int // nombre d'échecs amont à simuler avant de réussir
}

func (f *fakeOrders) CreateOrder(_ context.Context, _ string, items []models.OrderItem, total float64, address models.ShippingAddress) (*models.Order, error) {
	order := &models.Order{ID: "order-1", UserID: "user-1", Status: models.OrderPending, Total: total, Items: items, ShippingAddress: address}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrders) FetchOrder(_ context.Context, _ string, orderID string) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, &gateway.APIError{Code: gateway.CodeNotFound, Message: "Commande introuvable"}
	}
	return order, nil
}

func (f *fakeOrders) FetchMyOrders(context.Context, string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrders) UpdateOrderStatus(_ context.Context, orderID, status string) (*models.Order, error) {
	f.statusUpdates++
	if f.failUpdates > 0 {
		f.failUpdates--
		return nil, &gateway.APIError{Code: gateway.CodeUpstream, Message: "Service momentanément indisponible"}
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, &gateway.APIError{Code: gateway.CodeNotFound, Message: "Commande introuvable"}
	}
	order.Status = status
	return order, nil
}

func (f *fakeOrders) CancelOrder(_ context.Context, _ string, orderID string) (*models.Order, error) {
	return f.UpdateOrderStatus(context.Background(), orderID, models.OrderCancelled)
}

// Backend panier réduit au strict nécessaire pour ces tests.
type fakeCartBackend struct{}

func (fakeCartBackend) FetchCart(context.Context, string) (*models.Cart, error) {
	return &models.Cart{Items: []models.CartItem{}}, nil
}
func (fakeCartBackend) AddItem(_ context.Context, _ string, productID string, quantity int, size, color string) (*models.Cart, error) {
	return &models.Cart{Items: []models.CartItem{{
		ID:       "line-1",
		Product:  models.ProductSnapshot{ID: productID, Name: "Veste", Price: 100, Stock: 5},
		Quantity: quantity,
		Size:     size,
		Color:    color,
	}}}, nil
}
func (fakeCartBackend) UpdateItemQuantity(context.Context, string, string, int) (*models.Cart, error) {
	return &models.Cart{Items: []models.CartItem{}}, nil
}
func (fakeCartBackend) RemoveItem(context.Context, string, string) (*models.Cart, error) {
	return &models.Cart{Items: []models.CartItem{}}, nil
}
func (fakeCartBackend) ClearCart(context.Context, string) (*models.Cart, error) {
	return &models.Cart{Items: []models.CartItem{}}, nil
}
func (fakeCartBackend) FetchProduct(_ context.Context, productID string) (*models.Product, error) {
	return &models.Product{ID: productID, Name: "Veste", Price: 100, Stock: 5}, nil
}

type testEnv struct {
	h        *Handlers
	router   *gin.Engine
	provider *fakeProvider
	orders   *fakeOrders
	bus      *relay.MemoryBus
	ledger   *ledger.MemoryLedger
	store    *cart.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		provider: &fakeProvider{status: checkout.StatusSucceeded},
		orders:   &fakeOrders{orders: map[string]*models.Order{}},
		bus:      relay.NewMemoryBus(),
		ledger:   ledger.NewMemoryLedger(),
		store:    cart.NewMemoryStore(),
	}
	env.h = &Handlers{
		CartBackend:  fakeCartBackend{},
		Orders:       env.orders,
		CartStore:    env.store,
		Orchestrator: checkout.NewOrchestrator(env.provider),
		Hub:          relay.NewHub(env.bus),
		Ledger:       env.ledger,
	}

	r := gin.New()
	// Les tests injectent l'identité directement, sans passer par le JWT.
	authed := func(c *gin.Context) {
		c.Set("user_id", "user-1")
		c.Set("token", "token-1")
		c.Next()
	}
	r.GET("/api/cart", env.h.GetCart)
	r.POST("/api/cart/items", authed, env.h.AddToCart)
	r.POST("/api/checkout", authed, env.h.CreateCheckout)
	r.POST("/api/checkout/:sessionId/confirm", authed, env.h.ConfirmCheckout)
	r.POST("/api/checkout/:sessionId/cancel", authed, env.h.CancelCheckout)
	r.GET("/api/checkout/complete", env.h.CompleteCheckout)
	r.POST("/api/webhook/stripe", env.h.StripeWebhook)
	env.router = r
	return env
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGetCart_Guest_ReturnsEmptyCart(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.router, http.MethodGet, "/api/cart", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["total"])
	assert.Empty(t, body["items"])
}

func TestAddToCart_ResponseCarriesTotals(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/api/cart/items", gin.H{
		"product_id": "P1", "quantity": 2,
	})

	// La réponse de mutation porte les dérivés, comme le GET : pas
	// besoin de relire le panier après chaque mutation.
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(200), body["total"])
	assert.Equal(t, float64(2), body["count"])
	require.Len(t, body["items"], 1)
}

func TestCreateCheckout_ReturnsClientSecret(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/api/checkout", gin.H{
		"order_id": "123", "amount": 500000, "email": "a@b.com",
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "pi_abc_secret", body["client_secret"])
	assert.Equal(t, "pi_abc", body["payment_id"])
	assert.Equal(t, float64(500000), body["amount"])
	assert.Equal(t, 1, env.provider.created)
	// La session est tracée dans le registre.
	require.Len(t, env.ledger.Sessions, 1)
	assert.Equal(t, int64(500000), env.ledger.Sessions[0].Amount)
}

func TestCreateCheckout_PopupMissingAmount_SelfCloses(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/api/checkout", gin.H{
		"order_id": "123", "email": "a@b.com", "popup": true,
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(popupCloseAfterMs), body["close_after_ms"])
	// Aucune requête de handle de paiement n'est jamais partie.
	assert.Zero(t, env.provider.created)
}

func TestCreateCheckout_InlineMissingAmount_NoCloseDelay(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/api/checkout", gin.H{
		"order_id": "123", "email": "a@b.com",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	_, present := body["close_after_ms"]
	assert.False(t, present)
}

func TestConfirmCheckout_Succeeded(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/api/checkout", gin.H{
		"order_id": "123", "amount": 500000, "email": "a@b.com",
	})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID := decodeBody(t, w)["session_id"].(string)

	w = doJSON(t, env.router, http.MethodPost, "/api/checkout/"+sessionID+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "succeeded", body["status"])
	assert.Equal(t, "pi_abc", body["payment_ref"])

	// Une deuxième confirmation est refusée : la session terminée a été
	// évincée du registre.
	w = doJSON(t, env.router, http.MethodPost, "/api/checkout/"+sessionID+"/confirm", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompleteCheckout_NoOpener_RedirectOnce(t *testing.T) {
	env := newTestEnv(t)
	url := "/api/checkout/complete?order_id=123&payment_intent=pi_abc"

	w := doJSON(t, env.router, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "redirect", body["action"])
	assert.Equal(t, "/orders", body["redirect_to"])
	assert.Equal(t, float64(redirectDelayMs), body["redirect_delay_ms"])

	// Back-button : mêmes paramètres, pas de deuxième timer de navigation.
	w = doJSON(t, env.router, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, "already_completed", body["action"])
}

func TestCompleteCheckout_WithOpener_PostsMessageAndCloses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// L'opener écoute avant que la popup n'atterrisse ici.
	completions, cancel, err := env.h.Hub.Subscribe(ctx, "123")
	require.NoError(t, err)
	defer cancel()

	w := doJSON(t, env.router, http.MethodGet, "/api/checkout/complete?order_id=123&payment_intent=pi_abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "close", decodeBody(t, w)["action"])

	msg := <-completions
	assert.Equal(t, relay.TypeCheckoutComplete, msg.Type)
	assert.Equal(t, "123", msg.OrderID)
	assert.Equal(t, "pi_abc", msg.PaymentRef)
}

func TestCompleteCheckout_MissingParams(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.router, http.MethodGet, "/api/checkout/complete?order_id=123", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func webhookPayload(t *testing.T, intentID, orderID, email string) gin.H {
	t.Helper()
	raw, err := json.Marshal(gin.H{
		"id":       intentID,
		"metadata": gin.H{"order_id": orderID, "email": email},
	})
	require.NoError(t, err)
	return gin.H{
		"type": "payment_intent.succeeded",
		"data": gin.H{"object": json.RawMessage(raw)},
	}
}

func TestStripeWebhook_UpdatesOrderOnce(t *testing.T) {
	env := newTestEnv(t)
	env.orders.orders["123"] = &models.Order{ID: "123", UserID: "user-1", Status: models.OrderPending}
	require.NoError(t, env.store.Set(context.Background(), "user-1", &models.Cart{
		Items: []models.CartItem{{ID: "line-1", Quantity: 1}},
	}))

	notified := make(chan string, 2)
	env.h.Notify = func(_ models.Order, email string) { notified <- email }

	payload := webhookPayload(t, "pi_abc", "123", "a@b.com")

	// Stripe rejoue les webhooks : deux livraisons, un seul traitement.
	w := doJSON(t, env.router, http.MethodPost, "/api/webhook/stripe", payload)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, env.router, http.MethodPost, "/api/webhook/stripe", payload)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, env.orders.statusUpdates)

	// Un seul e-mail de confirmation.
	select {
	case email := <-notified:
		assert.Equal(t, "a@b.com", email)
	case <-time.After(time.Second):
		t.Fatal("e-mail de confirmation jamais envoyé")
	}
	select {
	case <-notified:
		t.Fatal("e-mail de confirmation envoyé deux fois")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, models.OrderProcessing, env.orders.orders["123"].Status)

	// Le panier est vidé après paiement.
	snap, err := env.store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStripeWebhook_ReplayRecoversUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.orders.orders["123"] = &models.Order{ID: "123", UserID: "user-1", Status: models.OrderPending}
	env.orders.failUpdates = 1

	payload := webhookPayload(t, "pi_abc", "123", "a@b.com")

	// Première livraison : l'amont refuse la transition. On répond 5xx
	// et on libère la réservation pour que Stripe rejoue.
	w := doJSON(t, env.router, http.MethodPost, "/api/webhook/stripe", payload)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, models.OrderPending, env.orders.orders["123"].Status)

	// Le rejeu rattrape l'échec amont : la commande passe en processing.
	w = doJSON(t, env.router, http.MethodPost, "/api/webhook/stripe", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderProcessing, env.orders.orders["123"].Status)

	// Un troisième passage est dédupliqué normalement.
	w = doJSON(t, env.router, http.MethodPost, "/api/webhook/stripe", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, env.orders.statusUpdates)
}

func TestStripeWebhook_IgnoresOtherEvents(t *testing.T) {
	env := newTestEnv(t)
	env.orders.orders["123"] = &models.Order{ID: "123", UserID: "user-1"}

	w := doJSON(t, env.router, http.MethodPost, "/api/webhook/stripe", gin.H{
		"type": "payment_intent.created",
		"data": gin.H{"object": gin.H{"id": "pi_abc"}},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, env.orders.statusUpdates)
}
