package handlers

import (
	"context"

	"velora_back_end/internal/cart"
	"velora_back_end/internal/checkout"
	"velora_back_end/internal/ledger"
	"velora_back_end/internal/models"
	"velora_back_end/internal/relay"
)

// OrdersBackend regroupe les opérations commandes côté amont.
// gateway.Client l'implémente ; les tests passent un mock.
type OrdersBackend interface {
	CreateOrder(ctx context.Context, token string, items []models.OrderItem, total float64, address models.ShippingAddress) (*models.Order, error)
	FetchOrder(ctx context.Context, token, orderID string) (*models.Order, error)
	FetchMyOrders(ctx context.Context, token string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) (*models.Order, error)
	CancelOrder(ctx context.Context, token, orderID string) (*models.Order, error)
}

// Handlers porte les dépendances des endpoints. Construit une fois au
// démarrage, injecté dans les routes.
type Handlers struct {
	CartBackend  cart.Backend
	Orders       OrdersBackend
	CartStore    cart.SnapshotStore
	Orchestrator *checkout.Orchestrator
	Hub          *relay.Hub
	Ledger       ledger.Ledger

	// Notify est appelé après un webhook payment_intent.succeeded
	// (e-mail de confirmation). Remplaçable dans les tests.
	Notify func(order models.Order, email string)
}

// cartService construit le client de synchronisation panier pour la
// session courante.
func (h *Handlers) cartService(userID, token string) *cart.Service {
	return cart.NewService(h.CartBackend, h.CartStore, userID, token)
}
