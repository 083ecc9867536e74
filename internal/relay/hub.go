package relay

import (
	"context"
	"log"
	"sync"
)

// Hub relie la popup de paiement à la page qui l'a ouverte. La garantie
// "exactement une transition" est tenue côté réception : chaque
// abonnement ne délivre qu'un seul message de complétion par commande,
// les duplicatas et les messages d'autres commandes sont écartés.
type Hub struct {
	bus Bus
}

func NewHub(bus Bus) *Hub {
	return &Hub{bus: bus}
}

// PublishCompletion envoie le message de la popup vers l'opener.
// L'émetteur ne garantit pas la livraison unique — c'est le récepteur
// qui écarte.
func (h *Hub) PublishCompletion(ctx context.Context, orderID, paymentRef string) error {
	msg := Completion{
		Type:       TypeCheckoutComplete,
		OrderID:    orderID,
		PaymentRef: paymentRef,
	}
	if err := h.bus.Publish(ctx, orderID, msg); err != nil {
		log.Printf("❌ Publication complétion échouée (commande %s): %v", orderID, err)
		return err
	}
	log.Printf("📨 Complétion publiée pour commande %s (%s)", orderID, paymentRef)
	return nil
}

// HasListener indique si un opener écoute cette commande (branche A de
// la page de complétion).
func (h *Hub) HasListener(ctx context.Context, orderID string) bool {
	n, err := h.bus.ListenerCount(ctx, orderID)
	if err != nil {
		return false
	}
	return n > 0
}

// Subscribe abonne un opener à une commande. Le canal rendu délivre au
// plus un message : le premier checkout_complete dont l'order_id
// correspond. Tout le reste est ignoré.
func (h *Hub) Subscribe(ctx context.Context, orderID string) (<-chan Completion, func(), error) {
	raw, cancelRaw, err := h.bus.Subscribe(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan Completion, 1)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for msg := range raw {
			if msg.Type != TypeCheckoutComplete || msg.OrderID != orderID {
				// Message parasite : pas pour nous.
				continue
			}
			select {
			case out <- msg:
			case <-done:
			}
			// Premier message délivré : les suivants sont des duplicatas.
			return
		}
	}()

	// cancel doit supporter les appels répétés.
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			cancelRaw()
		})
	}
	return out, cancel, nil
}
