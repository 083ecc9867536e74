package handlers

import (
	"log"
	"net/http"
	"time"

	"velora_back_end/internal/config"
	"velora_back_end/internal/gateway"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Délai avant la navigation automatique vers l'historique de commandes
// (branche sans opener).
const redirectDelayMs = 2500

// GET /api/checkout/complete?order_id=...&payment_intent=...
//
// Cible d'atterrissage des deux chemins de complétion : le retour de
// redirect 3-D Secure et la popup. Les deux convergent ici vers UNE
// seule transition :
//   - branche A (un opener écoute) : publier le message de complétion
//     et dire à la popup de se fermer ;
//   - branche B (pas d'opener) : navigation unique différée vers
//     l'historique de commandes.
//
// Revenir ici avec les mêmes paramètres (back-button) ne refait rien :
// le registre a déjà vu ce couple (commande, paiement).
func (h *Handlers) CompleteCheckout(c *gin.Context) {
	orderID := c.Query("order_id")
	paymentRef := c.Query("payment_intent")
	if orderID == "" || paymentRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id et payment_intent requis", "code": gateway.CodeValidation})
		return
	}

	ctx := c.Request.Context()

	first, err := h.Ledger.RecordCompletion(ctx, orderID, paymentRef)
	if err != nil {
		log.Printf("❌ Registre de complétion indisponible: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Réessayez dans un instant", "code": gateway.CodeUpstream})
		return
	}
	if !first {
		// Déjà traité : pas de deuxième message, pas de deuxième timer.
		c.JSON(http.StatusOK, gin.H{"action": "already_completed", "order_id": orderID})
		return
	}

	// Converge la session locale si elle existe encore (au plus un
	// onSuccess, même si la confirmation directe est déjà passée).
	h.Orchestrator.HandleCompletion(orderID, paymentRef)

	if h.Hub.HasListener(ctx, orderID) {
		// Branche A : l'opener écoute, on lui passe le relais et la
		// popup se ferme tout de suite.
		if err := h.Hub.PublishCompletion(ctx, orderID, paymentRef); err == nil {
			c.JSON(http.StatusOK, gin.H{"action": "close", "order_id": orderID})
			return
		}
		// La messagerie a échoué : on retombe sur la branche B.
	}

	// Branche B : pas d'opener (redirect direct), confirmation affichée
	// puis navigation unique vers l'historique.
	c.JSON(http.StatusOK, gin.H{
		"action":            "redirect",
		"order_id":          orderID,
		"redirect_to":       "/orders",
		"redirect_delay_ms": redirectDelayMs,
	})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Même origine que le front, sinon on refuse l'upgrade : les
		// messages d'onglets étrangers ne passent pas.
		origin := r.Header.Get("Origin")
		return origin == "" || origin == config.FrontendOrigin()
	},
}

// GET /api/checkout/events/:orderId (websocket)
//
// Côté opener : la page de checkout s'abonne ici avant d'ouvrir la
// popup. Elle recevra au plus UN message de complétion pour sa
// commande, puis la connexion se ferme — les duplicatas et les
// messages parasites sont écartés en amont par le hub.
func (h *Handlers) CheckoutEvents(c *gin.Context) {
	orderID := c.Param("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId requis", "code": gateway.CodeValidation})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ Erreur upgrade WebSocket: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	completions, cancel, err := h.Hub.Subscribe(ctx, orderID)
	if err != nil {
		log.Printf("❌ Abonnement complétion impossible (commande %s): %v", orderID, err)
		return
	}
	defer cancel()

	if err := conn.WriteJSON(map[string]interface{}{
		"type":     "listening",
		"order_id": orderID,
	}); err != nil {
		log.Printf("❌ Erreur envoi WebSocket: %v", err)
		return
	}

	for {
		select {
		case msg, ok := <-completions:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("❌ Erreur envoi WebSocket: %v", err)
			}
			// Un seul message par tentative de checkout, puis on ferme.
			return
		case <-ctx.Done():
			return
		case <-time.After(30 * time.Second):
			// Ping pour garder la connexion active.
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
