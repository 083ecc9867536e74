package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"velora_back_end/internal/checkout"
	"velora_back_end/internal/gateway"

	"github.com/gin-gonic/gin"
)

// Délai avant fermeture automatique d'une popup ouverte sans les
// paramètres requis — on ne laisse pas l'utilisateur sur un onglet mort.
const popupCloseAfterMs = 3000

// POST /api/checkout — ouvre une session de paiement pour une commande
// déjà créée. La commande existe forcément avant : c'est le client qui
// appelle POST /api/orders d'abord, et l'intent n'est créé qu'ici.
func (h *Handlers) CreateCheckout(c *gin.Context) {
	var input struct {
		OrderID string `json:"order_id"`
		Amount  int64  `json:"amount"` // déjà en centimes, transmis tel quel
		Email   string `json:"email"`
		Popup   bool   `json:"popup"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "code": gateway.CodeValidation})
		return
	}

	orderID := input.OrderID
	session, err := h.Orchestrator.Open(c.Request.Context(),
		checkout.Input{OrderID: input.OrderID, Amount: input.Amount, Email: input.Email},
		func(paymentRef string) {
			log.Printf("✅ Paiement confirmé pour commande %s (%s)", orderID, paymentRef)
		},
		func() {
			log.Printf("🚪 Checkout abandonné pour commande %s", orderID)
		},
	)
	if err != nil {
		var vErr *checkout.ValidationError
		if errors.As(err, &vErr) {
			body := gin.H{"error": "Informations de paiement incomplètes", "code": gateway.CodeValidation, "missing": vErr.Missing}
			if input.Popup {
				// La popup s'auto-ferme après ce délai.
				body["close_after_ms"] = popupCloseAfterMs
			}
			c.JSON(http.StatusBadRequest, body)
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Création du paiement impossible, réessayez", "code": gateway.CodePayment})
		return
	}

	if err := h.Ledger.SavePaymentSession(c.Request.Context(), session.Payment); err != nil {
		log.Printf("⚠️ Session de paiement non tracée: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":    session.Payment.ID,
		"client_secret": session.Payment.ClientSecret,
		"payment_id":    session.Payment.IntentID,
		"amount":        session.Payment.Amount,
	})
}

// POST /api/checkout/:sessionId/confirm — vérifie l'état du paiement
// auprès du processeur et rend l'issue à la page. Refuse une deuxième
// confirmation concurrente (anti double-clic).
func (h *Handlers) ConfirmCheckout(c *gin.Context) {
	outcome, err := h.Orchestrator.Confirm(c.Request.Context(), c.Param("sessionId"))
	switch {
	case errors.Is(err, checkout.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session de paiement introuvable", "code": gateway.CodeNotFound})
		return
	case errors.Is(err, checkout.ErrConfirmInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "Confirmation déjà en cours", "code": gateway.CodePayment})
		return
	case errors.Is(err, checkout.ErrNoClientSecret):
		c.JSON(http.StatusConflict, gin.H{"error": "Paiement pas encore prêt, réessayez", "code": gateway.CodePayment})
		return
	case errors.Is(err, checkout.ErrSessionFinalized):
		c.JSON(http.StatusConflict, gin.H{"error": "Session de paiement déjà terminée", "code": gateway.CodePayment})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Vérification du paiement impossible", "code": gateway.CodePayment})
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// POST /api/checkout/:sessionId/cancel — abandon avant confirmation.
// Aucun nettoyage côté processeur : la session orpheline est assumée.
func (h *Handlers) CancelCheckout(c *gin.Context) {
	if err := h.Orchestrator.Cancel(c.Param("sessionId")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session de paiement introuvable", "code": gateway.CodeNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// clearUserCart vide le panier Redis après un paiement abouti.
func (h *Handlers) clearUserCart(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := h.CartStore.Delete(ctx, userID); err != nil {
		log.Printf("⚠️ Panier non vidé pour %s: %v", userID, err)
	} else {
		log.Printf("🧹 Panier vidé après paiement pour %s", userID)
	}
}
