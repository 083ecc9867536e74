package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"velora_back_end/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// POST /api/webhook/stripe
//
// C'est ici — et seulement ici — que le statut de commande bouge après
// paiement : la page de complétion ne mute rien, elle ne fait que
// naviguer. Le webhook est idempotent : un payment_intent déjà traité
// est ignoré.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		log.Println("❌ Lecture payload échouée:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Échec lecture body"})
		return
	}

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	var event stripe.Event

	if secret == "" {
		log.Println("⚠️ Pas de STRIPE_WEBHOOK_SECRET — mode test")
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Println("❌ JSON invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "JSON invalide"})
			return
		}
	} else {
		event, err = webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), secret)
		if err != nil {
			log.Println("❌ Signature Stripe invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
			return
		}
	}

	log.Printf("📥 Événement Stripe reçu : %s", event.Type)
	if err := h.handleStripeEvent(event); err != nil {
		// Échec transitoire : on répond 5xx pour que Stripe rejoue.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Traitement différé, l'événement sera rejoué"})
		return
	}

	c.Status(http.StatusOK)
}

func (h *Handlers) handleStripeEvent(event stripe.Event) error {
	if event.Type != "payment_intent.succeeded" {
		log.Printf("ℹ️ Événement ignoré : %s", event.Type)
		return nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		// Payload malformé : le rejeu ne le réparera pas.
		log.Println("❌ Erreur décodage PaymentIntent:", err)
		return nil
	}

	orderID := pi.Metadata["order_id"]
	email := pi.Metadata["email"]
	if orderID == "" {
		log.Println("⚠️ Métadonnées incomplètes, order_id manquant")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Livraison dupliquée : Stripe rejoue les webhooks, on ne traite
	// chaque intent qu'une fois.
	first, err := h.Ledger.RecordWebhookEvent(ctx, pi.ID)
	if err != nil {
		log.Printf("❌ Registre webhook indisponible: %v", err)
		return err
	}
	if !first {
		log.Printf("🔁 PaymentIntent %s déjà traité, on ignore.", pi.ID)
		return nil
	}

	order, err := h.Orders.UpdateOrderStatus(ctx, orderID, models.OrderProcessing)
	if err != nil {
		// L'amont n'a pas pris la transition : on libère la réservation
		// pour que le rejeu retente, sinon la commande resterait pending
		// alors que le client a payé.
		log.Printf("❌ Passage en processing impossible pour commande %s: %v", orderID, err)
		if relErr := h.Ledger.ReleaseWebhookEvent(ctx, pi.ID); relErr != nil {
			log.Printf("❌ Libération de l'événement %s impossible: %v", pi.ID, relErr)
		}
		return err
	}
	log.Printf("✅ Commande %s passée en processing (%s)", orderID, pi.ID)

	// Le panier ne se vide qu'APRÈS le paiement confirmé.
	h.clearUserCart(ctx, order.UserID)

	// Converge la session locale si elle est encore en vie.
	h.Orchestrator.HandleCompletion(orderID, pi.ID)

	if email != "" && h.Notify != nil {
		go h.Notify(*order, email)
	}
	return nil
}
