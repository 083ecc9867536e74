package main

import (
	"log"
	"os"

	"velora_back_end/internal/cart"
	"velora_back_end/internal/checkout"
	"velora_back_end/internal/config"
	"velora_back_end/internal/database"
	"velora_back_end/internal/gateway"
	"velora_back_end/internal/handlers"
	"velora_back_end/internal/ledger"
	"velora_back_end/internal/models"
	"velora_back_end/internal/relay"
	"velora_back_end/internal/routes"
	"velora_back_end/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
)

func main() {
	config.Load()

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		log.Fatal("❌ Impossible d'initialiser Stripe : clé manquante")
	}
	log.Println("✅ Stripe initialisé")

	database.ConnectDatabases()
	defer database.Close()

	backend := gateway.NewClient()
	h := &handlers.Handlers{
		CartBackend:  backend,
		Orders:       backend,
		CartStore:    cart.NewRedisStore(database.Redis),
		Orchestrator: checkout.NewOrchestrator(checkout.NewStripeProvider()),
		Hub:          relay.NewHub(relay.NewRedisBus(database.Redis)),
		Ledger:       ledger.NewScyllaLedger(database.Scylla),
		Notify:       sendOrderConfirmation,
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.FrontendOrigin()},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		AllowCredentials: true,
	}))
	routes.RegisterRoutes(r, h)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Serveur Velora lancé sur le port", port)
	r.Run(":" + port)
}

// sendOrderConfirmation envoie l'e-mail de confirmation avec le QR de
// suivi. Appelé en goroutine après le webhook payment_intent.succeeded.
func sendOrderConfirmation(order models.Order, email string) {
	qr, err := utils.GenerateTrackingQR(config.FrontendOrigin(), order.ID)
	if err != nil {
		log.Printf("⚠️ QR de suivi non généré: %v", err)
		qr = ""
	}

	html := utils.GenerateOrderConfirmationHTML(order, qr)
	if err := utils.SendConfirmationEmail(email, "Confirmation de votre commande Velora", html); err != nil {
		log.Printf("❌ Erreur envoi e-mail confirmation : %v", err)
	} else {
		log.Println("📧 E-mail de confirmation envoyé à", email)
	}
}
