package routes

import (
	"velora_back_end/internal/handlers"
	"velora_back_end/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, h *handlers.Handlers) {
	api := r.Group("/api")

	// Panier : lecture ouverte aux invités (panier vide), mutations
	// réservées aux connectés.
	api.GET("/cart", middleware.AuthOptional(), h.GetCart)

	cart := api.Group("/cart", middleware.AuthRequired(), middleware.CartRateLimit())
	{
		cart.POST("/items", h.AddToCart)
		cart.PUT("/items/:itemId", h.UpdateQuantity)
		cart.DELETE("/items/:itemId", h.RemoveFromCart)
		cart.DELETE("", h.ClearCart)
	}

	// Commandes (proxy vers le backend amont).
	orders := api.Group("/orders", middleware.AuthRequired())
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.GetMyOrders)
		orders.GET("/:id", h.GetOrderByID)
		orders.POST("/:id/cancel", h.CancelOrder)
	}

	// Checkout. La page de complétion et le flux d'événements n'exigent
	// pas de token : ils sont atteints par redirect processeur / popup.
	api.POST("/checkout", middleware.AuthRequired(), middleware.CheckoutRateLimit(), h.CreateCheckout)
	api.POST("/checkout/:sessionId/confirm", middleware.AuthRequired(), h.ConfirmCheckout)
	api.POST("/checkout/:sessionId/cancel", middleware.AuthRequired(), h.CancelCheckout)
	api.GET("/checkout/complete", h.CompleteCheckout)
	api.GET("/checkout/events/:orderId", h.CheckoutEvents)

	// Webhook Stripe (signé, pas de JWT).
	api.POST("/webhook/stripe", h.StripeWebhook)
}
