package handlers

import (
	"net/http"

	"velora_back_end/internal/gateway"
	"velora_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

func apiFail(c *gin.Context, err error) {
	apiErr := gateway.AsAPIError(err)
	c.JSON(statusFor(apiErr.Code), gin.H{"error": apiErr.Message, "code": apiErr.Code})
}

// POST /api/orders — crée la commande côté backend. Toujours AVANT
// l'ouverture d'une session de paiement : pas d'orderId, pas d'intent.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var input struct {
		Items           []models.OrderItem     `json:"items" binding:"required"`
		Total           float64                `json:"total"`
		ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || len(input.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Commande invalide ou panier vide", "code": gateway.CodeValidation})
		return
	}

	order, err := h.Orders.CreateOrder(c.Request.Context(), c.GetString("token"),
		input.Items, input.Total, input.ShippingAddress)
	if err != nil {
		apiFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// GET /api/orders
func (h *Handlers) GetMyOrders(c *gin.Context) {
	orders, err := h.Orders.FetchMyOrders(c.Request.Context(), c.GetString("token"))
	if err != nil {
		apiFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GET /api/orders/:id — le backend vérifie que la commande appartient
// bien au porteur du token.
func (h *Handlers) GetOrderByID(c *gin.Context) {
	order, err := h.Orders.FetchOrder(c.Request.Context(), c.GetString("token"), c.Param("id"))
	if err != nil {
		apiFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// POST /api/orders/:id/cancel
func (h *Handlers) CancelOrder(c *gin.Context) {
	order, err := h.Orders.CancelOrder(c.Request.Context(), c.GetString("token"), c.Param("id"))
	if err != nil {
		apiFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
