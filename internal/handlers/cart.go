package handlers

import (
	"net/http"

	"velora_back_end/internal/cart"
	"velora_back_end/internal/gateway"

	"github.com/gin-gonic/gin"
)

// statusFor traduit un code d'erreur métier en statut HTTP.
func statusFor(code string) int {
	switch code {
	case gateway.CodeAuthRequired:
		return http.StatusUnauthorized
	case gateway.CodeNotFound:
		return http.StatusNotFound
	case gateway.CodeValidation, gateway.CodeOutOfStock, gateway.CodeOwnProduct, gateway.CodeConfirmRemoval:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// respond sérialise un Result avec les dérivés (total, count) : le
// client n'a pas à refaire un GET après chaque mutation.
func respond(c *gin.Context, res cart.Result) {
	body := gin.H{"success": res.Success}
	if res.Message != "" {
		body["message"] = res.Message
	}
	if res.Code != "" {
		body["code"] = res.Code
	}
	if res.Cart != nil {
		body["items"] = res.Cart.Items
		body["total"] = res.Cart.Total()
		body["count"] = res.Cart.ItemCount()
	}

	if res.Success {
		c.JSON(http.StatusOK, body)
		return
	}
	c.JSON(statusFor(res.Code), body)
}

// GET /api/cart — un invité reçoit un panier vide, jamais une erreur.
func (h *Handlers) GetCart(c *gin.Context) {
	svc := h.cartService(c.GetString("user_id"), c.GetString("token"))
	res := svc.GetCart(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success": res.Success,
		"items":   res.Cart.Items,
		"total":   res.Cart.Total(),
		"count":   res.Cart.ItemCount(),
	})
}

// POST /api/cart/items
func (h *Handlers) AddToCart(c *gin.Context) {
	var input struct {
		ProductID string `json:"product_id" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required"`
		Size      string `json:"size"`
		Color     string `json:"color"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "code": gateway.CodeValidation})
		return
	}

	svc := h.cartService(c.GetString("user_id"), c.GetString("token"))
	res := svc.AddToCart(c.Request.Context(), input.ProductID, input.Quantity,
		cart.Variant{Size: input.Size, Color: input.Color})
	respond(c, res)
}

// PUT /api/cart/items/:itemId — quantity 0 exige confirmed=true,
// sinon l'appel est refusé sans toucher au backend.
func (h *Handlers) UpdateQuantity(c *gin.Context) {
	var input struct {
		Quantity  *int `json:"quantity" binding:"required"`
		Confirmed bool `json:"confirmed"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "code": gateway.CodeValidation})
		return
	}

	svc := h.cartService(c.GetString("user_id"), c.GetString("token"))
	res := svc.UpdateQuantity(c.Request.Context(), c.Param("itemId"), *input.Quantity, input.Confirmed)
	respond(c, res)
}

// DELETE /api/cart/items/:itemId
func (h *Handlers) RemoveFromCart(c *gin.Context) {
	svc := h.cartService(c.GetString("user_id"), c.GetString("token"))
	res := svc.RemoveFromCart(c.Request.Context(), c.Param("itemId"))
	respond(c, res)
}

// DELETE /api/cart
func (h *Handlers) ClearCart(c *gin.Context) {
	svc := h.cartService(c.GetString("user_id"), c.GetString("token"))
	res := svc.ClearCart(c.Request.Context())
	respond(c, res)
}
