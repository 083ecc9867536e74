package gateway

import (
	"context"
	"log"
	"os"
	"time"

	"velora_back_end/internal/models"

	"github.com/go-resty/resty/v2"
)

// Client parle au backend amont (produits, panier, commandes) en
// HTTP/JSON. Chaque appel porte un timeout explicite — on ne dépend
// pas du comportement par défaut du transport.
type Client struct {
	http *resty.Client
}

func NewClient() *Client {
	baseURL := os.Getenv("BACKEND_URL")
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return NewClientWithBase(baseURL)
}

func NewClientWithBase(baseURL string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{http: client}
}

// --- Panier ---

func (c *Client) FetchCart(ctx context.Context, token string) (*models.Cart, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get("/api/cart")
	if err != nil {
		log.Printf("❌ Backend injoignable (get cart): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeCart(resp)
}

func (c *Client) AddItem(ctx context.Context, token, productID string, quantity int, size, color string) (*models.Cart, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]interface{}{
			"product_id": productID,
			"quantity":   quantity,
			"size":       size,
			"color":      color,
		}).
		Post("/api/cart/items")
	if err != nil {
		log.Printf("❌ Backend injoignable (add item): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeCart(resp)
}

func (c *Client) UpdateItemQuantity(ctx context.Context, token, itemID string, quantity int) (*models.Cart, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]interface{}{"quantity": quantity}).
		Put("/api/cart/items/" + itemID)
	if err != nil {
		log.Printf("❌ Backend injoignable (update item): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeCart(resp)
}

func (c *Client) RemoveItem(ctx context.Context, token, itemID string) (*models.Cart, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Delete("/api/cart/items/" + itemID)
	if err != nil {
		log.Printf("❌ Backend injoignable (remove item): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeCart(resp)
}

func (c *Client) ClearCart(ctx context.Context, token string) (*models.Cart, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Delete("/api/cart")
	if err != nil {
		log.Printf("❌ Backend injoignable (clear cart): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeCart(resp)
}

// --- Produits ---

func (c *Client) FetchProduct(ctx context.Context, productID string) (*models.Product, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/api/products/" + productID)
	if err != nil {
		log.Printf("❌ Backend injoignable (get product): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeProduct(resp)
}

// --- Commandes ---

func (c *Client) CreateOrder(ctx context.Context, token string, items []models.OrderItem, total float64, address models.ShippingAddress) (*models.Order, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]interface{}{
			"items":            items,
			"total":            total,
			"shipping_address": address,
		}).
		Post("/api/orders")
	if err != nil {
		log.Printf("❌ Backend injoignable (create order): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeOrder(resp)
}

func (c *Client) FetchOrder(ctx context.Context, token, orderID string) (*models.Order, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get("/api/orders/" + orderID)
	if err != nil {
		log.Printf("❌ Backend injoignable (get order): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeOrder(resp)
}

func (c *Client) FetchMyOrders(ctx context.Context, token string) ([]models.Order, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get("/api/orders")
	if err != nil {
		log.Printf("❌ Backend injoignable (list orders): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeOrders(resp)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	if !models.ValidOrderStatus(status) {
		return nil, &APIError{Code: CodeValidation, Message: "Statut de commande inconnu: " + status}
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Service-Key", os.Getenv("BACKEND_SERVICE_KEY")).
		SetBody(map[string]interface{}{"status": status}).
		Put("/api/orders/" + orderID + "/status")
	if err != nil {
		log.Printf("❌ Backend injoignable (update status): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeOrder(resp)
}

func (c *Client) CancelOrder(ctx context.Context, token, orderID string) (*models.Order, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Post("/api/orders/" + orderID + "/cancel")
	if err != nil {
		log.Printf("❌ Backend injoignable (cancel order): %v", err)
		return nil, AsAPIError(err)
	}
	return decodeOrder(resp)
}
