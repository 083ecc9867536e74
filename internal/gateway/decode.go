package gateway

import (
	"encoding/json"

	"velora_back_end/internal/models"

	"github.com/go-resty/resty/v2"
)

// Frontière de normalisation : une fonction de décodage par forme de
// réponse amont. Tout ce qui sort d'ici est un type canonique ou une
// APIError — les handlers ne devinent jamais la forme du JSON.

type errorBody struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeError(resp *resty.Response) *APIError {
	var body errorBody
	_ = json.Unmarshal(resp.Body(), &body)

	message := body.Message
	if message == "" {
		message = body.Error
	}
	if message == "" {
		message = "Erreur backend (" + resp.Status() + ")"
	}

	code := body.Code
	if code == "" {
		// Amont sans code structuré : on se rabat sur le statut HTTP.
		switch resp.StatusCode() {
		case 401, 403:
			code = CodeAuthRequired
		case 404:
			code = CodeNotFound
		case 400, 422:
			code = CodeValidation
		default:
			code = CodeUpstream
		}
	}

	return &APIError{Code: code, Message: message, Status: resp.StatusCode()}
}

func decodeCart(resp *resty.Response) (*models.Cart, error) {
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	var body struct {
		Cart  *models.Cart      `json:"cart"`
		Items []models.CartItem `json:"items"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, &APIError{Code: CodeUpstream, Message: "Réponse panier illisible"}
	}
	if body.Cart != nil {
		return body.Cart, nil
	}
	// Certaines versions de l'amont renvoient les lignes à plat.
	return &models.Cart{Items: body.Items}, nil
}

func decodeProduct(resp *resty.Response) (*models.Product, error) {
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	var body struct {
		Product *models.Product `json:"product"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Product != nil {
		return body.Product, nil
	}
	var product models.Product
	if err := json.Unmarshal(resp.Body(), &product); err != nil || product.ID == "" {
		return nil, &APIError{Code: CodeUpstream, Message: "Réponse produit illisible"}
	}
	return &product, nil
}

func decodeOrder(resp *resty.Response) (*models.Order, error) {
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	var body struct {
		Order *models.Order `json:"order"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Order != nil {
		return body.Order, nil
	}
	var order models.Order
	if err := json.Unmarshal(resp.Body(), &order); err != nil || order.ID == "" {
		return nil, &APIError{Code: CodeUpstream, Message: "Réponse commande illisible"}
	}
	return &order, nil
}

func decodeOrders(resp *resty.Response) ([]models.Order, error) {
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	var body struct {
		Orders []models.Order `json:"orders"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, &APIError{Code: CodeUpstream, Message: "Réponse commandes illisible"}
	}
	return body.Orders, nil
}
