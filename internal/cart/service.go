package cart

import (
	"context"
	"fmt"
	"log"

	"velora_back_end/internal/gateway"
	"velora_back_end/internal/models"
)

// Backend regroupe les opérations amont dont le panier a besoin.
// gateway.Client l'implémente ; les tests passent un mock.
type Backend interface {
	FetchCart(ctx context.Context, token string) (*models.Cart, error)
	AddItem(ctx context.Context, token, productID string, quantity int, size, color string) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, token, itemID string, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, token, itemID string) (*models.Cart, error)
	ClearCart(ctx context.Context, token string) (*models.Cart, error)
	FetchProduct(ctx context.Context, productID string) (*models.Product, error)
}

// Result est la forme de retour de toute mutation : succès + panier à
// jour, ou échec + message à afficher. En cas d'échec le panier rendu
// est l'état d'avant l'appel, inchangé.
type Result struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Code    string       `json:"code,omitempty"`
	Cart    *models.Cart `json:"cart,omitempty"`
}

// Variant porte les discriminants de ligne (taille, couleur).
type Variant struct {
	Size  string `json:"size"`
	Color string `json:"color"`
}

// Service est le client de synchronisation du panier : un par session,
// construit avec le token de l'utilisateur. Toute mutation passe par le
// backend ; l'état local n'est que la dernière réponse confirmée.
type Service struct {
	backend Backend
	store   SnapshotStore
	userID  string
	token   string
}

func NewService(backend Backend, store SnapshotStore, userID, token string) *Service {
	return &Service{backend: backend, store: store, userID: userID, token: token}
}

func (s *Service) authenticated() bool {
	return s.userID != "" && s.token != ""
}

func failure(code, message string, cart *models.Cart) Result {
	return Result{Success: false, Message: message, Code: code, Cart: cart}
}

// current rend le dernier snapshot confirmé, ou va le chercher au
// backend si la session n'en a pas encore.
func (s *Service) current(ctx context.Context) *models.Cart {
	snap, err := s.store.Get(ctx, s.userID)
	if err == nil && snap != nil {
		return snap
	}
	fetched, err := s.backend.FetchCart(ctx, s.token)
	if err != nil || fetched == nil {
		return &models.Cart{Items: []models.CartItem{}}
	}
	_ = s.store.Set(ctx, s.userID, fetched)
	return fetched
}

// commit remplace le snapshot par la réponse backend (vérité terrain).
func (s *Service) commit(ctx context.Context, cart *models.Cart) *models.Cart {
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	if err := s.store.Set(ctx, s.userID, cart); err != nil {
		log.Printf("⚠️ Snapshot panier non sauvegardé pour %s: %v", s.userID, err)
	}
	return cart
}

// GetCart : un invité obtient un panier vide, pas une erreur — on peut
// flâner sans compte, pas persister un panier.
func (s *Service) GetCart(ctx context.Context) Result {
	if !s.authenticated() {
		return Result{Success: true, Cart: &models.Cart{Items: []models.CartItem{}}}
	}
	return Result{Success: true, Cart: s.current(ctx)}
}

// AddToCart ajoute ou incrémente la ligne produit+variante. Le stock
// est pré-vérifié via le produit, mais le refus du backend reste
// l'autorité : en cas d'échec on rend l'état d'avant, intact.
func (s *Service) AddToCart(ctx context.Context, productID string, quantity int, variant Variant) Result {
	if !s.authenticated() {
		return failure(gateway.CodeAuthRequired, "Connectez-vous pour ajouter au panier", nil)
	}
	before := s.current(ctx)

	if productID == "" || quantity <= 0 {
		return failure(gateway.CodeValidation, "Produit ou quantité invalide", before)
	}

	product, err := s.backend.FetchProduct(ctx, productID)
	if err != nil {
		apiErr := gateway.AsAPIError(err)
		return failure(apiErr.Code, apiErr.Message, before)
	}
	if product.SellerID != "" && product.SellerID == s.userID {
		return failure(gateway.CodeOwnProduct, "Vous ne pouvez pas acheter votre propre produit", before)
	}

	// Quantité déjà au panier pour cette variante + demande ≤ stock.
	already := 0
	for _, item := range before.Items {
		if item.Product.ID == productID && item.Size == variant.Size && item.Color == variant.Color {
			already = item.Quantity
			break
		}
	}
	if already+quantity > product.Stock {
		return failure(gateway.CodeOutOfStock,
			fmt.Sprintf("Stock insuffisant pour %s (%d disponible)", product.Name, product.Stock), before)
	}

	updated, err := s.backend.AddItem(ctx, s.token, productID, quantity, variant.Size, variant.Color)
	if err != nil {
		apiErr := gateway.AsAPIError(err)
		if apiErr.Code == gateway.CodeOwnProduct {
			return failure(apiErr.Code, "Vous ne pouvez pas acheter votre propre produit", before)
		}
		return failure(apiErr.Code, apiErr.Message, before)
	}

	log.Printf("🛒 Produit %s ajouté (x%d) pour %s", productID, quantity, s.userID)
	return Result{Success: true, Message: "Produit ajouté au panier", Cart: s.commit(ctx, updated)}
}

// UpdateQuantity change la quantité d'une ligne. quantity == 0 est une
// suppression et exige que l'appelant ait confirmé — jamais de
// suppression silencieuse. quantity > stock est refusé avant tout
// appel réseau, sur la base du snapshot produit de la ligne.
func (s *Service) UpdateQuantity(ctx context.Context, itemID string, quantity int, confirmedRemoval bool) Result {
	if !s.authenticated() {
		return failure(gateway.CodeAuthRequired, "Connectez-vous pour modifier le panier", nil)
	}
	before := s.current(ctx)

	idx := before.FindItem(itemID)
	if idx < 0 {
		return failure(gateway.CodeNotFound, "Article introuvable dans le panier", before)
	}

	if quantity < 0 {
		return failure(gateway.CodeValidation, "Quantité invalide", before)
	}
	if quantity == 0 {
		if !confirmedRemoval {
			return failure(gateway.CodeConfirmRemoval, "Confirmez la suppression de cet article", before)
		}
		return s.RemoveFromCart(ctx, itemID)
	}
	if quantity > before.Items[idx].Product.Stock {
		return failure(gateway.CodeOutOfStock,
			fmt.Sprintf("Quantité limitée à %d pour cet article", before.Items[idx].Product.Stock), before)
	}

	updated, err := s.backend.UpdateItemQuantity(ctx, s.token, itemID, quantity)
	if err != nil {
		apiErr := gateway.AsAPIError(err)
		return failure(apiErr.Code, apiErr.Message, before)
	}
	return Result{Success: true, Cart: s.commit(ctx, updated)}
}

// RemoveFromCart retire exactement une ligne ; en cas d'échec le panier
// reste tel quel (pas de suppression partielle).
func (s *Service) RemoveFromCart(ctx context.Context, itemID string) Result {
	if !s.authenticated() {
		return failure(gateway.CodeAuthRequired, "Connectez-vous pour modifier le panier", nil)
	}
	before := s.current(ctx)

	if before.FindItem(itemID) < 0 {
		return failure(gateway.CodeNotFound, "Article introuvable dans le panier", before)
	}

	updated, err := s.backend.RemoveItem(ctx, s.token, itemID)
	if err != nil {
		apiErr := gateway.AsAPIError(err)
		return failure(apiErr.Code, apiErr.Message, before)
	}

	log.Printf("🧹 Article %s retiré du panier de %s", itemID, s.userID)
	return Result{Success: true, Message: "Article retiré du panier", Cart: s.commit(ctx, updated)}
}

// ClearCart vide tout, atomiquement du point de vue de l'appelant :
// soit le panier est vide après, soit rien n'a changé.
func (s *Service) ClearCart(ctx context.Context) Result {
	if !s.authenticated() {
		return failure(gateway.CodeAuthRequired, "Connectez-vous pour modifier le panier", nil)
	}
	before := s.current(ctx)

	updated, err := s.backend.ClearCart(ctx, s.token)
	if err != nil {
		apiErr := gateway.AsAPIError(err)
		return failure(apiErr.Code, apiErr.Message, before)
	}
	if updated == nil {
		updated = &models.Cart{Items: []models.CartItem{}}
	}

	log.Printf("🧹 Panier vidé pour %s", s.userID)
	return Result{Success: true, Message: "Panier vidé", Cart: s.commit(ctx, updated)}
}
