package models

// ProductSnapshot fige les infos produit au moment de l'ajout au panier.
// Le prix et le stock affichés viennent de là, mais le backend reste la
// source de vérité à chaque mutation.
type ProductSnapshot struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url,omitempty"`
	Stock    int     `json:"stock"`
}

// CartItem est une ligne de panier. L'ID identifie la ligne, pas le produit :
// le même produit en deux tailles différentes fait deux lignes.
type CartItem struct {
	ID       string          `json:"id"`
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size,omitempty"`
	Color    string          `json:"color,omitempty"`
}

type Cart struct {
	Items []CartItem `json:"items"`
}

// Total est toujours recalculé, jamais stocké à part.
func (c *Cart) Total() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Product.Price * float64(item.Quantity)
	}
	return total
}

func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Clone renvoie une copie profonde, utilisée pour garder l'état
// précédent intact en cas d'échec d'une mutation.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := &Cart{Items: make([]CartItem, len(c.Items))}
	copy(out.Items, c.Items)
	return out
}

// FindItem retourne l'index de la ligne, ou -1.
func (c *Cart) FindItem(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}
