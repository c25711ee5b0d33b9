package domain

import "time"

// UnboundedStock is the cap applied when a product carries no stock figure.
const UnboundedStock = 999

// Product is the catalog snapshot a caller hands to every cart mutation.
// Stock is nil when the catalog does not track availability.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name,omitempty"`
	Price float64 `json:"price"`
	Stock *int    `json:"stock,omitempty"`
	Image string  `json:"image,omitempty"`
}

// StockCap returns the maximum quantity a cart line of this product may hold.
func (p Product) StockCap() int {
	if p.Stock == nil {
		return UnboundedStock
	}
	return *p.Stock
}

// OutOfStock reports whether the product has a stock figure and it is not positive.
func (p Product) OutOfStock() bool {
	return p.Stock != nil && *p.Stock <= 0
}

type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (i CartItem) Subtotal() float64 {
	return float64(i.Quantity) * i.Product.Price
}

// Record is the persisted form of a cart. ExpiresAt is stored as unix milliseconds.
type Record struct {
	Items     []CartItem `json:"items"`
	ExpiresAt int64      `json:"expiresAt"`
}

func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt < now.UnixMilli()
}

// View is the read projection handed to the UI.
type View struct {
	Items     []CartItem `json:"items"`
	Subtotal  float64    `json:"subtotal"`
	ItemCount int        `json:"itemCount"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
