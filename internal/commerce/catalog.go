// Package commerce backs the store lookups exposed to the model through
// function calling.
package commerce

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"type:varchar(191);index;not null" json:"name"`
	SKU           string    `gorm:"type:varchar(64);uniqueIndex" json:"sku"`
	Category      string    `gorm:"type:varchar(191);index" json:"category"`
	Price         float64   `json:"price"`
	Currency      string    `gorm:"type:varchar(8)" json:"currency"`
	StockStatus   string    `gorm:"type:varchar(32)" json:"stock_status"` // instock / outofstock / onbackorder
	StockQuantity *int      `json:"stock_quantity,omitempty"`
	Permalink     string    `gorm:"type:varchar(255)" json:"permalink"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

func (Product) TableName() string { return "products" }

type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

const searchLimit = 5

// FindProduct searches by name, SKU, or category. Implements
// ai.ToolExecutor.
func (c *Catalog) FindProduct(ctx context.Context, query string) (any, error) {
	var products []Product
	like := "%" + query + "%"
	err := c.db.WithContext(ctx).
		Where("name LIKE ? OR sku = ? OR category LIKE ?", like, query, like).
		Limit(searchLimit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return map[string]any{"results": []Product{}, "message": "no matching products found"}, nil
	}
	return map[string]any{"results": products}, nil
}

// CheckStock reports stock status for one product. Implements
// ai.ToolExecutor.
func (c *Catalog) CheckStock(ctx context.Context, productID int64) (any, error) {
	var p Product
	err := c.db.WithContext(ctx).First(&p, "id = ?", productID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return map[string]string{"error": "product not found"}, nil
		}
		return nil, err
	}
	out := map[string]any{
		"product_id":   p.ID,
		"name":         p.Name,
		"stock_status": p.StockStatus,
	}
	if p.StockQuantity != nil {
		out["stock_quantity"] = *p.StockQuantity
	}
	return out, nil
}
