package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatusActive 只有 active 商品可下单。
const ProductStatusActive = "active"

// Product 商品（色卡/板材），订单侧只读 Price 与 Status。
type Product struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name   string          `gorm:"size:255;not null" json:"name"`
	Price  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Status string          `gorm:"size:32;not null;default:active;index" json:"status"`

	Variants []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	Images   []ProductImage   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

func (Product) TableName() string { return "products" }

// ProductVariant 规格（尺寸/饰面），带加价与库存。
// StockQuantity 为空表示库存未知，不可按规格下单。
type ProductVariant struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ProductID       uint            `gorm:"not null;index" json:"productId"`
	Name            string          `gorm:"size:255;not null" json:"name"`
	PriceAdjustment decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"priceAdjustment"`
	StockQuantity   *int            `json:"stockQuantity"`
}

func (ProductVariant) TableName() string { return "product_variants" }

// ProductImage 商品图；VariantID 为空表示不区分规格。
type ProductImage struct {
	ID        uint  `gorm:"primarykey" json:"id"`
	ProductID uint  `gorm:"not null;index" json:"productId"`
	VariantID *uint `gorm:"index" json:"variantId"`

	URL       string `gorm:"size:512;not null" json:"url"`
	IsPrimary bool   `gorm:"not null;default:false" json:"isPrimary"`
	Position  int    `gorm:"not null;default:0" json:"position"`
}

func (ProductImage) TableName() string { return "product_images" }
