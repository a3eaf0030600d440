package service

import (
	"fmt"

	"color_shop/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// catalogRow 是商品（可选带规格）的查询结果。
// 指定了规格但规格不属于该商品时，商品字段照常返回，规格字段全部为空。
type catalogRow struct {
	ID     uint
	Name   string
	Price  decimal.Decimal
	Status string

	VariantID    *uint
	VariantName  *string
	VariantPrice decimal.NullDecimal // 规格加价
	VariantStock *int
}

func (r catalogRow) variantFound() bool { return r.VariantID != nil }

// lookupCatalog 按商品 ID（及可选规格 ID）读取价格、状态与库存。
func lookupCatalog(tx *gorm.DB, productID uint, variantID *uint) (catalogRow, error) {
	q := tx.Table("products").Where("products.id = ?", productID)
	if variantID != nil {
		q = q.Select(`products.id, products.name, products.price, products.status,
			product_variants.id AS variant_id,
			product_variants.name AS variant_name,
			product_variants.price_adjustment AS variant_price,
			product_variants.stock_quantity AS variant_stock`).
			Joins("LEFT JOIN product_variants ON product_variants.product_id = products.id AND product_variants.id = ?", *variantID)
	} else {
		q = q.Select("products.id, products.name, products.price, products.status")
	}

	var row catalogRow
	res := q.Limit(1).Scan(&row)
	if res.Error != nil {
		return catalogRow{}, fmt.Errorf("lookup product %d: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return catalogRow{}, notFound("Product %d not found", productID)
	}
	return row, nil
}

// reserveStock 条件扣减规格库存：仅当库存已知且充足时才扣，返回是否扣减成功。
// 单条 UPDATE 完成“检查 + 扣减”，并发请求不会同时扣到最后一件。
func reserveStock(tx *gorm.DB, variantID uint, quantity int) (bool, error) {
	res := tx.Model(&model.ProductVariant{}).
		Where("id = ? AND stock_quantity IS NOT NULL AND stock_quantity >= ?", variantID, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return false, fmt.Errorf("reserve stock for variant %d: %w", variantID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// primaryImage 选首图：优先该规格的主图，其次不区分规格的主图，同级按 position 升序。
func primaryImage(db *gorm.DB, productID, variantID *uint) (string, error) {
	if productID == nil {
		return "", nil
	}
	q := db.Model(&model.ProductImage{}).Where("product_id = ? AND is_primary = ?", *productID, true)
	if variantID != nil {
		q = q.Where("(variant_id = ? OR variant_id IS NULL)", *variantID).
			Order(clause.OrderBy{Expression: clause.Expr{
				SQL:                "CASE WHEN variant_id = ? THEN 0 ELSE 1 END",
				Vars:               []interface{}{*variantID},
				WithoutParentheses: true,
			}})
	} else {
		q = q.Where("variant_id IS NULL")
	}

	var urls []string
	if err := q.Order("position ASC").Limit(1).Pluck("url", &urls).Error; err != nil {
		return "", fmt.Errorf("primary image for product %d: %w", *productID, err)
	}
	if len(urls) == 0 {
		return "", nil
	}
	return urls[0], nil
}
