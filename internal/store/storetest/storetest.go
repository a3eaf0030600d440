// Package storetest 为各包测试提供内存 SQLite 与种子数据。
package storetest

import (
	"fmt"
	"testing"

	"color_shop/internal/model"
	"color_shop/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB 每个测试一个独立的内存库，已完成建表。
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.Open("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func IntPtr(n int) *int { return &n }

func UintPtr(n uint) *uint { return &n }

func CreateUser(t testing.TB, db *gorm.DB, email, role string) model.User {
	t.Helper()
	u := model.User{Email: email, Name: email, Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func CreateProduct(t testing.TB, db *gorm.DB, name, price, status string) model.Product {
	t.Helper()
	p := model.Product{Name: name, Price: decimal.RequireFromString(price), Status: status}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func CreateVariant(t testing.TB, db *gorm.DB, productID uint, name, adjustment string, stock *int) model.ProductVariant {
	t.Helper()
	v := model.ProductVariant{
		ProductID:       productID,
		Name:            name,
		PriceAdjustment: decimal.RequireFromString(adjustment),
		StockQuantity:   stock,
	}
	require.NoError(t, db.Create(&v).Error)
	return v
}

func CreateImage(t testing.TB, db *gorm.DB, productID uint, variantID *uint, url string, primary bool, position int) model.ProductImage {
	t.Helper()
	img := model.ProductImage{ProductID: productID, VariantID: variantID, URL: url, IsPrimary: primary, Position: position}
	require.NoError(t, db.Create(&img).Error)
	return img
}

// Stock 读取规格当前库存。
func Stock(t testing.TB, db *gorm.DB, variantID uint) *int {
	t.Helper()
	var v model.ProductVariant
	require.NoError(t, db.First(&v, variantID).Error)
	return v.StockQuantity
}

// Count 统计某模型的行数。
func Count(t testing.TB, db *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}
