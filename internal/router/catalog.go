package router

import (
	"errors"
	"net/http"
	"strings"

	"color_shop/internal/auth"
	"color_shop/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// listProducts 商品列表（含规格与图片）。
func listProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.WithContext(c.Request.Context()).
			Preload("Variants", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
			Preload("Images", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC, id ASC") }).
			Order("id ASC")
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			q = q.Where("status = ?", status)
		}

		var list []model.Product
		if err := q.Find(&list).Error; err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, list)
	}
}

type variantRequest struct {
	Name            string          `json:"name" binding:"required,max=255"`
	PriceAdjustment decimal.Decimal `json:"priceAdjustment"`
	StockQuantity   *int            `json:"stockQuantity" binding:"omitempty,min=0"`
}

type imageRequest struct {
	URL       string `json:"url" binding:"required,max=512"`
	IsPrimary bool   `json:"isPrimary"`
	Position  int    `json:"position" binding:"min=0"`
	// VariantIndex 指向同一请求里 variants 的下标，为空表示不区分规格
	VariantIndex *int `json:"variantIndex" binding:"omitempty,min=0"`
}

type productRequest struct {
	Name     string           `json:"name" binding:"required,max=255"`
	Price    decimal.Decimal  `json:"price"`
	Status   string           `json:"status" binding:"omitempty,oneof=active inactive draft"`
	Variants []variantRequest `json:"variants" binding:"dive"`
	Images   []imageRequest   `json:"images" binding:"dive"`
}

// createProduct 管理员创建商品，规格与图片在同一事务内写入。
func createProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req productRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, bindError(err))
			return
		}
		if !req.Price.IsPositive() {
			fail(c, http.StatusBadRequest, "price must be greater than 0")
			return
		}
		for _, img := range req.Images {
			if img.VariantIndex != nil && *img.VariantIndex >= len(req.Variants) {
				fail(c, http.StatusBadRequest, "images.variantIndex is out of range")
				return
			}
		}
		if req.Status == "" {
			req.Status = model.ProductStatusActive
		}

		p := model.Product{Name: req.Name, Price: req.Price.Round(2), Status: req.Status}
		for _, v := range req.Variants {
			p.Variants = append(p.Variants, model.ProductVariant{
				Name:            v.Name,
				PriceAdjustment: v.PriceAdjustment.Round(2),
				StockQuantity:   v.StockQuantity,
			})
		}

		err := db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			for _, img := range req.Images {
				row := model.ProductImage{
					ProductID: p.ID,
					URL:       img.URL,
					IsPrimary: img.IsPrimary,
					Position:  img.Position,
				}
				if img.VariantIndex != nil {
					vid := p.Variants[*img.VariantIndex].ID
					row.VariantID = &vid
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				p.Images = append(p.Images, row)
			}
			return nil
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, p)
	}
}

// createUser 管理员登记用户并签发令牌，令牌的 sub 即用户 ID。
func createUser(db *gorm.DB, signer *auth.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required,email,max=255"`
			Name  string `json:"name" binding:"max=255"`
			Role  string `json:"role" binding:"omitempty,oneof=user admin"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, bindError(err))
			return
		}
		if req.Role == "" {
			req.Role = model.RoleUser
		}

		u := model.User{Email: strings.ToLower(strings.TrimSpace(req.Email)), Name: req.Name, Role: req.Role}
		if err := db.WithContext(c.Request.Context()).Create(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				fail(c, http.StatusConflict, "Email already registered")
				return
			}
			respondError(c, err)
			return
		}

		token, err := signer.Issue(auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": u, "token": token})
	}
}
