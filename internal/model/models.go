package model

// All 返回需要 AutoMigrate 的全部模型，顺序按外键依赖排列。
func All() []any {
	return []any{
		&User{},
		&Product{},
		&ProductVariant{},
		&ProductImage{},
		&Order{},
		&OrderItem{},
		&OrderEvent{},
	}
}
