package service

import (
	"context"
	"testing"
	"time"

	"color_shop/internal/auth"
	"color_shop/internal/model"
	"color_shop/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type querySeed struct {
	alice, bob model.User
	admin      auth.Identity
	panel      model.Product
	paint      model.Product
	white5L    model.ProductVariant
}

func seedCatalog(t *testing.T, f *fixture) querySeed {
	t.Helper()
	s := querySeed{
		alice: storetest.CreateUser(t, f.db, "Alice@Example.com", model.RoleUser),
		bob:   storetest.CreateUser(t, f.db, "bob@example.com", model.RoleUser),
		panel: storetest.CreateProduct(t, f.db, "Walnut Panel", "20", "active"),
		paint: storetest.CreateProduct(t, f.db, "Satin White", "15", "active"),
	}
	admin := storetest.CreateUser(t, f.db, "ops@example.com", model.RoleAdmin)
	s.admin = auth.Identity{UserID: admin.ID, Email: admin.Email, Role: model.RoleAdmin}
	s.white5L = storetest.CreateVariant(t, f.db, s.paint.ID, "5L", "5", storetest.IntPtr(100))
	return s
}

func identity(u model.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func (f *fixture) mustOrder(t *testing.T, userID *uint, items ...LineItemInput) *model.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), orderInput(userID, items...))
	require.NoError(t, err)
	return o
}

func TestOrderService_GetOrder_Visibility(t *testing.T) {
	f := newFixture(t)
	s := seedCatalog(t, f)
	order := f.mustOrder(t, &s.alice.ID,
		LineItemInput{ProductID: s.panel.ID, Quantity: 1},
		LineItemInput{ProductID: s.paint.ID, VariantID: &s.white5L.ID, Quantity: 2},
	)

	got, err := f.svc.GetOrder(context.Background(), order.ID, identity(s.alice))
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Walnut Panel", got.Items[0].ProductName)
	assert.Equal(t, "Satin White", got.Items[1].ProductName)

	got, err = f.svc.GetOrder(context.Background(), order.ID, s.admin)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)

	_, err = f.svc.GetOrder(context.Background(), order.ID, identity(s.bob))
	requireKind(t, err, KindNotFound)

	_, err = f.svc.GetOrder(context.Background(), order.ID+100, s.admin)
	requireKind(t, err, KindNotFound)
}

func TestOrderService_GetOrder_GuestOrderHiddenFromUsers(t *testing.T) {
	f := newFixture(t)
	s := seedCatalog(t, f)
	guest := f.mustOrder(t, nil, LineItemInput{ProductID: s.panel.ID, Quantity: 1})

	_, err := f.svc.GetOrder(context.Background(), guest.ID, identity(s.alice))
	requireKind(t, err, KindNotFound)

	got, err := f.svc.GetOrder(context.Background(), guest.ID, s.admin)
	require.NoError(t, err)
	assert.Nil(t, got.UserID)
}

func TestOrderService_GetMyOrders(t *testing.T) {
	f := newFixture(t)
	s := seedCatalog(t, f)
	storetest.CreateImage(t, f.db, s.paint.ID, nil, "https://cdn.example.com/white.jpg", true, 1)
	storetest.CreateImage(t, f.db, s.paint.ID, &s.white5L.ID, "https://cdn.example.com/white-5l-b.jpg", true, 2)
	storetest.CreateImage(t, f.db, s.paint.ID, &s.white5L.ID, "https://cdn.example.com/white-5l-a.jpg", true, 0)
	storetest.CreateImage(t, f.db, s.paint.ID, &s.white5L.ID, "https://cdn.example.com/white-5l-side.jpg", false, 0)

	first := f.mustOrder(t, &s.alice.ID, LineItemInput{ProductID: s.panel.ID, Quantity: 1})
	second := f.mustOrder(t, &s.alice.ID,
		LineItemInput{ProductID: s.paint.ID, VariantID: &s.white5L.ID, Quantity: 3},
		LineItemInput{ProductID: s.panel.ID, Quantity: 1},
	)
	third := f.mustOrder(t, &s.alice.ID, LineItemInput{ProductID: s.paint.ID, Quantity: 4})
	f.mustOrder(t, &s.bob.ID, LineItemInput{ProductID: s.panel.ID, Quantity: 1})

	list, info, err := f.svc.GetMyOrders(context.Background(), identity(s.alice), NewPage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, PageInfo{Total: 3, Page: 1, Pages: 2, HasNext: true, HasPrev: false}, info)
	require.Len(t, list, 2)

	assert.Equal(t, third.ID, list[0].ID, "newest first")
	assert.Equal(t, 1, list[0].ItemCount)
	require.NotNil(t, list[0].FirstItem)
	assert.Equal(t, "https://cdn.example.com/white.jpg", list[0].FirstItem.Image)
	assert.Equal(t, 4, list[0].FirstItem.Quantity)

	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, 2, list[1].ItemCount)
	require.NotNil(t, list[1].FirstItem)
	assert.Equal(t, "Satin White", list[1].FirstItem.Name)
	assert.Equal(t, 3, list[1].FirstItem.Quantity)
	assert.Equal(t, "https://cdn.example.com/white-5l-a.jpg", list[1].FirstItem.Image, "variant primary image wins")
	assert.Empty(t, list[1].Items)

	list, info, err = f.svc.GetMyOrders(context.Background(), identity(s.alice), NewPage(2, 2))
	require.NoError(t, err)
	assert.Equal(t, PageInfo{Total: 3, Page: 2, Pages: 2, HasNext: false, HasPrev: true}, info)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Empty(t, list[0].FirstItem.Image, "product without images")

	list, info, err = f.svc.GetMyOrders(context.Background(), identity(s.bob), NewPage(1, 10))
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(1), info.Total)
}

func TestOrderService_GetMyOrders_Empty(t *testing.T) {
	f := newFixture(t)
	s := seedCatalog(t, f)

	list, info, err := f.svc.GetMyOrders(context.Background(), identity(s.alice), NewPage(1, 10))
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, PageInfo{Page: 1}, info)
}

func TestOrderService_GetOrders_FiltersAndSearch(t *testing.T) {
	f := newFixture(t)
	s := seedCatalog(t, f)

	a1 := f.mustOrder(t, &s.alice.ID, LineItemInput{ProductID: s.panel.ID, Quantity: 1})  // 20 + 2 + 10 = 32
	a2 := f.mustOrder(t, &s.alice.ID, LineItemInput{ProductID: s.panel.ID, Quantity: 10}) // 200 + 20 = 220
	b1 := f.mustOrder(t, &s.bob.ID, LineItemInput{ProductID: s.paint.ID, Quantity: 2})    // 30 + 3 + 10 = 43
	guest := f.mustOrder(t, nil, LineItemInput{ProductID: s.paint.ID, Quantity: 1})

	_, err := f.svc.UpdateOrderStatus(context.Background(), a2.ID, model.OrderStatusShipped, s.admin)
	require.NoError(t, err)
	_, err = f.svc.UpdatePaymentStatus(context.Background(), b1.ID, model.PaymentStatusPaid, s.admin)
	require.NoError(t, err)

	ids := func(list []OrderSummary) []uint {
		out := make([]uint, 0, len(list))
		for _, o := range list {
			out = append(out, o.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter OrderFilter
		want   []uint
	}{
		{"all newest first", OrderFilter{}, []uint{guest.ID, b1.ID, a2.ID, a1.ID}},
		{"oldest", OrderFilter{Sort: "oldest"}, []uint{a1.ID, a2.ID, b1.ID, guest.ID}},
		{"total asc", OrderFilter{Sort: "total_asc"}, []uint{guest.ID, a1.ID, b1.ID, a2.ID}},
		{"total desc", OrderFilter{Sort: "total_desc"}, []uint{a2.ID, b1.ID, a1.ID, guest.ID}},
		{"unknown sort falls back to newest", OrderFilter{Sort: "bogus"}, []uint{guest.ID, b1.ID, a2.ID, a1.ID}},
		{"status", OrderFilter{Status: "shipped"}, []uint{a2.ID}},
		{"payment status", OrderFilter{PaymentStatus: "paid"}, []uint{b1.ID}},
		{"status and payment", OrderFilter{Status: "pending", PaymentStatus: "pending"}, []uint{guest.ID, a1.ID}},
		{"search email case insensitive", OrderFilter{Search: "ALICE@example"}, []uint{a2.ID, a1.ID}},
		{"search order number", OrderFilter{Search: b1.OrderNumber}, []uint{b1.ID}},
		{"search no match", OrderFilter{Search: "nobody"}, []uint{}},
		{"search underscore is literal", OrderFilter{Search: "_"}, []uint{}},
		{"search percent is literal", OrderFilter{Search: "%"}, []uint{}},
		{"search backslash is literal", OrderFilter{Search: `\`}, []uint{}},
		{"search wildcard inside term", OrderFilter{Search: "a_i"}, []uint{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, info, err := f.svc.GetOrders(context.Background(), tt.filter, NewPage(1, 10))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(list))
			assert.Equal(t, int64(len(tt.want)), info.Total)
		})
	}
}

func TestOrderService_GetOrders_SearchLiteralUnderscore(t *testing.T) {
	f := newFixture(t)
	s := seedCatalog(t, f)
	shop := storetest.CreateUser(t, f.db, "paint_shop@example.com", model.RoleUser)

	mine := f.mustOrder(t, &shop.ID, LineItemInput{ProductID: s.paint.ID, Quantity: 1})
	f.mustOrder(t, &s.alice.ID, LineItemInput{ProductID: s.paint.ID, Quantity: 1})

	list, info, err := f.svc.GetOrders(context.Background(), OrderFilter{Search: "T_S"}, NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)
	assert.Equal(t, int64(1), info.Total)
}

func TestOrderService_GetOrders_Summary(t *testing.T) {
	f := newFixture(t)
	s := seedCatalog(t, f)
	f.mustOrder(t, &s.alice.ID,
		LineItemInput{ProductID: s.panel.ID, Quantity: 2},
		LineItemInput{ProductID: s.paint.ID, Quantity: 1},
	)
	f.mustOrder(t, nil, LineItemInput{ProductID: s.paint.ID, Quantity: 1})

	list, info, err := f.svc.GetOrders(context.Background(), OrderFilter{Sort: "oldest"}, NewPage(1, 1))
	require.NoError(t, err)
	assert.Equal(t, PageInfo{Total: 2, Page: 1, Pages: 2, HasNext: true}, info)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice@Example.com", list[0].UserEmail)
	assert.Equal(t, 2, list[0].ItemCount)
	assert.Equal(t, "Walnut Panel", list[0].FirstItem.Name)
	assert.Nil(t, list[0].User)

	list, _, err = f.svc.GetOrders(context.Background(), OrderFilter{Sort: "oldest"}, NewPage(2, 1))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].UserEmail, "guest order")
}

func TestOrderService_ExportOrders(t *testing.T) {
	f := newFixture(t)
	s := seedCatalog(t, f)
	storetest.CreateImage(t, f.db, s.panel.ID, nil, "https://cdn.example.com/walnut.jpg", true, 0)
	for i := 0; i < 3; i++ {
		f.mustOrder(t, &s.alice.ID, LineItemInput{ProductID: s.panel.ID, Quantity: i + 1})
	}
	f.mustOrder(t, &s.bob.ID, LineItemInput{ProductID: s.panel.ID, Quantity: 1})

	rows, err := f.svc.ExportOrders(context.Background(), OrderFilter{Search: "alice"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, "Alice@Example.com", r.UserEmail)
		assert.Empty(t, r.FirstItem.Image, "export skips image lookup")
	}
	assert.Equal(t, 3, rows[0].FirstItem.Quantity)
}

func TestOrderService_ListOrderEvents(t *testing.T) {
	f := newFixture(t)
	s := seedCatalog(t, f)
	order := f.mustOrder(t, &s.alice.ID, LineItemInput{ProductID: s.panel.ID, Quantity: 1})

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	records := []model.OrderEvent{
		{EventID: "evt-2", Type: model.OrderEventStatusChanged, OrderID: order.ID, OrderNumber: order.OrderNumber, Status: model.OrderStatusShipped, OccurredAt: base.Add(time.Hour)},
		{EventID: "evt-1", Type: model.OrderEventCreated, OrderID: order.ID, OrderNumber: order.OrderNumber, Status: model.OrderStatusPending, OccurredAt: base},
		{EventID: "evt-other", Type: model.OrderEventCreated, OrderID: order.ID + 50, OrderNumber: "ORD-x", OccurredAt: base},
	}
	require.NoError(t, f.db.Create(&records).Error)

	events, err := f.svc.ListOrderEvents(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-1", events[0].EventID)
	assert.Equal(t, "evt-2", events[1].EventID)

	_, err = f.svc.ListOrderEvents(context.Background(), order.ID+999)
	requireKind(t, err, KindNotFound)
}

func TestNewPage(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: 10}, NewPage(0, 0))
	assert.Equal(t, Page{Page: 1, Limit: 10}, NewPage(-2, -5))
	assert.Equal(t, Page{Page: 3, Limit: 100}, NewPage(3, 500))
	assert.Equal(t, 40, NewPage(3, 20).offset())
}
