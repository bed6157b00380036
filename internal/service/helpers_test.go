package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/event"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository/memory"
)

var (
	admin    = domain.Actor{UserID: "admin-1", Name: "Ana Admin", Role: domain.RoleAdmin}
	owner    = domain.Actor{UserID: "owner-1", Name: "Olive Owner", Role: domain.RoleOwner}
	staff    = domain.Actor{UserID: "staff-1", Name: "Sam Staff", Role: domain.RoleStaff}
	clerk    = domain.Actor{UserID: "clerk-1", Name: "Cleo Clerk", Role: domain.RoleInventoryClerk}
	customer = domain.Actor{UserID: "cust-1", Name: "Carla", Role: domain.RoleCustomer}
	stranger = domain.Actor{UserID: "cust-2", Name: "Dino", Role: domain.RoleCustomer}
)

const (
	oakVariant    = "one-size_natural-oak"
	walnutVariant = "large_walnut"
)

type fixture struct {
	stocks    *memory.StockRepository
	cartRepo  *memory.CartRepository
	orderRepo repository.OrderRepository
	pub       *event.RecordingPublisher

	ledger   *Ledger
	taxonomy *TaxonomyService
	catalog  *CatalogService
	carts    *CartService
	planner  *AllocationPlanner
	orders   *OrderService
	refunds  *RefundService
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithOrders(t, memory.NewOrderRepository())
}

func newFixtureWithOrders(t *testing.T, orderRepo repository.OrderRepository) *fixture {
	t.Helper()
	logger := newTestLogger()
	pub := event.NewRecordingPublisher()
	producer := event.NewProducer(pub, logger, 2)

	f := &fixture{
		stocks:    memory.NewStockRepository(),
		cartRepo:  memory.NewCartRepository(),
		orderRepo: orderRepo,
		pub:       pub,
	}
	f.ledger = NewLedger(f.stocks, producer, logger)
	f.taxonomy = NewTaxonomyService(memory.NewTaxonomyRepository(), logger)
	f.catalog = NewCatalogService(memory.NewProductRepository(), f.taxonomy, f.ledger, logger)
	f.carts = NewCartService(f.cartRepo, f.catalog, f.ledger, logger)
	f.planner = NewAllocationPlanner(f.ledger, logger)
	f.orders = NewOrderService(orderRepo, f.cartRepo, f.catalog, f.planner, f.ledger, memory.NewTransactor(), producer, logger)
	f.refunds = NewRefundService(orderRepo, producer, logger)
	return f
}

func (f *fixture) seedTaxonomy(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for kind, names := range map[domain.TaxonomyKind][]string{
		domain.TaxonomySubCategory: {"Dining Chairs"},
		domain.TaxonomyMaterial:    {"Solid Wood"},
		domain.TaxonomyColor:       {"Natural Oak", "Walnut"},
	} {
		for _, name := range names {
			_, err := f.taxonomy.Add(ctx, admin, kind, name)
			require.NoError(t, err)
		}
	}
}

func strPtr(s string) *string { return &s }

func chairInput() ProductInput {
	return ProductInput{
		Name:        "Lorenzo Dining Chair",
		BasePrice:   250000,
		Category:    domain.CategoryChairs,
		SubCategory: "Dining Chairs",
		Material:    "Solid Wood",
		Dimensions:  domain.Dimensions{Length: 45, Width: 50, Height: 90, Unit: "cm"},
		Images:      []string{"chair.jpg"},
		Variants: []VariantInput{
			{Color: "Natural Oak", Price: 300000},
			{Size: strPtr("Large"), Color: "Walnut", Price: 350000},
		},
	}
}

// createChair seeds the taxonomy and a two-variant chair.
func (f *fixture) createChair(t *testing.T) *domain.Product {
	t.Helper()
	f.seedTaxonomy(t)
	p, err := f.catalog.CreateProduct(context.Background(), admin, chairInput())
	require.NoError(t, err)
	return p
}

func (f *fixture) setStock(t *testing.T, productID int64, variantID string, w domain.Warehouse, qty, reserved int) {
	t.Helper()
	key := domain.StockKey{ProductID: productID, VariantID: variantID, Warehouse: w}
	_, err := f.ledger.AdjustStock(context.Background(), admin, key, qty, reserved, "")
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, productID int64, variantID string, w domain.Warehouse) *domain.WarehouseStock {
	t.Helper()
	s, err := f.ledger.GetStock(context.Background(), domain.StockKey{ProductID: productID, VariantID: variantID, Warehouse: w})
	require.NoError(t, err)
	return s
}

func pickupOrder(lines ...OrderLineInput) CreateOrderInput {
	return CreateOrderInput{
		Items:             lines,
		FulfillmentMethod: domain.FulfillmentPickup,
		PaymentMethod:     "gcash",
	}
}

func line(productID int64, variantID string, qty int) OrderLineInput {
	return OrderLineInput{ProductID: productID, VariantID: variantID, Quantity: qty}
}
