package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

// AddLineInput identifies the variant and quantity to add to a cart.
type AddLineInput struct {
	ProductID int64
	VariantID string
	Quantity  int
}

// QuantityUpdate is the outcome of UpdateQuantity. When Updated is false
// the cart was left as it was and Available is the current ceiling.
type QuantityUpdate struct {
	Cart      *domain.Cart
	Updated   bool
	Available int
}

// CartService validates cart edits against the catalog and the ledger.
// Its stock checks are advisory: it never reserves stock.
type CartService struct {
	carts   repository.CartRepository
	catalog *CatalogService
	ledger  *Ledger
	logger  *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(carts repository.CartRepository, catalog *CatalogService, ledger *Ledger, logger *slog.Logger) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		ledger:  ledger,
		logger:  logger,
	}
}

func validateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return domain.NewValidationError("owner", "is required")
	}
	return nil
}

// GetCart returns the cart of owner. A missing cart is empty.
func (s *CartService) GetCart(ctx context.Context, owner string) (*domain.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	cart, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddLine adds quantity units of a variant, merging into an existing line
// with the same line key. The unit price is snapshotted on first add.
func (s *CartService) AddLine(ctx context.Context, owner string, in AddLineInput) (*domain.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if err := validateQuantity(in.Quantity); err != nil {
		return nil, err
	}

	product, variant, err := s.catalog.sellableVariant(ctx, in.ProductID, in.VariantID)
	if err != nil {
		return nil, err
	}
	ref := product.Ref(variant.ID)
	available, err := s.ledger.Available(ctx, ref, nil)
	if err != nil {
		return nil, err
	}

	key := domain.LineKey(product.ID, variant.ID, variant.Color, variant.SizeLabel())
	cart, err := s.carts.Update(ctx, owner, func(c *domain.Cart) error {
		idx := c.FindLine(key)
		candidate := in.Quantity
		if idx >= 0 {
			candidate += c.Items[idx].Quantity
		}
		if idx < 0 && len(c.Items) >= domain.MaxCartLines {
			return domain.ErrCartFull
		}
		if candidate > available {
			return &domain.InsufficientStockError{
				ProductID: ref.ProductID,
				VariantID: ref.VariantID,
				Requested: candidate,
				Available: available,
			}
		}

		if idx >= 0 {
			c.Items[idx].Quantity = candidate
			return nil
		}
		item := domain.CartItem{
			LineKey:   key,
			ProductID: product.ID,
			VariantID: variant.ID,
			Name:      product.Name,
			Color:     variant.Color,
			Size:      variant.SizeLabel(),
			Quantity:  candidate,
			UnitPrice: product.PriceOf(variant),
		}
		if len(product.Images) > 0 {
			item.ImageURL = product.Images[0]
		}
		c.Items = append(c.Items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "cart line added",
		slog.String("owner", owner),
		slog.String("line_key", key),
		slog.Int("quantity", in.Quantity),
	)
	return cart, nil
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line. A quantity above current availability leaves the cart
// untouched and reports Updated=false with the available ceiling.
func (s *CartService) UpdateQuantity(ctx context.Context, owner, lineKey string, quantity int) (*QuantityUpdate, error) {
	if quantity <= 0 {
		cart, err := s.RemoveLine(ctx, owner, lineKey)
		if err != nil {
			return nil, err
		}
		return &QuantityUpdate{Cart: cart, Updated: true}, nil
	}

	current, err := s.GetCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	idx := current.FindLine(lineKey)
	if idx < 0 {
		return nil, apperrors.NotFound("cart line", lineKey)
	}
	available, err := s.ledger.Available(ctx, current.Items[idx].Ref(), nil)
	if err != nil {
		return nil, err
	}
	if quantity > available {
		return &QuantityUpdate{Cart: current, Updated: false, Available: available}, nil
	}

	cart, err := s.carts.Update(ctx, owner, func(c *domain.Cart) error {
		i := c.FindLine(lineKey)
		if i < 0 {
			return apperrors.NotFound("cart line", lineKey)
		}
		c.Items[i].Quantity = quantity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &QuantityUpdate{Cart: cart, Updated: true, Available: available}, nil
}

// RemoveLine drops a line from the cart.
func (s *CartService) RemoveLine(ctx context.Context, owner, lineKey string) (*domain.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	return s.carts.Update(ctx, owner, func(c *domain.Cart) error {
		if !c.RemoveLine(lineKey) {
			return apperrors.NotFound("cart line", lineKey)
		}
		return nil
	})
}

// ApplyDiscount sets the cart level discount in centavos. Only actors
// allowed to apply discounts may set a positive amount; anyone may clear it.
func (s *CartService) ApplyDiscount(ctx context.Context, actor domain.Actor, owner string, amount int64) (*domain.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if amount > 0 {
		if err := actor.Require(domain.PermApplyDiscounts); err != nil {
			return nil, err
		}
	}
	if amount < 0 {
		return nil, domain.NewValidationError("discount", "must not be negative")
	}
	return s.carts.Update(ctx, owner, func(c *domain.Cart) error {
		c.Discount = amount
		return nil
	})
}

// ClearCart removes the stored cart.
func (s *CartService) ClearCart(ctx context.Context, owner string) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	if err := s.carts.Delete(ctx, owner); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// CartSummary carries the derived totals shown next to a cart.
type CartSummary struct {
	Subtotal  int64     `json:"subtotal"`
	ItemCount int       `json:"item_count"`
	Discount  int64     `json:"discount"`
	Total     int64     `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summarize computes the totals of c.
func Summarize(c *domain.Cart) CartSummary {
	return CartSummary{
		Subtotal:  c.Subtotal(),
		ItemCount: c.ItemCount(),
		Discount:  c.Discount,
		Total:     c.Total(),
		UpdatedAt: c.UpdatedAt,
	}
}
