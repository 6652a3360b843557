// Package pricing computes the customer-facing cart total.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"market-delivery/internal/domain"
	"market-delivery/internal/logger"
)

var (
	// DefaultCommissionRate is the platform markup on the product subtotal.
	DefaultCommissionRate = decimal.RequireFromString("0.15")
	// FallbackDeliveryFee is charged when the fee cannot be quoted.
	FallbackDeliveryFee = decimal.NewFromInt(25)
)

// FeeQuoter prices delivery between a business and a delivery address,
// in currency units.
type FeeQuoter interface {
	QuoteDeliveryFee(ctx context.Context, business, delivery domain.Location) (float64, error)
}

// Item is one cart line. Quantity may be fractional for goods sold by weight.
type Item struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
}

func Subtotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(it.Quantity))
	}
	return total
}

type Request struct {
	Subtotal     decimal.Decimal
	MinimumOrder decimal.Decimal
	Business     *domain.Location
	Delivery     *domain.Location
}

// Quote satisfies Total = ProductsSubtotal + Commission + DeliveryFee.
type Quote struct {
	ProductsSubtotal decimal.Decimal
	Commission       decimal.Decimal
	DeliveryFee      decimal.Decimal
	Total            decimal.Decimal
	MinimumOrder     decimal.Decimal
	Shortfall        decimal.Decimal
	CanCheckout      bool
	FeeFallback      bool
}

type Option func(*Calculator)

func WithCommissionRate(rate decimal.Decimal) Option {
	return func(c *Calculator) {
		c.commissionRate = rate
	}
}

func WithFallbackFee(fee decimal.Decimal) Option {
	return func(c *Calculator) {
		c.fallbackFee = fee
	}
}

type Calculator struct {
	fees           FeeQuoter
	log            *logger.Logger
	commissionRate decimal.Decimal
	fallbackFee    decimal.Decimal
}

func NewCalculator(fees FeeQuoter, log *logger.Logger, opts ...Option) *Calculator {
	if log == nil {
		log = logger.Nop()
	}
	c := &Calculator{
		fees:           fees,
		log:            log,
		commissionRate: DefaultCommissionRate,
		fallbackFee:    FallbackDeliveryFee,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calculator) Price(ctx context.Context, req Request) (Quote, error) {
	if req.Subtotal.IsNegative() {
		return Quote{}, fmt.Errorf("subtotal: %w", domain.ErrInvalid)
	}
	if req.MinimumOrder.IsNegative() {
		return Quote{}, fmt.Errorf("minimum order: %w", domain.ErrInvalid)
	}

	fee, fallback := c.deliveryFee(ctx, req.Business, req.Delivery)
	commission := req.Subtotal.Mul(c.commissionRate)

	q := Quote{
		ProductsSubtotal: req.Subtotal,
		Commission:       commission,
		DeliveryFee:      fee,
		Total:            req.Subtotal.Add(commission).Add(fee),
		MinimumOrder:     req.MinimumOrder,
		Shortfall:        decimal.Zero,
		CanCheckout:      req.Subtotal.GreaterThanOrEqual(req.MinimumOrder),
		FeeFallback:      fallback,
	}
	if !q.CanCheckout {
		q.Shortfall = req.MinimumOrder.Sub(req.Subtotal)
	}
	return q, nil
}

func (c *Calculator) deliveryFee(ctx context.Context, business, delivery *domain.Location) (decimal.Decimal, bool) {
	if business == nil || delivery == nil || c.fees == nil {
		return c.fallbackFee, true
	}
	fee, err := c.fees.QuoteDeliveryFee(ctx, *business, *delivery)
	if err != nil {
		c.log.Warn("delivery fee quote failed, charging fallback %s: %v", c.fallbackFee.String(), err)
		return c.fallbackFee, true
	}
	return decimal.NewFromFloat(fee).Round(2), false
}
