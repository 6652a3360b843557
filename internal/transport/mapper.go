package transport

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"market-delivery/internal/domain"
	"market-delivery/internal/pricing"
	"market-delivery/internal/service"
)

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TariffResponse uses the field names the mobile client already parses.
type TariffResponse struct {
	BaseFee float64 `json:"baseFee"`
	PerKm   float64 `json:"perKm"`
	MinFee  float64 `json:"minFee"`
	MaxFee  float64 `json:"maxFee"`
}

type TariffRecordResponse struct {
	Tariff    TariffResponse `json:"tariff"`
	UpdatedBy string         `json:"updated_by"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type CalculateDeliveryRequest struct {
	BusinessLat float64 `json:"businessLat"`
	BusinessLng float64 `json:"businessLng"`
	DeliveryLat float64 `json:"deliveryLat"`
	DeliveryLng float64 `json:"deliveryLng"`
}

// DeliveryQuoteResponse reports DeliveryFee in cents.
type DeliveryQuoteResponse struct {
	Success     bool    `json:"success"`
	DeliveryFee int64   `json:"deliveryFee"`
	DistanceKm  float64 `json:"distanceKm"`
	ETAMinutes  int     `json:"etaMinutes"`
	InCoverage  bool    `json:"inCoverage"`
}

type CartItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type CartRequest struct {
	Items        []CartItem       `json:"items"`
	Subtotal     *decimal.Decimal `json:"subtotal,omitempty"`
	MinimumOrder decimal.Decimal  `json:"minimumOrder"`
	Business     *Location        `json:"business,omitempty"`
	Delivery     *Location        `json:"delivery,omitempty"`
}

type CartQuoteResponse struct {
	ProductsSubtotal    decimal.Decimal `json:"productsSubtotal"`
	Commission          decimal.Decimal `json:"commission"`
	DeliveryFee         decimal.Decimal `json:"deliveryFee"`
	Total               decimal.Decimal `json:"total"`
	MinimumOrder        decimal.Decimal `json:"minimumOrder"`
	Shortfall           decimal.Decimal `json:"shortfall"`
	CanCheckout         bool            `json:"canCheckout"`
	DeliveryFeeFallback bool            `json:"deliveryFeeFallback"`
}

type DecisionResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Reason    *string   `json:"reason,omitempty"`
	StartedAt time.Time `json:"started_at"`
	DecidedAt time.Time `json:"decided_at"`
}

type RegretResponse struct {
	OrderID          string            `json:"order_id"`
	Pending          bool              `json:"pending"`
	RemainingSeconds int64             `json:"remaining_seconds"`
	Deadline         time.Time         `json:"deadline"`
	Decision         *DecisionResponse `json:"decision,omitempty"`
}

func ToDomainLocation(loc Location) domain.Location {
	return domain.Location{Lat: loc.Lat, Lng: loc.Lng}
}

func FromTariff(t domain.Tariff) TariffResponse {
	return TariffResponse{BaseFee: t.BaseFee, PerKm: t.PerKm, MinFee: t.MinFee, MaxFee: t.MaxFee}
}

func ToTariff(t TariffResponse) domain.Tariff {
	return domain.Tariff{BaseFee: t.BaseFee, PerKm: t.PerKm, MinFee: t.MinFee, MaxFee: t.MaxFee}
}

func FromTariffRecord(rec *domain.TariffRecord) TariffRecordResponse {
	return TariffRecordResponse{Tariff: FromTariff(rec.Tariff), UpdatedBy: rec.UpdatedBy, UpdatedAt: rec.UpdatedAt}
}

func (r CalculateDeliveryRequest) Locations() (business, delivery domain.Location) {
	return domain.Location{Lat: r.BusinessLat, Lng: r.BusinessLng}, domain.Location{Lat: r.DeliveryLat, Lng: r.DeliveryLng}
}

func FromDeliveryQuote(q *service.DeliveryQuote) DeliveryQuoteResponse {
	return DeliveryQuoteResponse{
		Success:     true,
		DeliveryFee: q.FeeCents,
		DistanceKm:  math.Round(q.DistanceKm*1000) / 1000,
		ETAMinutes:  q.ETAMinutes,
		InCoverage:  q.InCoverage,
	}
}

// ToCartInput splits a cart request into priced items and the pricing request.
// An explicit subtotal is used only when no items are sent.
func ToCartInput(req CartRequest) ([]pricing.Item, pricing.Request) {
	items := make([]pricing.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, pricing.Item{Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	out := pricing.Request{MinimumOrder: req.MinimumOrder}
	if req.Subtotal != nil {
		out.Subtotal = *req.Subtotal
	}
	if req.Business != nil {
		loc := ToDomainLocation(*req.Business)
		out.Business = &loc
	}
	if req.Delivery != nil {
		loc := ToDomainLocation(*req.Delivery)
		out.Delivery = &loc
	}
	return items, out
}

func FromCartQuote(q pricing.Quote) CartQuoteResponse {
	return CartQuoteResponse{
		ProductsSubtotal:    q.ProductsSubtotal,
		Commission:          q.Commission,
		DeliveryFee:         q.DeliveryFee,
		Total:               q.Total,
		MinimumOrder:        q.MinimumOrder,
		Shortfall:           q.Shortfall,
		CanCheckout:         q.CanCheckout,
		DeliveryFeeFallback: q.FeeFallback,
	}
}

func FromDecision(d *domain.Decision) DecisionResponse {
	return DecisionResponse{
		ID:        d.ID,
		OrderID:   d.OrderID,
		Status:    string(d.Status),
		Reason:    d.Reason,
		StartedAt: d.StartedAt,
		DecidedAt: d.DecidedAt,
	}
}

func FromRegretStatus(st *service.RegretStatus) RegretResponse {
	resp := RegretResponse{
		OrderID:          st.OrderID,
		Pending:          st.Pending,
		RemainingSeconds: int64(math.Ceil(st.Remaining.Seconds())),
		Deadline:         st.Deadline,
	}
	if st.Decision != nil {
		d := FromDecision(st.Decision)
		resp.Decision = &d
	}
	return resp
}
