package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"market-delivery/internal/transport"
)

const (
	authServiceName    = "pricing.AuthService"
	pricingServiceName = "pricing.PricingService"
	orderServiceName   = "pricing.OrderService"
	adminServiceName   = "pricing.AdminService"
)

type AuthService interface {
	IssueToken(context.Context, *TokenRequest) (*TokenResponse, error)
}

type PricingService interface {
	GetTariff(context.Context, *Empty) (*TariffReply, error)
	QuoteDelivery(context.Context, *transport.CalculateDeliveryRequest) (*transport.DeliveryQuoteResponse, error)
	PriceCart(context.Context, *transport.CartRequest) (*transport.CartQuoteResponse, error)
	CheckCoverage(context.Context, *CoverageRequest) (*CoverageReply, error)
	EstimateTime(context.Context, *EstimateTimeRequest) (*EstimateTimeReply, error)
}

type OrderService interface {
	StartRegretWindow(context.Context, *OrderIDRequest) (*transport.RegretResponse, error)
	RegretStatus(context.Context, *OrderIDRequest) (*transport.RegretResponse, error)
	RegretOrder(context.Context, *OrderIDRequest) (*transport.DecisionResponse, error)
	ConfirmOrder(context.Context, *OrderIDRequest) (*transport.DecisionResponse, error)
}

type AdminService interface {
	UpdateTariff(context.Context, *transport.TariffResponse) (*transport.TariffRecordResponse, error)
}

// unary builds a method descriptor for a handler with the usual
// (ctx, *Req) (*Resp, error) shape.
func unary[Req, Resp any](service, method string, call func(*Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(*Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(*Server), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: authServiceName,
	HandlerType: (*AuthService)(nil),
	Methods: []grpc.MethodDesc{
		unary(authServiceName, "IssueToken", (*Server).IssueToken),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "delivery_pricing.proto",
}

var pricingServiceDesc = grpc.ServiceDesc{
	ServiceName: pricingServiceName,
	HandlerType: (*PricingService)(nil),
	Methods: []grpc.MethodDesc{
		unary(pricingServiceName, "GetTariff", (*Server).GetTariff),
		unary(pricingServiceName, "QuoteDelivery", (*Server).QuoteDelivery),
		unary(pricingServiceName, "PriceCart", (*Server).PriceCart),
		unary(pricingServiceName, "CheckCoverage", (*Server).CheckCoverage),
		unary(pricingServiceName, "EstimateTime", (*Server).EstimateTime),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "delivery_pricing.proto",
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderService)(nil),
	Methods: []grpc.MethodDesc{
		unary(orderServiceName, "StartRegretWindow", (*Server).StartRegretWindow),
		unary(orderServiceName, "RegretStatus", (*Server).RegretStatus),
		unary(orderServiceName, "RegretOrder", (*Server).RegretOrder),
		unary(orderServiceName, "ConfirmOrder", (*Server).ConfirmOrder),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "delivery_pricing.proto",
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*AdminService)(nil),
	Methods: []grpc.MethodDesc{
		unary(adminServiceName, "UpdateTariff", (*Server).UpdateTariff),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "delivery_pricing.proto",
}
