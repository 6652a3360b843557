package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"market-delivery/internal/auth"
	"market-delivery/internal/domain"
	"market-delivery/internal/service"
	"market-delivery/internal/transport"
)

// publicMethods skip token checks entirely.
var publicMethods = map[string]bool{
	"/" + authServiceName + "/IssueToken":       true,
	"/" + pricingServiceName + "/GetTariff":     true,
	"/" + pricingServiceName + "/CheckCoverage": true,
	"/" + pricingServiceName + "/EstimateTime":  true,
}

type Server struct {
	svc  *service.Service
	auth *auth.Authenticator
}

func NewServer(svc *service.Service, authenticator *auth.Authenticator, opts ...grpc.ServerOption) *grpc.Server {
	server := &Server{svc: svc, auth: authenticator}
	opts = append(opts, grpc.UnaryInterceptor(server.authInterceptor()))
	grpcServer := grpc.NewServer(opts...)

	grpcServer.RegisterService(&authServiceDesc, server)
	grpcServer.RegisterService(&pricingServiceDesc, server)
	grpcServer.RegisterService(&orderServiceDesc, server)
	grpcServer.RegisterService(&adminServiceDesc, server)

	return grpcServer
}

func (s *Server) authInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		authHeader := ""
		if values := md.Get("authorization"); len(values) > 0 {
			authHeader = values[0]
		}
		claims, err := s.auth.Authorize(authHeader)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		ctx = auth.ContextWithClaims(ctx, claims)
		return handler(ctx, req)
	}
}

func (s *Server) IssueToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	token, exp, err := s.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &TokenResponse{Token: token, ExpiresAt: exp.Format(time.RFC3339)}, nil
}

func (s *Server) GetTariff(ctx context.Context, _ *Empty) (*TariffReply, error) {
	return &TariffReply{Success: true, Config: transport.FromTariff(s.svc.GetTariff(ctx))}, nil
}

func (s *Server) QuoteDelivery(ctx context.Context, req *transport.CalculateDeliveryRequest) (*transport.DeliveryQuoteResponse, error) {
	if _, err := requireRole(ctx, domain.RoleCustomer, domain.RoleBusiness); err != nil {
		return nil, err
	}
	business, delivery := req.Locations()
	quote, err := s.svc.QuoteDelivery(ctx, business, delivery)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromDeliveryQuote(quote)
	return &resp, nil
}

func (s *Server) PriceCart(ctx context.Context, req *transport.CartRequest) (*transport.CartQuoteResponse, error) {
	if _, err := requireRole(ctx, domain.RoleCustomer); err != nil {
		return nil, err
	}
	items, priceReq := transport.ToCartInput(*req)
	quote, err := s.svc.PriceCart(ctx, items, priceReq)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromCartQuote(quote)
	return &resp, nil
}

func (s *Server) CheckCoverage(ctx context.Context, req *CoverageRequest) (*CoverageReply, error) {
	in, err := s.svc.CheckCoverage(domain.Location{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &CoverageReply{InCoverage: in}, nil
}

func (s *Server) EstimateTime(ctx context.Context, req *EstimateTimeRequest) (*EstimateTimeReply, error) {
	minutes, err := s.svc.EstimateDeliveryTime(req.DistanceKm, req.PrepTime)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &EstimateTimeReply{ETAMinutes: minutes}, nil
}

func (s *Server) StartRegretWindow(ctx context.Context, req *OrderIDRequest) (*transport.RegretResponse, error) {
	if _, err := requireRole(ctx, domain.RoleCustomer); err != nil {
		return nil, err
	}
	st, err := s.svc.StartRegretWindow(ctx, req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromRegretStatus(st)
	return &resp, nil
}

func (s *Server) RegretStatus(ctx context.Context, req *OrderIDRequest) (*transport.RegretResponse, error) {
	if _, err := requireRole(ctx, domain.RoleCustomer); err != nil {
		return nil, err
	}
	st, err := s.svc.GetRegretStatus(ctx, req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromRegretStatus(st)
	return &resp, nil
}

func (s *Server) RegretOrder(ctx context.Context, req *OrderIDRequest) (*transport.DecisionResponse, error) {
	if _, err := requireRole(ctx, domain.RoleCustomer); err != nil {
		return nil, err
	}
	d, err := s.svc.RegretOrder(ctx, req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromDecision(d)
	return &resp, nil
}

func (s *Server) ConfirmOrder(ctx context.Context, req *OrderIDRequest) (*transport.DecisionResponse, error) {
	if _, err := requireRole(ctx, domain.RoleCustomer); err != nil {
		return nil, err
	}
	d, err := s.svc.ConfirmOrder(ctx, req.OrderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromDecision(d)
	return &resp, nil
}

func (s *Server) UpdateTariff(ctx context.Context, req *transport.TariffResponse) (*transport.TariffRecordResponse, error) {
	claims, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	rec, err := s.svc.UpdateTariff(ctx, claims.Subject, transport.ToTariff(*req))
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromTariffRecord(rec)
	return &resp, nil
}
