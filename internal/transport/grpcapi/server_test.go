package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"market-delivery/internal/auth"
	"market-delivery/internal/domain"
	"market-delivery/internal/pricing"
	"market-delivery/internal/service"
	"market-delivery/internal/transport"
)

type staticTariffs struct{}

func (staticTariffs) Current(ctx context.Context) domain.Tariff { return domain.DefaultTariff }
func (staticTariffs) Invalidate(ctx context.Context) error      { return nil }

func dialTestServer(t *testing.T) (*grpc.ClientConn, *auth.Authenticator) {
	t.Helper()
	a := auth.New("secret", time.Hour)
	svc := service.New(nil, staticTariffs{}, pricing.NewCalculator(nil, nil))
	srv := NewServer(svc, a)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, a
}

func withToken(t *testing.T, a *auth.Authenticator, role string) context.Context {
	t.Helper()
	token, _, err := a.IssueToken("tester", role)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestGetTariffIsPublic(t *testing.T) {
	conn, _ := dialTestServer(t)
	var reply TariffReply
	if err := conn.Invoke(context.Background(), "/pricing.PricingService/GetTariff", &Empty{}, &reply); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !reply.Success || reply.Config.BaseFee != 15 || reply.Config.MaxFee != 40 {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestQuoteDelivery(t *testing.T) {
	conn, a := dialTestServer(t)
	req := &transport.CalculateDeliveryRequest{BusinessLat: 32.7, BusinessLng: 35.3, DeliveryLat: 32.7, DeliveryLng: 35.3}
	var reply transport.DeliveryQuoteResponse

	err := conn.Invoke(context.Background(), "/pricing.PricingService/QuoteDelivery", req, &reply)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	ctx := withToken(t, a, domain.RoleCustomer)
	if err := conn.Invoke(ctx, "/pricing.PricingService/QuoteDelivery", req, &reply); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if reply.DeliveryFee != 1500 || reply.ETAMinutes != 20 || !reply.InCoverage {
		t.Fatalf("unexpected reply %+v", reply)
	}

	req.DeliveryLng = 500
	err = conn.Invoke(ctx, "/pricing.PricingService/QuoteDelivery", req, &reply)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestRoleChecks(t *testing.T) {
	conn, a := dialTestServer(t)
	ctx := withToken(t, a, domain.RoleBusiness)
	var reply transport.CartQuoteResponse
	err := conn.Invoke(ctx, "/pricing.PricingService/PriceCart", &transport.CartRequest{}, &reply)
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestCheckCoverage(t *testing.T) {
	conn, _ := dialTestServer(t)
	var reply CoverageReply
	if err := conn.Invoke(context.Background(), "/pricing.PricingService/CheckCoverage", &CoverageRequest{Lat: 40, Lng: 35.3}, &reply); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if reply.InCoverage {
		t.Fatalf("expected outside coverage")
	}
}

func TestJSONCodecRejectsUnknownFields(t *testing.T) {
	var req CoverageRequest
	if err := (jsonCodec{}).Unmarshal([]byte(`{"lat":1,"lon":2}`), &req); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if err := (jsonCodec{}).Unmarshal(nil, &req); err != nil {
		t.Fatalf("empty payload: %v", err)
	}
}
