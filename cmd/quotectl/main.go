// Command quotectl asks a running server for the tariff and a delivery quote
// over gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"market-delivery/internal/domain"
	"market-delivery/internal/logger"
	"market-delivery/internal/transport"
	"market-delivery/internal/transport/grpcapi"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9090", "gRPC address")
	name := flag.String("name", "quotectl", "token subject")
	fromLat := flag.Float64("from-lat", 32.70, "business latitude")
	fromLng := flag.Float64("from-lng", 35.30, "business longitude")
	toLat := flag.Float64("to-lat", 32.72, "delivery latitude")
	toLng := flag.Float64("to-lng", 35.31, "delivery longitude")
	timeout := flag.Duration("timeout", 10*time.Second, "overall deadline")
	flag.Parse()

	log := logger.New(logger.LevelNormal, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, *addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(grpcapi.CodecName)),
	)
	if err != nil {
		log.Error("dial %s: %v", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	var tariff grpcapi.TariffReply
	if err := conn.Invoke(ctx, "/pricing.PricingService/GetTariff", &grpcapi.Empty{}, &tariff); err != nil {
		log.Error("get tariff: %v", err)
		os.Exit(1)
	}
	fmt.Printf("tariff: base=%.2f perKm=%.2f min=%.2f max=%.2f\n",
		tariff.Config.BaseFee, tariff.Config.PerKm, tariff.Config.MinFee, tariff.Config.MaxFee)

	var token grpcapi.TokenResponse
	err = conn.Invoke(ctx, "/pricing.AuthService/IssueToken", &grpcapi.TokenRequest{Name: *name, Role: domain.RoleCustomer}, &token)
	if err != nil {
		log.Error("issue token: %v", err)
		os.Exit(1)
	}

	authed := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token.Token)
	var quote transport.DeliveryQuoteResponse
	err = conn.Invoke(authed, "/pricing.PricingService/QuoteDelivery", &transport.CalculateDeliveryRequest{
		BusinessLat: *fromLat,
		BusinessLng: *fromLng,
		DeliveryLat: *toLat,
		DeliveryLng: *toLng,
	}, &quote)
	if err != nil {
		log.Error("quote: %v", err)
		os.Exit(1)
	}
	fmt.Printf("quote: %.3f km, fee %d cents, eta %d min, in coverage: %v\n",
		quote.DistanceKm, quote.DeliveryFee, quote.ETAMinutes, quote.InCoverage)
}
