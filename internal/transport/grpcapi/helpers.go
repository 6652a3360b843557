package grpcapi

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"market-delivery/internal/auth"
	"market-delivery/internal/domain"
)

func requireRole(ctx context.Context, roles ...string) (*auth.Claims, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	if !claims.HasRole(roles...) {
		return nil, status.Error(codes.PermissionDenied, "forbidden")
	}
	return claims, nil
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, "conflict")
	case errors.Is(err, domain.ErrInvalid):
		return status.Error(codes.InvalidArgument, "invalid request")
	case errors.Is(err, domain.ErrUpstream):
		return status.Error(codes.Unavailable, "upstream unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
