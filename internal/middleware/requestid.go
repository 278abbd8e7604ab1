package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"appointment-manager/internal/telemetry"
)

// RequestID copies an incoming x-request-id metadata value into the
// context so operation spans carry the caller's correlation id.
func RequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("x-request-id"); len(vals) > 0 && vals[0] != "" {
				ctx = telemetry.WithRequestID(ctx, vals[0])
			}
		}
		return next(ctx, req)
	}
}
