package rpc

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics records RPC activity. A nil Metrics disables collection.
type Metrics interface {
	RequestStarted(service, method string)
	RequestFinished(service, method, code string, duration time.Duration)
}

// splitMethod turns "/pkg.Service/Method" into its two parts.
func splitMethod(full string) (service, method string) {
	full = strings.TrimPrefix(full, "/")
	if i := strings.LastIndex(full, "/"); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "unknown", full
}

// limitUnary bounds the number of handlers running at once. Callers wait
// for a slot until their context ends.
func limitUnary(sem *semaphore.Weighted) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, status.FromContextError(err).Err()
		}
		defer sem.Release(1)
		return handler(ctx, req)
	}
}

func limitStream(sem *semaphore.Weighted) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := sem.Acquire(ss.Context(), 1); err != nil {
			return status.FromContextError(err).Err()
		}
		defer sem.Release(1)
		return handler(srv, ss)
	}
}

func observeUnary(m Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		service, method := splitMethod(info.FullMethod)
		start := time.Now()
		m.RequestStarted(service, method)
		resp, err := handler(ctx, req)
		m.RequestFinished(service, method, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

func observeStream(m Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		service, method := splitMethod(info.FullMethod)
		start := time.Now()
		m.RequestStarted(service, method)
		err := handler(srv, ss)
		m.RequestFinished(service, method, status.Code(err).String(), time.Since(start))
		return err
	}
}
