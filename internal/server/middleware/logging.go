// Package middleware holds the HTTP server middleware.
package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestID returns the request ID stored in the context, or an empty
// string.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestLogging tags every request with a short ID and logs method,
// path, client address, outcome and duration.
func RequestLogging(logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			requestID := uuid.New().String()[:8]
			ctx = context.WithValue(ctx, requestIDKey{}, requestID)

			method, path, clientIP := requestInfo(ctx)
			start := time.Now()

			reply, err := next(ctx, req)

			elapsed := time.Since(start)
			if err != nil {
				helper.Warnw("request failed",
					"request_id", requestID,
					"method", method,
					"path", path,
					"client_ip", clientIP,
					"elapsed", elapsed,
					"error", err)
				return reply, err
			}

			helper.Infow("request completed",
				"request_id", requestID,
				"method", method,
				"path", path,
				"client_ip", clientIP,
				"elapsed", elapsed)
			return reply, nil
		}
	}
}

// requestInfo extracts method, path and client address from the
// transport context.
func requestInfo(ctx context.Context) (method, path, clientIP string) {
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return "", "", ""
	}
	path = tr.Operation()

	if ht, ok := tr.(*khttp.Transport); ok {
		r := ht.Request()
		method = r.Method
		path = r.URL.Path
		clientIP = clientAddr(r.Header.Get("X-Forwarded-For"), r.RemoteAddr)
	}
	return method, path, clientIP
}

// clientAddr prefers the first X-Forwarded-For hop over the socket
// address.
func clientAddr(forwarded, remote string) string {
	if forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return strings.TrimSpace(forwarded)
	}
	if i := strings.LastIndexByte(remote, ':'); i >= 0 {
		return remote[:i]
	}
	return remote
}
