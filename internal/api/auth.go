package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"translink/internal/auth"
	"translink/internal/config"
	"translink/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// AuthInterceptor verifies bearer tokens on gRPC calls and throttles each
// caller. Health and reflection are public.
type AuthInterceptor struct {
	issuer  *auth.Issuer
	limiter *rateLimiter
}

func NewAuthInterceptor(issuer *auth.Issuer, cfg config.APIRateLimitConfig) *AuthInterceptor {
	return &AuthInterceptor{
		issuer:  issuer,
		limiter: newRateLimiter(cfg),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if isPublicMethod(info.FullMethod) {
			return handler(ctx, req)
		}

		p, err := a.checkAuth(ctx)
		if err != nil {
			return nil, err
		}
		if !a.limiter.allow("user:" + strconv.FormatInt(p.UserID, 10)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(auth.WithPrincipal(ctx, p), req)
	}
}

const (
	authorizationHeader = "authorization"
	clientKeyUnknown    = "unknown"
)

func (a *AuthInterceptor) checkAuth(ctx context.Context) (auth.Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return auth.Principal{}, status.Error(codes.Unauthenticated, "missing metadata")
	}

	raw := bearerToken(first(md.Get(authorizationHeader)))
	if raw == "" {
		return auth.Principal{}, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	p, err := a.issuer.Parse(raw)
	if err != nil {
		return auth.Principal{}, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	return p, nil
}

func isPublicMethod(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/grpc.health.v1.Health/") ||
		strings.HasPrefix(fullMethod, "/grpc.reflection.")
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		reqLogger := base.With().Str("request_id", requestID).Logger()
		start := time.Now()
		resp, err := handler(reqLogger.WithContext(ctx), req)
		dur := time.Since(start)

		code := codes.OK
		if err != nil {
			code = status.Code(err)
		}
		metrics.IncGRPC(info.FullMethod, code.String())

		remote := clientKeyUnknown
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		reqLogger.Info().
			Str("method", info.FullMethod).
			Str("remote", remote).
			Str("code", code.String()).
			Dur("duration", dur).
			Msg("grpc request")

		return resp, err
	}
}

const requestIDMetadataKey = "x-request-id"

func requestIDFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
			if id := strings.TrimSpace(vals[0]); id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}
