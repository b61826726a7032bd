package main

import (
	"context"
	"embed"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/khanakart/khanakart/libs/auth"
	"github.com/khanakart/khanakart/libs/config"
	"github.com/khanakart/khanakart/libs/httpx"
	otelx "github.com/khanakart/khanakart/libs/otel"
	"github.com/khanakart/khanakart/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed assets/gateway.v1.yaml
var openAPISpec embed.FS

func main() {
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	mux := runtime.NewBaseMux()
	jwtSecret := config.String("JWT_SECRET", "dev-secret")
	adminKeys := auth.NewAPIKeySet(config.String("ADMIN_API_KEY_HASHES", ""))
	registerRoutes(mux, jwtSecret, adminKeys)

	bodyLimit := int64(1 << 20) // 1MB
	if v := config.Int("REQUEST_BODY_LIMIT_BYTES", 1048576); v > 0 {
		bodyLimit = int64(v)
	}
	requestTimeout := 10 * time.Second
	if v := config.Int("REQUEST_TIMEOUT_SECONDS", 10); v > 0 {
		requestTimeout = time.Duration(v) * time.Second
	}
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}

	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := config.Int("REDIS_DB", 0)
		if redisDB < 0 {
			redisDB = 0
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key,X-Api-Key")),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           time.Duration(corsMaxAgeSeconds()) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func corsMaxAgeSeconds() int {
	value := 600
	if v, err := strconv.Atoi(config.String("CORS_MAX_AGE_SECONDS", "600")); err == nil && v > 0 {
		value = v
	}
	return value
}

func registerRoutes(mux *http.ServeMux, jwtSecret string, adminKeys *auth.APIKeySet) {
	catalogURL := mustParseURL(config.String("CATALOG_URL", "http://catalog-service:8081"))
	orderingURL := mustParseURL(config.String("ORDERING_URL", "http://ordering-service:8082"))
	settlementURL := mustParseURL(config.String("SETTLEMENT_URL", "http://settlement-service:8084"))

	catalogProxy := httputil.NewSingleHostReverseProxy(catalogURL)
	orderingProxy := httputil.NewSingleHostReverseProxy(orderingURL)
	settlementProxy := httputil.NewSingleHostReverseProxy(settlementURL)
	otelTransport := otelhttp.NewTransport(http.DefaultTransport)
	catalogProxy.Transport = otelTransport
	orderingProxy.Transport = otelTransport
	settlementProxy.Transport = otelTransport

	// Public surface: browsing kitchens, menus, and the live slot board
	// needs no account.
	registerProxy(mux, "/api/v1/public/kitchens", catalogProxy)
	registerProxy(mux, "/api/v1/public/items", catalogProxy)
	registerProxy(mux, "/api/v1/public/slots", orderingProxy)
	// Stripe needs to reach the webhook endpoint without a JWT; signature verification is the auth.
	registerProxy(mux, "/api/v1/public/webhooks/stripe", settlementProxy)

	// Customers place and track orders.
	registerProxy(mux, "/api/v1/public/orders", requireAuth(requireRole(orderingProxy, "customer"), jwtSecret))
	registerProxy(mux, "/api/v1/orders/status", requireAuth(requireRole(orderingProxy, "cook", "courier", "admin"), jwtSecret))
	registerProxy(mux, "/api/v1/orders", requireAuth(requireRole(orderingProxy, "customer", "admin"), jwtSecret))
	registerProxy(mux, "/api/v1/kitchen/orders", requireAuth(requireRole(orderingProxy, "cook", "admin"), jwtSecret))

	// Cooks manage their kitchen, menu, and delivery slots.
	registerProxy(mux, "/api/v1/kitchens", requireAuth(requireRole(catalogProxy, "cook", "admin"), jwtSecret))
	registerProxy(mux, "/api/v1/items", requireAuth(requireRole(catalogProxy, "cook", "admin"), jwtSecret))
	registerProxy(mux, "/api/v1/slots", requireAuth(requireRole(catalogProxy, "cook", "admin"), jwtSecret))

	registerProxy(mux, "/api/v1/wallet", requireAuth(settlementProxy, jwtSecret))
	registerProxy(mux, "/api/v1/checkout", requireAuth(requireRole(settlementProxy, "customer"), jwtSecret))
	registerProxy(mux, "/api/v1/ledger", requireAuth(requireRole(settlementProxy, "cook", "admin"), jwtSecret))

	// Back office: admins via JWT, operational tooling via API key.
	registerProxy(mux, "/api/v1/commission-rules", requireAdmin(catalogProxy, jwtSecret, adminKeys))
	registerProxy(mux, "/api/v1/referrals", requireAdmin(settlementProxy, jwtSecret, adminKeys))

	mux.HandleFunc("/openapi", func(w http.ResponseWriter, _ *http.Request) {
		data, err := openAPISpec.ReadFile("assets/gateway.v1.yaml")
		if err != nil {
			http.Error(w, "openapi not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func requireAuth(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		r.Header.Del("X-User-Id")
		r.Header.Del("X-Role")
		r.Header.Set("X-User-Id", claims.Sub)
		r.Header.Set("X-Role", claims.Role)
		next.ServeHTTP(w, r)
	})
}

func requireRole(next http.Handler, roles ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role")
		if _, ok := allowed[role]; !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin accepts either an admin JWT or a configured back-office
// API key in X-Api-Key.
func requireAdmin(next http.Handler, jwtSecret string, keys *auth.APIKeySet) http.Handler {
	viaJWT := requireAuth(requireRole(next, "admin"), jwtSecret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := strings.TrimSpace(r.Header.Get("X-Api-Key")); key != "" && !keys.Empty() {
			if !keys.Verify(key) {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}
			r.Header.Del("X-User-Id")
			r.Header.Set("X-Role", "admin")
			next.ServeHTTP(w, r)
			return
		}
		viaJWT.ServeHTTP(w, r)
	})
}
