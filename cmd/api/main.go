package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/nfauzi/storefront/internal/auth"
	"github.com/nfauzi/storefront/internal/blob"
	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/config"
	"github.com/nfauzi/storefront/internal/discount"
	"github.com/nfauzi/storefront/internal/events"
	"github.com/nfauzi/storefront/internal/health"
	"github.com/nfauzi/storefront/internal/httpapi"
	"github.com/nfauzi/storefront/internal/list"
	"github.com/nfauzi/storefront/internal/lock"
	"github.com/nfauzi/storefront/internal/obs"
	"github.com/nfauzi/storefront/internal/order"
	"github.com/nfauzi/storefront/internal/ratelimit"
	"github.com/nfauzi/storefront/internal/sched"
	"github.com/nfauzi/storefront/internal/security"
	"github.com/nfauzi/storefront/internal/session"
	"github.com/nfauzi/storefront/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := cfg.OTLPEndpoint != ""
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "storefront-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: 1.0,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	catalogClient := catalog.NewClient(
		cfg.CatalogBaseURL,
		catalog.DefaultHTTPClient(),
		catalog.NewCache(redisClient, 5*time.Minute),
	)

	bus := events.NewBus(events.DefaultLogSize)
	bus.Notifiers = []events.Notifier{
		eventLogger{logger: logger},
		reconcileMetrics{},
	}

	// Reassignments run under a Redis lock so a single replica owns each
	// promotion cycle; the others keep serving their last selection.
	locker := lock.Locker{R: redisClient, RetryBackoff: 100 * time.Millisecond}
	allocator := discount.New(discount.Config{
		Interval: cfg.DiscountInterval,
		Scheduler: leaderScheduler{
			inner:  sched.TimerScheduler{},
			locker: locker,
			key:    "storefront:discount:refresh",
			ttl:    30 * time.Second,
			logger: logger,
		},
		OnRefresh: func(count int) {
			if obs.DiscountRefreshTotal != nil {
				obs.DiscountRefreshTotal.Inc()
			}
			emitCtx, emitCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer emitCancel()
			if _, err := bus.Emit(emitCtx, events.TopicDiscountRefreshed, "", map[string]any{"count": count}); err != nil {
				logger.Warn().Err(err).Msg("emit discount refresh")
			}
		},
	})
	defer allocator.Stop()

	go func() {
		loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer loadCancel()
		products, err := catalogClient.ListProducts(loadCtx, "")
		if err != nil {
			logger.Error().Err(err).Msg("load catalog for discounts")
			return
		}
		allocator.SetCatalog(products)
		if err := locker.WithLock(loadCtx, "storefront:discount:refresh", 30*time.Second, func(context.Context) error {
			allocator.Refresh()
			return nil
		}); err != nil {
			logger.Warn().Err(err).Msg("initial discount refresh")
		}
		logger.Info().Int("products", len(products)).Msg("discount selection initialised")
	}()

	manager := session.NewManager(
		blob.NewRedisStore(redisClient),
		sched.SystemClock{},
		sched.TimerScheduler{},
		bus,
		logger,
	)
	manager.ToastDelay = cfg.ToastDelay
	manager.RemovalDelay = cfg.RemovalDelay

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if pruned := manager.Prune(cfg.SessionMaxIdle); pruned > 0 {
				logger.Info().Int("sessions", pruned).Msg("pruned idle sessions")
			}
		}
	}()

	authService, err := auth.NewService(auth.Config{
		Users:    auth.NewUserStore(),
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authMiddleware := auth.Middleware{Service: authService}

	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		logger.Warn().Str("locale", cfg.Locale).Msg("unknown locale, falling back to English")
		locale = language.English
	}

	api := httpapi.API{
		Sessions: httpapi.SessionMiddleware{Manager: manager},
		Products: &httpapi.ProductsHandler{
			Catalog:   catalogClient,
			Discounts: allocator,
			Engine:    view.NewEngine(locale),
		},
		Cart:     &httpapi.CartHandler{Catalog: catalogClient, Discounts: allocator},
		Wishlist: &httpapi.ListsHandler{Kind: list.KindWishlist, Catalog: catalogClient, Discounts: allocator},
		Compare:  &httpapi.ListsHandler{Kind: list.KindCompare, Catalog: catalogClient, Discounts: allocator},
		Orders: &httpapi.OrdersHandler{
			Book:     order.NewBook(blob.NewRedisStore(redisClient)),
			Validate: validator.New(),
		},
		Authenticate: authMiddleware.Authenticate,
		RequireAuth:  authMiddleware.RequireAuth,
	}

	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, nil, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-ID"},
		ExposedHeaders:   []string{"X-Session-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "storefront:ratelimit:"},
		Config: ratelimit.Config{
			Key:    sessionOrIP,
			Window: time.Minute,
			Max:    cfg.RateLimitPerMinute,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter degraded")
		},
	}.Middleware)

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{
		Checker: health.Probes{
			Redis:      redisClient,
			HTTPClient: &http.Client{Timeout: 5 * time.Second},
			CatalogURL: cfg.CatalogBaseURL,
		},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	api.Mount(r)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

// sessionOrIP keys rate limits by session when the caller sent one, falling
// back to the client address for header-less first requests.
func sessionOrIP(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(httpapi.SessionHeader)); id != "" {
		return "session:" + id
	}
	return "ip:" + strings.Split(r.RemoteAddr, ":")[0]
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// leaderScheduler wraps scheduled callbacks in a distributed lock.
type leaderScheduler struct {
	inner  sched.Scheduler
	locker lock.Locker
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

func (s leaderScheduler) AfterFunc(d time.Duration, fn func()) sched.Handle {
	return s.inner.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.ttl)
		defer cancel()
		err := s.locker.WithLock(ctx, s.key, s.ttl, func(context.Context) error {
			fn()
			return nil
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("discount refresh leadership")
		}
	})
}

// eventLogger writes every domain event to the structured log.
type eventLogger struct {
	logger zerolog.Logger
}

func (n eventLogger) Notify(_ context.Context, event events.Event) error {
	n.logger.Info().
		Str("topic", event.Topic).
		Str("owner", event.OwnerID).
		RawJSON("payload", event.Payload).
		Msg("domain event")
	return nil
}

// reconcileMetrics counts login reconciliations by the outcome the event
// carries.
type reconcileMetrics struct{}

func (reconcileMetrics) Notify(_ context.Context, event events.Event) error {
	if event.Topic != events.TopicCartReconciled || obs.ReconcileTotal == nil {
		return nil
	}
	var payload struct {
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.Outcome == "" {
		return nil
	}
	obs.ReconcileTotal.WithLabelValues(payload.Outcome).Inc()
	return nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
