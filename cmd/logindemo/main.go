// Command logindemo runs a minimal identity server for trying the storefront
// login flow: it seeds one demo user, issues HS256 access tokens and exposes a
// protected probe route.
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nfauzi/storefront/internal/auth"
	"github.com/nfauzi/storefront/internal/common"
	"github.com/nfauzi/storefront/internal/obs"
)

func main() {
	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "text"), envOrDefault("OBS_LOG_LEVEL", "info"))

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	users := auth.NewUserStore()
	email := envOrDefault("DEMO_EMAIL", "demo@storefront.dev")
	password := envOrDefault("DEMO_PASSWORD", "correct horse battery")
	demo, err := users.Add("Demo User", email, password)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed demo user")
	}

	svc, err := auth.NewService(auth.Config{
		Users:          users,
		Secret:         secret,
		AccessTokenTTL: 15 * time.Minute,
		Issuer:         envOrDefault("JWT_ISSUER", "storefront"),
		Audience:       envOrDefault("JWT_AUDIENCE", "storefront-api"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	mw := auth.Middleware{Service: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)

	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
			return
		}
		result, err := svc.Login(r.Context(), payload.Email, payload.Password)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
				return
			}
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to log in", nil)
			return
		}
		common.JSONData(w, http.StatusOK, result)
	})

	r.With(mw.RequireAuth).Get("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := common.UserID(r.Context())
		common.JSONData(w, http.StatusOK, map[string]any{"userId": userID})
	})

	addr := ":" + envOrDefault("PORT", "8081")
	logger.Info().
		Str("addr", addr).
		Str("email", demo.Email).
		Msg("login demo starting")
	if err := http.ListenAndServe(addr, r); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
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
