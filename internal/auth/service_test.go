package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nfauzi/storefront/internal/auth"
	"github.com/nfauzi/storefront/internal/common"
)

func newService(t *testing.T) (*auth.Service, auth.User) {
	t.Helper()
	users := auth.NewUserStore()
	user, err := users.Add("Demo User", "demo@example.com", "correct horse battery")
	require.NoError(t, err)

	svc, err := auth.NewService(auth.Config{
		Users:          users,
		Secret:         "test-secret",
		AccessTokenTTL: 15 * time.Minute,
		Issuer:         "storefront",
		Audience:       "storefront-api",
	})
	require.NoError(t, err)
	return svc, user
}

func TestLoginAndParseRoundTrip(t *testing.T) {
	svc, user := newService(t)

	result, err := svc.Login(context.Background(), "demo@example.com", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, user.ID, result.User.ID)
	require.NotEmpty(t, result.AccessToken)

	subject, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, subject)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Login(context.Background(), "demo@example.com", "wrong")
	require.Error(t, err)
	require.True(t, common.IsAppError(err))

	_, err = svc.Login(context.Background(), "nobody@example.com", "whatever")
	require.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	svc, user := newService(t)

	past := time.Now().Add(-time.Hour)
	svc.WithNow(func() time.Time { return past })
	token, _, err := svc.SignAccessToken(user.ID)
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	svc, user := newService(t)

	other, err := auth.NewService(auth.Config{
		Users:  auth.NewUserStore(),
		Secret: "a different secret",
	})
	require.NoError(t, err)
	token, _, err := other.SignAccessToken(user.ID)
	require.NoError(t, err)

	_, err = svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestDuplicateEmailRejected(t *testing.T) {
	users := auth.NewUserStore()
	_, err := users.Add("A", "same@example.com", "password-one")
	require.NoError(t, err)
	_, err = users.Add("B", "same@example.com", "password-two")
	require.Error(t, err)
}

func TestRequireAuthMiddleware(t *testing.T) {
	svc, user := newService(t)
	mw := auth.Middleware{Service: svc}

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := common.UserID(r.Context())
		require.True(t, ok)
		require.Equal(t, user.ID, id)
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/protected", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	token, _, err := svc.SignAccessToken(user.ID)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}
