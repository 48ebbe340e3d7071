package client

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// storefrontHandler runs the real API over an in-memory store.
func storefrontHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Auth: config.AuthConfig{Secret: "client-secret", Issuer: "storefront", TokenTTL: time.Hour},
		CORS: config.CORSConfig{AllowOrigins: []string{"*"}},
	}
	svc := service.New(repository.NewMemoryStore(), auth.NewTokenIssuer(cfg.Auth), zap.NewNop(),
		service.Options{BcryptCost: bcrypt.MinCost})
	return gateway.NewGateway(cfg, svc, nil, zap.NewNop()).Handler()
}

func newServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newLocalStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestSession(t *testing.T, baseURL string) (*Session, *BadgerStore) {
	t.Helper()
	store := newLocalStore(t)
	return NewSession(NewAPI(baseURL, zap.NewNop()), store, zap.NewNop()), store
}
