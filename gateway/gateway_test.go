package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Auth:   config.AuthConfig{Secret: "gateway-secret", Issuer: "storefront", TokenTTL: 7 * 24 * time.Hour},
		CORS:   config.CORSConfig{AllowOrigins: []string{"*"}},
	}
}

func newTestGateway(t *testing.T, opts service.Options, health HealthCheck) http.Handler {
	t.Helper()
	cfg := testConfig()
	opts.BcryptCost = bcrypt.MinCost
	svc := service.New(repository.NewMemoryStore(), auth.NewTokenIssuer(cfg.Auth), zap.NewNop(), opts)
	return NewGateway(cfg, svc, health, zap.NewNop()).Handler()
}

type response struct {
	Code int
	Body map[string]interface{}
}

func do(t *testing.T, h http.Handler, method, path, token string, body interface{}, headers ...string) response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	res := response{Code: w.Code}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res.Body), w.Body.String())
	}
	return res
}

func signupToken(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	res := do(t, h, http.MethodPost, "/api/signup", "", map[string]string{
		"name": "Ada", "lastname": "Lovelace", "email": email, "password": "pw1",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	return res.Body["token"].(string)
}

func TestSignupAndLogin(t *testing.T) {
	h := newTestGateway(t, service.Options{}, nil)

	res := do(t, h, http.MethodPost, "/api/signup", "", map[string]string{
		"name": "Ada", "lastname": "Lovelace", "email": "a@x.com", "password": "pw1",
	})
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "User registered successfully", res.Body["message"])
	user := res.Body["user"].(map[string]interface{})
	assert.Equal(t, "a@x.com", user["email"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	res = do(t, h, http.MethodPost, "/api/signup", "", map[string]string{
		"name": "Ada", "email": "a@x.com", "password": "pw2",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "User already exists", res.Body["message"])

	res = do(t, h, http.MethodPost, "/api/login", "", map[string]string{"email": "a@x.com", "password": "pw2"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Invalid email or password", res.Body["message"])

	res = do(t, h, http.MethodPost, "/api/login", "", map[string]string{"email": "a@x.com", "password": "pw1"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Login successful", res.Body["message"])
	assert.NotEmpty(t, res.Body["token"])
}

func TestMalformedBody(t *testing.T) {
	h := newTestGateway(t, service.Options{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/signup", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Invalid request body"}`, w.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	h := newTestGateway(t, service.Options{}, nil)

	res := do(t, h, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "No token provided", res.Body["message"])

	res = do(t, h, http.MethodGet, "/api/orders", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Invalid token", res.Body["message"])

	other := auth.NewTokenIssuer(config.AuthConfig{Secret: "other", TokenTTL: time.Hour})
	forged, _, err := other.Issue(auth.Identity{UserID: repository.NewID()})
	require.NoError(t, err)
	res = do(t, h, http.MethodGet, "/api/cart", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestProfile(t *testing.T) {
	h := newTestGateway(t, service.Options{}, nil)
	token := signupToken(t, h, "a@x.com")

	res := do(t, h, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	user := res.Body["user"].(map[string]interface{})
	assert.Equal(t, "Ada", user["name"])
	assert.Equal(t, "Lovelace", user["lastname"])
}

func TestOrderEndpoints(t *testing.T) {
	h := newTestGateway(t, service.Options{}, nil)
	owner := signupToken(t, h, "owner@x.com")
	intruder := signupToken(t, h, "intruder@x.com")

	res := do(t, h, http.MethodPost, "/api/order", owner, map[string]interface{}{
		"items": []map[string]interface{}{{"productId": "1", "name": "Tee", "quantity": 1, "price": 20}},
		"total": 25.99,
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Customer name and phone are required.", res.Body["message"])

	res = do(t, h, http.MethodPost, "/api/order", owner, map[string]interface{}{
		"items":         []map[string]interface{}{{"productId": "1", "name": "Tee", "quantity": 1, "price": 20, "image": "public/tee.png"}},
		"total":         25.99,
		"address":       "1 Main St",
		"customerName":  "Ada",
		"customerPhone": "555-0100",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, "Order placed successfully", res.Body["message"])
	order := res.Body["order"].(map[string]interface{})
	orderID := order["_id"].(string)
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, "/tee.png", order["items"].([]interface{})[0].(map[string]interface{})["image"])

	res = do(t, h, http.MethodGet, "/api/orders", owner, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["orders"], 1)

	res = do(t, h, http.MethodGet, "/api/orders/"+orderID, owner, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, orderID, res.Body["order"].(map[string]interface{})["_id"])

	res = do(t, h, http.MethodGet, "/api/orders/"+orderID, intruder, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Order not found", res.Body["message"])

	res = do(t, h, http.MethodGet, "/api/orders/xyz", owner, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Invalid order ID", res.Body["message"])

	res = do(t, h, http.MethodGet, "/api/orders", intruder, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Empty(t, res.Body["orders"])
}

func TestCartEndpoints(t *testing.T) {
	h := newTestGateway(t, service.Options{}, nil)
	token := signupToken(t, h, "a@x.com")

	res := do(t, h, http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Nil(t, res.Body["cart"])

	items := []map[string]interface{}{{"productId": "1", "name": "Tee", "quantity": 3, "price": 20}}
	res = do(t, h, http.MethodPost, "/api/cart", token, map[string]interface{}{"items": items})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "Cart updated successfully", res.Body["message"])

	res = do(t, h, http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	cart := res.Body["cart"].(map[string]interface{})
	lines := cart["items"].([]interface{})
	require.Len(t, lines, 1)
	assert.EqualValues(t, 3, lines[0].(map[string]interface{})["quantity"])

	res = do(t, h, http.MethodPost, "/api/cart", token, map[string]interface{}{
		"items": []map[string]interface{}{{"productId": "1", "quantity": 0, "price": 20}},
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCheckoutEndpoint(t *testing.T) {
	h := newTestGateway(t, service.Options{}, nil)
	token := signupToken(t, h, "a@x.com")

	do(t, h, http.MethodPost, "/api/cart", token, map[string]interface{}{
		"items": []map[string]interface{}{{"productId": "1", "name": "Tee", "quantity": 3, "price": 20}},
	})

	body := map[string]interface{}{
		"items": []map[string]interface{}{{
			"productId": "1", "name": "Tee", "quantity": 3, "price": 20,
			"selectedSize": "M", "selectedColor": "Blue", "image": "./tee.png",
		}},
		"address":       "1 Main St",
		"customerName":  "Ada",
		"customerPhone": "555-0100",
	}

	res := do(t, h, http.MethodPost, "/api/checkout", token, body)
	assert.Equal(t, http.StatusBadRequest, res.Code, "missing idempotency key")

	res = do(t, h, http.MethodPost, "/api/checkout", token, body, idempotencyHeader, "attempt-1")
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	order := res.Body["order"].(map[string]interface{})
	assert.EqualValues(t, 60, order["total"])
	assert.EqualValues(t, 0, order["shipping"])

	res = do(t, h, http.MethodPost, "/api/checkout", token, body, idempotencyHeader, "attempt-1")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, order["_id"], res.Body["order"].(map[string]interface{})["_id"])

	res = do(t, h, http.MethodGet, "/api/orders", token, nil)
	assert.Len(t, res.Body["orders"], 1)

	res = do(t, h, http.MethodGet, "/api/cart", token, nil)
	assert.Empty(t, res.Body["cart"].(map[string]interface{})["items"])

	body["address"] = "2 Side St"
	res = do(t, h, http.MethodPost, "/api/checkout", token, body, idempotencyHeader, "attempt-1")
	assert.Equal(t, http.StatusBadRequest, res.Code, "key reused for a different order")

	res = do(t, h, http.MethodGet, "/api/orders", token, nil)
	assert.Len(t, res.Body["orders"], 1)
}

func TestSwaggerDocs(t *testing.T) {
	h := newTestGateway(t, service.Options{}, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		BasePath string                 `json:"basePath"`
		Paths    map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), w.Body.String())
	assert.Equal(t, "/api", doc.BasePath)
	for _, path := range []string{"/signup", "/login", "/logout", "/profile", "/order", "/checkout", "/orders", "/orders/{id}", "/cart"} {
		assert.Contains(t, doc.Paths, path)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogout(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := repository.NewRedisRepository(&config.RedisConfig{Addr: mr.Addr()})
	h := newTestGateway(t, service.Options{
		Cache:       cache,
		Revocations: auth.NewRedisRevocationList(cache.Client()),
	}, nil)
	token := signupToken(t, h, "a@x.com")

	res := do(t, h, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["revoked"])

	res = do(t, h, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestHealth(t *testing.T) {
	h := newTestGateway(t, service.Options{}, nil)
	res := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", res.Body["status"])

	down := newTestGateway(t, service.Options{}, func(ctx context.Context) error {
		return errors.New("mongo unreachable")
	})
	res = do(t, down, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestGateway(t, service.Options{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
