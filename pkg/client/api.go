// Package client is the shopper-side half of the storefront: a local cart
// cache kept in machine-local storage, and an HTTP client for the API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

// APIError is a non-2xx answer from the API, carrying its message field.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type AuthResponse struct {
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
	Token   string            `json:"token"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OrderRequest struct {
	Items         []models.OrderItem `json:"items"`
	Total         float64            `json:"total,omitempty"`
	Address       string             `json:"address"`
	CustomerName  string             `json:"customerName"`
	CustomerPhone string             `json:"customerPhone"`
}

type response struct {
	status int
	body   []byte
}

// API calls the storefront HTTP API. Requests run through a circuit breaker
// that opens after repeated transport failures or 5xx answers.
type API struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*response]
	logger     *zap.Logger
}

func NewAPI(baseURL string, logger *zap.Logger) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
			Name:        "storefront-api",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
		logger: logger,
	}
}

func (a *API) do(ctx context.Context, method, path, token string, body interface{}, headers map[string]string, dest interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = data
	}

	resp, err := a.breaker.Execute(func() (*response, error) {
		req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		httpResp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, err
		}
		res := &response{status: httpResp.StatusCode, body: data}
		if res.status >= http.StatusInternalServerError {
			return res, newAPIError(res)
		}
		return res, nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}

	if resp.status >= http.StatusBadRequest {
		return newAPIError(resp)
	}
	if dest != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, dest); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func newAPIError(res *response) *APIError {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(res.body, &body)
	if body.Message == "" {
		body.Message = http.StatusText(res.status)
	}
	return &APIError{Status: res.status, Message: body.Message}
}

func (a *API) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := a.do(ctx, http.MethodPost, "/api/signup", "", req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/login", "", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Logout(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodPost, "/api/logout", token, nil, nil, nil)
}

func (a *API) Profile(ctx context.Context, token string) (*models.PublicUser, error) {
	var out struct {
		User models.PublicUser `json:"user"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/profile", token, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (a *API) CreateOrder(ctx context.Context, token string, req OrderRequest) (*models.Order, error) {
	var out struct {
		Order *models.Order `json:"order"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/order", token, req, nil, &out); err != nil {
		return nil, err
	}
	return out.Order, nil
}

// Checkout submits one checkout attempt. Retrying with the same key returns
// the order created by the first successful attempt.
func (a *API) Checkout(ctx context.Context, token, idempotencyKey string, req OrderRequest) (*models.Order, error) {
	var out struct {
		Order *models.Order `json:"order"`
	}
	headers := map[string]string{idempotencyHeader: idempotencyKey}
	if err := a.do(ctx, http.MethodPost, "/api/checkout", token, req, headers, &out); err != nil {
		return nil, err
	}
	return out.Order, nil
}

func (a *API) ListOrders(ctx context.Context, token string) ([]*models.Order, error) {
	var out struct {
		Orders []*models.Order `json:"orders"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/orders", token, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (a *API) GetOrder(ctx context.Context, token, id string) (*models.Order, error) {
	var out struct {
		Order *models.Order `json:"order"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), token, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Order, nil
}

// GetCart returns the server cart, or nil when the user has none.
func (a *API) GetCart(ctx context.Context, token string) (*models.Cart, error) {
	var out struct {
		Cart *models.Cart `json:"cart"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/cart", token, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Cart, nil
}

func (a *API) ReplaceCart(ctx context.Context, token string, items []models.CartItem) (*models.Cart, error) {
	var out struct {
		Cart *models.Cart `json:"cart"`
	}
	body := map[string]interface{}{"items": items}
	if err := a.do(ctx, http.MethodPost, "/api/cart", token, body, nil, &out); err != nil {
		return nil, err
	}
	return out.Cart, nil
}
