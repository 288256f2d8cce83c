package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/credential-ledger-api/pkg/errors"
)

// Wallet is a custodial account created for a student.
type Wallet struct {
	ID        string    `json:"walletId"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client provisions custodial wallets.
type Client interface {
	CreateWallet(ctx context.Context, externalIdentityID, label string) (*Wallet, error)
}

// Config configures the HTTP custody client.
type Config struct {
	BaseURL   string
	APIKey    string
	RateLimit float64
	Burst     int
	Timeout   time.Duration
}

// HTTPClient talks to the custody provider's REST API. Calls are throttled
// with a token bucket so bursts of wallet jobs stay under the provider quota.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient builds a client; httpClient may be nil.
func NewHTTPClient(cfg Config, httpClient *http.Client) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
	}
}

type createWalletRequest struct {
	ExternalIdentityID string `json:"externalIdentityId"`
	Label              string `json:"label,omitempty"`
}

// CreateWallet requests a new wallet bound to the external identity.
func (c *HTTPClient) CreateWallet(ctx context.Context, externalIdentityID, label string) (*Wallet, error) {
	if strings.TrimSpace(externalIdentityID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "external identity id is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, appErrors.External(err, "custody rate limiter aborted")
	}

	body, err := json.Marshal(createWalletRequest{ExternalIdentityID: externalIdentityID, Label: label})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to encode wallet request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/wallets", bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to build wallet request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, appErrors.External(err, "custody provider unreachable")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, appErrors.External(err, "failed to read custody response")
	}
	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, appErrors.Wrap(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))),
			appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "custody provider rejected wallet request")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, appErrors.External(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), "custody provider error")
	}

	var wallet Wallet
	if err := json.Unmarshal(payload, &wallet); err != nil {
		return nil, appErrors.External(err, "custody provider returned malformed body")
	}
	if wallet.Address == "" || wallet.ID == "" {
		return nil, appErrors.External(fmt.Errorf("missing wallet fields"), "custody provider returned incomplete wallet")
	}
	if wallet.CreatedAt.IsZero() {
		wallet.CreatedAt = time.Now().UTC()
	}
	return &wallet, nil
}
