package ledger

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// Accounts holds the addresses of the three txguard program accounts.
type Accounts struct {
	Registry string
	Catalog  string
	Priority string
}

// Client reads the txguard aggregate accounts over JSON-RPC.
type Client struct {
	rpcClient *rpc.Client
	accounts  Accounts
	limiter   *rate.Limiter
}

// NewClient dials the ledger node. requestsPerSecond <= 0 disables client-side
// rate limiting.
func NewClient(ctx context.Context, rpcURL string, accounts Accounts, requestsPerSecond float64) (*Client, error) {
	if accounts.Registry == "" || accounts.Catalog == "" || accounts.Priority == "" {
		return nil, fmt.Errorf("registry, catalog and priority account addresses are required")
	}

	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return &Client{
		rpcClient: rpcClient,
		accounts:  accounts,
		limiter:   limiter,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Registry fetches and decodes the transaction registry account.
func (c *Client) Registry(ctx context.Context) (Registry, error) {
	data, err := c.fetchAccountData(ctx, c.accounts.Registry)
	if err != nil {
		return Registry{}, fmt.Errorf("fetch registry: %w", err)
	}
	return decodeRegistry(data)
}

// FailureCatalog fetches and decodes the failure catalog account.
func (c *Client) FailureCatalog(ctx context.Context) (FailureCatalog, error) {
	data, err := c.fetchAccountData(ctx, c.accounts.Catalog)
	if err != nil {
		return FailureCatalog{}, fmt.Errorf("fetch failure catalog: %w", err)
	}
	return decodeFailureCatalog(data)
}

// TierUsage fetches and decodes the priority fee stats account.
func (c *Client) TierUsage(ctx context.Context) (TierUsage, error) {
	data, err := c.fetchAccountData(ctx, c.accounts.Priority)
	if err != nil {
		return TierUsage{}, fmt.Errorf("fetch tier usage: %w", err)
	}
	return decodeTierUsage(data)
}

type accountInfoResponse struct {
	Value *struct {
		Data []string `json:"data"`
	} `json:"value"`
}

func (c *Client) fetchAccountData(ctx context.Context, address string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp accountInfoResponse
	opts := map[string]any{"encoding": "base64", "commitment": "confirmed"}
	if err := c.rpcClient.CallContext(ctx, &resp, "getAccountInfo", address, opts); err != nil {
		return nil, err
	}
	if resp.Value == nil {
		return nil, fmt.Errorf("account %s not found", address)
	}
	if len(resp.Value.Data) == 0 {
		return nil, fmt.Errorf("account %s has no data", address)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}
	return raw, nil
}
