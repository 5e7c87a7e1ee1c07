package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"refinery/internal/bignum"
	"refinery/internal/game"
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the refinery API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// Permanent reports whether resending the same request cannot succeed.
// Client errors are permanent; server errors and conflicts may clear up.
func (e *APIError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusConflict && e.Status != http.StatusTooManyRequests
}

func (c *Client) Health(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodGet, "/healthz", nil, nil, "")
}

func (c *Client) Catalog(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog", nil, &out, "")
	return out, err
}

func (c *Client) Formula(ctx context.Context, upgrade string) (game.FormulaView, error) {
	var out game.FormulaView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/formulas/"+url.PathEscape(upgrade), nil, &out, "")
	return out, err
}

type EvalResult struct {
	Result     bignum.Number `json:"result"`
	Scientific string        `json:"scientific"`
	Suffix     string        `json:"suffix"`
	Layer      int           `json:"layer"`
}

func (c *Client) Eval(ctx context.Context, op string, a, b bignum.Number) (EvalResult, error) {
	var out EvalResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/numbers/eval", map[string]any{
		"op": op,
		"a":  a,
		"b":  b,
	}, &out, "")
	return out, err
}

func (c *Client) EnsurePlayer(ctx context.Context, playerID string) (game.WalletView, error) {
	var out game.WalletView
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, ""), nil, &out, "")
	return out, err
}

func (c *Client) Wallet(ctx context.Context, playerID string) (game.WalletView, error) {
	var out game.WalletView
	err := c.jsonRequest(ctx, http.MethodGet, playerPath(playerID, "/wallet"), nil, &out, "")
	return out, err
}

func (c *Client) Droplets(ctx context.Context, playerID, furnace string, count int64, idem string) (game.DropletResult, error) {
	var out game.DropletResult
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/droplets"), DropletBody(furnace, count), &out, idem)
	return out, err
}

func (c *Client) PreviewDroplets(ctx context.Context, playerID, furnace string, count int64) (game.DropletResult, error) {
	var out game.DropletResult
	err := c.jsonRequest(ctx, http.MethodPost, playerPath(playerID, "/droplets/preview"), DropletBody(furnace, count), &out, "")
	return out, err
}

func (c *Client) BuyUpgrade(ctx context.Context, playerID, upgrade, idem string) (game.BuyUpgradeResult, error) {
	var out game.BuyUpgradeResult
	path := playerPath(playerID, "/upgrades/"+url.PathEscape(upgrade)+"/buy")
	err := c.jsonRequest(ctx, http.MethodPost, path, nil, &out, idem)
	return out, err
}

// DropletBody is the request body of the droplet endpoints.
func DropletBody(furnace string, count int64) map[string]any {
	return map[string]any{"furnace": furnace, "count": count}
}

// DropletPath is the droplet endpoint of playerID.
func DropletPath(playerID string) string {
	return playerPath(playerID, "/droplets")
}

func playerPath(playerID, suffix string) string {
	return "/v1/players/" + url.PathEscape(playerID) + suffix
}

// Do sends a raw request, as replayed from the offline queue.
func (c *Client) Do(ctx context.Context, method, path string, body map[string]any, idem string) (map[string]any, error) {
	var out map[string]any
	var in any
	if body != nil {
		in = body
	}
	err := c.jsonRequest(ctx, method, path, in, &out, idem)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
