package coinbase

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dca-trader/internal/config"
	"dca-trader/internal/core"
	"dca-trader/internal/exchange"
)

type AuthType int

const (
	AuthNone AuthType = iota
	AuthSigned
)

type Client struct {
	apiKey     string
	apiSecret  string
	passphrase string
	baseURL    string
	wsFeedURL  string

	httpClient *http.Client
	now        func() time.Time
}

type Options struct {
	APIKey         string
	APISecret      string
	Passphrase     string
	RestBaseURL    string
	WSFeedURL      string
	HTTPTimeoutSec int64
}

func NewClient(cfg config.Config) (*Client, error) {
	creds := cfg.Credentials
	if creds.Key == "" || creds.Secret == "" || creds.Passphrase == "" {
		return nil, errors.New("api key/secret/passphrase required")
	}
	return NewClientWithOptions(Options{
		APIKey:         creds.Key,
		APISecret:      creds.Secret,
		Passphrase:     creds.Passphrase,
		RestBaseURL:    cfg.Exchange.RestBaseURL,
		WSFeedURL:      cfg.Exchange.WSFeedURL,
		HTTPTimeoutSec: cfg.Exchange.HTTPTimeoutSec,
	}), nil
}

func NewClientWithOptions(opts Options) *Client {
	timeout := 15 * time.Second
	if opts.HTTPTimeoutSec > 0 {
		timeout = time.Duration(opts.HTTPTimeoutSec) * time.Second
	}
	return &Client{
		apiKey:     opts.APIKey,
		apiSecret:  opts.APISecret,
		passphrase: opts.Passphrase,
		baseURL:    strings.TrimRight(opts.RestBaseURL, "/"),
		wsFeedURL:  strings.TrimRight(opts.WSFeedURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

func (c *Client) Name() string { return "coinbase" }

// ListProducts fetches every tradable pair. This is the only unauthenticated
// call the client makes.
func (c *Client) ListProducts(ctx context.Context) ([]core.TradingPair, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/products", nil, AuthNone)
	if err != nil {
		return nil, err
	}
	var resp []productResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	pairs := make([]core.TradingPair, 0, len(resp))
	for _, p := range resp {
		pair, err := parseProduct(p)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.ID, err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// PlaceMarketOrder submits one market order. An error payload instead of an
// order object is a hard submission failure and carries
// core.ErrSubmissionRejected; a returned order with rejected status is not
// an error here, the caller decides what to do with it.
func (c *Client) PlaceMarketOrder(ctx context.Context, spec exchange.MarketOrderSpec) (core.Order, error) {
	req := placeOrderRequest{
		Type:      "market",
		Side:      string(spec.Side),
		ProductID: spec.ProductID,
		ClientOID: spec.ClientOID,
	}
	switch {
	case spec.Funds.Sign() > 0:
		req.Funds = spec.Funds.String()
	case spec.Size.Sign() > 0:
		req.Size = spec.Size.String()
	default:
		return core.Order{}, errors.New("market order needs funds or size")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return core.Order{}, err
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/orders", payload, AuthSigned)
	if err != nil {
		return core.Order{}, errors.Join(core.ErrSubmissionRejected, err)
	}
	return parseOrder(body)
}

// GetOrder re-fetches an order by exchange id. A vanished order (typically
// cancelled out-of-band) comes back as core.ErrOrderNotFound.
func (c *Client) GetOrder(ctx context.Context, orderID string) (core.Order, error) {
	if orderID == "" {
		return core.Order{}, errors.New("order id required")
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/orders/"+orderID, nil, AuthSigned)
	if err != nil {
		return core.Order{}, err
	}
	return parseOrder(body)
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte, auth AuthType) ([]byte, error) {
	urlStr := c.baseURL + path
	var reqBody io.Reader
	if len(payload) > 0 {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth == AuthSigned {
		ts := strconv.FormatInt(c.now().Unix(), 10)
		signature, err := sign(c.apiSecret, ts, method, path, payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set("CB-ACCESS-KEY", c.apiKey)
		req.Header.Set("CB-ACCESS-SIGN", signature)
		req.Header.Set("CB-ACCESS-TIMESTAMP", ts)
		req.Header.Set("CB-ACCESS-PASSPHRASE", c.passphrase)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

// sign implements CB-ACCESS-SIGN: base64(HMAC-SHA256(base64decode(secret),
// timestamp + method + requestPath + body)).
func sign(secret, timestamp, method, path string, body []byte) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("api secret must be base64: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp + method + path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func parseAPIError(status int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return wrapAPIError(status, apiErr.Message)
	}
	return fmt.Errorf("coinbase http error %d: %s", status, strings.TrimSpace(string(body)))
}
