package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smmpanel/internal/model"
)

// KeySource supplies the provider API key for the current tenant. Returning
// an empty key (or an error) is a configuration problem surfaced to the
// caller, never retried here.
type KeySource func(ctx context.Context) (string, error)

// StaticKey returns a KeySource wrapping a fixed key from configuration.
func StaticKey(key string) KeySource {
	return func(context.Context) (string, error) {
		if key == "" {
			return "", model.ErrAPIKeyMissing
		}
		return key, nil
	}
}

// Client talks to the provider's v2 panel API: a single endpoint accepting
// form-encoded key/action requests.
type Client struct {
	baseURL string
	key     KeySource
	client  *http.Client
}

func NewClient(baseURL string, key KeySource) *Client {
	return &Client{
		baseURL: baseURL,
		key:     key,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// OrderStatus is the provider's view of one order. Numeric fields are
// coerced at decode; values the provider sends as garbage become nil.
type OrderStatus struct {
	Status     string
	Charge     *decimal.Decimal
	StartCount *int64
	Remains    *int64
	Currency   string
}

type Balance struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

func (c *Client) do(ctx context.Context, op string, form url.Values) ([]byte, error) {
	key, err := c.key(ctx)
	if err != nil {
		return nil, err
	}
	form.Set("key", key)
	form.Set("action", op)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.ProviderError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &model.ProviderError{Op: op, Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, body)}
	}

	// The provider reports failures as {"error": "..."} with HTTP 200.
	var fail struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &fail); err == nil && fail.Error != "" {
		return nil, &model.ProviderError{Op: op, Message: fail.Error}
	}

	return body, nil
}

// flexible accepts JSON strings and numbers interchangeably; the provider is
// not consistent about which it sends.
type flexible string

func (f *flexible) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*f = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexible(strings.TrimSpace(v))
		return nil
	}
	*f = flexible(s)
	return nil
}

func (f flexible) String() string { return string(f) }

func (f flexible) decimal() *decimal.Decimal {
	d, err := decimal.NewFromString(string(f))
	if err != nil {
		return nil
	}
	return &d
}

func (f flexible) int64() *int64 {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		// The provider sends fractional counts on occasion.
		d, derr := decimal.NewFromString(string(f))
		if derr != nil {
			return nil
		}
		n = d.IntPart()
	}
	return &n
}

// Services fetches the full catalog. Entries whose rate cannot be parsed are
// dropped — they cannot be priced and must not be orderable.
func (c *Client) Services(ctx context.Context) ([]model.Service, error) {
	body, err := c.do(ctx, "services", url.Values{})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Service  flexible `json:"service"`
		Name     string   `json:"name"`
		Type     string   `json:"type"`
		Category string   `json:"category"`
		Rate     flexible `json:"rate"`
		Min      flexible `json:"min"`
		Max      flexible `json:"max"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &model.ProviderError{Op: "services", Err: fmt.Errorf("decode response: %w", err)}
	}

	services := make([]model.Service, 0, len(raw))
	for _, r := range raw {
		rate := r.Rate.decimal()
		if r.Service.String() == "" || rate == nil {
			continue
		}
		svc := model.Service{
			ID:       r.Service.String(),
			Name:     r.Name,
			Type:     r.Type,
			Category: r.Category,
			UnitRate: *rate,
		}
		if n := r.Min.int64(); n != nil {
			svc.Min = int(*n)
		}
		if n := r.Max.int64(); n != nil {
			svc.Max = int(*n)
		}
		services = append(services, svc)
	}
	return services, nil
}

// AddOrder submits one order and returns the provider-assigned order id.
// There is no idempotency key: an ambiguous failure may or may not have
// created an order upstream.
func (c *Client) AddOrder(ctx context.Context, serviceID, link string, quantity int) (string, error) {
	form := url.Values{}
	form.Set("service", serviceID)
	form.Set("link", link)
	form.Set("quantity", strconv.Itoa(quantity))

	body, err := c.do(ctx, "add", form)
	if err != nil {
		return "", err
	}

	var res struct {
		Order flexible `json:"order"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", &model.ProviderError{Op: "add", Err: fmt.Errorf("decode response: %w", err)}
	}
	if res.Order.String() == "" {
		return "", &model.ProviderError{Op: "add", Message: "no order id in response"}
	}
	return res.Order.String(), nil
}

// Status queries the provider for many orders in one call (comma-joined id
// list). The result is keyed by provider order id; ids the provider did not
// answer for (or answered with a per-id error) are absent from the map.
func (c *Client) Status(ctx context.Context, providerOrderIDs []string) (map[string]OrderStatus, error) {
	if len(providerOrderIDs) == 0 {
		return map[string]OrderStatus{}, nil
	}

	form := url.Values{}
	form.Set("orders", strings.Join(providerOrderIDs, ","))

	body, err := c.do(ctx, "status", form)
	if err != nil {
		return nil, err
	}

	type rawStatus struct {
		Status     string   `json:"status"`
		Charge     flexible `json:"charge"`
		StartCount flexible `json:"start_count"`
		Remains    flexible `json:"remains"`
		Currency   string   `json:"currency"`
		Error      string   `json:"error"`
	}

	keyed := map[string]rawStatus{}
	if err := json.Unmarshal(body, &keyed); err != nil {
		// A single-id query returns the status object unkeyed.
		var single rawStatus
		if serr := json.Unmarshal(body, &single); serr != nil || len(providerOrderIDs) != 1 {
			return nil, &model.ProviderError{Op: "status", Err: fmt.Errorf("decode response: %w", err)}
		}
		keyed = map[string]rawStatus{providerOrderIDs[0]: single}
	}

	out := make(map[string]OrderStatus, len(keyed))
	for id, r := range keyed {
		if r.Error != "" || r.Status == "" {
			continue
		}
		out[id] = OrderStatus{
			Status:     r.Status,
			Charge:     r.Charge.decimal(),
			StartCount: r.StartCount.int64(),
			Remains:    r.Remains.int64(),
			Currency:   r.Currency,
		}
	}
	return out, nil
}

// Balance returns the remaining provider account balance.
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	body, err := c.do(ctx, "balance", url.Values{})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Balance  flexible `json:"balance"`
		Currency string   `json:"currency"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &model.ProviderError{Op: "balance", Err: fmt.Errorf("decode response: %w", err)}
	}
	b := raw.Balance.decimal()
	if b == nil {
		return nil, &model.ProviderError{Op: "balance", Message: "no balance in response"}
	}
	return &Balance{Balance: *b, Currency: raw.Currency}, nil
}
