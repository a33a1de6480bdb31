// Package client talks to a factguard node over its REST surface.
package client

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/usecase"
	"github.com/totegamma/factguard/schemas"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 30 * time.Second
	wellKnownPath   = "/.well-known/factguard"
	wellKnownKey    = "wellknown"
	userAgent       = "factguard-client/1.0"
)

// Client is a RegistryAdmin backed by a remote node. Mutations are signed
// with key and submitted as commands; reads need no key.
type Client struct {
	client  *http.Client
	cache   *cache.Cache
	baseURL string
	key     *ecdsa.PrivateKey
	now     func() time.Time
}

var _ usecase.RegistryAdmin = (*Client)(nil)

type Option func(*Client)

// WithCacheTTL sets how long superseded and withdrawn entries looked up by hash are reused.
// Active entries are always read from the node.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cache = cache.New(ttl, 2*ttl)
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.client.Timeout = timeout }
}

// New returns a client for the node at baseURL. key may be nil for read-only use.
func New(baseURL string, key *ecdsa.PrivateKey, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{Timeout: defaultTimeout},
		cache:   cache.New(defaultCacheTTL, 2*defaultCacheTTL),
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		now:     time.Now,
	}
	c.client.Transport = c
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

type errorResponse struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code"`
}

// request performs one JSON round trip. Registry rejections come back as
// domain errors; anything that leaves the outcome unknown is a transport error.
func (c *Client) request(ctx context.Context, method, path string, body, response any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Transport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Code != "" {
			return domain.NewError(e.Code, "%s", strings.TrimPrefix(e.Error, string(e.Code)+": "))
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return domain.Transport(op, fmt.Errorf("status %d: %s", resp.StatusCode, e.Error))
		}
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, e.Error)
	}

	if response == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return domain.Transport(op, fmt.Errorf("failed to decode response: %v", err))
	}
	return nil
}

// WellKnown fetches the node description once and reuses it.
func (c *Client) WellKnown(ctx context.Context) (factguard.WellKnown, error) {
	if x, found := c.cache.Get(wellKnownKey); found {
		return x.(factguard.WellKnown), nil
	}

	var wk factguard.WellKnown
	if err := c.request(ctx, http.MethodGet, wellKnownPath, nil, &wk); err != nil {
		return factguard.WellKnown{}, err
	}
	c.cache.Set(wellKnownKey, wk, cache.NoExpiration)
	return wk, nil
}

// endpoint expands the template the node advertises for name.
func (c *Client) endpoint(ctx context.Context, name string, params map[string]string) (string, error) {
	wk, err := c.WellKnown(ctx)
	if err != nil {
		return "", err
	}
	ep, ok := wk.Endpoints[name]
	if !ok {
		return "", fmt.Errorf("node does not serve %s", name)
	}
	path := ep.Template
	for k, v := range params {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}
	return path, nil
}

func entryKey(hash factguard.FactHash) string {
	return "entry:" + hash.Hex()
}

type existsResponse struct {
	Exists bool              `json:"exists"`
	Status *factguard.Status `json:"status"`
}

func (c *Client) Exists(ctx context.Context, hash factguard.FactHash) (bool, factguard.Status, error) {
	path, err := c.endpoint(ctx, "dev.factguard.fact.exists", map[string]string{"hash": hash.Hex()})
	if err != nil {
		return false, 0, err
	}
	var res existsResponse
	if err := c.request(ctx, http.MethodGet, path, nil, &res); err != nil {
		return false, 0, err
	}
	if !res.Exists || res.Status == nil {
		return false, 0, nil
	}
	return true, *res.Status, nil
}

func (c *Client) LookupByHash(ctx context.Context, hash factguard.FactHash) (domain.RegistryEntry, error) {
	if x, found := c.cache.Get(entryKey(hash)); found {
		return x.(domain.RegistryEntry), nil
	}

	path, err := c.endpoint(ctx, "dev.factguard.fact", map[string]string{"hash": hash.Hex()})
	if err != nil {
		return domain.RegistryEntry{}, err
	}
	var entry domain.RegistryEntry
	if err := c.request(ctx, http.MethodGet, path, nil, &entry); err != nil {
		return domain.RegistryEntry{}, err
	}
	// an active entry can be withdrawn by another writer at any time
	if entry.Status.Terminal() {
		c.cache.Set(entryKey(hash), entry, cache.DefaultExpiration)
	}
	return entry, nil
}

// LookupByID is never cached; the binding moves when a fact is re-registered.
func (c *Client) LookupByID(ctx context.Context, factID string) (domain.RegistryEntry, error) {
	path, err := c.endpoint(ctx, "dev.factguard.fact.byId", map[string]string{"factId": factID})
	if err != nil {
		return domain.RegistryEntry{}, err
	}
	var entry domain.RegistryEntry
	if err := c.request(ctx, http.MethodGet, path, nil, &entry); err != nil {
		return domain.RegistryEntry{}, err
	}
	return entry, nil
}

func (c *Client) Stats(ctx context.Context) (domain.Stats, error) {
	path, err := c.endpoint(ctx, "dev.factguard.stats", nil)
	if err != nil {
		return domain.Stats{}, err
	}
	var stats domain.Stats
	if err := c.request(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

func commit[T any](ctx context.Context, c *Client, schema string, value T) (domain.Receipt, error) {
	if c.key == nil {
		return domain.Receipt{}, domain.NewError(domain.CodeUnauthorized, "client has no signing key")
	}
	sd, err := factguard.SignCommand(schema, value, c.key, c.now())
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("failed to sign command: %v", err)
	}
	path, err := c.endpoint(ctx, "dev.factguard.commit", nil)
	if err != nil {
		return domain.Receipt{}, err
	}
	var receipt domain.Receipt
	if err := c.request(ctx, http.MethodPost, path, sd, &receipt); err != nil {
		return domain.Receipt{}, err
	}
	return receipt, nil
}

func (c *Client) Register(ctx context.Context, reg domain.Registration) (domain.Receipt, error) {
	return commit(ctx, c, schemas.RegisterFactURL, schemas.RegisterFact{
		FactHash:       reg.FactHash,
		FactID:         reg.FactID,
		Verdict:        reg.Verdict,
		Severity:       reg.Severity,
		IssuedAt:       reg.IssuedAt,
		LastReviewedAt: reg.LastReviewedAt,
		Version:        reg.Version,
		Record:         reg.Record,
	})
}

func (c *Client) UpdateStatus(ctx context.Context, hash factguard.FactHash, status factguard.Status) (domain.Receipt, error) {
	receipt, err := commit(ctx, c, schemas.UpdateStatusURL, schemas.UpdateStatus{FactHash: hash, Status: status})
	c.cache.Delete(entryKey(hash))
	return receipt, err
}

func (c *Client) TransferWriter(ctx context.Context, next factguard.Identity) (domain.Receipt, error) {
	return commit(ctx, c, schemas.TransferWriterURL, schemas.TransferWriter{Writer: next.Hex()})
}

func (c *Client) Verify(ctx context.Context, claim domain.NormalizedClaim) (domain.VerificationOutcome, error) {
	path, err := c.endpoint(ctx, "dev.factguard.verify", nil)
	if err != nil {
		return domain.VerificationOutcome{}, err
	}
	var outcome domain.VerificationOutcome
	if err := c.request(ctx, http.MethodPost, path, claim, &outcome); err != nil {
		return domain.VerificationOutcome{}, err
	}
	return outcome, nil
}

func (c *Client) Check(ctx context.Context, text, channel string) (domain.CheckResult, error) {
	path, err := c.endpoint(ctx, "dev.factguard.check", nil)
	if err != nil {
		return domain.CheckResult{}, err
	}
	var result domain.CheckResult
	body := map[string]string{"text": text, "channel": channel}
	if err := c.request(ctx, http.MethodPost, path, body, &result); err != nil {
		return domain.CheckResult{}, err
	}
	return result, nil
}
