package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/meetkosiso/Multi-Agent-Assistant/types"
)

const (
	defaultBaseURL    = "http://localhost:8001"
	defaultAPIVersion = "v1"
	defaultTimeout    = 15 * time.Second

	catalogAttempts    = 3
	catalogBackoffBase = 2 * time.Second
	catalogBackoffMax  = 10 * time.Second
)

// Config holds connection settings for a remote command server.
type Config struct {
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	APIVersion string        `yaml:"api_version" json:"api_version"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// Client talks to a remote command server. The command catalog is
// fetched over the network at most once per client lifetime: the first
// caller triggers the fetch (retried on transient failures), concurrent
// callers share that in-flight fetch, and every later call serves the
// cached copy. Execution requests are never retried.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	sf      singleflight.Group
	mu      sync.RWMutex
	catalog map[string]Command

	// sleep waits out a retry backoff; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a command server client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "mcp_client")),
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		strings.Trim(c.cfg.APIVersion, "/"),
		path)
}

// ListCommands returns the server's command catalog, sorted by name.
// The first call fetches it; subsequent calls return the cached copy.
func (c *Client) ListCommands(ctx context.Context) ([]Command, error) {
	if err := c.ensureCatalog(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Command, 0, len(c.catalog))
	for _, cmd := range c.catalog {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CallCommand validates args against the named command's schema and
// executes it on the server. Validation failures and unknown command
// names are rejected locally, before any execution request goes out.
func (c *Client) CallCommand(ctx context.Context, name string, args map[string]any) (any, error) {
	if err := c.ensureCatalog(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	cmd, ok := c.catalog[name]
	c.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrCommandNotFound,
			fmt.Sprintf("command %q not found in catalog", name))
	}

	validated, err := cmd.Parameters.Validate(args)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(executeRequest{Command: name, Parameters: validated})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/execute"), bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "building execute request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("executing command", zap.String("command", name))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrTransport,
			fmt.Sprintf("executing command %q", name)).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, types.NewError(types.ErrCommandNotFound,
			fmt.Sprintf("command %q not found on server", name)).WithHTTPStatus(resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewError(types.ErrTransport,
			fmt.Sprintf("command %q failed: %s", name, readErrBody(resp.Body))).
			WithHTTPStatus(resp.StatusCode)
	}

	var execResp executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&execResp); err != nil {
		return nil, types.NewError(types.ErrProtocol, "decoding execute response").WithCause(err)
	}

	var result any
	if len(execResp.Result) > 0 {
		if err := json.Unmarshal(execResp.Result, &result); err != nil {
			return nil, types.NewError(types.ErrProtocol, "decoding execute result").WithCause(err)
		}
	}
	return result, nil
}

// ensureCatalog populates the catalog exactly once. Concurrent first
// callers are collapsed into a single fetch via singleflight.
func (c *Client) ensureCatalog(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.catalog != nil
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := c.sf.Do("catalog", func() (any, error) {
		c.mu.RLock()
		loaded := c.catalog != nil
		c.mu.RUnlock()
		if loaded {
			return nil, nil
		}

		catalog, err := c.fetchCatalog(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.catalog = catalog
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

// fetchCatalog performs the GET /commands request, retrying transient
// connection and timeout failures with exponential backoff. HTTP error
// statuses are not retried, and the final attempt's error is returned
// as-is.
func (c *Client) fetchCatalog(ctx context.Context) (map[string]Command, error) {
	var lastErr error

	for attempt := 1; attempt <= catalogAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(attempt - 1)
			c.logger.Debug("retrying catalog fetch",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, types.NewError(types.ErrTransport, "catalog fetch canceled").WithCause(err)
			}
		}

		catalog, err := c.fetchCatalogOnce(ctx)
		if err == nil {
			c.logger.Info("command catalog loaded", zap.Int("commands", len(catalog)))
			return catalog, nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			return nil, err
		}
	}

	c.logger.Warn("catalog fetch attempts exhausted", zap.Error(lastErr))
	return nil, lastErr
}

func (c *Client) fetchCatalogOnce(ctx context.Context) (map[string]Command, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/commands"), nil)
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "building catalog request").WithCause(err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "fetching command catalog").
			WithCause(err).
			WithRetryable(isTransientNetErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewError(types.ErrTransport,
			fmt.Sprintf("catalog fetch failed: %s", readErrBody(resp.Body))).
			WithHTTPStatus(resp.StatusCode)
	}

	var wire []wireCommand
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, types.NewError(types.ErrProtocol, "decoding command catalog").WithCause(err)
	}

	catalog := make(map[string]Command, len(wire))
	for _, wc := range wire {
		if wc.Name == "" {
			return nil, types.NewError(types.ErrProtocol, "catalog entry missing name")
		}
		if _, exists := catalog[wc.Name]; exists {
			return nil, types.NewError(types.ErrProtocol,
				fmt.Sprintf("catalog entry %q duplicated", wc.Name))
		}
		schema, err := types.ParseParameterSchema(wc.Parameters)
		if err != nil {
			return nil, types.NewError(types.ErrProtocol,
				fmt.Sprintf("catalog entry %q has invalid parameters", wc.Name)).WithCause(err)
		}
		catalog[wc.Name] = Command{
			Name:        wc.Name,
			Description: wc.Description,
			Parameters:  schema,
		}
	}
	return catalog, nil
}

func backoffDelay(retry int) time.Duration {
	delay := catalogBackoffBase << (retry - 1)
	if delay > catalogBackoffMax {
		delay = catalogBackoffMax
	}
	return delay
}

// isTransientNetErr reports whether a request failed at the connection
// layer (refused, reset, timed out, truncated read) rather than with an
// HTTP-level response.
func isTransientNetErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func readErrBody(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp errorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return strings.TrimSpace(string(data))
}
