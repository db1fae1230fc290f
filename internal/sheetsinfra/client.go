// Package sheetsinfra implements store.TableStore against a hosted
// Sheets-v4-style REST API: bearer-token authentication, a bounded
// session pool, and exponential-backoff retries with the error
// classification the repositories rely on.
package sheetsinfra

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

	"go.uber.org/zap"

	"github.com/fundwise/fundsheet/store"
)

const defaultBaseURL = "https://sheets.googleapis.com"

// Config carries everything the client needs. TokenSource is required;
// the rest defaults sensibly.
type Config struct {
	BaseURL        string
	TokenSource    TokenSource
	Retry          store.RetryConfig
	MaxConnections int
	Logger         *zap.Logger

	// HTTPClient, when set, is shared by every pooled session. Tests use
	// this to intercept transport; production leaves it nil so each
	// session owns its connections.
	HTTPClient *http.Client
}

// Client talks to the remote spreadsheet API. It implements
// store.TableStore.
type Client struct {
	baseURL string
	tokens  TokenSource
	retry   store.RetryConfig
	pool    *sessionPool
	log     *zap.Logger

	// sleep is swapped out in tests to observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ store.TableStore = (*Client)(nil)

// NewClient validates the configuration and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.TokenSource == nil {
		return nil, &store.AuthError{Reason: "no token source configured"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Retry == (store.RetryConfig{}) {
		cfg.Retry = store.DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	pool := newSessionPool(cfg.MaxConnections)
	if cfg.HTTPClient != nil {
		shared := cfg.HTTPClient
		pool.newClient = func() *http.Client { return shared }
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		tokens:  cfg.TokenSource,
		retry:   cfg.Retry,
		pool:    pool,
		log:     cfg.Logger,
		sleep:   sleepContext,
	}, nil
}

// PoolStats exposes pool instrumentation for tests and health reporting.
func (c *Client) PoolStats() (inUse, peak int) {
	return c.pool.InUse(), c.pool.PeakInUse()
}

// httpStatusError is the internal carrier between request execution and
// retry classification.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, e.body)
}

// execute runs op with a pooled session and retries per the policy:
// 401 and plain 403 never retry, quota 403 and 5xx retry with backoff,
// other HTTP statuses fail fast, transport errors retry.
func (c *Client) execute(ctx context.Context, name string, op func(ctx context.Context, s *session) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		err := c.withSession(ctx, op)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err

		var httpErr *httpStatusError
		if errors.As(err, &httpErr) {
			switch {
			case httpErr.status == http.StatusUnauthorized:
				c.tokens.Invalidate()
				return &store.AuthError{Reason: name, Err: err}

			case httpErr.status == http.StatusForbidden && isQuotaError(httpErr.body):
				if attempt < c.retry.MaxRetries {
					delay := c.retry.Delay(attempt)
					c.log.Warn("rate limit hit, backing off",
						zap.String("op", name), zap.Duration("delay", delay), zap.Int("attempt", attempt+1))
					if serr := c.sleep(ctx, delay); serr != nil {
						return serr
					}
					continue
				}
				return &store.RateLimitError{Attempts: attempt + 1, Err: err}

			case httpErr.status == http.StatusForbidden:
				return &store.PermissionError{Reason: httpErr.body}

			case httpErr.status >= 500:
				if attempt < c.retry.MaxRetries {
					delay := c.retry.Delay(attempt)
					c.log.Warn("server error, backing off",
						zap.String("op", name), zap.Duration("delay", delay), zap.Int("attempt", attempt+1))
					if serr := c.sleep(ctx, delay); serr != nil {
						return serr
					}
					continue
				}
				return &store.ConnectionError{Attempts: attempt + 1, Err: err}

			default:
				return &store.StoreError{StatusCode: httpErr.status, Body: httpErr.body}
			}
		}

		// Auth failures from the token source are final.
		var authErr *store.AuthError
		if errors.As(err, &authErr) {
			return err
		}

		// Transport-level failure: retry, then surface as connection error.
		if attempt < c.retry.MaxRetries {
			delay := c.retry.Delay(attempt)
			c.log.Warn("operation failed, backing off",
				zap.String("op", name), zap.Duration("delay", delay),
				zap.Int("attempt", attempt+1), zap.Error(err))
			if serr := c.sleep(ctx, delay); serr != nil {
				return serr
			}
			continue
		}
	}
	return &store.ConnectionError{Attempts: c.retry.MaxRetries + 1, Err: lastErr}
}

func (c *Client) withSession(ctx context.Context, op func(ctx context.Context, s *session) error) error {
	s, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Release(s)
	return op(ctx, s)
}

func isQuotaError(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "quota") || strings.Contains(lower, "rate")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// valuesURL builds .../v4/spreadsheets/{id}/values/{range}{suffix}.
func (c *Client) valuesURL(tableID, rng, suffix string, query url.Values) string {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s%s", c.baseURL, url.PathEscape(tableID), url.PathEscape(rng), suffix)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// ReadRange implements store.TableStore.
func (c *Client) ReadRange(ctx context.Context, tableID, rng string) ([][]string, error) {
	var rows [][]string
	err := c.execute(ctx, "read_range", func(ctx context.Context, s *session) error {
		u := c.valuesURL(tableID, rng, "", url.Values{"valueRenderOption": {"FORMATTED_VALUE"}})
		var payload struct {
			Values [][]string `json:"values"`
		}
		if err := c.do(ctx, s, http.MethodGet, u, nil, &payload); err != nil {
			return err
		}
		rows = payload.Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Debug("read range", zap.String("range", rng), zap.Int("rows", len(rows)))
	if rows == nil {
		rows = [][]string{}
	}
	return rows, nil
}

type valueRangeBody struct {
	Range          string     `json:"range,omitempty"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

// WriteRange implements store.TableStore.
func (c *Client) WriteRange(ctx context.Context, tableID, rng string, rows [][]string) error {
	err := c.execute(ctx, "write_range", func(ctx context.Context, s *session) error {
		u := c.valuesURL(tableID, rng, "", url.Values{"valueInputOption": {"RAW"}})
		body := valueRangeBody{Range: rng, MajorDimension: "ROWS", Values: rows}
		return c.do(ctx, s, http.MethodPut, u, body, nil)
	})
	if err == nil {
		c.log.Debug("wrote range", zap.String("range", rng), zap.Int("rows", len(rows)))
	}
	return err
}

// AppendRows implements store.TableStore.
func (c *Client) AppendRows(ctx context.Context, tableID, rng string, rows [][]string) error {
	err := c.execute(ctx, "append_rows", func(ctx context.Context, s *session) error {
		u := c.valuesURL(tableID, rng, ":append", url.Values{
			"valueInputOption": {"RAW"},
			"insertDataOption": {"INSERT_ROWS"},
		})
		body := valueRangeBody{MajorDimension: "ROWS", Values: rows}
		return c.do(ctx, s, http.MethodPost, u, body, nil)
	})
	if err == nil {
		c.log.Debug("appended rows", zap.String("range", rng), zap.Int("rows", len(rows)))
	}
	return err
}

// ClearRange implements store.TableStore.
func (c *Client) ClearRange(ctx context.Context, tableID, rng string) error {
	err := c.execute(ctx, "clear_range", func(ctx context.Context, s *session) error {
		u := c.valuesURL(tableID, rng, ":clear", nil)
		return c.do(ctx, s, http.MethodPost, u, struct{}{}, nil)
	})
	if err == nil {
		c.log.Debug("cleared range", zap.String("range", rng))
	}
	return err
}

// BatchUpdate implements store.TableStore. Writes are grouped into one
// values:batchUpdate call and clears into one values:batchClear call;
// appends are issued individually since the API has no batch append.
func (c *Client) BatchUpdate(ctx context.Context, tableID string, reqs []store.BatchRequest) error {
	var writes []valueRangeBody
	var clears []string
	var appends []store.BatchRequest
	for _, r := range reqs {
		switch {
		case r.WriteRange != "":
			writes = append(writes, valueRangeBody{Range: r.WriteRange, MajorDimension: "ROWS", Values: r.Rows})
		case r.ClearRange != "":
			clears = append(clears, r.ClearRange)
		case r.AppendRange != "":
			appends = append(appends, r)
		}
	}

	if len(writes) > 0 {
		err := c.execute(ctx, "batch_update", func(ctx context.Context, s *session) error {
			u := fmt.Sprintf("%s/v4/spreadsheets/%s/values:batchUpdate", c.baseURL, url.PathEscape(tableID))
			body := map[string]any{"valueInputOption": "RAW", "data": writes}
			return c.do(ctx, s, http.MethodPost, u, body, nil)
		})
		if err != nil {
			return err
		}
	}
	if len(clears) > 0 {
		err := c.execute(ctx, "batch_clear", func(ctx context.Context, s *session) error {
			u := fmt.Sprintf("%s/v4/spreadsheets/%s/values:batchClear", c.baseURL, url.PathEscape(tableID))
			return c.do(ctx, s, http.MethodPost, u, map[string]any{"ranges": clears}, nil)
		})
		if err != nil {
			return err
		}
	}
	for _, r := range appends {
		if err := c.AppendRows(ctx, tableID, r.AppendRange, r.Rows); err != nil {
			return err
		}
	}
	return nil
}

// Metadata implements store.TableStore.
func (c *Client) Metadata(ctx context.Context, tableID string) (*store.TableMetadata, error) {
	var meta *store.TableMetadata
	err := c.execute(ctx, "metadata", func(ctx context.Context, s *session) error {
		u := fmt.Sprintf("%s/v4/spreadsheets/%s?includeGridData=false", c.baseURL, url.PathEscape(tableID))
		var payload struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
			Sheets []struct {
				Properties struct {
					Title          string `json:"title"`
					GridProperties struct {
						RowCount    int `json:"rowCount"`
						ColumnCount int `json:"columnCount"`
					} `json:"gridProperties"`
				} `json:"properties"`
			} `json:"sheets"`
		}
		if err := c.do(ctx, s, http.MethodGet, u, nil, &payload); err != nil {
			return err
		}
		meta = &store.TableMetadata{Title: payload.Properties.Title}
		for _, sh := range payload.Sheets {
			meta.Sheets = append(meta.Sheets, store.SheetInfo{
				Title:    sh.Properties.Title,
				RowCount: sh.Properties.GridProperties.RowCount,
				ColCount: sh.Properties.GridProperties.ColumnCount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// HealthCheck implements store.TableStore: a token plus a pooled session
// must both be obtainable.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if _, err := c.tokens.Token(ctx); err != nil {
		c.log.Error("health check failed", zap.Error(err))
		return false
	}
	s, err := c.pool.Acquire(ctx)
	if err != nil {
		c.log.Error("health check failed", zap.Error(err))
		return false
	}
	c.pool.Release(s)
	return true
}

// do performs one authenticated HTTP round trip, decoding the JSON
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, s *session, method, u string, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &httpStatusError{status: resp.StatusCode, body: snippet(raw)}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
