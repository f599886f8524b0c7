package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/derekk024/TelemetryOps/internal/models"
)

// DefaultTimeout applies to each of connect, read and write when unset.
const DefaultTimeout = 2 * time.Second

// Timeouts bound every remote call. Connect limits the dial, Write limits each
// write of the request and Read limits the wait for response headers. Their
// sum caps the whole call. A call that exceeds any of them is a fetch failure.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Connect <= 0 {
		t.Connect = DefaultTimeout
	}
	if t.Read <= 0 {
		t.Read = DefaultTimeout
	}
	if t.Write <= 0 {
		t.Write = DefaultTimeout
	}
	return t
}

// dialer connects within t.Connect and arms a t.Write deadline before every
// write on the resulting connection.
func dialer(t Timeouts) func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: t.Connect}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &writeDeadlineConn{Conn: conn, timeout: t.Write}, nil
	}
}

type writeDeadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *writeDeadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

// Client calls a remote aggregator's /metrics endpoint.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for the aggregator at baseURL, e.g.
// "http://127.0.0.1:8082".
func NewClient(baseURL string, t Timeouts) *Client {
	t = t.withDefaults()
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer(t),
		ResponseHeaderTimeout: t.Read,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: transport,
			Timeout:   t.Connect + t.Write + t.Read,
		},
	}
}

// Aggregate fetches one snapshot. Transport errors, timeouts, non-200
// responses, unparseable bodies and {ok:false} all yield FetchedOK false.
func (c *Client) Aggregate(ctx context.Context, entityID string, windowS int, _ time.Time) models.MetricsSnapshot {
	snap, err := c.fetch(ctx, entityID, windowS)
	if err != nil {
		return models.FailedSnapshot(entityID, windowS, &FetchError{EntityID: entityID, Err: err})
	}
	return snap
}

func (c *Client) fetch(ctx context.Context, entityID string, windowS int) (models.MetricsSnapshot, error) {
	q := url.Values{}
	q.Set("sat_id", entityID)
	q.Set("window_s", strconv.Itoa(windowS))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/metrics?"+q.Encode(), nil)
	if err != nil {
		return models.MetricsSnapshot{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return models.MetricsSnapshot{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.MetricsSnapshot{}, fmt.Errorf("reading body: %w", err)
	}

	var snap models.MetricsSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		if resp.StatusCode != http.StatusOK {
			return models.MetricsSnapshot{}, fmt.Errorf("aggregator returned %d", resp.StatusCode)
		}
		return models.MetricsSnapshot{}, fmt.Errorf("decoding body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if snap.Error != "" {
			return models.MetricsSnapshot{}, fmt.Errorf("aggregator returned %d: %s", resp.StatusCode, snap.Error)
		}
		return models.MetricsSnapshot{}, fmt.Errorf("aggregator returned %d", resp.StatusCode)
	}
	if !snap.FetchedOK {
		if snap.Error == "" {
			snap.Error = "metrics not ok"
		}
		return models.MetricsSnapshot{}, errors.New(snap.Error)
	}
	if snap.EntityID == "" {
		snap.EntityID = entityID
	}
	return snap, nil
}

// Health probes {base}/health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("aggregator health returned %d", resp.StatusCode)
	}
	return nil
}
