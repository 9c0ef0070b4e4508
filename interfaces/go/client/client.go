package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"replay-proxy/internal/domain"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Dialer  *websocket.Dialer
}

func New(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimSuffix(baseURL, "/"), HTTP: http.DefaultClient, Dialer: websocket.DefaultDialer}
}

// StatusError is returned for non-2xx admin responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("replay-proxy: status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Stats(ctx context.Context) (domain.Stats, error) {
	var s domain.Stats
	err := c.do(ctx, http.MethodGet, "/stats/", &s)
	return s, err
}

func (c *Client) ClearStats(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/stats/", nil)
}

// StartRecording returns a *StatusError with code 409 while a session is active.
func (c *Client) StartRecording(ctx context.Context, title string) error {
	return c.do(ctx, http.MethodPost, "/scenarios/startRecording?title="+url.QueryEscape(title), nil)
}

// FinishRecording closes the session; save registers its responses for playback.
func (c *Client) FinishRecording(ctx context.Context, save bool) (domain.Scenario, error) {
	var sc domain.Scenario
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/scenarios/finishRecording?save=%t", save), &sc)
	return sc, err
}

// Dashboard is a live, merged view of the proxy's stats.
type Dashboard struct {
	mu    sync.RWMutex
	stats domain.Stats
}

// Snapshot returns a copy of the current merged view.
func (d *Dashboard) Snapshot() domain.Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats.Clone()
}

func (d *Dashboard) apply(m feedMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch m.Type {
	case "stats_dump":
		s := domain.NewStats()
		if err := json.Unmarshal(m.Data, &s); err != nil {
			return err
		}
		d.stats = s
	case "stats_updated":
		var delta domain.Stats
		if err := json.Unmarshal(m.Data, &delta); err != nil {
			return err
		}
		if d.stats.Responses == nil {
			d.stats = domain.NewStats()
		}
		d.stats.Merge(delta)
	case "stats_cleared":
		d.stats = domain.NewStats()
	}
	return nil
}

type feedMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Watch connects to the live feed and keeps dash up to date until ctx is done or the
// connection fails. onChange, if set, runs after every applied message.
func (c *Client) Watch(ctx context.Context, dash *Dashboard, onChange func(domain.Stats)) error {
	u := "ws" + strings.TrimPrefix(c.BaseURL, "http") + "/stats/ws"
	conn, _, err := c.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	for {
		var m feedMessage
		if err := conn.ReadJSON(&m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := dash.apply(m); err != nil {
			return fmt.Errorf("replay-proxy: decode %s: %w", m.Type, err)
		}
		if onChange != nil {
			onChange(dash.Snapshot())
		}
	}
}
