// Package proxy forwards the dashboard's weather, news and clothing widgets
// to their third-party APIs. Responses pass through unchanged except for the
// news feed, which is reduced to its first item.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/geocoder89/dashboard/internal/apperr"
	"github.com/geocoder89/dashboard/internal/cache"
	"github.com/geocoder89/dashboard/internal/observability"
)

const maxUpstreamBody = 5 << 20

// maxFeedBreakers caps the per-host news breakers kept in memory.
const maxFeedBreakers = 256

var errInvalidJSON = errors.New("upstream returned invalid json")

const (
	upstreamWeather = "weather"
	upstreamNews    = "news"
	upstreamClothes = "clothes"
)

type Config struct {
	WeatherURL    string
	WeatherAPIKey string
	ClothesURL    string
	Timeout       time.Duration
	Breaker       BreakerConfig
}

// Metrics receives one observation per upstream call. Nil is allowed.
type Metrics interface {
	ObserveUpstream(upstream, result string, d time.Duration)
}

type Client struct {
	cfg      Config
	http     *http.Client
	cache    cache.Store
	metrics  Metrics
	log      *slog.Logger
	breakers map[string]*Breaker

	// news feeds are client supplied, so each host gets its own breaker
	feedMu       sync.Mutex
	feedBreakers map[string]*Breaker
}

// New builds a Client. store may be nil to disable caching.
func New(cfg Config, httpClient *http.Client, store cache.Store, metrics Metrics, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		cache:   store,
		metrics: metrics,
		log:     log,
		breakers: map[string]*Breaker{
			upstreamWeather: NewBreaker(cfg.Breaker),
			upstreamNews:    NewBreaker(cfg.Breaker),
			upstreamClothes: NewBreaker(cfg.Breaker),
		},
		feedBreakers: make(map[string]*Breaker),
	}
}

func (c *Client) Weather(ctx context.Context, lat, lon string) (json.RawMessage, error) {
	if lat == "" || lon == "" {
		return nil, apperr.Validation("Latitude and longitude are required", nil)
	}

	u, err := url.Parse(c.cfg.WeatherURL)
	if err != nil {
		return nil, apperr.Dependency("Failed to fetch weather data", err)
	}

	coords := url.Values{"lat": {lat}, "lon": {lon}}
	key := "weather:" + coords.Encode()

	q := u.Query()
	q.Set("lat", lat)
	q.Set("lon", lon)
	q.Set("appid", c.cfg.WeatherAPIKey)
	q.Set("units", "imperial")
	u.RawQuery = q.Encode()

	body, err := c.fetch(ctx, upstreamWeather, key, u.String(), checkJSON)
	if err != nil {
		return nil, apperr.Dependency("Failed to fetch weather data", err)
	}
	return json.RawMessage(body), nil
}

func (c *Client) Clothes(ctx context.Context) (json.RawMessage, error) {
	body, err := c.fetch(ctx, upstreamClothes, "clothes", c.cfg.ClothesURL, checkJSON)
	if err != nil {
		return nil, apperr.Dependency("Failed to fetch clothing data", err)
	}
	return json.RawMessage(body), nil
}

// fetch GETs target, consulting the cache under key first. A body is cached
// only when check accepts it. Only transport and status failures count
// against the breaker; a body check fails just this call.
func (c *Client) fetch(ctx context.Context, upstream, key, target string, check func([]byte) error) ([]byte, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, key); ok {
			c.observe(upstream, "cache_hit", 0)
			return body, nil
		}
	}

	var body []byte
	start := time.Now()

	err := c.breakerFor(upstream, target).Do(ctx, func(ctx context.Context) error {
		var err error
		body, err = c.get(ctx, target)
		return err
	})

	switch {
	case errors.Is(err, ErrCircuitOpen):
		c.observe(upstream, "circuit_open", 0)
	case err != nil:
		c.observe(upstream, "error", time.Since(start))
	default:
		if err = check(body); err != nil {
			c.observe(upstream, "invalid_body", time.Since(start))
		} else {
			c.observe(upstream, "ok", time.Since(start))
		}
	}

	if err != nil {
		observability.LogError(ctx, c.log, "upstream request failed", err, "upstream", upstream)
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(ctx, key, body)
	}

	return body, nil
}

func (c *Client) breakerFor(upstream, target string) *Breaker {
	if upstream != upstreamNews {
		return c.breakers[upstream]
	}

	u, err := url.Parse(target)
	if err != nil {
		return c.breakers[upstream]
	}

	c.feedMu.Lock()
	defer c.feedMu.Unlock()

	if b, ok := c.feedBreakers[u.Host]; ok {
		return b
	}

	if len(c.feedBreakers) >= maxFeedBreakers {
		for host, b := range c.feedBreakers {
			if b.State() == stateClosed {
				delete(c.feedBreakers, host)
			}
		}
	}
	// every tracked host is failing; share one breaker until some recover
	if len(c.feedBreakers) >= maxFeedBreakers {
		return c.breakers[upstream]
	}

	b := NewBreaker(c.cfg.Breaker)
	c.feedBreakers[u.Host] = b
	return b
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxUpstreamBody))
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
}

func (c *Client) observe(upstream, result string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveUpstream(upstream, result, d)
	}
}

func checkJSON(body []byte) error {
	if !json.Valid(body) {
		return errInvalidJSON
	}
	return nil
}
