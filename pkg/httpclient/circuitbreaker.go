package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this breaker in metrics and logs.
	Name string

	// MaxRequests is the number of requests allowed through while half-open.
	// 0 means 1 request is allowed.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	// 0 means counts are never cleared while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio trips the breaker once failures/requests reaches it.
	FailureRatio float64

	// MinRequests is the number of requests needed before the ratio is evaluated.
	MinRequests uint32
}

// DefaultCircuitBreakerConfig returns sensible defaults for a circuit breaker.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// FallbackFunc is invoked instead of returning ErrCircuitOpen when a fallback is configured.
type FallbackFunc func(ctx context.Context, err error) (*http.Response, error)

// ErrCircuitOpen is returned when the circuit breaker is open and rejects the request.
var ErrCircuitOpen = gobreaker.ErrOpenState

// ServerError is returned for 5xx responses, which count as breaker failures.
// The response body has already been read and closed.
type ServerError struct {
	StatusCode int
	Body       []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, string(e.Body))
}

var (
	circuitBreakersOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breakers_open",
			Help: "Number of keyed circuit breakers currently open",
		},
		[]string{"name"},
	)

	circuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Total number of circuit breaker state changes by target state",
		},
		[]string{"name", "to"},
	)

	circuitBreakerFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_fallback_invoked_total",
			Help: "Total number of times the circuit breaker fallback was invoked",
		},
		[]string{"name"},
	)
)

// maxBreakers bounds the number of keys tracked at once. Closed breakers are
// dropped first when the bound is reached.
const maxBreakers = 10000

// breakerSet holds one breaker per key, created on first use.
type breakerSet struct {
	mu       sync.Mutex
	cfg      CircuitBreakerConfig
	logger   *slog.Logger
	breakers map[string]*gobreaker.CircuitBreaker[*http.Response]
}

func (s *breakerSet) get(key string) *gobreaker.CircuitBreaker[*http.Response] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[key]; ok {
		return cb
	}
	if len(s.breakers) >= maxBreakers {
		for k, cb := range s.breakers {
			if cb.State() == gobreaker.StateClosed {
				delete(s.breakers, k)
			}
		}
	}
	cb := gobreaker.NewCircuitBreaker[*http.Response](s.settings(key))
	s.breakers[key] = cb
	return cb
}

func (s *breakerSet) lookup(key string) (*gobreaker.CircuitBreaker[*http.Response], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[key]
	return cb, ok
}

func (s *breakerSet) settings(key string) gobreaker.Settings {
	cfg := s.cfg
	return gobreaker.Settings{
		Name:        key,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		// A canceled caller says nothing about the remote side.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(key string, from gobreaker.State, to gobreaker.State) {
			s.logger.Warn("circuit breaker state change",
				slog.String("breaker", cfg.Name),
				slog.String("key", key),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			circuitBreakerTransitions.WithLabelValues(cfg.Name, to.String()).Inc()
			switch {
			case to == gobreaker.StateOpen:
				circuitBreakersOpen.WithLabelValues(cfg.Name).Inc()
			case from == gobreaker.StateOpen:
				circuitBreakersOpen.WithLabelValues(cfg.Name).Dec()
			}
		},
	}
}

// CircuitBreakerClient wraps a Client with one circuit breaker per key, so a
// failing upstream tenant only trips its own breaker.
type CircuitBreakerClient struct {
	client   *Client
	set      *breakerSet
	logger   *slog.Logger
	fallback FallbackFunc
	name     string
}

// NewCircuitBreakerClient wraps an existing HTTP client with keyed circuit breakers.
func NewCircuitBreakerClient(client *Client, cbCfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	circuitBreakersOpen.WithLabelValues(cbCfg.Name).Set(0)

	return &CircuitBreakerClient{
		client: client,
		set: &breakerSet{
			cfg:      cbCfg,
			logger:   logger,
			breakers: make(map[string]*gobreaker.CircuitBreaker[*http.Response]),
		},
		logger: logger,
		name:   cbCfg.Name,
	}
}

// WithFallback returns a copy of the client that calls fn while a circuit is open.
// The copy shares the breakers of c.
func (c *CircuitBreakerClient) WithFallback(fn FallbackFunc) *CircuitBreakerClient {
	cpy := *c
	cpy.fallback = fn
	return &cpy
}

// Do executes an HTTP request through the breaker for key. 5xx responses are
// converted into *ServerError and counted as failures; 4xx responses are
// returned to the caller untouched.
func (c *CircuitBreakerClient) Do(ctx context.Context, key string, req *http.Request) (*http.Response, error) {
	resp, err := c.set.get(key).Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			if err != nil {
				body = []byte{}
			}
			_ = resp.Body.Close()
			return nil, &ServerError{StatusCode: resp.StatusCode, Body: body}
		}
		return resp, nil
	})
	if err != nil && c.fallback != nil && errors.Is(err, ErrCircuitOpen) {
		circuitBreakerFallbackTotal.WithLabelValues(c.name).Inc()
		c.logger.WarnContext(ctx, "circuit breaker open, invoking fallback",
			slog.String("breaker", c.name),
			slog.String("key", key),
		)
		return c.fallback(ctx, err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// State returns the state of the breaker for key. Keys never seen are closed.
func (c *CircuitBreakerClient) State(key string) gobreaker.State {
	cb, ok := c.set.lookup(key)
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

// OpenKeys returns the sorted keys whose breaker is currently open.
func (c *CircuitBreakerClient) OpenKeys() []string {
	c.set.mu.Lock()
	defer c.set.mu.Unlock()

	var open []string
	for key, cb := range c.set.breakers {
		if cb.State() == gobreaker.StateOpen {
			open = append(open, key)
		}
	}
	sort.Strings(open)
	return open
}

// Name returns the breaker name.
func (c *CircuitBreakerClient) Name() string {
	return c.name
}
