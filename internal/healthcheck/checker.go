package healthcheck

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Checker periodically probes the upstream base address so /health can
// report upstream reachability without issuing a probe per health request.
type Checker struct {
	mu          sync.RWMutex
	status      Status
	target      string
	interval    time.Duration
	timeout     time.Duration
	maxFailures int
	failures    int
	client      *http.Client
	logger      *zap.Logger
}

type Status struct {
	Target    string    `json:"target"`
	IsHealthy bool      `json:"is_healthy"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

type Config struct {
	Target      string
	Interval    time.Duration // default: 30s
	Timeout     time.Duration // default: 5s
	MaxFailures int           // consecutive failures before unhealthy (default: 3)
}

func NewChecker(cfg Config, logger *zap.Logger) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Checker{
		target:      cfg.Target,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		maxFailures: cfg.MaxFailures,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		status: Status{
			Target:    cfg.Target,
			IsHealthy: true, // assume healthy until proven otherwise
			LastCheck: time.Now(),
		},
	}
}

// Start probes the upstream until ctx is cancelled.
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.check(ctx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.check(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Checker) check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var probeErr string
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target, nil)
	if err != nil {
		probeErr = err.Error()
	} else {
		resp, err := c.client.Do(req)
		if err != nil {
			probeErr = "upstream unreachable"
		} else {
			// Any HTTP answer at all counts as reachable.
			resp.Body.Close()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.LastCheck = time.Now()
	c.status.LastError = probeErr

	if probeErr == "" {
		if !c.status.IsHealthy {
			c.logger.Info("upstream recovered", zap.String("target", c.target))
		}
		c.failures = 0
		c.status.IsHealthy = true
		return
	}

	c.failures++
	if c.failures >= c.maxFailures && c.status.IsHealthy {
		c.status.IsHealthy = false
		c.logger.Warn("upstream marked unhealthy",
			zap.String("target", c.target),
			zap.Int("consecutive_failures", c.failures))
	}
}

// GetStatus returns a copy of the current upstream status.
func (c *Checker) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
