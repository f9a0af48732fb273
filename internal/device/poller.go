package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agrismart/internal/logger"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultMaxPollRetries = 3
)

// PollerConfig tunes HTTP status polling.
type PollerConfig struct {
	Interval   time.Duration
	MaxRetries int
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = defaultPollInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxPollRetries
	}
	return c
}

// Poller fetches GET /status on a fixed period while WebSocket is unavailable.
type Poller struct {
	client   *HTTPClient
	cfg      PollerConfig
	onStatus func(body json.RawMessage)
	log      *logger.Logger
}

// NewPoller builds a poller; onStatus receives every successful status body.
func NewPoller(client *HTTPClient, cfg PollerConfig, onStatus func(json.RawMessage), log *logger.Logger) *Poller {
	return &Poller{client: client, cfg: cfg.withDefaults(), onStatus: onStatus, log: log}
}

// Run polls immediately and then every Interval. A success resets the failure
// counter; MaxRetries consecutive failures end the loop with KindMaxRetriesExceeded.
// Cancellation returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := p.client.Status(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case res.Success:
			failures = 0
			if p.onStatus != nil {
				p.onStatus(res.Body)
			}
		default:
			failures++
			p.log.Warnw("http_poll_failed", "host", p.client.Host(), "failures", failures,
				"max_retries", p.cfg.MaxRetries, "err", res.Err)
			if failures >= p.cfg.MaxRetries {
				return newError(KindMaxRetriesExceeded, "GET /status", p.client.Host(),
					fmt.Errorf("%d consecutive failures: %w", failures, res.AsError()))
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
