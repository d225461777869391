// Package telemetry keeps transport positions on the map current by polling
// a position source and swapping updated snapshots into the dataset store.
package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/metrics"
)

// PositionSource reports vehicle positions that changed since the last call.
type PositionSource interface {
	Positions(ctx context.Context, current *domain.Dataset) ([]domain.TransportPosition, error)
}

// Sink is where polled positions land. *dataset.Store satisfies this.
type Sink interface {
	Snapshot() *domain.Dataset
	ApplyPositions(updates []domain.TransportPosition)
}

type Poller struct {
	log      zerolog.Logger
	src      PositionSource
	sink     Sink
	interval time.Duration
	timeout  time.Duration
	onUpdate func(n int)
	metrics  *metrics.Metrics
}

type Options struct {
	Interval time.Duration
	// Timeout bounds a single poll.
	Timeout time.Duration
	// OnUpdate runs after a poll applied at least one position.
	OnUpdate func(n int)
}

func New(log zerolog.Logger, src PositionSource, sink Sink, opts Options, m *metrics.Metrics) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Poller{
		log:      log,
		src:      src,
		sink:     sink,
		interval: interval,
		timeout:  timeout,
		onUpdate: opts.OnUpdate,
		metrics:  m,
	}
}

func (p *Poller) Run(ctx context.Context) {
	if p == nil || p.src == nil || p.sink == nil {
		return
	}

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := p.pollOnce(ctx); err != nil {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(backoffDuration(p.interval, consecutiveFailures))
	}
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 5 * time.Second
	}
	if failures <= 0 {
		return base
	}

	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > 2*time.Minute {
		return 2 * time.Minute
	}
	return d
}

func (p *Poller) pollOnce(ctx context.Context) (int, error) {
	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	updates, err := p.src.Positions(pollCtx, p.sink.Snapshot())
	if err != nil {
		p.metrics.IncTelemetryPoll("error")
		p.log.Warn().Err(err).Msg("telemetry poll failed")
		return 0, err
	}
	if len(updates) == 0 {
		p.metrics.IncTelemetryPoll("idle")
		return 0, nil
	}

	p.sink.ApplyPositions(updates)
	p.metrics.IncTelemetryPoll("ok")
	p.log.Debug().Int("vehicles", len(updates)).Msg("telemetry applied")
	if p.onUpdate != nil {
		p.onUpdate(len(updates))
	}
	return len(updates), nil
}
