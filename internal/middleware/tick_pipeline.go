// Package middleware carries the tick pipeline that sits between the
// hub and the downstream sinks (Kafka, ClickHouse).
package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketHub/internal/domain/models"
	domrepo "MarketHub/internal/domain/repository"
)

// Sink is the downstream the pipeline forwards ticks to.
type Sink interface {
	Process(ctx context.Context, t *models.MarketDataTick) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, t *models.MarketDataTick) error

func (f SinkFunc) Process(ctx context.Context, t *models.MarketDataTick) error { return f(ctx, t) }

// FanoutSink forwards each tick to the publisher and the store. A store
// failure does not block publishing; the first error is reported.
type FanoutSink struct {
	Publisher domrepo.TickPublisher
	Store     domrepo.TickStore
}

func (s *FanoutSink) Process(ctx context.Context, t *models.MarketDataTick) error {
	var firstErr error
	if s.Publisher != nil {
		if err := s.Publisher.Publish(ctx, t); err != nil {
			firstErr = fmt.Errorf("publish: %w", err)
		}
	}
	if s.Store != nil {
		if err := s.Store.Store(ctx, t); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("store: %w", err)
		}
	}
	return firstErr
}

// TickPipeline validates and throttles ticks on their way to the sink,
// buffering when the sink is unavailable and retrying with capped
// backoff.
type TickPipeline struct {
	sink     Sink
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.MarketDataTick
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per tick key
}

// PipelineOption configures TickPipeline.
type PipelineOption func(*TickPipeline)

// WithMaxRPS caps accepted ticks per second per entity key.
func WithMaxRPS(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer capacity.
func WithBufferSize(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewTickPipeline creates a pipeline in front of sink.
func NewTickPipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		sink:     sink,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.MarketDataTick, p.bufSize)
	return p
}

// Start launches background flushing of buffered ticks.
func (p *TickPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case t := <-p.bufCh:
				if t == nil {
					continue
				}
				if err := p.sink.Process(ctx, t); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.recordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- t:
					default:
						p.recordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop halts the background flushing.
func (p *TickPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles and forwards one tick, buffering on sink
// errors.
func (p *TickPipeline) Process(ctx context.Context, t *models.MarketDataTick) error {
	start := time.Now()
	if err := validateTick(t); err != nil {
		p.recordError("pipeline_validate")
		return err
	}
	if !p.allow(t.Key, start) {
		p.recordError("pipeline_throttle")
		return nil
	}

	if err := p.sink.Process(ctx, t); err != nil {
		p.recordError("pipeline_process")
		select {
		case p.bufCh <- t:
		default:
			p.recordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	}
	return nil
}

func validateTick(t *models.MarketDataTick) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.Symbol == "" || t.Key == "" {
		return fmt.Errorf("tick missing identity")
	}
	if t.Kind == "" {
		return fmt.Errorf("tick missing kind")
	}
	if t.ReceivedAt.IsZero() {
		return fmt.Errorf("tick missing timestamp")
	}
	return nil
}

func (p *TickPipeline) allow(key string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[key]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[key] = now
	return true
}

func (p *TickPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
