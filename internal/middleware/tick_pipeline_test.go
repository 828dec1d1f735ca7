package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/domain/repository"
)

func pipelineTick(symbol string) *models.MarketDataTick {
	return &models.MarketDataTick{
		Key:        models.TickKey(models.TickEquity, symbol),
		Kind:       models.TickEquity,
		Symbol:     symbol,
		Data:       1,
		ReceivedAt: time.Now(),
	}
}

func TestPipelineRejectsInvalidTick(t *testing.T) {
	var calls int
	p := NewTickPipeline(SinkFunc(func(context.Context, *models.MarketDataTick) error {
		calls++
		return nil
	}), nil)

	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatalf("nil tick must be rejected")
	}
	bad := pipelineTick("SPY")
	bad.Symbol = ""
	bad.Key = ""
	if err := p.Process(context.Background(), bad); err == nil {
		t.Fatalf("tick without identity must be rejected")
	}
	if calls != 0 {
		t.Fatalf("sink must not see invalid ticks, got %d calls", calls)
	}
}

func TestPipelineThrottlesPerKey(t *testing.T) {
	var calls int
	p := NewTickPipeline(SinkFunc(func(context.Context, *models.MarketDataTick) error {
		calls++
		return nil
	}), nil, WithMaxRPS(1))

	if err := p.Process(context.Background(), pipelineTick("SPY")); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	// Same key inside the window is dropped silently.
	if err := p.Process(context.Background(), pipelineTick("SPY")); err != nil {
		t.Fatalf("throttled tick must not error: %v", err)
	}
	// A different key has its own budget.
	if err := p.Process(context.Background(), pipelineTick("QQQ")); err != nil {
		t.Fatalf("second key: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 sink calls, got %d", calls)
	}
}

func TestPipelineBuffersOnSinkError(t *testing.T) {
	sinkErr := errors.New("sink down")
	p := NewTickPipeline(SinkFunc(func(context.Context, *models.MarketDataTick) error {
		return sinkErr
	}), nil, WithBufferSize(4))

	err := p.Process(context.Background(), pipelineTick("SPY"))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("expected tick buffered for retry, got %d", len(p.bufCh))
	}
}

type stubPublisher struct {
	err   error
	calls int
}

func (s *stubPublisher) Publish(context.Context, *models.MarketDataTick) error {
	s.calls++
	return s.err
}
func (s *stubPublisher) PublishBatch(context.Context, []*models.MarketDataTick) error { return s.err }
func (s *stubPublisher) Close() error                                                 { return nil }

type stubStore struct {
	err   error
	calls int
}

func (s *stubStore) Init(context.Context) error { return nil }
func (s *stubStore) Store(context.Context, *models.MarketDataTick) error {
	s.calls++
	return s.err
}
func (s *stubStore) StoreBatch(context.Context, []*models.MarketDataTick) error { return s.err }
func (s *stubStore) Query(context.Context, string, time.Time, time.Time, int) ([]*models.MarketDataTick, error) {
	return nil, nil
}
func (s *stubStore) Health(context.Context) error { return nil }
func (s *stubStore) Close() error                 { return nil }

var (
	_ repository.TickPublisher = (*stubPublisher)(nil)
	_ repository.TickStore     = (*stubStore)(nil)
)

func TestFanoutSinkReportsFirstErrorOnly(t *testing.T) {
	pub := &stubPublisher{err: errors.New("broker down")}
	store := &stubStore{}
	sink := &FanoutSink{Publisher: pub, Store: store}

	err := sink.Process(context.Background(), pipelineTick("SPY"))
	if err == nil || !errors.Is(err, pub.err) {
		t.Fatalf("expected publisher error, got %v", err)
	}
	// The store still sees the tick.
	if store.calls != 1 {
		t.Fatalf("expected store call despite publish failure, got %d", store.calls)
	}
}
