package usecase

import (
	"testing"
	"time"

	"MarketHub/internal/domain/models"
)

func batcherTick(kind models.TickKind, symbol string, seq int) *models.MarketDataTick {
	return &models.MarketDataTick{
		Key:        models.TickKey(kind, symbol),
		Kind:       kind,
		Symbol:     symbol,
		Data:       seq,
		ReceivedAt: time.Now(),
	}
}

func TestBatcherCoalescesLatestWins(t *testing.T) {
	flushed := make(chan []*models.MarketDataTick, 1)
	b := newTickBatcher(20*time.Millisecond, func(batch []*models.MarketDataTick) {
		flushed <- batch
	})

	b.enqueue(batcherTick(models.TickEquity, "SPY", 1))
	b.enqueue(batcherTick(models.TickChain, "SPY", 2))
	b.enqueue(batcherTick(models.TickEquity, "SPY", 3)) // replaces seq 1

	select {
	case batch := <-flushed:
		if len(batch) != 2 {
			t.Fatalf("expected 2 coalesced ticks, got %d", len(batch))
		}
		// Insertion order survives coalescing.
		if batch[0].Kind != models.TickEquity || batch[1].Kind != models.TickChain {
			t.Fatalf("unexpected order: %s, %s", batch[0].Kind, batch[1].Kind)
		}
		if batch[0].Data != 3 {
			t.Fatalf("expected latest tick to win, got %v", batch[0].Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("batch never flushed")
	}
}

func TestBatcherFlushesOncePerWindow(t *testing.T) {
	flushed := make(chan []*models.MarketDataTick, 2)
	b := newTickBatcher(20*time.Millisecond, func(batch []*models.MarketDataTick) {
		flushed <- batch
	})

	b.enqueue(batcherTick(models.TickEquity, "SPY", 1))
	select {
	case <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatalf("first batch never flushed")
	}

	// The window re-arms only on the next enqueue.
	b.enqueue(batcherTick(models.TickEquity, "SPY", 2))
	select {
	case batch := <-flushed:
		if len(batch) != 1 || batch[0].Data != 2 {
			t.Fatalf("unexpected second batch %+v", batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("second batch never flushed")
	}
}

func TestBatcherStopFlushesPending(t *testing.T) {
	var got []*models.MarketDataTick
	b := newTickBatcher(time.Hour, func(batch []*models.MarketDataTick) {
		got = batch
	})

	b.enqueue(batcherTick(models.TickFlow, "SPY", 1))
	b.stop()
	if len(got) != 1 {
		t.Fatalf("expected pending tick flushed on stop, got %d", len(got))
	}

	b.enqueue(batcherTick(models.TickFlow, "SPY", 2))
	if len(b.pending) != 0 {
		t.Fatalf("enqueue after stop must be ignored")
	}
}
