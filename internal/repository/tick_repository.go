// Package repository implements the downstream tick sinks: Kafka for
// live fan-out and ClickHouse for the historical archive.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MarketHub/internal/domain/models"
	"MarketHub/internal/domain/repository"
	pkgkafka "MarketHub/pkg/kafka"
)

// ClickHouseTickStore implements repository.TickStore on ClickHouse.
// Entity payloads are archived as JSON alongside indexed quality columns.
type ClickHouseTickStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseTickStore creates the store. Call Init to ensure schema.
func NewClickHouseTickStore(db *sql.DB, table string) repository.TickStore {
	if table == "" {
		table = "market_ticks"
	}
	return &ClickHouseTickStore{db: db, table: table}
}

func (s *ClickHouseTickStore) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts          DateTime64(3),
		kind        LowCardinality(String),
		symbol      LowCardinality(String),
		source      LowCardinality(String),
		quality     LowCardinality(String),
		confidence  Float64,
		is_stale    UInt8,
		payload     String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMMDD(ts)
	ORDER BY (symbol, kind, ts)
	TTL toDateTime(ts) + INTERVAL 30 DAY`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("tick store init: %w", err)
	}
	return nil
}

func (s *ClickHouseTickStore) Store(ctx context.Context, t *models.MarketDataTick) error {
	return s.StoreBatch(ctx, []*models.MarketDataTick{t})
}

func (s *ClickHouseTickStore) StoreBatch(ctx context.Context, ticks []*models.MarketDataTick) error {
	if len(ticks) == 0 {
		return nil
	}
	// Multi-row VALUES in chunks to keep round-trips down.
	const chunkSize = 500
	for start := 0; start < len(ticks); start += chunkSize {
		end := start + chunkSize
		if end > len(ticks) {
			end = len(ticks)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, t := range ticks[start:end] {
			if t == nil || t.Symbol == "" {
				continue
			}
			payload, err := json.Marshal(t.Data)
			if err != nil {
				return fmt.Errorf("marshal tick payload: %w", err)
			}
			stale := uint8(0)
			if t.Quality.IsStale {
				stale = 1
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				t.ReceivedAt,
				string(t.Kind),
				t.Symbol,
				string(t.Quality.Source),
				string(t.Quality.Quality),
				t.Quality.Confidence,
				stale,
				string(payload),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, kind, symbol, source, quality, confidence, is_stale, payload) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("tick store insert: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseTickStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.MarketDataTick, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := fmt.Sprintf(`SELECT ts, kind, symbol, source, quality, confidence, is_stale, payload
		FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ?
		ORDER BY ts DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticks []*models.MarketDataTick
	for rows.Next() {
		var (
			t       models.MarketDataTick
			kind    string
			source  string
			qual    string
			stale   uint8
			payload string
		)
		if err := rows.Scan(&t.ReceivedAt, &kind, &t.Symbol, &source, &qual, &t.Quality.Confidence, &stale, &payload); err != nil {
			return nil, err
		}
		t.Kind = models.TickKind(kind)
		t.Key = models.TickKey(t.Kind, t.Symbol)
		t.Quality.Source = models.Source(source)
		t.Quality.Quality = models.QualityLevel(qual)
		t.Quality.IsStale = stale == 1
		var data interface{}
		if err := json.Unmarshal([]byte(payload), &data); err == nil {
			t.Data = data
		}
		ticks = append(ticks, &t)
	}
	return ticks, rows.Err()
}

func (s *ClickHouseTickStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseTickStore) Close() error {
	return nil // pool owned by pkg/clickhouse
}

// KafkaTickPublisher implements repository.TickPublisher. Messages are
// keyed by tick key so per-entity ordering survives partitioning.
type KafkaTickPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaTickPublisher creates the publisher.
func NewKafkaTickPublisher(producer *pkgkafka.Producer, topic string) repository.TickPublisher {
	if topic == "" {
		topic = "market.ticks"
	}
	return &KafkaTickPublisher{producer: producer, topic: topic}
}

func (p *KafkaTickPublisher) Publish(ctx context.Context, t *models.MarketDataTick) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Key), t)
}

func (p *KafkaTickPublisher) PublishBatch(ctx context.Context, ticks []*models.MarketDataTick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(ticks))
	for i, t := range ticks {
		msgs[i] = pkgkafka.Message{Key: []byte(t.Key), Value: t}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaTickPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
