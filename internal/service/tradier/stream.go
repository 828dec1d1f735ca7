package tradier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"MarketHub/internal/domain/repository"
	"MarketHub/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream maintains the vendor event WebSocket: one connection, a symbol
// registry, automatic resubscribe after reconnect. Handlers run on the
// read goroutine and must not block.
type Stream struct {
	wsURL          string
	apiKey         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu       sync.Mutex // guards conn pointer and registry
	wmu      sync.Mutex // serializes writes to the socket
	conn     *websocket.Conn
	handlers map[string]map[int]func(streamEvent)
	nextID   int

	done      chan struct{}
	closeOnce sync.Once
}

// NewStream creates an unconnected stream. Call Start to connect.
func NewStream(wsURL, apiKey string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) *Stream {
	if reconnectDelay <= 0 {
		reconnectDelay = 2 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Stream{
		wsURL:          wsURL,
		apiKey:         apiKey,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
		handlers:       make(map[string]map[int]func(streamEvent)),
		done:           make(chan struct{}),
	}
}

// Start connects and runs the read/reconnect loop until ctx is cancelled
// or Close is called. The initial connect failure is returned; later
// failures reconnect with capped backoff.
func (s *Stream) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	go s.run(ctx)
	go s.pingLoop(ctx)
	return nil
}

// Close tears the connection down and stops the loops.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// watch registers a handler for one symbol and subscribes upstream.
func (s *Stream) watch(symbol string, fn func(streamEvent)) (repository.Unsubscribe, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	isNew := s.handlers[symbol] == nil
	if isNew {
		s.handlers[symbol] = make(map[int]func(streamEvent))
	}
	s.handlers[symbol][id] = fn
	conn := s.conn
	s.mu.Unlock()

	if isNew && conn != nil {
		_ = s.writeSubscribe(conn, []string{symbol})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			last := false
			if hs, ok := s.handlers[symbol]; ok {
				delete(hs, id)
				if len(hs) == 0 {
					delete(s.handlers, symbol)
					last = true
				}
			}
			conn := s.conn
			s.mu.Unlock()

			// The vendor keeps streaming until told otherwise.
			if last && conn != nil {
				_ = s.writeUnsubscribe(conn, []string{symbol})
			}
		})
	}, nil
}

func (s *Stream) connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.wsURL, s.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	symbols := make([]string, 0, len(s.handlers))
	for sym := range s.handlers {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()

	if len(symbols) > 0 {
		if err := s.writeSubscribe(conn, symbols); err != nil {
			return err
		}
	}
	s.log.Info("stream connected", logger.Int("symbols", len(symbols)))
	return nil
}

func (s *Stream) writeSubscribe(conn *websocket.Conn, symbols []string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	msg := map[string]interface{}{"type": "subscribe", "symbols": symbols}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (s *Stream) writeUnsubscribe(conn *websocket.Conn, symbols []string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	msg := map[string]interface{}{"type": "unsubscribe", "symbols": symbols}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// run reads frames and reconnects on failure with capped backoff.
func (s *Stream) run(ctx context.Context) {
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		conn := s.currentConn()
		if conn == nil {
			if err := s.connect(ctx); err != nil {
				s.log.Warn("stream reconnect failed", logger.Error(err))
				if !s.sleep(ctx, backoff) {
					return
				}
				backoff *= 2
				if backoff > s.reconnectDelay {
					backoff = s.reconnectDelay
				}
				continue
			}
			backoff = 50 * time.Millisecond
			continue
		}

		_, b, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.log.Warn("stream read failed", logger.Error(err))
			s.dropConn(conn)
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal(b, &ev); err != nil || ev.Symbol == "" {
			continue
		}
		s.dispatch(ev)
	}
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if conn := s.currentConn(); conn != nil {
				s.wmu.Lock()
				_ = conn.WriteMessage(websocket.PingMessage, nil)
				s.wmu.Unlock()
			}
		}
	}
}

func (s *Stream) dispatch(ev streamEvent) {
	s.mu.Lock()
	hs := s.handlers[ev.Symbol]
	fns := make([]func(streamEvent), 0, len(hs))
	for _, fn := range hs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Stream) currentConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Stream) dropConn(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		_ = conn.Close()
		s.conn = nil
	}
}

func (s *Stream) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	case <-time.After(d):
		return true
	}
}
