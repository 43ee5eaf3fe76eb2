package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// AsyncStorage buffers events in memory and writes them from a background
// goroutine, so audit appends never block the calling request. A full
// buffer falls back to a synchronous write rather than dropping the event.
type AsyncStorage struct {
	inner        Storage
	logger       *slog.Logger
	events       chan Event
	done         chan struct{}
	wg           sync.WaitGroup
	writeTimeout time.Duration
}

// NewAsyncStorage wraps a storage with a buffer of the given size. Call
// Close during shutdown to flush queued events.
func NewAsyncStorage(inner Storage, bufferSize int, logger *slog.Logger) *AsyncStorage {
	if inner == nil {
		panic("audit: inner storage cannot be nil")
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &AsyncStorage{
		inner:        inner,
		logger:       logger,
		events:       make(chan Event, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: 5 * time.Second,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *AsyncStorage) Store(ctx context.Context, event Event) error {
	select {
	case <-s.done:
		return s.inner.Store(ctx, event)
	case s.events <- event:
		return nil
	default:
		return s.inner.Store(ctx, event)
	}
}

func (s *AsyncStorage) run() {
	defer s.wg.Done()
	for {
		select {
		case event := <-s.events:
			s.write(event)
		case <-s.done:
			for {
				select {
				case event := <-s.events:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *AsyncStorage) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.inner.Store(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to store audit event",
			slog.String("action", event.Action),
			slog.String("user_id", event.UserID),
			slog.Any("error", err))
	}
}

// Close stops the background writer after draining the buffer.
func (s *AsyncStorage) Close() {
	close(s.done)
	s.wg.Wait()
}
