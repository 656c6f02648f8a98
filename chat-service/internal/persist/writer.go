package persist

import (
	"context"
	"sync"
	"time"

	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/filmnt/chat/chat-service/internal/metrics"
	"github.com/filmnt/chat/pkg/log"
)

// WriterConfig tunes the save loop.
type WriterConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	SaveTimeout  time.Duration
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 5 * time.Second
	}
	return c
}

// Writer saves room records in the background. Only the latest value of
// each record is kept while a save is pending, and callers never block on
// storage.
type Writer struct {
	store StateStore
	room  string
	cfg   WriterConfig

	mu      sync.Mutex
	pending map[Record]any
	wake    chan struct{}
	done    chan struct{}
}

// NewWriter creates a writer for one room. Call Run to start saving.
func NewWriter(store StateStore, room string, cfg WriterConfig) *Writer {
	return &Writer{
		store:   store,
		room:    room,
		cfg:     cfg.withDefaults(),
		pending: make(map[Record]any),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (w *Writer) SaveMessages(msgs []domain.ChatMessage) { w.enqueue(RecordMessages, msgs) }
func (w *Writer) SaveBans(bans []domain.BannedUser)      { w.enqueue(RecordBans, bans) }
func (w *Writer) SaveFlags(flags domain.Flags)           { w.enqueue(RecordFlags, flags) }
func (w *Writer) SaveAdmins(admins []string)             { w.enqueue(RecordAdmins, admins) }

func (w *Writer) enqueue(rec Record, v any) {
	w.mu.Lock()
	w.pending[rec] = v
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run saves pending records until ctx is cancelled, then flushes what is
// left and returns.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.flush(context.Background())
			return
		case <-w.wake:
			w.flush(ctx)
		}
	}
}

// Done is closed after Run has flushed and returned.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

func (w *Writer) take() map[Record]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return nil
	}
	batch := w.pending
	w.pending = make(map[Record]any)
	return batch
}

func (w *Writer) flush(ctx context.Context) {
	batch := w.take()
	for _, rec := range Records {
		v, ok := batch[rec]
		if !ok {
			continue
		}
		if err := w.saveWithRetry(ctx, rec, v); err != nil {
			l := log.L()
			l.Error().Err(err).
				Str(log.FieldRoom, w.room).
				Str("record", string(rec)).
				Msg("Giving up on state save")
		}
	}
}

func (w *Writer) saveWithRetry(ctx context.Context, rec Record, v any) error {
	var err error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.SaveTimeout)
		err = w.save(saveCtx, rec, v)
		cancel()
		if err == nil {
			return nil
		}
		metrics.PersistErrors.WithLabelValues(string(rec)).Inc()
		l := log.L()
		l.Warn().Err(err).
			Str(log.FieldRoom, w.room).
			Str("record", string(rec)).
			Int("attempt", attempt).
			Msg("State save failed")
		if attempt == w.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			// Shutting down: one final attempt happens in the flush after Run exits.
			w.requeue(rec, v)
			return nil
		case <-time.After(w.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
	return err
}

// requeue puts v back unless a newer value arrived meanwhile.
func (w *Writer) requeue(rec Record, v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, newer := w.pending[rec]; !newer {
		w.pending[rec] = v
	}
}

func (w *Writer) save(ctx context.Context, rec Record, v any) error {
	switch rec {
	case RecordMessages:
		return w.store.SaveMessages(ctx, w.room, v.([]domain.ChatMessage))
	case RecordBans:
		return w.store.SaveBans(ctx, w.room, v.([]domain.BannedUser))
	case RecordFlags:
		return w.store.SaveFlags(ctx, w.room, v.(domain.Flags))
	default:
		return w.store.SaveAdmins(ctx, w.room, v.([]string))
	}
}
