// Package journal appends router events to date-organized JSON line files.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgnsrekt/musicbridge/internal/events"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultBuffer    = 256
	defaultMaxSizeMB = 10
	fileName         = "events.jsonl"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("journal closed")

// Record is one journal line.
type Record struct {
	At      time.Time       `json:"at"`
	Kind    events.Kind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Writer queues records and writes them on a single goroutine into
// <dir>/<YYYY-MM-DD>/events.jsonl, rotating by size within a day.
type Writer struct {
	dir       string
	maxSizeMB int
	now       func() time.Time

	writeCh chan Record
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	date    string
	out     *lumberjack.Logger
	closed  bool
	dropped int
}

// NewWriter starts a writer rooted at dir.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("journal: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	w := &Writer{
		dir:       dir,
		maxSizeMB: defaultMaxSizeMB,
		now:       time.Now,
		writeCh:   make(chan Record, defaultBuffer),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w, nil
}

// Write queues rec without blocking. A full buffer drops the record. A
// record accepted before Close is always written.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.writeCh <- rec:
		return nil
	default:
		w.dropped++
		slog.Warn("journal buffer full, dropping record", "kind", rec.Kind)
		return fmt.Errorf("journal: buffer full")
	}
}

// Follow journals every broker event until ctx ends.
func (w *Writer) Follow(ctx context.Context, broker *events.Broker) {
	id, ch := broker.Subscribe()
	defer broker.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := w.Write(Record{At: evt.At, Kind: evt.Kind, Payload: evt.Payload}); errors.Is(err, ErrClosed) {
				return
			}
		}
	}
}

// Close flushes queued records and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dropped > 0 {
		slog.Warn("journal dropped records", "count", w.dropped)
	}
	if w.out != nil {
		return w.out.Close()
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case rec := <-w.writeCh:
			w.writeRecord(rec)
		case <-w.done:
			for {
				select {
				case rec := <-w.writeCh:
					w.writeRecord(rec)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) writeRecord(rec Record) {
	if rec.At.IsZero() {
		rec.At = w.now()
	}
	if len(rec.Payload) == 0 {
		rec.Payload = json.RawMessage("null")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal record not encodable", "kind", rec.Kind, "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	date := rec.At.UTC().Format("2006-01-02")
	if date != w.date || w.out == nil {
		if err := w.openForDate(date); err != nil {
			slog.Error("journal open failed", "date", date, "error", err)
			return
		}
	}
	if _, err := w.out.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "kind", rec.Kind, "error", err)
	}
}

func (w *Writer) openForDate(date string) error {
	if w.out != nil {
		if err := w.out.Close(); err != nil {
			slog.Debug("journal close failed", "date", w.date, "error", err)
		}
		w.out = nil
	}
	dir := filepath.Join(w.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w.out = &lumberjack.Logger{
		Filename:   filepath.Join(dir, fileName),
		MaxSize:    w.maxSizeMB,
		MaxBackups: 30,
		MaxAge:     30,
	}
	w.date = date
	slog.Info("journal file opened", "file", w.out.Filename)
	return nil
}
