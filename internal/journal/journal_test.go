package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/musicbridge/internal/events"
)

func readLines(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		out = append(out, rec)
	}
	return out
}

func TestWriterSplitsByDate(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	day1 := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)
	for _, rec := range []Record{
		{At: day1, Kind: events.KindService, Payload: json.RawMessage(`{"service":"spotify"}`)},
		{At: day1, Kind: events.KindCommand},
		{At: day2, Kind: events.KindControlWindow, Payload: json.RawMessage(`{"action":"closed"}`)},
	} {
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	first := readLines(t, filepath.Join(dir, "2026-03-01", fileName))
	if len(first) != 2 || first[0].Kind != events.KindService || string(first[1].Payload) != "null" {
		t.Fatalf("day1 = %+v", first)
	}
	second := readLines(t, filepath.Join(dir, "2026-03-02", fileName))
	if len(second) != 1 || second[0].Kind != events.KindControlWindow {
		t.Fatalf("day2 = %+v", second)
	}
}

func TestWriteAfterClose(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := w.Write(Record{Kind: events.KindCommand}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write() after close = %v; want ErrClosed", err)
	}
}

func TestWritesRacingCloseAreKept(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var accepted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				if err := w.Write(Record{At: at, Kind: events.KindCommand}); err == nil {
					accepted.Add(1)
				} else if errors.Is(err, ErrClosed) {
					return
				}
			}
		}()
	}

	close(start)
	time.Sleep(time.Millisecond)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	wg.Wait()

	var lines int
	if _, err := os.Stat(filepath.Join(dir, "2026-03-01", fileName)); err == nil {
		lines = len(readLines(t, filepath.Join(dir, "2026-03-01", fileName)))
	}
	if int64(lines) != accepted.Load() {
		t.Fatalf("journal has %d lines; want %d accepted records", lines, accepted.Load())
	}
}

func TestNewWriterRequiresDir(t *testing.T) {
	if _, err := NewWriter(""); err == nil {
		t.Fatalf("NewWriter(\"\") succeeded")
	}
}

func TestFollowJournalsBrokerEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	broker := events.NewBroker()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Follow(ctx, broker)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for broker.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Follow never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	broker.Publish(events.KindPageSignal, map[string]string{"service": "amazon"})

	// Let the event reach the writer before stopping.
	deadline = time.Now().Add(2 * time.Second)
	for len(w.writeCh) == 0 && !w.hasOutput() {
		if time.Now().After(deadline) {
			t.Fatalf("event never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if broker.ClientCount() != 0 {
		t.Fatalf("Follow left its subscription behind")
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*", fileName))
	if err != nil || len(matches) != 1 {
		t.Fatalf("journal files = %v (%v)", matches, err)
	}
	recs := readLines(t, matches[0])
	if len(recs) != 1 || recs[0].Kind != events.KindPageSignal {
		t.Fatalf("records = %+v", recs)
	}
}

func (w *Writer) hasOutput() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out != nil
}
