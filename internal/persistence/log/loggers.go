package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"machinecraft.ai/internal/sim/world"
)

// HourlyWriter appends JSON lines to zstd files rotated on the UTC hour.
// Lines are buffered until Flush, rotation or Close.
type HourlyWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu    sync.Mutex
	hour  string
	file  *os.File
	zw    *zstd.Encoder
	buf   *bufio.Writer
	stats WriterStats
}

// WriterStats are cumulative since the writer was created.
type WriterStats struct {
	Lines  uint64 `json:"lines"`
	Files  uint64 `json:"files"`
	Errors uint64 `json:"errors"`
}

func NewHourlyWriter(dir, prefix string) *HourlyWriter {
	return &HourlyWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *HourlyWriter) Stats() WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *HourlyWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if hour := w.now().UTC().Format("2006-01-02-15"); hour != w.hour {
		if err := w.openLocked(hour); err != nil {
			w.stats.Errors++
			return err
		}
	}
	if _, err := w.buf.Write(b); err != nil {
		w.stats.Errors++
		return err
	}
	w.stats.Lines++
	return nil
}

// Flush pushes buffered lines into the current zstd block.
func (w *HourlyWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		w.stats.Errors++
		return err
	}
	return w.zw.Flush()
}

func (w *HourlyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *HourlyWriter) openLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.file, w.zw, w.buf, w.hour = f, zw, bufio.NewWriterSize(zw, 64*1024), hour
	w.stats.Files++
	return nil
}

func (w *HourlyWriter) closeLocked() error {
	if w.file == nil {
		return nil
	}
	err := errors.Join(w.buf.Flush(), w.zw.Close(), w.file.Close())
	w.file, w.zw, w.buf, w.hour = nil, nil, nil, ""
	return err
}

func (w *HourlyWriter) path(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// syncRecord is one line of the sync log: the world's entry plus the wall
// clock time it was written.
type syncRecord struct {
	WallMS int64 `json:"wall_ms"`
	world.SyncLogEntry
}

// SyncLogger writes the world's sync events to <worldDir>/events. Entries of
// one tick are flushed together when the next tick's first entry arrives.
type SyncLogger struct {
	w *HourlyWriter

	mu       sync.Mutex
	lastTick uint64
}

func NewSyncLogger(worldDir string) *SyncLogger {
	return &SyncLogger{w: NewHourlyWriter(filepath.Join(worldDir, "events"), "sync")}
}

func (l *SyncLogger) WriteSync(e world.SyncLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Tick != l.lastTick {
		if err := l.w.Flush(); err != nil {
			return err
		}
		l.lastTick = e.Tick
	}
	return l.w.Write(syncRecord{WallMS: l.w.now().UnixMilli(), SyncLogEntry: e})
}

func (l *SyncLogger) Stats() WriterStats { return l.w.Stats() }
func (l *SyncLogger) Close() error       { return l.w.Close() }
