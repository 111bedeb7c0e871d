// Package audit records every accept/skip decision to two independent sinks:
// an append-only JSON-lines file and the logs table. The sinks are not
// transactional with each other; a failure in one does not stop the other.
package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"PolicyScanner/internal/domain"
	"PolicyScanner/internal/ports"
)

// FileSink appends one JSON line per record.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  zapcore.Encoder
}

// OpenFileSink creates the parent directory and opens path for appending.
// Call it once at startup and Close it on shutdown.
func OpenFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		MessageKey:     "action",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})

	return &FileSink{file: file, enc: enc}, nil
}

// Write appends record as a single line.
func (s *FileSink) Write(record domain.LogRecord) error {
	buf, err := s.enc.EncodeEntry(zapcore.Entry{
		Message: string(record.Action),
		Time:    record.CreatedAt,
	}, []zapcore.Field{
		zap.Bool("isDuplicate", record.IsDuplicate),
		zap.String("title", record.Title),
		zap.String("description", record.Description),
		zap.String("sourceName", record.SourceName),
	})
	if err != nil {
		return fmt.Errorf("encode audit line: %w", err)
	}
	defer buf.Free()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("audit file is closed")
	}
	if _, err := s.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write audit line: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := errors.Join(s.file.Sync(), s.file.Close())
	s.file = nil
	return err
}

// Logger fans a record out to the file and store sinks.
type Logger struct {
	file   *FileSink
	store  ports.LogRepository
	logger *zap.Logger
	now    func() time.Time
}

var _ ports.AuditRecorder = (*Logger)(nil)

// NewLogger wires both sinks; either may be nil.
func NewLogger(file *FileSink, store ports.LogRepository, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		file:   file,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record writes to both sinks and returns their joined errors.
func (l *Logger) Record(ctx context.Context, record domain.LogRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = l.now()
	}

	var fileErr, storeErr error
	if l.file != nil {
		if fileErr = l.file.Write(record); fileErr != nil {
			l.logger.Warn("audit file write failed", zap.String("title", record.Title), zap.Error(fileErr))
		}
	}
	if l.store != nil {
		if storeErr = l.store.InsertLog(ctx, record); storeErr != nil {
			l.logger.Warn("audit store write failed", zap.String("title", record.Title), zap.Error(storeErr))
		}
	}

	return errors.Join(fileErr, storeErr)
}
