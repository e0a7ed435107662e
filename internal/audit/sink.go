package audit

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// loggerName identifies this subsystem in durable sink lines.
const loggerName = "dbguard.audit"

// Sink mirrors audit entries to durable storage. Write failures never block
// the in-memory append; the service logs and swallows them.
type Sink interface {
	Write(entry Entry) error
	Close() error
}

// FormatLine renders the single-line durable representation of an entry.
// Failures are written at WARNING level, successes at INFO.
func FormatLine(entry Entry) string {
	level := "INFO"
	if !entry.Success {
		level = "WARNING"
	}
	line := fmt.Sprintf("%s %s %s %s | User: %s | Resource: %s | Success: %t",
		level, entry.Timestamp.UTC().Format(time.RFC3339), loggerName, entry.Type,
		entry.User, entry.Resource, entry.Success)
	if len(entry.Details) > 0 {
		line += fmt.Sprintf(" | Details: %v", entry.Details)
	}
	return line
}

// FileSink appends formatted lines to a local file.
type FileSink struct {
	file *os.File
}

// NewFileSink opens (or creates) the audit file in append mode.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &FileSink{file: file}, nil
}

// Write appends one line per entry.
func (s *FileSink) Write(entry Entry) error {
	_, err := fmt.Fprintln(s.file, FormatLine(entry))
	return err
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.file.Close()
}

// RedisSink mirrors formatted lines into a capped Redis list, for deployments
// where the audit trail must survive the process but a shared file does not
// fit.
type RedisSink struct {
	client  *redis.Client
	key     string
	maxLen  int64
	timeout time.Duration
}

// NewRedisSink constructs a RedisSink writing to key, trimmed to maxLen lines.
func NewRedisSink(client *redis.Client, key string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, key: key, maxLen: maxLen, timeout: 2 * time.Second}
}

// Write pushes the formatted line and trims the list to its cap.
func (s *RedisSink) Write(entry Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.RPush(ctx, s.key, FormatLine(entry)).Err(); err != nil {
		return err
	}
	if s.maxLen > 0 {
		return s.client.LTrim(ctx, s.key, -s.maxLen, -1).Err()
	}
	return nil
}

// Close releases the Redis client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// NopSink discards entries. Used when no durable mirror is configured.
type NopSink struct{}

// Write discards the entry.
func (NopSink) Write(Entry) error { return nil }

// Close is a no-op.
func (NopSink) Close() error { return nil }
