// Package audit keeps a bounded, append-only record of security events with
// a durable single-line mirror.
package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/odyssey-erp/dbguard/internal/secutil"
)

// DefaultCapacity bounds the in-memory log when no capacity is configured.
const DefaultCapacity = 10000

// Service is a thread-safe FIFO-bounded audit log. Appends evict the oldest
// entry past capacity; existing entries are never mutated.
type Service struct {
	logger   *slog.Logger
	sink     Sink
	capacity int

	mu      sync.Mutex
	entries []Entry
}

// NewService constructs the audit log. A nil sink disables the durable
// mirror; capacity values below one fall back to DefaultCapacity.
func NewService(logger *slog.Logger, capacity int, sink Sink) *Service {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Service{
		logger:   logger,
		sink:     sink,
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
	}
}

// Log appends an audit entry, evicting the oldest entry when the log is at
// capacity, and mirrors it to the durable sink. A sink failure is logged and
// swallowed so the in-memory append always succeeds.
func (s *Service) Log(rec Record) {
	entry := Entry{
		EventID:   secutil.NewAuditID(),
		Type:      rec.Type,
		User:      rec.User,
		Resource:  rec.Resource,
		Timestamp: time.Now(),
		Success:   rec.Success,
		Details:   rec.Details,
		IPAddress: rec.IPAddress,
		SessionID: rec.SessionID,
	}

	s.mu.Lock()
	if len(s.entries) >= s.capacity {
		n := copy(s.entries, s.entries[1:])
		s.entries = s.entries[:n]
	}
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	if err := s.sink.Write(entry); err != nil && s.logger != nil {
		s.logger.Warn("audit sink write", slog.Any("error", err), slog.String("event_id", entry.EventID))
	}
}

// Logs returns a filtered snapshot copy of the log. Internal state is never
// exposed or mutated.
func (s *Service) Logs(filter Filter) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if filter.User != "" && entry.User != filter.User {
			continue
		}
		if filter.Type != "" && entry.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && entry.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.Until.IsZero() && entry.Timestamp.After(filter.Until) {
			continue
		}
		result = append(result, entry)
	}
	return result
}

// Statistics summarises the current log contents.
func (s *Service) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return Stats{}
	}

	stats := Stats{
		TotalEvents:     len(s.entries),
		EventTypeCounts: make(map[string]int),
		UserActivity:    make(map[string]int),
		Oldest:          s.entries[0].Timestamp,
		Newest:          s.entries[0].Timestamp,
	}
	succeeded := 0
	for _, entry := range s.entries {
		stats.EventTypeCounts[string(entry.Type)]++
		stats.UserActivity[entry.User]++
		if entry.Success {
			succeeded++
		}
		if entry.Timestamp.Before(stats.Oldest) {
			stats.Oldest = entry.Timestamp
		}
		if entry.Timestamp.After(stats.Newest) {
			stats.Newest = entry.Timestamp
		}
	}
	stats.SuccessRate = float64(succeeded) / float64(len(s.entries)) * 100
	return stats
}

// Close releases the durable sink.
func (s *Service) Close() error {
	return s.sink.Close()
}
