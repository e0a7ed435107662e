package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFileSinkWritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}

	entry := Entry{Type: EventLogin, User: "alice", Resource: "database", Timestamp: time.Now(), Success: true}
	if err := sink.Write(entry); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0] != FormatLine(entry) {
		t.Fatalf("line mismatch:\n got %s\nwant %s", lines[0], FormatLine(entry))
	}
}

func TestRedisSinkPushesAndTrims(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := NewRedisSink(client, "test:audit", 2)

	for _, user := range []string{"a", "b", "c"} {
		entry := Entry{Type: EventSelect, User: user, Resource: "orders", Timestamp: time.Now(), Success: true}
		if err := sink.Write(entry); err != nil {
			t.Fatalf("write %s: %v", user, err)
		}
	}

	lines, err := client.LRange(context.Background(), "test:audit", 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected list trimmed to 2, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "User: b") || !strings.Contains(lines[1], "User: c") {
		t.Fatalf("expected two newest lines kept, got %v", lines)
	}
}
