// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore creates a store over a ledger seeded with content.
func newTestStore(t *testing.T, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "user_info.txt")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("seeding ledger: %v", err)
		}
	}
	return NewStore(path, testLogger())
}

func TestStoreLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		store := newTestStore(t, "")
		if err := store.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if store.Len() != 0 {
			t.Errorf("Len = %d, want 0", store.Len())
		}
	})

	t.Run("replays records", func(t *testing.T) {
		store := newTestStore(t, "5\n101---alice---42\n102---7\n")
		if err := store.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if store.Len() != 2 {
			t.Fatalf("Len = %d, want 2", store.Len())
		}

		threadID, ok := store.ThreadFor(42)
		if !ok || threadID != 101 {
			t.Errorf("ThreadFor(42) = %d, %v", threadID, ok)
		}
		record, ok := store.RecordFor(42)
		if !ok || record.DisplayName != "alice" {
			t.Errorf("RecordFor(42) = %+v, %v", record, ok)
		}

		// Record without a display name.
		record, ok = store.RecordFor(7)
		if !ok || record.DisplayName != "" || record.ThreadID != 102 {
			t.Errorf("RecordFor(7) = %+v, %v", record, ok)
		}

		// The control line must not surface as a mapping.
		if _, ok := store.UserFor(5); ok {
			t.Error("control line leaked into the thread map")
		}
	})

	t.Run("display name containing separator", func(t *testing.T) {
		// First field is the thread, last is the user; everything
		// between re-joins into the name.
		store := newTestStore(t, "5\n101---a---b---42\n")
		if err := store.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		record, ok := store.RecordFor(42)
		if !ok {
			t.Fatal("record missing")
		}
		if record.DisplayName != "a---b" {
			t.Errorf("DisplayName = %q, want %q", record.DisplayName, "a---b")
		}
		if record.ThreadID != 101 {
			t.Errorf("ThreadID = %d, want 101", record.ThreadID)
		}
	})

	t.Run("duplicate user keeps first", func(t *testing.T) {
		store := newTestStore(t, "5\n101---alice---42\n202---alice---42\n")
		if err := store.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if threadID, _ := store.ThreadFor(42); threadID != 101 {
			t.Errorf("ThreadFor(42) = %d, want first-writer 101", threadID)
		}
		if _, ok := store.UserFor(202); ok {
			t.Error("duplicate record's thread entered the map")
		}
	})

	t.Run("malformed lines skipped", func(t *testing.T) {
		store := newTestStore(t, "5\nnot a record\n101---42\nxx---yy\n\n102---7\n")
		if err := store.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if store.Len() != 2 {
			t.Errorf("Len = %d, want 2", store.Len())
		}
	})
}

func TestStoreAppend(t *testing.T) {
	t.Run("durable and visible", func(t *testing.T) {
		store := newTestStore(t, "5\n")
		if err := store.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if err := store.Append(42, "alice", 101); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		if threadID, _ := store.ThreadFor(42); threadID != 101 {
			t.Errorf("ThreadFor(42) = %d", threadID)
		}
		if userID, _ := store.UserFor(101); userID != 42 {
			t.Errorf("UserFor(101) = %d", userID)
		}

		content, err := os.ReadFile(store.path)
		if err != nil {
			t.Fatalf("reading ledger: %v", err)
		}
		if !strings.Contains(string(content), "101---alice---42") {
			t.Errorf("ledger missing record: %q", content)
		}
	})

	t.Run("no display name omits middle field", func(t *testing.T) {
		store := newTestStore(t, "5\n")
		if err := store.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if err := store.Append(7, "", 102); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		content, _ := os.ReadFile(store.path)
		if !strings.Contains(string(content), "102---7\n") {
			t.Errorf("ledger = %q, want bare record", content)
		}
	})

	t.Run("failed write leaves maps untouched", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "missing", "user_info.txt"), testLogger())
		if err := store.Append(42, "alice", 101); err == nil {
			t.Fatal("expected append error for unwritable path")
		}
		if _, ok := store.ThreadFor(42); ok {
			t.Error("map mutated despite failed ledger write")
		}
	})
}

// TestStoreBijection replays the appended ledger into a second store
// and checks both directions agree.
func TestStoreBijection(t *testing.T) {
	store := newTestStore(t, "5\n")
	if err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	users := []struct {
		userID   int64
		name     string
		threadID int64
	}{
		{42, "alice", 101},
		{7, "", 102},
		{9000, "bob---evil", 103},
	}
	for _, u := range users {
		if err := store.Append(u.userID, u.name, u.threadID); err != nil {
			t.Fatalf("Append(%d) failed: %v", u.userID, err)
		}
	}

	replayed := NewStore(store.path, testLogger())
	if err := replayed.Load(); err != nil {
		t.Fatalf("replay Load failed: %v", err)
	}

	for _, s := range []*Store{store, replayed} {
		if s.Len() != len(users) {
			t.Fatalf("Len = %d, want %d", s.Len(), len(users))
		}
		for _, u := range users {
			threadID, ok := s.ThreadFor(u.userID)
			if !ok || threadID != u.threadID {
				t.Errorf("ThreadFor(%d) = %d, %v", u.userID, threadID, ok)
			}
			userID, ok := s.UserFor(u.threadID)
			if !ok || userID != u.userID {
				t.Errorf("UserFor(%d) = %d, %v", u.threadID, userID, ok)
			}
		}
	}

	// The separator-bearing display name survives replay intact.
	record, _ := replayed.RecordFor(9000)
	if record.DisplayName != "bob---evil" {
		t.Errorf("DisplayName after replay = %q", record.DisplayName)
	}
}

func TestStoreSnapshot(t *testing.T) {
	store := newTestStore(t, "5\n103---carol---3\n101---alice---1\n102---2\n")
	if err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	snapshot := store.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("snapshot has %d records", len(snapshot))
	}
	for i := 1; i < len(snapshot); i++ {
		if snapshot[i-1].ThreadID >= snapshot[i].ThreadID {
			t.Errorf("snapshot not sorted by thread ID: %+v", snapshot)
		}
	}
}
