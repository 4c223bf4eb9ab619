// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Separator is the literal field separator of the mapping ledger and
// of topic labels.
const Separator = "---"

// UserRecord is one user association: created exactly once at first
// contact, never mutated, never deleted.
type UserRecord struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	ThreadID    int64  `json:"thread_id"`
}

// Store holds the bidirectional user↔thread mapping, backed by an
// append-only ledger file. Safe for concurrent use: both directions
// are mutated together under one mutex, so the bijection can never be
// observed half-applied.
//
// Ledger format, one record per line: line 1 is the control record
// (the admin topic ID, owned by bootstrap); every later line is
// `threadID---displayName---userID`, with the display name segment
// absent for users without one.
type Store struct {
	path   string
	logger *slog.Logger

	mu           sync.Mutex
	userToRecord map[int64]UserRecord
	threadToUser map[int64]int64
}

// NewStore creates a store backed by the ledger at path. Call Load
// before use.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:         path,
		logger:       logger,
		userToRecord: make(map[int64]UserRecord),
		threadToUser: make(map[int64]int64),
	}
}

// Load replays the ledger into the in-memory maps. A missing ledger
// file yields empty maps and no error (first run). Malformed records
// are logged and skipped; a record for an already-mapped user or
// thread is ignored (first-writer-wins), so replay after a crash
// mid-append is idempotent.
func (s *Store) Load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening mapping ledger %s: %w", s.path, err)
	}
	defer file.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if lineNumber == 1 {
			// Control record: the admin topic ID, consumed by
			// bootstrap rather than the mapping replay.
			continue
		}
		if line == "" {
			continue
		}

		record, ok := s.parseRecord(line, lineNumber)
		if !ok {
			continue
		}
		if _, exists := s.userToRecord[record.UserID]; exists {
			s.logger.Warn("duplicate user record in mapping ledger, keeping first",
				"line", lineNumber,
				"user_id", record.UserID,
			)
			continue
		}
		if existingUser, exists := s.threadToUser[record.ThreadID]; exists {
			s.logger.Warn("thread already mapped, skipping record",
				"line", lineNumber,
				"thread_id", record.ThreadID,
				"existing_user_id", existingUser,
			)
			continue
		}
		s.userToRecord[record.UserID] = record
		s.threadToUser[record.ThreadID] = record.UserID
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading mapping ledger %s: %w", s.path, err)
	}

	s.logger.Info("mapping ledger loaded",
		"path", s.path,
		"mappings", len(s.userToRecord),
	)
	return nil
}

// parseRecord parses one ledger line. The first field is the thread
// ID, the last is the user ID; everything between, re-joined on the
// separator, is the display name. Caller holds the mutex.
func (s *Store) parseRecord(line string, lineNumber int) (UserRecord, bool) {
	fields := strings.Split(line, Separator)
	if len(fields) < 2 {
		s.logger.Warn("malformed mapping record, skipping",
			"line", lineNumber,
			"fields", len(fields),
		)
		return UserRecord{}, false
	}

	threadID, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		s.logger.Warn("malformed thread ID in mapping record, skipping",
			"line", lineNumber,
			"error", err,
		)
		return UserRecord{}, false
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(fields[len(fields)-1]), 10, 64)
	if err != nil {
		s.logger.Warn("malformed user ID in mapping record, skipping",
			"line", lineNumber,
			"error", err,
		)
		return UserRecord{}, false
	}

	return UserRecord{
		UserID:      userID,
		DisplayName: strings.Join(fields[1:len(fields)-1], Separator),
		ThreadID:    threadID,
	}, true
}

// Append durably records a new user association and publishes it to
// the in-memory maps. The ledger write happens first: if it fails,
// the maps are untouched and the error is returned, because an
// unrecorded mapping would re-create a duplicate topic after restart.
func (s *Store) Append(userID int64, displayName string, threadID int64) error {
	if strings.Contains(displayName, Separator) {
		// Written as-is; replay still recovers the thread and user
		// IDs from the outermost fields.
		s.logger.Warn("display name contains ledger separator",
			"user_id", userID,
			"display_name", displayName,
		)
	}

	line := strconv.FormatInt(threadID, 10)
	if displayName != "" {
		line += Separator + displayName
	}
	line += Separator + strconv.FormatInt(userID, 10)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := appendLine(s.path, line); err != nil {
		return fmt.Errorf("appending to mapping ledger: %w", err)
	}

	s.userToRecord[userID] = UserRecord{
		UserID:      userID,
		DisplayName: displayName,
		ThreadID:    threadID,
	}
	s.threadToUser[threadID] = userID
	return nil
}

// appendLine appends one line to path with O_APPEND and syncs before
// closing, so a crash immediately after Append cannot lose the record
// while the in-memory maps already show it.
func appendLine(path, line string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(line + "\n"); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ThreadFor returns the thread mapped to userID.
func (s *Store) ThreadFor(userID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.userToRecord[userID]
	return record.ThreadID, ok
}

// UserFor returns the user mapped to threadID.
func (s *Store) UserFor(threadID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.threadToUser[threadID]
	return userID, ok
}

// RecordFor returns the full record for userID.
func (s *Store) RecordFor(userID int64) (UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.userToRecord[userID]
	return record, ok
}

// RecordForThread returns the full record for the user mapped to
// threadID.
func (s *Store) RecordForThread(threadID int64) (UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.threadToUser[threadID]
	if !ok {
		return UserRecord{}, false
	}
	record, ok := s.userToRecord[userID]
	return record, ok
}

// Len returns the number of mapped users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.userToRecord)
}

// Snapshot returns all records sorted by thread ID.
func (s *Store) Snapshot() []UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]UserRecord, 0, len(s.userToRecord))
	for _, record := range s.userToRecord {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ThreadID < records[j].ThreadID
	})
	return records
}
