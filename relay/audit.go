// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/haiyewei/tgForwardbot/lib/clock"
	"github.com/haiyewei/tgForwardbot/telegram"
)

// EventKind classifies an audit event by relay direction.
type EventKind string

const (
	// UserToGroup records a private message forwarded into a topic.
	UserToGroup EventKind = "user-to-group"
	// GroupToUser records a staff reply copied to a user.
	GroupToUser EventKind = "group-to-user"
)

// AuditEvent describes one successful relay.
type AuditEvent struct {
	Kind EventKind

	// Source is the author of the relayed message: the end-user for
	// UserToGroup, the staff member for GroupToUser.
	Source telegram.User

	// ThreadID is the topic the message passed through.
	ThreadID int64

	// TargetUserID is the destination user for GroupToUser; ignored
	// for UserToGroup.
	TargetUserID int64
}

// AuditLogConfig configures an AuditLog.
type AuditLogConfig struct {
	// LedgerPath is the audit ledger file. Line 1 is the control
	// record (the audit topic ID, owned by bootstrap).
	LedgerPath string
	// RotateDir receives compressed rotated ledger segments.
	RotateDir string
	// ExportDir receives timestamped export backups.
	ExportDir string

	// Store renders human-readable identities for audit lines.
	Store *Store
	// API delivers the topic mirror and export documents.
	API BotAPI

	GroupID       int64
	AuditThreadID int64
	OwnerID       int64

	// RotateBytes triggers rotation when the ledger exceeds it.
	// Zero disables rotation.
	RotateBytes int64
	// ExportKeep and RotateKeep bound the two backup rings.
	ExportKeep int
	RotateKeep int

	Clock  clock.Clock
	Logger *slog.Logger
}

// AuditLog is the append-only relay event ledger. Appends are
// durable; the mirror into the audit topic is best-effort. Every
// failure in this type is logged and swallowed — the relay that
// triggered the event has already happened, so nothing here may block
// or fail the relay path.
type AuditLog struct {
	cfg AuditLogConfig

	encoder *zstd.Encoder
}

// NewAuditLog creates the audit ledger and its backup directories.
func NewAuditLog(cfg AuditLogConfig) (*AuditLog, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	for _, dir := range []string{cfg.RotateDir, cfg.ExportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating backup directory %s: %w", dir, err)
		}
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &AuditLog{cfg: cfg, encoder: encoder}, nil
}

// LogEvent renders the event to one ledger line, appends it durably,
// rotates the ledger if it grew past the limit, and mirrors the line
// into the audit topic. All failures are logged and swallowed.
func (a *AuditLog) LogEvent(ctx context.Context, event AuditEvent) {
	line := a.renderLine(event)

	if err := appendLine(a.cfg.LedgerPath, line); err != nil {
		a.cfg.Logger.Error("audit ledger append failed",
			"error", err,
			"line", line,
		)
		return
	}

	a.maybeRotate()

	if _, err := a.cfg.API.SendMessage(ctx, a.cfg.GroupID, a.cfg.AuditThreadID, line); err != nil {
		a.cfg.Logger.Warn("audit topic mirror failed", "error", err)
	}
}

// renderLine produces the human-readable ledger line:
// `2026-01-02 15:04:05 --- user-to-group: <source> -> <destination>`.
// Identities are rendered through the store's maps, falling back to
// raw IDs when a lookup misses.
func (a *AuditLog) renderLine(event AuditEvent) string {
	timestamp := a.cfg.Clock.Now().Format("2006-01-02 15:04:05")

	var source, destination string
	switch event.Kind {
	case UserToGroup:
		source = "用户 " + userLabel(event.Source.Username, event.Source.ID)
		destination = fmt.Sprintf("话题 %d(%s)", event.ThreadID, a.threadLabel(event.ThreadID))
	case GroupToUser:
		source = "群组用户 " + userLabel(event.Source.Username, event.Source.ID)
		if record, ok := a.cfg.Store.RecordFor(event.TargetUserID); ok {
			destination = "用户 " + userLabel(record.DisplayName, record.UserID)
		} else {
			destination = "用户 " + userLabel("", event.TargetUserID)
		}
	default:
		source = userLabel(event.Source.Username, event.Source.ID)
		destination = fmt.Sprintf("话题 %d", event.ThreadID)
	}

	return fmt.Sprintf("%s %s %s: %s -> %s", timestamp, Separator, event.Kind, source, destination)
}

// threadLabel recovers the topic's display label from the mapping.
func (a *AuditLog) threadLabel(threadID int64) string {
	record, ok := a.cfg.Store.RecordForThread(threadID)
	if !ok {
		return "未知话题"
	}
	return topicLabel(record.DisplayName, record.UserID)
}

// maybeRotate compresses the ledger body into the rotate ring when it
// exceeds the configured size, leaving only the control line behind.
// Rotation failures are logged; the ledger keeps growing until the
// next successful rotation.
func (a *AuditLog) maybeRotate() {
	if a.cfg.RotateBytes <= 0 {
		return
	}
	info, err := os.Stat(a.cfg.LedgerPath)
	if err != nil || info.Size() <= a.cfg.RotateBytes {
		return
	}

	if err := a.rotate(); err != nil {
		a.cfg.Logger.Error("audit ledger rotation failed", "error", err)
		return
	}
	a.sweep(a.cfg.RotateDir, a.cfg.RotateKeep)
}

// rotate writes the ledger body (everything after the control line)
// as a zstd-compressed segment and truncates the ledger back to its
// control line.
func (a *AuditLog) rotate() error {
	content, err := os.ReadFile(a.cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}

	controlLine, body, found := bytes.Cut(content, []byte("\n"))
	if !found || len(body) == 0 {
		return nil
	}

	timestamp := a.cfg.Clock.Now().Format("2006-01-02T15-04-05")
	segmentPath := filepath.Join(a.cfg.RotateDir, fmt.Sprintf("forwardlog_%s.log.zst", timestamp))

	compressed := a.encoder.EncodeAll(body, nil)
	if err := os.WriteFile(segmentPath, compressed, 0o644); err != nil {
		return fmt.Errorf("writing rotated segment: %w", err)
	}

	// Truncate only after the segment is safely on disk. A crash
	// between the two writes duplicates audit lines; it never loses
	// them.
	if err := os.WriteFile(a.cfg.LedgerPath, append(controlLine, '\n'), 0o644); err != nil {
		return fmt.Errorf("truncating ledger: %w", err)
	}

	a.cfg.Logger.Info("audit ledger rotated",
		"segment", segmentPath,
		"body_bytes", len(body),
		"compressed_bytes", len(compressed),
	)
	return nil
}

// ExportBackup copies sourceFile into the export ring, sends the
// original to the owner as a document, and sweeps the ring down to
// the newest entries. The backup copy happens before delivery so an
// unreachable owner still leaves a local artifact.
func (a *AuditLog) ExportBackup(ctx context.Context, sourceFile, label string) error {
	timestamp := a.cfg.Clock.Now().Format("2006-01-02T15-04-05")

	content, err := os.ReadFile(sourceFile)
	if err != nil {
		return fmt.Errorf("reading %s for export: %w", sourceFile, err)
	}

	backupPath := filepath.Join(a.cfg.ExportDir, fmt.Sprintf("%s_%s.json", label, timestamp))
	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return fmt.Errorf("writing export backup: %w", err)
	}

	caption := fmt.Sprintf("%s完成 - %s", label, timestamp)
	_, err = a.cfg.API.SendDocument(ctx, a.cfg.OwnerID, 0,
		filepath.Base(sourceFile), bytes.NewReader(content), caption)
	if err != nil {
		return fmt.Errorf("delivering export to owner: %w", err)
	}

	a.sweep(a.cfg.ExportDir, a.cfg.ExportKeep)

	a.cfg.Logger.Info("export completed",
		"source", sourceFile,
		"backup", backupPath,
	)
	return nil
}

// sweep deletes all but the newest keep entries in dir, by
// modification time. Failures are logged and non-fatal: a failed
// deletion is retried implicitly on the next sweep.
func (a *AuditLog) sweep(dir string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		a.cfg.Logger.Warn("retention sweep failed to list directory",
			"dir", dir,
			"error", err,
		)
		return
	}

	type backup struct {
		name    string
		modTime int64
	}
	backups := make([]backup, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backup{name: entry.Name(), modTime: info.ModTime().UnixNano()})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].modTime != backups[j].modTime {
			return backups[i].modTime > backups[j].modTime
		}
		// Timestamps embedded in the names break mtime ties on
		// filesystems with coarse resolution.
		return strings.Compare(backups[i].name, backups[j].name) > 0
	})

	for _, old := range backups[min(keep, len(backups)):] {
		if err := os.Remove(filepath.Join(dir, old.name)); err != nil {
			a.cfg.Logger.Warn("retention sweep failed to delete backup",
				"file", old.name,
				"error", err,
			)
		}
	}
}
