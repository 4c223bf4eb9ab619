// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"github.com/haiyewei/tgForwardbot/lib/ctlsock"
	"github.com/haiyewei/tgForwardbot/relay"
)

// statusResponse is the payload of the `status` control action.
type statusResponse struct {
	Version    string `cbor:"version"`
	Mappings   int    `cbor:"mappings"`
	AdminTopic int64  `cbor:"admin_topic"`
	AuditTopic int64  `cbor:"audit_topic"`
	StartedAt  string `cbor:"started_at"`
}

// registerControlActions wires the operator surface: status plus the
// two export actions, which run the same path as the in-chat
// commands.
func registerControlActions(server *ctlsock.Server, engine *relay.Engine, store *relay.Store, adminThreadID, auditThreadID int64) {
	startedAt := time.Now().UTC().Format(time.RFC3339)

	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return statusResponse{
			Version:    version,
			Mappings:   store.Len(),
			AdminTopic: adminThreadID,
			AuditTopic: auditThreadID,
			StartedAt:  startedAt,
		}, nil
	})

	server.Handle("export-users", func(ctx context.Context, raw []byte) (any, error) {
		return nil, engine.ExportUsers(ctx)
	})

	server.Handle("export-log", func(ctx context.Context, raw []byte) (any, error) {
		return nil, engine.ExportLog(ctx)
	})
}
