// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay implements the user↔topic relay core: the persistent
// bidirectional mapping between end-users and their forum topics, the
// idempotent topic resolver that creates a topic at most once per
// user under concurrent first contact, the relay engine that routes
// messages in both directions, and the audit ledger with rotation,
// export, and bounded backup retention.
//
// The mapping ledger on disk is the source of truth; the in-memory
// maps are a cache rebuilt by replaying it at startup. Replay is
// idempotent: duplicate records left by a crash mid-append collapse
// first-writer-wins, so a restart can never produce a second topic
// for a user whose append reached the disk.
package relay
