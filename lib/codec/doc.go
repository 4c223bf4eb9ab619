// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used by the control-socket
// protocol. Encoding is deterministic (RFC 8949 Core Deterministic
// Encoding) so identical requests and responses always produce
// identical bytes. Consumers import this package rather than the CBOR
// library directly, keeping the choice of codec in one place.
package codec
