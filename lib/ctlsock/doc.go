// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package ctlsock implements the operator control protocol: a CBOR
// request-response protocol over a Unix domain socket, one request
// per connection.
//
// Requests are CBOR maps with an "action" field naming the operation
// plus action-specific parameters. Responses carry an "ok" flag, an
// "error" string on failure, and an optional "data" payload on
// success. Filesystem permissions on the socket are the access
// control; there is no authentication in the protocol itself.
package ctlsock
